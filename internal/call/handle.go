package call

import (
	"time"

	"github.com/collectwise/collections-ai-platform/internal/agent"
	"github.com/collectwise/collections-ai-platform/internal/calldata"
	"github.com/collectwise/collections-ai-platform/internal/telephony"
)

// Handle binds everything about one live call: its metadata, its
// compliance state machine, the session, and the remote participant
// joined to the room. Created at dial success, destroyed when the call
// ends.
type Handle struct {
	Room        string
	Metadata    *calldata.CallMetadata
	Agent       *agent.Agent
	Session     Session
	Participant *telephony.Participant
	AnsweredAt  time.Time
}
