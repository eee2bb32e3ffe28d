// Package call coordinates the lifecycle of one outbound collections
// call: the concurrent start of the conversational session and the
// outbound dial, their rendezvous on the remote participant, and the
// terminal actions that end or hand off the call.
package call

import (
	"context"
	"encoding/json"

	"github.com/collectwise/collections-ai-platform/internal/agent"
	"github.com/collectwise/collections-ai-platform/internal/transcript"
)

// ToolDispatcher is the action vocabulary a live session may invoke.
// Toolset implements it.
type ToolDispatcher interface {
	Names() []agent.ToolName
	Dispatch(ctx context.Context, name agent.ToolName, args json.RawMessage) (string, error)
}

// Speech is an agent utterance that may still be playing out to the
// remote party.
type Speech interface {
	// WaitForPlayout blocks until the utterance has finished playing or
	// the context expires.
	WaitForPlayout(ctx context.Context) error
}

// Session is the boundary with the conversational reasoning engine. The
// engine owns speech recognition, synthesis, and the LLM; the call
// lifecycle only needs these primitives.
type Session interface {
	// Start brings the session live on the call's room. It must be
	// listening before the remote party can possibly speak; the
	// coordinator therefore launches it before awaiting the dial.
	// Cancelling ctx abandons the start.
	Start(ctx context.Context, a *agent.Agent, room string) error

	// GenerateReply instructs the engine to speak a reply following the
	// given instructions.
	GenerateReply(ctx context.Context, instructions string) error

	// BindTools hands the session the call's full tool vocabulary once
	// the call is live. Until then only conversation, no actions.
	BindTools(tools ToolDispatcher)

	// CurrentSpeech returns the utterance currently playing, or nil when
	// the agent is silent.
	CurrentSpeech() Speech

	// History returns the ordered conversation so far.
	History() []transcript.Entry

	// Done is closed when the session has shut down, whether because the
	// call ended or the engine failed.
	Done() <-chan struct{}
}
