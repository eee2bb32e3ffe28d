// Package telephony wraps the call-control provider: SIP outbound
// dialing, room lifecycle, participant events, and transfers. The rest
// of the system depends only on the small interfaces here.
package telephony

import (
	"context"
	"errors"
	"fmt"
)

// Participant is one remote call leg joined to a room.
type Participant struct {
	Identity string `json:"identity"`
	SID      string `json:"sid,omitempty"`
}

// OutboundCallRequest asks the provider to dial a phone number into a room.
type OutboundCallRequest struct {
	RoomName            string `json:"room_name"`
	SIPTrunkID          string `json:"sip_trunk_id"`
	SIPCallTo           string `json:"sip_call_to"`
	ParticipantIdentity string `json:"participant_identity"`
	// WaitUntilAnswered makes the request block until the remote party
	// answers or the attempt definitively fails.
	WaitUntilAnswered bool `json:"wait_until_answered"`
}

// ProviderError carries the provider's status pair for a failed dial or
// transfer (e.g. a SIP status).
type ProviderError struct {
	StatusCode    int
	StatusMessage string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("telephony: provider error: %d %s", e.StatusCode, e.StatusMessage)
}

// ErrJoinTimeout indicates the remote participant did not join the room
// within the bounded wait.
var ErrJoinTimeout = errors.New("telephony: timed out waiting for participant to join")

// Dialer starts outbound call legs.
type Dialer interface {
	// CreateOutboundCall dials the destination into the room and blocks
	// until the remote party answers or the attempt definitively fails.
	// Failures surface as *ProviderError where the provider reported a
	// status pair.
	CreateOutboundCall(ctx context.Context, req OutboundCallRequest) (*Participant, error)
}

// RoomClient manages room lifecycle and participant rendezvous.
type RoomClient interface {
	// DeleteRoom tears down the room and every attached leg. Deleting a
	// room that is already gone is success, not an error.
	DeleteRoom(ctx context.Context, room string) error
	// WaitForParticipant blocks until the identified participant joins
	// the room, the context expires, or the provider stream fails.
	WaitForParticipant(ctx context.Context, room, identity string) (*Participant, error)
}

// Transferer hands a connected call leg to another destination.
type Transferer interface {
	TransferParticipant(ctx context.Context, room, identity, transferTo string) error
}
