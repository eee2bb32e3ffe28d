package call

import (
	"context"
	"fmt"
	"time"

	"github.com/collectwise/collections-ai-platform/internal/observability/metrics"
	"github.com/collectwise/collections-ai-platform/internal/telephony"
	"github.com/collectwise/collections-ai-platform/internal/transcript"
	"github.com/collectwise/collections-ai-platform/pkg/logging"
)

const defaultPlayoutGrace = 15 * time.Second

const (
	transferRefusalOutput       = "cannot transfer call"
	transferRefusalInstructions = "Inform the caller you are sorry, but you cannot transfer the call at the moment and offer to continue helping them yourself."
	transferFailedInstructions  = "Apologize that the transfer could not be completed right now and continue assisting the caller yourself."
	transferAnnounceInstruction = "Let the caller know you will transfer them to a human agent now and to please hold."
)

// Controller performs the terminal actions of a live call: hangup,
// answering-machine abort, and warm transfer to a human agent.
type Controller struct {
	rooms        telephony.RoomClient
	transfers    telephony.Transferer
	playoutGrace time.Duration
	store        *transcript.Store
	metrics      *metrics.CallMetrics
	logger       *logging.Logger
}

// ControllerConfig configures a Controller.
type ControllerConfig struct {
	Rooms     telephony.RoomClient
	Transfers telephony.Transferer
	// PlayoutGrace bounds how long EndCall waits for in-flight speech to
	// finish before tearing down the room. Defaults to 15s.
	PlayoutGrace time.Duration
	Store        *transcript.Store
	Metrics      *metrics.CallMetrics
	Logger       *logging.Logger
}

// NewController creates a call termination controller.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Rooms == nil {
		return nil, fmt.Errorf("call: room client required")
	}
	grace := cfg.PlayoutGrace
	if grace <= 0 {
		grace = defaultPlayoutGrace
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Controller{
		rooms:        cfg.Rooms,
		transfers:    cfg.Transfers,
		playoutGrace: grace,
		store:        cfg.Store,
		metrics:      cfg.Metrics,
		logger:       logger,
	}, nil
}

// EndCall hangs up gracefully: any speech still playing is allowed to
// finish, bounded by the playout grace period, before the room is torn
// down. Deleting an already-gone room is success, so hangups triggered
// from multiple paths are safe.
func (c *Controller) EndCall(ctx context.Context, h *Handle, outcome string) error {
	c.waitForPlayout(ctx, h)
	return c.hangup(ctx, h, outcome)
}

// DetectedAnsweringMachine aborts the call immediately. A machine is
// not a debtor; nothing we could say matters and no playout wait is
// owed.
func (c *Controller) DetectedAnsweringMachine(ctx context.Context, h *Handle) error {
	c.logger.Info("answering machine detected", "room", h.Room)
	return c.hangup(ctx, h, "answering_machine")
}

// TransferCall hands the connected caller to the human agent named in
// the call metadata. With no transfer destination configured the
// request is refused conversationally and no provider call is made.
// A provider-side transfer failure is not terminal: the agent
// apologizes and the call continues.
func (c *Controller) TransferCall(ctx context.Context, h *Handle) (*TransferResult, error) {
	transferTo := h.Metadata.Dial.TransferTo
	if transferTo == "" || c.transfers == nil {
		c.metrics.ObserveTransfer("refused")
		c.logger.Info("transfer refused, no destination configured", "room", h.Room)
		return &TransferResult{
			Output:            transferRefusalOutput,
			SpeakInstructions: transferRefusalInstructions,
		}, nil
	}

	// Announce the handoff and let the announcement play out before the
	// leg moves.
	if err := h.Session.GenerateReply(ctx, transferAnnounceInstruction); err != nil {
		c.logger.Warn("transfer announcement failed", "room", h.Room, "error", err)
	}
	c.waitForPlayout(ctx, h)

	identity := participantIdentity(h)
	if err := c.transfers.TransferParticipant(ctx, h.Room, identity, transferTo); err != nil {
		c.metrics.ObserveTransfer("failed")
		c.logger.Error("transfer failed", "room", h.Room, "error", err)
		return &TransferResult{
			Output:            "transfer failed",
			SpeakInstructions: transferFailedInstructions,
		}, nil
	}

	c.metrics.ObserveTransfer("completed")
	c.saveOutcome(ctx, h, transcript.CallStatusTransferred, "transferred")
	c.logger.Info("call transferred", "room", h.Room, "transfer_to", transferTo)
	return &TransferResult{Output: "transferred", Transferred: true}, nil
}

// TransferResult reports the outcome of a transfer attempt back to the
// conversation.
type TransferResult struct {
	Output            string
	SpeakInstructions string
	Transferred       bool
}

func (c *Controller) waitForPlayout(ctx context.Context, h *Handle) {
	speech := h.Session.CurrentSpeech()
	if speech == nil {
		return
	}
	waitCtx, cancel := context.WithTimeout(ctx, c.playoutGrace)
	defer cancel()
	if err := speech.WaitForPlayout(waitCtx); err != nil {
		c.logger.Warn("gave up waiting for speech playout", "room", h.Room, "error", err)
	}
}

func (c *Controller) hangup(ctx context.Context, h *Handle, outcome string) error {
	if err := c.rooms.DeleteRoom(ctx, h.Room); err != nil {
		c.logger.Error("failed to delete room", "room", h.Room, "error", err)
		return fmt.Errorf("call: hangup failed: %w", err)
	}
	if !h.AnsweredAt.IsZero() {
		c.metrics.ObserveCallDuration(time.Since(h.AnsweredAt).Seconds())
	}
	c.saveOutcome(ctx, h, transcript.CallStatusEnded, outcome)
	c.logger.Info("call ended", "room", h.Room, "outcome", outcome)
	return nil
}

func (c *Controller) saveOutcome(ctx context.Context, h *Handle, status, outcome string) {
	if c.store == nil {
		return
	}
	state, err := c.store.GetCallState(ctx, h.Room)
	if err != nil || state == nil {
		state = &transcript.CallState{
			Room:          h.Room,
			To:            h.Metadata.Dial.To,
			AccountNumber: h.Metadata.Customer.AccountNumber,
			StartedAt:     h.AnsweredAt,
		}
	}
	state.Status = status
	state.Outcome = outcome
	if err := c.store.SaveCallState(ctx, state); err != nil {
		c.logger.Warn("failed to save call outcome", "room", h.Room, "error", err)
	}
}

func participantIdentity(h *Handle) string {
	if h.Participant != nil && h.Participant.Identity != "" {
		return h.Participant.Identity
	}
	return h.Metadata.Dial.To
}
