package call

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/collectwise/collections-ai-platform/internal/agent"
	"github.com/collectwise/collections-ai-platform/internal/observability/metrics"
	"github.com/collectwise/collections-ai-platform/internal/telephony"
	"github.com/collectwise/collections-ai-platform/internal/transcript"
	"github.com/collectwise/collections-ai-platform/pkg/logging"
)

const defaultJoinTimeout = 30 * time.Second

// Coordinator brings a conversational session and an outbound dial into
// a single live call without dropping the first seconds of either side's
// output.
type Coordinator struct {
	dialer      telephony.Dialer
	rooms       telephony.RoomClient
	trunkID     string
	joinTimeout time.Duration
	store       *transcript.Store
	metrics     *metrics.CallMetrics
	logger      *logging.Logger
	tracer      trace.Tracer
}

// CoordinatorConfig configures a Coordinator.
type CoordinatorConfig struct {
	Dialer telephony.Dialer
	Rooms  telephony.RoomClient
	// SIPTrunkID is the outbound trunk used for every dial. Required.
	SIPTrunkID string
	// JoinTimeout bounds the wait for the answered participant to join
	// the room. Defaults to 30s.
	JoinTimeout time.Duration
	// Store receives live call-state updates. Optional.
	Store   *transcript.Store
	Metrics *metrics.CallMetrics
	Logger  *logging.Logger
}

// NewCoordinator creates a call coordinator.
func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if cfg.Dialer == nil || cfg.Rooms == nil {
		return nil, fmt.Errorf("call: dialer and room client required")
	}
	if cfg.SIPTrunkID == "" {
		return nil, fmt.Errorf("call: outbound SIP trunk required")
	}
	joinTimeout := cfg.JoinTimeout
	if joinTimeout <= 0 {
		joinTimeout = defaultJoinTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Coordinator{
		dialer:      cfg.Dialer,
		rooms:       cfg.Rooms,
		trunkID:     cfg.SIPTrunkID,
		joinTimeout: joinTimeout,
		store:       cfg.Store,
		metrics:     cfg.Metrics,
		logger:      logger,
		tracer:      otel.Tracer("collections.internal.call"),
	}, nil
}

// StartCall dials the customer and rendezvouses the dial with the
// conversational session.
//
// The session is launched first and runs concurrently with the dial, so
// it is already listening when the remote party answers; nothing said in
// the gap between answer and rendezvous is lost. The dial blocks until
// the remote party answers or the attempt definitively fails. On dial
// failure or participant-join timeout the session start is cancelled,
// the room is released, and the error escalates to the caller for
// call-context shutdown; no conversation proceeds without a connected
// party.
func (c *Coordinator) StartCall(ctx context.Context, session Session, ag *agent.Agent) (*Handle, error) {
	md := ag.Metadata()
	if md == nil || md.Dial.To == "" {
		return nil, fmt.Errorf("call: metadata with a dial destination required")
	}

	ctx, span := c.tracer.Start(ctx, "call.start")
	defer span.End()

	room := "call-" + uuid.NewString()
	identity := md.Dial.To

	c.logger.Info("starting call",
		"room", room,
		"to", identity,
		"account_number", md.Customer.AccountNumber,
	)

	c.saveState(ctx, &transcript.CallState{
		Room:          room,
		To:            md.Dial.To,
		AccountNumber: md.Customer.AccountNumber,
		Status:        transcript.CallStatusDialing,
		StartedAt:     time.Now().UTC(),
	})

	// Launch the session before awaiting the dial. Session start must
	// never be sequenced after dial: the remote party may speak the
	// moment they answer.
	sessionCtx, cancelSession := context.WithCancel(ctx)
	sessionStarted := make(chan error, 1)
	go func() {
		sessionStarted <- session.Start(sessionCtx, ag, room)
	}()

	participant, dialErr := c.dialer.CreateOutboundCall(ctx, telephony.OutboundCallRequest{
		RoomName:            room,
		SIPTrunkID:          c.trunkID,
		SIPCallTo:           md.Dial.To,
		ParticipantIdentity: identity,
	})
	if dialErr != nil {
		cancelSession()
		c.metrics.ObserveDial("failed")
		c.abandon(room, "dial_failed")
		span.RecordError(dialErr)
		return nil, fmt.Errorf("call: outbound dial failed: %w", dialErr)
	}
	c.metrics.ObserveDial("answered")
	answeredAt := time.Now().UTC()

	// The dial has answered; make sure the session came up.
	select {
	case err := <-sessionStarted:
		if err != nil {
			cancelSession()
			c.abandon(room, "session_failed")
			return nil, fmt.Errorf("call: session start failed: %w", err)
		}
	case <-ctx.Done():
		cancelSession()
		c.abandon(room, "cancelled")
		return nil, ctx.Err()
	}

	// Bounded wait for the answered leg to appear in the room.
	joinCtx, cancelJoin := context.WithTimeout(ctx, c.joinTimeout)
	defer cancelJoin()
	joined, err := c.rooms.WaitForParticipant(joinCtx, room, identity)
	if err != nil {
		cancelSession()
		c.metrics.ObserveDial("join_timeout")
		c.abandon(room, "join_timeout")
		span.RecordError(err)
		return nil, fmt.Errorf("call: participant rendezvous failed: %w", err)
	}
	if participant != nil && participant.SID != "" && joined.SID == "" {
		joined.SID = participant.SID
	}

	c.saveState(ctx, &transcript.CallState{
		Room:          room,
		To:            md.Dial.To,
		AccountNumber: md.Customer.AccountNumber,
		Status:        transcript.CallStatusActive,
		StartedAt:     answeredAt,
	})

	c.logger.Info("call connected",
		"room", room,
		"participant", joined.Identity,
	)

	return &Handle{
		Room:        room,
		Metadata:    md,
		Agent:       ag,
		Session:     session,
		Participant: joined,
		AnsweredAt:  answeredAt,
	}, nil
}

// abandon releases the room after a failed start and records the outcome.
// Best-effort: the room may never have been created provider-side.
func (c *Coordinator) abandon(room, outcome string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.rooms.DeleteRoom(ctx, room); err != nil {
		c.logger.Warn("failed to release room after aborted start",
			"room", room,
			"error", err,
		)
	}
	c.saveState(ctx, &transcript.CallState{
		Room:    room,
		Status:  transcript.CallStatusEnded,
		Outcome: outcome,
	})
	c.logger.Info("call abandoned", "room", room, "outcome", outcome)
}

func (c *Coordinator) saveState(ctx context.Context, state *transcript.CallState) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveCallState(ctx, state); err != nil {
		c.logger.Warn("failed to save call state", "room", state.Room, "error", err)
	}
}
