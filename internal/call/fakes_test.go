package call

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/collectwise/collections-ai-platform/internal/agent"
	"github.com/collectwise/collections-ai-platform/internal/calldata"
	"github.com/collectwise/collections-ai-platform/internal/events"
	"github.com/collectwise/collections-ai-platform/internal/telephony"
	"github.com/collectwise/collections-ai-platform/internal/transcript"
)

func testMetadata() *calldata.CallMetadata {
	return &calldata.CallMetadata{
		Customer: calldata.Customer{Name: "Alex Johnson", AccountNumber: "5033-4329"},
		Debt: calldata.Debt{
			Amount:   150.75,
			Creditor: "Bank of America",
			Age:      "2 months",
			Type:     "Credit Card",
			Status:   calldata.DebtStatusUnpaid,
		},
		Dial: calldata.Dial{To: "+15551234567", TransferTo: "+15557654321"},
	}
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, events.Event) {}

type fakeSpeech struct {
	mu          sync.Mutex
	playoutDone chan struct{}
	waited      bool
}

func newFakeSpeech() *fakeSpeech {
	return &fakeSpeech{playoutDone: make(chan struct{})}
}

func (s *fakeSpeech) finish() { close(s.playoutDone) }

func (s *fakeSpeech) WaitForPlayout(ctx context.Context) error {
	s.mu.Lock()
	s.waited = true
	s.mu.Unlock()
	select {
	case <-s.playoutDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *fakeSpeech) waitedFor() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waited
}

type fakeSession struct {
	mu       sync.Mutex
	started  atomic.Bool
	startErr error
	// startGate, when non-nil, blocks Start until released.
	startGate chan struct{}
	replies   []string
	speech    Speech
	history   []transcript.Entry
	ctxAtEnd  context.Context
	tools     ToolDispatcher
	doneCh    chan struct{}
}

func (s *fakeSession) Start(ctx context.Context, _ *agent.Agent, _ string) error {
	if s.startGate != nil {
		select {
		case <-s.startGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	s.ctxAtEnd = ctx
	s.mu.Unlock()
	s.started.Store(true)
	return s.startErr
}

func (s *fakeSession) GenerateReply(_ context.Context, instructions string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, instructions)
	return nil
}

func (s *fakeSession) BindTools(tools ToolDispatcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools = tools
}

func (s *fakeSession) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doneCh == nil {
		s.doneCh = make(chan struct{})
	}
	return s.doneCh
}

func (s *fakeSession) CurrentSpeech() Speech {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speech
}

func (s *fakeSession) History() []transcript.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history
}

func (s *fakeSession) repliesSoFar() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.replies...)
}

type fakeDialer struct {
	mu  sync.Mutex
	err error
	// sessionStartedAtDial records whether the session was already live
	// when the dial was issued.
	sessionStartedAtDial bool
	session              *fakeSession
	calls                int
}

func (d *fakeDialer) CreateOutboundCall(_ context.Context, req telephony.OutboundCallRequest) (*telephony.Participant, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.session != nil {
		d.sessionStartedAtDial = d.session.started.Load()
	}
	if d.err != nil {
		return nil, d.err
	}
	return &telephony.Participant{Identity: req.ParticipantIdentity, SID: "PA_test"}, nil
}

type fakeRooms struct {
	mu        sync.Mutex
	deleted   []string
	deleteErr error
	joinErr   error
	joinCalls int
}

func (r *fakeRooms) DeleteRoom(_ context.Context, room string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, room)
	return r.deleteErr
}

func (r *fakeRooms) WaitForParticipant(ctx context.Context, _, identity string) (*telephony.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.joinCalls++
	if r.joinErr != nil {
		return nil, r.joinErr
	}
	return &telephony.Participant{Identity: identity}, nil
}

func (r *fakeRooms) deletedRooms() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.deleted...)
}

func (r *fakeRooms) joinAttempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.joinCalls
}

type fakeTransfers struct {
	mu        sync.Mutex
	err       error
	transfers []string
}

func (t *fakeTransfers) TransferParticipant(_ context.Context, _, _, transferTo string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	t.transfers = append(t.transfers, transferTo)
	return nil
}

func (t *fakeTransfers) completed() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.transfers...)
}

func newTestAgent() *agent.Agent {
	return newAgentWith(testMetadata())
}

func newAgentWith(md *calldata.CallMetadata) *agent.Agent {
	return agent.New(md, nopRecorder{}, nil, nil)
}

func testHandle(session *fakeSession) *Handle {
	return &Handle{
		Room:        "call-test",
		Metadata:    testMetadata(),
		Agent:       newTestAgent(),
		Session:     session,
		Participant: &telephony.Participant{Identity: "+15551234567"},
	}
}
