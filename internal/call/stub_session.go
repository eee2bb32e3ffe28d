package call

import (
	"context"
	"sync"
	"time"

	"github.com/collectwise/collections-ai-platform/internal/agent"
	"github.com/collectwise/collections-ai-platform/internal/transcript"
	"github.com/collectwise/collections-ai-platform/pkg/logging"
)

// StubSession is a Session without a reasoning engine behind it: it
// greets, records instructed replies into its history, and ends the
// call after a fixed duration. Used by local development and smoke
// tests until the real engine is wired.
type StubSession struct {
	callDuration time.Duration
	logger       *logging.Logger

	mu      sync.Mutex
	history []transcript.Entry
	tools   ToolDispatcher
	done    chan struct{}
	once    sync.Once
}

// NewStubSession creates a stub session that hangs up after duration.
func NewStubSession(duration time.Duration, logger *logging.Logger) *StubSession {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &StubSession{
		callDuration: duration,
		logger:       logger,
		done:         make(chan struct{}),
	}
}

func (s *StubSession) Start(ctx context.Context, a *agent.Agent, room string) error {
	md := a.Metadata()
	s.appendEntry("assistant", "Hello, may I speak with "+md.Customer.Name+"?")
	s.logger.Info("stub session started", "room", room)
	return nil
}

func (s *StubSession) GenerateReply(_ context.Context, instructions string) error {
	s.appendEntry("assistant", instructions)
	return nil
}

func (s *StubSession) BindTools(tools ToolDispatcher) {
	s.mu.Lock()
	s.tools = tools
	s.mu.Unlock()

	go func() {
		timer := time.NewTimer(s.callDuration)
		defer timer.Stop()
		<-timer.C
		if _, err := tools.Dispatch(context.Background(), ToolEndCall, nil); err != nil {
			s.logger.Warn("stub session hangup failed", "error", err)
		}
		s.close()
	}()
}

func (s *StubSession) CurrentSpeech() Speech { return nil }

func (s *StubSession) History() []transcript.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]transcript.Entry(nil), s.history...)
}

func (s *StubSession) Done() <-chan struct{} { return s.done }

func (s *StubSession) appendEntry(role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, transcript.Entry{
		Role:      role,
		Text:      text,
		Timestamp: time.Now().UTC(),
	})
}

func (s *StubSession) close() {
	s.once.Do(func() { close(s.done) })
}
