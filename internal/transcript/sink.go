package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/collectwise/collections-ai-platform/pkg/logging"
)

// Artifact is the durable, write-once transcript of a finished call.
type Artifact struct {
	Room    string    `json:"room"`
	SavedAt time.Time `json:"saved_at"`
	Entries []Entry   `json:"entries"`
}

// Uploader pushes a finished artifact to remote storage. *S3Uploader
// implements it.
type Uploader interface {
	Upload(ctx context.Context, name string, data []byte) error
	Enabled() bool
}

// Sink serializes a call's transcript to disk exactly once at call
// teardown. Registered as the call context's shutdown hook; by the time
// it runs the call is already over, so every failure is only a warning.
type Sink struct {
	dir      string
	room     string
	source   func() []Entry
	uploader Uploader
	logger   *logging.Logger

	once sync.Once
}

// NewSink creates a transcript sink for one call. source supplies the
// ordered conversation history at flush time; uploader may be nil.
func NewSink(dir, room string, source func() []Entry, uploader Uploader, logger *logging.Logger) *Sink {
	if logger == nil {
		logger = logging.Default()
	}
	return &Sink{
		dir:      dir,
		room:     room,
		source:   source,
		uploader: uploader,
		logger:   logger,
	}
}

// Flush writes the transcript artifact. Only the first call does
// anything; every exit path of a call may safely invoke it.
func (s *Sink) Flush(ctx context.Context) {
	if s == nil {
		return
	}
	s.once.Do(func() { s.flush(ctx) })
}

func (s *Sink) flush(ctx context.Context) {
	name := fmt.Sprintf("transcript_%s_%s.json", s.room, time.Now().Format("20060102_150405"))
	path := filepath.Join(s.dir, name)

	artifact := Artifact{
		Room:    s.room,
		SavedAt: time.Now().UTC(),
		Entries: s.source(),
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		s.logger.Warn("failed to serialize transcript", "room", s.room, "error", err)
		return
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.logger.Warn("failed to create transcript dir", "dir", s.dir, "error", err)
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.logger.Warn("failed to save transcript", "room", s.room, "path", path, "error", err)
		return
	}
	s.logger.Info("transcript saved", "room", s.room, "path", path, "turns", len(artifact.Entries))

	if s.uploader != nil && s.uploader.Enabled() {
		if err := s.uploader.Upload(ctx, name, data); err != nil {
			s.logger.Warn("failed to upload transcript", "room", s.room, "error", err)
		}
	}
}
