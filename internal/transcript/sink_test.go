package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/collectwise/collections-ai-platform/pkg/logging"
)

func TestSinkFlushWritesArtifactOnce(t *testing.T) {
	dir := t.TempDir()
	flushCount := 0
	source := func() []Entry {
		flushCount++
		return []Entry{
			{Role: "assistant", Text: "Hello"},
			{Role: "user", Text: "Stop calling me"},
		}
	}

	sink := NewSink(dir, "call-42", source, nil, logging.NewWithWriter(&bytes.Buffer{}, "info"))
	sink.Flush(context.Background())
	sink.Flush(context.Background()) // second flush is a no-op

	if flushCount != 1 {
		t.Fatalf("expected exactly one flush, got %d", flushCount)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "transcript_call-42_*.json"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one artifact, got %v (err %v)", matches, err)
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatal(err)
	}
	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		t.Fatalf("artifact not valid JSON: %v", err)
	}
	if artifact.Room != "call-42" || len(artifact.Entries) != 2 {
		t.Fatalf("unexpected artifact: %+v", artifact)
	}
	if artifact.Entries[1].Text != "Stop calling me" {
		t.Errorf("entry order lost: %+v", artifact.Entries)
	}
}

func TestSinkFlushWriteFailureIsWarning(t *testing.T) {
	var logBuf bytes.Buffer
	// A file where the directory should be makes MkdirAll fail.
	dir := filepath.Join(t.TempDir(), "blocked")
	if err := os.WriteFile(dir, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	sink := NewSink(dir, "call-42", func() []Entry { return nil }, nil, logging.NewWithWriter(&logBuf, "warn"))
	sink.Flush(context.Background()) // must not panic or propagate

	if !strings.Contains(logBuf.String(), "failed to create transcript dir") {
		t.Errorf("expected warning in log, got %q", logBuf.String())
	}
}

type fakeS3 struct {
	keys []string
	err  error
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.keys = append(f.keys, *params.Key)
	return &s3.PutObjectOutput{}, nil
}

func TestSinkUploadsWhenConfigured(t *testing.T) {
	fake := &fakeS3{}
	uploader := NewS3Uploader(fake, "call-transcripts")

	sink := NewSink(t.TempDir(), "call-42", func() []Entry { return nil }, uploader,
		logging.NewWithWriter(&bytes.Buffer{}, "info"))
	sink.Flush(context.Background())

	if len(fake.keys) != 1 {
		t.Fatalf("expected one upload, got %d", len(fake.keys))
	}
	if !strings.HasPrefix(fake.keys[0], "transcripts/v1/by-date/") {
		t.Errorf("unexpected key %q", fake.keys[0])
	}
	if !strings.Contains(fake.keys[0], "transcript_call-42_") {
		t.Errorf("key missing artifact name: %q", fake.keys[0])
	}
}

func TestSinkUploadFailureIsWarning(t *testing.T) {
	var logBuf bytes.Buffer
	uploader := NewS3Uploader(&fakeS3{err: errors.New("bucket gone")}, "call-transcripts")

	sink := NewSink(t.TempDir(), "call-42", func() []Entry { return nil }, uploader,
		logging.NewWithWriter(&logBuf, "warn"))
	sink.Flush(context.Background())

	if !strings.Contains(logBuf.String(), "failed to upload transcript") {
		t.Errorf("expected upload warning, got %q", logBuf.String())
	}
}

func TestS3UploaderDisabled(t *testing.T) {
	uploader := NewS3Uploader(nil, "")
	if uploader.Enabled() {
		t.Fatal("uploader without bucket/client must be disabled")
	}
	if err := uploader.Upload(context.Background(), "x.json", nil); err != nil {
		t.Fatalf("disabled upload must be a no-op, got %v", err)
	}
}
