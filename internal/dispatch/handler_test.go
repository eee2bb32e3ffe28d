package dispatch

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/collectwise/collections-ai-platform/pkg/logging"
)

func newTestRouter(t *testing.T, jobs *stubJobRecorder) (*chi.Mux, *stubQueue) {
	t.Helper()
	queue := &stubQueue{}
	var recorder JobRecorder
	if jobs != nil {
		recorder = jobs
	}
	publisher := NewPublisher(queue, recorder, logging.Default())
	handler := NewHandler(publisher, recorder, logging.Default())

	r := chi.NewRouter()
	r.Post("/v1/dispatches", handler.Create)
	r.Get("/v1/dispatches/{dispatchID}", handler.Get)
	return r, queue
}

func TestHandler_CreateAcceptsDispatch(t *testing.T) {
	jobs := &stubJobRecorder{}
	router, queue := newTestRouter(t, jobs)

	body, _ := json.Marshal(testCallMetadata())
	req := httptest.NewRequest(http.MethodPost, "/v1/dispatches", strings.NewReader(string(body)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["dispatch_id"] == "" {
		t.Fatal("expected a dispatch_id")
	}
	if resp["status"] != string(JobStatusPending) {
		t.Fatalf("status: got %s", resp["status"])
	}
	if len(queue.sent) != 1 {
		t.Fatalf("expected 1 enqueued dispatch, got %d", len(queue.sent))
	}
}

func TestHandler_CreateRejectsMissingDialTarget(t *testing.T) {
	router, queue := newTestRouter(t, nil)

	md := testCallMetadata()
	md.Dial.To = ""
	body, _ := json.Marshal(md)

	req := httptest.NewRequest(http.MethodPost, "/v1/dispatches", strings.NewReader(string(body)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", rec.Code)
	}
	if len(queue.sent) != 0 {
		t.Fatal("invalid dispatch must not be enqueued")
	}
}

func TestHandler_CreateRejectsBadJSON(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/dispatches", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", rec.Code)
	}
}

func TestHandler_GetReturnsJob(t *testing.T) {
	jobs := &stubJobRecorder{pending: []*JobRecord{{
		DispatchID: "disp-9",
		Status:     JobStatusCompleted,
		Room:       "call-abc",
		Outcome:    "completed",
	}}}
	router, _ := newTestRouter(t, jobs)

	req := httptest.NewRequest(http.MethodGet, "/v1/dispatches/disp-9", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var job JobRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if job.Status != JobStatusCompleted || job.Room != "call-abc" {
		t.Fatalf("unexpected job: %+v", job)
	}
}

func TestHandler_GetUnknownDispatch(t *testing.T) {
	router, _ := newTestRouter(t, &stubJobRecorder{})

	req := httptest.NewRequest(http.MethodGet, "/v1/dispatches/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d", rec.Code)
	}
}
