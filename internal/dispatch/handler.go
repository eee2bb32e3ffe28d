package dispatch

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/collectwise/collections-ai-platform/internal/calldata"
	"github.com/collectwise/collections-ai-platform/pkg/logging"
)

// Handler wires HTTP requests to the dispatch publisher and job store.
type Handler struct {
	publisher *Publisher
	jobs      JobRecorder
	logger    *logging.Logger
}

// NewHandler creates a dispatch handler. jobs may be nil when status
// lookups are disabled.
func NewHandler(publisher *Publisher, jobs JobRecorder, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{publisher: publisher, jobs: jobs, logger: logger}
}

// Create handles POST /v1/dispatches. The body is the call metadata; a
// valid request is accepted for asynchronous processing.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var md calldata.CallMetadata
	if err := json.NewDecoder(r.Body).Decode(&md); err != nil {
		h.logger.Error("failed to decode dispatch request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	dispatchID, err := h.publisher.Enqueue(r.Context(), &md)
	if err != nil {
		if errors.Is(err, ErrInvalidMetadata) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to enqueue dispatch", "error", err)
		http.Error(w, "Failed to enqueue dispatch", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]string{
		"dispatch_id": dispatchID,
		"status":      string(JobStatusPending),
	})
}

// Get handles GET /v1/dispatches/{dispatchID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		http.Error(w, "Dispatch tracking disabled", http.StatusNotFound)
		return
	}

	dispatchID := chi.URLParam(r, "dispatchID")
	job, err := h.jobs.GetJob(r.Context(), dispatchID)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			http.Error(w, "Dispatch not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to fetch dispatch", "error", err, "dispatch_id", dispatchID)
		http.Error(w, "Failed to fetch dispatch", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, job)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
