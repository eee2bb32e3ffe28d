// Package router assembles the HTTP surface of the dispatch API.
package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/collectwise/collections-ai-platform/internal/dispatch"
	httpmiddleware "github.com/collectwise/collections-ai-platform/internal/http/middleware"
	"github.com/collectwise/collections-ai-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger          *logging.Logger
	DispatchHandler *dispatch.Handler
	// AdminAuthSecret signs the JWTs required on dispatch routes.
	AdminAuthSecret string
	MetricsHandler  http.Handler
	// DispatchRateLimit caps dispatch creations per second per client IP.
	// Zero disables limiting.
	DispatchRateLimit float64
	DispatchRateBurst int
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", healthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.DispatchHandler != nil {
		r.Route("/v1/dispatches", func(v1 chi.Router) {
			v1.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			if cfg.DispatchRateLimit > 0 {
				v1.With(httpmiddleware.RateLimit(cfg.DispatchRateLimit, cfg.DispatchRateBurst)).
					Post("/", cfg.DispatchHandler.Create)
			} else {
				v1.Post("/", cfg.DispatchHandler.Create)
			}
			v1.Get("/{dispatchID}", cfg.DispatchHandler.Get)
		})
	}

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
