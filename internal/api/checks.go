package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"
	"go.uber.org/zap"
)

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ChecksHandler is the handler responsible for liveness and readiness checks
type ChecksHandler struct {
	store  Pinger
	logger *zap.Logger
}

func NewChecksHandler(store Pinger, logger *zap.Logger) *ChecksHandler {
	return &ChecksHandler{store: store, logger: logger}
}

// Routes returns the routes for the ChecksHandler
func (e *ChecksHandler) Routes() *chi.Mux {
	router := chi.NewRouter()
	router.Get("/liveness", e.Liveness)
	router.Get("/readiness", e.Readiness)
	return router
}

// Liveness is a check that describes if the application has started.
// It does not touch the database; a store outage only fails readiness.
func (e *ChecksHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	e.writeOK(w)
}

// Readiness is a check if application can handle requests
func (e *ChecksHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if err := e.store.Ping(r.Context()); err != nil {
		e.logger.Error("readiness check failed", zap.Error(err))
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	e.writeOK(w)
}

func (e *ChecksHandler) writeOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		e.logger.Error("Error writing OK to response body", zap.Error(err))
	}
}
