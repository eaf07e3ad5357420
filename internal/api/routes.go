package api

import (
	"net/http"

	"github.com/go-chi/chi"
)

// SetupRoutes mounts every gateway route on r. Only /status is behind auth.
func SetupRoutes(r chi.Router, h *Handler, checks *ChecksHandler, auth func(http.Handler) http.Handler, metrics http.Handler) {
	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)

	r.With(auth).Get("/status", h.GetStatus)
	r.Mount("/conversations", h.ConversationRoutes())
	r.Mount("/checks", checks.Routes())
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
}
