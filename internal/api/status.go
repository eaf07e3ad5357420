package api

import (
	"net/http"

	"github.com/go-chi/render"
)

// GetStatus returns the last completion's model, agent, latency and error
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.store.GetStatus(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, status)
}
