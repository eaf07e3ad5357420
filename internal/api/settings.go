package api

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"

	"github.com/RichardoC/clawd-gateway/internal/models"
)

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.Settings(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"settings": settings})
}

// UpdateSettings merges the supplied fields over the stored settings
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req models.SettingsOverride
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, errInvalidBody)
		return
	}

	settings, err := h.service.UpdateSettings(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"settings": settings})
}
