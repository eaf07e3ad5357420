package api

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"go.uber.org/zap"
)

// GetMessages returns the transcript of a conversation in chronological order
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.requireConversation(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	messages, err := h.store.GetMessagesByConversationID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{"messages": messages})
}

// PostMessage sends a user message and returns it with the assistant reply
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req MessageRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, errInvalidBody)
		return
	}

	exchange, err := h.service.SendMessage(r.Context(), id, req.Content, req.Settings)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Debug("Message exchanged",
		zap.String("conversationID", id),
		zap.String("responseID", exchange.Response.ID))
	render.JSON(w, r, exchange)
}
