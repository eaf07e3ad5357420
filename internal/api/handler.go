package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/RichardoC/clawd-gateway/internal/llm"
	"github.com/RichardoC/clawd-gateway/internal/models"
)

// Store is the read/rename/delete surface used directly by the handlers.
// Writes that involve settings or the completion call go through llm.Service.
type Store interface {
	ListConversations(ctx context.Context) ([]models.Conversation, error)
	GetConversationByID(ctx context.Context, id string) (*models.Conversation, error)
	UpdateConversationTitle(ctx context.Context, id, title string) error
	DeleteConversation(ctx context.Context, id string) error
	GetMessagesByConversationID(ctx context.Context, conversationID string) ([]models.Message, error)
	GetStatus(ctx context.Context) (*models.Status, error)
}

type Handler struct {
	store   Store
	service *llm.Service
	logger  *zap.Logger
}

func NewHandler(store Store, service *llm.Service, logger *zap.Logger) *Handler {
	return &Handler{
		store:   store,
		service: service,
		logger:  logger,
	}
}

type CreateConversationRequest struct {
	Title    string                   `json:"title"`
	Settings *models.SettingsOverride `json:"settings"`
}

type UpdateConversationRequest struct {
	Title string `json:"title"`
}

type MessageRequest struct {
	Content  string                   `json:"content"`
	Settings *models.SettingsOverride `json:"settings"`
}

// ConversationRoutes returns the /conversations subtree
func (h *Handler) ConversationRoutes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListConversations)
	r.Post("/", h.CreateConversation)
	r.Patch("/{id}", h.UpdateConversation)
	r.Delete("/{id}", h.DeleteConversation)

	r.Get("/{id}/messages", h.GetMessages)
	r.Post("/{id}/messages", h.PostMessage)

	r.Get("/{id}/settings", h.GetSettings)
	r.Patch("/{id}/settings", h.UpdateSettings)

	return r
}

// ListConversations returns all conversations, most recently updated first
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.store.ListConversations(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	summaries := make([]models.ConversationSummary, 0, len(conversations))
	for _, c := range conversations {
		summaries = append(summaries, c.Summary())
	}

	h.logger.Debug("Retrieved conversations", zap.Int("count", len(summaries)))
	render.JSON(w, r, map[string]interface{}{"conversations": summaries})
}

func (h *Handler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req CreateConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, errInvalidBody)
		return
	}

	conversation, err := h.service.CreateConversation(r.Context(), req.Title, req.Settings)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Debug("Created conversation", zap.String("conversationID", conversation.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]interface{}{"conversation": conversation})
}

// UpdateConversation renames a conversation
func (h *Handler) UpdateConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, errInvalidBody)
		return
	}
	if req.Title == "" {
		h.writeError(w, r, errTitleRequired)
		return
	}

	if err := h.requireConversation(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.store.UpdateConversationTitle(r.Context(), id, req.Title); err != nil {
		h.writeError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]bool{"success": true})
}

// DeleteConversation deletes a conversation with its messages and settings
func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.requireConversation(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.store.DeleteConversation(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]bool{"deleted": true})
}

func (h *Handler) requireConversation(ctx context.Context, id string) error {
	conv, err := h.store.GetConversationByID(ctx, id)
	if err != nil {
		return err
	}
	if conv == nil {
		return llm.ErrConversationNotFound
	}
	return nil
}

// decodeJSON decodes the request body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v interface{}) error {
	err := render.DecodeJSON(r.Body, v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
