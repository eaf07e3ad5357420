package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/RichardoC/clawd-gateway/internal/llm"
)

// validationError is a client mistake whose message is returned verbatim.
type validationError string

func (e validationError) Error() string { return string(e) }

const (
	errInvalidBody   validationError = "Invalid request body"
	errTitleRequired validationError = "Title is required"
)

// ErrorResponse is the body of every non-2xx JSON response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// writeError maps err onto a status code and error body. Anything not
// recognised is a store failure: it is logged and answered with a generic 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := h.classify(r, err)
	render.Status(r, status)
	render.JSON(w, r, body)
}

func (h *Handler) classify(r *http.Request, err error) (int, ErrorResponse) {
	var (
		invalid  validationError
		upstream *llm.UpstreamError
	)
	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest, ErrorResponse{Error: invalid.Error()}
	case errors.Is(err, llm.ErrContentRequired):
		return http.StatusBadRequest, ErrorResponse{Error: "Content is required"}
	case errors.Is(err, llm.ErrConversationNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "Conversation not found"}
	case errors.As(err, &upstream):
		return http.StatusInternalServerError, ErrorResponse{
			Error:   "Failed to get response from model",
			Details: upstream.Err.Error(),
		}
	default:
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("requestID", middleware.GetReqID(r.Context())),
			zap.Error(err))
		return http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"}
	}
}

// NotFound answers unknown routes
func NotFound(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusNotFound)
	render.JSON(w, r, ErrorResponse{Error: "Not found"})
}

// MethodNotAllowed answers known routes hit with an unsupported method
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusMethodNotAllowed)
	render.JSON(w, r, ErrorResponse{Error: "Method not allowed"})
}
