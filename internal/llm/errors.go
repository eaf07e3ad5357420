package llm

import (
	"errors"
	"fmt"
)

// Sentinel errors for message orchestration
var (
	// ErrConversationNotFound indicates the target conversation does not exist
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrContentRequired indicates the message body had no content
	ErrContentRequired = errors.New("content is required")

	// ErrEmptyCompletion indicates the completion call returned no choices
	ErrEmptyCompletion = errors.New("completion returned no choices")

	// ErrUnknownProvider indicates an unsupported LLM_PROVIDER value
	ErrUnknownProvider = errors.New("unknown LLM provider")
)

// UpstreamError wraps a failed completion call. The user message of the
// request has already been persisted when this is returned.
type UpstreamError struct {
	Model string
	Err   error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("completion with model %s failed: %v", e.Model, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
