package models

// Role of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Conversation is a titled thread of messages.
type Conversation struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// ConversationSummary is the list view of a conversation.
type ConversationSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	UpdatedAt string `json:"updatedAt"`
}

func (c Conversation) Summary() ConversationSummary {
	return ConversationSummary{ID: c.ID, Title: c.Title, UpdatedAt: c.UpdatedAt}
}

type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"-"`
	Role           Role   `json:"role"`
	Content        string `json:"content"`
	CreatedAt      string `json:"createdAt"`
}
