package models

// Settings is the stored per-conversation model configuration.
// SystemPrompt and Temperature are nil when the column is NULL.
type Settings struct {
	ConversationID string   `json:"-"`
	Model          string   `json:"model"`
	SystemPrompt   *string  `json:"systemPrompt"`
	Temperature    *float64 `json:"temperature"`
}

// SettingsOverride carries settings supplied with a request.
// A nil field means the caller did not supply it.
type SettingsOverride struct {
	Model        *string  `json:"model,omitempty"`
	SystemPrompt *string  `json:"systemPrompt,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
}

// EffectiveSettings is the configuration used for one completion call.
type EffectiveSettings struct {
	Model        string   `json:"model"`
	SystemPrompt *string  `json:"systemPrompt"`
	Temperature  *float64 `json:"temperature"`
}
