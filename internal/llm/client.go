package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"github.com/RichardoC/clawd-gateway/internal/models"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Completer turns a transcript into the text of the next assistant turn.
type Completer interface {
	Complete(ctx context.Context, settings models.EffectiveSettings, transcript []models.Message) (string, error)
}

// ProviderConfig selects and authenticates the backing model API.
type ProviderConfig struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
}

// NewModel builds the langchaingo model for the configured provider.
func NewModel(cfg ProviderConfig) (llms.Model, error) {
	switch cfg.Provider {
	case ProviderAnthropic, "":
		opts := []anthropic.Option{
			anthropic.WithToken(cfg.APIKey),
			anthropic.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		return anthropic.New(opts...)
	case ProviderOpenAI:
		opts := []openai.Option{
			openai.WithToken(cfg.APIKey),
			openai.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// LangchainCompleter adapts a langchaingo model to Completer.
type LangchainCompleter struct {
	model              llms.Model
	maxTokens          int
	defaultTemperature float64
}

func NewLangchainCompleter(model llms.Model, maxTokens int, defaultTemperature float64) *LangchainCompleter {
	return &LangchainCompleter{
		model:              model,
		maxTokens:          maxTokens,
		defaultTemperature: defaultTemperature,
	}
}

// Complete sends the whole transcript in one call. No retries, no timeout
// beyond ctx.
func (c *LangchainCompleter) Complete(ctx context.Context, settings models.EffectiveSettings, transcript []models.Message) (string, error) {
	content := make([]llms.MessageContent, 0, len(transcript)+1)
	// The providers reject an empty system block.
	if settings.SystemPrompt != nil && *settings.SystemPrompt != "" {
		content = append(content, llms.TextParts(schema.ChatMessageTypeSystem, *settings.SystemPrompt))
	}
	for _, msg := range transcript {
		content = append(content, llms.TextParts(messageType(msg.Role), msg.Content))
	}

	temperature := c.defaultTemperature
	if settings.Temperature != nil {
		temperature = *settings.Temperature
	}
	opts := []llms.CallOption{
		llms.WithModel(settings.Model),
		llms.WithTemperature(temperature),
	}
	if c.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.maxTokens))
	}

	resp, err := c.model.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	var b strings.Builder
	for _, choice := range resp.Choices {
		if choice != nil {
			b.WriteString(choice.Content)
		}
	}
	return b.String(), nil
}

func messageType(role models.Role) schema.ChatMessageType {
	if role == models.RoleAssistant {
		return schema.ChatMessageTypeAI
	}
	return schema.ChatMessageTypeHuman
}
