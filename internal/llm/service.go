package llm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/RichardoC/clawd-gateway/internal/db"
	"github.com/RichardoC/clawd-gateway/internal/ids"
	"github.com/RichardoC/clawd-gateway/internal/metrics"
	"github.com/RichardoC/clawd-gateway/internal/models"
)

// DefaultTitle is used when a conversation is created without one.
const DefaultTitle = "New conversation"

// Store is the subset of the data-access layer the service needs.
type Store interface {
	CreateConversation(ctx context.Context, id, title, createdAt string) (*models.Conversation, error)
	GetConversationByID(ctx context.Context, id string) (*models.Conversation, error)
	UpdateConversationTimestamp(ctx context.Context, id string) error
	GetMessagesByConversationID(ctx context.Context, conversationID string) ([]models.Message, error)
	CreateMessage(ctx context.Context, id, conversationID string, role models.Role, content, createdAt string) (*models.Message, error)
	GetSettingsByConversationID(ctx context.Context, conversationID string) (*models.Settings, error)
	CreateSettings(ctx context.Context, s models.Settings) (*models.Settings, error)
	UpdateSettings(ctx context.Context, s models.Settings) error
	GetStatus(ctx context.Context) (*models.Status, error)
	UpdateStatus(ctx context.Context, st models.Status) error
}

// Exchange is the result of a successful send.
type Exchange struct {
	Message  models.Message `json:"message"`
	Response models.Message `json:"response"`
	Status   models.Status  `json:"status"`
}

type Service struct {
	store     Store
	completer Completer
	defaults  Defaults
	agent     string
	logger    *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

type Option func(*Service)

func WithDefaults(d Defaults) Option {
	return func(s *Service) { s.defaults = d }
}

// WithAgent sets the agent identifier written into the status row.
func WithAgent(agent string) Option {
	return func(s *Service) { s.agent = agent }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock replaces the clock used for message timestamps and latency.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store Store, completer Completer, opts ...Option) *Service {
	s := &Service{
		store:     store,
		completer: completer,
		agent:     db.DefaultAgent,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Defaults returns the fallback settings of the service.
func (s *Service) Defaults() Defaults {
	return s.defaults
}

// CreateConversation creates a conversation together with its settings row.
func (s *Service) CreateConversation(ctx context.Context, title string, override *models.SettingsOverride) (*models.Conversation, error) {
	if title == "" {
		title = DefaultTitle
	}
	conv, err := s.store.CreateConversation(ctx, ids.NewConversationID(), title, db.FormatTimestamp(s.now()))
	if err != nil {
		return nil, err
	}

	eff := ResolveSettings(override, nil, s.defaults)
	if _, err := s.store.CreateSettings(ctx, models.Settings{
		ConversationID: conv.ID,
		Model:          eff.Model,
		SystemPrompt:   eff.SystemPrompt,
		Temperature:    eff.Temperature,
	}); err != nil {
		return nil, err
	}
	return conv, nil
}

// Settings returns the effective settings of a conversation.
func (s *Service) Settings(ctx context.Context, conversationID string) (*models.EffectiveSettings, error) {
	if err := s.requireConversation(ctx, conversationID); err != nil {
		return nil, err
	}
	stored, err := s.store.GetSettingsByConversationID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	eff := ResolveSettings(nil, stored, s.defaults)
	return &eff, nil
}

// UpdateSettings merges override over the stored settings and persists the result.
func (s *Service) UpdateSettings(ctx context.Context, conversationID string, override *models.SettingsOverride) (*models.EffectiveSettings, error) {
	if err := s.requireConversation(ctx, conversationID); err != nil {
		return nil, err
	}
	stored, err := s.store.GetSettingsByConversationID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	eff := ResolveSettings(override, stored, s.defaults)
	row := models.Settings{
		ConversationID: conversationID,
		Model:          eff.Model,
		SystemPrompt:   eff.SystemPrompt,
		Temperature:    eff.Temperature,
	}
	if stored == nil {
		_, err = s.store.CreateSettings(ctx, row)
	} else {
		err = s.store.UpdateSettings(ctx, row)
	}
	if err != nil {
		return nil, err
	}
	return &eff, nil
}

// SendMessage appends a user message, asks the completer for a reply and
// records the outcome in the status row.
//
// The user message is persisted before the completion call and is kept
// when the call fails; in that case an *UpstreamError is returned.
func (s *Service) SendMessage(ctx context.Context, conversationID, content string, override *models.SettingsOverride) (*Exchange, error) {
	if content == "" {
		return nil, ErrContentRequired
	}
	if err := s.requireConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	stored, err := s.store.GetSettingsByConversationID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	settings := ResolveSettings(override, stored, s.defaults)

	history, err := s.store.GetMessagesByConversationID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	userMsg, err := s.store.CreateMessage(ctx, ids.NewMessageID(), conversationID, models.RoleUser, content, s.timestampAfter(history))
	if err != nil {
		return nil, err
	}
	s.metrics.MessagePersisted(string(models.RoleUser))

	transcript, err := s.store.GetMessagesByConversationID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	start := s.now()
	reply, callErr := s.completer.Complete(ctx, settings, transcript)
	elapsed := s.now().Sub(start)
	s.metrics.ObserveCompletion(settings.Model, elapsed, callErr)

	if callErr != nil {
		s.logger.Warn("completion failed",
			zap.String("conversationID", conversationID),
			zap.String("model", settings.Model),
			zap.Error(callErr))
		if err := s.store.UpdateStatus(ctx, models.Status{
			ActiveModel: &settings.Model,
			ActiveAgent: s.agent,
			LastError:   models.StringPtr(callErr.Error()),
		}); err != nil {
			return nil, err
		}
		return nil, &UpstreamError{Model: settings.Model, Err: callErr}
	}

	assistantMsg, err := s.store.CreateMessage(ctx, ids.NewMessageID(), conversationID, models.RoleAssistant, reply, s.timestampAfter(transcript))
	if err != nil {
		return nil, err
	}
	s.metrics.MessagePersisted(string(models.RoleAssistant))

	if err := s.store.UpdateConversationTimestamp(ctx, conversationID); err != nil {
		return nil, err
	}
	if err := s.store.UpdateStatus(ctx, models.Status{
		ActiveModel:    &settings.Model,
		ActiveAgent:    s.agent,
		LastResponseMs: models.Int64Ptr(elapsed.Milliseconds()),
	}); err != nil {
		return nil, err
	}
	status, err := s.store.GetStatus(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Info("completion succeeded",
		zap.String("conversationID", conversationID),
		zap.String("model", settings.Model),
		zap.Duration("elapsed", elapsed),
		zap.Int("transcriptLen", len(transcript)))

	return &Exchange{
		Message:  *userMsg,
		Response: *assistantMsg,
		Status:   *status,
	}, nil
}

func (s *Service) requireConversation(ctx context.Context, conversationID string) error {
	conv, err := s.store.GetConversationByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv == nil {
		return ErrConversationNotFound
	}
	return nil
}

// timestampAfter returns the current time, moved forward to one
// millisecond past the newest message when the clock has not advanced,
// so created_at strictly increases within a conversation.
func (s *Service) timestampAfter(transcript []models.Message) string {
	now := s.now().UTC().Truncate(time.Millisecond)
	if n := len(transcript); n > 0 {
		last, err := time.Parse(db.TimestampLayout, transcript[n-1].CreatedAt)
		if err == nil && !now.After(last) {
			now = last.Add(time.Millisecond)
		}
	}
	return db.FormatTimestamp(now)
}
