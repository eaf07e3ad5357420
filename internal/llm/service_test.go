package llm_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/RichardoC/clawd-gateway/internal/db"
	"github.com/RichardoC/clawd-gateway/internal/llm"
	"github.com/RichardoC/clawd-gateway/internal/metrics"
	"github.com/RichardoC/clawd-gateway/internal/models"
)

const defaultModel = "claude-3-5-sonnet-20241022"

type fakeCompleter struct {
	reply      string
	err        error
	calls      int
	settings   models.EffectiveSettings
	transcript []models.Message
}

func (f *fakeCompleter) Complete(_ context.Context, settings models.EffectiveSettings, transcript []models.Message) (string, error) {
	f.calls++
	f.settings = settings
	f.transcript = transcript
	return f.reply, f.err
}

// stepClock advances by step on every reading.
type stepClock struct {
	t    time.Time
	step time.Duration
}

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

type fixture struct {
	store     *db.Database
	completer *fakeCompleter
	service   *llm.Service
	clock     *stepClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := db.New(filepath.Join(t.TempDir(), "clawd.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := &fixture{
		store:     store,
		completer: &fakeCompleter{reply: "Hi! How can I help?"},
		clock:     &stepClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), step: 0},
	}
	f.service = llm.New(store, f.completer,
		llm.WithDefaults(llm.Defaults{Model: defaultModel, Temperature: models.Float64Ptr(0.7)}),
		llm.WithAgent("clawd-default"),
		llm.WithLogger(zaptest.NewLogger(t)),
		llm.WithMetrics(metrics.New()),
		llm.WithClock(f.clock.now),
	)
	return f
}

func (f *fixture) newConversation(t *testing.T, override *models.SettingsOverride) string {
	t.Helper()
	conv, err := f.service.CreateConversation(context.Background(), "Test", override)
	require.NoError(t, err)
	return conv.ID
}

func TestCreateConversationDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.service.CreateConversation(ctx, "", nil)
	require.NoError(t, err)
	assert.Equal(t, llm.DefaultTitle, conv.Title)
	assert.True(t, strings.HasPrefix(conv.ID, "conv_"))

	stored, err := f.store.GetSettingsByConversationID(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, defaultModel, stored.Model)
	assert.Nil(t, stored.SystemPrompt)
	assert.Equal(t, 0.7, *stored.Temperature)
}

func TestCreateConversationWithSettings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.newConversation(t, &models.SettingsOverride{
		SystemPrompt: models.StringPtr("pirate"),
		Temperature:  models.Float64Ptr(0),
	})

	stored, err := f.store.GetSettingsByConversationID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, defaultModel, stored.Model)
	assert.Equal(t, "pirate", *stored.SystemPrompt)
	assert.Equal(t, 0.0, *stored.Temperature)
}

func TestSendMessageSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.newConversation(t, nil)
	f.clock.step = 5 * time.Millisecond

	ex, err := f.service.SendMessage(ctx, id, "Hello", nil)
	require.NoError(t, err)

	assert.Equal(t, "Hello", ex.Message.Content)
	assert.Equal(t, models.RoleUser, ex.Message.Role)
	assert.Equal(t, models.RoleAssistant, ex.Response.Role)
	assert.Equal(t, "Hi! How can I help?", ex.Response.Content)
	require.NotNil(t, ex.Status.ActiveModel)
	assert.Equal(t, defaultModel, *ex.Status.ActiveModel)
	assert.Equal(t, "clawd-default", ex.Status.ActiveAgent)
	require.NotNil(t, ex.Status.LastResponseMs)
	assert.Equal(t, int64(5), *ex.Status.LastResponseMs)
	assert.Nil(t, ex.Status.LastError)

	require.Len(t, f.completer.transcript, 1)
	assert.Equal(t, "Hello", f.completer.transcript[0].Content)

	msgs, err := f.store.GetMessagesByConversationID(ctx, id)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, ex.Message.ID, msgs[0].ID)
	assert.Equal(t, ex.Response.ID, msgs[1].ID)
	assert.Less(t, msgs[0].CreatedAt, msgs[1].CreatedAt)

	conv, err := f.store.GetConversationByID(ctx, id)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, conv.UpdatedAt, msgs[1].CreatedAt)
}

func TestSendMessageReplaysWholeTranscript(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.newConversation(t, nil)

	_, err := f.service.SendMessage(ctx, id, "one", nil)
	require.NoError(t, err)
	_, err = f.service.SendMessage(ctx, id, "two", nil)
	require.NoError(t, err)

	require.Len(t, f.completer.transcript, 3)
	assert.Equal(t, "one", f.completer.transcript[0].Content)
	assert.Equal(t, models.RoleAssistant, f.completer.transcript[1].Role)
	assert.Equal(t, "two", f.completer.transcript[2].Content)
}

func TestSendMessageTimestampsStrictlyIncrease(t *testing.T) {
	// Frozen clock: every write happens at the same instant.
	f := newFixture(t)
	ctx := context.Background()
	id := f.newConversation(t, nil)

	for i := 0; i < 3; i++ {
		_, err := f.service.SendMessage(ctx, id, "msg", nil)
		require.NoError(t, err)
	}

	msgs, err := f.store.GetMessagesByConversationID(ctx, id)
	require.NoError(t, err)
	require.Len(t, msgs, 6)
	for i := 1; i < len(msgs); i++ {
		assert.Less(t, msgs[i-1].CreatedAt, msgs[i].CreatedAt)
	}
}

func TestSendMessageOverridesModel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.newConversation(t, nil)

	ex, err := f.service.SendMessage(ctx, id, "Hello", &models.SettingsOverride{Model: models.StringPtr("X")})
	require.NoError(t, err)
	assert.Equal(t, "X", f.completer.settings.Model)
	assert.Equal(t, 0.7, *f.completer.settings.Temperature)
	assert.Equal(t, "X", *ex.Status.ActiveModel)

	// The override is per request and is not persisted.
	_, err = f.service.SendMessage(ctx, id, "again", nil)
	require.NoError(t, err)
	assert.Equal(t, defaultModel, f.completer.settings.Model)
}

func TestSendMessageConversationNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.SendMessage(ctx, "conv_missing", "Hello", nil)
	assert.ErrorIs(t, err, llm.ErrConversationNotFound)
	assert.Zero(t, f.completer.calls)

	msgs, err := f.store.GetMessagesByConversationID(ctx, "conv_missing")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSendMessageContentRequired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.newConversation(t, nil)

	_, err := f.service.SendMessage(ctx, id, "", nil)
	assert.ErrorIs(t, err, llm.ErrContentRequired)
	assert.Zero(t, f.completer.calls)

	msgs, err := f.store.GetMessagesByConversationID(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSendMessageChecksContentBeforeConversation(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.SendMessage(context.Background(), "conv_missing", "", nil)
	assert.ErrorIs(t, err, llm.ErrContentRequired)
	assert.Zero(t, f.completer.calls)
}

func TestSendMessageUpstreamFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.newConversation(t, nil)
	f.completer.err = errors.New("overloaded")

	_, err := f.service.SendMessage(ctx, id, "Hello", nil)
	var upstream *llm.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, defaultModel, upstream.Model)
	assert.EqualError(t, upstream.Err, "overloaded")

	msgs, err := f.store.GetMessagesByConversationID(ctx, id)
	require.NoError(t, err)
	require.Len(t, msgs, 1, "user message is kept")
	assert.Equal(t, models.RoleUser, msgs[0].Role)

	st, err := f.store.GetStatus(ctx)
	require.NoError(t, err)
	require.NotNil(t, st.LastError)
	assert.Equal(t, "overloaded", *st.LastError)
	assert.Nil(t, st.LastResponseMs)
	assert.Equal(t, defaultModel, *st.ActiveModel)
	assert.Equal(t, "clawd-default", st.ActiveAgent)
}

func TestSendMessageClearsPreviousError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.newConversation(t, nil)

	f.completer.err = errors.New("overloaded")
	_, err := f.service.SendMessage(ctx, id, "Hello", nil)
	require.Error(t, err)

	f.completer.err = nil
	ex, err := f.service.SendMessage(ctx, id, "Hello again", nil)
	require.NoError(t, err)
	assert.Nil(t, ex.Status.LastError)
	assert.NotNil(t, ex.Status.LastResponseMs)
}

func TestSettingsUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.newConversation(t, nil)

	eff, err := f.service.UpdateSettings(ctx, id, &models.SettingsOverride{SystemPrompt: models.StringPtr("terse")})
	require.NoError(t, err)
	assert.Equal(t, defaultModel, eff.Model)
	assert.Equal(t, "terse", *eff.SystemPrompt)

	got, err := f.service.Settings(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, eff, got)

	_, err = f.service.SendMessage(ctx, id, "Hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "terse", *f.completer.settings.SystemPrompt)

	_, err = f.service.Settings(ctx, "conv_missing")
	assert.ErrorIs(t, err, llm.ErrConversationNotFound)
	_, err = f.service.UpdateSettings(ctx, "conv_missing", nil)
	assert.ErrorIs(t, err, llm.ErrConversationNotFound)
}

func TestSettingsUpdateCreatesMissingRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.CreateConversation(ctx, "conv_legacy", "Legacy", db.FormatTimestamp(time.Now()))
	require.NoError(t, err)

	eff, err := f.service.UpdateSettings(ctx, "conv_legacy", &models.SettingsOverride{Model: models.StringPtr("m2")})
	require.NoError(t, err)
	assert.Equal(t, "m2", eff.Model)

	stored, err := f.store.GetSettingsByConversationID(ctx, "conv_legacy")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "m2", stored.Model)
}
