package db

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/RichardoC/clawd-gateway/internal/models"
)

// DefaultAgent is written into the status row when it is first created.
const DefaultAgent = "clawd-default"

// TimestampLayout is the ISO-8601 layout of every stored timestamp.
// Fixed width, so lexical order equals chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TEXT NOT NULL,
    FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation
    ON messages(conversation_id, created_at);

CREATE TABLE IF NOT EXISTS settings (
    conversation_id TEXT PRIMARY KEY,
    model TEXT NOT NULL,
    system_prompt TEXT,
    temperature REAL,
    FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS status (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    active_model TEXT,
    active_agent TEXT,
    last_response_ms INTEGER,
    last_error TEXT
);`

// Database is the gateway's store handle. It is created once at startup
// and handed to every component that needs it.
type Database struct {
	db    *sql.DB
	now   func() time.Time
	agent string
}

type Option func(*Database)

// WithClock replaces the wall clock used for updated_at refreshes.
func WithClock(now func() time.Time) Option {
	return func(d *Database) {
		d.now = now
	}
}

// WithAgent sets the agent recorded when the status row is bootstrapped.
func WithAgent(agent string) Option {
	return func(d *Database) {
		if agent != "" {
			d.agent = agent
		}
	}
}

// New opens (creating if needed) the SQLite file at dbPath, applies the
// schema and makes sure the status row exists.
func New(dbPath string, opts ...Option) (*Database, error) {
	d := &Database{
		now:   time.Now,
		agent: DefaultAgent,
	}
	for _, opt := range opts {
		opt(d)
	}

	conn, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %s", dbPath)
	}
	// A single connection keeps PRAGMAs and :memory: databases consistent
	// and serializes writers.
	conn.SetMaxOpenConns(1)
	d.db = conn

	if err := d.init(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}
	return d, nil
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=1&_busy_timeout=5000"
}

func (d *Database) init(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to apply schema")
	}
	_, err := d.db.ExecContext(ctx, `
        INSERT OR IGNORE INTO status (id, active_model, active_agent, last_response_ms, last_error)
        VALUES (1, NULL, ?, NULL, NULL)`, d.agent)
	return errors.Wrap(err, "failed to bootstrap status row")
}

// Ping checks the connection is usable.
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *Database) Close() error {
	return d.db.Close()
}

// Now returns the store clock's current time as a stored timestamp.
func (d *Database) Now() string {
	return FormatTimestamp(d.now())
}

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// CreateConversation inserts a conversation whose updated_at equals createdAt.
// A duplicate id is returned as a write error.
func (d *Database) CreateConversation(ctx context.Context, id, title, createdAt string) (*models.Conversation, error) {
	_, err := d.db.ExecContext(ctx, `
        INSERT INTO conversations (id, title, created_at, updated_at)
        VALUES (?, ?, ?, ?)`, id, title, createdAt, createdAt)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create conversation %s", id)
	}
	return &models.Conversation{ID: id, Title: title, CreatedAt: createdAt, UpdatedAt: createdAt}, nil
}

// GetConversationByID returns nil and no error when the conversation does not exist.
func (d *Database) GetConversationByID(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := d.db.QueryRowContext(ctx, `
        SELECT id, title, created_at, updated_at
        FROM conversations
        WHERE id = ?`, id).Scan(&conv.ID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get conversation %s", id)
	}
	return &conv, nil
}

// ListConversations returns every conversation, most recently updated first.
func (d *Database) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	rows, err := d.db.QueryContext(ctx, `
        SELECT id, title, created_at, updated_at
        FROM conversations
        ORDER BY updated_at DESC, rowid DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversations")
	}
	defer rows.Close()

	conversations := make([]models.Conversation, 0)
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(&conv.ID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan conversation")
		}
		conversations = append(conversations, conv)
	}
	return conversations, errors.Wrap(rows.Err(), "failed to list conversations")
}

// UpdateConversationTitle renames a conversation and refreshes updated_at.
// Unknown ids are a silent no-op.
func (d *Database) UpdateConversationTitle(ctx context.Context, id, title string) error {
	_, err := d.db.ExecContext(ctx, `
        UPDATE conversations SET title = ?, updated_at = MAX(updated_at, ?)
        WHERE id = ?`, title, d.Now(), id)
	return errors.Wrapf(err, "failed to update title of conversation %s", id)
}

// UpdateConversationTimestamp refreshes updated_at. It never moves backwards.
func (d *Database) UpdateConversationTimestamp(ctx context.Context, id string) error {
	_, err := d.db.ExecContext(ctx, `
        UPDATE conversations SET updated_at = MAX(updated_at, ?)
        WHERE id = ?`, d.Now(), id)
	return errors.Wrapf(err, "failed to update timestamp of conversation %s", id)
}

// DeleteConversation removes a conversation. Messages and settings go with it
// through the foreign-key cascade.
func (d *Database) DeleteConversation(ctx context.Context, id string) error {
	_, err := d.db.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id)
	return errors.Wrapf(err, "failed to delete conversation %s", id)
}

// GetMessagesByConversationID returns the transcript in chronological order.
func (d *Database) GetMessagesByConversationID(ctx context.Context, conversationID string) ([]models.Message, error) {
	rows, err := d.db.QueryContext(ctx, `
        SELECT id, conversation_id, role, content, created_at
        FROM messages
        WHERE conversation_id = ?
        ORDER BY created_at ASC, rowid ASC`, conversationID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get messages of conversation %s", conversationID)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan message")
		}
		messages = append(messages, msg)
	}
	return messages, errors.Wrap(rows.Err(), "failed to read messages")
}

// CreateMessage inserts a message. The caller owns id uniqueness.
func (d *Database) CreateMessage(ctx context.Context, id, conversationID string, role models.Role, content, createdAt string) (*models.Message, error) {
	_, err := d.db.ExecContext(ctx, `
        INSERT INTO messages (id, conversation_id, role, content, created_at)
        VALUES (?, ?, ?, ?, ?)`, id, conversationID, role, content, createdAt)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create message in conversation %s", conversationID)
	}
	return &models.Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      createdAt,
	}, nil
}

// GetSettingsByConversationID returns nil and no error when no row exists.
func (d *Database) GetSettingsByConversationID(ctx context.Context, conversationID string) (*models.Settings, error) {
	var (
		s            models.Settings
		systemPrompt sql.NullString
		temperature  sql.NullFloat64
	)
	err := d.db.QueryRowContext(ctx, `
        SELECT conversation_id, model, system_prompt, temperature
        FROM settings
        WHERE conversation_id = ?`, conversationID).Scan(&s.ConversationID, &s.Model, &systemPrompt, &temperature)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get settings of conversation %s", conversationID)
	}
	if systemPrompt.Valid {
		s.SystemPrompt = &systemPrompt.String
	}
	if temperature.Valid {
		s.Temperature = &temperature.Float64
	}
	return &s, nil
}

// CreateSettings inserts the settings row of a conversation.
func (d *Database) CreateSettings(ctx context.Context, s models.Settings) (*models.Settings, error) {
	_, err := d.db.ExecContext(ctx, `
        INSERT INTO settings (conversation_id, model, system_prompt, temperature)
        VALUES (?, ?, ?, ?)`, s.ConversationID, s.Model, s.SystemPrompt, s.Temperature)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create settings for conversation %s", s.ConversationID)
	}
	return d.GetSettingsByConversationID(ctx, s.ConversationID)
}

func (d *Database) UpdateSettings(ctx context.Context, s models.Settings) error {
	_, err := d.db.ExecContext(ctx, `
        UPDATE settings SET model = ?, system_prompt = ?, temperature = ?
        WHERE conversation_id = ?`, s.Model, s.SystemPrompt, s.Temperature, s.ConversationID)
	return errors.Wrapf(err, "failed to update settings of conversation %s", s.ConversationID)
}

func (d *Database) GetStatus(ctx context.Context) (*models.Status, error) {
	var (
		st       models.Status
		model    sql.NullString
		agent    sql.NullString
		response sql.NullInt64
		lastErr  sql.NullString
	)
	err := d.db.QueryRowContext(ctx, `
        SELECT active_model, active_agent, last_response_ms, last_error
        FROM status
        WHERE id = 1`).Scan(&model, &agent, &response, &lastErr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get status")
	}
	if model.Valid {
		st.ActiveModel = &model.String
	}
	st.ActiveAgent = agent.String
	if response.Valid {
		st.LastResponseMs = &response.Int64
	}
	if lastErr.Valid {
		st.LastError = &lastErr.String
	}
	return &st, nil
}

// UpdateStatus overwrites the singleton status row in place.
func (d *Database) UpdateStatus(ctx context.Context, st models.Status) error {
	_, err := d.db.ExecContext(ctx, `
        UPDATE status
        SET active_model = ?, active_agent = ?, last_response_ms = ?, last_error = ?
        WHERE id = 1`, st.ActiveModel, st.ActiveAgent, st.LastResponseMs, st.LastError)
	return errors.Wrap(err, "failed to update status")
}
