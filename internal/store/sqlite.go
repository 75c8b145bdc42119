package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"teca-cli/internal/turn"
)

const (
	titleMax = 60
	// Fixed width so stored timestamps sort as text.
	timeFormat = "2006-01-02T15:04:05.000000000Z07:00"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func newID() string {
	return ulid.Make().String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id          TEXT PRIMARY KEY,
		title       TEXT NOT NULL,
		city        TEXT,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at DESC);

	CREATE TABLE IF NOT EXISTS messages (
		id              TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id),
		role            TEXT NOT NULL,
		content         TEXT NOT NULL,
		payload         TEXT,
		created_at      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) SaveTurn(ctx context.Context, p TurnParams) (*turn.Message, error) {
	if p.ConversationID == "" {
		return nil, fmt.Errorf("save turn: missing conversation id")
	}
	now := s.now()
	ts := now.Format(timeFormat)

	reply := p.Reply
	reply.ConversationID = p.ConversationID
	if reply.ID == "" {
		reply.ID = newID()
	}
	if reply.CreatedAt.IsZero() {
		reply.CreatedAt = now
	}
	payload, err := json.Marshal(reply)
	if err != nil {
		return nil, fmt.Errorf("encode reply: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO conversations (id, title, city, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
		p.ConversationID, title(p.UserText), p.City, ts, ts)
	if err != nil {
		return nil, fmt.Errorf("upsert conversation: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, payload, created_at)
		 VALUES (?, ?, ?, ?, NULL, ?)`,
		newID(), p.ConversationID, RoleUser, p.UserText, ts)
	if err != nil {
		return nil, fmt.Errorf("insert user message: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		reply.ID, p.ConversationID, RoleAssistant, reply.Text, string(payload), ts)
	if err != nil {
		return nil, fmt.Errorf("insert reply: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &reply, nil
}

func (s *SQLiteStore) Conversations(ctx context.Context, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.title, c.city, c.created_at, c.updated_at,
		       (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
		FROM conversations c
		ORDER BY c.updated_at DESC, c.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Conversation(ctx context.Context, id string) (*Conversation, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.title, c.city, c.created_at, c.updated_at,
		       (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
		FROM conversations c
		WHERE c.id = ? OR c.id LIKE ?
		ORDER BY (c.id = ?) DESC
		LIMIT 2`, id, strings.ToUpper(id)+"%", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var found []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch {
	case len(found) == 0:
		return nil, ErrNotFound
	case found[0].ID == id || len(found) == 1:
		return &found[0], nil
	default:
		return nil, fmt.Errorf("conversation prefix %q is ambiguous", id)
	}
}

func (s *SQLiteStore) Messages(ctx context.Context, conversationID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, payload, created_at
		FROM messages WHERE conversation_id = ?
		ORDER BY rowid ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var payload sql.NullString
		var createdAt string
		if err := rows.Scan(&e.ID, &e.ConversationID, &e.Role, &e.Content, &payload, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt, _ = time.Parse(timeFormat, createdAt)
		if payload.Valid && payload.String != "" {
			var m turn.Message
			if err := json.Unmarshal([]byte(payload.String), &m); err != nil {
				return nil, fmt.Errorf("decode message %s: %w", e.ID, err)
			}
			e.Reply = &m
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanConversation(row scanner) (Conversation, error) {
	var c Conversation
	var city sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&c.ID, &c.Title, &city, &createdAt, &updatedAt, &c.Messages); err != nil {
		return c, err
	}
	c.City = city.String
	c.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	c.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)
	return c, nil
}

func title(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "(sin título)"
	}
	r := []rune(s)
	if len(r) <= titleMax {
		return s
	}
	return string(r[:titleMax-3]) + "..."
}
