// Package threadstore persists conversation threads in SQLite. The
// store is append-only: messages are inserted exactly as received from
// the agent backend and never updated or deleted, so local history
// stays a faithful record of what the backend streamed.
package threadstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/alphahumanxyz/courier/internal/stream"
)

// Store manages thread message persistence.
type Store struct {
	db *sql.DB
}

// NewStore creates a thread store on an open database handle.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate thread messages: %w", err)
	}
	return s, nil
}

// Open opens (creating if needed) the thread database at path and
// returns a store on it. The caller owns the handle via Close.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open thread db: %w", err)
	}
	s, err := NewStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS thread_messages (
			id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL,
			sender TEXT NOT NULL,
			content TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_thread_messages_thread
			ON thread_messages(thread_id, created_at);
	`)
	return err
}

// Append inserts one message. Re-delivery of a message the store
// already holds is a no-op rather than an error; the backend may
// resend updates after a reconnect.
func (s *Store) Append(ctx context.Context, msg stream.ThreadMessage) error {
	if msg.ID == "" {
		msg.ID = fmt.Sprintf("msg_%d", time.Now().UnixNano())
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO thread_messages (id, thread_id, sender, content, type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		msg.ID, msg.ThreadID, msg.Sender, msg.Content, msg.Type, msg.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("append thread message: %w", err)
	}
	return nil
}

// Messages returns a thread's messages oldest first. limit <= 0 means
// no limit; otherwise the newest limit messages are returned, still
// ordered oldest first.
func (s *Store) Messages(ctx context.Context, threadID string, limit int) ([]stream.ThreadMessage, error) {
	query := `
		SELECT id, thread_id, sender, content, type, created_at
		FROM thread_messages WHERE thread_id = ? ORDER BY created_at, id`
	args := []any{threadID}
	if limit > 0 {
		query = `
			SELECT id, thread_id, sender, content, type, created_at FROM (
				SELECT id, thread_id, sender, content, type, created_at
				FROM thread_messages WHERE thread_id = ?
				ORDER BY created_at DESC, id DESC LIMIT ?
			) ORDER BY created_at, id`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query thread messages: %w", err)
	}
	defer rows.Close()

	var msgs []stream.ThreadMessage
	for rows.Next() {
		var m stream.ThreadMessage
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Sender, &m.Content, &m.Type, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan thread message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Threads lists distinct thread ids ordered by most recent activity.
func (s *Store) Threads(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT thread_id FROM thread_messages
		GROUP BY thread_id ORDER BY MAX(created_at) DESC`)
	if err != nil {
		return nil, fmt.Errorf("query threads: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan thread id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Count returns the number of messages in a thread.
func (s *Store) Count(ctx context.Context, threadID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM thread_messages WHERE thread_id = ?`, threadID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count thread messages: %w", err)
	}
	return n, nil
}
