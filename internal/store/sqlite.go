package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pocketlm/core/internal/model/chat"
)

// SQLite implements Store on a local database file, the durable backend
// for device installs. Timestamps persist as unix milliseconds since the
// grouping thresholds are millisecond-sensitive.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path, ensuring the parent
// directory and the schema.
func NewSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db at %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db at %s: %w", path, err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			model_id TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			author_id TEXT NOT NULL,
			author_first TEXT NOT NULL DEFAULT '',
			author_last TEXT NOT NULL DEFAULT '',
			author_image TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL,
			text TEXT NOT NULL DEFAULT '',
			uri TEXT NOT NULL DEFAULT '',
			metadata TEXT,
			created_at INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);
	`)
	return err
}

func (s *SQLite) CreateSession(ctx context.Context, session chat.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, model_id, owner_id, title, created_at) VALUES (?, ?, ?, ?, ?)`,
		session.ID, session.ModelID, session.OwnerID, session.Title, session.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", session.ID, err)
	}
	return nil
}

func (s *SQLite) Session(ctx context.Context, id string) (chat.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, model_id, owner_id, title, created_at FROM sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return chat.Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return chat.Session{}, fmt.Errorf("select session %s: %w", id, err)
	}
	return session, nil
}

func (s *SQLite) Sessions(ctx context.Context) ([]chat.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, model_id, owner_id, title, created_at FROM sessions ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("select sessions: %w", err)
	}
	defer rows.Close()

	var out []chat.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, session)
	}
	return out, rows.Err()
}

func (s *SQLite) AppendMessage(ctx context.Context, msg chat.Message) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, msg.SessionID).Scan(&exists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("session %s: %w", msg.SessionID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("check session %s: %w", msg.SessionID, err)
	}

	meta, err := marshalMetadata(msg.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages (id, session_id, author_id, author_first, author_last, author_image, kind, text, uri, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, msg.Author.ID, msg.Author.FirstName, msg.Author.LastName, msg.Author.ImageURL,
		string(msg.Kind), msg.Text, msg.URI, meta, createdAtMillis(msg.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert message %s: %w", msg.ID, err)
	}
	return nil
}

func (s *SQLite) UpdateMessage(ctx context.Context, msg chat.Message) error {
	meta, err := marshalMetadata(msg.Metadata)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET author_id = ?, author_first = ?, author_last = ?, author_image = ?,
		 kind = ?, text = ?, uri = ?, metadata = ?, created_at = ?
		 WHERE id = ? AND session_id = ?`,
		msg.Author.ID, msg.Author.FirstName, msg.Author.LastName, msg.Author.ImageURL,
		string(msg.Kind), msg.Text, msg.URI, meta, createdAtMillis(msg.CreatedAt),
		msg.ID, msg.SessionID,
	)
	if err != nil {
		return fmt.Errorf("update message %s: %w", msg.ID, err)
	}
	return affected(res, msg.ID)
}

func (s *SQLite) DeleteMessage(ctx context.Context, sessionID, messageID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE id = ? AND session_id = ?`, messageID, sessionID)
	if err != nil {
		return fmt.Errorf("delete message %s: %w", messageID, err)
	}
	return affected(res, messageID)
}

func (s *SQLite) Messages(ctx context.Context, sessionID string) ([]chat.Message, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, sessionID).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("check session %s: %w", sessionID, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, author_id, author_first, author_last, author_image, kind, text, uri, metadata, created_at
		 FROM messages WHERE session_id = ? ORDER BY rowid DESC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("select messages for %s: %w", sessionID, err)
	}
	defer rows.Close()

	out := make([]chat.Message, 0, 16)
	for rows.Next() {
		var (
			msg     chat.Message
			meta    sql.NullString
			created sql.NullInt64
			kind    string
		)
		if err := rows.Scan(&msg.ID, &msg.Author.ID, &msg.Author.FirstName, &msg.Author.LastName,
			&msg.Author.ImageURL, &kind, &msg.Text, &msg.URI, &meta, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.SessionID = sessionID
		msg.Kind = chat.Kind(kind)
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &msg.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata for %s: %w", msg.ID, err)
			}
		}
		if created.Valid {
			ts := time.UnixMilli(created.Int64).UTC()
			msg.CreatedAt = &ts
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error { return s.db.Close() }

func scanSession(row interface{ Scan(...any) error }) (chat.Session, error) {
	var (
		session chat.Session
		created int64
	)
	if err := row.Scan(&session.ID, &session.ModelID, &session.OwnerID, &session.Title, &created); err != nil {
		return chat.Session{}, err
	}
	session.CreatedAt = time.UnixMilli(created).UTC()
	return session, nil
}

func affected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	return nil
}

func marshalMetadata(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return string(raw), nil
}

func createdAtMillis(ts *time.Time) any {
	if ts == nil {
		return nil
	}
	return ts.UnixMilli()
}
