package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema

// tsLayout is fixed width so stored timestamps compare correctly as text.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id            TEXT PRIMARY KEY,
	created_at    TEXT NOT NULL,
	last_activity TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS session_messages (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL,
	seq         INTEGER NOT NULL,
	text        TEXT NOT NULL,
	is_user     INTEGER NOT NULL,
	metadata    TEXT,
	created_at  TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_session_messages_seq ON session_messages(session_id, seq);
`
// #endregion schema

// #region store-struct

// SQLiteStore persists sessions in SQLite. Writes go through a single
// connection, which serializes appends per database and therefore per session.
type SQLiteStore struct {
	db   *sql.DB
	opts Options
}

// NewSQLiteStore opens dbPath and runs migrations. Use ":memory:" in tests.
func NewSQLiteStore(dbPath string, opts Options) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	s, err := NewSQLiteStoreFromDB(db, opts)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStoreFromDB migrates an already opened database.
func NewSQLiteStoreFromDB(db *sql.DB, opts Options) (*SQLiteStore, error) {
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db, opts: opts}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB exposes the handle so the turn log and outcome memory can share the file.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// #endregion store-struct

// #region lifecycle

// Create starts a new session with a random id.
func (s *SQLiteStore) Create(ctx context.Context) (string, error) {
	id := uuid.New().String()
	return id, s.Ensure(ctx, id)
}

// Ensure creates the session if absent.
func (s *SQLiteStore) Ensure(ctx context.Context, id string) error {
	now := s.opts.now().Format(tsLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, created_at, last_activity) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		id, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Delete removes the session and its messages.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM session_messages WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// #endregion lifecycle

// #region append

// Append inserts msgs in one transaction, trims to the cap and bumps last_activity.
func (s *SQLiteStore) Append(ctx context.Context, id string, msgs ...Message) error {
	now := s.opts.now()
	stamped := stamp(msgs, now)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE((SELECT MAX(seq) FROM session_messages WHERE session_id = s.id), 0)
		 FROM sessions s WHERE s.id = ?`, id,
	).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read seq: %w", err)
	}

	for _, m := range stamped {
		seq++
		meta, err := encodeMeta(m.Metadata)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO session_messages (id, session_id, seq, text, is_user, metadata, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.ID, id, seq, m.Text, boolInt(m.IsUser), meta, m.Timestamp.UTC().Format(tsLayout),
		)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}

	if err := s.trimTx(ctx, tx, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET last_activity = ? WHERE id = ?`,
		now.Format(tsLayout), id); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) trimTx(ctx context.Context, tx *sql.Tx, id string) error {
	if s.opts.MaxMessages <= 0 {
		return nil
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT id, is_user FROM session_messages WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return fmt.Errorf("list for trim: %w", err)
	}
	var all []Message
	for rows.Next() {
		var m Message
		var isUser int
		if err := rows.Scan(&m.ID, &isUser); err != nil {
			rows.Close()
			return fmt.Errorf("scan for trim: %w", err)
		}
		m.IsUser = isUser == 1
		all = append(all, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(all) <= s.opts.MaxMessages {
		return nil
	}

	keep := make(map[string]bool, s.opts.MaxMessages)
	for _, m := range trim(all, s.opts.MaxMessages) {
		keep[m.ID] = true
	}
	for _, m := range all {
		if keep[m.ID] {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM session_messages WHERE id = ?`, m.ID); err != nil {
			return fmt.Errorf("trim message: %w", err)
		}
	}
	return nil
}

// #endregion append

// #region read

// Get loads the session with its messages in order.
func (s *SQLiteStore) Get(ctx context.Context, id string) (Session, error) {
	var sess Session
	var created, last string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, last_activity FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &created, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	sess.CreatedAt, _ = time.Parse(tsLayout, created)
	sess.LastActivity, _ = time.Parse(tsLayout, last)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, is_user, metadata, created_at
		 FROM session_messages WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return Session{}, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m Message
		var isUser int
		var meta sql.NullString
		var ts string
		if err := rows.Scan(&m.ID, &m.Text, &isUser, &meta, &ts); err != nil {
			return Session{}, fmt.Errorf("scan message: %w", err)
		}
		m.IsUser = isUser == 1
		m.Timestamp, _ = time.Parse(tsLayout, ts)
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &m.Metadata); err != nil {
				return Session{}, fmt.Errorf("decode metadata: %w", err)
			}
		}
		sess.Messages = append(sess.Messages, m)
	}
	return sess, rows.Err()
}

// Clear drops the session's messages.
func (s *SQLiteStore) Clear(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE sessions SET last_activity = ? WHERE id = ?`,
		s.opts.now().Format(tsLayout), id)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM session_messages WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	return tx.Commit()
}

// #endregion read

// #region expiry

// ListActive returns sessions inside the idle window, most recent first.
func (s *SQLiteStore) ListActive(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, last_activity FROM sessions ORDER BY last_activity DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	now := s.opts.now()
	var ids []string
	for rows.Next() {
		var id, last string
		if err := rows.Scan(&id, &last); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		ts, err := time.Parse(tsLayout, last)
		if err != nil || s.opts.idle(ts, now) {
			continue
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ExpireIdle deletes sessions whose last activity is older than the timeout.
func (s *SQLiteStore) ExpireIdle(ctx context.Context, now time.Time) (int, error) {
	if s.opts.IdleTimeout <= 0 {
		return 0, nil
	}
	cutoff := now.UTC().Add(-s.opts.IdleTimeout).Format(tsLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM session_messages WHERE session_id IN
		 (SELECT id FROM sessions WHERE last_activity < ?)`, cutoff); err != nil {
		return 0, fmt.Errorf("expire messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE last_activity < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return int(n), nil
}

// #endregion expiry

// #region helpers

func encodeMeta(m map[string]string) (interface{}, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return string(b), nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
