package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// #region schema
// TurnLogSchema creates the turn_log table.
const TurnLogSchema = `
CREATE TABLE IF NOT EXISTS turn_log (
	turn_id         TEXT PRIMARY KEY,
	session_id      TEXT NOT NULL,
	strategy        TEXT NOT NULL,
	risk            TEXT,
	input           TEXT NOT NULL,
	candidates_json TEXT,
	grounding_json  TEXT,
	response        TEXT NOT NULL,
	confidence      REAL NOT NULL,
	violations_json TEXT,
	states_json     TEXT,
	created_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turn_log_created ON turn_log(created_at);
`

// EnsureSchema creates the turn_log table if it does not exist.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(TurnLogSchema); err != nil {
		return fmt.Errorf("create turn_log: %w", err)
	}
	return nil
}

// tsLayout is fixed width so created_at sorts as text.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #endregion schema

// #region log-turn
// LogTurn writes one turn to the turn_log table.
func LogTurn(db *sql.DB, entry TurnEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	candidates, err := jsonOrNull(entry.Candidates)
	if err != nil {
		return fmt.Errorf("log turn: %w", err)
	}
	grounding, err := jsonOrNull(entry.Grounding)
	if err != nil {
		return fmt.Errorf("log turn: %w", err)
	}
	violations, err := jsonOrNull(entry.Violations)
	if err != nil {
		return fmt.Errorf("log turn: %w", err)
	}
	states, err := jsonOrNull(entry.States)
	if err != nil {
		return fmt.Errorf("log turn: %w", err)
	}

	_, err = db.Exec(
		`INSERT INTO turn_log (turn_id, session_id, strategy, risk, input, candidates_json, grounding_json,
		   response, confidence, violations_json, states_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.TurnID,
		entry.SessionID,
		entry.Strategy,
		nullIfEmpty(entry.Risk),
		entry.Input,
		candidates,
		grounding,
		entry.Response,
		entry.Confidence,
		violations,
		states,
		entry.CreatedAt.UTC().Format(tsLayout),
	)
	if err != nil {
		return fmt.Errorf("log turn: %w", err)
	}
	return nil
}

// #endregion log-turn

// #region recent-turns
// RecentTurns returns up to limit turns, newest first.
func RecentTurns(db *sql.DB, limit int) ([]TurnEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(
		`SELECT turn_id, session_id, strategy, risk, input, candidates_json, grounding_json,
		   response, confidence, violations_json, states_json, created_at
		 FROM turn_log ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var entries []TurnEntry
	for rows.Next() {
		var (
			e                                         TurnEntry
			risk, cands, grounding, violations, states sql.NullString
			created                                    string
		)
		if err := rows.Scan(&e.TurnID, &e.SessionID, &e.Strategy, &risk, &e.Input, &cands, &grounding,
			&e.Response, &e.Confidence, &violations, &states, &created); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		e.Risk = risk.String
		if err := decodeNull(cands, &e.Candidates); err != nil {
			return nil, fmt.Errorf("decode candidates for %s: %w", e.TurnID, err)
		}
		if err := decodeNull(grounding, &e.Grounding); err != nil {
			return nil, fmt.Errorf("decode grounding for %s: %w", e.TurnID, err)
		}
		if err := decodeNull(violations, &e.Violations); err != nil {
			return nil, fmt.Errorf("decode violations for %s: %w", e.TurnID, err)
		}
		if err := decodeNull(states, &e.States); err != nil {
			return nil, fmt.Errorf("decode states for %s: %w", e.TurnID, err)
		}
		e.CreatedAt, _ = time.Parse(tsLayout, created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// #endregion recent-turns

// #region helpers
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func jsonOrNull[T any](v T) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return nil, nil
	}
	return string(b), nil
}

func decodeNull(s sql.NullString, dst any) error {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), dst)
}

// #endregion helpers
