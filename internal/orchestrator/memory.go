package orchestrator

// #region imports
import (
	"database/sql"
	"fmt"
	"math"
	"sort"
	"time"
)

// #endregion

// #region schema

const reflectionOutcomesSchema = `
CREATE TABLE IF NOT EXISTS reflection_outcomes (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    turn_id     TEXT NOT NULL,
    session_id  TEXT NOT NULL,
    strategy    TEXT NOT NULL,
    risk        TEXT NOT NULL,
    attempts    INTEGER NOT NULL,
    confidence  REAL NOT NULL,
    accepted    INTEGER NOT NULL DEFAULT 0,
    degraded    INTEGER NOT NULL DEFAULT 0,
    created_at  TEXT NOT NULL
);
`

const reflectionOutcomesIndex = `
CREATE INDEX IF NOT EXISTS idx_reflection_outcomes_strategy
ON reflection_outcomes(strategy);
`

// minSamples is how many outcomes a strategy needs before its averages are reported as reliable.
const minSamples = 3

// halfLifeHours weights recent turns more heavily: 7 days.
const halfLifeHours = 7.0 * 24.0

// #endregion

// #region memory-struct

// OutcomeMemory persists turn outcomes in SQLite and summarizes them with
// decay weighting.
type OutcomeMemory struct {
	db  *sql.DB
	now func() time.Time
}

// NewOutcomeMemory initializes the reflection_outcomes table.
func NewOutcomeMemory(db *sql.DB) (*OutcomeMemory, error) {
	if _, err := db.Exec(reflectionOutcomesSchema); err != nil {
		return nil, fmt.Errorf("create reflection_outcomes: %w", err)
	}
	if _, err := db.Exec(reflectionOutcomesIndex); err != nil {
		return nil, fmt.Errorf("index reflection_outcomes: %w", err)
	}
	return &OutcomeMemory{db: db, now: time.Now}, nil
}

// #endregion

// #region record-outcome

// RecordOutcome persists a single turn outcome.
func (m *OutcomeMemory) RecordOutcome(rec OutcomeRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = m.now()
	}
	_, err := m.db.Exec(`
		INSERT INTO reflection_outcomes
		(turn_id, session_id, strategy, risk, attempts, confidence, accepted, degraded, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TurnID,
		rec.SessionID,
		string(rec.Strategy),
		string(rec.Risk),
		rec.Attempts,
		rec.Confidence,
		boolInt(rec.Accepted),
		boolInt(rec.Degraded),
		rec.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// #endregion

// #region summary

// StrategyStats is the decay-weighted summary of one strategy.
type StrategyStats struct {
	Strategy       Strategy
	Samples        int
	Confidence     float64 // weighted mean confidence
	AcceptanceRate float64 // weighted share of turns answered by the model
	DegradedRate   float64 // weighted share of turns with a degraded collaborator
	MeanAttempts   float64
	Reliable       bool // at least minSamples outcomes
}

// Summary returns per-strategy statistics, most frequent first.
func (m *OutcomeMemory) Summary() ([]StrategyStats, error) {
	rows, err := m.db.Query(`
		SELECT strategy, attempts, confidence, accepted, degraded, created_at
		FROM reflection_outcomes`)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	type accum struct {
		confidence, accepted, degraded, attempts float64
		totalWeight                              float64
		count                                    int
	}

	now := m.now()
	acc := make(map[Strategy]*accum)
	for rows.Next() {
		var (
			strategy           string
			attempts           int
			confidence         float64
			accepted, degraded int
			createdAtStr       string
		)
		if err := rows.Scan(&strategy, &attempts, &confidence, &accepted, &degraded, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		createdAt, err := time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			continue
		}
		weight := math.Exp(-now.Sub(createdAt).Hours() / halfLifeHours)

		a, ok := acc[Strategy(strategy)]
		if !ok {
			a = &accum{}
			acc[Strategy(strategy)] = a
		}
		a.confidence += confidence * weight
		a.accepted += float64(accepted) * weight
		a.degraded += float64(degraded) * weight
		a.attempts += float64(attempts) * weight
		a.totalWeight += weight
		a.count++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}

	stats := make([]StrategyStats, 0, len(acc))
	for s, a := range acc {
		st := StrategyStats{Strategy: s, Samples: a.count, Reliable: a.count >= minSamples}
		if a.totalWeight > 0 {
			st.Confidence = a.confidence / a.totalWeight
			st.AcceptanceRate = a.accepted / a.totalWeight
			st.DegradedRate = a.degraded / a.totalWeight
			st.MeanAttempts = a.attempts / a.totalWeight
		}
		stats = append(stats, st)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Samples != stats[j].Samples {
			return stats[i].Samples > stats[j].Samples
		}
		return stats[i].Strategy < stats[j].Strategy
	})
	return stats, nil
}

// #endregion

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
