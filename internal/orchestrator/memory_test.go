package orchestrator

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/lucid/internal/safety"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOutcomeMemory_RecordAndSummarize(t *testing.T) {
	db := newTestDB(t)
	mem, err := NewOutcomeMemory(db)
	if err != nil {
		t.Fatal(err)
	}

	stats, err := mem.Summary()
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 0 {
		t.Errorf("expected no stats, got %+v", stats)
	}

	now := time.Now()
	for i := 0; i < 2; i++ {
		if err := mem.RecordOutcome(OutcomeRecord{
			TurnID: "t", SessionID: "s", Strategy: StrategyGrounded, Risk: safety.RiskSafe,
			Attempts: 1, Confidence: 0.9, Accepted: true, CreatedAt: now,
		}); err != nil {
			t.Fatal(err)
		}
	}
	stats, _ = mem.Summary()
	if len(stats) != 1 || stats[0].Reliable {
		t.Fatalf("two samples should not be reliable: %+v", stats)
	}

	mem.RecordOutcome(OutcomeRecord{
		TurnID: "t3", SessionID: "s", Strategy: StrategyGrounded, Risk: safety.RiskSafe,
		Attempts: 1, Confidence: 0.9, Accepted: true, CreatedAt: now,
	})
	stats, _ = mem.Summary()
	if !stats[0].Reliable || stats[0].Samples != 3 {
		t.Errorf("expected reliable stats with 3 samples, got %+v", stats[0])
	}
	if stats[0].Confidence < 0.89 || stats[0].AcceptanceRate < 0.99 {
		t.Errorf("unexpected averages: %+v", stats[0])
	}
}

func TestOutcomeMemory_DecayFavorsRecent(t *testing.T) {
	db := newTestDB(t)
	mem, err := NewOutcomeMemory(db)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mem.now = func() time.Time { return now }

	// an old run of fallbacks, then recent clean turns
	for i := 0; i < 4; i++ {
		mem.RecordOutcome(OutcomeRecord{TurnID: "old", SessionID: "s", Strategy: StrategyRegenerated,
			Risk: safety.RiskSafe, Attempts: 2, Confidence: 0.2, CreatedAt: now.Add(-60 * 24 * time.Hour)})
	}
	for i := 0; i < 4; i++ {
		mem.RecordOutcome(OutcomeRecord{TurnID: "new", SessionID: "s", Strategy: StrategyRegenerated,
			Risk: safety.RiskSafe, Attempts: 2, Confidence: 0.9, Accepted: true, CreatedAt: now})
	}
	stats, err := mem.Summary()
	if err != nil {
		t.Fatal(err)
	}
	if stats[0].Confidence < 0.85 {
		t.Errorf("recent outcomes should dominate, got confidence %.3f", stats[0].Confidence)
	}
	if stats[0].MeanAttempts != 2 {
		t.Errorf("expected mean attempts 2, got %v", stats[0].MeanAttempts)
	}
}

func TestOutcomeMemory_OrdersByFrequency(t *testing.T) {
	db := newTestDB(t)
	mem, _ := NewOutcomeMemory(db)
	for _, s := range []Strategy{StrategySafety, StrategyGrounded, StrategyGrounded} {
		mem.RecordOutcome(OutcomeRecord{TurnID: "t", SessionID: "s", Strategy: s, Risk: safety.RiskSafe, Attempts: 1})
	}
	stats, _ := mem.Summary()
	if len(stats) != 2 || stats[0].Strategy != StrategyGrounded {
		t.Errorf("expected grounded first, got %+v", stats)
	}
}
