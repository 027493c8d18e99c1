// Package corpus indexes cognitive units in sqlite and serves embedding search.
package corpus

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/lucid/internal/cognitive"
	"github.com/danielpatrickdp/lucid/internal/embedding"
	"github.com/danielpatrickdp/lucid/internal/retrieval"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS cognitive_units (
	id           TEXT PRIMARY KEY,
	text         TEXT NOT NULL,
	metadata     TEXT NOT NULL DEFAULT '{}',
	embedding    BLOB NOT NULL,
	embedder     TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);
`

// DefaultBatchSize is how many records are embedded per request.
const DefaultBatchSize = 32

// #endregion schema

// #region store
// Store is a sqlite-backed corpus. It implements retrieval.Backend with a
// brute force cosine scan, which is fine for corpora of a few thousand units.
type Store struct {
	db        *sql.DB
	embedder  embedding.Embedder
	batchSize int
	log       *zap.Logger
}

// Open opens (or creates) the corpus database at path.
func Open(path string, embedder embedding.Embedder, log *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open corpus db: %w", err)
	}
	db.SetMaxOpenConns(1)
	s, err := NewFromDB(db, embedder, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewFromDB creates a Store on an existing connection and applies the schema.
func NewFromDB(db *sql.DB, embedder embedding.Embedder, log *zap.Logger) (*Store, error) {
	if embedder == nil {
		return nil, fmt.Errorf("corpus: embedder is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create corpus schema: %w", err)
	}
	return &Store{db: db, embedder: embedder, batchSize: DefaultBatchSize, log: log.Named("corpus")}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Count returns the number of indexed units.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cognitive_units`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count units: %w", err)
	}
	return n, nil
}

// #endregion store

// #region ingest
// IngestStats reports what an ingest pass changed.
type IngestStats struct {
	Embedded  int
	Unchanged int
	Removed   int
}

// Ingest embeds and upserts records in batches. Records whose text and
// metadata are unchanged since the last ingest with the same embedder are
// skipped.
func (s *Store) Ingest(ctx context.Context, records []cognitive.Record) (IngestStats, error) {
	var stats IngestStats
	existing, err := s.hashes(ctx)
	if err != nil {
		return stats, err
	}

	type pending struct {
		rec  cognitive.Record
		meta string
		hash string
	}
	var todo []pending
	for _, rec := range records {
		meta, err := json.Marshal(rec.Metadata)
		if err != nil {
			return stats, fmt.Errorf("marshal metadata for %s: %w", rec.ID, err)
		}
		h := contentHash(s.embedder.Name(), rec.Text, meta)
		if existing[rec.ID] == h {
			stats.Unchanged++
			continue
		}
		todo = append(todo, pending{rec: rec, meta: string(meta), hash: h})
	}

	for start := 0; start < len(todo); start += s.batchSize {
		end := min(start+s.batchSize, len(todo))
		batch := todo[start:end]
		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = p.rec.Text
		}
		vecs, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return stats, fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}
		if len(vecs) != len(batch) {
			return stats, fmt.Errorf("embed batch %d-%d: got %d vectors", start, end, len(vecs))
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return stats, fmt.Errorf("begin ingest: %w", err)
		}
		now := time.Now().UTC().Format(time.RFC3339)
		for i, p := range batch {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO cognitive_units (id, text, metadata, embedding, embedder, content_hash, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?)
				 ON CONFLICT(id) DO UPDATE SET text=excluded.text, metadata=excluded.metadata,
				   embedding=excluded.embedding, embedder=excluded.embedder,
				   content_hash=excluded.content_hash, updated_at=excluded.updated_at`,
				p.rec.ID, p.rec.Text, p.meta, embedding.Encode(vecs[i]), s.embedder.Name(), p.hash, now,
			)
			if err != nil {
				tx.Rollback()
				return stats, fmt.Errorf("upsert unit %s: %w", p.rec.ID, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return stats, fmt.Errorf("commit ingest: %w", err)
		}
		stats.Embedded += len(batch)
	}

	s.log.Info("ingest complete",
		zap.Int("embedded", stats.Embedded), zap.Int("unchanged", stats.Unchanged))
	return stats, nil
}

// Sync ingests records and removes units whose IDs are no longer present.
func (s *Store) Sync(ctx context.Context, records []cognitive.Record) (IngestStats, error) {
	stats, err := s.Ingest(ctx, records)
	if err != nil {
		return stats, err
	}
	keep := make(map[string]bool, len(records))
	for _, r := range records {
		keep[r.ID] = true
	}
	existing, err := s.hashes(ctx)
	if err != nil {
		return stats, err
	}
	for id := range existing {
		if keep[id] {
			continue
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM cognitive_units WHERE id = ?`, id); err != nil {
			return stats, fmt.Errorf("remove unit %s: %w", id, err)
		}
		stats.Removed++
	}
	return stats, nil
}

func (s *Store) hashes(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, content_hash FROM cognitive_units`)
	if err != nil {
		return nil, fmt.Errorf("list unit hashes: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, h string
		if err := rows.Scan(&id, &h); err != nil {
			return nil, fmt.Errorf("scan unit hash: %w", err)
		}
		out[id] = h
	}
	return out, rows.Err()
}

func contentHash(embedder, text string, meta []byte) string {
	sum := sha256.New()
	sum.Write([]byte(embedder))
	sum.Write([]byte{0})
	sum.Write([]byte(text))
	sum.Write([]byte{0})
	sum.Write(meta)
	return hex.EncodeToString(sum.Sum(nil))
}

// #endregion ingest

// #region search
// Search embeds query and returns the k most similar units by cosine.
// Units embedded by a different embedder or with a different width are skipped.
func (s *Store) Search(ctx context.Context, query string, k int) ([]retrieval.Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	qv, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, metadata, embedding FROM cognitive_units WHERE embedder = ?`, s.embedder.Name())
	if err != nil {
		return nil, fmt.Errorf("scan units: %w", err)
	}
	defer rows.Close()

	var hits []retrieval.Hit
	for rows.Next() {
		var (
			id, text, metaJSON string
			blob               []byte
		)
		if err := rows.Scan(&id, &text, &metaJSON, &blob); err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		vec := embedding.Decode(blob)
		if len(vec) != len(qv) {
			continue
		}
		var meta map[string]any
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			s.log.Warn("skipping unit with bad metadata", zap.String("id", id), zap.Error(err))
			continue
		}
		hits = append(hits, retrieval.Hit{
			ID:       id,
			Content:  text,
			Metadata: meta,
			Score:    embedding.Cosine(qv, vec),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate units: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// #endregion search
