package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/lucid/internal/codec"
	"github.com/danielpatrickdp/lucid/internal/config"
	"github.com/danielpatrickdp/lucid/internal/corpus"
	"github.com/danielpatrickdp/lucid/internal/embedding"
	"github.com/danielpatrickdp/lucid/internal/generation"
	"github.com/danielpatrickdp/lucid/internal/lazy"
	"github.com/danielpatrickdp/lucid/internal/orchestrator"
	"github.com/danielpatrickdp/lucid/internal/retrieval"
	"github.com/danielpatrickdp/lucid/internal/session"
	"github.com/danielpatrickdp/lucid/internal/validator"
)

// #region runtime
// runtime holds the wired collaborators for one command invocation. Every
// store shares one SQLite file.
type runtime struct {
	cfg *config.Config
	log *zap.Logger
	db  *sql.DB

	sessions  session.Store
	memory    *orchestrator.OutcomeMemory
	corpus    *corpus.Store // nil unless retrieval uses the corpus
	search    *lazy.Handle[retrieval.Backend]
	backend   *lazy.Handle[generation.Backend]
	generator *generation.Adapter
	reflector *orchestrator.Reflector
}

// openDB opens the shared database with a single connection, which keeps
// SQLite writes serialized.
func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open db %s: %w", path, err)
	}
	return db, nil
}

// newStorage opens the database, session store and outcome memory only.
// Inspection commands need nothing more.
func (c *cli) newStorage() (*runtime, error) {
	db, err := openDB(c.cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: c.cfg, log: c.log, db: db}

	opts := session.Options{MaxMessages: c.cfg.Session.MaxMessages, IdleTimeout: c.cfg.GetIdleTimeout()}
	switch c.cfg.Session.Store {
	case "memory":
		rt.sessions = session.NewMemoryStore(opts)
	default:
		if rt.sessions, err = session.NewSQLiteStoreFromDB(db, opts); err != nil {
			db.Close()
			return nil, err
		}
	}
	if rt.memory, err = orchestrator.NewOutcomeMemory(db); err != nil {
		db.Close()
		return nil, err
	}
	return rt, nil
}

// newRuntime wires the full reflection pipeline. Backends are built on
// first use, so a missing model is noticed on the first turn, not at start.
func (c *cli) newRuntime(ctx context.Context) (*runtime, error) {
	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}
	rt, err := c.newStorage()
	if err != nil {
		return nil, err
	}
	cfg := c.cfg

	if cfg.Retrieval.Provider == "corpus" {
		if rt.corpus, err = rt.openCorpus(ctx); err != nil {
			rt.Close()
			return nil, err
		}
	}
	rt.search = lazy.New(rt.buildSearch)
	rt.backend = lazy.New(rt.buildBackend)

	rt.generator = generation.NewAdapter(rt.backend, generation.Config{
		Timeout:   cfg.GetGenerationTimeout(),
		MaxTokens: cfg.Generation.MaxTokens,
	}, c.log)

	retriever := retrieval.NewRetriever(rt.search, retrieval.Config{
		TopK:          cfg.Retrieval.TopK,
		MinScore:      cfg.Retrieval.MinScore,
		MaxContentLen: cfg.Retrieval.MaxContentLen,
		Timeout:       cfg.GetRetrievalTimeout(),
		HistoryTurns:  cfg.Retrieval.HistoryTurns,
	}, c.log)

	rt.reflector, err = orchestrator.NewReflector(orchestrator.Config{
		Temperature:           cfg.Generation.Temperature,
		RegenerateTemperature: cfg.Generation.RegenerateTemperature,
		MaxInputChars:         cfg.Validator.MaxInputChars,
		HistoryTurns:          cfg.Prompt.HistoryTurns,
		Validator: validator.Config{
			MinConfidence:      cfg.Validator.MinConfidence,
			AlignmentThreshold: cfg.Validator.AlignmentThreshold,
			MaxResponseChars:   cfg.Validator.MaxResponseChars,
		},
	}, orchestrator.Deps{
		Sessions:  rt.sessions,
		Grounder:  retriever,
		Generator: rt.generator,
		Memory:    rt.memory,
		TurnLog:   rt.db,
		Log:       c.log,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

// Close releases backends and the database.
func (rt *runtime) Close() error {
	var errs []error
	if rt.generator != nil {
		errs = append(errs, rt.generator.Close())
	}
	if rt.search != nil {
		errs = append(errs, rt.search.Close())
	}
	errs = append(errs, rt.db.Close())
	return errors.Join(errs...)
}

// #endregion runtime

// #region backends
func (rt *runtime) openCorpus(ctx context.Context) (*corpus.Store, error) {
	emb, err := embedding.New(ctx, embedding.Config{
		Provider:     rt.cfg.Embedding.Provider,
		Model:        rt.cfg.Embedding.Model,
		OpenAIAPIKey: rt.cfg.Generation.OpenAIAPIKey,
		GeminiAPIKey: rt.cfg.Generation.GeminiAPIKey,
		Dimensions:   rt.cfg.Embedding.Dimensions,
	})
	if err != nil {
		return nil, err
	}
	return corpus.NewFromDB(rt.db, emb, rt.log)
}

// buildSearch resolves the retrieval backend.
func (rt *runtime) buildSearch(context.Context) (retrieval.Backend, error) {
	switch rt.cfg.Retrieval.Provider {
	case "keyword":
		return retrieval.NewKeywordBackend(), nil
	case "remote":
		client, err := codec.Dial(rt.cfg.Retrieval.RemoteAddr)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return corpusOrBuiltin{store: rt.corpus, log: rt.log}, nil
	}
}

func (rt *runtime) buildBackend(ctx context.Context) (generation.Backend, error) {
	g := rt.cfg.Generation
	if g.Provider == "remote" {
		client, err := codec.Dial(g.RemoteAddr)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	return generation.NewBackend(ctx, generation.ProviderConfig{
		Provider:     g.Provider,
		Model:        g.Model,
		OpenAIAPIKey: g.OpenAIAPIKey,
		GeminiAPIKey: g.GeminiAPIKey,
	})
}

// #endregion backends

// #region adapters
// corpusOrBuiltin searches the built-in keyword units until the corpus holds
// anything. The count is checked per search so a watched ingest applies live.
type corpusOrBuiltin struct {
	store *corpus.Store
	log   *zap.Logger
}

func (c corpusOrBuiltin) Search(ctx context.Context, query string, k int) ([]retrieval.Hit, error) {
	n, err := c.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		c.log.Debug("corpus is empty, searching built-in units")
		return retrieval.NewKeywordBackend().Search(ctx, query, k)
	}
	return c.store.Search(ctx, query, k)
}

// lazySearch serves a lazily built backend as a plain retrieval.Backend.
type lazySearch struct {
	h *lazy.Handle[retrieval.Backend]
}

func (l lazySearch) Search(ctx context.Context, query string, k int) ([]retrieval.Hit, error) {
	b, err := l.h.Get(ctx)
	if err != nil {
		return nil, err
	}
	return b.Search(ctx, query, k)
}

// lazyCompleter does the same for the generation backend.
func lazyCompleter(h *lazy.Handle[generation.Backend]) generation.BackendFunc {
	return func(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
		b, err := h.Get(ctx)
		if err != nil {
			return "", err
		}
		return b.Complete(ctx, prompt, temperature, maxTokens)
	}
}

// reflectFunc exposes the reflector over the codec transport.
func (rt *runtime) reflectFunc() codec.ReflectorFunc {
	return func(ctx context.Context, sessionID, message string) (codec.Reply, error) {
		res, err := rt.reflector.Reflect(ctx, sessionID, message)
		if err != nil {
			return codec.Reply{}, err
		}
		return codec.Reply{Response: res.Response, SessionID: res.SessionID, Metadata: res.Metadata.Map()}, nil
	}
}

// #endregion adapters
