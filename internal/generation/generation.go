// Package generation wraps a single language model call behind a boundary
// that turns every failure into a typed Failure value.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/lucid/internal/lazy"
)

// #region backend
// Backend completes a prompt. Implementations make one external call.
type Backend interface {
	Complete(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)

func (f BackendFunc) Complete(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	return f(ctx, prompt, temperature, maxTokens)
}

// ErrMalformed marks a backend reply that could not be decoded.
var ErrMalformed = errors.New("malformed model output")

// #endregion backend

// #region failure
// Kind classifies a generation failure.
type Kind string

const (
	KindTimeout     Kind = "timeout"
	KindCanceled    Kind = "canceled"
	KindUnavailable Kind = "unavailable"
	KindQuota       Kind = "quota"
	KindMalformed   Kind = "malformed"
	KindEmpty       Kind = "empty"
	KindBackend     Kind = "backend"
	KindPanic       Kind = "panic"
)

// Failure is the only error type Generate returns.
type Failure struct {
	Kind Kind
	Err  error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return "generation " + string(f.Kind)
	}
	return fmt.Sprintf("generation %s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// #endregion failure

// #region adapter
// Config bounds a single generation call.
type Config struct {
	Timeout   time.Duration
	MaxTokens int
}

// DefaultConfig mirrors the production settings.
func DefaultConfig() Config {
	return Config{Timeout: 20 * time.Second, MaxTokens: 150}
}

// Adapter owns the lazily constructed backend.
type Adapter struct {
	backend *lazy.Handle[Backend]
	config  Config
	log     *zap.Logger
}

// NewAdapter creates an Adapter over a backend handle.
func NewAdapter(backend *lazy.Handle[Backend], config Config, log *zap.Logger) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{backend: backend, config: config, log: log.Named("generation")}
}

// Generate makes exactly one backend call. Any failure, including a panic
// inside the backend, is returned as *Failure.
func (a *Adapter) Generate(ctx context.Context, prompt string, temperature float64) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", &Failure{Kind: KindPanic, Err: fmt.Errorf("%v", r)}
		}
		if err != nil {
			a.log.Warn("generation failed", zap.Error(err))
		}
	}()

	if a.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
	}

	backend, err := a.backend.Get(ctx)
	if err != nil {
		return "", &Failure{Kind: KindUnavailable, Err: err}
	}

	start := time.Now()
	out, err := backend.Complete(ctx, prompt, temperature, a.config.MaxTokens)
	if err != nil {
		return "", &Failure{Kind: classify(ctx, err), Err: err}
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", &Failure{Kind: KindEmpty}
	}
	a.log.Debug("generated",
		zap.Duration("elapsed", time.Since(start)),
		zap.Float64("temperature", temperature),
		zap.Int("chars", len(out)))
	return out, nil
}

// Close releases the backend if it was constructed.
func (a *Adapter) Close() error {
	return a.backend.Close()
}

// #endregion adapter

// #region classify
func classify(ctx context.Context, err error) Kind {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return KindCanceled
	case errors.Is(err, ErrMalformed):
		return KindMalformed
	case isRateLimitError(err):
		return KindQuota
	default:
		return KindBackend
	}
}

func isRateLimitError(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "429") ||
		strings.Contains(s, "rate limit") ||
		strings.Contains(s, "too many requests") ||
		strings.Contains(s, "quota") ||
		strings.Contains(s, "resource_exhausted")
}

// #endregion classify
