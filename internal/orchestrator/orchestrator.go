package orchestrator

// #region imports
import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/lucid/internal/analysis"
	"github.com/danielpatrickdp/lucid/internal/generation"
	"github.com/danielpatrickdp/lucid/internal/logging"
	"github.com/danielpatrickdp/lucid/internal/prompt"
	"github.com/danielpatrickdp/lucid/internal/retrieval"
	"github.com/danielpatrickdp/lucid/internal/safety"
	"github.com/danielpatrickdp/lucid/internal/session"
	"github.com/danielpatrickdp/lucid/internal/validator"
)

// #endregion

// #region reflector-struct

// Reflector runs the per-turn state machine: safety check, retrieval, prompt
// assembly, generation, validation with at most one regeneration, and the
// atomic session append.
type Reflector struct {
	sessions  session.Store
	grounder  Grounder
	generator Generator
	validator *validator.Validator
	assembler *prompt.Assembler
	memory    *OutcomeMemory
	turnLog   *sql.DB
	locks     *keyedLock
	cfg       Config
	log       *zap.Logger
}

// Deps are the collaborators of a Reflector. Sessions and Generator are
// required; a nil Grounder makes every turn ungrounded; Memory and TurnLog
// are optional sinks.
type Deps struct {
	Sessions  session.Store
	Grounder  Grounder
	Generator Generator
	Memory    *OutcomeMemory
	TurnLog   *sql.DB
	Log       *zap.Logger
}

// #endregion

// #region constructor

// NewReflector wires a Reflector.
func NewReflector(cfg Config, deps Deps) (*Reflector, error) {
	if deps.Sessions == nil {
		return nil, errors.New("reflector: session store is required")
	}
	if deps.Generator == nil {
		return nil, errors.New("reflector: generator is required")
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.TurnLog != nil {
		if err := logging.EnsureSchema(deps.TurnLog); err != nil {
			return nil, err
		}
	}
	return &Reflector{
		sessions:  deps.Sessions,
		grounder:  deps.Grounder,
		generator: deps.Generator,
		validator: validator.New(cfg.Validator),
		assembler: prompt.New(cfg.HistoryTurns),
		memory:    deps.Memory,
		turnLog:   deps.TurnLog,
		locks:     newKeyedLock(),
		cfg:       cfg,
		log:       deps.Log.Named("orch"),
	}, nil
}

// #endregion

// #region turn

// turn accumulates one pass through the state machine.
type turn struct {
	md        Metadata
	sessionID string
	message   string
	history   []session.Message
	analysis  analysis.Analysis
	grounding retrieval.Grounding
	prompt    prompt.Context
	attempts  []attempt
	response  string
}

func (t *turn) enter(s State) {
	t.md.States = append(t.md.States, s)
}

func (t *turn) degrade(reason string) {
	t.md.Degraded = append(t.md.Degraded, reason)
}

// #endregion

// #region reflect

// Reflect answers one user message. sessionID may be empty, in which case a
// session is created; an unknown id is created on first use. The returned
// error is non-nil only when ctx ends before the turn is stored, or the
// session store itself fails.
func (r *Reflector) Reflect(ctx context.Context, sessionID, message string) (Result, error) {
	t := &turn{
		md:        Metadata{TurnID: uuid.New().String(), Risk: safety.RiskSafe},
		sessionID: sessionID,
		message:   strings.TrimSpace(message),
	}

	if err := validator.ValidateInput(message, r.cfg.MaxInputChars); err != nil {
		t.md.Strategy = StrategyInputRejected
		t.md.InputError = err.Error()
		t.md.Confidence = 1
		t.enter(StateRespond)
		r.log.Info("input rejected", zap.String("turn", t.md.TurnID), zap.Error(err))
		return Result{Response: validator.DefaultQuestion, SessionID: sessionID, Metadata: t.md}, nil
	}

	if err := r.openSession(ctx, t); err != nil {
		return Result{}, err
	}
	release, err := r.locks.acquire(ctx, t.sessionID)
	if err != nil {
		return Result{}, err
	}
	defer release()

	if sess, err := r.sessions.Get(ctx, t.sessionID); err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		r.log.Warn("history unavailable", zap.String("session", t.sessionID), zap.Error(err))
		t.degrade("history_unavailable")
	} else {
		t.history = sess.Messages
	}

	r.run(ctx, t)

	if err := r.respond(ctx, t); err != nil {
		return Result{}, err
	}
	return Result{Response: t.response, SessionID: t.sessionID, Metadata: t.md}, nil
}

func (r *Reflector) openSession(ctx context.Context, t *turn) error {
	if t.sessionID == "" {
		id, err := r.sessions.Create(ctx)
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		t.sessionID = id
		return nil
	}
	if err := r.sessions.Ensure(ctx, t.sessionID); err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}
	return nil
}

// #endregion

// #region state-machine

// run walks the states up to REPAIR_DONE and leaves t.response set.
func (r *Reflector) run(ctx context.Context, t *turn) {
	t.enter(StateSafetyCheck)
	check := safety.Check(t.message)
	t.md.Risk = check.Risk
	t.md.SafetyCategory = check.Category
	if check.RequiresRedirection {
		t.md.Strategy = StrategySafety
		t.md.Confidence = 1
		t.response = check.Response
		r.log.Info("safety redirect", zap.String("turn", t.md.TurnID),
			zap.String("category", check.Category), zap.String("risk", string(check.Risk)))
		return
	}

	t.analysis = analysis.Analyze(t.message, userTexts(t.history)...)
	t.md.Emotions = t.analysis.Emotions
	t.md.CognitivePatterns = t.analysis.CognitivePatterns
	t.md.ValueConflicts = t.analysis.ValueConflicts
	t.md.Focus = string(t.analysis.Focus)
	t.md.Themes = t.analysis.Themes

	t.enter(StateRetrieve)
	r.guard(t, StateRetrieve, func() { r.retrieve(ctx, t) })

	t.enter(StateBuildPrompt)
	built := r.guard(t, StateBuildPrompt, func() {
		t.prompt = prompt.Context{
			UserMessage:          t.message,
			History:              promptTurns(t.history),
			Emotions:             t.analysis.Emotions,
			CognitivePatterns:    t.analysis.CognitivePatterns,
			PhilosophicalContext: analysis.PhilosophicalContext(t.analysis),
		}
	})
	if !built {
		r.fallback(t)
		return
	}

	for n := 0; ; n++ {
		if n > 0 {
			t.enter(StateRegenerateOnce)
		}
		a := r.attempt(ctx, t, n)
		t.attempts = append(t.attempts, a)
		t.md.Attempts = len(t.attempts)
		if a.failed {
			r.fallback(t)
			return
		}
		if a.outcome.Report.Acceptable {
			t.enter(StateRepairDone)
			r.accept(t, a, n)
			return
		}
		if !shouldRegenerate(t.attempts) {
			r.fallback(t)
			return
		}
	}
}

func (r *Reflector) retrieve(ctx context.Context, t *turn) {
	if r.grounder == nil {
		return
	}
	t.grounding = r.grounder.Ground(ctx, messageTexts(t.history), t.message)
	t.md.RetrievalScore = t.grounding.Confidence
	if t.grounding.Err != nil {
		t.degrade("retrieval_unavailable")
	}
	if t.grounding.Unit != nil {
		t.md.Grounded = true
		if len(t.grounding.Unit.ThemeTags) > 0 {
			t.md.Themes = t.grounding.Unit.ThemeTags
		}
	}
}

// attempt builds the prompt for attempt n, generates and validates.
func (r *Reflector) attempt(ctx context.Context, t *turn, n int) attempt {
	strict, temperature := r.planAttempt(n)
	a := attempt{strict: strict}

	var text string
	t.enter(StateGenerate)
	ok := r.guard(t, StateGenerate, func() {
		var p string
		if strict {
			p = r.assembler.BuildStrict(t.prompt, t.grounding.Unit)
		} else {
			p = r.assembler.Build(t.prompt, t.grounding.Unit)
		}
		out, err := r.generator.Generate(ctx, p, temperature)
		if err != nil {
			var f *generation.Failure
			if errors.As(err, &f) {
				t.degrade("generation_" + string(f.Kind))
			} else {
				t.degrade("generation_failed")
			}
			a.failed = true
			return
		}
		text = out
	})
	if !ok || a.failed {
		a.failed = true
		return a
	}
	a.candidate = text

	t.enter(StateValidate)
	a.outcome = r.validator.Check(text, t.grounding.Unit)
	t.md.Confidence = a.outcome.Report.Confidence
	t.md.Violations = a.outcome.Report.Violations
	r.log.Debug("validated",
		zap.String("turn", t.md.TurnID),
		zap.Int("attempt", n),
		zap.Float64("confidence", a.outcome.Report.Confidence),
		zap.Strings("violations", a.outcome.Report.Violations),
		zap.Bool("acceptable", a.outcome.Report.Acceptable))
	return a
}

func (r *Reflector) accept(t *turn, a attempt, n int) {
	t.response = a.outcome.Response.String()
	switch {
	case n > 0:
		t.md.Strategy = StrategyRegenerated
	case t.grounding.Unit != nil:
		t.md.Strategy = StrategyGrounded
	default:
		t.md.Strategy = StrategyUngrounded
	}
}

func (r *Reflector) fallback(t *turn) {
	t.enter(StateRepairDone)
	t.md.Strategy = StrategyFallback
	t.response = validator.Fallback().String()
}

// guard runs fn and converts a panic into a degraded turn. It reports
// whether fn completed.
func (r *Reflector) guard(t *turn, s State, fn func()) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("state panicked", zap.String("state", string(s)), zap.Any("panic", rec))
			t.degrade(strings.ToLower(string(s)) + "_panic")
			ok = false
		}
	}()
	fn()
	return true
}

// #endregion

// #region respond

// respond appends the user message and the response as one unit, then
// records the outcome. Nothing is written when ctx is already done.
func (r *Reflector) respond(ctx context.Context, t *turn) error {
	t.enter(StateRespond)
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now().UTC()
	agentMeta := map[string]string{
		"turn_id":    t.md.TurnID,
		"strategy":   string(t.md.Strategy),
		"risk":       string(t.md.Risk),
		"confidence": strconv.FormatFloat(t.md.Confidence, 'f', 2, 64),
	}
	if len(t.md.Themes) > 0 {
		agentMeta["themes"] = strings.Join(t.md.Themes, ",")
	}
	if len(t.md.Degraded) > 0 {
		agentMeta["degraded"] = strings.Join(t.md.Degraded, ",")
	}
	msgs := []session.Message{
		{Text: t.message, IsUser: true, Timestamp: now},
		{Text: t.response, IsUser: false, Timestamp: now, Metadata: agentMeta},
	}
	err := r.sessions.Append(ctx, t.sessionID, msgs...)
	if errors.Is(err, session.ErrNotFound) {
		// expired by the idle sweeper mid-turn
		r.log.Warn("session vanished before append, recreating",
			zap.String("turn", t.md.TurnID), zap.String("session", t.sessionID))
		if err = r.sessions.Ensure(ctx, t.sessionID); err == nil {
			err = r.sessions.Append(ctx, t.sessionID, msgs...)
		}
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("append turn: %w", err)
	}

	r.record(t)
	r.log.Info("turn complete",
		zap.String("turn", t.md.TurnID),
		zap.String("session", t.sessionID),
		zap.String("strategy", string(t.md.Strategy)),
		zap.Int("attempts", t.md.Attempts),
		zap.Float64("confidence", t.md.Confidence),
		zap.Strings("degraded", t.md.Degraded))
	return nil
}

// record writes the outcome and provenance rows. Failures are logged only.
func (r *Reflector) record(t *turn) {
	if r.memory != nil {
		err := r.memory.RecordOutcome(OutcomeRecord{
			TurnID:     t.md.TurnID,
			SessionID:  t.sessionID,
			Strategy:   t.md.Strategy,
			Risk:       t.md.Risk,
			Attempts:   t.md.Attempts,
			Confidence: t.md.Confidence,
			Accepted:   t.md.Strategy != StrategyFallback && t.md.Strategy != StrategySafety,
			Degraded:   len(t.md.Degraded) > 0,
		})
		if err != nil {
			r.log.Warn("record outcome failed", zap.Error(err))
		}
	}
	if r.turnLog != nil {
		candidates := make([]string, 0, len(t.attempts))
		for _, a := range t.attempts {
			if !a.failed {
				candidates = append(candidates, a.candidate)
			}
		}
		states := make([]string, len(t.md.States))
		for i, s := range t.md.States {
			states[i] = string(s)
		}
		err := logging.LogTurn(r.turnLog, logging.TurnEntry{
			TurnID:     t.md.TurnID,
			SessionID:  t.sessionID,
			Strategy:   string(t.md.Strategy),
			Risk:       string(t.md.Risk),
			Input:      t.message,
			Candidates: candidates,
			Grounding:  t.grounding.Unit,
			Response:   t.response,
			Confidence: t.md.Confidence,
			Violations: t.md.Violations,
			States:     states,
		})
		if err != nil {
			r.log.Warn("turn log failed", zap.Error(err))
		}
	}
}

// #endregion

// #region helpers

func messageTexts(msgs []session.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Text
	}
	return out
}

func userTexts(msgs []session.Message) []string {
	var out []string
	for _, m := range msgs {
		if m.IsUser {
			out = append(out, m.Text)
		}
	}
	return out
}

func promptTurns(msgs []session.Message) []prompt.Turn {
	out := make([]prompt.Turn, len(msgs))
	for i, m := range msgs {
		out[i] = prompt.Turn{Text: m.Text, IsUser: m.IsUser, Timestamp: m.Timestamp}
	}
	return out
}

// #endregion
