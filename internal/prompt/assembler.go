// Package prompt assembles the instruction text sent to the model. Assembly
// is a pure function of its inputs so the same turn always yields the same prompt.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/danielpatrickdp/lucid/internal/cognitive"
	"github.com/danielpatrickdp/lucid/internal/lexical"
)

// #region types

// Turn is one message of recent conversation.
type Turn struct {
	Text      string
	IsUser    bool
	Timestamp time.Time
}

// Context carries everything the assembler needs about the current turn.
type Context struct {
	UserMessage          string
	History              []Turn // chronological, oldest first
	Emotions             []string
	CognitivePatterns    []string
	PhilosophicalContext string
}

// #endregion types

// #region assembler

const (
	// DefaultHistoryTurns is three exchanges.
	DefaultHistoryTurns = 6

	// repetitionWindow is how many recent agent turns a template is checked against.
	repetitionWindow = 5
	// repetitionOverlap drops a template when this share of its words already appeared.
	repetitionOverlap = 0.3
)

// Assembler builds prompts with a fixed history window.
type Assembler struct {
	historyTurns int
}

// New returns an Assembler that renders the last historyTurns messages.
func New(historyTurns int) *Assembler {
	if historyTurns <= 0 {
		historyTurns = DefaultHistoryTurns
	}
	return &Assembler{historyTurns: historyTurns}
}

// Build renders the prompt for a first attempt.
func (a *Assembler) Build(ctx Context, unit *cognitive.Unit) string {
	return strings.Join(a.Blocks(ctx, unit), "\n\n")
}

// BuildStrict renders the prompt for the single regeneration attempt.
func (a *Assembler) BuildStrict(ctx Context, unit *cognitive.Unit) string {
	return strings.Join(append(a.Blocks(ctx, unit), strictInstruction), "\n\n")
}

// Blocks returns the prompt blocks in order: policy, grounding, recent
// conversation (omitted when empty), current message, task.
func (a *Assembler) Blocks(ctx Context, unit *cognitive.Unit) []string {
	blocks := []string{systemPolicy, groundingBlock(unit, ctx.History)}
	if h := a.historyBlock(ctx.History); h != "" {
		blocks = append(blocks, h)
	}
	blocks = append(blocks, messageBlock(ctx), taskInstruction)
	return blocks
}

// #endregion assembler

// #region blocks

func groundingBlock(unit *cognitive.Unit, history []Turn) string {
	if unit == nil {
		return ungroundedBlock
	}
	var b strings.Builder
	b.WriteString("GROUNDING\n")
	if unit.CoreReframe != "" {
		fmt.Fprintf(&b, "Core reframe: %s\n", unit.CoreReframe)
	}
	if bank := freshQuestions(unit.QuestionBank, history); len(bank) > 0 {
		b.WriteString("Question templates:\n")
		for _, q := range bank {
			fmt.Fprintf(&b, "- %s\n", q)
		}
	}
	if len(unit.ThemeTags) > 0 {
		fmt.Fprintf(&b, "Themes: %s\n", strings.Join(unit.ThemeTags, ", "))
	}
	if unit.RewireTarget != "" {
		fmt.Fprintf(&b, "Rewire target: %s\n", unit.RewireTarget)
	}
	b.WriteString("Base the framing statement on the reframe and let the question grow from the templates without copying them word for word.")
	return b.String()
}

func (a *Assembler) historyBlock(history []Turn) string {
	if len(history) == 0 {
		return ""
	}
	start := len(history) - a.historyTurns
	if start < 0 {
		start = 0
	}
	var b strings.Builder
	b.WriteString("RECENT CONVERSATION (oldest first)")
	for _, t := range history[start:] {
		speaker := "Lucid"
		if t.IsUser {
			speaker = "Person"
		}
		fmt.Fprintf(&b, "\n%s: %s", speaker, lexical.NormalizeSpace(t.Text))
	}
	return b.String()
}

func messageBlock(ctx Context) string {
	var b strings.Builder
	b.WriteString("CURRENT MESSAGE\n")
	b.WriteString(lexical.NormalizeSpace(ctx.UserMessage))
	var notes []string
	if len(ctx.Emotions) > 0 {
		notes = append(notes, "emotions: "+strings.Join(ctx.Emotions, ", "))
	}
	if len(ctx.CognitivePatterns) > 0 {
		notes = append(notes, "thinking patterns: "+strings.Join(ctx.CognitivePatterns, ", "))
	}
	if len(notes) > 0 {
		fmt.Fprintf(&b, "\nObserved %s.", strings.Join(notes, "; "))
	}
	if ctx.PhilosophicalContext != "" {
		b.WriteString("\n" + ctx.PhilosophicalContext)
	}
	return b.String()
}

// #endregion blocks

// #region repetition

// freshQuestions drops templates whose words mostly appeared in recent agent
// turns. When every template is stale the bank is kept whole.
func freshQuestions(bank []string, history []Turn) []string {
	var recent []string
	for i := len(history) - 1; i >= 0 && len(recent) < repetitionWindow; i-- {
		if !history[i].IsUser {
			recent = append(recent, history[i].Text)
		}
	}
	if len(recent) == 0 {
		return bank
	}
	said := lexical.Tokenize(strings.Join(recent, " "))
	var fresh []string
	for _, q := range bank {
		if lexical.Overlap(lexical.Tokenize(q), said) < repetitionOverlap {
			fresh = append(fresh, q)
		}
	}
	if len(fresh) == 0 {
		return bank
	}
	return fresh
}

// #endregion repetition
