package validator

import (
	"strings"
	"unicode"

	"github.com/danielpatrickdp/lucid/internal/lexical"
)

// #region normalize

var stripChars = strings.NewReplacer(
	"“", "", "”", "", "\"", "", "`", "", "*", "",
	"‘", "'", "’", "'",
)

// normalize removes quoting and emphasis marks, folds curly apostrophes,
// and collapses whitespace.
func normalize(text string) string {
	return lexical.NormalizeSpace(stripChars.Replace(text))
}

// #endregion normalize

// #region segment

type clause struct {
	body       string // text without its terminator run
	terminator string // the terminator run as written, empty when the text ended without one
	question   bool
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// segment splits normalized text into clauses. A boundary is a run of
// terminators followed by whitespace or end of text, so "3.5" stays intact.
// A clause is a question when its terminator run contains '?'. Stray '?'
// inside a body is replaced by a space so the question count of the
// rebuilt text matches the clause count.
func segment(text string) []clause {
	runes := []rune(text)
	var out []clause
	var body strings.Builder
	emit := func(term string) {
		b := lexical.NormalizeSpace(strings.ReplaceAll(body.String(), "?", " "))
		body.Reset()
		b = strings.TrimLeftFunc(b, func(r rune) bool { return isTerminator(r) || unicode.IsSpace(r) })
		if b == "" {
			return
		}
		out = append(out, clause{body: b, terminator: term, question: strings.Contains(term, "?")})
	}

	for i := 0; i < len(runes); {
		r := runes[i]
		if !isTerminator(r) {
			body.WriteRune(r)
			i++
			continue
		}
		j := i
		for j < len(runes) && isTerminator(runes[j]) {
			j++
		}
		run := string(runes[i:j])
		if j == len(runes) || unicode.IsSpace(runes[j]) {
			emit(run)
		} else {
			body.WriteString(run)
		}
		i = j
	}
	emit("")
	return out
}

func countQuestions(cs []clause) int {
	n := 0
	for _, c := range cs {
		if c.question {
			n++
		}
	}
	return n
}

// #endregion segment
