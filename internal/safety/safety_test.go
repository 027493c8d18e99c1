package safety

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/lucid/internal/validator"
)

func TestCheckCategories(t *testing.T) {
	cases := []struct {
		msg      string
		risk     Risk
		category string
	}{
		{"Sometimes I want to die", RiskHigh, "crisis"},
		{"I think about SUICIDE a lot", RiskHigh, "crisis"},
		{"I can’t go on like this", RiskHigh, "crisis"},
		{"I'm completely overwhelmed at work", RiskMedium, "distress"},
		{"What should I do about my job?", RiskLow, "advice"},
		{"Please tell me the answer", RiskLow, "advice"},
		{"I don't know what to do anymore", RiskLow, "dependency"},
		{"I can't do this without you", RiskLow, "dependency"},
		{"I keep comparing myself to my brother", RiskSafe, ""},
	}
	for _, tc := range cases {
		r := Check(tc.msg)
		assert.Equal(t, tc.risk, r.Risk, tc.msg)
		assert.Equal(t, tc.category, r.Category, tc.msg)
		assert.Equal(t, tc.risk != RiskSafe, r.RequiresRedirection, tc.msg)
		if r.RequiresRedirection {
			assert.NotEmpty(t, r.Response, tc.msg)
		}
	}
}

func TestCrisisOutranksAdvice(t *testing.T) {
	r := Check("What should I do, I want to end my life")
	assert.Equal(t, RiskHigh, r.Risk)
	assert.Equal(t, crisisResponse, r.Response)
}

func TestRedirectIsDeterministic(t *testing.T) {
	a := Check("Should I quit my job?")
	b := Check("Should I quit my job?")
	assert.Equal(t, a.Response, b.Response)
	assert.Contains(t, adviceRedirects, a.Response)
}

func TestResponsesAreWellFormed(t *testing.T) {
	v := validator.New(validator.DefaultConfig())
	for _, resp := range Responses() {
		out := v.Check(resp, nil)
		require.False(t, out.Report.Rejected, "response rejected: %q %v", resp, out.Report.Violations)
		assert.Equal(t, resp, out.Response.String())
		assert.Equal(t, 1, strings.Count(resp, "?"))
	}
}
