package eval

// #region eval-config
// EvalConfig holds the bounds every delivered response must respect.
type EvalConfig struct {
	MaxResponseChars int // longest acceptable response, in characters
	RequireStatement bool
}

// DefaultEvalConfig matches the validator defaults.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		MaxResponseChars: 280,
		RequireStatement: true,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single audit check result.
type EvalMetric struct {
	Name  string
	Value float64
	Pass  bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of auditing one response.
type EvalResult struct {
	Passed  bool
	Metrics []EvalMetric
	Reason  string
}

// Failed returns the names of the failing metrics.
func (r EvalResult) Failed() []string {
	var out []string
	for _, m := range r.Metrics {
		if !m.Pass {
			out = append(out, m.Name)
		}
	}
	return out
}

// #endregion eval-result
