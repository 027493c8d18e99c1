package generation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/lucid/internal/lazy"
	"github.com/danielpatrickdp/lucid/internal/validator"
)

func adapterFor(b Backend, cfg Config) *Adapter {
	return NewAdapter(lazy.Of(b), cfg, nil)
}

func requireFailure(t *testing.T, err error, kind Kind) {
	t.Helper()
	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, kind, f.Kind)
}

func TestGenerateSuccess(t *testing.T) {
	var gotTemp float64
	var gotMax int
	b := BackendFunc(func(_ context.Context, prompt string, temp float64, max int) (string, error) {
		gotTemp, gotMax = temp, max
		return "  A framing. A question?  ", nil
	})
	out, err := adapterFor(b, DefaultConfig()).Generate(context.Background(), "prompt", 0.6)
	require.NoError(t, err)
	assert.Equal(t, "A framing. A question?", out)
	assert.Equal(t, 0.6, gotTemp)
	assert.Equal(t, 150, gotMax)
}

func TestGenerateFailureKinds(t *testing.T) {
	cases := []struct {
		name string
		b    BackendFunc
		kind Kind
	}{
		{"backend", func(context.Context, string, float64, int) (string, error) {
			return "", errors.New("connection reset")
		}, KindBackend},
		{"quota", func(context.Context, string, float64, int) (string, error) {
			return "", errors.New("POST /responses: 429 Too Many Requests")
		}, KindQuota},
		{"malformed", func(context.Context, string, float64, int) (string, error) {
			return decodeReflection("not json")
		}, KindMalformed},
		{"empty", func(context.Context, string, float64, int) (string, error) {
			return "   ", nil
		}, KindEmpty},
		{"panic", func(context.Context, string, float64, int) (string, error) {
			panic("boom")
		}, KindPanic},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := adapterFor(tc.b, DefaultConfig()).Generate(context.Background(), "p", 0.6)
			assert.Empty(t, out)
			requireFailure(t, err, tc.kind)
		})
	}
}

func TestGenerateTimeout(t *testing.T) {
	b := BackendFunc(func(ctx context.Context, _ string, _ float64, _ int) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	start := time.Now()
	_, err := adapterFor(b, Config{Timeout: 20 * time.Millisecond}).Generate(context.Background(), "p", 0.6)
	requireFailure(t, err, KindTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestGenerateCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := adapterFor(NewStatic(), DefaultConfig()).Generate(ctx, "p", 0.6)
	requireFailure(t, err, KindCanceled)
}

func TestGenerateUnavailable(t *testing.T) {
	h := lazy.New(func(context.Context) (Backend, error) { return nil, errors.New("no key") })
	_, err := NewAdapter(h, DefaultConfig(), nil).Generate(context.Background(), "p", 0.6)
	requireFailure(t, err, KindUnavailable)
}

func TestStaticCycles(t *testing.T) {
	s := NewStatic("one", "two")
	ctx := context.Background()
	var got []string
	for range 3 {
		out, err := s.Complete(ctx, "", 0, 0)
		require.NoError(t, err)
		got = append(got, out)
	}
	assert.Equal(t, []string{"one", "two", "one"}, got)
}

func TestDecodeReflection(t *testing.T) {
	out, err := decodeReflection("```json\n{\"framing_statement\":\"Worth is not a grade.\",\"reflective_question\":\"Who taught you otherwise?\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "Worth is not a grade. Who taught you otherwise?", out)

	_, err = decodeReflection("Worth is not a grade.")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeReflectionTerminatesFields(t *testing.T) {
	cases := []struct {
		raw, want string
	}{
		{`{"framing_statement":"Worth is not earned","reflective_question":"What keeps score for you?"}`,
			"Worth is not earned. What keeps score for you?"},
		{`{"framing_statement":"Worth is not earned.","reflective_question":"What keeps score for you"}`,
			"Worth is not earned. What keeps score for you?"},
		{`{"framing_statement":"Worth is not earned","reflective_question":"What keeps score for you."}`,
			"Worth is not earned. What keeps score for you?"},
		{`{"framing_statement":"","reflective_question":"What keeps score for you"}`,
			"What keeps score for you?"},
	}
	for _, tc := range cases {
		out, err := decodeReflection(tc.raw)
		require.NoError(t, err)
		assert.Equal(t, tc.want, out, "raw %s", tc.raw)
		repaired := validator.ValidateAndRepair(out, nil).String()
		assert.True(t, strings.HasSuffix(repaired, tc.want), "repaired %q", repaired)
	}
}

func TestReflectionSchemaIsStrict(t *testing.T) {
	assert.Equal(t, false, reflectionSchema["additionalProperties"])
	required, ok := reflectionSchema["required"].([]string)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"framing_statement", "reflective_question"}, required)
}

func TestOpenAIBackendAgainstFakeServer(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/responses") {
			http.NotFound(w, r)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		text, _ := json.Marshal(`{"framing_statement":"Effort and outcome are separate ledgers.","reflective_question":"Which ledger are you reading right now?"}`)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"resp_1","object":"response","created_at":1,"status":"completed","model":"gpt-4o-mini",
			"output":[{"type":"message","id":"msg_1","status":"completed","role":"assistant",
			"content":[{"type":"output_text","annotations":[],"text":`+string(text)+`}]}]}`)
	}))
	defer srv.Close()

	o, err := NewOpenAI("test-key", "", option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
	require.NoError(t, err)
	out, err := o.Complete(context.Background(), "prompt", 0.2, 150)
	require.NoError(t, err)
	assert.Equal(t, "Effort and outcome are separate ledgers. Which ledger are you reading right now?", out)

	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.Equal(t, 0.2, body["temperature"])
	assert.EqualValues(t, 150, body["max_output_tokens"])
}

func TestNewBackend(t *testing.T) {
	b, err := NewBackend(context.Background(), ProviderConfig{})
	require.NoError(t, err)
	assert.IsType(t, &Static{}, b)

	_, err = NewBackend(context.Background(), ProviderConfig{Provider: "openai"})
	assert.Error(t, err)
	_, err = NewBackend(context.Background(), ProviderConfig{Provider: "llama"})
	assert.Error(t, err)
}
