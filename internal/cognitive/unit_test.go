package cognitive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromHitPrefersCoreReframe(t *testing.T) {
	u := FromHit("I keep failing", "raw content", map[string]any{
		"reframe":       "secondary",
		"core_reframe":  "Failure converts single events into permanent states.",
		"question_bank": []any{"What belief makes mistake permanent?", "  "},
		"theme_tags":    "Failure, identity, failure",
		"rewire_target": "worth",
	})
	assert.Equal(t, "Failure converts single events into permanent states.", u.CoreReframe)
	assert.Equal(t, []string{"What belief makes mistake permanent?"}, u.QuestionBank)
	assert.Equal(t, []string{"failure", "identity"}, u.ThemeTags)
	assert.Equal(t, "worth", u.RewireTarget)
	assert.Equal(t, "I keep failing", u.UserInput)
	assert.Equal(t, "raw content", u.RetrievedText)
}

func TestFromHitFallsBackToContent(t *testing.T) {
	u := FromHit("x", "  Comparison converts observation into verdict. ", nil)
	assert.Equal(t, "Comparison converts observation into verdict.", u.CoreReframe)
	assert.False(t, u.HasQuestions())
}

func TestFromHitJSONEncodedBank(t *testing.T) {
	u := FromHit("x", "c", map[string]any{
		"question_bank":  `["Whose standard created this hierarchy?"]`,
		"short_question": "What comparison became your measurement?",
	})
	assert.Equal(t, []string{
		"Whose standard created this hierarchy?",
		"What comparison became your measurement?",
	}, u.QuestionBank)
}

func TestParseDatasetArrayAndWrapper(t *testing.T) {
	arr := []byte(`[
		{"id": "u1", "core_reframe": "Perfection converts growth into constant correction.", "theme_tags": ["perfection"]},
		{"question_bank": ["What does this perfection protect against?"]},
		{"id": "empty", "theme_tags": ["none"]}
	]`)
	recs, err := ParseDataset(arr)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "u1", recs[0].ID)
	assert.Equal(t, "Perfection converts growth into constant correction.", recs[0].Text)
	assert.Equal(t, []any{"perfection"}, recs[0].Metadata["theme_tags"])
	assert.NotEmpty(t, recs[1].ID)
	assert.Equal(t, "What does this perfection protect against?", recs[1].Text)

	wrapped := []byte(`{"units": [{"unit_id": "w1", "text": "Guilt converts autonomy into betrayal."}]}`)
	recs, err = ParseDataset(wrapped)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "w1", recs[0].ID)
}

func TestLoadDatasetMissingFile(t *testing.T) {
	_, err := LoadDataset(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestLoadDatasetFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "units.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"units":[{"id":"a","text":"Control substitutes knowing for being."}]}`), 0o644))
	recs, err := LoadDataset(path)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "a", recs[0].ID)
}
