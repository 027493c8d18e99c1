package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/danielpatrickdp/lucid/internal/codec"
	"github.com/danielpatrickdp/lucid/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("google.golang.org/grpc/internal/grpcsync.(*CallbackSerializer).run"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

// #region harness
// lucid runs the root command against a throwaway config in test mode.
func lucid(t *testing.T, ctx context.Context, db, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	base := []string{
		"--config", filepath.Join(t.TempDir(), "absent.yaml"),
		"--db", db,
		"--test-mode",
		"--log-level", "error",
	}
	root.SetArgs(append(base, args...))
	var out bytes.Buffer
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&out)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func tempDB(t *testing.T) string {
	return filepath.Join(t.TempDir(), "lucid.db")
}

// #endregion harness

func TestChatThenInspect(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)

	out, err := lucid(t, ctx, db,
		"I feel like I am failing at everything lately\n\nWhat should I do?\nquit\n", "chat", "-v")
	require.NoError(t, err)
	assert.Contains(t, out, "Lucid is listening")
	assert.Contains(t, out, "strategy=safety")
	assert.GreaterOrEqual(t, strings.Count(out, "session="), 2)

	out, err = lucid(t, ctx, db, "", "sessions", "list", "--json")
	require.NoError(t, err)
	var rows []session.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, 4, rows[0].TotalMessages)
	assert.Equal(t, 2, rows[0].UserMessages)

	out, err = lucid(t, ctx, db, "", "sessions", "show", rows[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, "What should I do?")

	out, err = lucid(t, ctx, db, "", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "safety")

	out, err = lucid(t, ctx, db, "", "replay")
	require.NoError(t, err, out)
	assert.Contains(t, out, "2 total, 2 match, 0 diverge")

	out, err = lucid(t, ctx, db, "", "audit", "--recent", "10")
	require.NoError(t, err, out)

	_, err = lucid(t, ctx, db, "", "sessions", "delete", rows[0].ID)
	require.NoError(t, err)
	out, err = lucid(t, ctx, db, "", "sessions", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no active sessions")
}

func TestChatNewSessionCommand(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)

	_, err := lucid(t, ctx, db, "first thought\n/new\nsecond thought\nexit\n", "chat")
	require.NoError(t, err)

	out, err := lucid(t, ctx, db, "", "sessions", "list", "--json")
	require.NoError(t, err)
	var rows []session.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	assert.Len(t, rows, 2)
}

func TestAuditFixedTexts(t *testing.T) {
	out, err := lucid(t, context.Background(), tempDB(t), "", "audit")
	require.NoError(t, err, out)
	assert.Contains(t, out, "0 failed")
}

func TestReplayFixture(t *testing.T) {
	fixture := filepath.Join("..", "..", "internal", "replay", "testdata", "sample_session.json")
	out, err := lucid(t, context.Background(), tempDB(t), "", "replay", "--fixture", fixture)
	require.NoError(t, err, out)
	assert.Contains(t, out, "5 total, 5 match")
}

func TestIngestSkipsUnchanged(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)
	dataset := filepath.Join(t.TempDir(), "units.json")
	require.NoError(t, os.WriteFile(dataset, []byte(`{"units": [
		{"id": "comparison", "core_reframe": "Comparison measures a whole life against a highlight reel.",
		 "question_bank": ["What would you notice if you measured yourself only against yesterday?"],
		 "theme_tags": ["comparison"]},
		{"id": "control", "core_reframe": "Control is often a way of holding uncertainty at arm's length.",
		 "question_bank": ["What might loosen if you let one thing stay uncertain?"]}
	]}`), 0o644))

	out, err := lucid(t, ctx, db, "", "ingest", dataset)
	require.NoError(t, err)
	assert.Contains(t, out, "embedded 2, unchanged 0")

	out, err = lucid(t, ctx, db, "", "ingest", dataset)
	require.NoError(t, err)
	assert.Contains(t, out, "embedded 0, unchanged 2")
	assert.Contains(t, out, "corpus now 2 units")
}

func TestRunChatWithLocalReflector(t *testing.T) {
	c := &cli{configPath: filepath.Join(t.TempDir(), "absent.yaml"), dbPath: tempDB(t), logLevel: "error", testMode: true}
	require.NoError(t, c.load())
	ctx := context.Background()
	rt, err := c.newRuntime(ctx)
	require.NoError(t, err)
	defer rt.Close()

	var local reflectFn = rt.reflectFunc()
	var out bytes.Buffer
	require.NoError(t, runChat(ctx, strings.NewReader("My week was strange\nquit\n"), &out, local, rt.sessions.Clear, "", true))
	assert.Contains(t, out.String(), "strategy=ungrounded")
}

func TestIngestRequiresDataset(t *testing.T) {
	_, err := lucid(t, context.Background(), tempDB(t), "", "ingest")
	assert.ErrorContains(t, err, "no dataset")
}

func TestServeRoundTrip(t *testing.T) {
	c := &cli{configPath: filepath.Join(t.TempDir(), "absent.yaml"), dbPath: tempDB(t), logLevel: "error", testMode: true}
	require.NoError(t, c.load())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt, err := c.newRuntime(ctx)
	require.NoError(t, err)
	defer rt.Close()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- rt.serve(ctx, lis) }()

	client, err := codec.Dial(lis.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	rctx, rcancel := context.WithTimeout(ctx, 5*time.Second)
	defer rcancel()
	reply, err := client.Reflect(rctx, "", "My week was strange")
	require.NoError(t, err)
	assert.NotEmpty(t, reply.SessionID)
	assert.True(t, strings.HasSuffix(reply.Response, "?"))
	assert.Equal(t, "ungrounded", reply.Metadata["strategy"])

	hits, err := client.Search(rctx, "I keep failing", 2)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "builtin-failing", hits[0].ID)

	text, err := client.Complete(rctx, "anything", 0.5, 50)
	require.NoError(t, err)
	assert.NotEmpty(t, text)

	out, err := lucid(t, rctx, tempDB(t), "My week was strange\nquit\n", "chat", "--remote", lis.Addr().String(), "-v")
	require.NoError(t, err, out)
	assert.Contains(t, out, "strategy=ungrounded")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}
