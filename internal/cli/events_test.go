package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ssaopt/internal/store"
)

func executeEvents(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()

	buf := &bytes.Buffer{}
	cmd := NewEventsCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)

	err := cmd.Execute()
	return buf.String(), err
}

// seedEventLog writes two runs to a fresh database: an unroll run with a
// decision and a skip, then a fold-only run without events.
func seedEventLog(t *testing.T) string {
	t.Helper()

	db := filepath.Join(t.TempDir(), "runs.db")
	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	require.NoError(t, st.WriteRun(ctx, store.Run{ID: "run-a", Graph: "sum", Passes: "fold,unroll", Before: "aaaa"}))
	require.NoError(t, st.WriteEvents(ctx, []store.Event{
		{RunID: "run-a", Seq: 1, Pass: store.PassUnroll, Kind: store.KindUnroll, Subject: "loop1@bb2", Detail: "unknown trip count", Factor: 4},
		{RunID: "run-a", Seq: 2, Pass: store.PassUnroll, Kind: store.KindSkip, Subject: "loop2@bb7", Detail: "loop contains calls"},
	}))
	require.NoError(t, st.FinishRun(ctx, "run-a", "bbbb", true))

	require.NoError(t, st.WriteRun(ctx, store.Run{ID: "run-b", Graph: "arith", Passes: "fold", Before: "cccc"}))
	require.NoError(t, st.FinishRun(ctx, "run-b", "cccc", false))
	return db
}

func TestEventsCommand_LatestRun(t *testing.T) {
	db := seedEventLog(t)

	out, err := executeEvents(t, "text", db)
	require.NoError(t, err)
	assert.Contains(t, out, "run run-b: arith [fold]\n")
	assert.Contains(t, out, "cccc -> cccc")
	assert.Contains(t, out, "no events")
}

func TestEventsCommand_SelectedRun(t *testing.T) {
	db := seedEventLog(t)

	out, err := executeEvents(t, "text", db, "--run", "run-a")
	require.NoError(t, err)
	assert.Contains(t, out, "run run-a: sum [fold,unroll] changed\n")
	assert.Contains(t, out, "    1 unroll    unroll loop1@bb2 x4: unknown trip count\n")
	assert.Contains(t, out, "    2 unroll    skip   loop2@bb7: loop contains calls\n")
}

func TestEventsCommand_JSON(t *testing.T) {
	db := seedEventLog(t)

	out, err := executeEvents(t, "json", db, "--run", "run-a")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		RunID  string       `json:"run_id"`
		Data   EventsResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-a", resp.RunID)
	assert.Equal(t, "sum", resp.Data.Run.Graph)
	assert.True(t, resp.Data.Run.Changed)
	assert.Equal(t, map[string]int{store.KindUnroll: 1, store.KindSkip: 1}, resp.Data.Counts)
	require.Len(t, resp.Data.Events, 2)
	assert.Equal(t, uint32(4), resp.Data.Events[0].Factor)
}

func TestEventsCommand_List(t *testing.T) {
	db := seedEventLog(t)

	out, err := executeEvents(t, "text", db, "--list")
	require.NoError(t, err)
	assert.Equal(t, "run-a sum fold,unroll changed\nrun-b arith fold\n", out)
}

func TestEventsCommand_UnknownRun(t *testing.T) {
	db := seedEventLog(t)

	out, err := executeEvents(t, "text", db, "--run", "run-z")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Contains(t, out, "Error [E002]")
}

func TestEventsCommand_EmptyLog(t *testing.T) {
	db := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(db)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := executeEvents(t, "text", db)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Contains(t, out, "latest run")

	out, err = executeEvents(t, "text", db, "--list")
	require.NoError(t, err)
	assert.Equal(t, "No runs recorded.\n", out)
}

func TestEventsCommand_MissingDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "none.db")

	out, err := executeEvents(t, "text", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "event log not found")
	assert.NoFileExists(t, db)
}
