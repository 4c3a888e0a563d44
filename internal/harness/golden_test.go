package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ssaopt/internal/store"
)

func TestRunWithGolden_Scenarios(t *testing.T) {
	for _, name := range []string{"fold_arith", "calls_skipped"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, result.Errors)
		})
	}
}

func TestRunWithGolden_Deterministic(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "sum_unrolled.yaml"))
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, string(Snapshot(scenario.Name, first)), string(Snapshot(scenario.Name, second)))
}

func TestSnapshot_Format(t *testing.T) {
	result := NewResult()
	result.Events = []store.Event{
		{Seq: 1, Pass: store.PassUnroll, Kind: store.KindUnroll, Subject: "loop1@bb2", Detail: "full", Factor: 10},
		{Seq: 2, Pass: store.PassUnroll, Kind: store.KindSkip, Subject: "loop2@bb7"},
	}
	result.Runs = []RunOutcome{
		{Args: []int64{1, 2}, Value: "3"},
		{Args: []int64{0}, Value: "7", Calls: 2},
		{Args: []int64{}, Fault: "DEOPTIMIZE"},
	}
	result.Dump = "graph \"g\"\n"

	assert.Equal(t,
		"scenario demo\n"+
			"events:\n"+
			"  1 unroll unroll loop1@bb2 x10: full\n"+
			"  2 unroll skip loop2@bb7\n"+
			"runs:\n"+
			"  [1 2] => 3\n"+
			"  [0] => 7 calls=2\n"+
			"  [] => fault DEOPTIMIZE\n"+
			"graph \"g\"\n",
		string(Snapshot("demo", result)))
}
