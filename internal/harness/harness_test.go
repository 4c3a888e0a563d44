package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ssaopt/internal/config"
	"github.com/roach88/ssaopt/internal/store"
)

func graphPath(name string) string {
	return filepath.Join("testdata", "graphs", name)
}

func TestRun_Scenarios(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Len(t, result.Runs, len(scenario.Runs))
		})
	}
}

func TestRun_EventsComeFromStore(t *testing.T) {
	scenario := &Scenario{
		Name:        "events",
		Description: "fold events are read back with run ID and seq",
		Graph:       graphPath("arith.yaml"),
		RunID:       "run-events",
		Assertions: []Assertion{
			{Type: AssertEventCount, Kind: store.KindFold, Count: count(1)},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, result.Errors)
	require.Len(t, result.Events, 1)
	assert.Equal(t, "run-events", result.Events[0].RunID)
	assert.Equal(t, int64(1), result.Events[0].Seq)
	assert.True(t, result.Changed)
	assert.Contains(t, result.Dump, `graph "arith"`)
}

func TestRun_DefaultRunID(t *testing.T) {
	scenario := &Scenario{
		Name:        "default_id",
		Description: "an empty run ID falls back to the fixed default",
		Graph:       graphPath("arith.yaml"),
		Runs:        []RunStep{{Args: []int64{1}}},
	}
	result, err := Run(scenario)
	require.NoError(t, err)
	require.NotEmpty(t, result.Events)
	assert.Equal(t, "test-run-default", result.Events[0].RunID)
}

func TestRun_WrongWantFails(t *testing.T) {
	want := int64(11)
	scenario := &Scenario{
		Name:        "wrong_want",
		Description: "an expectation that does not hold fails the scenario",
		Graph:       graphPath("arith.yaml"),
		Runs:        []RunStep{{Args: []int64{4}, Want: &want}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "run 0 [4]: expected 11, got 10")
	assert.Equal(t, "[4] => 10", result.Runs[0].String())
}

func TestRun_WantIsCanonicalized(t *testing.T) {
	// 2^32 + 10 truncates to 10 in i32.
	want := int64(1<<32 + 10)
	scenario := &Scenario{
		Name:        "canonical_want",
		Description: "expected values are compared in the result type",
		Graph:       graphPath("arith.yaml"),
		Runs:        []RunStep{{Args: []int64{4}, Want: &want}},
	}
	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestRun_ExpectedFaultMissing(t *testing.T) {
	scenario := &Scenario{
		Name:        "no_fault",
		Description: "a run that returns fails an expected fault",
		Graph:       graphPath("arith.yaml"),
		Runs:        []RunStep{{Args: []int64{4}, Fault: "DEOPTIMIZE"}},
	}
	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected fault DEOPTIMIZE, got 10")
}

func TestRun_DeoptimizationIsCompared(t *testing.T) {
	graph := filepath.Join(t.TempDir(), "inc.yaml")
	require.NoError(t, os.WriteFile(graph, []byte(`
name: inc
params:
  - {name: x, type: i32}
blocks:
  - name: entry
    insts:
      - {name: one, op: Constant, type: i32, value: "1"}
      - {name: ss, op: SaveState, args: [x]}
      - {name: y, op: AddOverflowCheck, type: i32, args: [x, one, ss]}
      - {op: Return, type: i32, args: [y]}
`), 0644))

	want := int64(42)
	scenario := &Scenario{
		Name:        "inc",
		Description: "an overflow deoptimizes the same way before and after",
		Graph:       graph,
		Runs: []RunStep{
			{Args: []int64{41}, Want: &want},
			{Args: []int64{2147483647}, Fault: "DEOPTIMIZE"},
		},
	}
	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Equal(t, "[2147483647] => fault DEOPTIMIZE", result.Runs[1].String())
}

func TestRun_FailedAssertionsAreReported(t *testing.T) {
	scenario := &Scenario{
		Name:        "failing",
		Description: "assertion failures are collected in the result",
		Graph:       graphPath("arith.yaml"),
		Assertions: []Assertion{
			{Type: AssertGraphChanged, Value: boolean(false)},
			{Type: AssertLoopCount, Count: count(1)},
		},
	}
	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Len(t, result.Errors, 2)
}

func TestRun_MissingGraph(t *testing.T) {
	scenario := &Scenario{
		Name:        "missing",
		Description: "a graph that cannot be loaded is an error",
		Graph:       filepath.Join(t.TempDir(), "none.yaml"),
		Runs:        []RunStep{{Args: []int64{1}}},
	}
	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load graph")
}

func TestRun_InvalidPassList(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_passes",
		Description: "a pass list the pipeline rejects is an error",
		Graph:       graphPath("arith.yaml"),
		Passes:      []string{"fold", "fold"},
		Runs:        []RunStep{{Args: []int64{1}}},
	}
	_, err := Run(scenario)
	require.Error(t, err)
	assert.True(t, config.IsConfigError(err))
}
