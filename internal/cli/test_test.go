package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeTest(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()

	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)

	err := cmd.Execute()
	return buf.String(), err
}

// scenarioDir copies the arith graph into a temporary directory with one
// passing scenario that refers to it.
func scenarioDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	graph, err := os.ReadFile(testGraph("arith.yaml"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "arith.yaml"), graph, 0644))

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "scenarios"), 0755))
	scenario := `name: arith_fold
description: 2*3 folds
graph: ../arith.yaml
run_id: cli-test
runs:
  - {args: [4], want: 10}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scenarios", "arith_fold.yaml"), []byte(scenario), 0644))
	return filepath.Join(dir, "scenarios")
}

func TestTestCommand_Scenarios(t *testing.T) {
	out, err := executeTest(t, "text", filepath.Join("testdata", "scenarios"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "✓ arith_fold")
	assert.Contains(t, out, "✗ sum_wrong")
	assert.Contains(t, out, "run 0 [4]: expected 7, got 6")
	assert.Contains(t, out, "1 passed, 1 failed, 2 total")
}

func TestTestCommand_Filter(t *testing.T) {
	out, err := executeTest(t, "text", filepath.Join("testdata", "scenarios"), "--filter", "arith_*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "✓ All scenarios passed")
	assert.NotContains(t, out, "sum_wrong")
}

func TestTestCommand_JSON(t *testing.T) {
	out, err := executeTest(t, "json", filepath.Join("testdata", "scenarios"))
	require.Error(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Failed)
}

func TestTestCommand_UpdateThenCompare(t *testing.T) {
	dir := scenarioDir(t)

	out, err := executeTest(t, "text", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ arith_fold")

	golden, err := os.ReadFile(filepath.Join(dir, "golden", "arith_fold.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(golden), "scenario arith_fold\n")
	assert.Contains(t, string(golden), "1 constfold fold v3: v3 = Mul.i32 v1, v2 => v6 = Constant.i32 6")

	// The golden directory is not scanned for scenarios.
	_, err = executeTest(t, "text", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "arith_fold.golden"), []byte("stale\n"), 0644))
	out, err = executeTest(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "snapshot does not match golden file")
}

func TestTestCommand_LoadError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\n"), 0644))

	out, err := executeTest(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommand_NoScenarios(t *testing.T) {
	out, err := executeTest(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommand_MissingDirectory(t *testing.T) {
	_, err := executeTest(t, "text", filepath.Join(t.TempDir(), "none"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("s", "golden", "sum.golden"), goldenFilePath(filepath.Join("s", "sum.yaml")))
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt", "golden/a.yaml", "nested/c.yaml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, nil, 0644))
	}

	tests := []struct {
		filter string
		want   []string
	}{
		{"", []string{"a.yml", "b.yaml", "nested/c.yaml"}},
		{"b*", []string{"b.yaml"}},
		{"z*", nil},
	}
	for _, tt := range tests {
		t.Run("filter="+tt.filter, func(t *testing.T) {
			files, err := findScenarioFiles(dir, tt.filter)
			require.NoError(t, err)

			var got []string
			for _, f := range files {
				rel, err := filepath.Rel(dir, f)
				require.NoError(t, err)
				got = append(got, filepath.ToSlash(rel))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindScenarioFiles_BadFilter(t *testing.T) {
	_, err := findScenarioFiles(t.TempDir(), "[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")
}
