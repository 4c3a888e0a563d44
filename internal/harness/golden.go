package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/ssaopt/internal/store"
)

// Snapshot renders a result for golden comparison: the event log, the
// outcome of every run and the optimized graph.
func Snapshot(scenarioName string, result *Result) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "scenario %s\n", scenarioName)
	buf.WriteString("events:\n")
	for _, e := range result.Events {
		fmt.Fprintf(&buf, "  %s\n", formatEvent(e))
	}
	buf.WriteString("runs:\n")
	for _, r := range result.Runs {
		fmt.Fprintf(&buf, "  %s\n", r)
	}
	buf.WriteString(result.Dump)
	return buf.Bytes()
}

// formatEvent renders one event on a line: seq, pass, kind, subject, then
// the factor and detail when present.
func formatEvent(e store.Event) string {
	s := fmt.Sprintf("%d %s %s %s", e.Seq, e.Pass, e.Kind, e.Subject)
	if e.Factor != 0 {
		s += fmt.Sprintf(" x%d", e.Factor)
	}
	if e.Detail != "" {
		s += ": " + e.Detail
	}
	return s
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares the snapshot of an already computed result
// against the golden file named scenarioName.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, Snapshot(scenarioName, result))
}
