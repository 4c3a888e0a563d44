package cli

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ssaopt/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run optimizer scenarios",
		Long: `Run scenario files through the optimizer.

Each scenario optimizes a graph, executes the input and optimized graphs
with the same arguments and checks the event log and the resulting graph.
When golden/<scenario>.golden exists next to a scenario file, the run's
snapshot must match it.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  ssaopt test ./scenarios
  ssaopt test ./scenarios --filter "sum_*"
  ssaopt test ./scenarios --update
  ssaopt test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	scenarioFiles, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to scan scenarios", err)
	}

	if len(scenarioFiles) == 0 {
		if opts.Format == "json" {
			return outputTestJSON(cmd, TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(scenarioFiles)),
		Total:     len(scenarioFiles),
	}

	for _, scenarioFile := range scenarioFiles {
		scenResult := runScenario(scenarioFile, opts)
		if opts.Format != "json" {
			printScenario(cmd.OutOrStdout(), scenResult)
		}
		result.Scenarios = append(result.Scenarios, scenResult)

		if scenResult.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(cmd, result)
	}
	return outputTestText(cmd, result)
}

// findScenarioFiles returns the scenario files under dir in lexical order,
// keeping those whose base name matches filter. golden/ directories hold
// snapshots, not scenarios, and are not entered.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern %q: %w", filter, err)
		}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case d.IsDir() && d.Name() == "golden":
			return filepath.SkipDir
		case d.IsDir():
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			if ok, _ := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext)); !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// runScenario executes a single scenario and returns the result.
func runScenario(scenarioFile string, opts *TestOptions) ScenarioResult {
	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		return failed(filepath.Base(scenarioFile), "failed to load scenario: %v", err)
	}

	result, err := harness.Run(scenario)
	if err != nil {
		return failed(scenario.Name, "execution failed: %v", err)
	}

	goldenPath := goldenFilePath(scenarioFile)
	snapshot := harness.Snapshot(scenario.Name, result)

	if opts.Update {
		if err := writeGoldenFile(goldenPath, snapshot); err != nil {
			return failed(scenario.Name, "failed to update golden file: %v", err)
		}
	} else if golden, err := os.ReadFile(goldenPath); err == nil {
		if !bytes.Equal(golden, snapshot) {
			result.AddError("snapshot does not match golden file (run with --update to regenerate)")
		}
	} else if !os.IsNotExist(err) {
		return failed(scenario.Name, "golden comparison failed: %v", err)
	}

	return ScenarioResult{
		Name:   scenario.Name,
		Pass:   result.Pass,
		Errors: result.Errors,
	}
}

func failed(name, format string, args ...any) ScenarioResult {
	return ScenarioResult{Name: name, Errors: []string{fmt.Sprintf(format, args...)}}
}

func printScenario(w io.Writer, r ScenarioResult) {
	if r.Pass {
		fmt.Fprintf(w, "✓ %s\n", r.Name)
		return
	}
	fmt.Fprintf(w, "✗ %s\n", r.Name)
	for _, e := range r.Errors {
		// Assertion errors span several lines.
		for _, line := range strings.Split(strings.TrimRight(e, "\n"), "\n") {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
}

// goldenFilePath maps dir/name.yaml to dir/golden/name.golden.
func goldenFilePath(scenarioFile string) string {
	dir, base := filepath.Split(scenarioFile)
	return filepath.Join(dir, "golden", strings.TrimSuffix(base, filepath.Ext(base))+".golden")
}

func writeGoldenFile(path string, snapshot []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, snapshot, 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

func outputTestJSON(cmd *cobra.Command, result TestResult) error {
	f := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
	if result.Failed == 0 {
		return f.Success(result)
	}

	msg := fmt.Sprintf("%d scenario(s) failed", result.Failed)
	err := f.encode(CLIResponse{
		Status: "error",
		Data:   result,
		Error:  &CLIError{Code: ErrCodeTestFailed, Message: msg},
	})
	if err != nil {
		return err
	}
	return NewExitError(ExitFailure, msg)
}

func outputTestText(cmd *cobra.Command, result TestResult) error {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
