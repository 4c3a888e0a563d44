package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/ssaopt/internal/analysis"
	"github.com/roach88/ssaopt/internal/ir"
)

// CheckResult holds the outcome of checking one graph.
type CheckResult struct {
	Valid       bool                  `json:"valid"`
	Graph       string                `json:"graph"`
	Fingerprint string                `json:"fingerprint"`
	Blocks      int                   `json:"blocks"`
	Loops       int                   `json:"loops"`
	Errors      []analysis.CheckError `json:"errors,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <graph.yaml>",
		Short: "Check a graph's structural invariants",
		Long: `Load a graph file and check it the way the optimizer does after
every pass: reachability, edge symmetry, phi arity, dominance, def-use
consistency and the loop tree.

Every violation is reported, not only the first.

Exit codes:
  0 - Graph is well formed
  1 - One or more invariants are violated
  2 - Command error (unreadable graph, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runCheck(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	g, err := loadGraph(formatter, path)
	if err != nil {
		return err
	}

	result := CheckResult{
		Graph:       g.Name,
		Fingerprint: ir.ShortFingerprint(g),
		Blocks:      g.NumBlocks(),
		Errors:      analysis.Validate(g),
	}
	result.Valid = len(result.Errors) == 0
	if result.Valid {
		result.Loops = countLoops(analysis.AnalyzeLoops(g))
	}

	if !result.Valid {
		return outputCheckErrors(formatter, result)
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "✓ %s ok (%d blocks, %d loops, %s)\n", result.Graph, result.Blocks, result.Loops, result.Fingerprint)
	return nil
}

func outputCheckErrors(f *OutputFormatter, result CheckResult) error {
	first := result.Errors[0]
	msg := fmt.Sprintf("%d invariant violation(s) in %s", len(result.Errors), result.Graph)

	if f.Format == "json" {
		_ = f.Error(first.Code, msg, result)
		return NewExitError(ExitFailure, msg)
	}

	fmt.Fprintf(f.Writer, "✗ %s\n", msg)
	for _, e := range result.Errors {
		fmt.Fprintf(f.Writer, "  %s\n", e.Error())
	}
	return NewExitError(ExitFailure, msg)
}

// countLoops counts the loops below the root of a loop tree.
func countLoops(l *ir.Loop) int {
	n := 0
	for _, inner := range l.Inner {
		n += 1 + countLoops(inner)
	}
	return n
}
