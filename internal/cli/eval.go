package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/ssaopt/internal/interp"
	"github.com/roach88/ssaopt/internal/ir"
)

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	*RootOptions
	Args      []int64
	StepLimit int
}

// EvalResult is the eval command's JSON payload.
type EvalResult struct {
	Graph string          `json:"graph"`
	Args  []int64         `json:"args"`
	Value string          `json:"value"`
	Type  string          `json:"type"`
	Calls int             `json:"calls"`
	Steps int             `json:"steps"`
	Heap  []interp.Object `json:"heap,omitempty"`
}

// FaultDetails describes where execution stopped.
type FaultDetails struct {
	Fault string             `json:"fault"`
	Inst  ir.InstID          `json:"inst"`
	State map[ir.VReg]uint64 `json:"state,omitempty"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "eval <graph.yaml>",
		Short: "Execute a graph",
		Long: `Execute a graph file with the reference interpreter.

Arguments are given in parameter order and brought into the canonical form
of each parameter's type. Static calls return 0.

Exit codes:
  0 - The graph returned
  1 - Execution faulted (deoptimization, step limit, null pointer, etc.)
  2 - Command error (unreadable graph, etc.)

Examples:
  ssaopt eval sum.yaml --arg 10
  ssaopt eval sum.opt.yaml --arg 10 --step-limit 1000`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(opts, args[0], cmd)
		},
	}

	cmd.Flags().Int64SliceVar(&opts.Args, "arg", nil, "parameter value (repeatable)")
	cmd.Flags().IntVar(&opts.StepLimit, "step-limit", interp.DefaultStepLimit, "instruction budget")

	return cmd
}

func runEval(opts *EvalOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	g, err := loadGraph(formatter, path)
	if err != nil {
		return err
	}

	params := g.Parameters()
	if len(opts.Args) != len(params) {
		msg := fmt.Sprintf("%s takes %d argument(s), got %d", g.Name, len(params), len(opts.Args))
		_ = formatter.Error(ErrCodeGeneric, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}
	args := make([]uint64, len(params))
	for i, p := range params {
		args[i] = ir.Canonical(uint64(opts.Args[i]), p.Type())
	}

	m := interp.NewMachine(interp.WithStepLimit(opts.StepLimit))
	res, err := m.Eval(g, args...)
	if err != nil {
		return reportFault(formatter, err)
	}
	formatter.VerboseLog("Executed %d steps", res.Steps)

	result := EvalResult{
		Graph: g.Name,
		Args:  opts.Args,
		Value: ir.FormatConst(res.Type, res.Value),
		Type:  res.Type.String(),
		Calls: res.Calls,
		Steps: res.Steps,
		Heap:  res.Heap,
	}
	if result.Args == nil {
		result.Args = []int64{}
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s.%s\n", result.Value, result.Type)
	if result.Calls > 0 {
		fmt.Fprintf(w, "  calls: %d\n", result.Calls)
	}
	if len(result.Heap) > 0 {
		fmt.Fprintf(w, "  heap: %d object(s)\n", len(result.Heap))
	}
	return nil
}

// reportFault prints a fault with the interpreter state it carries.
func reportFault(f *OutputFormatter, err error) error {
	var fault *interp.Fault
	if !errors.As(err, &fault) {
		_ = f.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "execution failed", err)
	}
	details := FaultDetails{Fault: string(fault.Code), Inst: fault.Inst, State: fault.State}
	_ = f.Error(ErrCodeFault, fault.Error(), details)
	return WrapExitError(ExitFailure, "execution faulted", err)
}
