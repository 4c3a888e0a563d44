package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ssaopt/internal/analysis"
	"github.com/roach88/ssaopt/internal/config"
	"github.com/roach88/ssaopt/internal/ir"
	"github.com/roach88/ssaopt/internal/irfile"
	"github.com/roach88/ssaopt/internal/pipeline"
	"github.com/roach88/ssaopt/internal/store"
)

// OptOptions holds flags for the opt command.
type OptOptions struct {
	*RootOptions
	Config    string
	Passes    string
	InstLimit uint32
	Factor    uint32
	Events    string
	Output    string

	// RunIDs allows overriding the run ID generator (for testing).
	// If nil, defaults to pipeline.UUIDv7Generator.
	RunIDs pipeline.RunIDGenerator
}

// OptResult is the opt command's JSON payload.
type OptResult struct {
	Report *pipeline.Report `json:"report"`
	Output string           `json:"output,omitempty"`
	Graph  string           `json:"graph,omitempty"`
}

// NewOptCommand creates the opt command.
func NewOptCommand(rootOpts *RootOptions) *cobra.Command {
	return newOptCommand(&OptOptions{RootOptions: rootOpts})
}

func newOptCommand(opts *OptOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "opt <graph.yaml>",
		Short: "Optimize a graph",
		Long: `Run the optimization passes over a graph file.

The configuration is taken, in increasing order of precedence, from the
defaults, the --config file, the SSAOPT_* environment variables and the
flags given on the command line:

  SSAOPT_UNROLL_FACTOR       unroll factor
  SSAOPT_INST_LIMIT          instruction budget of an unrolled loop
  SSAOPT_UNROLL_WITH_CALLS   unroll loops containing calls
  SSAOPT_UNROLL_SIDE_EXITS   unroll loops without a countable exit

The optimized graph is written to --output, or to stdout without it.

Exit codes:
  0 - Graph optimized
  1 - A pass failed or left the graph broken
  2 - Command error (unreadable graph, bad configuration, etc.)

Examples:
  ssaopt opt loop.yaml
  ssaopt opt loop.yaml --passes unroll --factor 4 -o loop.opt.yaml
  ssaopt opt loop.yaml --config passes.cue --events runs.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpt(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to a CUE pass configuration")
	cmd.Flags().StringVar(&opts.Passes, "passes", "", "comma-separated pass list (fold,unroll)")
	cmd.Flags().Uint32Var(&opts.InstLimit, "inst-limit", 0, "instruction budget of an unrolled loop")
	cmd.Flags().Uint32Var(&opts.Factor, "factor", 0, "unroll factor")
	cmd.Flags().StringVar(&opts.Events, "events", "", "record the run in this SQLite event log")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the optimized graph to this file")

	return cmd
}

func runOpt(opts *OptOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	g, err := loadGraph(formatter, path)
	if err != nil {
		return err
	}

	cfg, err := resolveConfig(opts, cmd)
	if err != nil {
		return reportConfigError(formatter, err)
	}
	formatter.VerboseLog("Configuration: %s", cfg.JSON())

	pipeOpts := []pipeline.Option{pipeline.WithLogger(newLogger(opts.RootOptions, cmd.ErrOrStderr()))}
	if opts.RunIDs != nil {
		pipeOpts = append(pipeOpts, pipeline.WithRunIDGenerator(opts.RunIDs))
	}
	if opts.Events != "" {
		st, err := store.Open(opts.Events)
		if err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open event log", err)
		}
		defer st.Close()
		pipeOpts = append(pipeOpts, pipeline.WithStore(st))
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rep, err := pipeline.New(cfg, pipeOpts...).Run(ctx, g)
	if err != nil {
		return reportPassError(formatter, err)
	}

	result := OptResult{Report: rep}
	if opts.Output != "" {
		if err := irfile.Save(opts.Output, g); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to write graph", err)
		}
		result.Output = opts.Output
	} else {
		data, err := irfile.Marshal(g)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to encode graph", err)
		}
		result.Graph = string(data)
	}

	if opts.Format == "json" {
		return formatter.SuccessRun(rep.RunID, result)
	}
	return outputOptText(cmd, result)
}

// resolveConfig layers the configuration file, the environment and the
// flags that were set explicitly over the defaults.
func resolveConfig(opts *OptOptions, cmd *cobra.Command) (config.PassConfig, error) {
	cfg := config.Default()
	if opts.Config != "" {
		var err error
		if cfg, err = config.Load(opts.Config); err != nil {
			return cfg, err
		}
	}

	cfg, err := cfg.ApplyEnv()
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("passes") {
		cfg.Passes = config.ParsePasses(opts.Passes)
	}
	if flags.Changed("inst-limit") {
		cfg.Unroll.InstLimit = opts.InstLimit
	}
	if flags.Changed("factor") {
		cfg.Unroll.Factor = opts.Factor
	}
	return cfg, cfg.Validate()
}

func outputOptText(cmd *cobra.Command, result OptResult) error {
	rep := result.Report
	if result.Output == "" {
		fmt.Fprint(cmd.OutOrStdout(), result.Graph)
		w := cmd.ErrOrStderr()
		fmt.Fprintf(w, "%s: %s\n", rep.Graph, summarize(rep))
		return nil
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "✓ %s: %s\n", rep.Graph, summarize(rep))
	fmt.Fprintf(w, "  written to %s\n", result.Output)
	return nil
}

func summarize(rep *pipeline.Report) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("passes %s", strings.Join(rep.Passes, ",")))
	parts = append(parts, fmt.Sprintf("%d folds", rep.Folds))
	if rep.Unrolled {
		parts = append(parts, "loops unrolled")
	}
	if !rep.Changed {
		parts = append(parts, "unchanged")
	}
	parts = append(parts, fmt.Sprintf("%d events", len(rep.Events)))
	parts = append(parts, "run "+rep.RunID)
	return strings.Join(parts, ", ")
}

// loadGraph reads the graph file at path, reporting a failure under the
// loader's own code.
func loadGraph(f *OutputFormatter, path string) (*ir.Graph, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		_ = f.Error(ErrCodeNotFound, fmt.Sprintf("graph file not found: %s", path), nil)
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("graph file not found: %s", path))
	}
	g, err := irfile.Load(path)
	if err != nil {
		code := ErrCodeGeneric
		var le *irfile.LoadError
		if errors.As(err, &le) {
			code = le.Code
		}
		_ = f.Error(code, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to load graph", err)
	}
	f.VerboseLog("Loaded %s: %d blocks, fingerprint %s", path, g.NumBlocks(), ir.ShortFingerprint(g))
	return g, nil
}

func reportConfigError(f *OutputFormatter, err error) error {
	var ce *config.ConfigError
	code := ErrCodeGeneric
	if errors.As(err, &ce) {
		code = ce.Code
	}
	_ = f.Error(code, err.Error(), nil)
	return WrapExitError(ExitCommandError, "invalid configuration", err)
}

// reportPassError prints a pipeline failure. A broken graph is reported
// with the checker's code; configuration errors surface as command errors.
func reportPassError(f *OutputFormatter, err error) error {
	if config.IsConfigError(err) {
		return reportConfigError(f, err)
	}
	code := ErrCodePass
	var ce *analysis.CheckError
	if errors.As(err, &ce) {
		code = ce.Code
	}
	var pe *pipeline.PassError
	if errors.As(err, &pe) {
		_ = f.Error(code, err.Error(), map[string]string{"pass": pe.Pass})
		return WrapExitError(ExitFailure, "optimization failed", err)
	}
	_ = f.Error(ErrCodeStore, err.Error(), nil)
	return WrapExitError(ExitCommandError, "failed to record run", err)
}
