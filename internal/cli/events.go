package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/ssaopt/internal/store"
)

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	RunID string
	List  bool
}

// EventsResult is the events command's JSON payload.
type EventsResult struct {
	Run    store.Run      `json:"run"`
	Counts map[string]int `json:"counts"`
	Events []store.Event  `json:"events"`
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events <database>",
		Short: "Show the decisions recorded for a run",
		Long: `Show the optimization events recorded in an event log by
"ssaopt opt --events".

Without --run the most recent run is shown. With --list every run is
listed instead.

Exit codes:
  0 - Events shown
  2 - Command error (missing database, unknown run, etc.)

Examples:
  ssaopt events runs.db
  ssaopt events runs.db --run 0192f4c8-7d1e-7abc-8def-0123456789ab
  ssaopt events runs.db --list --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID (default: most recent run)")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list every recorded run")

	return cmd
}

func runEvents(opts *EventsOptions, dbPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	// store.Open creates missing databases; refuse to do so here.
	if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
		msg := fmt.Sprintf("event log not found: %s", dbPath)
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open event log", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.List {
		return listRuns(ctx, formatter, st)
	}

	var run store.Run
	if opts.RunID != "" {
		run, err = st.ReadRun(ctx, opts.RunID)
	} else {
		run, err = st.LatestRun(ctx)
	}
	if err != nil {
		return reportStoreError(formatter, err)
	}
	formatter.VerboseLog("Reading events of run %s", run.ID)

	events, err := st.ReadEvents(ctx, run.ID)
	if err != nil {
		return reportStoreError(formatter, err)
	}
	counts, err := st.CountEvents(ctx, run.ID)
	if err != nil {
		return reportStoreError(formatter, err)
	}

	result := EventsResult{Run: run, Counts: counts, Events: events}
	if opts.Format == "json" {
		return formatter.SuccessRun(run.ID, result)
	}
	outputEventsText(cmd.OutOrStdout(), result)
	return nil
}

func listRuns(ctx context.Context, f *OutputFormatter, st *store.Store) error {
	runs, err := st.ReadRuns(ctx)
	if err != nil {
		return reportStoreError(f, err)
	}
	if f.Format == "json" {
		return f.Success(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(f.Writer, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(f.Writer, "%s %s %s%s\n", r.ID, r.Graph, r.Passes, changedMark(r.Changed))
	}
	return nil
}

func outputEventsText(w io.Writer, result EventsResult) {
	run := result.Run
	fmt.Fprintf(w, "run %s: %s [%s]%s\n", run.ID, run.Graph, run.Passes, changedMark(run.Changed))
	fmt.Fprintf(w, "  %s -> %s\n", run.Before, run.After)
	if len(result.Events) == 0 {
		fmt.Fprintln(w, "  no events")
		return
	}
	for _, e := range result.Events {
		line := fmt.Sprintf("  %3d %-9s %-6s %s", e.Seq, e.Pass, e.Kind, e.Subject)
		if e.Factor > 0 {
			line += fmt.Sprintf(" x%d", e.Factor)
		}
		if e.Detail != "" {
			line += ": " + e.Detail
		}
		fmt.Fprintln(w, line)
	}
}

func changedMark(changed bool) string {
	if changed {
		return " changed"
	}
	return ""
}

func reportStoreError(f *OutputFormatter, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		_ = f.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "run not found", err)
	}
	_ = f.Error(ErrCodeStore, err.Error(), nil)
	return WrapExitError(ExitCommandError, "failed to read event log", err)
}
