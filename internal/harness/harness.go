package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/ssaopt/internal/interp"
	"github.com/roach88/ssaopt/internal/ir"
	"github.com/roach88/ssaopt/internal/irfile"
	"github.com/roach88/ssaopt/internal/pipeline"
	"github.com/roach88/ssaopt/internal/store"
	"github.com/roach88/ssaopt/internal/testutil"
)

// Harness is the scenario execution engine.
// It runs scenarios with a fixed run ID and a fixed call function.
type Harness struct {
	store   *store.Store
	machine *interp.Machine
	logger  *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Load the graph twice: one copy to optimize, one to compare against
// 3. Run the pipeline, recording the run and its events
// 4. Read the events back from the store
// 5. Execute every run on both graphs and compare
// 6. Evaluate assertions
//
// An error is returned only when the scenario cannot be carried out; a
// pipeline that fails or a behavior change is reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(store.MemoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:   st,
		machine: interp.NewMachine(interp.WithCalls(answerCall)),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	return h.run(context.Background(), scenario)
}

func (h *Harness) run(ctx context.Context, scenario *Scenario) (*Result, error) {
	g, err := irfile.Load(scenario.Graph)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph: %w", err)
	}
	orig, err := irfile.Load(scenario.Graph)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph: %w", err)
	}

	p := pipeline.New(scenario.passConfig(),
		pipeline.WithStore(h.store),
		pipeline.WithLogger(h.logger),
		pipeline.WithRunIDGenerator(testutil.NewFixedRunIDGenerator(scenario.RunID)),
	)

	result := NewResult()
	rep, runErr := p.Run(ctx, g)
	if rep == nil {
		return nil, fmt.Errorf("failed to run pipeline: %w", runErr)
	}
	if runErr != nil {
		result.AddError(fmt.Sprintf("pipeline: %v", runErr))
	}

	events, err := h.store.ReadEvents(ctx, rep.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	result.Events = events
	result.Changed = rep.Changed
	result.Graph = g
	result.Dump = ir.Dump(g)

	// A graph the pipeline left broken is not worth executing.
	if runErr == nil {
		for i, step := range scenario.Runs {
			h.execute(i, step, orig, g, result)
		}
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	h.logger.Info("scenario finished",
		"scenario", scenario.Name,
		"events", len(result.Events),
		"pass", result.Pass,
	)
	return result, nil
}

// execute runs one step on the input and the optimized graph and records
// any difference between them or from the step's expectation.
func (h *Harness) execute(n int, step RunStep, orig, opt *ir.Graph, result *Result) {
	args := make([]uint64, len(step.Args))
	for k, a := range step.Args {
		args[k] = uint64(a)
	}

	want, wantErr := h.machine.Eval(orig, args...)
	got, gotErr := h.machine.Eval(opt, args...)

	outcome := RunOutcome{Args: step.Args}
	if gotErr != nil {
		outcome.Fault = faultCode(gotErr)
	} else {
		outcome.Value = ir.FormatConst(got.Type, got.Value)
		outcome.Calls = got.Calls
	}
	result.Runs = append(result.Runs, outcome)

	switch {
	case wantErr != nil || gotErr != nil:
		if faultCode(wantErr) != faultCode(gotErr) {
			result.AddError(fmt.Sprintf("run %d %v: input graph gives %s, optimized graph gives %s",
				n, step.Args, describe(want, wantErr), describe(got, gotErr)))
		}
	case !interp.Equal(want, got):
		result.AddError(fmt.Sprintf("run %d %v: input graph gives %s, optimized graph gives %s",
			n, step.Args, describe(want, nil), describe(got, nil)))
	}

	switch {
	case step.Fault != "":
		if outcome.Fault != step.Fault {
			result.AddError(fmt.Sprintf("run %d %v: expected fault %s, got %s", n, step.Args, step.Fault, describe(got, gotErr)))
		}
	case step.Want != nil:
		if gotErr != nil {
			result.AddError(fmt.Sprintf("run %d %v: expected %d, got %s", n, step.Args, *step.Want, describe(got, gotErr)))
		} else if expected := ir.Canonical(uint64(*step.Want), got.Type); got.Value != expected {
			result.AddError(fmt.Sprintf("run %d %v: expected %s, got %s",
				n, step.Args, ir.FormatConst(got.Type, expected), outcome.Value))
		}
	}
}

// answerCall is the fixed call function: the callee plus the sum of the
// arguments.
func answerCall(callee uint64, args []uint64) uint64 {
	v := callee
	for _, a := range args {
		v += a
	}
	return v
}

func faultCode(err error) string {
	if err == nil {
		return ""
	}
	var f *interp.Fault
	if errors.As(err, &f) {
		return string(f.Code)
	}
	return err.Error()
}

func describe(r interp.Result, err error) string {
	if err != nil {
		return "fault " + faultCode(err)
	}
	s := ir.FormatConst(r.Type, r.Value)
	if r.Calls > 0 {
		s += fmt.Sprintf(" after %d calls", r.Calls)
	}
	if len(r.Heap) > 0 {
		s += fmt.Sprintf(" with %d objects", len(r.Heap))
	}
	return s
}
