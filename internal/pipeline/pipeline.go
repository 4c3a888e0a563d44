package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/ssaopt/internal/analysis"
	"github.com/roach88/ssaopt/internal/config"
	"github.com/roach88/ssaopt/internal/constfold"
	"github.com/roach88/ssaopt/internal/ir"
	"github.com/roach88/ssaopt/internal/store"
	"github.com/roach88/ssaopt/internal/unroll"
)

// PassError reports a pass that failed or left the graph broken.
type PassError struct {
	Pass string
	Err  error
}

func (e *PassError) Error() string {
	return fmt.Sprintf("pass %s: %v", e.Pass, e.Err)
}

func (e *PassError) Unwrap() error { return e.Err }

// IsPassError reports whether err is or wraps a PassError.
func IsPassError(err error) bool {
	var pe *PassError
	return errors.As(err, &pe)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger for the pipeline and the passes it runs.
//
// Default: slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithStore records every run and its events in s.
//
// Default: nil (nothing is written)
func WithStore(s *store.Store) Option {
	return func(p *Pipeline) {
		p.store = s
	}
}

// WithRunIDGenerator sets the source of run IDs.
//
// Default: UUIDv7Generator{}
func WithRunIDGenerator(gen RunIDGenerator) Option {
	return func(p *Pipeline) {
		p.ids = gen
	}
}

// WithCheck runs analysis.Check after every pass and fails the run on the
// first violation.
//
// Default: true
func WithCheck(check bool) Option {
	return func(p *Pipeline) {
		p.check = check
	}
}

// Pipeline runs the configured passes over graphs.
//
// A Pipeline is not safe for concurrent use; graphs are owned exclusively
// by the run working on them.
type Pipeline struct {
	cfg    config.PassConfig
	logger *slog.Logger
	store  *store.Store
	ids    RunIDGenerator
	check  bool
}

// New creates a pipeline for cfg.
func New(cfg config.PassConfig, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		logger: slog.Default(),
		ids:    UUIDv7Generator{},
		check:  true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Report summarizes one run. Unrolled reports whether the unroller changed
// any loop; Changed whether the graph differs from the input at all.
type Report struct {
	RunID    string        `json:"run_id"`
	Graph    string        `json:"graph"`
	Passes   []string      `json:"passes"`
	Before   string        `json:"fingerprint_before"`
	After    string        `json:"fingerprint_after"`
	Folds    int           `json:"folds"`
	Unrolled bool          `json:"unrolled"`
	Changed  bool          `json:"changed"`
	Events   []store.Event `json:"events"`
}

// Run applies the passes to g in order. Events are stamped with the run ID
// and a fresh sequence starting at 1. With a store, the run is written
// before the first pass and finished after the last, so a run that fails
// half-way is still visible with its events so far.
//
// ctx only bounds store I/O; the passes themselves run to completion.
func (p *Pipeline) Run(ctx context.Context, g *ir.Graph) (*Report, error) {
	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}
	rep := &Report{
		RunID:  p.ids.Generate(),
		Graph:  ir.CanonicalName(g.Name),
		Passes: p.cfg.Passes,
		Before: ir.Fingerprint(g),
	}
	log := p.logger.With("run", rep.RunID, "graph", rep.Graph)
	log.Info("pipeline starting", "passes", strings.Join(rep.Passes, ","), "fingerprint", rep.Before[:12])

	if p.store != nil {
		err := p.store.WriteRun(ctx, store.Run{
			ID:     rep.RunID,
			Graph:  rep.Graph,
			Passes: strings.Join(rep.Passes, ","),
			Config: p.cfg.JSON(),
			Before: rep.Before,
		})
		if err != nil {
			return nil, err
		}
	}

	clock := NewClock()
	runErr := p.runPasses(g, rep, log, clock)

	rep.After = ir.Fingerprint(g)
	rep.Changed = rep.After != rep.Before
	if p.store != nil {
		if err := p.store.WriteEvents(ctx, rep.Events); err != nil {
			return rep, errors.Join(runErr, err)
		}
		if err := p.store.FinishRun(ctx, rep.RunID, rep.After, rep.Changed); err != nil {
			return rep, errors.Join(runErr, err)
		}
	}
	if runErr != nil {
		log.Error("pipeline failed", "error", runErr)
		return rep, runErr
	}

	log.Info("pipeline finished",
		"folds", rep.Folds,
		"unrolled", rep.Unrolled,
		"events", len(rep.Events),
		"fingerprint", rep.After[:12])
	return rep, nil
}

func (p *Pipeline) runPasses(g *ir.Graph, rep *Report, log *slog.Logger, clock *Clock) error {
	for _, name := range p.cfg.Passes {
		buf := &store.Buffer{}
		err := p.runPass(name, g, rep, log, buf)
		for _, e := range buf.Events() {
			e.RunID = rep.RunID
			e.Seq = clock.Next()
			rep.Events = append(rep.Events, e)
		}
		if err != nil {
			return &PassError{Pass: name, Err: err}
		}
		if p.check {
			if err := analysis.Check(g); err != nil {
				return &PassError{Pass: name, Err: err}
			}
		}
		log.Debug("pass finished", "pass", name, "events", buf.Len(), "fingerprint", ir.ShortFingerprint(g))
	}
	return nil
}

func (p *Pipeline) runPass(name string, g *ir.Graph, rep *Report, log *slog.Logger, sink store.EventSink) error {
	switch name {
	case config.PassFold:
		n, err := constfold.Run(g, constfold.WithLogger(log), constfold.WithEventSink(sink))
		rep.Folds += n
		return err
	case config.PassUnroll:
		changed, err := unroll.Run(g, p.cfg.Unroll, unroll.WithLogger(log), unroll.WithEventSink(sink))
		rep.Unrolled = rep.Unrolled || changed
		return err
	}
	return fmt.Errorf("unknown pass %q", name)
}
