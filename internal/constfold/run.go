package constfold

import (
	"fmt"
	"log/slog"

	"github.com/roach88/ssaopt/internal/analysis"
	"github.com/roach88/ssaopt/internal/ir"
	"github.com/roach88/ssaopt/internal/store"
)

// Option configures Run.
type Option func(*runner)

// WithLogger sets the logger fold decisions are written to at Debug level.
//
// Default: slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(r *runner) {
		r.logger = l
	}
}

// WithEventSink records one store.Event per fold.
func WithEventSink(sink store.EventSink) Option {
	return func(r *runner) {
		r.sink = sink
	}
}

type runner struct {
	g      *ir.Graph
	logger *slog.Logger
	sink   store.EventSink
}

// Run folds every foldable instruction of g and returns the number of
// folds. Blocks are visited in reverse post-order, so most values are
// folded after their inputs; the walk repeats until a sweep folds nothing.
//
// The only error returned is one from the event sink, and Run stops at the
// first such error.
func Run(g *ir.Graph, opts ...Option) (int, error) {
	r := &runner{g: g, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}

	total := 0
	for {
		n, err := r.sweep()
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
	}
	r.logger.Debug("constant folding finished", "graph", r.g.Name, "folds", total)
	return total, nil
}

func (r *runner) sweep() (int, error) {
	n := 0
	for _, b := range analysis.ReversePostOrder(r.g) {
		for _, i := range b.AllInsts() {
			to := fold(i)
			if to == nil {
				continue
			}
			detail := fmt.Sprintf("%s => %s", ir.FormatInst(i), ir.FormatInst(to))
			i.ReplaceUsers(to)
			n++

			r.logger.Debug("folded instruction",
				"graph", r.g.Name,
				"inst", i.String(),
				"op", i.Op().String(),
				"to", to.String())
			if r.sink == nil {
				continue
			}
			err := r.sink.Record(store.Event{
				Pass:    store.PassConstFold,
				Kind:    store.KindFold,
				Subject: i.String(),
				Detail:  detail,
			})
			if err != nil {
				return n, fmt.Errorf("record fold of %s: %w", i, err)
			}
		}
	}
	return n, nil
}
