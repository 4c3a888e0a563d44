package unroll

import (
	"fmt"
	"log/slog"

	"github.com/roach88/ssaopt/internal/analysis"
	"github.com/roach88/ssaopt/internal/ir"
	"github.com/roach88/ssaopt/internal/store"
)

// Strategy names the way a loop was rewritten.
type Strategy string

const (
	StrategyFull          Strategy = "full"
	StrategyConstantTail  Strategy = "constant-tail"
	StrategyRemainderLoop Strategy = "remainder-loop"
	StrategySideExits     Strategy = "side-exits"
)

// Reasons a loop is left alone, as recorded in skip events.
const (
	SkipIrreducible = "irreducible"
	SkipInfinite    = "infinite"
	SkipShape       = "no single back edge and pre-header"
	SkipCalls       = "contains calls"
	SkipFactor      = "factor too small"
	SkipSideExits   = "side exits disabled"
	SkipExitUses    = "loop values used past an exit that does not dominate them"
)

// Option configures Run and RunLoopUnroll.
type Option func(*pass)

// WithLogger sets the logger decisions are written to at Debug level.
//
// Default: slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(p *pass) {
		p.logger = l
	}
}

// WithEventSink records one store.Event per loop looked at.
func WithEventSink(sink store.EventSink) Option {
	return func(p *pass) {
		p.sink = sink
	}
}

type pass struct {
	g      *ir.Graph
	cfg    Config
	logger *slog.Logger
	sink   store.EventSink
}

// outcome is what happened to one loop. Exactly one of strategy and
// reason is set.
type outcome struct {
	strategy Strategy
	reason   string
	factor   uint32
	// loops lists the headers of loops the rewrite created. They are not
	// candidates themselves.
	loops []*ir.Block
}

// RunLoopUnroll unrolls the innermost loops of g with the default
// configuration, instLimit and factor, and reports whether any loop
// changed. Event sink failures are logged rather than returned; use Run to
// receive them.
func RunLoopUnroll(g *ir.Graph, instLimit, factor uint32, opts ...Option) bool {
	cfg := DefaultConfig()
	cfg.InstLimit = instLimit
	cfg.Factor = factor
	p := newPass(g, cfg, opts)
	changed, err := p.run()
	if err != nil {
		p.logger.Warn("recording unroll events failed", "graph", g.Name, "error", err)
	}
	return changed
}

// Run unrolls the innermost loops of g under cfg and reports whether any
// loop changed.
//
// Loops are taken one at a time, innermost first; the loop tree is
// rebuilt after each rewrite and once more before returning, so it is
// current for the caller. The only error is one from the event sink, after
// which no further loop is looked at.
func Run(g *ir.Graph, cfg Config, opts ...Option) (bool, error) {
	return newPass(g, cfg, opts).run()
}

func newPass(g *ir.Graph, cfg Config, opts []Option) *pass {
	p := &pass{g: g, cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pass) run() (bool, error) {
	changed := false
	visited := make(map[*ir.Block]bool)
	markOuter(analysis.AnalyzeLoops(p.g), visited)
	var err error
	for {
		l := nextLoop(analysis.AnalyzeLoops(p.g), visited)
		if l == nil {
			break
		}
		visited[l.Header] = true
		subject := fmt.Sprintf("%s@%s", l, l.Header)

		out := p.transform(l)
		for _, h := range out.loops {
			visited[h] = true
		}
		if out.strategy != "" {
			changed = true
		}
		if err = p.record(subject, out); err != nil {
			err = fmt.Errorf("record unroll of %s: %w", subject, err)
			break
		}
	}
	analysis.AnalyzeLoops(p.g)
	return changed, err
}

// markOuter marks the headers of loops that contain other loops. They stay
// out of reach even once their inner loops are unrolled away.
func markOuter(l *ir.Loop, visited map[*ir.Block]bool) {
	for _, inner := range l.Inner {
		markOuter(inner, visited)
	}
	if !l.Root && l.HasInner() {
		visited[l.Header] = true
	}
}

// nextLoop returns the first innermost loop, in loop-tree order, that has
// not been visited.
func nextLoop(l *ir.Loop, visited map[*ir.Block]bool) *ir.Loop {
	for _, inner := range l.Inner {
		if found := nextLoop(inner, visited); found != nil {
			return found
		}
	}
	if l.Root || l.HasInner() || visited[l.Header] {
		return nil
	}
	return l
}

func (p *pass) record(subject string, out outcome) error {
	e := store.Event{Pass: store.PassUnroll, Subject: subject, Factor: out.factor}
	if out.strategy != "" {
		e.Kind = store.KindUnroll
		e.Detail = string(out.strategy)
		p.logger.Debug("unrolled loop",
			"graph", p.g.Name,
			"loop", subject,
			"factor", out.factor,
			"strategy", string(out.strategy))
	} else {
		e.Kind = store.KindSkip
		e.Detail = out.reason
		p.logger.Debug("loop not unrolled",
			"graph", p.g.Name,
			"loop", subject,
			"reason", e.Detail)
	}
	if p.sink == nil {
		return nil
	}
	return p.sink.Record(e)
}

// transform decides how to unroll l and does it. Every check happens
// before the first edit.
func (p *pass) transform(l *ir.Loop) outcome {
	switch {
	case l.Irreducible:
		return outcome{reason: SkipIrreducible}
	case l.Infinite:
		return outcome{reason: SkipInfinite}
	case len(l.BackEdges) != 1 || l.PreHeader == nil:
		return outcome{reason: SkipShape}
	}

	params := GetUnrollParams(l, p.cfg.InstLimit, p.cfg.Factor)
	if params.HasCall && !p.cfg.UnrollWithCalls {
		return outcome{reason: SkipCalls}
	}
	factor := params.Factor
	u := newUnroller(p.g, l)

	info, countable := analysis.ParseCountableLoop(l)
	var iters uint64
	known, guarded := false, false
	if countable {
		iters, known = analysis.LoopIterations(info)
		guarded = analysis.HasPreHeaderCompare(l, info)
	}

	// Straight-line code may take up to twice the factor in copies, or the
	// configured factor when the limit lowered it.
	if known && guarded && !isOverflowCheck(info.Update) && params.Cloneable <= p.cfg.InstLimit &&
		(iters <= 2*uint64(factor) || iters <= uint64(p.cfg.Factor)) {
		u.unrollFully(iters)
		return outcome{strategy: StrategyFull, factor: uint32(iters)}
	}

	if factor <= 1 {
		return outcome{reason: SkipFactor, factor: factor}
	}

	noSideExits := countable && guarded && !conditionOverflow(info, factor)
	switch {
	case noSideExits && known:
		u.unrollConstantTail(info, factor, iters%uint64(factor))
		return outcome{strategy: StrategyConstantTail, factor: factor}
	case noSideExits:
		rest := u.unrollWithRemainder(info, factor)
		out := outcome{strategy: StrategyRemainderLoop, factor: factor, loops: []*ir.Block{rest}}
		if factor > 2 {
			analysis.AnalyzeLoops(p.g)
			if rl := rest.Loop(); rl != nil && rl.Header == rest && len(rl.BackEdges) == 1 && rl.PreHeader != nil {
				newUnroller(p.g, rl).unrollWithSideExits(factor - 1)
			}
		}
		return out
	case !p.cfg.UnrollWithSideExits:
		return outcome{reason: SkipSideExits, factor: factor}
	}
	if !u.unrollWithSideExits(factor) {
		return outcome{reason: SkipExitUses, factor: factor}
	}
	return outcome{strategy: StrategySideExits, factor: factor}
}

func isOverflowCheck(i *ir.Inst) bool {
	return i.Op() == ir.OpAddOverflowCheck || i.Op() == ir.OpSubOverflowCheck
}
