package unroll

import "github.com/roach88/ssaopt/internal/ir"

// Params sizes one loop against the instruction limit.
type Params struct {
	// Factor is the largest factor the limit allows, capped by the
	// requested factor. It is 1 when the loop alone reaches the limit.
	Factor uint32
	// Total counts every instruction of the loop.
	Total uint32
	// Cloneable counts the instructions each copy duplicates: everything
	// but the header phis and SafePoints.
	Cloneable uint32
	// HasCall reports a call that was not inlined.
	HasCall bool
}

// GetUnrollParams measures l and derives the factor that keeps
// Cloneable*factor + (Total-Cloneable) within instLimit.
func GetUnrollParams(l *ir.Loop, instLimit, factor uint32) Params {
	var p Params
	notCloneable := uint32(0)
	for _, b := range l.Blocks {
		for _, i := range b.AllInsts() {
			p.Total++
			if (b == l.Header && i.IsPhi()) || i.Op() == ir.OpSafePoint {
				notCloneable++
			}
			if i.Op() == ir.OpCallStatic && !i.Inlined {
				p.HasCall = true
			}
		}
	}
	p.Cloneable = p.Total - notCloneable

	p.Factor = 1
	if p.Total >= instLimit {
		return p
	}
	p.Factor = factor
	if p.Cloneable > 0 {
		p.Factor = min(factor, (instLimit-p.Total)/p.Cloneable+1)
	}
	return p
}
