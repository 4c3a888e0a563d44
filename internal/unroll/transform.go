package unroll

import (
	"math"
	"math/bits"
	"slices"

	"github.com/roach88/ssaopt/internal/analysis"
	"github.com/roach88/ssaopt/internal/ir"
)

// unroller rewrites one loop. Everything it needs from the loop is read
// when it is created, because the loop's own lists change as blocks are
// merged or removed.
//
// All copies are taken from the untouched body before the first edge is
// moved.
type unroller struct {
	g      *ir.Graph
	blocks []*ir.Block
	header *ir.Block
	latch  *ir.Block
	pre    *ir.Block
	// back maps each header phi to the value it receives over the back edge.
	back   map[*ir.Inst]*ir.Inst
	inLoop map[*ir.Block]bool
	// phis collects the merge phis created by the rewrite.
	phis []*ir.Inst
}

func newUnroller(g *ir.Graph, l *ir.Loop) *unroller {
	u := &unroller{
		g:      g,
		blocks: slices.Clone(l.Blocks),
		header: l.Header,
		latch:  l.BackEdges[0],
		pre:    l.PreHeader,
		back:   make(map[*ir.Inst]*ir.Inst, len(l.Header.Phis())),
		inLoop: make(map[*ir.Block]bool, len(l.Blocks)),
	}
	for _, b := range u.blocks {
		u.inLoop[b] = true
	}
	for _, phi := range u.header.Phis() {
		u.back[phi] = phi.PhiInput(u.latch)
	}
	return u
}

// carried maps every header phi to its value in the iteration after the
// copy m. A nil m stands for the original body.
func (u *unroller) carried(m *ir.CloneMap) map[*ir.Inst]*ir.Inst {
	vals := make(map[*ir.Inst]*ir.Inst, len(u.back))
	for phi, v := range u.back {
		if m != nil {
			v = m.Value(v)
		}
		vals[phi] = v
	}
	return vals
}

// copies clones the body n times, without SafePoints. The first copy sees
// first for the header phis, each later copy the values the previous one
// carries over. The back edges of the copies still target the original
// header.
func (u *unroller) copies(n int, first map[*ir.Inst]*ir.Inst) []*ir.CloneMap {
	out := make([]*ir.CloneMap, 0, n)
	vals := first
	for range n {
		m := ir.CloneBlocks(u.blocks, ir.CloneOptions{Header: u.header, Values: vals, Skip: isSafePoint})
		out = append(out, m)
		vals = u.carried(m)
	}
	return out
}

// isSafePoint leaves polls out of the copies: one per trip is enough.
func isSafePoint(i *ir.Inst) bool { return i.Op() == ir.OpSafePoint }

// latches returns the back-edge block of the original body followed by
// that of every copy.
func (u *unroller) latches(ms []*ir.CloneMap) []*ir.Block {
	out := []*ir.Block{u.latch}
	for _, m := range ms {
		out = append(out, m.Block(u.latch))
	}
	return out
}

// exit returns the block the pre-header branches to when the loop is not
// entered. It is the latch's exit as well.
func (u *unroller) exit() *ir.Block {
	for _, s := range u.pre.Succs() {
		if s != u.header {
			return s
		}
	}
	panic("unroll: pre-header has no exit")
}

// dropBranch removes the IfImm ending b and the Compare feeding it when
// nothing else uses it.
func dropBranch(b *ir.Block) {
	br := b.Last()
	if br == nil || br.Op() != ir.OpIfImm {
		panic("unroll: " + b.String() + " does not end in IfImm")
	}
	cond := br.Input(0)
	b.RemoveInst(br)
	if cond.Op() == ir.OpCompare && !cond.HasUsers() {
		cond.Block().RemoveInst(cond)
	}
}

// fallThrough turns the exit test of b into a jump to its other successor.
func fallThrough(b, exit *ir.Block) {
	dropBranch(b)
	b.RemoveSucc(exit)
}

func (u *unroller) newCompare(cc ir.CondCode, x, y *ir.Inst) *ir.Inst {
	c := u.g.NewInst(ir.OpCompare, ir.TypeBool, x, y)
	c.CC = cc
	c.SrcType = x.Type()
	return c
}

func (u *unroller) newBranch(cond *ir.Inst) *ir.Inst {
	br := u.g.NewInst(ir.OpIfImm, ir.TypeVoid, cond)
	br.CC = ir.CondNE
	br.SrcType = cond.Type()
	return br
}

// retest replaces the exit test of latch with "update cc bound", staying
// in the loop while it holds.
func (u *unroller) retest(latch *ir.Block, update, bound *ir.Inst, cc ir.CondCode) {
	dropBranch(latch)
	cmp := u.newCompare(cc, update, bound)
	latch.AppendInst(cmp)
	latch.AppendInst(u.newBranch(cmp))
	if latch.TrueSucc() != u.header {
		latch.SwapSuccs()
	}
}

// combinedBound returns test-(factor-1)*step for an increasing index and
// test+(factor-1)*step for a decreasing one. A constant test yields a
// constant; otherwise the arithmetic is appended to b.
func (u *unroller) combinedBound(b *ir.Block, info *analysis.CountableLoopInfo, factor uint32) *ir.Inst {
	t := info.Test.Type()
	imm := uint64(factor-1) * info.Step
	if info.Test.IsConst() {
		v := info.Test.Uint64() + imm
		if info.IsInc {
			v = info.Test.Uint64() - imm
		}
		return u.g.FindOrCreateConstant(t, v)
	}
	op := ir.OpAdd
	if info.IsInc {
		op = ir.OpSub
	}
	bound := u.g.NewInst(op, t, info.Test, u.g.FindOrCreateConstant(t, imm))
	b.AppendInst(bound)
	return bound
}

// mergeChain folds straight-line successors into b.
func (u *unroller) mergeChain(b *ir.Block) {
	for b.NumSuccs() == 1 {
		s := b.Succ(0)
		if s == b || s.IsExit() || s.NumPreds() != 1 {
			return
		}
		u.g.MergeWithSuccessor(b)
	}
}

// conditionOverflow reports whether the combined bound may wrap, or
// whether the update must keep its own exit test.
//
// A bound computed from a test only known at run time is guarded in the
// generated code instead.
func conditionOverflow(info *analysis.CountableLoopInfo, factor uint32) bool {
	if isOverflowCheck(info.Update) || info.Step == 0 {
		return true
	}
	hi, imm := bits.Mul64(uint64(factor-1), info.Step)
	if hi != 0 {
		return true
	}
	t := info.Test.Type()
	if t.IsSigned() {
		if imm > uint64(t.MaxInt()) {
			return true
		}
		if !info.Test.IsConst() {
			return false
		}
		test := info.Test.Int64()
		if info.IsInc {
			return test < t.MinInt()+int64(imm)
		}
		return test > t.MaxInt()-int64(imm)
	}

	limit := uint64(t.MaxInt())
	if t == ir.TypeUint64 {
		limit = math.MaxUint64
	}
	if imm > limit {
		return true
	}
	if !info.Test.IsConst() {
		return false
	}
	test := info.Test.Uint64()
	if info.IsInc {
		return test < imm
	}
	return test > limit-imm
}

// unrollFully replaces a guarded loop running exactly iters times with
// iters copies of its body in a row. A loop that never runs is removed.
func (u *unroller) unrollFully(iters uint64) {
	exit := u.exit()
	if iters == 0 {
		dropBranch(u.pre)
		u.pre.RemoveSucc(u.header)
		u.g.RemoveBlocks(slices.Clone(u.blocks)...)
		u.mergeChain(u.pre)
		return
	}

	ms := u.copies(int(iters-1), u.carried(nil))
	latches := u.latches(ms)
	u.chain(ms, latches, exit)
	last := latches[len(latches)-1]
	dropBranch(last)
	last.RemoveSucc(u.header)

	fallThrough(u.pre, exit)
	u.mergeChain(u.pre)
}

// unrollConstantTail runs factor copies per trip under one combined test
// and the rest leftover iterations as straight-line code after the loop.
// The trip count is known to exceed factor, so the loop is always entered.
func (u *unroller) unrollConstantTail(info *analysis.CountableLoopInfo, factor uint32, rest uint64) {
	exit := u.exit()
	ms := u.copies(int(factor-1), u.carried(nil))
	lastMap := ms[len(ms)-1]
	state := u.carried(lastMap)
	var tail []*ir.CloneMap
	if rest > 0 {
		tail = u.copies(int(rest), state)
	}

	latches := u.latches(ms)
	u.chain(ms, latches, exit)
	last := latches[len(latches)-1]
	bound := u.combinedBound(u.pre, info, factor)
	if rest > 0 {
		first := tail[0].Block(u.header)
		last.ReplaceSucc(exit, first)
		tl := u.latches(tail)[1:]
		for k, latch := range tl[:len(tl)-1] {
			fallThrough(latch, exit)
			latch.ReplaceSucc(u.header, tail[k+1].Block(u.header))
		}
		end := tl[len(tl)-1]
		dropBranch(end)
		end.RemoveSucc(u.header)
		u.mergeChain(first)
	}
	u.retest(last, lastMap.Value(info.Update), bound, info.NormalizedCC)
	u.mergeChain(u.header)
}

// chain links the original body and its copies into one trip: every
// latch but the last loses its exit test and jumps to the next copy.
func (u *unroller) chain(ms []*ir.CloneMap, latches []*ir.Block, exit *ir.Block) {
	for k, latch := range latches[:len(latches)-1] {
		fallThrough(latch, exit)
		latch.ReplaceSucc(u.header, ms[k].Block(u.header))
	}
}

// unrollWithRemainder handles a bound only known at run time. A new block
// between the pre-header and the loop enters the unrolled loop only when
// at least factor iterations remain and the combined bound did not wrap.
// Whatever is left runs in a copy of the original loop, whose header is
// returned.
func (u *unroller) unrollWithRemainder(info *analysis.CountableLoopInfo, factor uint32) *ir.Block {
	exit := u.exit()
	exitVals := make(map[*ir.Inst]*ir.Inst, len(exit.Phis()))
	for _, e := range exit.Phis() {
		exitVals[e] = e.PhiInput(u.latch)
	}
	rem := ir.CloneBlocks(u.blocks, ir.CloneOptions{})
	ms := u.copies(int(factor-1), u.carried(nil))
	lastMap := ms[len(ms)-1]
	state := u.carried(lastMap)
	latches := u.latches(ms)
	last := latches[len(latches)-1]

	guard := u.g.SplitEdge(u.pre, u.header)
	bound := u.combinedBound(guard, info, factor)
	cond := u.newCompare(info.NormalizedCC, info.Init, bound)
	guard.AppendInst(cond)
	if !info.Test.IsConst() {
		cc := ir.CondGT
		if info.IsInc {
			cc = ir.CondLT
		}
		wrap := u.newCompare(cc, bound, info.Test)
		guard.AppendInst(wrap)
		both := u.g.NewInst(ir.OpAnd, ir.TypeBool, cond, wrap)
		guard.AppendInst(both)
		cond = both
	}
	guard.AppendInst(u.newBranch(cond))

	merge := u.g.NewBlock()
	guard.AddSucc(merge)
	u.chain(ms, latches, exit)
	last.ReplaceSucc(exit, merge)
	u.retest(last, lastMap.Value(info.Update), bound, info.NormalizedCC)

	// Merge the state of the unrolled loop with the state of a loop that
	// was skipped, in predecessor order guard, last.
	merged := make(map[*ir.Inst]*ir.Inst, len(state))
	for _, phi := range u.header.Phis() {
		p := u.newPhi(merge, phi.Type(), phi.PhiInput(guard), state[phi])
		merged[phi] = p
	}
	leave := make(map[*ir.Inst]*ir.Inst, len(exitVals))
	for _, e := range exit.Phis() {
		v := exitVals[e]
		if v.Block() != nil && u.inLoop[v.Block()] {
			v = u.newPhi(merge, e.Type(), e.PhiInput(u.pre), lastMap.Value(v))
		}
		leave[e] = v
	}

	again := u.newCompare(info.NormalizedCC, merged[info.Index], info.Test)
	merge.AppendInst(again)
	merge.AppendInst(u.newBranch(again))
	remHeader := rem.Block(u.header)
	merge.AddSucc(remHeader)
	for _, phi := range u.header.Phis() {
		rem.Value(phi).AppendInput(merged[phi])
	}
	merge.AddSucc(exit)
	for _, e := range exit.Phis() {
		e.AppendInput(leave[e])
	}

	u.mergeChain(u.header)
	u.bridgeAll()
	return remHeader
}

func (u *unroller) newPhi(b *ir.Block, t ir.Type, inputs ...*ir.Inst) *ir.Inst {
	phi := u.g.NewPhi(b, t)
	for _, in := range inputs {
		phi.AppendInput(in)
	}
	u.phis = append(u.phis, phi)
	return phi
}

// unrollWithSideExits chains factor copies of the body, each keeping its
// own exit test. It returns false, without touching the graph, when a
// value of the loop is used after it somewhere no single exit leads to.
func (u *unroller) unrollWithSideExits(factor uint32) bool {
	uses, ok := u.exitUses()
	if !ok {
		return false
	}
	ms := u.copies(int(factor-1), u.carried(nil))
	latches := u.latches(ms)
	for k, latch := range latches[:len(latches)-1] {
		latch.ReplaceSucc(u.header, ms[k].Block(u.header))
	}
	u.repair(uses, ms)
	u.bridgeAll()
	return true
}
