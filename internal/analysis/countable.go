package analysis

import (
	"math"

	"github.com/roach88/ssaopt/internal/ir"
)

// CountableLoopInfo describes a loop of the form
//
//	header:
//	  index = Phi(init, update)
//	  ...
//	latch:
//	  update = Add/Sub(index, step)
//	  cond = Compare(update, test)
//	  IfImm cond -> header / exit
//
// where the latch is the only block leaving the loop and test is
// invariant in the loop.
type CountableLoopInfo struct {
	// IfImm is the branch ending the latch.
	IfImm *ir.Inst
	// Index is the header phi counting iterations.
	Index  *ir.Inst
	Init   *ir.Inst
	Test   *ir.Inst
	Update *ir.Inst
	// Step is the magnitude of the constant step; the direction is IsInc.
	Step  uint64
	IsInc bool
	// NormalizedCC is the condition "update cc test" under which the loop
	// keeps iterating: LT or LE when increasing, GT or GE when decreasing.
	NormalizedCC ir.CondCode
}

// Compare returns the Compare feeding the latch branch.
func (info *CountableLoopInfo) Compare() *ir.Inst { return info.IfImm.Input(0) }

// ParseCountableLoop recognizes a countable loop. Loop analysis must be up
// to date.
func ParseCountableLoop(l *ir.Loop) (*CountableLoopInfo, bool) {
	if l.Root || l.Irreducible || l.Infinite || len(l.BackEdges) != 1 {
		return nil, false
	}
	latch := l.BackEdges[0]
	if l.Header.NumPreds() != 2 {
		return nil, false
	}
	if exiting := exitingBlocks(l); len(exiting) != 1 || exiting[0] != latch {
		return nil, false
	}

	ifImm := latch.Last()
	if ifImm == nil || ifImm.Op() != ir.OpIfImm || ifImm.Imm != 0 ||
		(ifImm.CC != ir.CondNE && ifImm.CC != ir.CondEQ) {
		return nil, false
	}
	cmp := ifImm.Input(0)
	if cmp.Op() != ir.OpCompare || !cmp.SrcType.IsInt() || cmp.SrcType == ir.TypeBool {
		return nil, false
	}

	info := &CountableLoopInfo{IfImm: ifImm}
	info.Update, info.Test = cmp.Input(0), cmp.Input(1)
	if !isIncOrDec(info.Update) {
		info.Update, info.Test = info.Test, info.Update
	}
	if !isIncOrDec(info.Update) || l.Contains(info.Test.Block()) {
		return nil, false
	}
	if info.Update.Block() == nil || !l.Contains(info.Update.Block()) {
		return nil, false
	}

	setIndexAndStep(info)
	if info.Index.Block() != l.Header {
		return nil, false
	}
	if info.Index.PhiInput(latch) != info.Update {
		return nil, false
	}
	entry := l.Header.Pred(0)
	if entry == latch {
		entry = l.Header.Pred(1)
	}
	info.Init = info.Index.PhiInput(entry)
	info.NormalizedCC = normalizedCC(info, l)

	if info.IsInc && info.NormalizedCC != ir.CondLT && info.NormalizedCC != ir.CondLE {
		return nil, false
	}
	if !info.IsInc && info.NormalizedCC != ir.CondGT && info.NormalizedCC != ir.CondGE {
		return nil, false
	}
	return info, true
}

func exitingBlocks(l *ir.Loop) []*ir.Block {
	var out []*ir.Block
	for _, b := range l.Blocks {
		for _, s := range b.Succs() {
			if !l.Contains(s) {
				out = append(out, b)
				break
			}
		}
	}
	return out
}

// isIncOrDec reports whether i adds a constant to, or subtracts it from,
// a phi.
func isIncOrDec(i *ir.Inst) bool {
	switch i.Op() {
	case ir.OpAdd, ir.OpSub, ir.OpAddOverflowCheck, ir.OpSubOverflowCheck:
	default:
		return false
	}
	a, b := i.Input(0), i.Input(1)
	if i.Op() == ir.OpSub || i.Op() == ir.OpSubOverflowCheck {
		return a.IsPhi() && b.IsConst()
	}
	return (a.IsPhi() && b.IsConst()) || (a.IsConst() && b.IsPhi())
}

func setIndexAndStep(info *CountableLoopInfo) {
	u := info.Update
	index, step := u.Input(0), u.Input(1)
	if index.IsConst() {
		index, step = step, index
	}
	info.Index = index
	info.IsInc = u.Op() == ir.OpAdd || u.Op() == ir.OpAddOverflowCheck

	v := step.Uint64()
	if u.Type().IsSigned() && int64(v) < 0 {
		v = -v
		info.IsInc = !info.IsInc
	}
	info.Step = v
}

func normalizedCC(info *CountableLoopInfo, l *ir.Loop) ir.CondCode {
	cmp := info.Compare()
	cc := cmp.CC
	if cmp.Input(0) == info.Test {
		cc = cc.Swap()
	}
	if info.IfImm.CC == ir.CondEQ {
		cc = cc.Inverse()
	}
	if l.Contains(info.IfImm.Block().FalseSucc()) {
		cc = cc.Inverse()
	}
	return cc
}

// LoopIterations returns the exact trip count of a countable loop whose
// init and test are constants, provided the index cannot overflow its
// type on the way.
func LoopIterations(info *CountableLoopInfo) (uint64, bool) {
	if !info.Init.IsConst() || !info.Test.IsConst() || info.Step == 0 || info.Step > math.MaxInt64 {
		return 0, false
	}
	typ := info.Index.Type()
	initV, testV := info.Init.Int64(), info.Test.Int64()
	if !typ.IsSigned() && (initV < 0 || testV < 0) {
		return 0, false
	}
	step := int64(info.Step)

	if info.IsInc {
		maxTest := typ.MaxInt() - step
		if info.NormalizedCC == ir.CondLE {
			maxTest--
		}
		if testV > maxTest {
			return 0, false
		}
	} else {
		minTest := typ.MinInt() + step
		if info.NormalizedCC == ir.CondGE {
			if minTest == math.MaxInt64 {
				return 0, false
			}
			minTest++
		}
		if testV < minTest {
			return 0, false
		}
		initV, testV = testV, initV
	}
	if initV > testV {
		return 0, true
	}

	diff := uint64(testV) - uint64(initV)
	if diff > math.MaxUint64-info.Step {
		return 0, false
	}
	count := diff + info.Step
	if info.NormalizedCC == ir.CondLT || info.NormalizedCC == ir.CondGT {
		count--
	}
	return count / info.Step, true
}

// HasPreHeaderCompare reports whether the pre-header ends with the same
// test as the latch, applied to init instead of update, so that the loop
// body is entered only if the first iteration would run.
func HasPreHeaderCompare(l *ir.Loop, info *CountableLoopInfo) bool {
	pre := l.PreHeader
	latch := l.BackEdges[0]
	if pre == nil || info.IfImm.Block() != latch {
		return false
	}
	preIf := pre.Last()
	if preIf == nil || preIf.Op() != ir.OpIfImm {
		return false
	}
	preCmp := preIf.Input(0)
	if preCmp.Op() != ir.OpCompare {
		return false
	}
	latchCmp := info.Compare()
	if preCmp.CC != latchCmp.CC || preCmp.SrcType != latchCmp.SrcType {
		return false
	}
	if preIf.CC != info.IfImm.CC || preIf.Imm != info.IfImm.Imm {
		return false
	}
	if pre.TrueSucc() != latch.TrueSucc() || pre.FalseSucc() != latch.FalseSucc() {
		return false
	}
	testIdx := 1
	if latchCmp.Input(0) == info.Test {
		testIdx = 0
	}
	return preCmp.Input(testIdx) == info.Test && preCmp.Input(1-testIdx) == info.Init
}
