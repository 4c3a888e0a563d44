package constfold

import (
	"fmt"

	"github.com/roach88/ssaopt/internal/ir"
)

// FoldConstant replaces every use of i with a constant or with an existing
// value when its inputs allow it, and reports whether it did. i itself is
// left in place; removing it is up to dead-code elimination.
//
// An instruction without users is never folded.
func FoldConstant(i *ir.Inst) bool {
	r := fold(i)
	if r == nil {
		return false
	}
	i.ReplaceUsers(r)
	return true
}

// fold returns the value that may replace i, or nil.
func fold(i *ir.Inst) *ir.Inst {
	var fn func(*ir.Inst) *ir.Inst
	switch i.Op() {
	case ir.OpNeg, ir.OpAbs, ir.OpNot, ir.OpSqrt:
		fn = foldUnary
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod, ir.OpMin, ir.OpMax,
		ir.OpShl, ir.OpShr, ir.OpAShr, ir.OpAnd, ir.OpOr, ir.OpXor:
		fn = foldBinary
	case ir.OpCompare:
		fn = foldCompare
	case ir.OpCmp:
		fn = foldCmp
	case ir.OpCast:
		fn = foldCast
	case ir.OpConstant, ir.OpParameter, ir.OpNullPtr, ir.OpLoadImmediate, ir.OpPhi,
		ir.OpAddOverflowCheck, ir.OpSubOverflowCheck,
		ir.OpSaveState, ir.OpSafePoint, ir.OpNullCheck,
		ir.OpNewObject, ir.OpNewArray, ir.OpLoadArray, ir.OpStoreArray, ir.OpCallStatic,
		ir.OpIf, ir.OpIfImm, ir.OpReturn, ir.OpReturnVoid:
		return nil
	default:
		panic(fmt.Sprintf("constfold: unexpected opcode %s", i.Op()))
	}
	if !i.HasUsers() {
		return nil
	}
	return fn(i)
}

func graphOf(i *ir.Inst) *ir.Graph { return i.Block().Graph() }

func foldUnary(i *ir.Inst) *ir.Inst {
	x := i.Input(0)
	if !x.IsConst() {
		return nil
	}
	bits, ok := Unary(i.Op(), i.Type(), x.Imm)
	if !ok {
		return nil
	}
	return graphOf(i).FindOrCreateConstant(i.Type(), bits)
}

func foldBinary(i *ir.Inst) *ir.Inst {
	x, y := i.Input(0), i.Input(1)
	t := i.Type()
	if x.IsConst() && y.IsConst() {
		if isShift(i.Op()) && !shiftInRange(t, y.Imm) {
			return nil
		}
		bits, ok := Binary(i.Op(), t, x.Imm, y.Imm)
		if !ok {
			return nil
		}
		return graphOf(i).FindOrCreateConstant(t, bits)
	}
	return foldIdentity(i, x, y)
}

func isShift(op ir.Op) bool {
	return op == ir.OpShl || op == ir.OpShr || op == ir.OpAShr
}

// shiftInRange reports whether a constant shift of a result of type t by
// amount may be folded. Results of 32 and 64 bits take the amount modulo
// the width; narrower results only fold in-range amounts.
func shiftInRange(t ir.Type, amount uint64) bool {
	return t.Bits() >= 32 || amount < uint64(t.Bits())
}

// foldIdentity applies the algebraic identities that hold with at most one
// constant operand.
func foldIdentity(i, x, y *ir.Inst) *ir.Inst {
	t := i.Type()
	switch i.Op() {
	case ir.OpSub, ir.OpXor:
		// x-x is not 0 for floats: NaN-NaN and Inf-Inf are NaN.
		if x == y && t.IsInt() {
			return graphOf(i).FindOrCreateConstant(t, 0)
		}
	case ir.OpMul:
		// Kept for floats as well, although Inf*0 and NaN*0 are NaN.
		if z := constOperand(x, y, func(c *ir.Inst) bool { return c.IsZeroConst() }); z != nil {
			return z
		}
	case ir.OpAnd:
		if z := constOperand(x, y, func(c *ir.Inst) bool { return c.Imm == 0 }); z != nil && t.IsInt() {
			return z
		}
	case ir.OpOr:
		ones := ^uint64(0)
		if t.IsInt() {
			ones = ir.Canonical(ones, t)
		}
		if c := constOperand(x, y, func(c *ir.Inst) bool { return c.Imm == ones }); c != nil && t.IsInt() {
			return c
		}
	case ir.OpMod:
		if t.IsInt() && y.IsConst() && y.Imm == 1 {
			return graphOf(i).FindOrCreateConstant(t, 0)
		}
	}
	return nil
}

// constOperand returns the first of x, y that is a constant satisfying
// match.
func constOperand(x, y *ir.Inst, match func(*ir.Inst) bool) *ir.Inst {
	for _, c := range []*ir.Inst{x, y} {
		if c.IsConst() && match(c) {
			return c
		}
	}
	return nil
}

func foldCompare(i *ir.Inst) *ir.Inst {
	x, y := i.Input(0), i.Input(1)
	g := graphOf(i)
	cc := i.CC
	eqOrNe := cc == ir.CondEQ || cc == ir.CondNE

	switch {
	case x.IsConst() && y.IsConst():
		r, ok := Compare(cc, i.SrcType, x.Imm, y.Imm)
		if !ok {
			return nil
		}
		return g.BoolConst(r)
	case eqOrNe && x.Op() == ir.OpLoadImmediate && y.Op() == ir.OpLoadImmediate:
		// Class handles are interned, so identity is handle equality.
		return g.BoolConst((x == y) == (cc == ir.CondEQ))
	case eqOrNe && isNullOrZero(x) && isNullOrZero(y):
		return g.BoolConst(cc == ir.CondEQ)
	case x == y:
		return foldSelfCompare(g, cc, i.SrcType)
	case eqOrNe && i.SrcType == ir.TypeRef && isKnownObject(x) && isKnownObject(y):
		// Distinct allocations, class handles and null never alias.
		return g.BoolConst(cc == ir.CondNE)
	}
	return nil
}

func isNullOrZero(v *ir.Inst) bool {
	return v.Op() == ir.OpNullPtr || (v.IsConst() && v.IsZeroConst() && !v.Type().IsFloat())
}

func isKnownObject(v *ir.Inst) bool {
	return v.Op().IsAllocation() || v.Op() == ir.OpNullPtr || v.Op() == ir.OpLoadImmediate
}

// foldSelfCompare folds "x cc x". Strict orderings are false even for NaN;
// the reflexive conditions only fold for non-float operands.
func foldSelfCompare(g *ir.Graph, cc ir.CondCode, t ir.Type) *ir.Inst {
	switch cc {
	case ir.CondLT, ir.CondGT, ir.CondB, ir.CondA:
		return g.BoolConst(false)
	case ir.CondEQ, ir.CondLE, ir.CondGE, ir.CondBE, ir.CondAE:
		if !t.IsFloat() {
			return g.BoolConst(true)
		}
	case ir.CondNE:
		if !t.IsFloat() {
			return g.BoolConst(false)
		}
	}
	return nil
}

func foldCmp(i *ir.Inst) *ir.Inst {
	x, y := i.Input(0), i.Input(1)
	switch {
	case x.IsConst() && y.IsConst():
		r := ThreeWay(i.SrcType, x.Imm, y.Imm, i.Fcmpg)
		return graphOf(i).FindOrCreateConstant(i.Type(), uint64(r))
	case x == y && !i.SrcType.IsFloat():
		return graphOf(i).FindOrCreateConstant(i.Type(), 0)
	}
	return nil
}

func foldCast(i *ir.Inst) *ir.Inst {
	x := i.Input(0)
	if !x.IsConst() {
		return nil
	}
	bits, ok := Cast(i.Type(), x.Type(), x.Imm)
	if !ok {
		return nil
	}
	return graphOf(i).FindOrCreateConstant(i.Type(), bits)
}
