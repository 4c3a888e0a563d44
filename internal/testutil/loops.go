package testutil

import (
	"github.com/roach88/ssaopt/internal/ir"
)

// LoopSpec describes the counted loop built by NewSumLoop:
//
//	sum := 0
//	if init cc test {
//	    i := init
//	    do {
//	        sum += i
//	        i += step         (i -= step when Dec)
//	    } while i cc test
//	}
//	return sum
//
// The zero value is "for i := 0; i < 10; i++" over int32: Type defaults to
// int32, Step to 1, CC to LT (GT when Dec), and Test to 10 when both Init
// and Test are zero.
type LoopSpec struct {
	Type ir.Type
	Init int64
	Test int64
	Step int64
	CC   ir.CondCode
	Dec  bool

	// InitParam and TestParam take init or test from a parameter instead
	// of a constant. Parameter 0 is init when both are set.
	InitParam bool
	TestParam bool

	// NoGuard drops the pre-header compare; the entry jumps straight into
	// the loop.
	NoGuard bool
	// SplitLatch moves the update and exit test into a second block.
	SplitLatch bool
	// OverflowCheck uses AddOverflowCheck/SubOverflowCheck for the update.
	OverflowCheck bool
	// Call adds a static call to the body; Inlined marks it inlined.
	Call    bool
	Inlined bool
	// SafePoint adds a SafePoint at the top of the header.
	SafePoint bool
	// ExitOnEQ tests the compare with IfImm EQ and swaps the successors.
	ExitOnEQ bool
}

// SumLoop exposes the interesting parts of a NewSumLoop graph.
type SumLoop struct {
	Graph  *ir.Graph
	Header *ir.Block
	Latch  *ir.Block
	Exit   *ir.Block
	Params []*ir.Inst

	Index   *ir.Inst
	Sum     *ir.Inst
	Next    *ir.Inst
	Update  *ir.Inst
	Compare *ir.Inst
	Result  *ir.Inst
}

// NewSumLoop builds the loop described by spec.
func NewSumLoop(name string, spec LoopSpec) *SumLoop {
	if spec.Type == ir.TypeVoid {
		spec.Type = ir.TypeInt32
	}
	if spec.Step == 0 {
		spec.Step = 1
	}
	if spec.Test == 0 && spec.Init == 0 && !spec.TestParam {
		spec.Test = 10
	}
	if spec.CC == ir.CondEQ {
		spec.CC = ir.CondLT
		if spec.Dec {
			spec.CC = ir.CondGT
		}
	}

	b := ir.NewBuilder(name)
	t := spec.Type
	l := &SumLoop{Graph: b.Graph()}

	var init, test *ir.Inst
	if spec.InitParam {
		init = b.Param(t)
		l.Params = append(l.Params, init)
	} else {
		init = b.Int(t, spec.Init)
	}
	if spec.TestParam {
		test = b.Param(t)
		l.Params = append(l.Params, test)
	} else {
		test = b.Int(t, spec.Test)
	}
	zero := b.Int(t, 0)

	l.Header = b.NewBlock()
	l.Latch = l.Header
	if spec.SplitLatch {
		l.Latch = b.NewBlock()
	}
	l.Exit = b.NewBlock()

	if spec.NoGuard {
		b.Goto(l.Header)
	} else {
		guard := b.Compare(spec.CC, init, test)
		branch(b, spec, guard, l.Header, l.Exit)
	}

	b.SetBlock(l.Header)
	l.Index = b.Phi(t, init)
	l.Sum = b.Phi(t, zero)
	if spec.SafePoint {
		b.SafePoint(l.Index, l.Sum)
	}
	l.Next = b.Binary(ir.OpAdd, t, l.Sum, l.Index)
	if spec.Call {
		ss := b.SaveState(l.Index, l.Sum)
		call := b.Call(ir.TypeVoid, 1, ss, l.Next)
		call.Inlined = spec.Inlined
	}
	if spec.SplitLatch {
		b.Goto(l.Latch)
		b.SetBlock(l.Latch)
	}

	op := ir.OpAdd
	if spec.Dec {
		op = ir.OpSub
	}
	step := b.Int(t, spec.Step)
	if spec.OverflowCheck {
		ss := b.SaveState(l.Index, l.Sum)
		if op == ir.OpAdd {
			op = ir.OpAddOverflowCheck
		} else {
			op = ir.OpSubOverflowCheck
		}
		l.Update = b.OverflowCheck(op, t, l.Index, step, ss)
	} else {
		l.Update = b.Binary(op, t, l.Index, step)
	}
	l.Compare = b.Compare(spec.CC, l.Update, test)
	branch(b, spec, l.Compare, l.Header, l.Exit)
	l.Index.AppendInput(l.Update)
	l.Sum.AppendInput(l.Next)

	b.SetBlock(l.Exit)
	if spec.NoGuard {
		l.Result = b.Phi(t, l.Next)
	} else {
		l.Result = b.Phi(t, zero, l.Next)
	}
	b.Return(l.Result)
	return l
}

func branch(b *ir.Builder, spec LoopSpec, cond *ir.Inst, stay, leave *ir.Block) {
	if spec.ExitOnEQ {
		b.IfImm(ir.CondEQ, cond, 0, leave, stay)
		return
	}
	b.Branch(cond, stay, leave)
}
