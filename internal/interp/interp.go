package interp

import (
	"math"
	"slices"

	"github.com/roach88/ssaopt/internal/constfold"
	"github.com/roach88/ssaopt/internal/ir"
)

// DefaultStepLimit bounds the number of instructions Eval executes.
const DefaultStepLimit = 1_000_000

// classTag distinguishes class handles from heap references. Heap
// references are allocation indices starting at 1; null is 0.
const classTag = 1 << 62

// CallFunc computes the result of a static call.
type CallFunc func(callee uint64, args []uint64) uint64

// Object is one heap allocation. Plain objects have no elements.
type Object struct {
	Class uint64   `json:"class"`
	Elems []uint64 `json:"elems,omitempty"`
}

// Result is the outcome of a completed execution. Value is the returned
// bit pattern, zero for a void return. Heap lists every object allocated,
// in allocation order.
type Result struct {
	Value uint64   `json:"value"`
	Type  ir.Type  `json:"-"`
	Heap  []Object `json:"heap,omitempty"`
	Calls int      `json:"calls"`
	Steps int      `json:"steps"`
}

// Option configures a Machine.
type Option func(*Machine)

// WithStepLimit sets the instruction budget.
//
// Default: DefaultStepLimit
func WithStepLimit(n int) Option {
	return func(m *Machine) {
		m.stepLimit = n
	}
}

// WithCalls sets how static calls are answered. By default every call
// returns 0.
func WithCalls(fn CallFunc) Option {
	return func(m *Machine) {
		m.call = fn
	}
}

// Machine executes graphs. A Machine keeps no state between Eval calls
// and may be reused.
type Machine struct {
	stepLimit int
	call      CallFunc
}

// NewMachine returns a Machine configured by opts.
func NewMachine(opts ...Option) *Machine {
	m := &Machine{
		stepLimit: DefaultStepLimit,
		call:      func(uint64, []uint64) uint64 { return 0 },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Eval executes g with default options. args are the parameter values as
// canonical bit patterns.
func Eval(g *ir.Graph, args ...uint64) (Result, error) {
	return NewMachine().Eval(g, args...)
}

// frame is the state of one execution.
type frame struct {
	m      *Machine
	g      *ir.Graph
	args   []uint64
	values []uint64
	heap   []Object
	res    Result
}

// Eval executes g with the given arguments.
func (m *Machine) Eval(g *ir.Graph, args ...uint64) (Result, error) {
	f := &frame{m: m, g: g, args: args, values: make([]uint64, g.InstIDBound())}

	var pred *ir.Block
	b := g.Entry()
	for {
		if err := f.step(-1, 1); err != nil {
			return Result{}, err
		}
		if err := f.enter(b, pred); err != nil {
			return Result{}, err
		}
		next, done, err := f.run(b)
		if err != nil {
			return Result{}, err
		}
		if done {
			f.res.Heap = f.heap
			return f.res, nil
		}
		pred, b = b, next
	}
}

// enter assigns the phis of b from the edge pred -> b. All inputs are read
// before any phi is written.
func (f *frame) enter(b, pred *ir.Block) error {
	phis := b.Phis()
	if len(phis) == 0 {
		return nil
	}
	if pred == nil {
		return fault(FaultMalformed, phis[0], "phi in entry block")
	}
	vals := make([]uint64, len(phis))
	for n, phi := range phis {
		vals[n] = f.values[phi.PhiInput(pred).ID()]
	}
	for n, phi := range phis {
		f.values[phi.ID()] = vals[n]
	}
	return f.step(phis[0].ID(), len(phis))
}

// step charges n steps, one per instruction and one per block entered.
func (f *frame) step(at ir.InstID, n int) error {
	f.res.Steps += n
	if f.res.Steps > f.m.stepLimit {
		return &Fault{Code: FaultStepLimit, Message: "step budget exhausted", Inst: at}
	}
	return nil
}

// run executes the instructions of b and returns the block to continue
// with, or done after a return.
func (f *frame) run(b *ir.Block) (next *ir.Block, done bool, err error) {
	for _, i := range b.Insts() {
		if err := f.step(i.ID(), 1); err != nil {
			return nil, false, err
		}
		switch i.Op() {
		case ir.OpIf:
			taken, err := f.compare(i, i.CC, i.SrcType, f.val(i, 0), f.val(i, 1))
			if err != nil {
				return nil, false, err
			}
			return branch(b, taken), false, nil
		case ir.OpIfImm:
			taken, err := f.compare(i, i.CC, i.SrcType, f.val(i, 0), i.Imm)
			if err != nil {
				return nil, false, err
			}
			return branch(b, taken), false, nil
		case ir.OpReturn:
			f.res.Value = f.val(i, 0)
			f.res.Type = i.Type()
			return nil, true, nil
		case ir.OpReturnVoid:
			f.res.Type = ir.TypeVoid
			return nil, true, nil
		}
		v, err := f.exec(i)
		if err != nil {
			return nil, false, err
		}
		f.values[i.ID()] = v
	}
	if b.NumSuccs() != 1 || b.Succ(0).IsExit() {
		return nil, false, &Fault{Code: FaultMalformed, Message: b.String() + " has no way out", Inst: -1}
	}
	return b.Succ(0), false, nil
}

func branch(b *ir.Block, taken bool) *ir.Block {
	if taken {
		return b.TrueSucc()
	}
	return b.FalseSucc()
}

func (f *frame) val(i *ir.Inst, n int) uint64 { return f.values[i.Input(n).ID()] }

// exec evaluates one non-terminator instruction.
func (f *frame) exec(i *ir.Inst) (uint64, error) {
	t := i.Type()
	switch i.Op() {
	case ir.OpConstant:
		return i.Imm, nil
	case ir.OpParameter:
		if int(i.Imm) >= len(f.args) {
			return 0, fault(FaultMalformed, i, "missing argument %d", i.Imm)
		}
		return canonicalArg(f.args[i.Imm], t), nil
	case ir.OpNullPtr:
		return 0, nil
	case ir.OpLoadImmediate:
		return classTag | i.Imm, nil

	case ir.OpNeg, ir.OpAbs, ir.OpNot, ir.OpSqrt:
		v, ok := constfold.Unary(i.Op(), t, f.val(i, 0))
		if !ok {
			return 0, fault(FaultMalformed, i, "%s on %s", i.Op(), t)
		}
		return v, nil
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod, ir.OpMin, ir.OpMax,
		ir.OpShl, ir.OpShr, ir.OpAShr, ir.OpAnd, ir.OpOr, ir.OpXor:
		return f.binary(i)
	case ir.OpCompare:
		r, err := f.compare(i, i.CC, i.SrcType, f.val(i, 0), f.val(i, 1))
		if r {
			return 1, err
		}
		return 0, err
	case ir.OpCmp:
		return ir.Canonical(uint64(constfold.ThreeWay(i.SrcType, f.val(i, 0), f.val(i, 1), i.Fcmpg)), t), nil
	case ir.OpCast:
		v, ok := constfold.Cast(t, i.SrcType, f.val(i, 0))
		if !ok {
			return 0, fault(FaultMalformed, i, "cast from %s to %s", i.SrcType, t)
		}
		return v, nil

	case ir.OpAddOverflowCheck, ir.OpSubOverflowCheck:
		v, overflow := checkedArith(i.Op(), t, f.val(i, 0), f.val(i, 1))
		if overflow {
			return 0, f.deoptimize(i, i.Input(2), "%s overflows %s", i.Op(), t)
		}
		return v, nil

	case ir.OpSaveState, ir.OpSafePoint:
		return 0, nil
	case ir.OpNullCheck:
		v := f.val(i, 0)
		if v == 0 {
			return 0, f.deoptimize(i, i.Input(1), "null reference")
		}
		return v, nil
	case ir.OpNewObject:
		f.heap = append(f.heap, Object{Class: i.Imm})
		return uint64(len(f.heap)), nil
	case ir.OpNewArray:
		n := int64(f.val(i, 0))
		if n < 0 {
			return 0, f.deoptimize(i, i.Input(1), "negative array length %d", n)
		}
		f.heap = append(f.heap, Object{Class: i.Imm, Elems: make([]uint64, n)})
		return uint64(len(f.heap)), nil
	case ir.OpLoadArray:
		obj, idx, err := f.element(i)
		if err != nil {
			return 0, err
		}
		return obj.Elems[idx], nil
	case ir.OpStoreArray:
		obj, idx, err := f.element(i)
		if err != nil {
			return 0, err
		}
		obj.Elems[idx] = f.val(i, 2)
		return 0, nil
	case ir.OpCallStatic:
		args := make([]uint64, i.NumInputs()-1)
		for n := range args {
			args[n] = f.val(i, n)
		}
		f.res.Calls++
		v := f.m.call(i.Imm, args)
		if t.IsInt() {
			v = ir.Canonical(v, t)
		}
		return v, nil
	}
	return 0, fault(FaultMalformed, i, "cannot execute %s", i.Op())
}

// canonicalArg brings an argument into the canonical form of its
// parameter type.
func canonicalArg(v uint64, t ir.Type) uint64 {
	switch {
	case t.IsInt():
		return ir.Canonical(v, t)
	case t == ir.TypeFloat32:
		return uint64(uint32(v))
	}
	return v
}

func (f *frame) binary(i *ir.Inst) (uint64, error) {
	t := i.Type()
	a, b := f.val(i, 0), f.val(i, 1)
	if v, ok := constfold.Binary(i.Op(), t, a, b); ok {
		return v, nil
	}
	if t.IsFloat() && (i.Op() == ir.OpDiv || i.Op() == ir.OpMod) {
		return floatDivByZero(i.Op(), t, a, b), nil
	}
	if i.Op() == ir.OpDiv || i.Op() == ir.OpMod {
		return 0, fault(FaultDivideByZero, i, "%s by zero", i.Op())
	}
	return 0, fault(FaultMalformed, i, "%s on %s", i.Op(), t)
}

// floatDivByZero evaluates a float division or remainder whose divisor is
// a zero of either sign: Div yields a signed infinity or NaN, Mod NaN.
func floatDivByZero(op ir.Op, t ir.Type, a, b uint64) uint64 {
	if t == ir.TypeFloat32 {
		x, y := math.Float32frombits(uint32(a)), math.Float32frombits(uint32(b))
		if op == ir.OpMod {
			return uint64(math.Float32bits(float32(math.Mod(float64(x), float64(y)))))
		}
		return uint64(math.Float32bits(x / y))
	}
	x, y := math.Float64frombits(a), math.Float64frombits(b)
	if op == ir.OpMod {
		return math.Float64bits(math.Mod(x, y))
	}
	return math.Float64bits(x / y)
}

func (f *frame) compare(i *ir.Inst, cc ir.CondCode, t ir.Type, a, b uint64) (bool, error) {
	if t == ir.TypeRef {
		switch cc {
		case ir.CondEQ:
			return a == b, nil
		case ir.CondNE:
			return a != b, nil
		}
		return false, fault(FaultMalformed, i, "%s on references", cc)
	}
	r, ok := constfold.Compare(cc, t, a, b)
	if !ok {
		return false, fault(FaultMalformed, i, "%s on %s", cc, t)
	}
	return r, nil
}

// checkedArith computes a+b or a-b at type t and reports whether the exact
// result does not fit t.
func checkedArith(op ir.Op, t ir.Type, a, b uint64) (uint64, bool) {
	sub := op == ir.OpSubOverflowCheck
	var r uint64
	if sub {
		r = ir.Canonical(a-b, t)
	} else {
		r = ir.Canonical(a+b, t)
	}

	if !t.IsSigned() {
		if sub {
			return r, a < b
		}
		if t.Bits() == 64 {
			return r, r < a
		}
		return r, a+b > ir.Canonical(math.MaxUint64, t)
	}

	x, y := int64(a), int64(b)
	if t.Bits() == 64 {
		z := int64(r)
		if sub {
			return r, (x >= 0 && y < 0 && z < 0) || (x < 0 && y > 0 && z >= 0)
		}
		return r, (x >= 0 && y >= 0 && z < 0) || (x < 0 && y < 0 && z >= 0)
	}
	exact := x + y
	if sub {
		exact = x - y
	}
	return r, exact < t.MinInt() || exact > t.MaxInt()
}

// deoptimize builds the fault for a failed check, capturing the values
// recorded by its SaveState.
func (f *frame) deoptimize(i, ss *ir.Inst, format string, args ...any) error {
	e := fault(FaultDeoptimize, i, format, args...)
	e.State = make(map[ir.VReg]uint64)
	for n, in := range ss.Inputs() {
		if r := ss.VReg(n); r != ir.VRegBridge {
			e.State[r] = f.values[in.ID()]
		}
	}
	return e
}

// element resolves the array and index of a LoadArray or StoreArray.
func (f *frame) element(i *ir.Inst) (*Object, int, error) {
	ref, idx := f.val(i, 0), int64(f.val(i, 1))
	switch {
	case ref == 0:
		return nil, 0, fault(FaultNullPointer, i, "array access through null")
	case ref&classTag != 0 || ref > uint64(len(f.heap)):
		return nil, 0, fault(FaultMalformed, i, "not an array reference")
	}
	obj := &f.heap[ref-1]
	if idx < 0 || idx >= int64(len(obj.Elems)) {
		return nil, 0, fault(FaultOutOfBounds, i, "index %d out of range [0:%d]", idx, len(obj.Elems))
	}
	return obj, int(idx), nil
}

// Equal reports whether two results are observably the same: the returned
// value and the heap contents. Step counts are ignored.
func Equal(a, b Result) bool {
	if a.Value != b.Value || a.Type != b.Type || a.Calls != b.Calls || len(a.Heap) != len(b.Heap) {
		return false
	}
	for n := range a.Heap {
		if a.Heap[n].Class != b.Heap[n].Class || !slices.Equal(a.Heap[n].Elems, b.Heap[n].Elems) {
			return false
		}
	}
	return true
}
