package interp

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ssaopt/internal/ir"
	"github.com/roach88/ssaopt/internal/testutil"
)

func TestEvalSumLoop(t *testing.T) {
	tests := []struct {
		name string
		spec testutil.LoopSpec
		args []uint64
		want int64
	}{
		{"zero to ten", testutil.LoopSpec{}, nil, 45},
		{"inclusive", testutil.LoopSpec{Test: 10, CC: ir.CondLE}, nil, 55},
		{"step three", testutil.LoopSpec{Test: 10, Step: 3}, nil, 0 + 3 + 6 + 9},
		{"decreasing", testutil.LoopSpec{Init: 10, Test: 0, Dec: true}, nil, 55},
		{"never entered", testutil.LoopSpec{Init: 5, Test: 5}, nil, 0},
		{"parameter bound", testutil.LoopSpec{TestParam: true}, []uint64{5}, 10},
		{"parameter bound zero", testutil.LoopSpec{TestParam: true}, []uint64{0}, 0},
		{"split latch", testutil.LoopSpec{SplitLatch: true}, nil, 45},
		{"exit on eq", testutil.LoopSpec{ExitOnEQ: true}, nil, 45},
		{"no guard runs once", testutil.LoopSpec{Init: 5, Test: 5, NoGuard: true}, nil, 5},
		{"i8 wraps", testutil.LoopSpec{Type: ir.TypeInt8, Test: 20}, nil, 190 - 256},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := testutil.NewSumLoop(tt.name, tt.spec)
			res, err := Eval(l.Graph, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, int64(res.Value))
			assert.Equal(t, l.Result.Type(), res.Type)
		})
	}
}

func TestEvalOverflowCheckDeoptimizes(t *testing.T) {
	l := testutil.NewSumLoop("overflow", testutil.LoopSpec{
		Type: ir.TypeInt8, Init: 120, Test: 127, CC: ir.CondLE, OverflowCheck: true,
	})
	_, err := Eval(l.Graph)
	require.ErrorIs(t, err, ErrDeoptimize)

	var f *Fault
	require.ErrorAs(t, err, &f)
	assert.Equal(t, l.Update.ID(), f.Inst)
	// 120+...+126 wraps to 93 in int8.
	assert.Equal(t, map[ir.VReg]uint64{0: 127, 1: 93}, f.State)
}

func TestEvalOverflowCheckPasses(t *testing.T) {
	l := testutil.NewSumLoop("no-overflow", testutil.LoopSpec{OverflowCheck: true})
	res, err := Eval(l.Graph)
	require.NoError(t, err)
	assert.Equal(t, uint64(45), res.Value)
}

func TestCheckedArith(t *testing.T) {
	tests := []struct {
		name     string
		op       ir.Op
		typ      ir.Type
		a, b     int64
		overflow bool
	}{
		{"i32 add fits", ir.OpAddOverflowCheck, ir.TypeInt32, math.MaxInt32 - 1, 1, false},
		{"i32 add overflows", ir.OpAddOverflowCheck, ir.TypeInt32, math.MaxInt32, 1, true},
		{"i32 sub underflows", ir.OpSubOverflowCheck, ir.TypeInt32, math.MinInt32, 1, true},
		{"i64 add overflows", ir.OpAddOverflowCheck, ir.TypeInt64, math.MaxInt64, 1, true},
		{"i64 add negative fits", ir.OpAddOverflowCheck, ir.TypeInt64, math.MinInt64, math.MaxInt64, false},
		{"i64 sub overflows", ir.OpSubOverflowCheck, ir.TypeInt64, math.MinInt64, 1, true},
		{"i64 sub of negative overflows", ir.OpSubOverflowCheck, ir.TypeInt64, 0, math.MinInt64, true},
		{"u8 add carries", ir.OpAddOverflowCheck, ir.TypeUint8, 200, 56, true},
		{"u8 add fits", ir.OpAddOverflowCheck, ir.TypeUint8, 200, 55, false},
		{"u32 sub borrows", ir.OpSubOverflowCheck, ir.TypeUint32, 1, 2, true},
		{"u64 add carries", ir.OpAddOverflowCheck, ir.TypeUint64, -1, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := ir.Canonical(uint64(tt.a), tt.typ), ir.Canonical(uint64(tt.b), tt.typ)
			_, overflow := checkedArith(tt.op, tt.typ, a, b)
			assert.Equal(t, tt.overflow, overflow)
		})
	}
}

func TestEvalStepLimit(t *testing.T) {
	b := ir.NewBuilder("spin")
	header := b.NewBlock()
	b.Goto(header)
	b.SetBlock(header)
	b.Goto(header)

	_, err := NewMachine(WithStepLimit(100)).Eval(b.Graph())
	require.ErrorIs(t, err, ErrStepLimit)
	assert.False(t, errors.Is(err, ErrDeoptimize))
	assert.True(t, IsFault(err, FaultStepLimit))
}

func TestEvalCalls(t *testing.T) {
	l := testutil.NewSumLoop("calls", testutil.LoopSpec{Call: true})

	var seen []uint64
	m := NewMachine(WithCalls(func(callee uint64, args []uint64) uint64 {
		assert.Equal(t, uint64(1), callee)
		seen = append(seen, args[0])
		return 0
	}))
	res, err := m.Eval(l.Graph)
	require.NoError(t, err)
	assert.Equal(t, 10, res.Calls)
	assert.Equal(t, []uint64{0, 1, 3, 6, 10, 15, 21, 28, 36, 45}, seen)
}

func TestEvalArrays(t *testing.T) {
	b := ir.NewBuilder("arrays")
	ss := b.SaveState()
	arr := b.NewArray(5, b.Int(ir.TypeInt32, 3), ss)
	b.StoreArray(arr, b.Int(ir.TypeInt32, 1), b.Int(ir.TypeInt64, 42))
	x := b.LoadArray(ir.TypeInt64, arr, b.Int(ir.TypeInt32, 1))
	b.Return(x)

	res, err := Eval(b.Graph())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), res.Value)
	assert.Equal(t, []Object{{Class: 5, Elems: []uint64{0, 42, 0}}}, res.Heap)
}

func TestEvalFaults(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *ir.Builder)
		args  []uint64
		code  FaultCode
	}{
		{"out of bounds", func(b *ir.Builder) {
			arr := b.NewArray(5, b.Int(ir.TypeInt32, 2), b.SaveState())
			b.Return(b.LoadArray(ir.TypeInt32, arr, b.Int(ir.TypeInt32, 2)))
		}, nil, FaultOutOfBounds},
		{"null array", func(b *ir.Builder) {
			b.Return(b.LoadArray(ir.TypeInt32, b.Null(), b.Int(ir.TypeInt32, 0)))
		}, nil, FaultNullPointer},
		{"null check", func(b *ir.Builder) {
			p := b.Param(ir.TypeRef)
			ss := b.SaveState(p)
			b.Return(b.NullCheck(p, ss))
		}, []uint64{0}, FaultDeoptimize},
		{"integer division by zero", func(b *ir.Builder) {
			b.Return(b.Binary(ir.OpDiv, ir.TypeInt32, b.Param(ir.TypeInt32), b.Param(ir.TypeInt32)))
		}, []uint64{1, 0}, FaultDivideByZero},
		{"missing argument", func(b *ir.Builder) {
			b.Return(b.Param(ir.TypeInt32))
		}, nil, FaultMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := ir.NewBuilder(tt.name)
			tt.build(b)
			_, err := Eval(b.Graph(), tt.args...)
			require.Error(t, err)
			assert.True(t, IsFault(err, tt.code), "got %v", err)
		})
	}
}

func TestEvalFloatDivisionByZero(t *testing.T) {
	b := ir.NewBuilder("inf")
	b.Return(b.Binary(ir.OpDiv, ir.TypeFloat64, b.Param(ir.TypeFloat64), b.F64(0)))

	res, err := Eval(b.Graph(), math.Float64bits(-2))
	require.NoError(t, err)
	assert.True(t, math.IsInf(math.Float64frombits(res.Value), -1))
}

func TestEvalReferenceCompare(t *testing.T) {
	b := ir.NewBuilder("refs")
	ss := b.SaveState()
	o := b.NewObject(1, ss)
	eq := b.Compare(ir.CondEQ, o, b.Null())
	neq := b.Compare(ir.CondNE, b.Class(7), b.Class(8))
	b.Return(b.Binary(ir.OpOr, ir.TypeBool, eq, neq))

	res, err := Eval(b.Graph())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Value)
	assert.Len(t, res.Heap, 1)
}

func TestEqual(t *testing.T) {
	a := Result{Value: 1, Type: ir.TypeInt32, Heap: []Object{{Class: 1, Elems: []uint64{1}}}, Steps: 10}
	b := a
	b.Steps = 99
	assert.True(t, Equal(a, b), "step counts do not matter")

	b.Heap = []Object{{Class: 1, Elems: []uint64{2}}}
	assert.False(t, Equal(a, b))
}
