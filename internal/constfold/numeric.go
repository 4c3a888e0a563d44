package constfold

import (
	"fmt"
	"math"

	"github.com/roach88/ssaopt/internal/ir"
)

// The helpers in this file evaluate one operation over constant bit
// patterns of a given type: canonical 64-bit patterns for integers (see
// ir.Canonical) and IEEE-754 patterns for floats, float32 in the low 32
// bits. The interpreter shares them, so folding and execution agree bit for
// bit.

const (
	signBit32 = 1 << 31
	signBit64 = 1 << 63
)

func f32(bits uint64) float32           { return math.Float32frombits(uint32(bits)) }
func f64(bits uint64) float64           { return math.Float64frombits(bits) }
func bitsOf32(f float32) uint64         { return uint64(math.Float32bits(f)) }
func bitsOf64(f float64) uint64         { return math.Float64bits(f) }
func isNaN(t ir.Type, bits uint64) bool { return math.IsNaN(floatValue(t, bits)) }

func floatValue(t ir.Type, bits uint64) float64 {
	if t == ir.TypeFloat32 {
		return float64(f32(bits))
	}
	return f64(bits)
}

// zext returns the low width bits of v.
func zext(v uint64, width int) uint64 {
	if width >= 64 {
		return v
	}
	return v & (1<<width - 1)
}

// sext sign-extends the low width bits of v.
func sext(v uint64, width int) int64 {
	shift := 64 - width
	return int64(v<<shift) >> shift
}

// Unary evaluates Neg, Abs, Not or Sqrt on a constant of type t.
func Unary(op ir.Op, t ir.Type, a uint64) (uint64, bool) {
	switch op {
	case ir.OpNeg:
		switch t {
		case ir.TypeFloat32:
			return a ^ signBit32, true
		case ir.TypeFloat64:
			return a ^ signBit64, true
		}
		return ir.Canonical(-a, t), true
	case ir.OpAbs:
		switch t {
		case ir.TypeFloat32:
			return a &^ signBit32, true
		case ir.TypeFloat64:
			return a &^ signBit64, true
		}
		if t.IsSigned() && int64(a) < 0 {
			return ir.Canonical(-a, t), true
		}
		return a, true
	case ir.OpNot:
		if t == ir.TypeBool {
			return a ^ 1, true
		}
		if !t.IsInt() {
			return 0, false
		}
		return ir.Canonical(^a, t), true
	case ir.OpSqrt:
		switch t {
		case ir.TypeFloat32:
			return bitsOf32(float32(math.Sqrt(float64(f32(a))))), true
		case ir.TypeFloat64:
			return bitsOf64(math.Sqrt(f64(a))), true
		}
		return 0, false
	}
	panic(fmt.Sprintf("constfold: %s is not a unary operation", op))
}

// Binary evaluates a two-operand arithmetic or logic operation on
// constants of type t. It reports false when the result is not defined at
// compile time: an integer or float division by zero, or a float bitwise
// operation.
//
// Shift amounts are taken modulo the width of t. Callers that must refuse
// out-of-range amounts on narrow types check that themselves.
func Binary(op ir.Op, t ir.Type, a, b uint64) (uint64, bool) {
	if t.IsFloat() {
		return binaryFloat(op, t, a, b)
	}
	if !t.IsInt() {
		return 0, false
	}
	width := t.Bits()
	switch op {
	case ir.OpAdd:
		return ir.Canonical(a+b, t), true
	case ir.OpSub:
		return ir.Canonical(a-b, t), true
	case ir.OpMul:
		return ir.Canonical(a*b, t), true
	case ir.OpDiv:
		if b == 0 {
			return 0, false
		}
		if t.IsSigned() {
			// MinInt64 / -1 wraps to MinInt64 in Go as on the target.
			return ir.Canonical(uint64(int64(a)/int64(b)), t), true
		}
		return ir.Canonical(a/b, t), true
	case ir.OpMod:
		if b == 0 {
			return 0, false
		}
		if t.IsSigned() {
			return ir.Canonical(uint64(int64(a)%int64(b)), t), true
		}
		return ir.Canonical(a%b, t), true
	case ir.OpMin, ir.OpMax:
		less := a < b
		if t.IsSigned() {
			less = int64(a) < int64(b)
		}
		if less == (op == ir.OpMin) {
			return a, true
		}
		return b, true
	case ir.OpShl:
		return ir.Canonical(a<<(b&uint64(width-1)), t), true
	case ir.OpShr:
		return ir.Canonical(zext(a, width)>>(b&uint64(width-1)), t), true
	case ir.OpAShr:
		return ir.Canonical(uint64(sext(a, width)>>(b&uint64(width-1))), t), true
	case ir.OpAnd:
		return a & b, true
	case ir.OpOr:
		return a | b, true
	case ir.OpXor:
		return a ^ b, true
	}
	panic(fmt.Sprintf("constfold: %s is not a binary operation", op))
}

func binaryFloat(op ir.Op, t ir.Type, a, b uint64) (uint64, bool) {
	switch op {
	case ir.OpMin, ir.OpMax:
		return minMaxFloat(op == ir.OpMin, t, a, b), true
	case ir.OpDiv, ir.OpMod:
		if floatValue(t, b) == 0 {
			return 0, false
		}
	case ir.OpAdd, ir.OpSub, ir.OpMul:
	default:
		return 0, false
	}

	if t == ir.TypeFloat32 {
		x, y := f32(a), f32(b)
		var r float32
		switch op {
		case ir.OpAdd:
			r = x + y
		case ir.OpSub:
			r = x - y
		case ir.OpMul:
			r = x * y
		case ir.OpDiv:
			r = x / y
		case ir.OpMod:
			r = float32(math.Mod(float64(x), float64(y)))
		}
		return bitsOf32(r), true
	}
	x, y := f64(a), f64(b)
	var r float64
	switch op {
	case ir.OpAdd:
		r = x + y
	case ir.OpSub:
		r = x - y
	case ir.OpMul:
		r = x * y
	case ir.OpDiv:
		r = x / y
	case ir.OpMod:
		r = math.Mod(x, y)
	}
	return bitsOf64(r), true
}

// minMaxFloat orders -0 below +0 and lets a NaN operand through with its
// own bit pattern, whichever side it is on.
func minMaxFloat(isMin bool, t ir.Type, a, b uint64) uint64 {
	if isNaN(t, a) {
		return a
	}
	if isNaN(t, b) {
		return b
	}
	x, y := floatValue(t, a), floatValue(t, b)
	if x == 0 && y == 0 {
		neg := math.Signbit(x)
		if isMin == neg {
			return a
		}
		return b
	}
	if (x < y) == isMin {
		return a
	}
	return b
}

// Compare evaluates cc over two constants of operand type t. It reports
// false for bit-test conditions on floats.
func Compare(cc ir.CondCode, t ir.Type, a, b uint64) (bool, bool) {
	if t.IsFloat() {
		if cc == ir.CondTstEQ || cc == ir.CondTstNE {
			return false, false
		}
		return cc.EvalFloat(floatValue(t, a), floatValue(t, b)), true
	}
	if !t.IsInt() {
		return false, false
	}
	return cc.Eval(a, b, t), true
}

// ThreeWay returns -1, 0 or 1 as a compares below, equal to or above b.
// An unordered float comparison yields 1 when fcmpg is set and -1
// otherwise.
func ThreeWay(t ir.Type, a, b uint64, fcmpg bool) int64 {
	if t.IsFloat() {
		x, y := floatValue(t, a), floatValue(t, b)
		switch {
		case math.IsNaN(x) || math.IsNaN(y):
			if fcmpg {
				return 1
			}
			return -1
		case x > y:
			return 1
		case x < y:
			return -1
		}
		return 0
	}
	switch {
	case ir.CondGT.Eval(a, b, t):
		return 1
	case ir.CondLT.Eval(a, b, t):
		return -1
	}
	return 0
}

// Cast converts a constant of type from to type to. Float to integer
// conversion saturates and maps NaN to 0. Reference casts are not
// evaluated.
func Cast(to, from ir.Type, bits uint64) (uint64, bool) {
	switch {
	case from.IsInt() && to.IsInt():
		return ir.Canonical(bits, to), true
	case from.IsInt() && to.IsFloat():
		if to == ir.TypeFloat32 {
			if from.IsSigned() {
				return bitsOf32(float32(int64(bits))), true
			}
			return bitsOf32(float32(bits)), true
		}
		if from.IsSigned() {
			return bitsOf64(float64(int64(bits))), true
		}
		return bitsOf64(float64(bits)), true
	case from.IsFloat() && to.IsInt():
		return saturate(floatValue(from, bits), to), true
	case from.IsFloat() && to.IsFloat():
		switch {
		case from == to:
			return bits, true
		case to == ir.TypeFloat32:
			return bitsOf32(float32(f64(bits))), true
		}
		return bitsOf64(float64(f32(bits))), true
	}
	return 0, false
}

// saturate converts f to integer type t, clamping to the range of t.
func saturate(f float64, t ir.Type) uint64 {
	if math.IsNaN(f) {
		return 0
	}
	if t == ir.TypeBool {
		if f > 0 {
			return 1
		}
		return 0
	}
	width := t.Bits()
	if t.IsSigned() {
		limit := math.Ldexp(1, width-1)
		switch {
		case f <= -limit:
			return uint64(t.MinInt())
		case f >= limit:
			return uint64(t.MaxInt())
		}
		return ir.Canonical(uint64(int64(f)), t)
	}
	limit := math.Ldexp(1, width)
	switch {
	case f <= 0:
		return 0
	case f >= limit:
		return ir.Canonical(math.MaxUint64, t)
	}
	return ir.Canonical(uint64(f), t)
}
