package ir

import (
	"fmt"
	"math"
)

// Type is the result type of an instruction.
//
// Integer constants of every width are stored as 64-bit patterns that have
// already been truncated to the type and sign- or zero-extended back to 64
// bits (see Canonical). Float constants keep their IEEE-754 bit pattern.
type Type uint8

const (
	TypeVoid Type = iota
	TypeBool
	TypeUint8
	TypeInt8
	TypeUint16
	TypeInt16
	TypeUint32
	TypeInt32
	TypeUint64
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeRef
)

var typeNames = [...]string{
	TypeVoid:    "void",
	TypeBool:    "b",
	TypeUint8:   "u8",
	TypeInt8:    "i8",
	TypeUint16:  "u16",
	TypeInt16:   "i16",
	TypeUint32:  "u32",
	TypeInt32:   "i32",
	TypeUint64:  "u64",
	TypeInt64:   "i64",
	TypeFloat32: "f32",
	TypeFloat64: "f64",
	TypeRef:     "ref",
}

// String returns the short type name used in dumps and graph files.
func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// ParseType parses a short type name ("i32", "f64", "ref", ...).
func ParseType(s string) (Type, error) {
	for i, name := range typeNames {
		if name == s {
			return Type(i), nil
		}
	}
	return TypeVoid, fmt.Errorf("unknown type %q", s)
}

// IsInt reports whether t is an integer type. Bool counts as an integer.
func (t Type) IsInt() bool {
	return t >= TypeBool && t <= TypeInt64
}

// IsFloat reports whether t is float32 or float64.
func (t Type) IsFloat() bool {
	return t == TypeFloat32 || t == TypeFloat64
}

// IsSigned reports whether t is a signed integer type.
func (t Type) IsSigned() bool {
	switch t {
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64:
		return true
	}
	return false
}

// Bits returns the width of t in bits. Bool is stored in a byte and
// references are pointer-sized.
func (t Type) Bits() int {
	switch t {
	case TypeBool, TypeUint8, TypeInt8:
		return 8
	case TypeUint16, TypeInt16:
		return 16
	case TypeUint32, TypeInt32, TypeFloat32:
		return 32
	case TypeUint64, TypeInt64, TypeFloat64, TypeRef:
		return 64
	}
	return 0
}

// MinInt returns the smallest value of integer type t as int64.
// Uint64 is bounded by the signed 64-bit range.
func (t Type) MinInt() int64 {
	switch t {
	case TypeInt8:
		return math.MinInt8
	case TypeInt16:
		return math.MinInt16
	case TypeInt32:
		return math.MinInt32
	case TypeInt64:
		return math.MinInt64
	}
	return 0
}

// MaxInt returns the largest value of integer type t as int64.
// Uint64 is bounded by the signed 64-bit range.
func (t Type) MaxInt() int64 {
	switch t {
	case TypeBool:
		return 1
	case TypeUint8:
		return math.MaxUint8
	case TypeInt8:
		return math.MaxInt8
	case TypeUint16:
		return math.MaxUint16
	case TypeInt16:
		return math.MaxInt16
	case TypeUint32:
		return math.MaxUint32
	case TypeInt32:
		return math.MaxInt32
	}
	return math.MaxInt64
}

// Canonical truncates v to integer type t and extends the result back to
// 64 bits, sign-extending for signed types and zero-extending otherwise.
// Bool maps every non-zero value to 1.
func Canonical(v uint64, t Type) uint64 {
	switch t {
	case TypeBool:
		if v != 0 {
			return 1
		}
		return 0
	case TypeUint8:
		return uint64(uint8(v))
	case TypeInt8:
		return uint64(int64(int8(v)))
	case TypeUint16:
		return uint64(uint16(v))
	case TypeInt16:
		return uint64(int64(int16(v)))
	case TypeUint32:
		return uint64(uint32(v))
	case TypeInt32:
		return uint64(int64(int32(v)))
	case TypeUint64, TypeInt64:
		return v
	}
	panic(fmt.Sprintf("ir: Canonical on non-integer type %s", t))
}

// CondCode is the condition of a Compare, If or IfImm instruction.
// LT, LE, GT and GE follow the signedness of the operand type; B, BE, A and
// AE always compare unsigned.
type CondCode uint8

const (
	CondEQ CondCode = iota
	CondNE
	CondLT
	CondLE
	CondGT
	CondGE
	CondB
	CondBE
	CondA
	CondAE
	CondTstEQ
	CondTstNE
)

var condNames = [...]string{
	CondEQ:    "EQ",
	CondNE:    "NE",
	CondLT:    "LT",
	CondLE:    "LE",
	CondGT:    "GT",
	CondGE:    "GE",
	CondB:     "B",
	CondBE:    "BE",
	CondA:     "A",
	CondAE:    "AE",
	CondTstEQ: "TST_EQ",
	CondTstNE: "TST_NE",
}

func (c CondCode) String() string {
	if int(c) < len(condNames) {
		return condNames[c]
	}
	return fmt.Sprintf("cc(%d)", uint8(c))
}

// ParseCondCode parses a condition code name ("LT", "TST_EQ", ...).
func ParseCondCode(s string) (CondCode, error) {
	for i, name := range condNames {
		if name == s {
			return CondCode(i), nil
		}
	}
	return CondEQ, fmt.Errorf("unknown condition code %q", s)
}

// Inverse returns the condition that holds exactly when c does not.
func (c CondCode) Inverse() CondCode {
	switch c {
	case CondEQ:
		return CondNE
	case CondNE:
		return CondEQ
	case CondLT:
		return CondGE
	case CondLE:
		return CondGT
	case CondGT:
		return CondLE
	case CondGE:
		return CondLT
	case CondB:
		return CondAE
	case CondBE:
		return CondA
	case CondA:
		return CondBE
	case CondAE:
		return CondB
	case CondTstEQ:
		return CondTstNE
	case CondTstNE:
		return CondTstEQ
	}
	panic(fmt.Sprintf("ir: invalid condition code %d", c))
}

// Swap returns the condition that holds for (b, a) when c holds for (a, b).
func (c CondCode) Swap() CondCode {
	switch c {
	case CondLT:
		return CondGT
	case CondLE:
		return CondGE
	case CondGT:
		return CondLT
	case CondGE:
		return CondLE
	case CondB:
		return CondA
	case CondBE:
		return CondAE
	case CondA:
		return CondB
	case CondAE:
		return CondBE
	}
	return c
}

// Eval evaluates c over two canonical 64-bit integer patterns of operand
// type t.
func (c CondCode) Eval(a, b uint64, t Type) bool {
	signed := t.IsSigned()
	switch c {
	case CondEQ:
		return a == b
	case CondNE:
		return a != b
	case CondLT:
		if signed {
			return int64(a) < int64(b)
		}
		return a < b
	case CondLE:
		if signed {
			return int64(a) <= int64(b)
		}
		return a <= b
	case CondGT:
		if signed {
			return int64(a) > int64(b)
		}
		return a > b
	case CondGE:
		if signed {
			return int64(a) >= int64(b)
		}
		return a >= b
	case CondB:
		return a < b
	case CondBE:
		return a <= b
	case CondA:
		return a > b
	case CondAE:
		return a >= b
	case CondTstEQ:
		return a&b == 0
	case CondTstNE:
		return a&b != 0
	}
	panic(fmt.Sprintf("ir: invalid condition code %d", c))
}

// EvalFloat evaluates c over two float64 operands. Unordered operands make
// every condition except NE false. Bit-test conditions are not defined for
// floats.
func (c CondCode) EvalFloat(a, b float64) bool {
	switch c {
	case CondEQ:
		return a == b
	case CondNE:
		return a != b
	case CondLT, CondB:
		return a < b
	case CondLE, CondBE:
		return a <= b
	case CondGT, CondA:
		return a > b
	case CondGE, CondAE:
		return a >= b
	}
	panic(fmt.Sprintf("ir: condition code %s on floats", c))
}
