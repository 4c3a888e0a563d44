package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonical(t *testing.T) {
	tests := []struct {
		name string
		v    uint64
		typ  Type
		want uint64
	}{
		{"bool non-zero", 5, TypeBool, 1},
		{"bool zero", 0, TypeBool, 0},
		{"u8 truncates", 300, TypeUint8, 44},
		{"i8 sign extends", 0xff, TypeInt8, math.MaxUint64},
		{"i8 positive", 0x7f, TypeInt8, 0x7f},
		{"u16 truncates", 0x1_0001, TypeUint16, 1},
		{"i16 min", 0x8000, TypeInt16, uint64(math.MaxUint64) - 0x7fff},
		{"u32 zero extends", math.MaxUint64, TypeUint32, math.MaxUint32},
		{"i32 sign extends", 0xffff_ffff, TypeInt32, math.MaxUint64},
		{"i64 unchanged", 0x8000_0000_0000_0000, TypeInt64, 0x8000_0000_0000_0000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Canonical(tt.v, tt.typ))
		})
	}
}

func TestCanonicalPanicsOnFloat(t *testing.T) {
	assert.Panics(t, func() { Canonical(1, TypeFloat64) })
}

func TestParseTypeRoundTrip(t *testing.T) {
	for typ := TypeVoid; typ <= TypeRef; typ++ {
		parsed, err := ParseType(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, parsed)
	}
	_, err := ParseType("i128")
	assert.Error(t, err)
}

func TestTypeRanges(t *testing.T) {
	assert.Equal(t, int64(math.MinInt8), TypeInt8.MinInt())
	assert.Equal(t, int64(math.MaxUint16), TypeUint16.MaxInt())
	assert.Equal(t, int64(math.MaxInt64), TypeUint64.MaxInt())
	assert.Equal(t, int64(0), TypeUint32.MinInt())
	assert.Equal(t, 8, TypeBool.Bits())
	assert.Equal(t, 64, TypeRef.Bits())
	assert.True(t, TypeBool.IsInt())
	assert.False(t, TypeRef.IsInt())
	assert.False(t, TypeUint64.IsSigned())
}

func TestCondCodeInverseAndSwap(t *testing.T) {
	values := []uint64{0, 1, 2, math.MaxUint64, 1 << 63, 0x7fff_ffff_ffff_ffff}
	for _, typ := range []Type{TypeInt64, TypeUint64} {
		for cc := CondEQ; cc <= CondTstNE; cc++ {
			for _, a := range values {
				for _, b := range values {
					got := cc.Eval(a, b, typ)
					assert.Equal(t, !got, cc.Inverse().Eval(a, b, typ), "%s %s inverse", typ, cc)
					if cc < CondTstEQ {
						assert.Equal(t, got, cc.Swap().Eval(b, a, typ), "%s %s swap", typ, cc)
					}
				}
			}
		}
	}
}

func TestCondCodeSignedness(t *testing.T) {
	minusOne := uint64(math.MaxUint64)
	assert.True(t, CondLT.Eval(minusOne, 0, TypeInt32))
	assert.False(t, CondLT.Eval(minusOne, 0, TypeUint64))
	assert.False(t, CondB.Eval(minusOne, 0, TypeInt32))
	assert.True(t, CondTstNE.Eval(6, 2, TypeInt32))
	assert.True(t, CondTstEQ.Eval(4, 2, TypeInt32))
}

func TestCondCodeFloatUnordered(t *testing.T) {
	nan := math.NaN()
	for cc := CondEQ; cc <= CondAE; cc++ {
		want := cc == CondNE
		assert.Equal(t, want, cc.EvalFloat(nan, 1), "%s", cc)
	}
	assert.Panics(t, func() { CondTstEQ.EvalFloat(1, 1) })
}

func TestParseOpAndCondCode(t *testing.T) {
	op, err := ParseOp("AddOverflowCheck")
	require.NoError(t, err)
	assert.Equal(t, OpAddOverflowCheck, op)
	assert.True(t, op.CanDeoptimize())

	_, err = ParseOp("Invalid")
	assert.Error(t, err)

	cc, err := ParseCondCode("TST_NE")
	require.NoError(t, err)
	assert.Equal(t, CondTstNE, cc)
}
