package irfile

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ssaopt/internal/analysis"
	"github.com/roach88/ssaopt/internal/interp"
	"github.com/roach88/ssaopt/internal/ir"
)

func TestLoadGolden(t *testing.T) {
	g, err := Load(filepath.Join("testdata", "max.yaml"))
	require.NoError(t, err)
	require.NoError(t, analysis.Check(g))

	gold := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	gold.Assert(t, "max", []byte(ir.Dump(g)))
}

func TestLoadLoop(t *testing.T) {
	g, err := Load(filepath.Join("testdata", "sum.yaml"))
	require.NoError(t, err)
	require.NoError(t, analysis.Check(g))

	loop := g.Entry().Succ(0)
	require.Equal(t, []*ir.Block{g.Entry(), loop}, loop.Preds())
	i := loop.Phis()[0]
	assert.True(t, i.Input(0).IsConst(), "entry input comes first whatever the file order")
	assert.Equal(t, ir.OpAdd, i.Input(1).Op())

	one, ok := g.LookupConstant(ir.TypeInt32, 1)
	require.True(t, ok)
	assert.Same(t, g.Entry(), one.Block(), "constants are interned into the entry block")

	for _, tt := range []struct{ n, want int64 }{{-3, 0}, {0, 0}, {1, 0}, {5, 10}} {
		res, err := interp.Eval(g, uint64(tt.n))
		require.NoError(t, err)
		assert.Equal(t, tt.want, int64(int32(res.Value)), "n=%d", tt.n)
	}
}

func TestLoadNormalizesName(t *testing.T) {
	g, err := Parse([]byte("name: \"  café \"\nblocks:\n  - name: b\n    insts:\n      - {op: ReturnVoid}\n"))
	require.NoError(t, err)
	assert.Equal(t, "café", g.Name)
}

func TestParseConstants(t *testing.T) {
	tests := []struct {
		typ   string
		value string
		want  uint64
	}{
		{"i8", "-1", math.MaxUint64},
		{"u8", "255", 255},
		{"u32", "0xff", 255},
		{"b", "1", 1},
		{"f64", "-0", math.Float64bits(math.Copysign(0, -1))},
		{"f64", "+Inf", math.Float64bits(math.Inf(1))},
		{"f32", "0.1", uint64(math.Float32bits(0.1))},
		{"f64", "nan(0x7ff8000000000001)", 0x7ff8_0000_0000_0001},
		{"f32", "nan(0x7fc00001)", 0x7fc0_0001},
	}
	for _, tt := range tests {
		t.Run(tt.typ+" "+tt.value, func(t *testing.T) {
			typ, err := ir.ParseType(tt.typ)
			require.NoError(t, err)
			bits, err := parseConst(typ, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, bits)
		})
	}
}

func TestParseConstantsRoundTripFormat(t *testing.T) {
	for _, c := range []struct {
		typ  ir.Type
		bits uint64
	}{
		{ir.TypeInt16, ir.Canonical(math.MaxUint64-5, ir.TypeInt16)},
		{ir.TypeUint64, math.MaxUint64},
		{ir.TypeFloat64, math.Float64bits(1e-300)},
		{ir.TypeFloat32, uint64(math.Float32bits(float32(math.Inf(-1))))},
		{ir.TypeFloat32, 0x7fa0_0000},
	} {
		bits, err := parseConst(c.typ, ir.FormatConst(c.typ, c.bits))
		require.NoError(t, err)
		assert.Equal(t, c.bits, bits, ir.FormatConst(c.typ, c.bits))
	}
}

func TestLoadErrors(t *testing.T) {
	ret := "    insts:\n      - {op: ReturnVoid}\n"
	tests := []struct {
		name string
		yaml string
		code string
	}{
		{"empty file", "", ErrCodeMissing},
		{"bad yaml", "name: [", ErrCodeSyntax},
		{"unknown field", "name: g\nblcoks: []\n", ErrCodeSyntax},
		{"no name", "blocks:\n  - name: b\n" + ret, ErrCodeMissing},
		{"no blocks", "name: g\n", ErrCodeMissing},
		{"duplicate block", "name: g\nblocks:\n  - name: b\n" + ret + "  - name: b\n" + ret, ErrCodeDuplicate},
		{"duplicate value", "name: g\nparams:\n  - {name: x, type: i32}\n  - {name: x, type: i32}\nblocks:\n  - name: b\n" + ret, ErrCodeDuplicate},
		{"bad param type", "name: g\nparams:\n  - {name: x, type: int}\nblocks:\n  - name: b\n" + ret, ErrCodeBadValue},
		{"unknown op", "name: g\nblocks:\n  - name: b\n    insts:\n      - {op: Jump}\n      - {op: ReturnVoid}\n", ErrCodeBadValue},
		{"unknown successor", "name: g\nblocks:\n  - name: b\n    succs: [nowhere]\n", ErrCodeUndefined},
		{"missing successor", "name: g\nblocks:\n  - name: b\n", ErrCodeShape},
		{"return with successors", "name: g\nblocks:\n  - name: a\n    insts:\n      - {op: ReturnVoid}\n    succs: [a]\n", ErrCodeShape},
		{"terminator not last", "name: g\nblocks:\n  - name: b\n    insts:\n      - {op: ReturnVoid}\n      - {op: ReturnVoid}\n", ErrCodeShape},
		{"edge into entry", "name: g\nblocks:\n  - name: a\n    succs: [a]\n", ErrCodeShape},
		{"undefined value", "name: g\nblocks:\n  - name: b\n    insts:\n      - {op: Return, type: i32, args: [x]}\n", ErrCodeUndefined},
		{"constant out of range", "name: g\nblocks:\n  - name: b\n    insts:\n      - {name: c, op: Constant, type: u8, value: \"256\"}\n      - {op: Return, type: u8, args: [c]}\n", ErrCodeBadValue},
		{"constant without type", "name: g\nblocks:\n  - name: b\n    insts:\n      - {name: c, op: Constant, value: \"1\"}\n" + "      - {op: ReturnVoid}\n", ErrCodeMissing},
		{"parameter in block", "name: g\nblocks:\n  - name: b\n    insts:\n      - {op: Parameter, type: i32}\n      - {op: ReturnVoid}\n", ErrCodeBadValue},
		{"compare without condition", "name: g\nparams:\n  - {name: x, type: i32}\nblocks:\n  - name: b\n    insts:\n      - {op: Compare, args: [x, x]}\n      - {op: ReturnVoid}\n", ErrCodeMissing},
		{"phi arity", "name: g\nparams:\n  - {name: x, type: i32}\nblocks:\n  - name: a\n    succs: [b]\n  - name: b\n    insts:\n      - {name: p, op: Phi, type: i32, args: [x, x]}\n      - {op: ReturnVoid}\n", ErrCodeShape},
		{"phi pred is not a predecessor", "name: g\nparams:\n  - {name: x, type: i32}\nblocks:\n  - name: a\n    succs: [b]\n  - name: b\n    insts:\n      - {name: p, op: Phi, type: i32, args: [x], preds: [b]}\n      - {op: ReturnVoid}\n", ErrCodeShape},
		{"bad register", "name: g\nparams:\n  - {name: x, type: i32}\nblocks:\n  - name: b\n    insts:\n      - {op: SaveState, args: [x], regs: [x0]}\n      - {op: ReturnVoid}\n", ErrCodeBadValue},
		{"register count", "name: g\nparams:\n  - {name: x, type: i32}\nblocks:\n  - name: b\n    insts:\n      - {op: SaveState, args: [x], regs: [r0, r1]}\n      - {op: ReturnVoid}\n", ErrCodeShape},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, IsLoadError(err))
			assert.Equal(t, tt.code, Code(err), err.Error())
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, ErrCodeRead, Code(err))
	assert.Contains(t, err.Error(), path)
}

func TestLoadErrorNamesFileAndPlace(t *testing.T) {
	err := &LoadError{Code: ErrCodeUndefined, Message: `unknown value "x"`, Path: "g.yaml", Where: "block b, inst 0"}
	assert.Equal(t, `g.yaml: block b, inst 0: F205: unknown value "x"`, err.Error())
	assert.Equal(t, "F203: graph name is required", (&LoadError{Code: ErrCodeMissing, Message: "graph name is required"}).Error())
}
