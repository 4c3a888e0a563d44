package irfile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ssaopt/internal/analysis"
	"github.com/roach88/ssaopt/internal/interp"
	"github.com/roach88/ssaopt/internal/ir"
	"github.com/roach88/ssaopt/internal/testutil"
)

// buildMixed returns a graph using every field of the file format.
func buildMixed() *ir.Graph {
	b := ir.NewBuilder("mixed")
	x := b.Param(ir.TypeInt64)
	nan := b.Bits(ir.TypeFloat64, 0x7ff8_0000_0000_0001)
	cls := b.Class(42)
	ss := b.SaveState(x, cls)
	ss.AppendSaveStateInput(cls, ir.VRegBridge)
	obj := b.NewObject(42, ss)
	b.NullCheck(obj, ss)
	call := b.Call(ir.TypeInt32, 7, ss, b.Cast(ir.TypeInt32, x))
	call.Inlined = true
	f := b.Cast(ir.TypeFloat64, x)
	cmp := b.Cmp(f, nan, true)
	b.Return(b.Binary(ir.OpAdd, ir.TypeInt32, cmp, call))
	return b.Graph()
}

func TestEncodeFields(t *testing.T) {
	f := Encode(buildMixed())

	assert.Equal(t, "mixed", f.Name)
	assert.Equal(t, []Param{{Name: "p0", Type: "i64"}}, f.Params)
	require.Len(t, f.Blocks, 1)
	insts := f.Blocks[0].Insts

	assert.Equal(t, Inst{Name: "v0", Op: "Constant", Type: "f64", Value: "nan(0x7ff8000000000001)"}, insts[0])
	assert.Equal(t, Inst{Name: "v1", Op: "LoadImmediate", Class: 42}, insts[1])
	assert.Equal(t, Inst{Name: "v2", Op: "SaveState", Args: []string{"p0", "v1", "v1"}, Regs: []string{"r0", "r1", "bridge"}}, insts[2])
	assert.Equal(t, Inst{Name: "v3", Op: "NewObject", Class: 42, Args: []string{"v2"}}, insts[3])
	assert.Equal(t, Inst{Op: "NullCheck", Args: []string{"v3", "v2"}}, insts[4])
	assert.Equal(t, Inst{Name: "v4", Op: "Cast", Type: "i32", Args: []string{"p0"}}, insts[5])
	assert.Equal(t, Inst{Name: "v5", Op: "CallStatic", Type: "i32", Callee: 7, Inlined: true, Args: []string{"v4", "v2"}}, insts[6])
	assert.Equal(t, "Cmp", insts[8].Op)
	assert.True(t, insts[8].Fcmpg)
	assert.Empty(t, f.Blocks[0].Succs, "returning blocks flow into the implicit exit")
}

func TestEncodeNamesOperandTypeOnlyWhenItDiffers(t *testing.T) {
	b := ir.NewBuilder("from")
	x := b.Param(ir.TypeInt32)
	c := b.Compare(ir.CondLT, x, b.Int(ir.TypeInt32, 3))
	c.SrcType = ir.TypeUint32
	d := b.Compare(ir.CondLT, x, b.Int(ir.TypeInt32, 3))
	b.Return(b.Binary(ir.OpAnd, ir.TypeBool, c, d))

	insts := Encode(b.Graph()).Blocks[0].Insts
	assert.Equal(t, "u32", insts[1].From)
	assert.Empty(t, insts[2].From)
}

func TestRoundTrip(t *testing.T) {
	graphs := map[string]*ir.Graph{
		"mixed":     buildMixed(),
		"sum":       testutil.NewSumLoop("sum", testutil.LoopSpec{TestParam: true}).Graph,
		"safepoint": testutil.NewSumLoop("safepoint", testutil.LoopSpec{SafePoint: true, SplitLatch: true}).Graph,
		"call":      testutil.NewSumLoop("call", testutil.LoopSpec{Call: true, OverflowCheck: true}).Graph,
	}
	for name, g := range graphs {
		t.Run(name, func(t *testing.T) {
			data, err := Marshal(g)
			require.NoError(t, err)
			loaded, err := Parse(data)
			require.NoError(t, err, string(data))
			require.NoError(t, analysis.Check(loaded))

			again, err := Marshal(loaded)
			require.NoError(t, err)
			assert.Equal(t, string(data), string(again))

			assert.Equal(t, g.NumBlocks(), loaded.NumBlocks())
			assert.Equal(t, len(g.Parameters()), len(loaded.Parameters()))
		})
	}
}

func TestRoundTripKeepsBehavior(t *testing.T) {
	g := testutil.NewSumLoop("sum", testutil.LoopSpec{TestParam: true}).Graph
	data, err := Marshal(g)
	require.NoError(t, err)
	loaded, err := Parse(data)
	require.NoError(t, err)

	for _, n := range []int64{-1, 0, 1, 7, 10} {
		want, err := interp.Eval(g, uint64(n))
		require.NoError(t, err)
		got, err := interp.Eval(loaded, uint64(n))
		require.NoError(t, err)
		assert.Equal(t, want.Value, got.Value, "n=%d", n)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "max.yaml")
	src, err := Load(filepath.Join("testdata", "max.yaml"))
	require.NoError(t, err)

	require.NoError(t, Save(path, src))
	g, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ir.Dump(src), ir.Dump(g))
}

func TestSaveToMissingDirectory(t *testing.T) {
	err := Save(filepath.Join(t.TempDir(), "no", "such", "dir.yaml"), buildMixed())
	require.Error(t, err)
	assert.Equal(t, ErrCodeWrite, Code(err))
}
