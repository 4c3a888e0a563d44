package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildDiamond returns max-like code: a compare in the entry block, two
// empty arms and a join with one phi.
func buildDiamond(t *testing.T) (*Builder, *Inst) {
	t.Helper()
	b := NewBuilder("max")
	x := b.Param(TypeInt32)
	y := b.Param(TypeInt32)
	then := b.NewBlock()
	els := b.NewBlock()
	join := b.NewBlock()
	c := b.Compare(CondGT, x, y)
	b.Branch(c, then, els)
	b.SetBlock(then).Goto(join)
	b.SetBlock(els).Goto(join)
	b.SetBlock(join)
	phi := b.Phi(TypeInt32, x, y)
	sum := b.Binary(OpAdd, TypeInt32, phi, b.Int(TypeInt32, 1))
	b.Return(sum)
	return b, phi
}

// buildCountedLoop returns
//
//	for i := 0; i < 10; i++ { sum += i }
//
// with the loop test in the latch and a guarding compare in the entry.
func buildCountedLoop(t *testing.T) (*Builder, map[string]*Inst) {
	t.Helper()
	b := NewBuilder("sum")
	zero := b.Int(TypeInt32, 0)
	ten := b.Int(TypeInt32, 10)
	header := b.NewBlock()
	exit := b.NewBlock()
	guard := b.Compare(CondLT, zero, ten)
	b.Branch(guard, header, exit)

	b.SetBlock(header)
	i := b.Phi(TypeInt32, zero)
	sum := b.Phi(TypeInt32, zero)
	next := b.Binary(OpAdd, TypeInt32, sum, i)
	inc := b.Binary(OpAdd, TypeInt32, i, b.Int(TypeInt32, 1))
	test := b.Compare(CondLT, inc, ten)
	b.Branch(test, header, exit)
	i.AppendInput(inc)
	sum.AppendInput(next)

	b.SetBlock(exit)
	res := b.Phi(TypeInt32, zero, next)
	b.Return(res)
	return b, map[string]*Inst{"i": i, "sum": sum, "next": next, "inc": inc, "test": test, "res": res}
}

func TestConstantsAreInterned(t *testing.T) {
	g := New("consts")

	assert.Same(t, g.IntConst(TypeInt32, -1), g.FindOrCreateConstant(TypeInt32, 0xffff_ffff))
	assert.Same(t, g.IntConst(TypeUint8, 300), g.IntConst(TypeUint8, 44))
	assert.Same(t, g.BoolConst(true), g.IntConst(TypeBool, 7))
	assert.NotSame(t, g.IntConst(TypeInt32, 1), g.IntConst(TypeInt64, 1))
	assert.Same(t, g.Float32Const(1.5), g.FindOrCreateConstant(TypeFloat32, 0xdead_0000_0000_0000|uint64(math.Float32bits(1.5))))
	assert.NotSame(t, g.Float64Const(0), g.Float64Const(math.Copysign(0, -1)))
	assert.Same(t, g.NullPtr(), g.NullPtr())
	assert.Same(t, g.ClassHandle(7), g.ClassHandle(7))
	assert.NotSame(t, g.ClassHandle(7), g.ClassHandle(8))

	c := g.IntConst(TypeInt16, -2)
	assert.Equal(t, int64(-2), c.Int64())
	assert.Same(t, g.Entry(), c.Block())
	assert.True(t, c.IsConst())
}

func TestConstantsStayAheadOfEntryBranch(t *testing.T) {
	b, _ := buildDiamond(t)
	g := b.Graph()
	c := g.IntConst(TypeInt64, 99)

	last := g.Entry().Last()
	require.NotNil(t, last)
	assert.Equal(t, OpIfImm, last.Op())
	assert.Contains(t, g.Entry().Insts(), c)
}

func TestIsZeroConst(t *testing.T) {
	g := New("zero")
	assert.True(t, g.IntConst(TypeInt32, 0).IsZeroConst())
	assert.True(t, g.Float64Const(math.Copysign(0, -1)).IsZeroConst())
	assert.True(t, g.NullPtr().IsZeroConst())
	assert.False(t, g.Float32Const(1).IsZeroConst())
	assert.False(t, g.AddParameter(TypeInt32).IsZeroConst())
}

func TestReplaceUsersHandlesRepeatedUses(t *testing.T) {
	b := NewBuilder("square")
	x := b.Param(TypeInt32)
	y := b.Param(TypeInt32)
	sq := b.Binary(OpMul, TypeInt32, x, x)
	b.Return(sq)

	require.Len(t, x.Users(), 2)
	x.ReplaceUsers(y)

	assert.Empty(t, x.Users())
	assert.Len(t, y.Users(), 2)
	assert.Same(t, y, sq.Input(0))
	assert.Same(t, y, sq.Input(1))
}

func TestSetInputUpdatesUsers(t *testing.T) {
	b := NewBuilder("set")
	x := b.Param(TypeInt32)
	y := b.Param(TypeInt32)
	neg := b.Unary(OpNeg, TypeInt32, x)

	neg.SetInput(0, y)
	assert.Empty(t, x.Users())
	assert.Equal(t, []*Inst{neg}, y.Users())
}

func TestRemoveInstRequiresNoUsers(t *testing.T) {
	b := NewBuilder("remove")
	x := b.Param(TypeInt32)
	neg := b.Unary(OpNeg, TypeInt32, x)
	b.Return(neg)

	assert.Panics(t, func() { b.Current().RemoveInst(neg) })
}

func TestReplaceSuccMaintainsPhis(t *testing.T) {
	b, phi := buildDiamond(t)
	g := b.Graph()
	join := phi.Block()
	then := join.Pred(0)
	els := join.Pred(1)

	fresh := g.NewBlock()
	then.ReplaceSucc(join, fresh)

	assert.Equal(t, []*Block{els}, join.Preds())
	assert.Equal(t, 1, phi.NumInputs())
	assert.Equal(t, []*Block{then}, fresh.Preds())
	assert.Equal(t, []*Block{fresh}, then.Succs())
}

func TestMergeWithSuccessor(t *testing.T) {
	b := NewBuilder("chain")
	x := b.Param(TypeInt32)
	next := b.NewBlock()
	b.Goto(next)
	b.SetBlock(next)
	phi := b.Phi(TypeInt32, x)
	neg := b.Unary(OpNeg, TypeInt32, phi)
	ret := b.Return(neg)
	g := b.Graph()

	g.MergeWithSuccessor(g.Entry())

	assert.Nil(t, g.BlockByID(next.ID()))
	assert.Same(t, g.Entry(), neg.Block())
	assert.Same(t, x, neg.Input(0))
	assert.Same(t, ret, g.Entry().Last())
	assert.Equal(t, []*Block{g.Exit()}, g.Entry().Succs())
	assert.Equal(t, []*Block{g.Entry()}, g.Exit().Preds())
	assert.Nil(t, g.InstByID(phi.ID()))
}

func TestSplitEdgeKeepsPhiInputs(t *testing.T) {
	b, phi := buildDiamond(t)
	join := phi.Block()
	then := join.Pred(0)

	mid := b.Graph().SplitEdge(then, join)

	assert.Equal(t, []*Block{mid}, then.Succs())
	assert.Equal(t, []*Block{then}, mid.Preds())
	assert.Equal(t, []*Block{join}, mid.Succs())
	assert.Same(t, mid, join.Pred(0))
	assert.Same(t, phi.Input(0), phi.PhiInput(mid))
	assert.Panics(t, func() { b.Graph().SplitEdge(then, join) })
}

func TestRemoveBlocksDropsExitPhiInputs(t *testing.T) {
	b, vals := buildCountedLoop(t)
	g := b.Graph()
	header := vals["i"].Block()
	res := vals["res"]

	g.RemoveBlocks(header)

	assert.Equal(t, 1, res.NumInputs())
	assert.Equal(t, 1, res.Block().NumPreds())
	assert.Nil(t, g.BlockByID(header.ID()))
	assert.Nil(t, g.InstByID(vals["next"].ID()))
	for _, c := range g.Entry().Insts() {
		for _, u := range c.Users() {
			assert.NotNil(t, u.Block(), "%s still used by a removed instruction", c)
		}
	}
}

func TestBlockIDsAreNotReused(t *testing.T) {
	g := New("ids")
	a := g.NewBlock()
	g.RemoveBlocks(a)
	c := g.NewBlock()
	assert.NotEqual(t, a.ID(), c.ID())
	assert.Equal(t, 3, g.NumBlocks())
}
