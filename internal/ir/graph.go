package ir

import (
	"fmt"
	"math"
	"slices"
)

// Graph is the IR of one method. It owns its blocks and instructions in
// ID-indexed arenas; a removed node leaves a nil slot behind.
//
// Every graph has an entry block, which holds constants and parameters, and
// an exit block with no instructions that returning blocks flow into.
type Graph struct {
	// Name identifies the method in dumps, logs and events.
	Name string

	blocks []*Block
	insts  []*Inst
	entry  *Block
	exit   *Block

	consts  map[constKey]*Inst
	classes map[uint64]*Inst
	nullPtr *Inst
	params  []*Inst

	root *Loop
}

type constKey struct {
	typ  Type
	bits uint64
}

// New returns an empty graph with entry and exit blocks.
func New(name string) *Graph {
	g := &Graph{
		Name:    name,
		consts:  make(map[constKey]*Inst),
		classes: make(map[uint64]*Inst),
	}
	g.entry = g.NewBlock()
	g.exit = g.NewBlock()
	return g
}

func (g *Graph) Entry() *Block { return g.entry }
func (g *Graph) Exit() *Block  { return g.exit }

// RootLoop returns the root of the loop tree computed by the last loop
// analysis, or nil.
func (g *Graph) RootLoop() *Loop     { return g.root }
func (g *Graph) SetRootLoop(l *Loop) { g.root = l }

// NewBlock creates an empty, unconnected block.
func (g *Graph) NewBlock() *Block {
	b := &Block{id: BlockID(len(g.blocks)), graph: g}
	g.blocks = append(g.blocks, b)
	return b
}

// Blocks returns the live blocks in ID order.
func (g *Graph) Blocks() []*Block {
	out := make([]*Block, 0, len(g.blocks))
	for _, b := range g.blocks {
		if b != nil {
			out = append(out, b)
		}
	}
	return out
}

// NumBlocks returns the number of live blocks.
func (g *Graph) NumBlocks() int {
	n := 0
	for _, b := range g.blocks {
		if b != nil {
			n++
		}
	}
	return n
}

// BlockByID returns the block with the given ID, or nil if it was removed.
func (g *Graph) BlockByID(id BlockID) *Block {
	if int(id) < 0 || int(id) >= len(g.blocks) {
		return nil
	}
	return g.blocks[id]
}

// InstByID returns the instruction with the given ID, or nil if it was
// removed.
func (g *Graph) InstByID(id InstID) *Inst {
	if int(id) < 0 || int(id) >= len(g.insts) {
		return nil
	}
	return g.insts[id]
}

// BlockIDBound returns one past the largest block ID handed out so far.
// Analyses size their per-block tables with it.
func (g *Graph) BlockIDBound() int { return len(g.blocks) }

// InstIDBound returns one past the largest instruction ID handed out so far.
func (g *Graph) InstIDBound() int { return len(g.insts) }

// NewInst creates an instruction that is not yet placed in a block.
func (g *Graph) NewInst(op Op, t Type, inputs ...*Inst) *Inst {
	if op == OpConstant || op == OpNullPtr || op == OpLoadImmediate {
		panic(fmt.Sprintf("ir: %s must be created through its interning helper", op))
	}
	i := g.alloc(op, t)
	for _, in := range inputs {
		i.AppendInput(in)
	}
	return i
}

// NewPhi creates an input-less phi of type t and appends it to b. The
// caller adds one input per predecessor of b.
func (g *Graph) NewPhi(b *Block, t Type) *Inst {
	phi := g.alloc(OpPhi, t)
	b.AppendInst(phi)
	return phi
}

func (g *Graph) alloc(op Op, t Type) *Inst {
	i := &Inst{id: InstID(len(g.insts)), op: op, typ: t}
	g.insts = append(g.insts, i)
	return i
}

func (g *Graph) forget(i *Inst) {
	switch i.op {
	case OpConstant:
		delete(g.consts, constKey{i.typ, i.Imm})
	case OpNullPtr:
		g.nullPtr = nil
	case OpLoadImmediate:
		delete(g.classes, i.Imm)
	}
	g.insts[i.id] = nil
}

// placeInEntry adds a value without inputs to the entry block, after the
// values already there and ahead of every other instruction, so that it
// is defined before any use a pass may give it.
func (g *Graph) placeInEntry(i *Inst) {
	for _, at := range g.entry.Insts() {
		if !at.op.IsConstLike() {
			g.entry.InsertBefore(i, at)
			return
		}
	}
	g.entry.AppendInst(i)
}

// FindOrCreateConstant returns the unique constant of type t with the given
// bits. Integer bits are canonicalized for t first; float32 constants keep
// only the low 32 bits.
func (g *Graph) FindOrCreateConstant(t Type, bits uint64) *Inst {
	switch {
	case t.IsInt():
		bits = Canonical(bits, t)
	case t == TypeFloat32:
		bits = uint64(uint32(bits))
	case t == TypeFloat64:
	default:
		panic(fmt.Sprintf("ir: no constants of type %s", t))
	}
	key := constKey{t, bits}
	if c, ok := g.consts[key]; ok {
		return c
	}
	c := g.alloc(OpConstant, t)
	c.Imm = bits
	g.consts[key] = c
	g.placeInEntry(c)
	return c
}

// LookupConstant returns the interned constant of type t with exactly the
// given bits, without creating one.
func (g *Graph) LookupConstant(t Type, bits uint64) (*Inst, bool) {
	c, ok := g.consts[constKey{t, bits}]
	return c, ok
}

// IntConst returns the constant v of integer type t.
func (g *Graph) IntConst(t Type, v int64) *Inst {
	return g.FindOrCreateConstant(t, uint64(v))
}

// BoolConst returns the bool constant for v.
func (g *Graph) BoolConst(v bool) *Inst {
	if v {
		return g.FindOrCreateConstant(TypeBool, 1)
	}
	return g.FindOrCreateConstant(TypeBool, 0)
}

// Float32Const returns the float32 constant with f's bit pattern.
func (g *Graph) Float32Const(f float32) *Inst {
	return g.FindOrCreateConstant(TypeFloat32, uint64(math.Float32bits(f)))
}

// Float64Const returns the float64 constant with f's bit pattern.
func (g *Graph) Float64Const(f float64) *Inst {
	return g.FindOrCreateConstant(TypeFloat64, math.Float64bits(f))
}

// NullPtr returns the graph's null reference.
func (g *Graph) NullPtr() *Inst {
	if g.nullPtr == nil {
		g.nullPtr = g.alloc(OpNullPtr, TypeRef)
		g.placeInEntry(g.nullPtr)
	}
	return g.nullPtr
}

// ClassHandle returns the resolved class reference with the given handle.
// Equal handles yield the same instruction.
func (g *Graph) ClassHandle(handle uint64) *Inst {
	if c, ok := g.classes[handle]; ok {
		return c
	}
	c := g.alloc(OpLoadImmediate, TypeRef)
	c.Imm = handle
	g.classes[handle] = c
	g.placeInEntry(c)
	return c
}

// AddParameter appends a new parameter of type t to the entry block.
func (g *Graph) AddParameter(t Type) *Inst {
	p := g.alloc(OpParameter, t)
	p.Imm = uint64(len(g.params))
	g.params = append(g.params, p)
	g.placeInEntry(p)
	return p
}

// Parameters returns the parameters in declaration order.
func (g *Graph) Parameters() []*Inst { return g.params }

// RemoveBlocks deletes a set of blocks together with their instructions
// and every edge touching them. Values defined in the set may only be used
// inside the set or by phis of blocks whose edge from the set is removed.
func (g *Graph) RemoveBlocks(blocks ...*Block) {
	for _, b := range blocks {
		for len(b.succs) > 0 {
			b.RemoveSucc(b.succs[0])
		}
		for len(b.preds) > 0 {
			b.preds[0].RemoveSucc(b)
		}
	}
	for _, b := range blocks {
		for _, i := range b.AllInsts() {
			i.clearInputs()
		}
	}
	for _, b := range blocks {
		for _, i := range b.AllInsts() {
			if len(i.users) != 0 {
				panic(fmt.Sprintf("ir: removing %s which is still used by %s", i, i.users[0]))
			}
			b.unlink(i)
			g.forget(i)
		}
		if b.loop != nil {
			b.loop.removeBlock(b)
		}
		g.blocks[b.id] = nil
		b.graph = nil
	}
}

// SplitEdge inserts an empty block on the edge from -> to and returns it.
// Phi inputs of to that flowed in from from now flow in from the new
// block.
func (g *Graph) SplitEdge(from, to *Block) *Block {
	n := from.SuccIndex(to)
	if n < 0 {
		panic(fmt.Sprintf("ir: %s is not a successor of %s", to, from))
	}
	mid := g.NewBlock()
	from.succs[n] = mid
	mid.preds = append(mid.preds, from)
	mid.succs = append(mid.succs, to)
	to.ReplacePred(from, mid)
	return mid
}

// MergeWithSuccessor folds the single successor of b into b. The successor
// must have b as its only predecessor; its phis are replaced by their only
// input.
func (g *Graph) MergeWithSuccessor(b *Block) {
	if len(b.succs) != 1 {
		panic(fmt.Sprintf("ir: %s has %d successors", b, len(b.succs)))
	}
	s := b.succs[0]
	if len(s.preds) != 1 || s == g.exit {
		panic(fmt.Sprintf("ir: cannot merge %s into %s", s, b))
	}
	for _, phi := range slices.Clone(s.phis) {
		phi.ReplaceUsers(phi.inputs[0])
		s.RemoveInst(phi)
	}
	for _, i := range s.insts {
		i.block = b
		b.insts = append(b.insts, i)
	}
	s.insts = nil

	b.succs = s.succs
	for _, succ := range s.succs {
		succ.ReplacePred(s, b)
	}
	s.succs = nil
	s.preds = nil
	if s.loop != nil {
		s.loop.removeBlock(s)
	}
	g.blocks[s.id] = nil
	s.graph = nil
}
