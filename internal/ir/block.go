package ir

import (
	"fmt"
	"slices"
)

// BlockID identifies a basic block within its graph. IDs are never reused.
type BlockID int

// Block is a basic block. Phis are kept apart from the ordinary
// instruction list so they always come first.
//
// A block whose last instruction is If or IfImm has exactly two successors,
// the true target first. Every other block has at most one successor, which
// it jumps to implicitly.
type Block struct {
	id    BlockID
	graph *Graph
	preds []*Block
	succs []*Block
	phis  []*Inst
	insts []*Inst
	loop  *Loop
}

func (b *Block) ID() BlockID    { return b.id }
func (b *Block) Graph() *Graph  { return b.graph }
func (b *Block) String() string { return fmt.Sprintf("bb%d", b.id) }

func (b *Block) Preds() []*Block   { return b.preds }
func (b *Block) Succs() []*Block   { return b.succs }
func (b *Block) Pred(n int) *Block { return b.preds[n] }
func (b *Block) Succ(n int) *Block { return b.succs[n] }
func (b *Block) NumPreds() int     { return len(b.preds) }
func (b *Block) NumSuccs() int     { return len(b.succs) }

// TrueSucc returns the successor taken when the block's condition holds.
func (b *Block) TrueSucc() *Block { return b.succs[0] }

// FalseSucc returns the successor taken when the block's condition fails.
func (b *Block) FalseSucc() *Block { return b.succs[1] }

// PredIndex returns the position of p among b's predecessors, or -1.
func (b *Block) PredIndex(p *Block) int { return slices.Index(b.preds, p) }

// SuccIndex returns the position of s among b's successors, or -1.
func (b *Block) SuccIndex(s *Block) int { return slices.Index(b.succs, s) }

// Phis returns the block's phis. The slice is owned by the block.
func (b *Block) Phis() []*Inst { return b.phis }

// Insts returns the non-phi instructions in order. The slice is owned by
// the block.
func (b *Block) Insts() []*Inst { return b.insts }

// AllInsts returns a fresh slice of phis followed by the other instructions.
func (b *Block) AllInsts() []*Inst {
	all := make([]*Inst, 0, len(b.phis)+len(b.insts))
	all = append(all, b.phis...)
	return append(all, b.insts...)
}

// Last returns the last non-phi instruction, or nil.
func (b *Block) Last() *Inst {
	if len(b.insts) == 0 {
		return nil
	}
	return b.insts[len(b.insts)-1]
}

// EndsWithIf reports whether b ends in a two-way branch.
func (b *Block) EndsWithIf() bool {
	last := b.Last()
	return last != nil && (last.op == OpIf || last.op == OpIfImm)
}

func (b *Block) IsEmpty() bool { return len(b.phis) == 0 && len(b.insts) == 0 }

func (b *Block) IsEntry() bool { return b == b.graph.entry }
func (b *Block) IsExit() bool  { return b == b.graph.exit }

// Loop returns the innermost loop containing b, as last computed by loop
// analysis.
func (b *Block) Loop() *Loop     { return b.loop }
func (b *Block) SetLoop(l *Loop) { b.loop = l }

// IsLoopHeader reports whether b heads a non-root loop.
func (b *Block) IsLoopHeader() bool {
	return b.loop != nil && !b.loop.Root && b.loop.Header == b
}

// AppendInst adds i at the end of the block, or at the end of the phi list
// for phis.
func (b *Block) AppendInst(i *Inst) {
	b.attach(i)
	if i.op == OpPhi {
		b.phis = append(b.phis, i)
		return
	}
	b.insts = append(b.insts, i)
}

// PrependInst adds i at the start of the non-phi instructions.
func (b *Block) PrependInst(i *Inst) {
	b.attach(i)
	b.insts = slices.Insert(b.insts, 0, i)
}

// InsertBefore adds i immediately before pos, which must be a non-phi
// instruction of b.
func (b *Block) InsertBefore(i, pos *Inst) {
	n := slices.Index(b.insts, pos)
	if n < 0 {
		panic(fmt.Sprintf("ir: %s is not in %s", pos, b))
	}
	b.attach(i)
	b.insts = slices.Insert(b.insts, n, i)
}

// InsertAfter adds i immediately after pos, which must be a non-phi
// instruction of b.
func (b *Block) InsertAfter(i, pos *Inst) {
	n := slices.Index(b.insts, pos)
	if n < 0 {
		panic(fmt.Sprintf("ir: %s is not in %s", pos, b))
	}
	b.attach(i)
	b.insts = slices.Insert(b.insts, n+1, i)
}

func (b *Block) attach(i *Inst) {
	if i.block != nil {
		panic(fmt.Sprintf("ir: %s already belongs to %s", i, i.block))
	}
	if i.op == OpPhi && len(i.inputs) > len(b.preds) {
		panic(fmt.Sprintf("ir: phi %s has %d inputs, %s has %d preds", i, len(i.inputs), b, len(b.preds)))
	}
	i.block = b
}

// RemoveInst detaches i from its block and from its inputs and frees its
// ID. i must have no users.
func (b *Block) RemoveInst(i *Inst) {
	if i.block != b {
		panic(fmt.Sprintf("ir: %s is not in %s", i, b))
	}
	if len(i.users) != 0 {
		panic(fmt.Sprintf("ir: removing %s which still has %d users", i, len(i.users)))
	}
	b.unlink(i)
	i.clearInputs()
	b.graph.forget(i)
}

// unlink drops i from the instruction lists without touching its edges.
func (b *Block) unlink(i *Inst) {
	list := &b.insts
	if i.op == OpPhi {
		list = &b.phis
	}
	n := slices.Index(*list, i)
	if n < 0 {
		panic(fmt.Sprintf("ir: %s is not in %s", i, b))
	}
	*list = slices.Delete(*list, n, n+1)
	i.block = nil
}

// AddSucc appends an edge b -> s. Phis in s must be given their new input
// by the caller.
func (b *Block) AddSucc(s *Block) {
	b.succs = append(b.succs, s)
	s.preds = append(s.preds, b)
}

// RemoveSucc deletes the edge b -> s together with the matching phi inputs
// in s.
func (b *Block) RemoveSucc(s *Block) {
	n := b.SuccIndex(s)
	if n < 0 {
		panic(fmt.Sprintf("ir: %s is not a successor of %s", s, b))
	}
	b.succs = slices.Delete(b.succs, n, n+1)
	s.removePred(b)
}

// ReplaceSucc retargets the edge b -> old to b -> to, keeping the
// successor position. The phi inputs of old for this edge are dropped; to
// gains b as its last predecessor and its phis must be extended by the
// caller.
func (b *Block) ReplaceSucc(old, to *Block) {
	n := b.SuccIndex(old)
	if n < 0 {
		panic(fmt.Sprintf("ir: %s is not a successor of %s", old, b))
	}
	b.succs[n] = to
	old.removePred(b)
	to.preds = append(to.preds, b)
}

// ReplacePred swaps predecessor old for to in place. Phi inputs keep
// their position, so the value that used to flow from old now flows from
// to. The caller is responsible for the successor side of both edges.
func (b *Block) ReplacePred(old, to *Block) {
	n := b.PredIndex(old)
	if n < 0 {
		panic(fmt.Sprintf("ir: %s is not a predecessor of %s", old, b))
	}
	b.preds[n] = to
}

// SwapSuccs exchanges the true and false successors.
func (b *Block) SwapSuccs() {
	b.succs[0], b.succs[1] = b.succs[1], b.succs[0]
}

func (b *Block) removePred(p *Block) {
	n := b.PredIndex(p)
	if n < 0 {
		panic(fmt.Sprintf("ir: %s is not a predecessor of %s", p, b))
	}
	b.preds = slices.Delete(b.preds, n, n+1)
	for _, phi := range b.phis {
		phi.RemoveInput(n)
	}
}
