package ir

import "maps"

// CloneOptions controls CloneBlocks.
type CloneOptions struct {
	// Header, if set, is a block of the cloned set whose phis are not
	// copied. Edges from the set into Header keep targeting the original
	// Header, which gains a phi input per new edge.
	Header *Block
	// Values pre-seeds the value remap. Uses of a key inside the copy are
	// replaced by the mapped value; header phis are usually mapped here.
	Values map[*Inst]*Inst
	// Skip filters instructions out of the copy. Skipped instructions must
	// have no users inside the set.
	Skip func(*Inst) bool
}

// CloneMap records the correspondence between original and copied nodes.
type CloneMap struct {
	order  []*Block
	blocks map[*Block]*Block
	values map[*Inst]*Inst
}

// Block returns the copy of b, or b itself when it was not copied.
func (m *CloneMap) Block(b *Block) *Block {
	if c, ok := m.blocks[b]; ok {
		return c
	}
	return b
}

// Value returns the copy of v, or v itself when it was not copied.
func (m *CloneMap) Value(v *Inst) *Inst {
	if c, ok := m.values[v]; ok {
		return c
	}
	return v
}

// Blocks returns the copies in the order the originals were given.
func (m *CloneMap) Blocks() []*Block {
	out := make([]*Block, len(m.order))
	for n, b := range m.order {
		out[n] = m.blocks[b]
	}
	return out
}

// CloneBlocks copies a set of blocks into the same graph.
//
// Edges between blocks of the set are reproduced between the copies. Edges
// leaving the set keep their original target, which gains a predecessor
// and, in each of its phis, the remapped value that flowed along the
// original edge. Edges entering the set from outside are not copied.
func CloneBlocks(blocks []*Block, opts CloneOptions) *CloneMap {
	if len(blocks) == 0 {
		return &CloneMap{blocks: map[*Block]*Block{}, values: map[*Inst]*Inst{}}
	}
	g := blocks[0].graph
	m := &CloneMap{
		order:  blocks,
		blocks: make(map[*Block]*Block, len(blocks)),
		values: maps.Clone(opts.Values),
	}
	if m.values == nil {
		m.values = make(map[*Inst]*Inst)
	}
	inSet := make(map[*Block]bool, len(blocks))
	for _, b := range blocks {
		inSet[b] = true
	}

	type pair struct{ orig, copy *Inst }
	var copied []pair
	for _, b := range blocks {
		nb := g.NewBlock()
		m.blocks[b] = nb
		for _, i := range b.AllInsts() {
			if b == opts.Header && i.op == OpPhi {
				continue
			}
			if opts.Skip != nil && opts.Skip(i) {
				continue
			}
			c := g.alloc(i.op, i.typ)
			c.CC, c.Imm, c.SrcType, c.Fcmpg, c.Inlined = i.CC, i.Imm, i.SrcType, i.Fcmpg, i.Inlined
			nb.AppendInst(c)
			m.values[i] = c
			copied = append(copied, pair{i, c})
		}
	}

	for _, p := range copied {
		switch {
		case p.orig.op == OpPhi:
			b := p.orig.block
			for n, pred := range b.preds {
				if inSet[pred] {
					p.copy.AppendInput(m.Value(p.orig.inputs[n]))
				}
			}
		case p.orig.IsSaveState():
			for n, in := range p.orig.inputs {
				p.copy.AppendSaveStateInput(m.Value(in), p.orig.vregs[n])
			}
		default:
			for _, in := range p.orig.inputs {
				p.copy.AppendInput(m.Value(in))
			}
		}
	}

	for _, b := range blocks {
		nb := m.blocks[b]
		for _, s := range b.succs {
			if inSet[s] && s != opts.Header {
				nb.succs = append(nb.succs, m.blocks[s])
				continue
			}
			nb.succs = append(nb.succs, s)
			for _, phi := range s.phis {
				phi.AppendInput(m.Value(phi.PhiInput(b)))
			}
			s.preds = append(s.preds, nb)
		}
	}
	for _, s := range blocks {
		if s == opts.Header {
			continue
		}
		ns := m.blocks[s]
		for _, p := range s.preds {
			if inSet[p] {
				ns.preds = append(ns.preds, m.blocks[p])
			}
		}
	}
	return m
}

// CloneGraph returns a deep copy of g with identical block and instruction
// IDs. The loop tree is not copied.
func CloneGraph(g *Graph) *Graph {
	ng := &Graph{
		Name:    g.Name,
		blocks:  make([]*Block, len(g.blocks)),
		insts:   make([]*Inst, len(g.insts)),
		consts:  make(map[constKey]*Inst, len(g.consts)),
		classes: make(map[uint64]*Inst, len(g.classes)),
	}
	for id, b := range g.blocks {
		if b != nil {
			ng.blocks[id] = &Block{id: b.id, graph: ng}
		}
	}
	for id, i := range g.insts {
		if i != nil {
			ng.insts[id] = &Inst{
				id: i.id, op: i.op, typ: i.typ,
				CC: i.CC, Imm: i.Imm, SrcType: i.SrcType, Fcmpg: i.Fcmpg, Inlined: i.Inlined,
			}
		}
	}
	blk := func(b *Block) *Block { return ng.blocks[b.id] }
	val := func(i *Inst) *Inst { return ng.insts[i.id] }
	mapBlocks := func(bs []*Block) []*Block {
		out := make([]*Block, len(bs))
		for n, b := range bs {
			out[n] = blk(b)
		}
		return out
	}
	mapInsts := func(is []*Inst) []*Inst {
		out := make([]*Inst, len(is))
		for n, i := range is {
			out[n] = val(i)
		}
		return out
	}

	for _, b := range g.blocks {
		if b == nil {
			continue
		}
		nb := blk(b)
		nb.preds = mapBlocks(b.preds)
		nb.succs = mapBlocks(b.succs)
		nb.phis = mapInsts(b.phis)
		nb.insts = mapInsts(b.insts)
		for _, i := range nb.phis {
			i.block = nb
		}
		for _, i := range nb.insts {
			i.block = nb
		}
	}
	for _, i := range g.insts {
		if i == nil {
			continue
		}
		ni := val(i)
		ni.inputs = mapInsts(i.inputs)
		ni.users = mapInsts(i.users)
		if i.vregs != nil {
			ni.vregs = append([]VReg(nil), i.vregs...)
		}
	}

	ng.entry = blk(g.entry)
	ng.exit = blk(g.exit)
	ng.params = mapInsts(g.params)
	for k, c := range g.consts {
		ng.consts[k] = val(c)
	}
	for k, c := range g.classes {
		ng.classes[k] = val(c)
	}
	if g.nullPtr != nil {
		ng.nullPtr = val(g.nullPtr)
	}
	return ng
}
