package analysis

import (
	"slices"

	"github.com/roach88/ssaopt/internal/ir"
)

// DomTree holds the reverse post-order and immediate dominators of the
// blocks reachable from the entry block. It is a snapshot: any CFG edit
// invalidates it.
type DomTree struct {
	rpo   []*ir.Block
	order []int // RPO index by block ID, -1 when unreachable
	idom  []*ir.Block
}

// ComputeDominators builds the dominator tree of g with the iterative
// algorithm of Cooper, Harvey and Kennedy.
func ComputeDominators(g *ir.Graph) *DomTree {
	d := &DomTree{
		order: make([]int, g.BlockIDBound()),
		idom:  make([]*ir.Block, g.BlockIDBound()),
	}
	for n := range d.order {
		d.order[n] = -1
	}
	d.rpo = ReversePostOrder(g)
	for n, b := range d.rpo {
		d.order[b.ID()] = n
	}

	entry := g.Entry()
	d.idom[entry.ID()] = entry
	for changed := true; changed; {
		changed = false
		for _, b := range d.rpo[1:] {
			var idom *ir.Block
			for _, p := range b.Preds() {
				if d.order[p.ID()] < 0 || d.idom[p.ID()] == nil {
					continue
				}
				if idom == nil {
					idom = p
					continue
				}
				idom = d.intersect(p, idom)
			}
			if d.idom[b.ID()] != idom {
				d.idom[b.ID()] = idom
				changed = true
			}
		}
	}
	return d
}

func (d *DomTree) intersect(a, b *ir.Block) *ir.Block {
	for a != b {
		for d.order[a.ID()] > d.order[b.ID()] {
			a = d.idom[a.ID()]
		}
		for d.order[b.ID()] > d.order[a.ID()] {
			b = d.idom[b.ID()]
		}
	}
	return a
}

// RPO returns the reachable blocks in reverse post-order.
func (d *DomTree) RPO() []*ir.Block { return d.rpo }

// Reachable reports whether b can be reached from the entry block.
func (d *DomTree) Reachable(b *ir.Block) bool {
	return int(b.ID()) < len(d.order) && d.order[b.ID()] >= 0
}

// IDom returns the immediate dominator of b. The entry block and
// unreachable blocks have none.
func (d *DomTree) IDom(b *ir.Block) *ir.Block {
	if !d.Reachable(b) || d.order[b.ID()] == 0 {
		return nil
	}
	return d.idom[b.ID()]
}

// Dominates reports whether every path from the entry to b passes
// through a. A block dominates itself.
func (d *DomTree) Dominates(a, b *ir.Block) bool {
	if !d.Reachable(a) || !d.Reachable(b) {
		return false
	}
	for {
		if a == b {
			return true
		}
		next := d.IDom(b)
		if next == nil {
			return false
		}
		b = next
	}
}

// ReversePostOrder returns the blocks reachable from the entry block in
// reverse post-order of a depth-first walk that visits successors in
// order.
func ReversePostOrder(g *ir.Graph) []*ir.Block {
	type frame struct {
		b    *ir.Block
		next int
	}
	visited := make([]bool, g.BlockIDBound())
	var post []*ir.Block
	stack := []frame{{b: g.Entry()}}
	visited[g.Entry().ID()] = true
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < top.b.NumSuccs() {
			s := top.b.Succ(top.next)
			top.next++
			if !visited[s.ID()] {
				visited[s.ID()] = true
				stack = append(stack, frame{b: s})
			}
			continue
		}
		post = append(post, top.b)
		stack = stack[:len(stack)-1]
	}
	slices.Reverse(post)
	return post
}
