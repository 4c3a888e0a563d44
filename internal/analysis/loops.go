package analysis

import (
	"slices"

	"github.com/roach88/ssaopt/internal/ir"
)

// AnalyzeLoops rebuilds the loop tree of g, stores it on the graph and on
// every reachable block, and returns the root loop.
//
// Loops are discovered from depth-first back edges. A loop whose header
// does not dominate one of its back edges is marked Irreducible; a loop
// with no edge leaving it is marked Infinite. Back edges into the same
// header share one loop.
func AnalyzeLoops(g *ir.Graph) *ir.Loop {
	dom := ComputeDominators(g)
	root := &ir.Loop{Root: true}
	for _, b := range g.Blocks() {
		b.SetLoop(nil)
	}

	byHeader := make(map[*ir.Block]*ir.Loop)
	var loops []*ir.Loop
	for _, edge := range dfsBackEdges(g) {
		src, header := edge[0], edge[1]
		l, ok := byHeader[header]
		if !ok {
			l = &ir.Loop{Header: header}
			byHeader[header] = l
			loops = append(loops, l)
		}
		l.BackEdges = append(l.BackEdges, src)
		if !dom.Dominates(header, src) {
			l.Irreducible = true
		}
	}

	rpoIndex := make(map[*ir.Block]int, len(dom.RPO()))
	for n, b := range dom.RPO() {
		rpoIndex[b] = n
	}
	slices.SortFunc(loops, func(a, b *ir.Loop) int { return rpoIndex[a.Header] - rpoIndex[b.Header] })

	members := make(map[*ir.Loop]map[*ir.Block]bool, len(loops))
	for n, l := range loops {
		l.ID = n + 1
		members[l] = collectLoopBlocks(l)
		l.Blocks = l.Blocks[:0]
		for _, b := range dom.RPO() {
			if members[l][b] {
				l.Blocks = append(l.Blocks, b)
			}
		}
	}

	// Outer loops are assigned first so that inner loops override the
	// innermost-loop pointer of their blocks.
	bySize := slices.Clone(loops)
	slices.SortStableFunc(bySize, func(a, b *ir.Loop) int { return len(b.Blocks) - len(a.Blocks) })
	for _, l := range bySize {
		outer := l.Header.Loop()
		if outer == nil {
			outer = root
		}
		l.Outer = outer
		outer.Inner = append(outer.Inner, l)
		for _, b := range l.Blocks {
			b.SetLoop(l)
		}
	}
	for _, l := range loops {
		slices.SortFunc(l.Inner, func(a, b *ir.Loop) int { return a.ID - b.ID })
	}
	slices.SortFunc(root.Inner, func(a, b *ir.Loop) int { return a.ID - b.ID })

	for _, b := range dom.RPO() {
		if b.Loop() == nil {
			b.SetLoop(root)
		}
	}
	root.Blocks = slices.Clone(dom.RPO())

	for _, l := range loops {
		l.PreHeader = findPreHeader(l, members[l])
		l.Infinite = !hasExit(l, members[l])
	}
	g.SetRootLoop(root)
	return root
}

// dfsBackEdges returns the edges (src, dst) where dst is on the
// depth-first stack when src is visited.
func dfsBackEdges(g *ir.Graph) [][2]*ir.Block {
	const (
		white = iota
		grey
		black
	)
	type frame struct {
		b    *ir.Block
		next int
	}
	color := make([]int, g.BlockIDBound())
	var edges [][2]*ir.Block
	stack := []frame{{b: g.Entry()}}
	color[g.Entry().ID()] = grey
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < top.b.NumSuccs() {
			s := top.b.Succ(top.next)
			top.next++
			switch color[s.ID()] {
			case white:
				color[s.ID()] = grey
				stack = append(stack, frame{b: s})
			case grey:
				edges = append(edges, [2]*ir.Block{top.b, s})
			}
			continue
		}
		color[top.b.ID()] = black
		stack = stack[:len(stack)-1]
	}
	return edges
}

// collectLoopBlocks returns the blocks that reach a back edge without
// passing through the header and are reachable from the header.
func collectLoopBlocks(l *ir.Loop) map[*ir.Block]bool {
	reachesLatch := map[*ir.Block]bool{l.Header: true}
	work := slices.Clone(l.BackEdges)
	for len(work) > 0 {
		b := work[len(work)-1]
		work = work[:len(work)-1]
		if reachesLatch[b] {
			continue
		}
		reachesLatch[b] = true
		work = append(work, b.Preds()...)
	}

	fromHeader := map[*ir.Block]bool{l.Header: true}
	work = []*ir.Block{l.Header}
	for len(work) > 0 {
		b := work[len(work)-1]
		work = work[:len(work)-1]
		for _, s := range b.Succs() {
			if !fromHeader[s] {
				fromHeader[s] = true
				work = append(work, s)
			}
		}
	}

	blocks := make(map[*ir.Block]bool)
	for b := range reachesLatch {
		if fromHeader[b] {
			blocks[b] = true
		}
	}
	return blocks
}

func findPreHeader(l *ir.Loop, members map[*ir.Block]bool) *ir.Block {
	var pre *ir.Block
	for _, p := range l.Header.Preds() {
		if members[p] {
			continue
		}
		if pre != nil {
			return nil
		}
		pre = p
	}
	return pre
}

func hasExit(l *ir.Loop, members map[*ir.Block]bool) bool {
	for _, b := range l.Blocks {
		for _, s := range b.Succs() {
			if !members[s] {
				return true
			}
		}
	}
	return false
}

// ExitEdges returns the edges leaving l as (inside, outside) pairs in
// block order.
func ExitEdges(l *ir.Loop) [][2]*ir.Block {
	var edges [][2]*ir.Block
	for _, b := range l.Blocks {
		for _, s := range b.Succs() {
			if !l.Contains(s) {
				edges = append(edges, [2]*ir.Block{b, s})
			}
		}
	}
	return edges
}
