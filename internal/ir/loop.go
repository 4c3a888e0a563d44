package ir

import (
	"fmt"
	"slices"
)

// Loop is a node of the loop tree built by loop analysis. The root loop
// stands for the whole method and has no header.
type Loop struct {
	ID     int
	Header *Block
	// PreHeader is the single predecessor of Header outside the loop, when
	// there is exactly one.
	PreHeader *Block
	// Blocks lists every block of the loop, including blocks of inner
	// loops. The header comes first.
	Blocks []*Block
	// BackEdges lists the loop blocks that jump to Header.
	BackEdges []*Block
	Outer     *Loop
	Inner     []*Loop

	Irreducible bool
	// Infinite loops have no edge leaving them.
	Infinite bool
	Root     bool
}

func (l *Loop) String() string { return fmt.Sprintf("loop%d", l.ID) }

// Contains reports whether b belongs to l or to a loop nested in l.
func (l *Loop) Contains(b *Block) bool {
	if l.Root {
		return b.graph != nil
	}
	for inner := b.loop; inner != nil; inner = inner.Outer {
		if inner == l {
			return true
		}
	}
	return false
}

// IsInside reports whether l is nested, at any depth, in outer.
func (l *Loop) IsInside(outer *Loop) bool {
	for p := l.Outer; p != nil; p = p.Outer {
		if p == outer {
			return true
		}
	}
	return false
}

// HasInner reports whether other loops are nested in l.
func (l *Loop) HasInner() bool { return len(l.Inner) > 0 }

// Depth returns the nesting depth; loops directly under the root have
// depth 1.
func (l *Loop) Depth() int {
	d := 0
	for p := l.Outer; p != nil; p = p.Outer {
		d++
	}
	return d
}

func (l *Loop) removeBlock(b *Block) {
	for p := l; p != nil; p = p.Outer {
		if n := slices.Index(p.Blocks, b); n >= 0 {
			p.Blocks = slices.Delete(p.Blocks, n, n+1)
		}
		if n := slices.Index(p.BackEdges, b); n >= 0 {
			p.BackEdges = slices.Delete(p.BackEdges, n, n+1)
		}
	}
	b.loop = nil
}
