package analysis

import (
	"slices"

	"github.com/roach88/ssaopt/internal/ir"
)

// Check validates the structural invariants of g and returns the first
// violation as a *CheckError, or nil.
func Check(g *ir.Graph) error {
	if errs := Validate(g); len(errs) > 0 {
		return &errs[0]
	}
	return nil
}

// Validate checks every structural invariant of g and returns all
// violations found (it does not stop at the first one).
func Validate(g *ir.Graph) []CheckError {
	c := &checker{g: g, dom: ComputeDominators(g)}
	c.checkBlocks()
	c.checkInsts()
	c.checkLoops()
	return c.errs
}

type checker struct {
	g    *ir.Graph
	dom  *DomTree
	errs []CheckError
}

func (c *checker) add(e CheckError) { c.errs = append(c.errs, e) }

func (c *checker) checkBlocks() {
	entry, exit := c.g.Entry(), c.g.Exit()
	if entry.NumPreds() != 0 {
		c.add(blockError(ErrSuccessorShape, entry, "entry block has predecessors"))
	}
	if !exit.IsEmpty() || exit.NumSuccs() != 0 {
		c.add(blockError(ErrMisplacedInst, exit, "exit block must be empty and have no successors"))
	}

	for _, b := range c.g.Blocks() {
		if !c.dom.Reachable(b) {
			// A method that never returns leaves the exit block unreachable.
			if !b.IsExit() {
				c.add(blockError(ErrUnreachableBlock, b, "unreachable from entry"))
			}
			continue
		}
		c.checkEdges(b)
		c.checkShape(b)
		for _, phi := range b.Phis() {
			if phi.NumInputs() != b.NumPreds() {
				c.add(instError(ErrPhiArity, phi, "phi has %d inputs, block has %d predecessors", phi.NumInputs(), b.NumPreds()))
			}
		}
	}
}

func (c *checker) checkEdges(b *ir.Block) {
	for n, s := range b.Succs() {
		if slices.Index(b.Succs(), s) != n {
			c.add(blockError(ErrDuplicateEdge, b, "duplicate edge to %s", s))
		}
		if s.Graph() != c.g {
			c.add(blockError(ErrEdgeMismatch, b, "successor %s was removed", s))
			continue
		}
		if count(s.Preds(), b) != count(b.Succs(), s) {
			c.add(blockError(ErrEdgeMismatch, b, "%s does not list %s as predecessor", s, b))
		}
	}
	for _, p := range b.Preds() {
		if p.Graph() != c.g {
			c.add(blockError(ErrEdgeMismatch, b, "predecessor %s was removed", p))
			continue
		}
		if count(p.Succs(), b) != count(b.Preds(), p) {
			c.add(blockError(ErrEdgeMismatch, b, "%s does not list %s as successor", p, b))
		}
	}
}

func count(bs []*ir.Block, b *ir.Block) int {
	n := 0
	for _, x := range bs {
		if x == b {
			n++
		}
	}
	return n
}

func (c *checker) checkShape(b *ir.Block) {
	if b.IsExit() {
		return
	}
	for n, i := range b.Insts() {
		if i.Op().IsTerminator() && n != len(b.Insts())-1 {
			c.add(instError(ErrMisplacedInst, i, "%s is not the last instruction", i.Op()))
		}
	}
	last := b.Last()
	switch {
	case last != nil && (last.Op() == ir.OpIf || last.Op() == ir.OpIfImm):
		if b.NumSuccs() != 2 {
			c.add(blockError(ErrSuccessorShape, b, "%s needs 2 successors, has %d", last.Op(), b.NumSuccs()))
		}
	case last != nil && (last.Op() == ir.OpReturn || last.Op() == ir.OpReturnVoid):
		if b.NumSuccs() != 1 || b.Succ(0) != c.g.Exit() {
			c.add(blockError(ErrSuccessorShape, b, "returning block must flow into the exit block"))
		}
	default:
		if b.NumSuccs() != 1 {
			c.add(blockError(ErrSuccessorShape, b, "block without branch needs 1 successor, has %d", b.NumSuccs()))
		} else if b.Succ(0) == c.g.Exit() {
			c.add(blockError(ErrSuccessorShape, b, "only returning blocks may flow into the exit block"))
		}
	}
}

func (c *checker) checkInsts() {
	for _, b := range c.g.Blocks() {
		if !c.dom.Reachable(b) {
			continue
		}
		pos := make(map[*ir.Inst]int)
		for n, i := range b.AllInsts() {
			pos[i] = n
		}
		for _, i := range b.AllInsts() {
			if i.Block() != b {
				c.add(instError(ErrMisplacedInst, i, "instruction claims block %v", i.Block()))
			}
			if i.Op().IsConstLike() && b != c.g.Entry() {
				c.add(instError(ErrMisplacedInst, i, "%s outside the entry block", i.Op()))
			}
			if i.IsConst() {
				c.checkConstant(i)
			}
			if i.IsSaveState() {
				c.checkSaveState(i)
			}
			c.checkInputs(i, pos)
			c.checkUsers(i)
		}
	}
}

func (c *checker) checkConstant(i *ir.Inst) {
	t := i.Type()
	if t.IsInt() && ir.Canonical(i.Imm, t) != i.Imm {
		c.add(instError(ErrConstant, i, "constant bits %#x are not canonical for %s", i.Imm, t))
		return
	}
	if interned, ok := c.g.LookupConstant(t, i.Imm); !ok || interned != i {
		c.add(instError(ErrConstant, i, "constant is not the interned instance"))
	}
}

func (c *checker) checkSaveState(i *ir.Inst) {
	if len(i.VRegs()) != i.NumInputs() {
		c.add(instError(ErrSaveStateRegister, i, "%d inputs but %d registers", i.NumInputs(), len(i.VRegs())))
	}
}

func (c *checker) checkInputs(i *ir.Inst, pos map[*ir.Inst]int) {
	b := i.Block()
	for n, in := range i.Inputs() {
		if in.Block() == nil || c.g.InstByID(in.ID()) != in {
			c.add(instError(ErrDanglingInput, i, "input %d (%s) was removed", n, in))
			continue
		}
		if !slices.Contains(in.Users(), i) {
			c.add(instError(ErrDefUse, i, "input %s does not list %s as user", in, i))
		}
		if in.Op().IsConstLike() {
			continue
		}
		def := in.Block()
		switch {
		case i.IsPhi():
			if n >= b.NumPreds() {
				continue
			}
			pred := b.Pred(n)
			if !c.dom.Dominates(def, pred) {
				c.add(instError(ErrDominance, i, "phi input %s from %s is not dominated by its definition in %s", in, pred, def))
			}
		case def == b:
			if pos[in] >= pos[i] {
				c.add(instError(ErrDominance, i, "input %s is defined after its use", in))
			}
		case !c.dom.Dominates(def, b):
			c.add(instError(ErrDominance, i, "input %s defined in %s does not dominate %s", in, def, b))
		}
	}
}

func (c *checker) checkUsers(i *ir.Inst) {
	for _, u := range i.Users() {
		if u.Block() == nil || c.g.InstByID(u.ID()) != u {
			c.add(instError(ErrDefUse, i, "user %s was removed", u))
			continue
		}
		if countInst(u.Inputs(), i) != countInst(i.Users(), u) {
			c.add(instError(ErrDefUse, i, "use count by %s disagrees with its inputs", u))
		}
	}
}

func countInst(is []*ir.Inst, i *ir.Inst) int {
	n := 0
	for _, x := range is {
		if x == i {
			n++
		}
	}
	return n
}

// checkLoops verifies the loop tree stored on the graph, if any, against
// the current CFG.
func (c *checker) checkLoops() {
	root := c.g.RootLoop()
	if root == nil {
		return
	}
	var walk func(l *ir.Loop)
	walk = func(l *ir.Loop) {
		for _, inner := range l.Inner {
			walk(inner)
		}
		if l.Root {
			return
		}
		if l.Header == nil || l.Header.Graph() != c.g {
			c.add(CheckError{Code: ErrBackEdge, Message: l.String() + " has no live header", Block: noID, Inst: noID})
			return
		}
		for _, be := range l.BackEdges {
			if be.SuccIndex(l.Header) < 0 {
				c.add(blockError(ErrBackEdge, be, "back edge of %s does not target header %s", l, l.Header))
			}
			if !l.Irreducible && !c.dom.Dominates(l.Header, be) {
				c.add(blockError(ErrBackEdge, be, "header %s of %s does not dominate its back edge", l.Header, l))
			}
		}
	}
	walk(root)

	for _, b := range c.dom.RPO() {
		for _, s := range b.Succs() {
			if c.dom.Dominates(s, b) && !isBackEdgeOf(s.Loop(), b, s) {
				c.add(blockError(ErrBackEdge, b, "edge to dominator %s is not a recorded back edge", s))
			}
		}
	}
}

func isBackEdgeOf(l *ir.Loop, src, header *ir.Block) bool {
	for ; l != nil; l = l.Outer {
		if !l.Root && l.Header == header && slices.Contains(l.BackEdges, src) {
			return true
		}
	}
	return false
}
