package unroll

import (
	"slices"

	"github.com/roach88/ssaopt/internal/analysis"
	"github.com/roach88/ssaopt/internal/ir"
)

// exitUse is one use, outside the loop, of a value defined in it. Input n
// of user reads value; after unrolling it reads a phi placed in exit.
type exitUse struct {
	value *ir.Inst
	exit  *ir.Block
	user  *ir.Inst
	n     int
}

// exitUses lists the uses of loop values after the loop that are not phi
// inputs along an exit edge. Each must be dominated by an exit block that
// is only entered from the loop, so a phi there can merge the copies. It
// reports false when some use has no such exit.
func (u *unroller) exitUses() ([]exitUse, bool) {
	dom := analysis.ComputeDominators(u.g)
	var exits []*ir.Block
	for _, b := range u.blocks {
		for _, s := range b.Succs() {
			if u.inLoop[s] || slices.Contains(exits, s) {
				continue
			}
			if !slices.ContainsFunc(s.Preds(), func(p *ir.Block) bool { return !u.inLoop[p] }) {
				exits = append(exits, s)
			}
		}
	}

	var uses []exitUse
	for _, b := range u.blocks {
		for _, v := range b.AllInsts() {
			seen := make(map[*ir.Inst]bool)
			for _, user := range v.Users() {
				if seen[user] || u.inLoop[user.Block()] {
					continue
				}
				seen[user] = true
				for n, in := range user.Inputs() {
					if in != v {
						continue
					}
					at := user.Block()
					if user.IsPhi() {
						at = at.Pred(n)
						if u.inLoop[at] {
							continue
						}
					}
					exit := u.exitFor(dom, exits, v, at)
					if exit == nil {
						return nil, false
					}
					uses = append(uses, exitUse{value: v, exit: exit, user: user, n: n})
				}
			}
		}
	}
	return uses, true
}

// exitFor returns an exit dominating at whose every predecessor is
// dominated by the definition of v, or nil.
func (u *unroller) exitFor(dom *analysis.DomTree, exits []*ir.Block, v *ir.Inst, at *ir.Block) *ir.Block {
	for _, e := range exits {
		if !dom.Dominates(e, at) {
			continue
		}
		if slices.ContainsFunc(e.Preds(), func(p *ir.Block) bool { return !dom.Dominates(v.Block(), p) }) {
			continue
		}
		return e
	}
	return nil
}

// repair gives every exit use a phi in its exit merging the value of the
// copy each predecessor belongs to. One phi is shared by all uses of a
// value through the same exit.
func (u *unroller) repair(uses []exitUse, ms []*ir.CloneMap) {
	owner := make(map[*ir.Block]*ir.CloneMap)
	for _, m := range ms {
		for _, b := range m.Blocks() {
			owner[b] = m
		}
	}
	type key struct {
		value *ir.Inst
		exit  *ir.Block
	}
	made := make(map[key]*ir.Inst)
	for _, use := range uses {
		k := key{use.value, use.exit}
		phi, ok := made[k]
		if !ok {
			inputs := make([]*ir.Inst, 0, use.exit.NumPreds())
			for _, p := range use.exit.Preds() {
				v := use.value
				if m := owner[p]; m != nil {
					v = m.Value(v)
				}
				inputs = append(inputs, v)
			}
			phi = u.newPhi(use.exit, use.value.Type(), inputs...)
			made[k] = phi
		}
		use.user.SetInput(use.n, phi)
	}
}

func (u *unroller) bridgeAll() {
	for _, phi := range u.phis {
		addBridges(phi)
	}
}

// addBridges records a reference phi in every SaveState between its block
// and each of its uses, under ir.VRegBridge, so the collector still finds
// the object after the values it merges stop being live.
func addBridges(phi *ir.Inst) {
	if phi.Type() != ir.TypeRef {
		return
	}
	def := phi.Block()
	visited := make(map[*ir.Block]bool)
	var walk func(b *ir.Block, upTo int)
	walk = func(b *ir.Block, upTo int) {
		insts := b.Insts()
		for n := upTo - 1; n >= 0; n-- {
			if ss := insts[n]; ss.IsSaveState() && !ss.HasInput(phi) {
				ss.AppendSaveStateInput(phi, ir.VRegBridge)
			}
		}
		if b == def {
			return
		}
		for _, p := range b.Preds() {
			if !visited[p] {
				visited[p] = true
				walk(p, len(p.Insts()))
			}
		}
	}

	for _, user := range slices.Clone(phi.Users()) {
		if user.IsSaveState() {
			continue
		}
		if user.IsPhi() {
			for n, in := range user.Inputs() {
				if in == phi {
					p := user.Block().Pred(n)
					if !visited[p] {
						visited[p] = true
						walk(p, len(p.Insts()))
					}
				}
			}
			continue
		}
		b := user.Block()
		walk(b, slices.Index(b.Insts(), user))
	}
}
