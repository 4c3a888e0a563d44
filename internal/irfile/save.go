package irfile

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ssaopt/internal/ir"
)

// Save writes g to path.
func Save(path string, g *ir.Graph) error {
	data, err := Marshal(g)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &LoadError{Code: ErrCodeWrite, Message: err.Error(), Path: path}
	}
	return nil
}

// Marshal renders g as a graph file.
func Marshal(g *ir.Graph) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(Encode(g)); err != nil {
		return nil, fmt.Errorf("encode graph %s: %w", g.Name, err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode graph %s: %w", g.Name, err)
	}
	return buf.Bytes(), nil
}

// Encode converts g to its file form. Blocks and values are renamed in
// the order they are written (bb0, bb1, ... and v0, v1, ...; parameters
// are p0, p1, ...), so encoding a graph loaded from an encoded file
// reproduces that file.
func Encode(g *ir.Graph) *File {
	e := &encoder{
		values: make(map[*ir.Inst]string),
		blocks: make(map[*ir.Block]string),
	}
	f := &File{Name: ir.CanonicalName(g.Name)}
	for n, p := range g.Parameters() {
		e.values[p] = fmt.Sprintf("p%d", n)
		f.Params = append(f.Params, Param{Name: e.values[p], Type: p.Type().String()})
	}

	order := []*ir.Block{g.Entry()}
	for _, b := range g.Blocks() {
		if !b.IsEntry() && !b.IsExit() {
			order = append(order, b)
		}
	}
	next := 0
	for n, b := range order {
		e.blocks[b] = fmt.Sprintf("bb%d", n)
		for _, i := range b.AllInsts() {
			if i.Op() != ir.OpParameter && i.HasUsers() {
				e.values[i] = fmt.Sprintf("v%d", next)
				next++
			}
		}
	}

	for _, b := range order {
		f.Blocks = append(f.Blocks, e.block(b))
	}
	return f
}

type encoder struct {
	values map[*ir.Inst]string
	blocks map[*ir.Block]string
}

func (e *encoder) block(b *ir.Block) Block {
	out := Block{Name: e.blocks[b]}
	for _, i := range b.AllInsts() {
		if i.Op() != ir.OpParameter {
			out.Insts = append(out.Insts, e.inst(i))
		}
	}
	if last := b.Last(); last != nil && (last.Op() == ir.OpReturn || last.Op() == ir.OpReturnVoid) {
		return out
	}
	for _, s := range b.Succs() {
		out.Succs = append(out.Succs, e.blocks[s])
	}
	return out
}

func (e *encoder) inst(i *ir.Inst) Inst {
	d := Inst{Name: e.values[i], Op: i.Op().String()}
	if i.Type() != defaultType(i.Op()) {
		d.Type = i.Type().String()
	}
	for _, in := range i.Inputs() {
		d.Args = append(d.Args, e.values[in])
	}

	switch i.Op() {
	case ir.OpConstant:
		d.Value = ir.FormatConst(i.Type(), i.Imm)
	case ir.OpLoadImmediate, ir.OpNewObject, ir.OpNewArray:
		d.Class = i.Imm
	case ir.OpCallStatic:
		d.Callee = i.Imm
		d.Inlined = i.Inlined
	case ir.OpCompare, ir.OpIf:
		d.CC = i.CC.String()
	case ir.OpIfImm:
		d.CC = i.CC.String()
		d.Imm = i.Imm
	case ir.OpCmp:
		d.Fcmpg = i.Fcmpg
	case ir.OpPhi:
		for _, p := range i.Block().Preds() {
			d.Preds = append(d.Preds, e.blocks[p])
		}
	case ir.OpSaveState, ir.OpSafePoint:
		if !defaultRegs(i.VRegs()) {
			for _, r := range i.VRegs() {
				d.Regs = append(d.Regs, r.String())
			}
		}
	}

	switch i.Op() {
	case ir.OpCompare, ir.OpCmp, ir.OpCast, ir.OpIf, ir.OpIfImm:
		if i.NumInputs() == 0 || i.Input(0).Type() != i.SrcType {
			d.From = i.SrcType.String()
		}
	}
	return d
}

func defaultRegs(regs []ir.VReg) bool {
	for n, r := range regs {
		if r != ir.VReg(n) {
			return false
		}
	}
	return true
}
