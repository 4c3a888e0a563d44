package irfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ssaopt/internal/ir"
)

// Load reads the graph file at path.
func Load(path string) (*ir.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeRead, Message: err.Error(), Path: path}
	}
	g, err := Parse(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) && le.Path == "" {
			le.Path = path
		}
		return nil, err
	}
	return g, nil
}

// Parse decodes a graph file. Unknown fields are rejected so that typos
// do not silently drop data.
func Parse(data []byte) (*ir.Graph, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &LoadError{Code: ErrCodeMissing, Message: "empty graph file"}
		}
		return nil, &LoadError{Code: ErrCodeSyntax, Message: err.Error()}
	}
	return Build(&f)
}

// Build turns a decoded file into a graph. It resolves names and checks
// the shape of every block and instruction; deeper invariants such as
// dominance are left to analysis.Check.
func Build(f *File) (*ir.Graph, error) {
	if strings.TrimSpace(f.Name) == "" {
		return nil, &LoadError{Code: ErrCodeMissing, Message: "graph name is required"}
	}
	if len(f.Blocks) == 0 {
		return nil, &LoadError{Code: ErrCodeMissing, Message: "at least one block is required"}
	}

	b := &builder{
		f:      f,
		g:      ir.New(ir.CanonicalName(f.Name)),
		blocks: make(map[string]*ir.Block),
		values: make(map[string]*ir.Inst),
	}
	for _, step := range []func() error{b.params, b.declareBlocks, b.edges, b.insts, b.resolve} {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return b.g, nil
}

type builder struct {
	f      *File
	g      *ir.Graph
	blocks map[string]*ir.Block
	order  []*ir.Block
	values map[string]*ir.Inst

	pending []pending
}

// pending is an instruction whose inputs are resolved once every value of
// the file has been created, so that phis can name values defined later.
type pending struct {
	decl  *Inst
	inst  *ir.Inst
	block *ir.Block
	where string
}

func (b *builder) params() error {
	for n, p := range b.f.Params {
		where := fmt.Sprintf("param %d", n)
		t, err := ir.ParseType(p.Type)
		if err != nil || t == ir.TypeVoid {
			return &LoadError{Code: ErrCodeBadValue, Message: fmt.Sprintf("bad parameter type %q", p.Type), Where: where}
		}
		if err := b.bind(p.Name, b.g.AddParameter(t), where); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) bind(name string, i *ir.Inst, where string) error {
	if name == "" {
		return nil
	}
	if _, ok := b.values[name]; ok {
		return &LoadError{Code: ErrCodeDuplicate, Message: fmt.Sprintf("value %q is already defined", name), Where: where}
	}
	b.values[name] = i
	return nil
}

func (b *builder) declareBlocks() error {
	for n, decl := range b.f.Blocks {
		if decl.Name == "" {
			return &LoadError{Code: ErrCodeMissing, Message: "block name is required", Where: fmt.Sprintf("block %d", n)}
		}
		if _, ok := b.blocks[decl.Name]; ok {
			return &LoadError{Code: ErrCodeDuplicate, Message: fmt.Sprintf("block %q is already defined", decl.Name), Where: "block " + decl.Name}
		}
		blk := b.g.Entry()
		if n > 0 {
			blk = b.g.NewBlock()
		}
		b.blocks[decl.Name] = blk
		b.order = append(b.order, blk)
	}
	return nil
}

// edges connects the blocks. Edges are added in file order, which fixes
// the predecessor order phis without preds follow.
func (b *builder) edges() error {
	for n, decl := range b.f.Blocks {
		where := "block " + decl.Name
		blk := b.order[n]

		want := 1
		var last ir.Op
		for k, in := range decl.Insts {
			op, err := ir.ParseOp(in.Op)
			if err != nil {
				continue // reported by insts
			}
			if op.IsTerminator() && k != len(decl.Insts)-1 {
				return &LoadError{Code: ErrCodeShape, Message: fmt.Sprintf("%s must end its block", op), Where: where}
			}
			last = op
		}
		switch last {
		case ir.OpIf, ir.OpIfImm:
			want = 2
		case ir.OpReturn, ir.OpReturnVoid:
			if len(decl.Succs) != 0 {
				return &LoadError{Code: ErrCodeShape, Message: "returning block lists successors", Where: where}
			}
			blk.AddSucc(b.g.Exit())
			continue
		}
		if len(decl.Succs) != want {
			return &LoadError{Code: ErrCodeShape, Message: fmt.Sprintf("want %d successors, have %d", want, len(decl.Succs)), Where: where}
		}
		for _, name := range decl.Succs {
			s, ok := b.blocks[name]
			if !ok {
				return &LoadError{Code: ErrCodeUndefined, Message: fmt.Sprintf("unknown successor %q", name), Where: where}
			}
			if s.IsEntry() {
				return &LoadError{Code: ErrCodeShape, Message: "the entry block cannot have predecessors", Where: where}
			}
			blk.AddSucc(s)
		}
	}
	return nil
}

func (b *builder) insts() error {
	for n := range b.f.Blocks {
		decl := &b.f.Blocks[n]
		blk := b.order[n]
		for k := range decl.Insts {
			in := &decl.Insts[k]
			where := fmt.Sprintf("block %s, inst %d", decl.Name, k)
			if in.Name != "" {
				where += " (" + in.Name + ")"
			}
			i, err := b.create(blk, in, where)
			if err != nil {
				return err
			}
			if err := b.bind(in.Name, i, where); err != nil {
				return err
			}
			b.pending = append(b.pending, pending{decl: in, inst: i, block: blk, where: where})
		}
	}
	return nil
}

func (b *builder) create(blk *ir.Block, in *Inst, where string) (*ir.Inst, error) {
	bad := func(format string, args ...any) error {
		return &LoadError{Code: ErrCodeBadValue, Message: fmt.Sprintf(format, args...), Where: where}
	}
	op, err := ir.ParseOp(in.Op)
	if err != nil {
		return nil, bad("%v", err)
	}
	t := defaultType(op)
	if in.Type != "" {
		if t, err = ir.ParseType(in.Type); err != nil {
			return nil, bad("%v", err)
		}
	} else if op == ir.OpConstant || op == ir.OpPhi || op == ir.OpReturn {
		return nil, &LoadError{Code: ErrCodeMissing, Message: fmt.Sprintf("%s needs a type", op), Where: where}
	}
	if op.IsConstLike() && len(in.Args) != 0 {
		return nil, &LoadError{Code: ErrCodeShape, Message: fmt.Sprintf("%s takes no arguments", op), Where: where}
	}

	switch op {
	case ir.OpParameter:
		return nil, bad("parameters are declared under params")
	case ir.OpConstant:
		bits, err := parseConst(t, in.Value)
		if err != nil {
			return nil, bad("%v", err)
		}
		return b.g.FindOrCreateConstant(t, bits), nil
	case ir.OpNullPtr:
		return b.g.NullPtr(), nil
	case ir.OpLoadImmediate:
		return b.g.ClassHandle(in.Class), nil
	case ir.OpPhi:
		return b.g.NewPhi(blk, t), nil
	}

	i := b.g.NewInst(op, t)
	switch op {
	case ir.OpNewObject, ir.OpNewArray:
		i.Imm = in.Class
	case ir.OpCallStatic:
		i.Imm = in.Callee
		i.Inlined = in.Inlined
	case ir.OpCmp:
		i.Fcmpg = in.Fcmpg
	case ir.OpCompare, ir.OpIf, ir.OpIfImm:
		if in.CC == "" {
			return nil, &LoadError{Code: ErrCodeMissing, Message: fmt.Sprintf("%s needs a condition", op), Where: where}
		}
		if i.CC, err = ir.ParseCondCode(in.CC); err != nil {
			return nil, bad("%v", err)
		}
		i.Imm = in.Imm
	}
	blk.AppendInst(i)
	return i, nil
}

func defaultType(op ir.Op) ir.Type {
	switch op {
	case ir.OpCompare:
		return ir.TypeBool
	case ir.OpCmp:
		return ir.TypeInt32
	case ir.OpNullPtr, ir.OpLoadImmediate, ir.OpNewObject, ir.OpNewArray, ir.OpNullCheck:
		return ir.TypeRef
	}
	return ir.TypeVoid
}

func (b *builder) resolve() error {
	for _, p := range b.pending {
		if p.inst.Op().IsConstLike() {
			continue
		}
		args := make([]*ir.Inst, len(p.decl.Args))
		for n, name := range p.decl.Args {
			v, ok := b.values[name]
			if !ok {
				return &LoadError{Code: ErrCodeUndefined, Message: fmt.Sprintf("unknown value %q", name), Where: p.where}
			}
			args[n] = v
		}

		var err error
		switch {
		case p.inst.IsPhi():
			err = b.phiInputs(p, args)
		case p.inst.IsSaveState():
			err = saveStateInputs(p, args)
		default:
			for _, v := range args {
				p.inst.AppendInput(v)
			}
			err = setSrcType(p, args)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) phiInputs(p pending, args []*ir.Inst) error {
	if len(args) != p.block.NumPreds() {
		return &LoadError{Code: ErrCodeShape,
			Message: fmt.Sprintf("phi has %d arguments, block has %d predecessors", len(args), p.block.NumPreds()),
			Where:   p.where}
	}
	if len(p.decl.Preds) == 0 {
		for _, v := range args {
			p.inst.AppendInput(v)
		}
		return nil
	}
	if len(p.decl.Preds) != len(args) {
		return &LoadError{Code: ErrCodeShape, Message: "phi preds and args differ in length", Where: p.where}
	}
	ordered := make([]*ir.Inst, len(args))
	for n, name := range p.decl.Preds {
		pred, ok := b.blocks[name]
		if !ok {
			return &LoadError{Code: ErrCodeUndefined, Message: fmt.Sprintf("unknown block %q", name), Where: p.where}
		}
		k := p.block.PredIndex(pred)
		if k < 0 || ordered[k] != nil {
			return &LoadError{Code: ErrCodeShape, Message: fmt.Sprintf("%q is not a distinct predecessor", name), Where: p.where}
		}
		ordered[k] = args[n]
	}
	for _, v := range ordered {
		p.inst.AppendInput(v)
	}
	return nil
}

func saveStateInputs(p pending, args []*ir.Inst) error {
	regs := p.decl.Regs
	if regs == nil {
		for n := range args {
			regs = append(regs, ir.VReg(n).String())
		}
	}
	if len(regs) != len(args) {
		return &LoadError{Code: ErrCodeShape, Message: "regs and args differ in length", Where: p.where}
	}
	for n, v := range args {
		r, err := parseVReg(regs[n])
		if err != nil {
			return &LoadError{Code: ErrCodeBadValue, Message: err.Error(), Where: p.where}
		}
		p.inst.AppendSaveStateInput(v, r)
	}
	return nil
}

func setSrcType(p pending, args []*ir.Inst) error {
	switch p.inst.Op() {
	case ir.OpCompare, ir.OpCmp, ir.OpCast, ir.OpIf, ir.OpIfImm:
	default:
		return nil
	}
	if p.decl.From != "" {
		t, err := ir.ParseType(p.decl.From)
		if err != nil {
			return &LoadError{Code: ErrCodeBadValue, Message: err.Error(), Where: p.where}
		}
		p.inst.SrcType = t
		return nil
	}
	if len(args) == 0 {
		return &LoadError{Code: ErrCodeShape, Message: fmt.Sprintf("%s needs an argument", p.inst.Op()), Where: p.where}
	}
	p.inst.SrcType = args[0].Type()
	return nil
}

func parseVReg(s string) (ir.VReg, error) {
	if s == ir.VRegBridge.String() {
		return ir.VRegBridge, nil
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(s, "r"), 10, 32)
	if err != nil || !strings.HasPrefix(s, "r") || n == uint64(ir.VRegBridge) {
		return 0, fmt.Errorf("bad register %q", s)
	}
	return ir.VReg(n), nil
}

// parseConst parses a constant literal of type t. Integers must fit the
// type; floats accept everything ir.FormatConst prints, NaN payloads
// included.
func parseConst(t ir.Type, s string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("constant needs a value")
	}
	switch {
	case t == ir.TypeFloat32 || t == ir.TypeFloat64:
		if hex, ok := strings.CutPrefix(s, "nan("); ok {
			bits, err := strconv.ParseUint(strings.TrimSuffix(hex, ")"), 0, t.Bits())
			if err != nil {
				return 0, fmt.Errorf("bad NaN literal %q", s)
			}
			return bits, nil
		}
		f, err := strconv.ParseFloat(s, t.Bits())
		if err != nil {
			return 0, fmt.Errorf("bad %s literal %q", t, s)
		}
		if t == ir.TypeFloat32 {
			return uint64(math.Float32bits(float32(f))), nil
		}
		return math.Float64bits(f), nil
	case t.IsSigned():
		v, err := strconv.ParseInt(s, 0, 64)
		if err != nil || ir.Canonical(uint64(v), t) != uint64(v) {
			return 0, fmt.Errorf("%q does not fit %s", s, t)
		}
		return uint64(v), nil
	case t.IsInt():
		v, err := strconv.ParseUint(s, 0, 64)
		if err != nil || ir.Canonical(v, t) != v {
			return 0, fmt.Errorf("%q does not fit %s", s, t)
		}
		return v, nil
	}
	return 0, fmt.Errorf("no constants of type %s", t)
}
