package ir

// Builder is a compact way to put graphs together in tests and in the
// graph file loader. It keeps a current block that instructions are
// appended to.
//
//	b := ir.NewBuilder("sum")
//	n := b.Param(ir.TypeInt32)
//	loop := b.NewBlock()
//	b.Goto(loop)
//	b.SetBlock(loop)
//	i := b.Phi(ir.TypeInt32, b.Int(ir.TypeInt32, 0))
//	...
type Builder struct {
	g   *Graph
	cur *Block
}

// NewBuilder starts a new graph positioned at its entry block.
func NewBuilder(name string) *Builder {
	g := New(name)
	return &Builder{g: g, cur: g.entry}
}

func (b *Builder) Graph() *Graph { return b.g }

// Current returns the block instructions are appended to.
func (b *Builder) Current() *Block { return b.cur }

// NewBlock creates a block without moving the cursor.
func (b *Builder) NewBlock() *Block { return b.g.NewBlock() }

// SetBlock moves the cursor to blk.
func (b *Builder) SetBlock(blk *Block) *Builder {
	b.cur = blk
	return b
}

// Goto adds a fallthrough edge from the current block to target.
func (b *Builder) Goto(target *Block) {
	b.cur.AddSucc(target)
}

// Param adds a parameter of type t.
func (b *Builder) Param(t Type) *Inst { return b.g.AddParameter(t) }

func (b *Builder) Int(t Type, v int64) *Inst      { return b.g.IntConst(t, v) }
func (b *Builder) Bool(v bool) *Inst              { return b.g.BoolConst(v) }
func (b *Builder) F32(v float32) *Inst            { return b.g.Float32Const(v) }
func (b *Builder) F64(v float64) *Inst            { return b.g.Float64Const(v) }
func (b *Builder) Null() *Inst                    { return b.g.NullPtr() }
func (b *Builder) Class(handle uint64) *Inst      { return b.g.ClassHandle(handle) }
func (b *Builder) Bits(t Type, bits uint64) *Inst { return b.g.FindOrCreateConstant(t, bits) }

// Emit appends a generic instruction to the current block.
func (b *Builder) Emit(op Op, t Type, inputs ...*Inst) *Inst {
	i := b.g.NewInst(op, t, inputs...)
	b.cur.AppendInst(i)
	return i
}

// Phi appends a phi to the current block. Inputs follow predecessor order;
// inputs for predecessors that do not exist yet (such as back edges) can
// be appended later with AppendInput.
func (b *Builder) Phi(t Type, inputs ...*Inst) *Inst {
	phi := b.g.alloc(OpPhi, t)
	for _, in := range inputs {
		phi.AppendInput(in)
	}
	b.cur.AppendInst(phi)
	return phi
}

func (b *Builder) Unary(op Op, t Type, x *Inst) *Inst { return b.Emit(op, t, x) }

func (b *Builder) Binary(op Op, t Type, x, y *Inst) *Inst { return b.Emit(op, t, x, y) }

// Compare appends a bool Compare of x and y under cc.
func (b *Builder) Compare(cc CondCode, x, y *Inst) *Inst {
	i := b.Emit(OpCompare, TypeBool, x, y)
	i.CC = cc
	i.SrcType = x.typ
	return i
}

// Cmp appends a three-way comparison producing -1, 0 or 1.
func (b *Builder) Cmp(x, y *Inst, fcmpg bool) *Inst {
	i := b.Emit(OpCmp, TypeInt32, x, y)
	i.SrcType = x.typ
	i.Fcmpg = fcmpg
	return i
}

// Cast appends a conversion of x to t.
func (b *Builder) Cast(t Type, x *Inst) *Inst {
	i := b.Emit(OpCast, t, x)
	i.SrcType = x.typ
	return i
}

// SaveState appends a SaveState recording vals under registers 0, 1, ...
func (b *Builder) SaveState(vals ...*Inst) *Inst {
	return b.saveState(OpSaveState, vals)
}

// SafePoint appends a SafePoint recording vals under registers 0, 1, ...
func (b *Builder) SafePoint(vals ...*Inst) *Inst {
	return b.saveState(OpSafePoint, vals)
}

func (b *Builder) saveState(op Op, vals []*Inst) *Inst {
	ss := b.g.alloc(op, TypeVoid)
	for n, v := range vals {
		ss.AppendSaveStateInput(v, VReg(n))
	}
	b.cur.AppendInst(ss)
	return ss
}

// OverflowCheck appends AddOverflowCheck or SubOverflowCheck.
func (b *Builder) OverflowCheck(op Op, t Type, x, y, ss *Inst) *Inst {
	return b.Emit(op, t, x, y, ss)
}

// Call appends a static call to callee.
func (b *Builder) Call(t Type, callee uint64, ss *Inst, args ...*Inst) *Inst {
	i := b.Emit(OpCallStatic, t, append(args[:len(args):len(args)], ss)...)
	i.Imm = callee
	return i
}

// NewObject appends an allocation of the given class.
func (b *Builder) NewObject(class uint64, ss *Inst) *Inst {
	i := b.Emit(OpNewObject, TypeRef, ss)
	i.Imm = class
	return i
}

// NewArray appends an allocation of an array with length elements.
func (b *Builder) NewArray(class uint64, length, ss *Inst) *Inst {
	i := b.Emit(OpNewArray, TypeRef, length, ss)
	i.Imm = class
	return i
}

func (b *Builder) NullCheck(v, ss *Inst) *Inst { return b.Emit(OpNullCheck, TypeRef, v, ss) }

func (b *Builder) LoadArray(t Type, arr, idx *Inst) *Inst {
	return b.Emit(OpLoadArray, t, arr, idx)
}

func (b *Builder) StoreArray(arr, idx, v *Inst) *Inst {
	return b.Emit(OpStoreArray, TypeVoid, arr, idx, v)
}

// If ends the current block with a two-way branch on x cc y.
func (b *Builder) If(cc CondCode, x, y *Inst, t, f *Block) *Inst {
	i := b.Emit(OpIf, TypeVoid, x, y)
	i.CC = cc
	i.SrcType = x.typ
	b.cur.AddSucc(t)
	b.cur.AddSucc(f)
	return i
}

// IfImm ends the current block with a branch on cond cc imm.
func (b *Builder) IfImm(cc CondCode, cond *Inst, imm uint64, t, f *Block) *Inst {
	i := b.Emit(OpIfImm, TypeVoid, cond)
	i.CC = cc
	i.Imm = imm
	i.SrcType = cond.typ
	b.cur.AddSucc(t)
	b.cur.AddSucc(f)
	return i
}

// Branch ends the current block with IfImm NE 0 on a bool condition.
func (b *Builder) Branch(cond *Inst, t, f *Block) *Inst {
	return b.IfImm(CondNE, cond, 0, t, f)
}

// Return ends the current block by returning v.
func (b *Builder) Return(v *Inst) *Inst {
	i := b.Emit(OpReturn, v.typ, v)
	b.cur.AddSucc(b.g.exit)
	return i
}

// ReturnVoid ends the current block without a value.
func (b *Builder) ReturnVoid() *Inst {
	i := b.Emit(OpReturnVoid, TypeVoid)
	b.cur.AddSucc(b.g.exit)
	return i
}
