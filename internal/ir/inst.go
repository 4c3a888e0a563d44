package ir

import (
	"fmt"
	"math"
	"slices"
)

// InstID identifies an instruction within its graph. IDs are never reused.
type InstID int

// VReg is the virtual register a SaveState input is recorded under.
type VReg uint32

// VRegBridge marks a SaveState input that only exists to keep a value
// alive for the garbage collector across a merge point.
const VRegBridge VReg = math.MaxUint32

func (r VReg) String() string {
	if r == VRegBridge {
		return "bridge"
	}
	return fmt.Sprintf("r%d", uint32(r))
}

// Inst is a single SSA instruction.
//
// Inputs and users are kept consistent by the editing methods: every input
// edge u -> i has a matching entry for i in u's user list (one entry per
// edge, so an instruction using a value twice appears twice).
type Inst struct {
	id     InstID
	op     Op
	typ    Type
	block  *Block
	inputs []*Inst
	vregs  []VReg
	users  []*Inst

	// CC is the condition of Compare, If and IfImm.
	CC CondCode
	// Imm is the constant bit pattern, parameter index, IfImm immediate,
	// class handle (LoadImmediate, NewObject) or callee id (CallStatic).
	Imm uint64
	// SrcType is the operand type of Compare, Cmp, Cast, If and IfImm.
	SrcType Type
	// Fcmpg makes an unordered Cmp yield 1 instead of -1.
	Fcmpg bool
	// Inlined marks a CallStatic whose callee body has been inlined.
	Inlined bool
}

func (i *Inst) ID() InstID    { return i.id }
func (i *Inst) Op() Op        { return i.op }
func (i *Inst) Type() Type    { return i.typ }
func (i *Inst) Block() *Block { return i.block }
func (i *Inst) IsPhi() bool   { return i.op == OpPhi }
func (i *Inst) IsConst() bool { return i.op == OpConstant }

func (i *Inst) String() string { return fmt.Sprintf("v%d", i.id) }

// NumInputs returns the number of data-flow inputs.
func (i *Inst) NumInputs() int { return len(i.inputs) }

// Input returns input n.
func (i *Inst) Input(n int) *Inst { return i.inputs[n] }

// Inputs returns the input list. The slice is owned by the instruction.
func (i *Inst) Inputs() []*Inst { return i.inputs }

// Users returns one entry per use of i. The slice is owned by the
// instruction and changes as uses are edited.
func (i *Inst) Users() []*Inst { return i.users }

func (i *Inst) HasUsers() bool { return len(i.users) > 0 }

func (i *Inst) HasSingleUser() bool { return len(i.users) == 1 }

// VReg returns the virtual register of SaveState input n.
func (i *Inst) VReg(n int) VReg { return i.vregs[n] }

// VRegs returns the registers of a SaveState, parallel to its inputs.
func (i *Inst) VRegs() []VReg { return i.vregs }

// IsSaveState reports whether i records a deoptimization state, which
// SafePoint does as well as SaveState.
func (i *Inst) IsSaveState() bool { return i.op == OpSaveState || i.op == OpSafePoint }

// AppendInput adds v as the last input of i.
func (i *Inst) AppendInput(v *Inst) {
	if i.IsSaveState() {
		panic("ir: SaveState inputs need a virtual register")
	}
	i.inputs = append(i.inputs, v)
	v.users = append(v.users, i)
}

// AppendSaveStateInput records v under register r.
func (i *Inst) AppendSaveStateInput(v *Inst, r VReg) {
	if !i.IsSaveState() {
		panic(fmt.Sprintf("ir: %s is not a SaveState", i))
	}
	i.inputs = append(i.inputs, v)
	i.vregs = append(i.vregs, r)
	v.users = append(v.users, i)
}

// SetInput replaces input n with v.
func (i *Inst) SetInput(n int, v *Inst) {
	old := i.inputs[n]
	if old == v {
		return
	}
	old.removeUser(i)
	i.inputs[n] = v
	v.users = append(v.users, i)
}

// RemoveInput deletes input n, shifting later inputs down.
func (i *Inst) RemoveInput(n int) {
	i.inputs[n].removeUser(i)
	i.inputs = slices.Delete(i.inputs, n, n+1)
	if i.vregs != nil {
		i.vregs = slices.Delete(i.vregs, n, n+1)
	}
}

// HasInput reports whether v is one of i's inputs.
func (i *Inst) HasInput(v *Inst) bool {
	return slices.Contains(i.inputs, v)
}

// ReplaceUsers redirects every use of i to v.
func (i *Inst) ReplaceUsers(v *Inst) {
	if i == v {
		return
	}
	users := slices.Clone(i.users)
	for _, u := range users {
		for n, in := range u.inputs {
			if in == i {
				u.inputs[n] = v
				v.users = append(v.users, u)
			}
		}
	}
	i.users = i.users[:0]
}

// clearInputs drops every input edge of i.
func (i *Inst) clearInputs() {
	for _, in := range i.inputs {
		in.removeUser(i)
	}
	i.inputs = nil
	i.vregs = nil
}

func (i *Inst) removeUser(u *Inst) {
	if n := slices.Index(i.users, u); n >= 0 {
		i.users = slices.Delete(i.users, n, n+1)
		return
	}
	panic(fmt.Sprintf("ir: %s is not a user of %s", u, i))
}

// PhiInput returns the phi input that flows in from pred.
func (i *Inst) PhiInput(pred *Block) *Inst {
	n := i.block.PredIndex(pred)
	if n < 0 {
		panic(fmt.Sprintf("ir: %s is not a predecessor of %s", pred, i.block))
	}
	return i.inputs[n]
}

// SetPhiInput replaces the phi input that flows in from pred.
func (i *Inst) SetPhiInput(pred *Block, v *Inst) {
	n := i.block.PredIndex(pred)
	if n < 0 {
		panic(fmt.Sprintf("ir: %s is not a predecessor of %s", pred, i.block))
	}
	i.SetInput(n, v)
}

// Int64 returns the integer value of a constant.
func (i *Inst) Int64() int64 { return int64(i.Imm) }

// Uint64 returns the integer bit pattern of a constant.
func (i *Inst) Uint64() uint64 { return i.Imm }

// Float32 returns the value of a float32 constant.
func (i *Inst) Float32() float32 { return math.Float32frombits(uint32(i.Imm)) }

// Float64 returns the value of a float64 constant.
func (i *Inst) Float64() float64 { return math.Float64frombits(i.Imm) }

// FloatValue returns a float constant widened to float64.
func (i *Inst) FloatValue() float64 {
	if i.typ == TypeFloat32 {
		return float64(i.Float32())
	}
	return i.Float64()
}

// IsZeroConst reports whether i is a constant equal to zero (either signed
// zero for floats) or the null reference.
func (i *Inst) IsZeroConst() bool {
	switch i.op {
	case OpNullPtr:
		return true
	case OpConstant:
		if i.typ.IsFloat() {
			return i.FloatValue() == 0
		}
		return i.Imm == 0
	}
	return false
}
