package ir

import "fmt"

// Op is an instruction opcode. The set is closed: passes switch over it
// exhaustively and treat an unknown opcode as an internal error.
type Op uint8

const (
	OpInvalid Op = iota

	// Values without data-flow inputs.
	OpConstant
	OpParameter
	OpNullPtr
	OpLoadImmediate

	OpPhi

	// Arithmetic and logic.
	OpNeg
	OpAbs
	OpNot
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpMin
	OpMax
	OpShl
	OpShr
	OpAShr
	OpAnd
	OpOr
	OpXor
	OpCompare
	OpCmp
	OpCast
	OpSqrt

	// Checked arithmetic: inputs (a, b, SaveState). Deoptimizes on overflow.
	OpAddOverflowCheck
	OpSubOverflowCheck

	// Runtime and memory.
	OpSaveState
	OpSafePoint
	OpNullCheck
	OpNewObject
	OpNewArray
	OpLoadArray
	OpStoreArray
	OpCallStatic

	// Control flow. Each ends its block.
	OpIf
	OpIfImm
	OpReturn
	OpReturnVoid

	opCount
)

type opFlags uint16

const (
	flagTerminator opFlags = 1 << iota
	flagCall
	flagAlloc
	flagCanDeopt
	flagNoDCE
	flagCommutative
)

type opInfo struct {
	name  string
	flags opFlags
}

var opTable = [opCount]opInfo{
	OpInvalid:          {"Invalid", 0},
	OpConstant:         {"Constant", 0},
	OpParameter:        {"Parameter", 0},
	OpNullPtr:          {"NullPtr", 0},
	OpLoadImmediate:    {"LoadImmediate", 0},
	OpPhi:              {"Phi", 0},
	OpNeg:              {"Neg", 0},
	OpAbs:              {"Abs", 0},
	OpNot:              {"Not", 0},
	OpAdd:              {"Add", flagCommutative},
	OpSub:              {"Sub", 0},
	OpMul:              {"Mul", flagCommutative},
	OpDiv:              {"Div", 0},
	OpMod:              {"Mod", 0},
	OpMin:              {"Min", flagCommutative},
	OpMax:              {"Max", flagCommutative},
	OpShl:              {"Shl", 0},
	OpShr:              {"Shr", 0},
	OpAShr:             {"AShr", 0},
	OpAnd:              {"And", flagCommutative},
	OpOr:               {"Or", flagCommutative},
	OpXor:              {"Xor", flagCommutative},
	OpCompare:          {"Compare", 0},
	OpCmp:              {"Cmp", 0},
	OpCast:             {"Cast", 0},
	OpSqrt:             {"Sqrt", 0},
	OpAddOverflowCheck: {"AddOverflowCheck", flagCanDeopt | flagNoDCE},
	OpSubOverflowCheck: {"SubOverflowCheck", flagCanDeopt | flagNoDCE},
	OpSaveState:        {"SaveState", 0},
	OpSafePoint:        {"SafePoint", flagNoDCE},
	OpNullCheck:        {"NullCheck", flagCanDeopt | flagNoDCE},
	OpNewObject:        {"NewObject", flagAlloc | flagNoDCE},
	OpNewArray:         {"NewArray", flagAlloc | flagNoDCE},
	OpLoadArray:        {"LoadArray", 0},
	OpStoreArray:       {"StoreArray", flagNoDCE},
	OpCallStatic:       {"CallStatic", flagCall | flagNoDCE},
	OpIf:               {"If", flagTerminator | flagNoDCE},
	OpIfImm:            {"IfImm", flagTerminator | flagNoDCE},
	OpReturn:           {"Return", flagTerminator | flagNoDCE},
	OpReturnVoid:       {"ReturnVoid", flagTerminator | flagNoDCE},
}

func (o Op) String() string {
	if o < opCount {
		return opTable[o].name
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// ParseOp parses an opcode name as printed by String.
func ParseOp(s string) (Op, error) {
	for i := OpInvalid + 1; i < opCount; i++ {
		if opTable[i].name == s {
			return i, nil
		}
	}
	return OpInvalid, fmt.Errorf("unknown opcode %q", s)
}

// IsTerminator reports whether o must be the last instruction of a block.
func (o Op) IsTerminator() bool { return opTable[o].flags&flagTerminator != 0 }

// IsCall reports whether o transfers control to another method.
func (o Op) IsCall() bool { return opTable[o].flags&flagCall != 0 }

// IsAllocation reports whether o produces a fresh heap object.
func (o Op) IsAllocation() bool { return opTable[o].flags&flagAlloc != 0 }

// CanDeoptimize reports whether o may leave compiled code through its
// SaveState.
func (o Op) CanDeoptimize() bool { return opTable[o].flags&flagCanDeopt != 0 }

// HasSideEffects reports whether o must be kept even when it has no users.
func (o Op) HasSideEffects() bool { return opTable[o].flags&flagNoDCE != 0 }

// IsCommutative reports whether the two operands of o may be swapped.
func (o Op) IsCommutative() bool { return opTable[o].flags&flagCommutative != 0 }

// IsConstLike reports whether o produces a value known at compile time
// without inputs and lives in the entry block.
func (o Op) IsConstLike() bool {
	return o == OpConstant || o == OpParameter || o == OpNullPtr || o == OpLoadImmediate
}
