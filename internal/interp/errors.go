package interp

import (
	"errors"
	"fmt"

	"github.com/roach88/ssaopt/internal/ir"
)

// FaultCode categorizes the ways execution can stop without returning.
type FaultCode string

const (
	// FaultDeoptimize means a checked instruction failed and execution
	// would continue in the interpreter from the instruction's SaveState.
	FaultDeoptimize FaultCode = "DEOPTIMIZE"

	// FaultStepLimit means the step budget ran out.
	FaultStepLimit FaultCode = "STEP_LIMIT"

	// FaultNullPointer means an array access went through null.
	FaultNullPointer FaultCode = "NULL_POINTER"

	// FaultOutOfBounds means an array index was outside the array.
	FaultOutOfBounds FaultCode = "OUT_OF_BOUNDS"

	// FaultDivideByZero means an integer Div or Mod had a zero divisor.
	FaultDivideByZero FaultCode = "DIVIDE_BY_ZERO"

	// FaultMalformed means the graph cannot be executed as built: a
	// missing argument, a block without a way out, an unsupported cast.
	FaultMalformed FaultCode = "MALFORMED"
)

// Fault reports where and why execution stopped.
//
// Faults compare equal under errors.Is when their codes match, so
// errors.Is(err, ErrDeoptimize) holds for any deoptimization.
type Fault struct {
	Code    FaultCode
	Message string
	Inst    ir.InstID

	// State holds the SaveState values at a deoptimization, keyed by
	// virtual register. Bridge entries are left out: they carry no
	// interpreter state.
	State map[ir.VReg]uint64
}

// Sentinels for errors.Is.
var (
	ErrDeoptimize = &Fault{Code: FaultDeoptimize}
	ErrStepLimit  = &Fault{Code: FaultStepLimit}
)

// Error implements the error interface.
func (f *Fault) Error() string {
	if f.Message == "" {
		return string(f.Code)
	}
	return fmt.Sprintf("%s: %s (v%d)", f.Code, f.Message, f.Inst)
}

// Is matches any Fault with the same code.
func (f *Fault) Is(target error) bool {
	t, ok := target.(*Fault)
	return ok && t.Code == f.Code
}

// IsFault reports whether err is or wraps a Fault with the given code.
func IsFault(err error, code FaultCode) bool {
	var f *Fault
	return errors.As(err, &f) && f.Code == code
}

func fault(code FaultCode, i *ir.Inst, format string, args ...any) *Fault {
	return &Fault{Code: code, Message: fmt.Sprintf(format, args...), Inst: i.ID()}
}
