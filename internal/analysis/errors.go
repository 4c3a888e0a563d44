package analysis

import (
	"errors"
	"fmt"

	"github.com/roach88/ssaopt/internal/ir"
)

// Graph check error codes (C100-C199)
const (
	ErrUnreachableBlock  = "C101" // block cannot be reached from the entry
	ErrEdgeMismatch      = "C102" // successor and predecessor lists disagree
	ErrSuccessorShape    = "C103" // wrong successor count for the block's terminator
	ErrPhiArity          = "C104" // phi input count differs from predecessor count
	ErrDominance         = "C105" // a use is not dominated by its definition
	ErrDefUse            = "C106" // def-use lists are out of sync
	ErrBackEdge          = "C107" // loop tree disagrees with the CFG
	ErrConstant          = "C108" // constant not canonical or not interned
	ErrDanglingInput     = "C109" // input refers to a removed instruction
	ErrMisplacedInst     = "C110" // instruction in the wrong place
	ErrDuplicateEdge     = "C111" // two edges between the same pair of blocks
	ErrSaveStateRegister = "C112" // SaveState inputs and registers differ in count
)

// CheckError reports one violated graph invariant.
type CheckError struct {
	Code    string     `json:"code"`
	Message string     `json:"message"`
	Block   ir.BlockID `json:"block"`
	Inst    ir.InstID  `json:"inst"`
}

// noID marks a CheckError that does not point at a block or instruction.
const noID = -1

// Error implements the error interface.
func (e *CheckError) Error() string {
	switch {
	case e.Inst != noID:
		return fmt.Sprintf("[%s] bb%d v%d: %s", e.Code, e.Block, e.Inst, e.Message)
	case e.Block != noID:
		return fmt.Sprintf("[%s] bb%d: %s", e.Code, e.Block, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// IsCheckError reports whether err is or wraps a CheckError.
func IsCheckError(err error) bool {
	var ce *CheckError
	return errors.As(err, &ce)
}

func blockError(code string, b *ir.Block, format string, args ...any) CheckError {
	return CheckError{Code: code, Message: fmt.Sprintf(format, args...), Block: b.ID(), Inst: noID}
}

func instError(code string, i *ir.Inst, format string, args ...any) CheckError {
	e := CheckError{Code: code, Message: fmt.Sprintf(format, args...), Block: noID, Inst: i.ID()}
	if i.Block() != nil {
		e.Block = i.Block().ID()
	}
	return e
}
