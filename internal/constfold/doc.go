// Package constfold replaces instructions whose value is known at compile
// time with constants or with existing values.
//
// FoldConstant handles one instruction. Run sweeps a whole graph until
// nothing more folds. Neither removes instructions: a folded instruction
// keeps its inputs and is left for dead-code elimination.
//
// Arithmetic is bit-exact for the target: integers wrap at their declared
// width, signed division of the minimum value by -1 yields the minimum
// value, floats follow IEEE-754 with NaN payloads and signed zeros kept.
// The numeric helpers (Unary, Binary, Compare, ThreeWay, Cast) are
// exported so the interpreter evaluates instructions the same way.
//
// Opcodes outside the IR's closed set make FoldConstant panic.
package constfold
