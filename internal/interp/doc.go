// Package interp executes an ir.Graph directly. It is the behavioral
// oracle for the passes: a transformed graph must produce the same Result,
// or the same Fault, as the graph it came from.
//
// Arithmetic goes through the constfold helpers, so execution and folding
// agree bit for bit. References are opaque handles: 0 is null, heap
// objects are numbered from 1 in allocation order, and class handles carry
// a tag bit. Checked instructions that fail stop execution with a Fault
// whose code is FaultDeoptimize and whose State holds the values recorded
// by the instruction's SaveState.
package interp
