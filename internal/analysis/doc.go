// Package analysis derives facts from an ir.Graph without changing its
// semantics: dominators, the loop tree, countable-loop recognition and a
// structural checker.
//
// Results are snapshots. Any edit to the CFG invalidates them, and passes
// recompute what they need after each transformation.
//
// Check error codes live in C100-C199 (see errors.go).
package analysis
