// Package ir is the SSA intermediate representation shared by the
// optimization passes.
//
// A Graph owns basic blocks and instructions in ID-indexed arenas. Blocks
// keep their phis ahead of ordinary instructions, and phi inputs line up
// positionally with the block's predecessors. Instructions maintain
// def-use lists in both directions, so replacing a value is proportional
// to its number of uses.
//
// Key invariants:
//   - Constants are interned by (type, bits); integer bits are stored in
//     canonical form (see Canonical), floats keep their IEEE pattern
//   - Constants, parameters and the null reference live in the entry block
//   - A block ending in If or IfImm has successors [true, false]; any other
//     block has at most one successor
//   - Returning blocks flow into the exit block, which holds nothing
//
// ir imports nothing internal. Analyses that derive facts from a graph
// (dominators, loops, countable loops, the checker) live in package
// analysis; transformations live in their own packages.
package ir
