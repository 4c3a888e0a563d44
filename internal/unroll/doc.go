// Package unroll replicates the bodies of innermost loops so that fewer
// exit tests run per logical iteration.
//
// Every loop is handled in one of four ways, chosen before the graph is
// touched:
//
//   - full: a countable loop with a small constant trip count becomes
//     straight-line code, or disappears when the count is zero.
//   - constant-tail: a countable loop with a constant bound runs factor
//     copies under one combined test against bound-(factor-1)*step and
//     finishes the leftover iterations in straight-line code.
//   - remainder-loop: the same combined test for a bound only known at run
//     time, guarded against wraparound, followed by a copy of the original
//     loop for the leftovers.
//   - side-exits: every copy keeps its own exit test. This is the fallback
//     for loops that are not countable, whose combined bound could wrap, or
//     whose index update is overflow-checked.
//
// A loop is rewritten completely or not at all. Loops with calls are left
// alone unless Config.UnrollWithCalls is set.
//
// New merge phis of reference type are added to the SaveStates between the
// merge and their uses under ir.VRegBridge, so the collector keeps seeing
// values that used to be visible through a single definition.
package unroll
