// Package harness runs optimizer scenarios: a graph file, a pass
// configuration, a set of concrete executions and assertions over the
// recorded pass events.
//
// Each scenario runs the pipeline against a fresh in-memory store with a
// fixed run ID, so the event log read back from the store is identical
// from run to run and can be compared against a golden file.
//
// Every execution in a scenario is checked twice. The optimized graph
// must behave exactly as the graph it was loaded from (same value, same
// heap, same number of calls, or the same fault), and, when the step names
// an expected value, that value must come back.
//
// Static calls are answered by a fixed function: the callee number plus
// the sum of the arguments. Scenarios with calls therefore have results
// that depend on what was passed in each call.
//
// Scenario files look like this:
//
//	name: sum_unrolled
//	description: guarded counting loop is unrolled with a remainder
//	graph: ../graphs/sum.yaml
//	unroll:
//	  factor: 4
//	runs:
//	  - {args: [5], want: 10}
//	assertions:
//	  - {type: event_count, pass: unroll, kind: unroll, count: 1}
//
// The graph path is resolved relative to the scenario file.
package harness
