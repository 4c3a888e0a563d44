package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/ssaopt/internal/analysis"
	"github.com/roach88/ssaopt/internal/ir"
	"github.com/roach88/ssaopt/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string        // Assertion type for categorization
	Expected string        // Human-readable expected outcome
	Actual   string        // Human-readable actual outcome
	Events   []store.Event // Full event log for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Events) > 0 {
		fmt.Fprintf(&buf, "\nEvents:\n")
		for _, ev := range e.Events {
			fmt.Fprintf(&buf, "  %s\n", formatEvent(ev))
		}
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns one
// message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertEventContains:
		return assertEventContains(result.Events, a)
	case AssertEventCount:
		return assertEventCount(result.Events, a)
	case AssertOpCount:
		return assertOpCount(result.Graph, a)
	case AssertLoopCount:
		return assertLoopCount(result.Graph, a)
	case AssertGraphChanged:
		return assertGraphChanged(result.Changed, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// matches reports whether e agrees with every field a sets.
func matches(e store.Event, a Assertion) bool {
	return (a.Pass == "" || e.Pass == a.Pass) &&
		(a.Kind == "" || e.Kind == a.Kind) &&
		(a.Subject == "" || e.Subject == a.Subject) &&
		(a.Detail == "" || e.Detail == a.Detail) &&
		(a.Factor == 0 || e.Factor == a.Factor)
}

func describeFilter(a Assertion) string {
	var parts []string
	for _, f := range []struct{ name, value string }{
		{"pass", a.Pass},
		{"kind", a.Kind},
		{"subject", a.Subject},
		{"detail", a.Detail},
	} {
		if f.value != "" {
			parts = append(parts, fmt.Sprintf("%s=%q", f.name, f.value))
		}
	}
	if a.Factor != 0 {
		parts = append(parts, fmt.Sprintf("factor=%d", a.Factor))
	}
	if len(parts) == 0 {
		return "any event"
	}
	return "event " + strings.Join(parts, " ")
}

func assertEventContains(events []store.Event, a Assertion) error {
	for _, e := range events {
		if matches(e, a) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertEventContains,
		Expected: describeFilter(a),
		Actual:   "not found in event log",
		Events:   events,
	}
}

func assertEventCount(events []store.Event, a Assertion) error {
	n := 0
	for _, e := range events {
		if matches(e, a) {
			n++
		}
	}
	if n == *a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertEventCount,
		Expected: fmt.Sprintf("%d x %s", *a.Count, describeFilter(a)),
		Actual:   fmt.Sprintf("%d found", n),
		Events:   events,
	}
}

// assertOpCount counts instructions still in the graph, including ones
// made dead by folding.
func assertOpCount(g *ir.Graph, a Assertion) error {
	op, err := ir.ParseOp(a.Op)
	if err != nil {
		return err
	}
	n := 0
	for _, b := range g.Blocks() {
		for _, i := range b.AllInsts() {
			if i.Op() == op {
				n++
			}
		}
	}
	if n == *a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertOpCount,
		Expected: fmt.Sprintf("%d %s instructions", *a.Count, op),
		Actual:   fmt.Sprintf("%d found", n),
	}
}

func assertLoopCount(g *ir.Graph, a Assertion) error {
	n := countLoops(analysis.AnalyzeLoops(g))
	if n == *a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertLoopCount,
		Expected: fmt.Sprintf("%d loops", *a.Count),
		Actual:   fmt.Sprintf("%d found", n),
	}
}

func countLoops(l *ir.Loop) int {
	n := 0
	if !l.Root {
		n++
	}
	for _, inner := range l.Inner {
		n += countLoops(inner)
	}
	return n
}

func assertGraphChanged(changed bool, a Assertion) error {
	if changed == *a.Value {
		return nil
	}
	return &AssertionError{
		Type:     AssertGraphChanged,
		Expected: fmt.Sprintf("changed=%t", *a.Value),
		Actual:   fmt.Sprintf("changed=%t", changed),
	}
}
