package harness

import (
	"fmt"

	"github.com/roach88/ssaopt/internal/ir"
	"github.com/roach88/ssaopt/internal/store"
)

// RunOutcome is what one execution of the optimized graph produced.
type RunOutcome struct {
	Args  []int64 `json:"args"`
	Value string  `json:"value,omitempty"`
	Calls int     `json:"calls"`
	Fault string  `json:"fault,omitempty"`
}

func (o RunOutcome) String() string {
	s := fmt.Sprintf("%v => ", o.Args)
	if o.Fault != "" {
		return s + "fault " + o.Fault
	}
	s += o.Value
	if o.Calls > 0 {
		s += fmt.Sprintf(" calls=%d", o.Calls)
	}
	return s
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every run and assertion held.
	Pass bool `json:"pass"`

	// Events is the event log read back from the store, in seq order.
	Events []store.Event `json:"events"`

	// Runs holds one outcome per scenario run, in order.
	Runs []RunOutcome `json:"runs"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Changed reports whether the pipeline changed the graph.
	Changed bool `json:"changed"`

	// Dump is the optimized graph in ir.Dump form.
	Dump string `json:"dump"`

	// Graph is the optimized graph, for graph assertions.
	Graph *ir.Graph `json:"-"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Events: []store.Event{},
		Runs:   []RunOutcome{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
