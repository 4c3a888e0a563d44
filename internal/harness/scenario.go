package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ssaopt/internal/config"
	"github.com/roach88/ssaopt/internal/interp"
	"github.com/roach88/ssaopt/internal/ir"
)

// Scenario describes one optimizer test: what to load, how to optimize it
// and what must hold afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Graph is the path to the graph file. Relative paths are resolved
	// against the scenario file's directory by LoadScenario.
	Graph string `yaml:"graph"`

	// Passes overrides the pass list. Empty means fold then unroll.
	Passes []string `yaml:"passes,omitempty"`

	// Unroll overrides individual unroll settings.
	Unroll *UnrollOverrides `yaml:"unroll,omitempty"`

	// Runs are executions compared between the input and optimized graph.
	Runs []RunStep `yaml:"runs"`

	// Assertions validate the event log and the optimized graph.
	// Supported types: event_contains, event_count, op_count, loop_count,
	// graph_changed.
	Assertions []Assertion `yaml:"assertions"`

	// RunID is an optional fixed run ID. If empty, the run is recorded as
	// "test-run-default".
	RunID string `yaml:"run_id,omitempty"`
}

// UnrollOverrides replaces the unroll settings that are present.
type UnrollOverrides struct {
	Factor              *uint32 `yaml:"factor,omitempty"`
	InstLimit           *uint32 `yaml:"inst_limit,omitempty"`
	UnrollWithCalls     *bool   `yaml:"unroll_with_calls,omitempty"`
	UnrollWithSideExits *bool   `yaml:"unroll_with_side_exits,omitempty"`
}

// RunStep is one execution with concrete arguments.
type RunStep struct {
	// Args are the parameter values in declaration order. Each is brought
	// into the canonical form of its parameter type.
	Args []int64 `yaml:"args"`

	// Want is the expected return value, if any.
	Want *int64 `yaml:"want,omitempty"`

	// Fault is the expected fault code, if the execution must not return.
	Fault string `yaml:"fault,omitempty"`
}

// Assertion validates the event log or the optimized graph.
type Assertion struct {
	// Type specifies the assertion type:
	// - "event_contains": an event with the given fields was recorded
	// - "event_count": exactly Count events match Pass and Kind
	// - "op_count": the optimized graph holds Count instructions of Op
	// - "loop_count": the optimized graph has Count loops
	// - "graph_changed": the fingerprint changed, or not, per Value
	Type string `yaml:"type"`

	// Pass and Kind filter events (event_contains, event_count).
	Pass string `yaml:"pass,omitempty"`
	Kind string `yaml:"kind,omitempty"`

	// Subject, Detail and Factor must match exactly when set
	// (event_contains).
	Subject string `yaml:"subject,omitempty"`
	Detail  string `yaml:"detail,omitempty"`
	Factor  uint32 `yaml:"factor,omitempty"`

	// Op is the opcode name (op_count).
	Op string `yaml:"op,omitempty"`

	// Count is the expected number (event_count, op_count, loop_count).
	Count *int `yaml:"count,omitempty"`

	// Value is the expected outcome (graph_changed).
	Value *bool `yaml:"value,omitempty"`
}

// Assertion type constants.
const (
	AssertEventContains = "event_contains"
	AssertEventCount    = "event_count"
	AssertOpCount       = "op_count"
	AssertLoopCount     = "loop_count"
	AssertGraphChanged  = "graph_changed"
)

// LoadScenario reads and parses a scenario YAML file, resolving the graph
// path against the scenario's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving a relative graph path against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Graph != "" && !filepath.IsAbs(scenario.Graph) && basePath != "" {
		scenario.Graph = filepath.Join(basePath, scenario.Graph)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Graph == "" {
		return fmt.Errorf("graph is required")
	}

	if len(s.Runs) == 0 && len(s.Assertions) == 0 {
		return fmt.Errorf("a scenario needs at least one run or assertion")
	}

	for i, r := range s.Runs {
		if r.Want != nil && r.Fault != "" {
			return fmt.Errorf("run %d: want and fault are mutually exclusive", i)
		}
		if r.Fault != "" && !knownFault(interp.FaultCode(r.Fault)) {
			return fmt.Errorf("run %d: unknown fault %q", i, r.Fault)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertion %d: %w", i, err)
		}
	}

	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertEventContains:
		if a.Pass == "" && a.Kind == "" && a.Subject == "" && a.Detail == "" {
			return fmt.Errorf("event_contains requires at least one of pass, kind, subject or detail")
		}
	case AssertEventCount:
		if a.Count == nil {
			return fmt.Errorf("event_count requires count")
		}
	case AssertOpCount:
		if a.Count == nil {
			return fmt.Errorf("op_count requires count")
		}
		if _, err := ir.ParseOp(a.Op); err != nil {
			return fmt.Errorf("op_count: %w", err)
		}
	case AssertLoopCount:
		if a.Count == nil {
			return fmt.Errorf("loop_count requires count")
		}
	case AssertGraphChanged:
		if a.Value == nil {
			return fmt.Errorf("graph_changed requires value")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func knownFault(c interp.FaultCode) bool {
	switch c {
	case interp.FaultDeoptimize, interp.FaultStepLimit, interp.FaultNullPointer,
		interp.FaultOutOfBounds, interp.FaultDivideByZero, interp.FaultMalformed:
		return true
	}
	return false
}

// passConfig returns the default configuration with the scenario's
// overrides applied.
func (s *Scenario) passConfig() config.PassConfig {
	cfg := config.Default()
	if len(s.Passes) > 0 {
		cfg.Passes = s.Passes
	}
	if o := s.Unroll; o != nil {
		if o.Factor != nil {
			cfg.Unroll.Factor = *o.Factor
		}
		if o.InstLimit != nil {
			cfg.Unroll.InstLimit = *o.InstLimit
		}
		if o.UnrollWithCalls != nil {
			cfg.Unroll.UnrollWithCalls = *o.UnrollWithCalls
		}
		if o.UnrollWithSideExits != nil {
			cfg.Unroll.UnrollWithSideExits = *o.UnrollWithSideExits
		}
	}
	return cfg
}
