package testutil

// FixedRunIDGenerator returns the same run ID every time.
//
// Pipeline runs stamp every recorded event with a run ID. Pinning it makes
// event logs and golden outputs byte-identical across test runs.
//
// Thread-safety: FixedRunIDGenerator is stateless and safe for concurrent use.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a generator for id. An empty id yields
// "test-run-default".
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate returns the fixed run ID.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}
