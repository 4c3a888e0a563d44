package store

// Pass names recorded in Event.Pass.
const (
	PassConstFold = "constfold"
	PassUnroll    = "unroll"
)

// Event kinds.
const (
	// KindFold records one instruction replaced by a constant or an
	// existing value.
	KindFold = "fold"
	// KindUnroll records one loop rewritten by the unroller.
	KindUnroll = "unroll"
	// KindSkip records a loop the unroller looked at and left alone.
	KindSkip = "skip"
)

// Event is one decision taken by a pass.
//
// Passes fill Pass, Kind, Subject, Detail and Factor. RunID and Seq are
// stamped by the pipeline before the event is written.
type Event struct {
	RunID   string `json:"run_id"`
	Seq     int64  `json:"seq"`
	Pass    string `json:"pass"`
	Kind    string `json:"kind"`
	Subject string `json:"subject"`
	Detail  string `json:"detail,omitempty"`
	Factor  uint32 `json:"factor,omitempty"`
}

// EventSink receives events as a pass produces them.
type EventSink interface {
	Record(Event) error
}

// Buffer is an in-memory EventSink. Passes never do I/O themselves; the
// pipeline hands them a Buffer and flushes it with WriteEvents.
//
// Buffer is not safe for concurrent use.
type Buffer struct {
	events []Event
}

// Record appends e.
func (b *Buffer) Record(e Event) error {
	b.events = append(b.events, e)
	return nil
}

// Events returns the recorded events in order.
func (b *Buffer) Events() []Event { return b.events }

// Len returns the number of recorded events.
func (b *Buffer) Len() int { return len(b.events) }

// Reset drops every recorded event.
func (b *Buffer) Reset() { b.events = nil }

// Run describes one pipeline invocation over one graph.
type Run struct {
	ID     string `json:"id"`
	Graph  string `json:"graph"`
	Passes string `json:"passes"`
	// Config is the effective pass configuration as JSON.
	Config  string `json:"config"`
	Before  string `json:"fingerprint_before"`
	After   string `json:"fingerprint_after"`
	Changed bool   `json:"changed"`
}
