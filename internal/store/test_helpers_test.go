package store

import (
	"context"
	"path/filepath"
	"testing"
)

// createTestStore opens a fresh database under t.TempDir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun writes a run with minimal required fields.
func createTestRun(t *testing.T, s *Store, id, graph string) Run {
	t.Helper()
	run := Run{
		ID:     id,
		Graph:  graph,
		Passes: "constfold,unroll",
		Before: "fp-before",
	}
	if err := s.WriteRun(context.Background(), run); err != nil {
		t.Fatalf("WriteRun() failed: %v", err)
	}
	return run
}

// createTestEvent builds an event with minimal required fields.
func createTestEvent(runID string, seq int64, kind, subject string) Event {
	return Event{
		RunID:   runID,
		Seq:     seq,
		Pass:    PassConstFold,
		Kind:    kind,
		Subject: subject,
	}
}
