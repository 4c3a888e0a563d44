package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"testing"
)

func TestOpen_CreatesLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("event log was not created: %v", err)
	}
	if got := tableNames(t, s.db); !slices.Equal(got, []string{"events", "runs"}) {
		t.Errorf("tables = %v, want [events runs]", got)
	}
}

func TestOpen_KeepsRecordedRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	createTestRun(t, s, "run-1", "sum")
	if err := s.WriteEvents(context.Background(), []Event{createTestEvent("run-1", 1, KindFold, "v3")}); err != nil {
		t.Fatalf("WriteEvents() failed: %v", err)
	}
	s.Close()

	for i := 0; i < 2; i++ {
		s, err = Open(path)
		if err != nil {
			t.Fatalf("reopen %d failed: %v", i, err)
		}
		n, err := s.CountEvents(context.Background(), "run-1")
		if err != nil {
			t.Fatalf("CountEvents() failed: %v", err)
		}
		if n[KindFold] != 1 {
			t.Errorf("reopen %d: fold count = %d, want 1", i, n[KindFold])
		}
		s.Close()
	}
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(MemoryPath)
	if err != nil {
		t.Fatalf("Open(%q) failed: %v", MemoryPath, err)
	}
	defer s.Close()

	// The schema must survive on the pool's only connection.
	createTestRun(t, s, "run-1", "arith")
	if _, err := s.ReadRun(context.Background(), "run-1"); err != nil {
		t.Errorf("ReadRun() failed: %v", err)
	}
	if err := s.verifyPragma("journal_mode", "memory"); err != nil {
		t.Error(err)
	}
	if err := s.verifyPragma("foreign_keys", "1"); err != nil {
		t.Error(err)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing", "runs.db")); err == nil {
		t.Error("expected error for a path in a missing directory")
	}
}

func TestClose_Twice(t *testing.T) {
	s := createTestStore(t)
	if err := s.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
	_ = s.Close()

	if err := (&Store{}).Close(); err != nil {
		t.Errorf("Close() without a database: %v", err)
	}
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	for _, p := range filePragmas {
		t.Run(p.name, func(t *testing.T) {
			if err := s.verifyPragma(p.name, p.want); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestVerifyPragma_Mismatch(t *testing.T) {
	s := createTestStore(t)

	err := s.verifyPragma("busy_timeout", "1")
	if err == nil {
		t.Fatal("expected mismatch error")
	}
	if got, want := err.Error(), `busy_timeout = "5000", want "1"`; got != want {
		t.Errorf("error = %q, want %q", got, want)
	}
}

func TestSchema_Columns(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		table string
		want  []string
	}{
		{"runs", []string{"id", "graph", "passes", "config", "fingerprint_before", "fingerprint_after", "changed"}},
		{"events", []string{"id", "run_id", "seq", "pass", "kind", "subject", "detail", "factor"}},
	}
	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			if got := tableColumns(t, s.db, tt.table); !slices.Equal(got, tt.want) {
				t.Errorf("columns = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSchema_Migrated(t *testing.T) {
	s := createTestStore(t)

	if err := s.verifyPragma("user_version", strconv.Itoa(SchemaVersion)); err != nil {
		t.Error(err)
	}
	for _, idx := range []string{"idx_events_run_seq", "idx_runs_graph", "idx_events_run_kind"} {
		if !slices.Contains(indexNames(t, s.db), idx) {
			t.Errorf("missing index %s", idx)
		}
	}
}

func TestMigrate_FromVersionOne(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	// Simulate a log written before the kind index existed.
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	createTestRun(t, s, "run-1", "sum")
	if _, err := s.db.Exec("DROP INDEX idx_events_run_kind"); err != nil {
		t.Fatalf("drop index: %v", err)
	}
	if _, err := s.db.Exec("PRAGMA user_version = 1"); err != nil {
		t.Fatalf("reset user_version: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	if !slices.Contains(indexNames(t, s.db), "idx_events_run_kind") {
		t.Error("migration did not add idx_events_run_kind")
	}
	if v, err := s.userVersion(); err != nil || v != SchemaVersion {
		t.Errorf("user_version = %d, %v; want %d", v, err, SchemaVersion)
	}
	if _, err := s.ReadRun(context.Background(), "run-1"); err != nil {
		t.Errorf("run lost by migration: %v", err)
	}
}

func TestMigrations_Ordered(t *testing.T) {
	for i, m := range migrations {
		if m.version != i+1 {
			t.Errorf("migration %d has version %d, want %d", i, m.version, i+1)
		}
	}
}

func TestConstraint_EventsRequireRun(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`
		INSERT INTO events (run_id, seq, pass, kind, subject)
		VALUES ('missing', 1, 'constfold', 'fold', 'v1')
	`)
	if err == nil {
		t.Error("expected foreign key violation for unknown run")
	}
}

func TestDB_Usable(t *testing.T) {
	s := createTestStore(t)
	if err := s.DB().Ping(); err != nil {
		t.Errorf("DB() not usable: %v", err)
	}
}

func tableNames(t *testing.T, db *sql.DB) []string {
	t.Helper()
	return queryNames(t, db, "SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
}

func indexNames(t *testing.T, db *sql.DB) []string {
	t.Helper()
	return queryNames(t, db, "SELECT name FROM sqlite_master WHERE type='index' AND name NOT LIKE 'sqlite_%'")
}

func tableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	return queryNames(t, db, "SELECT name FROM pragma_table_info('"+table+"') ORDER BY cid")
}

func queryNames(t *testing.T, db *sql.DB, query string) []string {
	t.Helper()

	rows, err := db.Query(query)
	if err != nil {
		t.Fatalf("query %q: %v", query, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan: %v", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	return names
}
