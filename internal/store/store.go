package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// MemoryPath opens a private in-memory event log, as used by the harness.
const MemoryPath = ":memory:"

// pragma is a connection setting together with the value SQLite reports
// back once it is in effect.
type pragma struct {
	name  string
	value string
	want  string
}

// filePragmas configure on-disk logs. In-memory logs skip journal_mode,
// which SQLite pins to "memory" for them.
var filePragmas = []pragma{
	{"journal_mode", "WAL", "wal"},
	{"synchronous", "NORMAL", "1"},
	{"busy_timeout", "5000", "5000"},
	{"foreign_keys", "ON", "1"},
}

// migration upgrades the schema to version.
type migration struct {
	version int
	stmt    string
}

// migrations run in order on top of schema.sql; user_version records the
// last one applied. Indexes live here rather than in schema.sql so that
// logs written by older builds gain them on open.
var migrations = []migration{
	{1, `CREATE INDEX IF NOT EXISTS idx_runs_graph ON runs(graph)`},
	{2, `CREATE INDEX IF NOT EXISTS idx_events_run_kind ON events(run_id, kind)`},
}

// SchemaVersion is the user_version of a fully migrated log.
var SchemaVersion = migrations[len(migrations)-1].version

// Store is a SQLite pass-event log: one row per pipeline run and one per
// pass decision.
type Store struct {
	db *sql.DB
}

// Open opens the event log at path, creating the file and schema when they
// do not exist yet. Opening an existing log applies pending migrations.
//
// The pool is limited to one connection: SQLite has a single writer, and
// an in-memory log exists only on the connection that created it.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.init(path == MemoryPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("open event log %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) init(memory bool) error {
	if err := s.db.Ping(); err != nil {
		return err
	}
	for _, p := range filePragmas {
		if memory && p.name == "journal_mode" {
			continue
		}
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			return fmt.Errorf("set %s: %w", p.name, err)
		}
		if err := s.verifyPragma(p.name, p.want); err != nil {
			return err
		}
	}
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return s.migrate()
}

// migrate applies every migration newer than user_version, each in its
// own transaction together with the version bump.
func (s *Store) migrate() error {
	version, err := s.userVersion()
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("migrate to v%d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate to v%d: %w", m.version, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate to v%d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migrate to v%d: %w", m.version, err)
		}
	}
	return nil
}

func (s *Store) userVersion() (int, error) {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return version, nil
}

// Close closes the database. Closing a Store twice is harmless.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying database for ad-hoc queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// verifyPragma reports an error unless pragma name reads back as want.
func (s *Store) verifyPragma(name, want string) error {
	var got string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&got); err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if !strings.EqualFold(got, want) {
		return fmt.Errorf("%s = %q, want %q", name, got, want)
	}
	return nil
}
