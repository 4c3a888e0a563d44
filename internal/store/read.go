package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("not found")

// ReadRun returns the run with the given ID.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, graph, passes, config, fingerprint_before, fingerprint_after, changed
		FROM runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

// ReadRuns returns every run, oldest first. Run IDs are UUIDv7, so binary
// ID order is creation order.
//
// Returns an empty slice (not nil) if no runs exist.
func (s *Store) ReadRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, graph, passes, config, fingerprint_before, fingerprint_after, changed
		FROM runs
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the most recent run.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	runs, err := s.ReadRuns(ctx)
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, fmt.Errorf("latest run: %w", ErrNotFound)
	}
	return runs[len(runs)-1], nil
}

// ReadEvents returns the events of a run ordered by seq ASC, id ASC.
//
// Returns an empty slice (not nil) if the run recorded no events.
func (s *Store) ReadEvents(ctx context.Context, runID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, pass, kind, subject, detail, factor
		FROM events
		WHERE run_id = ?
		ORDER BY seq ASC, id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.RunID, &e.Seq, &e.Pass, &e.Kind, &e.Subject, &e.Detail, &e.Factor); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// CountEvents returns the number of events of a run per kind.
func (s *Store) CountEvents(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*)
		FROM events
		WHERE run_id = ?
		GROUP BY kind
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[kind] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var r Run
	err := row.Scan(&r.ID, &r.Graph, &r.Passes, &r.Config, &r.Before, &r.After, &r.Changed)
	return r, err
}
