package store

import (
	"context"
	"fmt"
)

// WriteRun inserts a run record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - writing the same run ID
// twice keeps the first record.
func (s *Store) WriteRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, graph, passes, config, fingerprint_before, fingerprint_after, changed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Graph,
		run.Passes,
		configOrEmpty(run.Config),
		run.Before,
		run.After,
		run.Changed,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// FinishRun records the outcome of a run written earlier with WriteRun.
func (s *Store) FinishRun(ctx context.Context, id, after string, changed bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET fingerprint_after = ?, changed = ? WHERE id = ?
	`, after, changed, id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrNotFound)
	}
	return nil
}

// WriteEvents inserts events in one transaction. Every event must carry the
// ID of a run already written and a seq unique within that run; duplicates
// of (run_id, seq) are ignored.
func (s *Store) WriteEvents(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write events: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events
		(run_id, seq, pass, kind, subject, detail, factor)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("write events: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.ExecContext(ctx, e.RunID, e.Seq, e.Pass, e.Kind, e.Subject, e.Detail, e.Factor); err != nil {
			return fmt.Errorf("write event %s/%d: %w", e.RunID, e.Seq, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write events: %w", err)
	}
	return nil
}

func configOrEmpty(c string) string {
	if c == "" {
		return "{}"
	}
	return c
}
