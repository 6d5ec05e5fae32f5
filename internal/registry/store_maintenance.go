package registry

import (
	"context"
	"fmt"
	"time"
)

// FailInterrupted fails over every non-terminal job. Called at daemon
// startup: the registry outlives the process as a file, but orchestrator
// executions do not, so anything mid-pipeline after a restart can never
// finish and must become visible as failed.
func (s *Store) FailInterrupted(ctx context.Context, detail string) (int64, error) {
	if detail == "" {
		detail = InterruptedDetail
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, error_detail = ?, updated_at = ?
         WHERE status NOT IN (?, ?)`,
		StatusFailed,
		detail,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusCompleted,
		StatusFailed,
	)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted jobs: %w", err)
	}
	return res.RowsAffected()
}

// ClearTerminal removes completed and failed jobs last updated before the
// cutoff. The retention sweep uses this to bound registry growth.
func (s *Store) ClearTerminal(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM jobs WHERE status IN (?, ?) AND updated_at < ?`,
		StatusCompleted,
		StatusFailed,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("clear terminal jobs: %w", err)
	}
	return res.RowsAffected()
}

// Remove deletes a job by identifier.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}
