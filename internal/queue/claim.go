package queue

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/yourorg/clipqueue/internal/domain"
)

// claimSQL atomically flips up to $1 of the oldest queued jobs to
// downloading. FOR UPDATE SKIP LOCKED keeps a concurrent enqueue or removal
// from blocking the scheduler tick; the status flip in the same statement
// is what reserves the worker slot, so there is no window in which two
// ticks could dispatch the same job.
const claimSQL = `
WITH candidates AS (
    SELECT id FROM download_queue
    WHERE status = 'queued'
    ORDER BY created_at ASC
    LIMIT $1
    FOR UPDATE SKIP LOCKED
)
UPDATE download_queue SET
    status     = 'downloading',
    updated_at = NOW()
FROM candidates
WHERE download_queue.id = candidates.id
RETURNING download_queue.id, download_queue.user_id, download_queue.message_id,
    download_queue.video_url, download_queue.video_title, download_queue.status,
    download_queue.queue_position, download_queue.created_at, download_queue.updated_at`

// ClaimPending transitions up to limit queued jobs to downloading and
// returns them oldest-first. An empty slice is the normal idle result.
func (s *Store) ClaimPending(ctx context.Context, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.Pool.Query(ctx, claimSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("claim pending: %w", err)
	}
	jobs, err := collectJobs(rows)
	if err != nil {
		return nil, err
	}
	// RETURNING row order is unspecified; dispatch order must follow createdAt.
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	return jobs, nil
}

// UpdateStatus sets a job's status. Returns false when the job no longer
// exists, which callers treat as already-archived.
func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE download_queue SET
			status     = $2,
			updated_at = NOW()
		WHERE id = $1`, id, string(status))
	if err != nil {
		return false, fmt.Errorf("update status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
