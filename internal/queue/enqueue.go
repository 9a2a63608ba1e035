package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/yourorg/clipqueue/internal/domain"
)

// EnqueueOptions describes a single submission.
type EnqueueOptions struct {
	UserID    int64
	MessageID int64
	URL       string
	Title     string
}

// insertSQL assigns the job's position in the same statement that inserts
// it: current queued count + 1. Duplicate (user, URL) submissions are
// allowed; the orchestrator's cache re-check absorbs them later.
const insertSQL = `
INSERT INTO download_queue
    (id, user_id, message_id, video_url, video_title, status, queue_position)
VALUES ($1, $2, $3, $4, $5, 'queued',
    (SELECT COUNT(*) + 1 FROM download_queue WHERE status = 'queued'))
RETURNING queue_position, created_at, updated_at`

// Enqueue submits a job and returns it with its assigned position.
func (s *Store) Enqueue(ctx context.Context, opts EnqueueOptions) (domain.Job, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return domain.Job{}, fmt.Errorf("source url is required")
	}

	job := domain.Job{
		ID:        uuid.New(),
		UserID:    opts.UserID,
		MessageID: opts.MessageID,
		URL:       opts.URL,
		Title:     opts.Title,
		Status:    domain.StatusQueued,
	}

	err := s.Pool.QueryRow(ctx, insertSQL,
		job.ID, job.UserID, job.MessageID, job.URL, job.Title,
	).Scan(&job.Position, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return domain.Job{}, fmt.Errorf("enqueue: %w", err)
	}
	return job, nil
}
