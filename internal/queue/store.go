package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yourorg/clipqueue/internal/domain"
)

// Store owns the download_queue and download_history tables. Every mutation
// against a single job is one statement or one transaction, so concurrent
// workers and the scheduler never observe a half-applied transition.
type Store struct {
	Pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

const jobColumns = `id, user_id, message_id, video_url, video_title,
	status, queue_position, created_at, updated_at`

func scanJob(row pgx.Row) (domain.Job, error) {
	var job domain.Job
	var status string
	err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.MessageID,
		&job.URL,
		&job.Title,
		&status,
		&job.Position,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return domain.Job{}, err
	}
	job.Status = domain.Status(status)
	return job, nil
}

func collectJobs(rows pgx.Rows) ([]domain.Job, error) {
	defer rows.Close()
	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// GetByID returns the job, or nil when it no longer exists (archived).
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM download_queue WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return &job, nil
}

func (s *Store) ListByStatus(ctx context.Context, status domain.Status) ([]domain.Job, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+jobColumns+` FROM download_queue
		 WHERE status = $1 ORDER BY created_at ASC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list by status: %w", err)
	}
	return collectJobs(rows)
}

// NextPending returns the oldest queued jobs, up to limit.
func (s *Store) NextPending(ctx context.Context, limit int) ([]domain.Job, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+jobColumns+` FROM download_queue
		 WHERE status = $1 ORDER BY created_at ASC LIMIT $2`,
		string(domain.StatusQueued), limit)
	if err != nil {
		return nil, fmt.Errorf("next pending: %w", err)
	}
	return collectJobs(rows)
}

func (s *Store) CountByStatus(ctx context.Context, status domain.Status) (int, error) {
	var n int
	err := s.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM download_queue WHERE status = $1`,
		string(status)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count by status: %w", err)
	}
	return n, nil
}

// Stats reports the live queue occupancy.
type Stats struct {
	Queued      int
	Downloading int
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.Pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'queued'),
			COUNT(*) FILTER (WHERE status = 'downloading')
		FROM download_queue`).Scan(&st.Queued, &st.Downloading)
	if err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	return st, nil
}
