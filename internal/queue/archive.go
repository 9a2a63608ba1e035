package queue

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/yourorg/clipqueue/internal/domain"
)

// recalcSQL reassigns dense 1..N positions to queued jobs by createdAt.
// A single statement sees one snapshot, so a concurrent enqueue either
// lands before the ranking or after it, never inside it.
const recalcSQL = `
UPDATE download_queue q SET
    queue_position = ranked.pos,
    updated_at     = NOW()
FROM (
    SELECT id, ROW_NUMBER() OVER (ORDER BY created_at ASC) AS pos
    FROM download_queue
    WHERE status = 'queued'
) ranked
WHERE q.id = ranked.id
  AND q.queue_position <> ranked.pos`

// RecalculatePositions runs after every dispatch batch and removal.
func (s *Store) RecalculatePositions(ctx context.Context) error {
	if _, err := s.Pool.Exec(ctx, recalcSQL); err != nil {
		return fmt.Errorf("recalculate positions: %w", err)
	}
	return nil
}

// ArchiveAndRemove snapshots the job's current row into download_history
// and deletes it from the live queue in one transaction, then re-ranks the
// remaining queued jobs. The history row is written from the row itself so
// the archived status is whatever terminal status the job last reached.
func (s *Store) ArchiveAndRemove(ctx context.Context, id uuid.UUID) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("archive begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO download_history
			(user_id, video_url, video_title, status, created_at, completed_at)
		SELECT user_id, video_url, video_title, status, created_at, NOW()
		FROM download_queue
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("archive insert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Already archived by another path; nothing to do.
		return nil
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM download_queue WHERE id = $1`, id); err != nil {
		return fmt.Errorf("archive delete: %w", err)
	}
	if _, err := tx.Exec(ctx, recalcSQL); err != nil {
		return fmt.Errorf("archive recalc: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("archive commit: %w", err)
	}
	return nil
}

// Remove deletes a still-queued job, preventing its future dispatch.
// Jobs already downloading are left alone; there is no mid-download cancel.
func (s *Store) Remove(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
		DELETE FROM download_queue
		WHERE id = $1 AND status = 'queued'`, id)
	if err != nil {
		return false, fmt.Errorf("remove: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	if err := s.RecalculatePositions(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// History returns the most recent archived records for a submitter.
func (s *Store) History(ctx context.Context, userID int64, limit int) ([]domain.HistoryRecord, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, user_id, video_url, video_title, status, created_at, completed_at
		FROM download_history
		WHERE user_id = $1
		ORDER BY completed_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	var recs []domain.HistoryRecord
	for rows.Next() {
		var r domain.HistoryRecord
		var status string
		if err := rows.Scan(&r.ID, &r.UserID, &r.URL, &r.Title,
			&status, &r.CreatedAt, &r.CompletedAt); err != nil {
			return nil, err
		}
		r.Status = domain.Status(status)
		recs = append(recs, r)
	}
	return recs, rows.Err()
}
