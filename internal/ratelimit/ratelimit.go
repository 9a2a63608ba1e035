package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yourorg/clipqueue/internal/domain"
)

// Limiter is the per-submitter admission gate: a fixed rolling window
// counter persisted in the rate_limits table. Each Admit runs in a
// transaction holding a row lock on the submitter's counter, so concurrent
// submissions from the same user cannot lose updates.
type Limiter struct {
	Pool        *pgxpool.Pool
	MaxRequests int
	Window      time.Duration
}

func New(pool *pgxpool.Pool, maxRequests int, window time.Duration) *Limiter {
	return &Limiter{Pool: pool, MaxRequests: maxRequests, Window: window}
}

// Result of one admission check. RetryAfter is positive only on denial.
type Result struct {
	Allowed    bool
	Count      int
	RetryAfter time.Duration
}

// Admit checks and updates the submitter's counter. A denial is terminal
// for this call; there are no retries at this layer.
func (l *Limiter) Admit(ctx context.Context, userID int64) (Result, error) {
	return l.admit(ctx, userID, time.Now())
}

func (l *Limiter) admit(ctx context.Context, userID int64, now time.Time) (Result, error) {
	tx, err := l.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var c domain.RateCounter
	c.UserID = userID
	err = tx.QueryRow(ctx, `
		SELECT request_count, window_start, window_end
		FROM rate_limits
		WHERE user_id = $1
		FOR UPDATE`, userID).Scan(&c.RequestCount, &c.WindowStart, &c.WindowEnd)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// First-ever request for this submitter.
		_, err = tx.Exec(ctx, `
			INSERT INTO rate_limits (user_id, request_count, window_start, window_end)
			VALUES ($1, 1, $2, $3)`, userID, now, now.Add(l.Window))
		if err != nil {
			return Result{}, fmt.Errorf("ratelimit insert: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return Result{}, fmt.Errorf("ratelimit commit: %w", err)
		}
		return Result{Allowed: true, Count: 1}, nil

	case err != nil:
		return Result{}, fmt.Errorf("ratelimit select: %w", err)
	}

	res := advance(&c, now, l.MaxRequests, l.Window)
	if res.Allowed {
		_, err = tx.Exec(ctx, `
			UPDATE rate_limits SET
				request_count = $2,
				window_start  = $3,
				window_end    = $4
			WHERE user_id = $1`,
			userID, c.RequestCount, c.WindowStart, c.WindowEnd)
		if err != nil {
			return Result{}, fmt.Errorf("ratelimit update: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Result{}, fmt.Errorf("ratelimit commit: %w", err)
	}
	return res, nil
}

// advance applies one admission attempt to the counter in place. When the
// window has elapsed the counter resets to 1 on a fresh window; otherwise
// the request is admitted while count < max and denied with the time left
// until windowEnd once the cap is reached.
func advance(c *domain.RateCounter, now time.Time, maxRequests int, window time.Duration) Result {
	if !now.Before(c.WindowEnd) {
		c.RequestCount = 1
		c.WindowStart = now
		c.WindowEnd = now.Add(window)
		return Result{Allowed: true, Count: 1}
	}
	if c.RequestCount >= maxRequests {
		return Result{
			Allowed:    false,
			Count:      c.RequestCount,
			RetryAfter: c.WindowEnd.Sub(now),
		}
	}
	c.RequestCount++
	return Result{Allowed: true, Count: c.RequestCount}
}

// Info reports the submitter's current window without mutating it. A
// missing or expired counter reads as a fresh window.
type Info struct {
	Count     int
	Remaining int
	WindowEnd time.Time
}

func (l *Limiter) Info(ctx context.Context, userID int64) (Info, error) {
	now := time.Now()
	var c domain.RateCounter
	err := l.Pool.QueryRow(ctx, `
		SELECT request_count, window_start, window_end
		FROM rate_limits
		WHERE user_id = $1`, userID).Scan(&c.RequestCount, &c.WindowStart, &c.WindowEnd)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && !now.Before(c.WindowEnd)) {
		return Info{Remaining: l.MaxRequests, WindowEnd: now.Add(l.Window)}, nil
	}
	if err != nil {
		return Info{}, fmt.Errorf("ratelimit info: %w", err)
	}
	remaining := l.MaxRequests - c.RequestCount
	if remaining < 0 {
		remaining = 0
	}
	return Info{Count: c.RequestCount, Remaining: remaining, WindowEnd: c.WindowEnd}, nil
}

// Reset clears the submitter's counter.
func (l *Limiter) Reset(ctx context.Context, userID int64) error {
	_, err := l.Pool.Exec(ctx,
		`DELETE FROM rate_limits WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("ratelimit reset: %w", err)
	}
	return nil
}

// FormatRetryAfter renders a denial's wait time for the outcome message.
func FormatRetryAfter(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
