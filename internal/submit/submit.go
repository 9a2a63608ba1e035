package submit

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/yourorg/clipqueue/internal/domain"
	"github.com/yourorg/clipqueue/internal/queue"
	"github.com/yourorg/clipqueue/internal/ratelimit"
)

// Admitter is the rate-limiting admission gate.
type Admitter interface {
	Admit(ctx context.Context, userID int64) (ratelimit.Result, error)
}

// Enqueuer accepts admitted jobs into the queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, opts queue.EnqueueOptions) (domain.Job, error)
}

// Counters records admission denials.
type Counters interface {
	RecordRateLimited()
}

// AdmissionError reports a rate-limit denial. Terminal for the submission;
// the caller surfaces RetryAfter to the submitter.
type AdmissionError struct {
	RetryAfter time.Duration
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s",
		ratelimit.FormatRetryAfter(e.RetryAfter))
}

// Service runs a submission through the admission gate into the queue.
type Service struct {
	Limiter  Admitter
	Queue    Enqueuer
	Counters Counters
	Logger   *slog.Logger
}

func New(limiter Admitter, q Enqueuer, counters Counters, logger *slog.Logger) *Service {
	return &Service{Limiter: limiter, Queue: q, Counters: counters, Logger: logger}
}

// Submit validates the URL, checks the submitter's rate limit, and
// enqueues the job. Duplicate URLs are accepted; the orchestrator's cache
// re-check collapses them at delivery time.
func (s *Service) Submit(ctx context.Context, userID, messageID int64, rawURL, title string) (domain.Job, error) {
	if err := validateURL(rawURL); err != nil {
		return domain.Job{}, err
	}

	res, err := s.Limiter.Admit(ctx, userID)
	if err != nil {
		return domain.Job{}, fmt.Errorf("admission check: %w", err)
	}
	if !res.Allowed {
		if s.Counters != nil {
			s.Counters.RecordRateLimited()
		}
		s.Logger.Warn("submission denied by rate limit",
			"user_id", userID, "count", res.Count, "retry_after", res.RetryAfter)
		return domain.Job{}, &AdmissionError{RetryAfter: res.RetryAfter}
	}

	job, err := s.Queue.Enqueue(ctx, queue.EnqueueOptions{
		UserID:    userID,
		MessageID: messageID,
		URL:       rawURL,
		Title:     title,
	})
	if err != nil {
		return domain.Job{}, err
	}

	s.Logger.Info("job submitted",
		"job_id", job.ID, "user_id", userID,
		"url", job.URL, "position", job.Position)
	return job, nil
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid url scheme: %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid url: missing host")
	}
	return nil
}
