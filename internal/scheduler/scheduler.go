package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/yourorg/clipqueue/internal/domain"
	"github.com/yourorg/clipqueue/internal/ratelimit"
)

// JobStore is the slice of the queue store the scheduler needs. Claiming
// is the slot reservation: a claimed job is already in downloading state
// before its worker goroutine starts.
type JobStore interface {
	CountByStatus(ctx context.Context, status domain.Status) (int, error)
	ClaimPending(ctx context.Context, limit int) ([]domain.Job, error)
	RecalculatePositions(ctx context.Context) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) (bool, error)
	ArchiveAndRemove(ctx context.Context, id uuid.UUID) error
}

// Processor runs one dispatched job to a terminal, archived state.
type Processor interface {
	Process(ctx context.Context, job domain.Job)
}

// Gauges receives queue occupancy updates.
type Gauges interface {
	SetQueueSize(n int)
}

// Scheduler polls the queue on a fixed tick and dispatches claimed jobs to
// fire-and-forget workers, bounded by MaxConcurrent. The bound is enforced
// twice: by the downloading count in the store and by the Redis inflight
// SET, whichever admits less.
type Scheduler struct {
	Store         JobStore
	Processor     Processor
	Redis         *redis.Client
	Gauges        Gauges
	MaxConcurrent int
	Tick          time.Duration
	Logger        *slog.Logger

	wg            sync.WaitGroup
	startDone     chan struct{}
	startDoneOnce sync.Once
}

func New(store JobStore, proc Processor, rc *redis.Client, gauges Gauges,
	maxConcurrent int, tick time.Duration, logger *slog.Logger) *Scheduler {
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}
	return &Scheduler{
		Store:         store,
		Processor:     proc,
		Redis:         rc,
		Gauges:        gauges,
		MaxConcurrent: maxConcurrent,
		Tick:          tick,
		Logger:        logger,
		startDone:     make(chan struct{}),
	}
}

// Start runs the dispatch loop until ctx is canceled. The loop itself never
// blocks on worker completion; workers are tracked only for shutdown drain.
func (s *Scheduler) Start(ctx context.Context) {
	defer s.startDoneOnce.Do(func() { close(s.startDone) })

	s.Logger.Info("scheduler starting",
		"max_concurrent", s.MaxConcurrent, "tick", s.Tick)

	ticker := time.NewTicker(s.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.tick(ctx); err != nil && ctx.Err() == nil {
				s.Logger.Error("scheduler tick failed", "err", err)
			}
		}
	}
}

// DrainAndWait blocks until the dispatch loop has exited and every
// in-flight worker has finished, or until the caller's deadline.
func (s *Scheduler) DrainAndWait(ctx context.Context) error {
	select {
	case <-s.startDone:
	case <-ctx.Done():
		return ctx.Err()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) tick(ctx context.Context) error {
	downloading, err := s.Store.CountByStatus(ctx, domain.StatusDownloading)
	if err != nil {
		return fmt.Errorf("count downloading: %w", err)
	}

	free := s.MaxConcurrent - downloading
	if s.Redis != nil {
		// The inflight SET is the structural bound: it covers workers that
		// are still running even if the store already shows them terminal.
		inflight, err := ratelimit.InflightCount(ctx, s.Redis)
		if err != nil {
			s.Logger.Warn("inflight count failed; using store count only", "err", err)
		} else if byInflight := s.MaxConcurrent - int(inflight); byInflight < free {
			free = byInflight
		}
	}
	if free <= 0 {
		s.Logger.Debug("no free slots", "downloading", downloading)
		return nil
	}

	jobs, err := s.Store.ClaimPending(ctx, free)
	if err != nil {
		return fmt.Errorf("claim pending: %w", err)
	}

	for _, job := range jobs {
		s.dispatch(ctx, job)
	}

	if len(jobs) > 0 {
		if err := s.Store.RecalculatePositions(ctx); err != nil {
			return err
		}
		s.Logger.Info("dispatched batch",
			"count", len(jobs), "free_slots", free)
	}

	if s.Gauges != nil {
		queued, err := s.Store.CountByStatus(ctx, domain.StatusQueued)
		if err == nil {
			s.Gauges.SetQueueSize(queued)
		}
	}
	return nil
}

func (s *Scheduler) dispatch(ctx context.Context, job domain.Job) {
	if s.Redis != nil {
		if err := ratelimit.ClaimInflight(ctx, s.Redis, job.ID.String()); err != nil {
			s.Logger.Warn("inflight claim failed", "job_id", job.ID, "err", err)
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.releaseInflight(job.ID)
		defer s.recoverWorker(job)

		s.Logger.Debug("worker started", "job_id", job.ID)
		s.Processor.Process(ctx, job)
	}()
}

func (s *Scheduler) releaseInflight(id uuid.UUID) {
	if s.Redis == nil {
		return
	}
	// Release must survive caller cancellation or the slot stays occupied.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ratelimit.ReleaseInflight(ctx, s.Redis, id.String()); err != nil {
		s.Logger.Warn("inflight release failed", "job_id", id, "err", err)
	}
}

// recoverWorker is the last-resort net under the processor: whatever a
// worker did, the job must not remain in downloading. The processor
// normally archives on its own; UpdateStatus returning false means the job
// is already gone and there is nothing left to do.
func (s *Scheduler) recoverWorker(job domain.Job) {
	r := recover()
	if r == nil {
		return
	}
	s.Logger.Error("worker panicked", "job_id", job.ID, "panic", r)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	updated, err := s.Store.UpdateStatus(ctx, job.ID, domain.StatusFailed)
	if err != nil {
		s.Logger.Error("failed to mark panicked job failed", "job_id", job.ID, "err", err)
		return
	}
	if !updated {
		return
	}
	if err := s.Store.ArchiveAndRemove(ctx, job.ID); err != nil {
		s.Logger.Error("failed to archive panicked job", "job_id", job.ID, "err", err)
	}
}
