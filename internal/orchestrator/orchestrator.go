package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/yourorg/clipqueue/internal/domain"
	"github.com/yourorg/clipqueue/internal/download"
	"github.com/yourorg/clipqueue/internal/monitor"
)

// Messenger is the external messaging collaborator. The core stores and
// returns its handles but never renders final user copy beyond the failure
// category text.
type Messenger interface {
	SendStatus(ctx context.Context, userID int64, text string) (int64, error)
	UpdateStatus(ctx context.Context, userID, messageID int64, text string) error
	DeleteStatus(ctx context.Context, userID, messageID int64) error
	Deliver(ctx context.Context, userID int64, sinkPath, caption string) (string, error)
	DeliverByHandle(ctx context.Context, userID int64, fileID, caption string) error
}

// JobStore is the slice of the queue store the orchestrator needs.
type JobStore interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) (bool, error)
	ArchiveAndRemove(ctx context.Context, id uuid.UUID) error
}

// ArtifactCache maps source URLs to re-deliverable artifact handles.
type ArtifactCache interface {
	Lookup(ctx context.Context, url string) (*domain.CacheEntry, error)
	Store(ctx context.Context, url, fileID string, sizeBytes int64) error
}

// Monitor receives outcome accounting and persisted error reports.
type Monitor interface {
	RecordSuccess()
	RecordFailure()
	RecordCacheHit()
	RecordCacheMiss()
	IncActiveDownloads()
	DecActiveDownloads()
	ObserveDownloadDuration(d time.Duration)
	LogError(ctx context.Context, kind monitor.ErrorKind, message, url, detail string)
}

type StreamDownloader interface {
	Download(ctx context.Context, url, sinkPath string) (download.Result, error)
}

type ExternalDownloader interface {
	Download(ctx context.Context, url, sinkPath string, platform domain.Platform) (download.Result, error)
}

// Orchestrator drives one dispatched job from downloading to a terminal,
// archived state. Whatever happens inside an attempt, the job never stays
// in the live queue and the submitter hears exactly one outcome.
type Orchestrator struct {
	Store     JobStore
	Cache     ArtifactCache
	Streamer  StreamDownloader
	External  ExternalDownloader
	Messenger Messenger
	Monitor   Monitor
	Logger    *slog.Logger
	TempDir   string // "" means the system default
}

// Process handles one dispatched job. The job arrives already transitioned
// to downloading by the scheduler's claim.
func (o *Orchestrator) Process(ctx context.Context, job domain.Job) {
	log := o.Logger.With("job_id", job.ID, "user_id", job.UserID, "url", job.URL)

	o.Monitor.IncActiveDownloads()
	defer o.Monitor.DecActiveDownloads()

	if err := o.attempt(ctx, job, log); err != nil {
		o.fail(ctx, job, err, log)
		return
	}
	o.succeed(ctx, job, log)
}

// attempt runs the cache check / download / delivery sequence and reports
// the first failure. The temporary sink is removed on every exit path.
func (o *Orchestrator) attempt(ctx context.Context, job domain.Job, log *slog.Logger) error {
	// Re-check the cache: a concurrent duplicate submission may have
	// finished while this job was waiting in the queue.
	entry, err := o.Cache.Lookup(ctx, job.URL)
	if err != nil {
		return fmt.Errorf("cache lookup: %w", err)
	}
	if entry != nil {
		o.Monitor.RecordCacheHit()
		log.Debug("cache hit, delivering by handle", "file_id", entry.FileID)
		if err := o.Messenger.DeliverByHandle(ctx, job.UserID,
			entry.FileID, buildCaption(job.Title, entry.SizeBytes)); err != nil {
			return &download.Error{Kind: download.KindDelivery,
				Msg: "failed to send cached video", Cause: err}
		}
		return nil
	}
	o.Monitor.RecordCacheMiss()

	sink, err := os.CreateTemp(o.TempDir, "clipqueue_*.mp4")
	if err != nil {
		return fmt.Errorf("create temp sink: %w", err)
	}
	sinkPath := sink.Name()
	sink.Close()
	defer func() {
		if err := os.Remove(sinkPath); err != nil && !os.IsNotExist(err) {
			log.Warn("failed to delete temp sink", "path", sinkPath, "err", err)
		}
	}()

	platform := domain.DetectPlatform(job.URL)
	var res download.Result
	if platform.External() {
		res, err = o.External.Download(ctx, job.URL, sinkPath, platform)
	} else {
		res, err = o.Streamer.Download(ctx, job.URL, sinkPath)
	}
	if err != nil {
		return err
	}
	o.Monitor.ObserveDownloadDuration(res.Duration)

	fileID, err := o.Messenger.Deliver(ctx, job.UserID, sinkPath,
		buildCaption(job.Title, res.SizeBytes))
	if err != nil {
		return &download.Error{Kind: download.KindDelivery,
			Msg: "failed to send video", Cause: err}
	}

	if fileID != "" {
		// A lost cache write only costs a repeat download later.
		if err := o.Cache.Store(ctx, job.URL, fileID, res.SizeBytes); err != nil {
			log.Error("cache store failed", "err", err)
		}
	}
	return nil
}

func (o *Orchestrator) succeed(ctx context.Context, job domain.Job, log *slog.Logger) {
	o.Monitor.RecordSuccess()

	// The pending status message is obsolete once the artifact arrives.
	if err := o.Messenger.DeleteStatus(ctx, job.UserID, job.MessageID); err != nil {
		log.Warn("failed to delete status message", "err", err)
	}

	if _, err := o.Store.UpdateStatus(ctx, job.ID, domain.StatusCompleted); err != nil {
		log.Error("failed to mark completed", "err", err)
	}
	if err := o.Store.ArchiveAndRemove(ctx, job.ID); err != nil {
		log.Error("failed to archive completed job", "err", err)
		return
	}
	log.Info("job completed")
}

func (o *Orchestrator) fail(ctx context.Context, job domain.Job, cause error, log *slog.Logger) {
	log.Error("job failed", "err", cause)
	o.Monitor.RecordFailure()
	o.Monitor.LogError(ctx, monitor.ErrorDownload, cause.Error(), job.URL, "")

	if _, err := o.Store.UpdateStatus(ctx, job.ID, domain.StatusFailed); err != nil {
		log.Error("failed to mark failed", "err", err)
	}
	if err := o.Store.ArchiveAndRemove(ctx, job.ID); err != nil {
		log.Error("failed to archive failed job", "err", err)
	}

	// Exactly one outcome message, with the technical detail kept out.
	category := Translate(cause.Error())
	if _, err := o.Messenger.SendStatus(ctx, job.UserID, category.Message()); err != nil {
		log.Error("failed to notify submitter", "err", err)
	}
}

func buildCaption(title string, sizeBytes int64) string {
	if title == "" {
		return fmt.Sprintf("%.2f MB", float64(sizeBytes)/(1024*1024))
	}
	if sizeBytes <= 0 {
		return title
	}
	return fmt.Sprintf("%s\n%.2f MB", title, float64(sizeBytes)/(1024*1024))
}
