package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/clipqueue/internal/domain"
	"github.com/yourorg/clipqueue/internal/download"
	"github.com/yourorg/clipqueue/internal/monitor"
)

type fakeStore struct {
	mu       sync.Mutex
	statuses []domain.Status
	archived []uuid.UUID
}

func (s *fakeStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
	return true, nil
}

func (s *fakeStore) ArchiveAndRemove(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archived = append(s.archived, id)
	return nil
}

type fakeCache struct {
	entry  *domain.CacheEntry
	stored []string // urls
	fileID string
}

func (c *fakeCache) Lookup(ctx context.Context, url string) (*domain.CacheEntry, error) {
	return c.entry, nil
}

func (c *fakeCache) Store(ctx context.Context, url, fileID string, sizeBytes int64) error {
	c.stored = append(c.stored, url)
	c.fileID = fileID
	return nil
}

type fakeMessenger struct {
	sent       []string // SendStatus texts
	deleted    int
	delivered  int
	byHandle   []string // fileIDs delivered from cache
	deliverID  string
	deliverErr error
}

func (m *fakeMessenger) SendStatus(ctx context.Context, userID int64, text string) (int64, error) {
	m.sent = append(m.sent, text)
	return int64(len(m.sent)), nil
}

func (m *fakeMessenger) UpdateStatus(ctx context.Context, userID, messageID int64, text string) error {
	return nil
}

func (m *fakeMessenger) DeleteStatus(ctx context.Context, userID, messageID int64) error {
	m.deleted++
	return nil
}

func (m *fakeMessenger) Deliver(ctx context.Context, userID int64, sinkPath, caption string) (string, error) {
	if m.deliverErr != nil {
		return "", m.deliverErr
	}
	m.delivered++
	return m.deliverID, nil
}

func (m *fakeMessenger) DeliverByHandle(ctx context.Context, userID int64, fileID, caption string) error {
	m.byHandle = append(m.byHandle, fileID)
	return nil
}

type fakeMonitor struct {
	mu         sync.Mutex
	successes  int
	failures   int
	cacheHits  int
	cacheMiss  int
	active     int
	durations  int
	loggedErrs []string
}

func (m *fakeMonitor) RecordSuccess()   { m.mu.Lock(); m.successes++; m.mu.Unlock() }
func (m *fakeMonitor) RecordFailure()   { m.mu.Lock(); m.failures++; m.mu.Unlock() }
func (m *fakeMonitor) RecordCacheHit()  { m.mu.Lock(); m.cacheHits++; m.mu.Unlock() }
func (m *fakeMonitor) RecordCacheMiss() { m.mu.Lock(); m.cacheMiss++; m.mu.Unlock() }
func (m *fakeMonitor) IncActiveDownloads() {
	m.mu.Lock()
	m.active++
	m.mu.Unlock()
}
func (m *fakeMonitor) DecActiveDownloads() {
	m.mu.Lock()
	m.active--
	m.mu.Unlock()
}
func (m *fakeMonitor) ObserveDownloadDuration(d time.Duration) {
	m.mu.Lock()
	m.durations++
	m.mu.Unlock()
}
func (m *fakeMonitor) LogError(ctx context.Context, kind monitor.ErrorKind, message, url, detail string) {
	m.mu.Lock()
	m.loggedErrs = append(m.loggedErrs, message)
	m.mu.Unlock()
}

type fakeStreamer struct {
	err      error
	sinkPath string
}

func (d *fakeStreamer) Download(ctx context.Context, url, sinkPath string) (download.Result, error) {
	d.sinkPath = sinkPath
	if d.err != nil {
		return download.Result{}, d.err
	}
	if err := os.WriteFile(sinkPath, []byte("video"), 0o600); err != nil {
		return download.Result{}, err
	}
	return download.Result{SizeBytes: 5, Duration: time.Second}, nil
}

type fakeExternal struct {
	called   bool
	platform domain.Platform
}

func (d *fakeExternal) Download(ctx context.Context, url, sinkPath string, platform domain.Platform) (download.Result, error) {
	d.called = true
	d.platform = platform
	if err := os.WriteFile(sinkPath, []byte("video"), 0o600); err != nil {
		return download.Result{}, err
	}
	return download.Result{SizeBytes: 5, Duration: time.Second}, nil
}

type fixture struct {
	orch      *Orchestrator
	store     *fakeStore
	cache     *fakeCache
	messenger *fakeMessenger
	monitor   *fakeMonitor
	streamer  *fakeStreamer
	external  *fakeExternal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     &fakeStore{},
		cache:     &fakeCache{},
		messenger: &fakeMessenger{deliverID: "file-123"},
		monitor:   &fakeMonitor{},
		streamer:  &fakeStreamer{},
		external:  &fakeExternal{},
	}
	f.orch = &Orchestrator{
		Store:     f.store,
		Cache:     f.cache,
		Streamer:  f.streamer,
		External:  f.external,
		Messenger: f.messenger,
		Monitor:   f.monitor,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		TempDir:   t.TempDir(),
	}
	return f
}

func testJob(url string) domain.Job {
	return domain.Job{
		ID:        uuid.New(),
		UserID:    7,
		MessageID: 99,
		URL:       url,
		Title:     "clip",
		Status:    domain.StatusDownloading,
	}
}

func TestProcessSuccess(t *testing.T) {
	f := newFixture(t)
	job := testJob("https://example.com/video.mp4")

	f.orch.Process(context.Background(), job)

	assert.Equal(t, 1, f.messenger.delivered)
	assert.Equal(t, 1, f.messenger.deleted, "the pending status message is deleted")
	assert.Empty(t, f.messenger.sent, "no outcome message on success")
	assert.Equal(t, []string{job.URL}, f.cache.stored)
	assert.Equal(t, "file-123", f.cache.fileID)
	assert.Equal(t, []domain.Status{domain.StatusCompleted}, f.store.statuses)
	assert.Equal(t, []uuid.UUID{job.ID}, f.store.archived)
	assert.Equal(t, 1, f.monitor.successes)
	assert.Equal(t, 1, f.monitor.cacheMiss)
	assert.Equal(t, 0, f.monitor.active, "active gauge rebalanced")
	assert.Equal(t, 1, f.monitor.durations)
}

func TestProcessCacheHitSkipsDownload(t *testing.T) {
	f := newFixture(t)
	f.cache.entry = &domain.CacheEntry{URL: "https://example.com/v.mp4", FileID: "cached-1", SizeBytes: 1024}
	job := testJob("https://example.com/v.mp4")

	f.orch.Process(context.Background(), job)

	assert.Equal(t, []string{"cached-1"}, f.messenger.byHandle)
	assert.Equal(t, 0, f.messenger.delivered, "no fresh download on a hit")
	assert.Empty(t, f.streamer.sinkPath)
	assert.Equal(t, 1, f.monitor.cacheHits)
	assert.Equal(t, 0, f.monitor.cacheMiss)
	assert.Empty(t, f.cache.stored, "a hit is not re-stored")
	assert.Equal(t, []domain.Status{domain.StatusCompleted}, f.store.statuses)
}

func TestProcessExternalPlatformDispatch(t *testing.T) {
	f := newFixture(t)
	job := testJob("https://www.youtube.com/watch?v=abc")

	f.orch.Process(context.Background(), job)

	assert.True(t, f.external.called)
	assert.Equal(t, domain.PlatformYouTube, f.external.platform)
	assert.Empty(t, f.streamer.sinkPath)
}

func TestProcessDownloadFailure(t *testing.T) {
	f := newFixture(t)
	f.streamer.err = &download.Error{Kind: download.KindSizeExceeded,
		Msg: "video exceeds size limit: 812 MB > 500 MB"}
	job := testJob("https://example.com/big.mp4")

	f.orch.Process(context.Background(), job)

	require.Len(t, f.messenger.sent, 1, "exactly one outcome message")
	assert.Equal(t, CategorySizeExceeded.Message(), f.messenger.sent[0])
	assert.Equal(t, []domain.Status{domain.StatusFailed}, f.store.statuses)
	assert.Equal(t, []uuid.UUID{job.ID}, f.store.archived, "failed jobs are archived too")
	assert.Equal(t, 1, f.monitor.failures)
	assert.Len(t, f.monitor.loggedErrs, 1)
	assert.Equal(t, 0, f.messenger.deleted, "status message stays; failure is reported in place")
}

func TestProcessDeliveryFailure(t *testing.T) {
	f := newFixture(t)
	f.messenger.deliverErr = errors.New("chat not reachable")
	job := testJob("https://example.com/v.mp4")

	f.orch.Process(context.Background(), job)

	require.Len(t, f.messenger.sent, 1)
	assert.Equal(t, CategoryDelivery.Message(), f.messenger.sent[0])
	assert.Empty(t, f.cache.stored, "nothing cached when delivery failed")
	assert.Equal(t, []domain.Status{domain.StatusFailed}, f.store.statuses)
}

func TestProcessRemovesTempSink(t *testing.T) {
	f := newFixture(t)
	job := testJob("https://example.com/v.mp4")

	f.orch.Process(context.Background(), job)

	require.NotEmpty(t, f.streamer.sinkPath)
	_, err := os.Stat(f.streamer.sinkPath)
	assert.True(t, os.IsNotExist(err), "temp sink must be removed after delivery")
}

func TestProcessRemovesTempSinkOnFailure(t *testing.T) {
	f := newFixture(t)
	f.messenger.deliverErr = errors.New("send failed")
	job := testJob("https://example.com/v.mp4")

	f.orch.Process(context.Background(), job)

	require.NotEmpty(t, f.streamer.sinkPath)
	_, err := os.Stat(f.streamer.sinkPath)
	assert.True(t, os.IsNotExist(err))
}

func TestProcessEmptyDeliveryHandleNotCached(t *testing.T) {
	f := newFixture(t)
	f.messenger.deliverID = ""
	job := testJob("https://example.com/v.mp4")

	f.orch.Process(context.Background(), job)

	assert.Empty(t, f.cache.stored)
	assert.Equal(t, 1, f.monitor.successes)
}

func TestBuildCaption(t *testing.T) {
	assert.Equal(t, "clip\n1.00 MB", buildCaption("clip", 1<<20))
	assert.Equal(t, "clip", buildCaption("clip", 0))
	assert.Equal(t, "1.00 MB", buildCaption("", 1<<20))
}
