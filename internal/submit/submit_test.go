package submit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/clipqueue/internal/domain"
	"github.com/yourorg/clipqueue/internal/queue"
	"github.com/yourorg/clipqueue/internal/ratelimit"
)

type fakeAdmitter struct {
	res ratelimit.Result
	err error
}

func (a *fakeAdmitter) Admit(ctx context.Context, userID int64) (ratelimit.Result, error) {
	return a.res, a.err
}

type fakeEnqueuer struct {
	opts *queue.EnqueueOptions
	err  error
}

func (q *fakeEnqueuer) Enqueue(ctx context.Context, opts queue.EnqueueOptions) (domain.Job, error) {
	q.opts = &opts
	if q.err != nil {
		return domain.Job{}, q.err
	}
	return domain.Job{
		ID:       uuid.New(),
		UserID:   opts.UserID,
		URL:      opts.URL,
		Status:   domain.StatusQueued,
		Position: 1,
	}, nil
}

type fakeCounters struct {
	denied int
}

func (c *fakeCounters) RecordRateLimited() { c.denied++ }

func newService(admitter *fakeAdmitter, enqueuer *fakeEnqueuer, counters *fakeCounters) *Service {
	return New(admitter, enqueuer, counters,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSubmit(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	svc := newService(&fakeAdmitter{res: ratelimit.Result{Allowed: true, Count: 1}}, enqueuer, &fakeCounters{})

	job, err := svc.Submit(context.Background(), 7, 99, "https://example.com/v.mp4", "clip")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQueued, job.Status)
	assert.Equal(t, 1, job.Position)

	require.NotNil(t, enqueuer.opts)
	assert.Equal(t, int64(7), enqueuer.opts.UserID)
	assert.Equal(t, int64(99), enqueuer.opts.MessageID)
	assert.Equal(t, "https://example.com/v.mp4", enqueuer.opts.URL)
	assert.Equal(t, "clip", enqueuer.opts.Title)
}

func TestSubmitDenied(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	counters := &fakeCounters{}
	svc := newService(&fakeAdmitter{res: ratelimit.Result{
		Allowed: false, Count: 1000, RetryAfter: 40 * time.Minute,
	}}, enqueuer, counters)

	_, err := svc.Submit(context.Background(), 7, 99, "https://example.com/v.mp4", "")
	require.Error(t, err)

	var admissionErr *AdmissionError
	require.ErrorAs(t, err, &admissionErr)
	assert.Equal(t, 40*time.Minute, admissionErr.RetryAfter)
	assert.Contains(t, admissionErr.Error(), "40m")

	assert.Equal(t, 1, counters.denied)
	assert.Nil(t, enqueuer.opts, "denied submissions never reach the queue")
}

func TestSubmitInvalidURL(t *testing.T) {
	admitter := &fakeAdmitter{res: ratelimit.Result{Allowed: true}}
	enqueuer := &fakeEnqueuer{}
	svc := newService(admitter, enqueuer, &fakeCounters{})

	for _, raw := range []string{
		"ftp://example.com/v.mp4",
		"not a url at all ://",
		"https://",
		"",
	} {
		_, err := svc.Submit(context.Background(), 7, 99, raw, "")
		assert.Error(t, err, "url: %q", raw)
	}
	assert.Nil(t, enqueuer.opts, "invalid urls are rejected before admission")
}

func TestSubmitAdmitterError(t *testing.T) {
	svc := newService(&fakeAdmitter{err: errors.New("db down")}, &fakeEnqueuer{}, &fakeCounters{})
	_, err := svc.Submit(context.Background(), 7, 99, "https://example.com/v.mp4", "")
	assert.ErrorContains(t, err, "admission check")
}

func TestSubmitEnqueueError(t *testing.T) {
	enqueuer := &fakeEnqueuer{err: errors.New("insert failed")}
	svc := newService(&fakeAdmitter{res: ratelimit.Result{Allowed: true}}, enqueuer, &fakeCounters{})
	_, err := svc.Submit(context.Background(), 7, 99, "https://example.com/v.mp4", "")
	assert.Error(t, err)
}
