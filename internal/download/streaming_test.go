package download

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStreamer(maxSize int64, maxRetries int) *Streamer {
	s := NewStreamer(maxSize, maxRetries, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.BackoffBase = time.Millisecond
	return s
}

func sinkIn(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "video.mp4")
}

func TestStreamerDownload(t *testing.T) {
	body := strings.Repeat("x", 3*chunkSize+17)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body)
	}))
	defer srv.Close()

	sink := sinkIn(t)
	res, err := testStreamer(1<<20, 3).Download(context.Background(), srv.URL, sink)
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), res.SizeBytes)

	got, err := os.ReadFile(sink)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
}

func TestStreamerNotFoundIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testStreamer(1<<20, 3).Download(context.Background(), srv.URL, sinkIn(t))
	require.Error(t, err)
	assert.Equal(t, KindSourceUnavailable, KindOf(err))
	assert.Equal(t, int32(1), hits.Load())
}

func TestStreamerServerErrorRetriesUntilSuccess(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, "payload")
	}))
	defer srv.Close()

	res, err := testStreamer(1<<20, 3).Download(context.Background(), srv.URL, sinkIn(t))
	require.NoError(t, err)
	assert.Equal(t, int64(len("payload")), res.SizeBytes)
	assert.Equal(t, int32(3), hits.Load())
}

func TestStreamerExhaustsRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testStreamer(1<<20, 3).Download(context.Background(), srv.URL, sinkIn(t))
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.Equal(t, int32(3), hits.Load())
}

func TestStreamerDeclaredSizePrecheck(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Length", strconv.Itoa(2048))
		io.WriteString(w, strings.Repeat("x", 2048))
	}))
	defer srv.Close()

	_, err := testStreamer(1024, 3).Download(context.Background(), srv.URL, sinkIn(t))
	require.Error(t, err)
	assert.Equal(t, KindSizeExceeded, KindOf(err))
	assert.Equal(t, int32(1), hits.Load(), "size violations must not be retried")
}

func TestStreamerMidStreamOverflow(t *testing.T) {
	// No Content-Length, so the ceiling can only trip during the copy.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fl := w.(http.Flusher)
		chunk := strings.Repeat("x", chunkSize)
		for i := 0; i < 8; i++ {
			io.WriteString(w, chunk)
			fl.Flush()
		}
	}))
	defer srv.Close()

	sink := sinkIn(t)
	maxSize := int64(2 * chunkSize)
	_, err := testStreamer(maxSize, 3).Download(context.Background(), srv.URL, sink)
	require.Error(t, err)
	assert.Equal(t, KindSizeExceeded, KindOf(err))

	// The abort happens at the first chunk past the ceiling, so the sink
	// holds at most one extra chunk.
	info, statErr := os.Stat(sink)
	require.NoError(t, statErr)
	assert.LessOrEqual(t, info.Size(), maxSize+chunkSize)
}

func TestStreamerTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	s := testStreamer(1<<20, 1)
	s.Timeout = 50 * time.Millisecond
	_, err := s.Download(context.Background(), srv.URL, sinkIn(t))
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
}
