package download

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
)

const (
	chunkSize = 8192
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36" +
		" (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Result reports what a completed download produced.
type Result struct {
	SizeBytes int64
	Duration  time.Duration
}

// Streamer fetches direct media over HTTP with a hard size ceiling and
// bounded retries. Each attempt writes the sink from scratch (O_TRUNC), so
// a failed attempt never leaves partial bytes for the next one to append to.
type Streamer struct {
	Client       *http.Client
	MaxSizeBytes int64
	MaxRetries   int
	BackoffBase  time.Duration
	Timeout      time.Duration
	Logger       *slog.Logger
}

func NewStreamer(maxSizeBytes int64, maxRetries int, timeout time.Duration, logger *slog.Logger) *Streamer {
	return &Streamer{
		Client:       &http.Client{},
		MaxSizeBytes: maxSizeBytes,
		MaxRetries:   maxRetries,
		BackoffBase:  time.Second,
		Timeout:      timeout,
		Logger:       logger,
	}
}

// Download fetches url into sinkPath, retrying transient failures with
// exponential backoff (base * 2^attempt). A size-limit violation aborts
// immediately and is never retried.
func (s *Streamer) Download(ctx context.Context, url, sinkPath string) (Result, error) {
	var lastErr error

	for attempt := 0; attempt < s.MaxRetries; attempt++ {
		res, err := s.downloadOnce(ctx, url, sinkPath)
		if err == nil {
			return res, nil
		}
		lastErr = err

		var de *Error
		if errors.As(err, &de) && !de.Kind.Retryable() {
			return Result{}, err
		}

		s.Logger.Warn("download attempt failed",
			"url", url,
			"attempt", attempt+1,
			"max_retries", s.MaxRetries,
			"err", err)

		if attempt < s.MaxRetries-1 {
			delay := s.BackoffBase << attempt
			select {
			case <-ctx.Done():
				return Result{}, wrapError(KindTimeout, ctx.Err(), "download canceled: %s", url)
			case <-time.After(delay):
			}
		}
	}

	return Result{}, wrapError(KindOf(lastErr), lastErr,
		"failed to download after %d attempts: %s", s.MaxRetries, url)
}

func (s *Streamer) downloadOnce(ctx context.Context, url, sinkPath string) (Result, error) {
	start := time.Now()

	attemptCtx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, wrapError(KindSystem, err, "build request: %s", url)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.Client.Do(req)
	if err != nil {
		if attemptCtx.Err() != nil {
			return Result{}, wrapError(KindTimeout, err, "download timed out: %s", url)
		}
		return Result{}, wrapError(KindNetwork, err, "request failed: %s", url)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return Result{}, newError(KindSourceUnavailable, "source not available: HTTP %d", resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Result{}, newError(KindNetwork, "HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	if cl := resp.ContentLength; cl > 0 && cl > s.MaxSizeBytes {
		return Result{}, newError(KindSizeExceeded,
			"declared size (%d bytes) exceeds limit (%d bytes)", cl, s.MaxSizeBytes)
	}

	// O_TRUNC discards any partial output from a previous attempt.
	sink, err := os.OpenFile(sinkPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return Result{}, wrapError(KindSystem, err, "open sink")
	}
	defer sink.Close()

	var written int64
	buf := make([]byte, chunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := sink.Write(buf[:n]); werr != nil {
				return Result{}, wrapError(KindSystem, werr, "write sink")
			}
			written += int64(n)
			if written > s.MaxSizeBytes {
				return Result{}, newError(KindSizeExceeded,
					"downloaded size (%d bytes) exceeds limit (%d bytes)", written, s.MaxSizeBytes)
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			if attemptCtx.Err() != nil {
				return Result{}, wrapError(KindTimeout, readErr, "download timed out: %s", url)
			}
			return Result{}, wrapError(KindNetwork, readErr, "read body: %s", url)
		}
	}

	if err := sink.Sync(); err != nil {
		return Result{}, wrapError(KindSystem, err, "sync sink")
	}

	elapsed := time.Since(start)
	s.Logger.Debug("download completed",
		"url", url, "bytes", written, "duration", elapsed)
	return Result{SizeBytes: written, Duration: elapsed}, nil
}
