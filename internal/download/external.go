package download

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/yourorg/clipqueue/internal/domain"
)

// Runner invokes the external extraction tool (yt-dlp) for sources that
// cannot be streamed directly. The tool is given an explicit output path,
// a merge-to-mp4 format, and bounded internal retries; the whole run is
// capped by a wall-clock timeout after which the process is killed.
type Runner struct {
	Path         string
	MaxSizeBytes int64
	Timeout      time.Duration
	Logger       *slog.Logger
}

func NewRunner(path string, maxSizeBytes int64, timeout time.Duration, logger *slog.Logger) *Runner {
	return &Runner{Path: path, MaxSizeBytes: maxSizeBytes, Timeout: timeout, Logger: logger}
}

// Probe checks at startup that the tool is on PATH. Best effort: a missing
// tool is logged, not fatal — direct downloads keep working without it.
func (r *Runner) Probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(probeCtx, r.Path, "--version").Output()
	if err != nil {
		r.Logger.Warn("external download tool unavailable; external sources will fail",
			"tool", r.Path, "err", err)
		return
	}
	r.Logger.Info("external download tool available",
		"tool", r.Path, "version", strings.TrimSpace(string(out)))
}

// Download runs the tool for url into sinkPath and verifies the produced
// file. The caller owns sinkPath cleanup on every exit path.
func (r *Runner) Download(ctx context.Context, url, sinkPath string, platform domain.Platform) (Result, error) {
	start := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	args := buildArgs(url, sinkPath, platform)
	r.Logger.Debug("running external download", "tool", r.Path, "args", strings.Join(args, " "))

	cmd := exec.CommandContext(runCtx, r.Path, args...)

	// One drain sink for both streams; exec writes from its own goroutines
	// while we wait, so a chatty tool can never fill a pipe and deadlock.
	drain := &outputDrain{logger: r.Logger}
	cmd.Stdout = drain
	cmd.Stderr = drain
	// SIGKILL lands immediately at the deadline; WaitDelay keeps Wait from
	// hanging on inherited pipe fds after the kill.
	cmd.WaitDelay = 5 * time.Second

	runErr := cmd.Run()
	output := drain.String()

	if runCtx.Err() == context.DeadlineExceeded {
		return Result{}, newError(KindTimeout,
			"external download timed out after %s", r.Timeout)
	}
	if runErr != nil {
		r.Logger.Error("external tool failed",
			"url", url, "platform", platform, "err", runErr,
			"output_tail", tail(output, 2000))
		return Result{}, classifyOutput(output, runErr)
	}

	info, err := os.Stat(sinkPath)
	if err != nil {
		return Result{}, newError(KindSystem, "output file was not created")
	}
	if info.Size() == 0 {
		os.Remove(sinkPath)
		return Result{}, newError(KindSystem, "output file is empty")
	}
	if info.Size() > r.MaxSizeBytes {
		os.Remove(sinkPath)
		return Result{}, newError(KindSizeExceeded,
			"video exceeds size limit: %d MB > %d MB",
			info.Size()/1024/1024, r.MaxSizeBytes/1024/1024)
	}

	elapsed := time.Since(start)
	r.Logger.Info("external download completed",
		"url", url, "platform", platform,
		"bytes", info.Size(), "duration", elapsed)
	return Result{SizeBytes: info.Size(), Duration: elapsed}, nil
}

// classifyOutput maps known failure signatures in the tool's output to a
// specific classification; anything unrecognized is a generic failure.
// First match wins.
func classifyOutput(output string, cause error) *Error {
	signatures := []struct {
		needle string
		kind   Kind
		msg    string
	}{
		{"HTTP Error 404", KindSourceUnavailable, "source not found"},
		{"Video unavailable", KindSourceUnavailable, "source not found"},
		{"HTTP Error 403", KindSourceUnavailable, "access to source is forbidden"},
		{"Private video", KindSourceUnavailable, "source is private"},
		{"age-restricted", KindSourceUnavailable, "source is age-restricted"},
		{"Sign in to confirm your age", KindSourceUnavailable, "source is age-restricted"},
	}
	for _, sig := range signatures {
		if strings.Contains(output, sig.needle) {
			return newError(sig.kind, "%s", sig.msg)
		}
	}
	return wrapError(KindSystem, cause, "external download failed")
}

func buildArgs(url, sinkPath string, platform domain.Platform) []string {
	var format string
	switch platform {
	case domain.PlatformYouTube:
		// 136 = 720p H.264, 140 = m4a audio; fall back to any <=720p.
		format = "136+140/bestvideo[height<=720]+bestaudio/best[height<=720]/best"
	case domain.PlatformVK:
		format = "bestvideo[height<=720][height>=480]+bestaudio/bestvideo[height<=720]+bestaudio/best[height<=720]/best"
	default:
		format = "bestvideo[height<=720]+bestaudio/best[height<=720]/best"
	}

	args := []string{
		"--format", format,
		"--merge-output-format", "mp4",
		"--output", sinkPath,
		"--no-part",
		"--force-overwrites",
		"--retries", "3",
		"--fragment-retries", "3",
		"--newline",
		"--progress",
	}

	if platform == domain.PlatformVK {
		args = append(args,
			"--format-sort", "res:720,+size,+br",
			"--user-agent", userAgent,
			"--add-header", "Referer:https://vk.com/",
		)
	}

	return append(args, url)
}

// outputDrain accumulates subprocess output and debug-logs progress lines.
// Write is mutex-guarded because stdout and stderr share one sink.
type outputDrain struct {
	mu     sync.Mutex
	buf    strings.Builder
	logger *slog.Logger
}

func (d *outputDrain) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buf.Write(p)
	line := strings.TrimSpace(string(p))
	if strings.Contains(line, "Downloading") || strings.Contains(line, "Merging") {
		d.logger.Debug("external tool", "line", line)
	}
	return len(p), nil
}

func (d *outputDrain) String() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf.String()
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
