// cmd/clipctl/submit.go — clipctl submit subcommand.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/yourorg/clipqueue/internal/queue"
	"github.com/yourorg/clipqueue/internal/ratelimit"
	"github.com/yourorg/clipqueue/internal/submit"
)

func runSubmit(args []string) {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	databaseURL := fs.String("db", "", "database URL (defaults to DATABASE_URL)")
	userID := fs.Int64("user", 0, "submitter id (required)")
	messageID := fs.Int64("message", 0, "status message handle")
	title := fs.String("title", "", "display title")
	maxRequests := fs.Int("max-requests", 1000, "rate limit window cap")
	windowHours := fs.Int("window-hours", 1, "rate limit window hours")
	_ = fs.Parse(args)

	if *userID == 0 || fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: clipctl submit --user id [--message id] [--title t] <url>")
		os.Exit(1)
	}
	rawURL := fs.Arg(0)

	pool, err := openPool(*databaseURL)
	if err != nil {
		fatalf("submit: %v", err)
	}
	defer pool.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	limiter := ratelimit.New(pool, *maxRequests,
		time.Duration(*windowHours)*time.Hour)
	svc := submit.New(limiter, queue.New(pool), nil, logger)

	job, err := svc.Submit(context.Background(), *userID, *messageID, rawURL, *title)
	if err != nil {
		var ae *submit.AdmissionError
		if errors.As(err, &ae) {
			fatalf("submit: denied: retry after %s",
				ratelimit.FormatRetryAfter(ae.RetryAfter))
		}
		fatalf("submit: %v", err)
	}

	fmt.Printf("job_id:   %s\n", job.ID)
	fmt.Printf("status:   %s\n", job.Status)
	fmt.Printf("position: %d\n", job.Position)
}
