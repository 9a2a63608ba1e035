// cmd/clipctl/ratelimit.go — clipctl ratelimit subcommand: inspect/reset.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/yourorg/clipqueue/internal/ratelimit"
)

func runRateLimit(args []string) {
	fs := flag.NewFlagSet("ratelimit", flag.ExitOnError)
	databaseURL := fs.String("db", "", "database URL (defaults to DATABASE_URL)")
	maxRequests := fs.Int("max-requests", 1000, "rate limit window cap")
	windowHours := fs.Int("window-hours", 1, "rate limit window hours")
	reset := fs.Bool("reset", false, "clear the submitter's counter")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: clipctl ratelimit [--reset] <user_id>")
		os.Exit(1)
	}
	var userID int64
	if _, err := fmt.Sscanf(fs.Arg(0), "%d", &userID); err != nil {
		fatalf("ratelimit: invalid user id: %v", err)
	}

	pool, err := openPool(*databaseURL)
	if err != nil {
		fatalf("ratelimit: %v", err)
	}
	defer pool.Close()

	limiter := ratelimit.New(pool, *maxRequests,
		time.Duration(*windowHours)*time.Hour)
	ctx := context.Background()

	if *reset {
		if err := limiter.Reset(ctx, userID); err != nil {
			fatalf("ratelimit: %v", err)
		}
		fmt.Printf("rate limit reset for user %d\n", userID)
		return
	}

	info, err := limiter.Info(ctx, userID)
	if err != nil {
		fatalf("ratelimit: %v", err)
	}
	fmt.Printf("user:       %d\n", userID)
	fmt.Printf("used:       %d/%d\n", info.Count, *maxRequests)
	fmt.Printf("remaining:  %d\n", info.Remaining)
	fmt.Printf("window_end: %s\n", info.WindowEnd.Format("2006-01-02 15:04:05"))
}
