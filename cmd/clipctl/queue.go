// cmd/clipctl/queue.go — clipctl queue subcommand: occupancy and contents.
package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/yourorg/clipqueue/internal/domain"
	"github.com/yourorg/clipqueue/internal/queue"
)

func runQueue(args []string) {
	fs := flag.NewFlagSet("queue", flag.ExitOnError)
	databaseURL := fs.String("db", "", "database URL (defaults to DATABASE_URL)")
	_ = fs.Parse(args)

	pool, err := openPool(*databaseURL)
	if err != nil {
		fatalf("queue: %v", err)
	}
	defer pool.Close()

	ctx := context.Background()
	store := queue.New(pool)

	stats, err := store.Stats(ctx)
	if err != nil {
		fatalf("queue: %v", err)
	}
	fmt.Printf("queued: %d  downloading: %d\n\n", stats.Queued, stats.Downloading)

	queued, err := store.ListByStatus(ctx, domain.StatusQueued)
	if err != nil {
		fatalf("queue: %v", err)
	}
	for _, job := range queued {
		fmt.Printf("  #%-3d %s  user=%d  %s\n",
			job.Position, job.ID, job.UserID, job.URL)
	}

	downloading, err := store.ListByStatus(ctx, domain.StatusDownloading)
	if err != nil {
		fatalf("queue: %v", err)
	}
	for _, job := range downloading {
		fmt.Printf("  *    %s  user=%d  %s\n", job.ID, job.UserID, job.URL)
	}
}
