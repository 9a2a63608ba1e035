// cmd/clipctl/cache.go — clipctl cache subcommand: list, size, sweep.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/yourorg/clipqueue/internal/cache"
)

func runCache(args []string) {
	fs := flag.NewFlagSet("cache", flag.ExitOnError)
	databaseURL := fs.String("db", "", "database URL (defaults to DATABASE_URL)")
	sweepDays := fs.Int("sweep", 0, "delete entries unused for this many days")
	_ = fs.Parse(args)

	pool, err := openPool(*databaseURL)
	if err != nil {
		fatalf("cache: %v", err)
	}
	defer pool.Close()

	ctx := context.Background()
	c := cache.New(pool)

	if *sweepDays > 0 {
		deleted, err := c.Sweep(ctx, time.Duration(*sweepDays)*24*time.Hour)
		if err != nil {
			fatalf("cache: %v", err)
		}
		fmt.Printf("swept %d entries older than %d days\n", deleted, *sweepDays)
		return
	}

	entries, err := c.List(ctx)
	if err != nil {
		fatalf("cache: %v", err)
	}
	fmt.Printf("%d cached artifact(s)\n\n", len(entries))
	for _, e := range entries {
		fmt.Printf("  %-10s %8.2f MB  last used %s  %s\n",
			e.FileID,
			float64(e.SizeBytes)/(1024*1024),
			e.LastUsedAt.Format("2006-01-02"),
			e.URL)
	}
}
