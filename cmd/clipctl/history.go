// cmd/clipctl/history.go — clipctl history subcommand.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/yourorg/clipqueue/internal/queue"
)

func runHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	databaseURL := fs.String("db", "", "database URL (defaults to DATABASE_URL)")
	limit := fs.Int("limit", 20, "maximum records to show")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: clipctl history [--limit n] <user_id>")
		os.Exit(1)
	}
	var userID int64
	if _, err := fmt.Sscanf(fs.Arg(0), "%d", &userID); err != nil {
		fatalf("history: invalid user id: %v", err)
	}

	pool, err := openPool(*databaseURL)
	if err != nil {
		fatalf("history: %v", err)
	}
	defer pool.Close()

	recs, err := queue.New(pool).History(context.Background(), userID, *limit)
	if err != nil {
		fatalf("history: %v", err)
	}
	if len(recs) == 0 {
		fmt.Printf("no history for user %d\n", userID)
		return
	}

	fmt.Printf("history for user %d (%d record(s)):\n\n", userID, len(recs))
	for _, r := range recs {
		fmt.Printf("  %-9s %s  %s\n",
			r.Status, r.CompletedAt.Format("2006-01-02 15:04"), r.URL)
	}
}
