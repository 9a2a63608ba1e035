// cmd/clipctl/status.go — clipctl status subcommand.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/yourorg/clipqueue/internal/queue"
)

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	databaseURL := fs.String("db", "", "database URL (defaults to DATABASE_URL)")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: clipctl status [--db url] <job_id>")
		os.Exit(1)
	}
	jobID, err := uuid.Parse(fs.Arg(0))
	if err != nil {
		fatalf("status: invalid job id: %v", err)
	}

	pool, err := openPool(*databaseURL)
	if err != nil {
		fatalf("status: %v", err)
	}
	defer pool.Close()

	job, err := queue.New(pool).GetByID(context.Background(), jobID)
	if err != nil {
		fatalf("status: %v", err)
	}
	if job == nil {
		fmt.Printf("job %s not in the live queue (archived or unknown)\n", jobID)
		return
	}

	fmt.Printf("job_id:    %s\n", job.ID)
	fmt.Printf("user_id:   %d\n", job.UserID)
	fmt.Printf("url:       %s\n", job.URL)
	if job.Title != "" {
		fmt.Printf("title:     %s\n", job.Title)
	}
	fmt.Printf("status:    %s\n", job.Status)
	fmt.Printf("position:  %d\n", job.Position)
	fmt.Printf("created:   %s\n", job.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("updated:   %s\n", job.UpdatedAt.Format("2006-01-02 15:04:05"))
}
