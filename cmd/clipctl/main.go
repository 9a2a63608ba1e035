// cmd/clipctl/main.go — operator CLI. Dispatches to subcommand handlers.
package main

import (
	"fmt"
	"os"
)

const usage = "Usage: clipctl <submit|status|queue|history|cache|ratelimit> [options]"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "submit":
		runSubmit(os.Args[2:])
	case "status":
		runStatus(os.Args[2:])
	case "queue":
		runQueue(os.Args[2:])
	case "history":
		runHistory(os.Args[2:])
	case "cache":
		runCache(os.Args[2:])
	case "ratelimit":
		runRateLimit(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %q\n", os.Args[1])
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}
}
