// Command sclstats computes and exports Species Conservation Landscape
// statistics.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/interfaces/cli"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func init() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()
	if err != nil {
		os.Exit(cli.ExitStatus(err))
	}
}

//Personal.AI order the ending
