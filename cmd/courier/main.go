package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/wesleyorama2/courier/internal/cli"
)

// Main is the entry point for the application
// It's exported to make it testable
func Main() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(Main())
}
