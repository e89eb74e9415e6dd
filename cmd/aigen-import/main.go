package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"aigen-library/internal/memory"
	"aigen-library/internal/startup"
)

func main() {
	startup.LoadDotEnv()
	memory.ConfigureFromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := newCLIApp()
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
