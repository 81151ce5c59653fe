package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/zurustar/espg/pkg/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := app.New().Run(ctx, os.Args[1:])
	stop()
	if err != nil {
		app.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}
