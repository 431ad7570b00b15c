package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ylchen07/lazyjira/internal/cli"
)

// Set by the linker.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.Version = version
	code := cli.Execute(ctx)
	stop()
	os.Exit(code)
}
