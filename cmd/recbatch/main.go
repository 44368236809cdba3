// Package main is the recbatch command-line entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rshade/recbatch/internal/cli"
	"github.com/rshade/recbatch/internal/engine"
)

// Exit codes returned by the recbatch binary.
const (
	exitOK          = 0
	exitError       = 1
	exitUnitFailure = 2
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev" //nolint:gochecknoglobals // Set by the linker.

func main() {
	err := run()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCode(err))
}

// run executes the root command with a context canceled on SIGINT or SIGTERM.
func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCmd(version)
	return root.ExecuteContext(ctx)
}

// exitCode maps a command error to a process exit status. A batch whose units
// failed exits 2 so scripts can tell it apart from usage or setup errors.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var aggErr *engine.AggregateError
	if errors.As(err, &aggErr) {
		return exitUnitFailure
	}
	return exitError
}
