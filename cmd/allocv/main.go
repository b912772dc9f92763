// Package main provides the allocv CLI.
//
// allocv keeps the client, worker and task collections of an allocation
// workspace consistent:
//   - import normalizes header-keyed rows into a collection
//   - validate reports integrity errors and advisory notes
//   - fix applies a replacement or accepts a suggested one
//   - rules and priorities maintain the allocation rules and weights
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
)

// Exit codes.
const (
	ExitSuccess       = 0
	ExitInvalidData   = 1
	ExitUsage         = 2
	ExitInternalError = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	if errors.Is(err, errInvalidData) {
		return ExitInvalidData
	}

	fmt.Fprintln(stderr, "error:", err)

	var usage *usageError
	if errors.As(err, &usage) {
		return ExitUsage
	}

	return ExitInternalError
}
