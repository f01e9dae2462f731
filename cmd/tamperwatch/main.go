package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	exitFailure      = 1
	exitChecksFailed = 2
)

func main() {
	err := newRootCommand().Execute()
	os.Exit(report(os.Stderr, err))
}

// report prints err for the operator and maps it to a process exit code.
// Failed preflight checks exit 2 so service units can tell a misconfigured
// host from a crash. Interrupts exit quietly.
func report(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, context.Canceled) {
		return exitFailure
	}
	fmt.Fprintf(w, "tamperwatch: %v\n", err)
	var checks *checksFailedError
	if errors.As(err, &checks) {
		return exitChecksFailed
	}
	return exitFailure
}
