package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"oakpipe/internal/services"
)

func main() {
	os.Exit(execute(newRootCommand(), os.Stderr))
}

// execute runs cmd and returns the process exit code for its error.
func execute(cmd interface{ Execute() error }, stderr io.Writer) int {
	err := cmd.Execute()
	if err == nil {
		return services.ExitOK
	}
	if !errors.Is(err, context.Canceled) {
		fmt.Fprintln(stderr, err)
	}
	return services.ExitCode(err)
}
