package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"oakpipe/internal/services"
)

type stubCommand struct{ err error }

func (s stubCommand) Execute() error { return s.err }

func TestExecuteMapsErrorsToExitCodes(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   int
		silent bool
	}{
		{"clean", nil, services.ExitOK, true},
		{"config", services.Wrap(services.ErrConfigInvalid, "config", "load", "bad target", nil), services.ExitConfigInvalid, false},
		{"unavailable", services.Wrap(services.ErrDeviceUnavailable, "camera", "open", "busy", nil), services.ExitDeviceUnavailable, false},
		{"disconnected", services.Wrap(services.ErrDeviceDisconnected, "camera", "read", "unplugged", nil), services.ExitDeviceDisconnected, false},
		{"timeout", services.Wrap(services.ErrTimeout, "camera", "read", "no frames", nil), services.ExitTimeout, false},
		{"unexpected", errors.New("boom"), services.ExitUnexpected, false},
		{"wrapped", fmt.Errorf("run: %w", services.Wrap(services.ErrTimeout, "camera", "read", "", nil)), services.ExitTimeout, false},
		{"canceled", context.Canceled, services.ExitUnexpected, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			if got := execute(stubCommand{err: tt.err}, &stderr); got != tt.code {
				t.Fatalf("exit code = %d, want %d", got, tt.code)
			}
			if tt.silent != (stderr.Len() == 0) {
				t.Fatalf("stderr = %q, silent = %v", stderr.String(), tt.silent)
			}
		})
	}
}

func TestRootHelpListsCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, context.Background(), nil, env.configPath)
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	for _, name := range []string{"run", "preflight", "sessions", "config"} {
		requireContains(t, out, name)
	}
}
