package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"oakpipe/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrIO, "recorder", "write frame", "disk full", base)
	if !errors.Is(err, services.ErrIO) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"recorder", "write frame", "disk full", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutDetail(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("unexpected error %v", err)
	}
	if services.ExitCode(err) != services.ExitUnexpected {
		t.Fatalf("unmarked error should be unexpected, got %d", services.ExitCode(err))
	}
}

func TestExitCodeMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, services.ExitOK},
		{services.Wrap(services.ErrConfigInvalid, "config", "validate", "bad", nil), services.ExitConfigInvalid},
		{services.Wrap(services.ErrDeviceUnavailable, "camera", "open", "", nil), services.ExitDeviceUnavailable},
		{fmt.Errorf("run: %w", services.Wrap(services.ErrDeviceDisconnected, "camera", "read", "", nil)), services.ExitDeviceDisconnected},
		{services.Wrap(services.ErrTimeout, "camera", "read", "escalated", nil), services.ExitTimeout},
		{errors.New("panic-ish"), services.ExitUnexpected},
	}
	seen := map[int]bool{}
	for _, tt := range tests {
		if got := services.ExitCode(tt.err); got != tt.want {
			t.Fatalf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
		seen[tt.want] = true
	}
	if len(seen) != len(tests) {
		t.Fatalf("exit codes are not distinct: %v", seen)
	}
}

func TestRecoverableAndKind(t *testing.T) {
	if !services.Recoverable(services.Wrap(services.ErrInference, "inference", "detect", "", nil)) {
		t.Fatal("inference errors are recoverable")
	}
	if services.Recoverable(services.Wrap(services.ErrDeviceDisconnected, "camera", "", "", nil)) {
		t.Fatal("disconnects are fatal")
	}
	if got := services.Kind(services.Wrap(services.ErrSinkClosed, "recorder", "", "", nil)); got != "sink_closed" {
		t.Fatalf("unexpected kind %q", got)
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := services.WithStage(services.WithSessionID(context.Background(), "abc"), "inference")
	if id, ok := services.SessionIDFromContext(ctx); !ok || id != "abc" {
		t.Fatalf("session id = %q %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "inference" {
		t.Fatalf("stage = %q %v", stage, ok)
	}
	if _, ok := services.StageFromContext(context.Background()); ok {
		t.Fatal("expected no stage on empty context")
	}
}
