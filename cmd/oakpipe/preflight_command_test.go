package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"oakpipe/internal/preflight"
	"oakpipe/internal/services"
)

func TestPreflightPassesForSyntheticSource(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, context.Background(), []string{"preflight"}, env.configPath)
	if err != nil {
		t.Fatalf("preflight: %v\n%s", err, out)
	}
	requireContains(t, out, "Log directory")
	requireContains(t, out, "State directory")
	if strings.Contains(out, "Camera") {
		t.Fatalf("synthetic source must not probe the camera:\n%s", out)
	}
}

func TestPreflightReportsMissingModel(t *testing.T) {
	env := setupCLITestEnv(t, "inference_enabled = true")

	out, _, err := runCLI(t, context.Background(), []string{"preflight"}, env.configPath)
	if !errors.Is(err, services.ErrConfigInvalid) {
		t.Fatalf("err = %v, want ErrConfigInvalid", err)
	}
	requireContains(t, out, "Detector model")
	requireContains(t, out, "FAIL")
}

func TestPrintPreflightStatuses(t *testing.T) {
	results := []preflight.Result{
		{Name: "Log directory", Passed: true, Detail: "/tmp/logs (read/write ok)"},
		{Name: "Display", Optional: true, Detail: "no display"},
		{Name: "Camera", Detail: "/dev/video0 (error: does not exist)"},
	}
	var buf bytes.Buffer
	printPreflight(&buf, results, false)
	out := buf.String()
	for _, want := range []string{"OK", "WARN", "FAIL", "/dev/video0"} {
		requireContains(t, out, want)
	}
	if strings.Contains(out, ansiReset) {
		t.Fatal("colour codes written to a non-terminal")
	}

	buf.Reset()
	printPreflight(&buf, results, true)
	requireContains(t, buf.String(), ansiGreen+"OK"+ansiReset)
}
