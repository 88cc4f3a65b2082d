package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"oakpipe/internal/config"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	cfg        *config.Config
}

// setupCLITestEnv writes a synthetic, headless config file under a temp home.
// pipelineLines are appended to the [pipeline] table.
func setupCLITestEnv(t *testing.T, pipelineLines ...string) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	home := filepath.Join(base, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)

	configPath := filepath.Join(base, "oakpipe.toml")
	content := fmt.Sprintf(`[paths]
output_dir = %q
log_dir = %q
state_dir = %q
model_dir = %q

[pipeline]
source = "synthetic"
live_view_enabled = false
frame_timeout_ms = 50
%s
[camera]
width = 32
height = 24
hotplug = false

[recording]
min_free_mb = 0

[logging]
format = "json"
level = "warn"
`,
		filepath.Join(base, "recordings"),
		filepath.Join(base, "logs"),
		filepath.Join(base, "state"),
		filepath.Join(base, "models"),
		strings.Join(pipelineLines, "\n"),
	)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("load test config: %v", err)
	}
	return &cliTestEnv{baseDir: base, configPath: configPath, cfg: cfg}
}

func runCLI(t *testing.T, ctx context.Context, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
