package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"oakpipe/internal/config"
	"oakpipe/internal/device"
	"oakpipe/internal/services"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckWritableDirectory_Missing(t *testing.T) {
	result := CheckWritableDirectory("out", filepath.Join(t.TempDir(), "a", "b"))
	if !result.Passed {
		t.Fatalf("a creatable directory should pass: %s", result.Detail)
	}
}

func TestCheckWritableDirectory_UnderFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckWritableDirectory("out", filepath.Join(f, "sub")); result.Passed {
		t.Fatal("expected failure below a regular file")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("space", dir, 1); !result.Passed {
		t.Fatalf("expected at least 1 MB free: %s", result.Detail)
	}
	if result := CheckFreeSpace("space", dir, 1<<40); result.Passed {
		t.Fatal("an exabyte requirement should fail")
	}
	if result := CheckFreeSpace("space", filepath.Join(dir, "later"), 1); !result.Passed {
		t.Fatalf("missing directory should be measured at its ancestor: %s", result.Detail)
	}
}

func TestCheckFile(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.onnx")
	model := filepath.Join(dir, "model.onnx")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(model, []byte("weights"), 0o644); err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		path string
		pass bool
	}{
		{model, true},
		{empty, false},
		{filepath.Join(dir, "missing.onnx"), false},
		{dir, false},
		{"", false},
	}
	for _, tc := range cases {
		if got := CheckFile("model", tc.path).Passed; got != tc.pass {
			t.Errorf("CheckFile(%q) passed=%v, want %v", tc.path, got, tc.pass)
		}
	}
}

func TestCheckDeviceNode(t *testing.T) {
	if result := CheckDeviceNode("camera", "/dev/null"); !result.Passed {
		t.Fatalf("/dev/null should be usable: %s", result.Detail)
	}
	if result := CheckDeviceNode("camera", filepath.Join(t.TempDir(), "video9")); result.Passed {
		t.Fatal("expected failure for a missing node")
	}
}

func TestCheckClaimReportsHeldDevice(t *testing.T) {
	lockDir := t.TempDir()
	if result := CheckClaim(context.Background(), "claim", lockDir, "0"); !result.Passed {
		t.Fatalf("expected a free device: %s", result.Detail)
	}
	claim, err := device.Acquire(lockDir, "0")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer claim.Release()
	if result := CheckClaim(context.Background(), "claim", lockDir, "0"); result.Passed {
		t.Fatal("expected a held claim to fail")
	}
}

func TestCheckDisplay(t *testing.T) {
	t.Setenv("DISPLAY", "")
	t.Setenv("WAYLAND_DISPLAY", "")
	result := CheckDisplay()
	if result.Passed || !result.Optional {
		t.Fatalf("expected an optional warning, got %+v", result)
	}
	t.Setenv("DISPLAY", ":0")
	if result := CheckDisplay(); !result.Passed {
		t.Fatalf("expected pass with DISPLAY set: %+v", result)
	}
}

func TestRunAllSyntheticHeadless(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(base, "out")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Pipeline.Source = config.SourceSynthetic
	cfg.Pipeline.LiveViewEnabled = false
	cfg.Pipeline.RecordingEnabled = true
	cfg.Recording.MinFreeMegabytes = 1

	results := RunAll(context.Background(), &cfg)
	if err := Err(results); err != nil {
		t.Fatalf("unexpected failure: %v (%+v)", err, results)
	}
	names := map[string]bool{}
	for _, r := range results {
		names[r.Name] = true
	}
	for _, want := range []string{"Log directory", "State directory", "Output directory", "Free space"} {
		if !names[want] {
			t.Errorf("missing check %q", want)
		}
	}
	if names["Camera"] || names["Display"] || names["Detector model"] {
		t.Fatalf("disabled features were checked: %+v", results)
	}
}

func TestRunAllMissingModelIsConfigInvalid(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.ModelDir = filepath.Join(base, "models")
	cfg.Pipeline.Source = config.SourceSynthetic
	cfg.Pipeline.LiveViewEnabled = false
	cfg.Pipeline.InferenceEnabled = true
	cfg.Inference.Model = "yolo.onnx"

	err := Err(RunAll(context.Background(), &cfg))
	if !errors.Is(err, services.ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestRunAllMissingCameraIsDeviceUnavailable(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Pipeline.LiveViewEnabled = false
	cfg.Camera.Device = filepath.Join(base, "video42")

	err := Err(RunAll(context.Background(), &cfg))
	if services.ExitCode(err) != services.ExitDeviceUnavailable {
		t.Fatalf("expected device unavailable, got %v", err)
	}
}

func TestOptionalFailuresDoNotFail(t *testing.T) {
	results := []Result{{Name: "Display", Optional: true}, {Name: "Log directory", Passed: true}}
	if err := Err(results); err != nil {
		t.Fatalf("optional failure should not fail: %v", err)
	}
	if len(Failures(results)) != 0 {
		t.Fatal("expected no required failures")
	}
}
