package preflight

import (
	"context"
	"fmt"
	"strings"

	"oakpipe/internal/config"
	"oakpipe/internal/device"
	"oakpipe/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results,
		CheckWritableDirectory("Log directory", cfg.Paths.LogDir),
		CheckWritableDirectory("State directory", cfg.Paths.StateDir),
	)

	if cfg.Pipeline.RecordingEnabled || cfg.Pipeline.RecordGyroscope {
		results = append(results,
			CheckWritableDirectory("Output directory", cfg.Paths.OutputDir),
			CheckFreeSpace("Free space", cfg.Paths.OutputDir, cfg.Recording.MinFreeMegabytes),
		)
	}

	if cfg.Pipeline.Source == config.SourceCamera {
		results = append(results,
			CheckDeviceNode("Camera", device.NodePath(cfg.Camera.Device)),
			CheckClaim(ctx, "Camera claim", cfg.LockDir(), cfg.Camera.Device),
		)
		if cfg.Pipeline.RecordGyroscope {
			results = append(results,
				CheckDeviceNode("Gyroscope", cfg.IMU.Port),
				CheckClaim(ctx, "Gyroscope claim", cfg.LockDir(), cfg.IMU.Port),
			)
		}
	}

	if cfg.Pipeline.InferenceEnabled {
		results = append(results, CheckFile("Detector model", cfg.ModelPath()))
		if labels := cfg.LabelsPath(); labels != "" {
			results = append(results, CheckFile("Class labels", labels))
		}
	}

	if cfg.Pipeline.LiveViewEnabled {
		results = append(results, CheckDisplay())
	}
	return results
}

// Failures returns the required checks that did not pass.
func Failures(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			out = append(out, r)
		}
	}
	return out
}

// Err summarizes failed required checks as one error, nil when all passed.
// A failed device or claim check is reported as services.ErrDeviceUnavailable,
// anything else as services.ErrConfigInvalid.
func Err(results []Result) error {
	failed := Failures(results)
	if len(failed) == 0 {
		return nil
	}
	marker := services.ErrConfigInvalid
	parts := make([]string, 0, len(failed))
	for _, r := range failed {
		if isDeviceCheck(r.Name) {
			marker = services.ErrDeviceUnavailable
		}
		parts = append(parts, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	return services.Wrap(marker, "preflight", "run checks", strings.Join(parts, "; "), nil)
}

func isDeviceCheck(name string) bool {
	return strings.HasPrefix(name, "Camera") || strings.HasPrefix(name, "Gyroscope")
}
