package testsupport

import (
	"path/filepath"
	"testing"

	"oakpipe/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a synthetic-source, headless config whose directories
// live under a per-test temp dir, then applies opts.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.OutputDir = filepath.Join(base, "recordings")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.ModelDir = filepath.Join(base, "models")
	cfgVal.Pipeline.Source = config.SourceSynthetic
	cfgVal.Pipeline.LiveViewEnabled = false
	cfgVal.Pipeline.FrameTimeoutMillis = 50
	cfgVal.Pipeline.DrainGraceSeconds = 2
	cfgVal.Camera.Width = 32
	cfgVal.Camera.Height = 24
	cfgVal.Camera.Hotplug = false

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithRecording enables the video sink.
func WithRecording() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.RecordingEnabled = true
	}
}

// WithGyroscope enables the sensor log.
func WithGyroscope() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.RecordGyroscope = true
	}
}

// WithInference enables inference, and tracking when track is true.
func WithInference(track bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.InferenceEnabled = true
		b.cfg.Pipeline.TrackingEnabled = track
	}
}

// WithModelFile writes a placeholder model under the model dir and points
// inference.model at it.
func WithModelFile(name string) ConfigOption {
	return func(b *configBuilder) {
		path := filepath.Join(b.cfg.Paths.ModelDir, name)
		WriteFile(b.t, path, 1024)
		b.cfg.Inference.Model = name
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.OutputDir)
}
