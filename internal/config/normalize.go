package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

const envPrefix = "OAKPIPE_"

func (c *Config) normalize() error {
	c.applyEnvOverrides()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePipeline()
	c.normalizeCamera()
	c.normalizeInference()
	c.normalizeRecording()
	c.normalizeLogging()
	return nil
}

func (c *Config) applyEnvOverrides() {
	overrides := map[string]*string{
		"OUTPUT_DIR":    &c.Paths.OutputDir,
		"LOG_DIR":       &c.Paths.LogDir,
		"MODEL_DIR":     &c.Paths.ModelDir,
		"CAMERA_DEVICE": &c.Camera.Device,
		"IMU_PORT":      &c.IMU.Port,
		"TARGET":        &c.Pipeline.Target,
	}
	for key, field := range overrides {
		if value, ok := os.LookupEnv(envPrefix + key); ok && strings.TrimSpace(value) != "" {
			*field = value
		}
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.OutputDir, err = expandPath(strings.TrimSpace(c.Paths.OutputDir)); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ModelDir) == "" {
		c.Paths.ModelDir = defaultModelDir
	}
	if c.Paths.ModelDir, err = expandPath(strings.TrimSpace(c.Paths.ModelDir)); err != nil {
		return fmt.Errorf("paths.model_dir: %w", err)
	}
	if c.Recording.SessionCatalogPath != "" {
		if c.Recording.SessionCatalogPath, err = expandPath(strings.TrimSpace(c.Recording.SessionCatalogPath)); err != nil {
			return fmt.Errorf("recording.session_catalog: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizePipeline() {
	c.Pipeline.Target = strings.ToLower(strings.TrimSpace(c.Pipeline.Target))
	if c.Pipeline.Target == "" {
		c.Pipeline.Target = TargetDev
	}
	c.Pipeline.Source = strings.ToLower(strings.TrimSpace(c.Pipeline.Source))
	if c.Pipeline.Source == "" {
		c.Pipeline.Source = SourceCamera
	}
}

// normalizeCamera applies the pi profile to geometry the file left at the
// workstation defaults.
func (c *Config) normalizeCamera() {
	c.Camera.Device = strings.TrimSpace(c.Camera.Device)
	if c.Pipeline.Target != TargetPi {
		return
	}
	defaults := Default()
	if c.Camera.Width == defaults.Camera.Width && c.Camera.Height == defaults.Camera.Height {
		c.Camera.Width = piProfile.width
		c.Camera.Height = piProfile.height
	}
	if c.Camera.FPS == defaults.Camera.FPS {
		c.Camera.FPS = piProfile.fps
	}
}

func (c *Config) normalizeInference() {
	c.Inference.Model = strings.TrimSpace(c.Inference.Model)
	c.Inference.ModelDev = strings.TrimSpace(c.Inference.ModelDev)
	c.Inference.ModelPi = strings.TrimSpace(c.Inference.ModelPi)
	c.Inference.Labels = strings.TrimSpace(c.Inference.Labels)
	c.Inference.Backend = strings.ToLower(strings.TrimSpace(c.Inference.Backend))
	if c.Inference.Backend == "" {
		c.Inference.Backend = "default"
	}
	if len(c.Inference.Classes) > 0 {
		classes := slices.Clone(c.Inference.Classes)
		slices.Sort(classes)
		c.Inference.Classes = slices.Compact(classes)
	}
	if c.Pipeline.Target == TargetPi {
		defaults := Default()
		if c.Inference.InputSize == defaults.Inference.InputSize {
			c.Inference.InputSize = piProfile.inputSize
		}
		if c.Inference.TimeoutMillis == defaults.Inference.TimeoutMillis {
			c.Inference.TimeoutMillis = piProfile.timeoutMillis
		}
	}
}

func (c *Config) normalizeRecording() {
	c.Recording.FilePrefix = strings.TrimSpace(c.Recording.FilePrefix)
	if c.Recording.FilePrefix == "" {
		c.Recording.FilePrefix = defaultFilePrefix
	}
	c.Recording.Container = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.Recording.Container)), ".")
	if c.Recording.Container == "" {
		c.Recording.Container = defaultContainer
	}
	c.Recording.Codec = strings.TrimSpace(c.Recording.Codec)
	if c.Recording.Codec == "" {
		c.Recording.Codec = defaultCodec
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = "console"
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = "info"
	}
	c.Logging.Level = level
}
