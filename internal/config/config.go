package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"oakpipe/internal/services"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
	StateDir  string `toml:"state_dir"`
	ModelDir  string `toml:"model_dir"`
}

// Pipeline holds the feature toggles and run loop timing.
type Pipeline struct {
	Target                 string `toml:"target"`
	Source                 string `toml:"source"`
	InferenceEnabled       bool   `toml:"inference_enabled"`
	TrackingEnabled        bool   `toml:"tracking_enabled"`
	RecordingEnabled       bool   `toml:"recording_enabled"`
	LiveViewEnabled        bool   `toml:"live_view_enabled"`
	RecordGyroscope        bool   `toml:"record_gyroscope"`
	FrameTimeoutMillis     int    `toml:"frame_timeout_ms"`
	MaxConsecutiveTimeouts int    `toml:"max_consecutive_timeouts"`
	DrainGraceSeconds      int    `toml:"drain_grace_seconds"`
}

// Camera describes the color stream requested from the device.
type Camera struct {
	Device          string `toml:"device"`
	Width           int    `toml:"width"`
	Height          int    `toml:"height"`
	FPS             int    `toml:"fps"`
	BufferDepth     int    `toml:"buffer_depth"`
	MaxReadFailures int    `toml:"max_read_failures"`
	Hotplug         bool   `toml:"hotplug"`
}

// IMU describes the gyroscope serial link.
type IMU struct {
	Port                string `toml:"port"`
	BaudRate            int    `toml:"baud_rate"`
	RateHz              int    `toml:"rate_hz"`
	BufferDepth         int    `toml:"buffer_depth"`
	SampleTimeoutMillis int    `toml:"sample_timeout_ms"`
}

// Inference configures the object detector.
type Inference struct {
	Model               string  `toml:"model"`
	ModelDev            string  `toml:"model_dev"`
	ModelPi             string  `toml:"model_pi"`
	Labels              string  `toml:"labels"`
	InputSize           int     `toml:"input_size"`
	ConfidenceThreshold float64 `toml:"confidence_threshold"`
	NMSThreshold        float64 `toml:"nms_threshold"`
	Classes             []int   `toml:"classes"`
	TimeoutMillis       int     `toml:"timeout_ms"`
	Backend             string  `toml:"backend"`
	Verbose             bool    `toml:"verbose"`
}

// Tracking configures the multi-object tracker.
type Tracking struct {
	IoUThreshold  float64 `toml:"iou_threshold"`
	MaxMissed     int     `toml:"max_missed"`
	MaxDetections int     `toml:"max_detections"`
}

// Recording configures the video and sensor sinks.
type Recording struct {
	FilePrefix         string `toml:"file_prefix"`
	Container          string `toml:"container"`
	Codec              string `toml:"codec"`
	Overlays           bool   `toml:"overlays"`
	QueueDepth         int    `toml:"queue_depth"`
	SensorQueueDepth   int    `toml:"sensor_queue_depth"`
	SensorFlushEvery   int    `toml:"sensor_flush_every"`
	MinFreeMegabytes   int    `toml:"min_free_mb"`
	CatalogSessions    bool   `toml:"catalog_sessions"`
	SessionCatalogPath string `toml:"session_catalog"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates every value the pipeline reads at startup.
//
// Configuration sections by subsystem:
//   - Paths: output, log, state and model directories
//   - Pipeline: feature toggles, target profile and run loop timing
//   - Camera: color stream geometry and device selection
//   - IMU: gyroscope serial link
//   - Inference: detector model and thresholds
//   - Tracking: association thresholds
//   - Recording: sinks, queues and naming
//   - Logging: log format, level, and retention
type Config struct {
	Paths     Paths     `toml:"paths"`
	Pipeline  Pipeline  `toml:"pipeline"`
	Camera    Camera    `toml:"camera"`
	IMU       IMU       `toml:"imu"`
	Inference Inference `toml:"inference"`
	Tracking  Tracking  `toml:"tracking"`
	Recording Recording `toml:"recording"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, normalizes and validates a configuration file. Any
// failure is tagged with services.ErrConfigInvalid.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, invalid("resolve config path", err)
	}

	loadDotEnv(filepath.Dir(resolvedPath))

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, invalid("open config", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, invalid("parse config", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, invalid("normalize config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func invalid(op string, err error) error {
	return services.Wrap(services.ErrConfigInvalid, "config", op, "", err)
}

// loadDotEnv reads an optional .env beside the config file. Variables already
// present in the environment win.
func loadDotEnv(dir string) {
	candidate := filepath.Join(dir, ".env")
	if info, err := os.Stat(candidate); err != nil || info.IsDir() {
		return
	}
	_ = godotenv.Load(candidate)
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("oakpipe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the pipeline writes into. The
// output directory is only required when recording is enabled.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.LogDir, c.Paths.StateDir}
	if c.Pipeline.RecordingEnabled {
		dirs = append(dirs, c.Paths.OutputDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return services.Wrap(services.ErrIO, "config", "create directory", dir, err)
		}
	}
	return nil
}

// ModelPath resolves the detector weights for the active target. Relative
// names are anchored at paths.model_dir.
func (c *Config) ModelPath() string {
	name := c.Inference.Model
	switch c.Pipeline.Target {
	case TargetPi:
		if c.Inference.ModelPi != "" {
			name = c.Inference.ModelPi
		}
	default:
		if c.Inference.ModelDev != "" {
			name = c.Inference.ModelDev
		}
	}
	if name == "" {
		return ""
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Paths.ModelDir, name)
}

// LabelsPath resolves the class label file, empty when none is configured.
func (c *Config) LabelsPath() string {
	name := c.Inference.Labels
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Paths.ModelDir, name)
}

// SessionCatalogPath returns the sqlite file used for the session catalog.
func (c *Config) SessionCatalogPath() string {
	if c.Recording.SessionCatalogPath != "" {
		return c.Recording.SessionCatalogPath
	}
	return filepath.Join(c.Paths.StateDir, "sessions.db")
}

// LockDir holds the per-device claim files.
func (c *Config) LockDir() string {
	return filepath.Join(c.Paths.StateDir, "locks")
}

// FrameTimeout is the bounded wait for one frame.
func (c *Config) FrameTimeout() time.Duration {
	return time.Duration(c.Pipeline.FrameTimeoutMillis) * time.Millisecond
}

// SampleTimeout is the bounded wait for one gyroscope sample.
func (c *Config) SampleTimeout() time.Duration {
	return time.Duration(c.IMU.SampleTimeoutMillis) * time.Millisecond
}

// InferenceTimeout bounds a single detector call.
func (c *Config) InferenceTimeout() time.Duration {
	return time.Duration(c.Inference.TimeoutMillis) * time.Millisecond
}

// DrainGrace bounds how long the sinks may take to flush after a stop.
func (c *Config) DrainGrace() time.Duration {
	return time.Duration(c.Pipeline.DrainGraceSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
