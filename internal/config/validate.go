package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"oakpipe/internal/services"
)

var supportedContainers = map[string]struct{}{
	"mkv": {},
	"mp4": {},
	"avi": {},
}

var supportedBackends = map[string]struct{}{
	"default":  {},
	"cuda":     {},
	"openvino": {},
	"cpu":      {},
}

// Validate ensures the configuration is usable. Failures are tagged with
// services.ErrConfigInvalid and are reported before any device is opened.
func (c *Config) Validate() error {
	checks := []func() error{
		c.validatePipeline,
		c.validateCamera,
		c.validateIMU,
		c.validateInference,
		c.validateTracking,
		c.validateRecording,
		c.validateLogging,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func invalidf(format string, args ...any) error {
	return services.Wrap(services.ErrConfigInvalid, "config", "validate", fmt.Sprintf(format, args...), nil)
}

func (c *Config) validatePipeline() error {
	switch c.Pipeline.Target {
	case TargetDev, TargetPi:
	default:
		return invalidf("pipeline.target must be %q or %q, got %q", TargetDev, TargetPi, c.Pipeline.Target)
	}
	switch c.Pipeline.Source {
	case SourceCamera, SourceSynthetic:
	default:
		return invalidf("pipeline.source must be %q or %q, got %q", SourceCamera, SourceSynthetic, c.Pipeline.Source)
	}
	if c.Pipeline.TrackingEnabled && !c.Pipeline.InferenceEnabled {
		return invalidf("pipeline.tracking_enabled requires pipeline.inference_enabled")
	}
	if err := ensurePositive(
		intSetting{"pipeline.frame_timeout_ms", c.Pipeline.FrameTimeoutMillis},
		intSetting{"pipeline.max_consecutive_timeouts", c.Pipeline.MaxConsecutiveTimeouts},
	); err != nil {
		return err
	}
	if c.Pipeline.DrainGraceSeconds < 0 {
		return invalidf("pipeline.drain_grace_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateCamera() error {
	if c.Pipeline.Source == SourceCamera && c.Camera.Device == "" {
		return invalidf("camera.device must be set when pipeline.source is %q", SourceCamera)
	}
	return ensurePositive(
		intSetting{"camera.width", c.Camera.Width},
		intSetting{"camera.height", c.Camera.Height},
		intSetting{"camera.fps", c.Camera.FPS},
		intSetting{"camera.buffer_depth", c.Camera.BufferDepth},
		intSetting{"camera.max_read_failures", c.Camera.MaxReadFailures},
	)
}

func (c *Config) validateIMU() error {
	if !c.Pipeline.RecordGyroscope {
		return nil
	}
	if c.Pipeline.Source == SourceCamera && strings.TrimSpace(c.IMU.Port) == "" {
		return invalidf("imu.port must be set when pipeline.record_gyroscope is true")
	}
	return ensurePositive(
		intSetting{"imu.baud_rate", c.IMU.BaudRate},
		intSetting{"imu.rate_hz", c.IMU.RateHz},
		intSetting{"imu.buffer_depth", c.IMU.BufferDepth},
		intSetting{"imu.sample_timeout_ms", c.IMU.SampleTimeoutMillis},
	)
}

func (c *Config) validateInference() error {
	if !c.Pipeline.InferenceEnabled {
		return nil
	}
	if c.Pipeline.Source == SourceCamera && c.ModelPath() == "" {
		return invalidf("inference.model (or inference.model_%s) must be set when pipeline.inference_enabled is true", c.Pipeline.Target)
	}
	if c.Inference.ConfidenceThreshold < 0 || c.Inference.ConfidenceThreshold > 1 {
		return invalidf("inference.confidence_threshold must be between 0 and 1")
	}
	if c.Inference.NMSThreshold < 0 || c.Inference.NMSThreshold > 1 {
		return invalidf("inference.nms_threshold must be between 0 and 1")
	}
	if _, ok := supportedBackends[c.Inference.Backend]; !ok {
		return invalidf("inference.backend %q is not supported", c.Inference.Backend)
	}
	for _, class := range c.Inference.Classes {
		if class < 0 {
			return invalidf("inference.classes must not contain negative ids")
		}
	}
	return ensurePositive(
		intSetting{"inference.input_size", c.Inference.InputSize},
		intSetting{"inference.timeout_ms", c.Inference.TimeoutMillis},
	)
}

func (c *Config) validateTracking() error {
	if !c.Pipeline.TrackingEnabled {
		return nil
	}
	if c.Tracking.IoUThreshold <= 0 || c.Tracking.IoUThreshold > 1 {
		return invalidf("tracking.iou_threshold must be in (0, 1]")
	}
	if c.Tracking.MaxMissed < 0 {
		return invalidf("tracking.max_missed must be >= 0")
	}
	return ensurePositive(intSetting{"tracking.max_detections", c.Tracking.MaxDetections})
}

func (c *Config) validateRecording() error {
	if !c.Pipeline.RecordingEnabled && !c.Pipeline.RecordGyroscope {
		return nil
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return invalidf("paths.output_dir must be set when recording is enabled")
	}
	if strings.ContainsAny(c.Recording.FilePrefix, string(filepath.Separator)) {
		return invalidf("recording.file_prefix must not contain path separators")
	}
	if _, ok := supportedContainers[c.Recording.Container]; !ok {
		return invalidf("recording.container %q is not supported (use mkv, mp4 or avi)", c.Recording.Container)
	}
	if len(c.Recording.Codec) != 4 {
		return invalidf("recording.codec must be a four character code, got %q", c.Recording.Codec)
	}
	if c.Recording.MinFreeMegabytes < 0 {
		return invalidf("recording.min_free_mb must be >= 0")
	}
	return ensurePositive(
		intSetting{"recording.queue_depth", c.Recording.QueueDepth},
		intSetting{"recording.sensor_queue_depth", c.Recording.SensorQueueDepth},
		intSetting{"recording.sensor_flush_every", c.Recording.SensorFlushEvery},
	)
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return invalidf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalidf("logging.level %q is not recognized", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return invalidf("logging.retention_days must be >= 0")
	}
	return nil
}

// intSetting pairs a config key with its value so checks report keys in a
// fixed order.
type intSetting struct {
	key   string
	value int
}

func ensurePositive(settings ...intSetting) error {
	for _, s := range settings {
		if s.value <= 0 {
			return invalidf("%s must be positive", s.key)
		}
	}
	return nil
}
