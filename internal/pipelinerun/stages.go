package pipelinerun

import (
	"log/slog"
	"time"

	"oakpipe/internal/capture"
	"oakpipe/internal/config"
	"oakpipe/internal/recording"
	"oakpipe/internal/services/imu"
	"oakpipe/internal/services/opencv"
	"oakpipe/internal/services/synthetic"
	"oakpipe/internal/stage"
	"oakpipe/internal/tracking"
	"oakpipe/internal/workflow"
)

// buildStages maps the enabled features onto concrete adapters. Anything left
// nil is replaced by its disabled variant inside the manager.
func buildStages(cfg *config.Config, opts Options, clock capture.Clock, logger *slog.Logger) workflow.StageSet {
	var set workflow.StageSet
	synth := cfg.Pipeline.Source == config.SourceSynthetic

	set.Source = newSource(cfg, synth, clock, logger)
	if cfg.Pipeline.RecordGyroscope {
		set.Sensor = newSensor(cfg, synth, clock, logger)
	}

	if cfg.Pipeline.InferenceEnabled {
		set.Detector = opencv.NewDetector(opencv.DetectorOptions{
			Model:               cfg.ModelPath(),
			Labels:              cfg.LabelsPath(),
			InputSize:           cfg.Inference.InputSize,
			ConfidenceThreshold: cfg.Inference.ConfidenceThreshold,
			NMSThreshold:        cfg.Inference.NMSThreshold,
			Classes:             cfg.Inference.Classes,
			Backend:             cfg.Inference.Backend,
			Verbose:             cfg.Inference.Verbose,
		}, logger)
		set.Renderer = opencv.NewRenderer(logger)
		if cfg.Pipeline.TrackingEnabled {
			set.Tracker = tracking.New(tracking.Options{
				IoUThreshold:  cfg.Tracking.IoUThreshold,
				MaxMissed:     cfg.Tracking.MaxMissed,
				MaxDetections: cfg.Tracking.MaxDetections,
			})
		}
	}

	if cfg.Pipeline.RecordingEnabled || cfg.Pipeline.RecordGyroscope {
		encoders := opts.Encoders
		if encoders == nil {
			encoders = opencv.NewEncoderFactory()
		}
		set.Recorder = recording.New(recording.Options{
			Dir:              cfg.Paths.OutputDir,
			Prefix:           cfg.Recording.FilePrefix,
			Container:        cfg.Recording.Container,
			Codec:            cfg.Recording.Codec,
			Width:            cfg.Camera.Width,
			Height:           cfg.Camera.Height,
			FPS:              float64(cfg.Camera.FPS),
			Video:            cfg.Pipeline.RecordingEnabled,
			Sensor:           cfg.Pipeline.RecordGyroscope,
			QueueDepth:       cfg.Recording.QueueDepth,
			SensorQueueDepth: cfg.Recording.SensorQueueDepth,
			SensorFlushEvery: cfg.Recording.SensorFlushEvery,
			Encoders:         encoders,
		}, logger)
	}

	if cfg.Pipeline.LiveViewEnabled && !opts.Headless {
		set.Display = opencv.NewWindow(opencv.WindowTitle)
	}
	return set
}

func newSource(cfg *config.Config, synth bool, clock capture.Clock, logger *slog.Logger) stage.FrameSource {
	if synth {
		return synthetic.NewFrameSource(synthetic.FrameOptions{
			Width:    cfg.Camera.Width,
			Height:   cfg.Camera.Height,
			Interval: period(cfg.Camera.FPS),
			Clock:    clock,
		})
	}
	return opencv.NewCamera(opencv.CameraOptions{
		Device:          cfg.Camera.Device,
		Width:           cfg.Camera.Width,
		Height:          cfg.Camera.Height,
		FPS:             float64(cfg.Camera.FPS),
		BufferDepth:     cfg.Camera.BufferDepth,
		MaxReadFailures: cfg.Camera.MaxReadFailures,
		LockDir:         cfg.LockDir(),
		Hotplug:         cfg.Camera.Hotplug,
		Clock:           clock,
	}, logger)
}

func newSensor(cfg *config.Config, synth bool, clock capture.Clock, logger *slog.Logger) stage.SensorStream {
	if synth {
		return synthetic.NewGyro(synthetic.GyroOptions{
			Interval: period(cfg.IMU.RateHz),
			Clock:    clock,
		})
	}
	return imu.New(imu.Options{
		Port:        cfg.IMU.Port,
		BaudRate:    cfg.IMU.BaudRate,
		BufferDepth: cfg.IMU.BufferDepth,
		LockDir:     cfg.LockDir(),
		Clock:       clock,
	}, logger)
}

// period converts a rate in hertz to the interval between deliveries.
func period(hz int) time.Duration {
	if hz <= 0 {
		return 0
	}
	return time.Second / time.Duration(hz)
}
