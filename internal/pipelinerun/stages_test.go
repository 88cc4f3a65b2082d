package pipelinerun

import (
	"testing"
	"time"

	"oakpipe/internal/capture"
	"oakpipe/internal/config"
	"oakpipe/internal/logging"
	"oakpipe/internal/recording"
	"oakpipe/internal/services/imu"
	"oakpipe/internal/services/opencv"
	"oakpipe/internal/services/synthetic"
	"oakpipe/internal/tracking"
)

func TestBuildStagesSelectsAdapters(t *testing.T) {
	clock := capture.NewMonotonicClock()
	logger := logging.NewNop()

	t.Run("synthetic minimal", func(t *testing.T) {
		cfg := config.Default()
		cfg.Pipeline.Source = config.SourceSynthetic
		cfg.Pipeline.LiveViewEnabled = false

		set := buildStages(&cfg, Options{}, clock, logger)
		if _, ok := set.Source.(*synthetic.FrameSource); !ok {
			t.Fatalf("source = %T, want synthetic frames", set.Source)
		}
		if set.Sensor != nil || set.Detector != nil || set.Tracker != nil || set.Recorder != nil || set.Display != nil {
			t.Fatalf("disabled features must stay nil: %+v", set)
		}
	})

	t.Run("camera full", func(t *testing.T) {
		cfg := config.Default()
		cfg.Pipeline.InferenceEnabled = true
		cfg.Pipeline.TrackingEnabled = true
		cfg.Pipeline.RecordingEnabled = true
		cfg.Pipeline.RecordGyroscope = true
		cfg.IMU.Port = "/dev/ttyACM0"

		set := buildStages(&cfg, Options{}, clock, logger)
		if _, ok := set.Source.(*opencv.Camera); !ok {
			t.Fatalf("source = %T, want camera", set.Source)
		}
		if _, ok := set.Sensor.(*imu.Stream); !ok {
			t.Fatalf("sensor = %T, want serial imu", set.Sensor)
		}
		if _, ok := set.Detector.(*opencv.Detector); !ok {
			t.Fatalf("detector = %T", set.Detector)
		}
		if _, ok := set.Tracker.(*tracking.Tracker); !ok {
			t.Fatalf("tracker = %T", set.Tracker)
		}
		if _, ok := set.Recorder.(*recording.Recorder); !ok {
			t.Fatalf("recorder = %T", set.Recorder)
		}
		if _, ok := set.Display.(*opencv.Window); !ok {
			t.Fatalf("display = %T, want window", set.Display)
		}
	})

	t.Run("headless drops the window", func(t *testing.T) {
		cfg := config.Default()
		set := buildStages(&cfg, Options{Headless: true}, clock, logger)
		if set.Display != nil {
			t.Fatalf("display = %T, want nil", set.Display)
		}
	})

	t.Run("gyroscope alone still opens a recorder", func(t *testing.T) {
		cfg := config.Default()
		cfg.Pipeline.Source = config.SourceSynthetic
		cfg.Pipeline.RecordGyroscope = true

		set := buildStages(&cfg, Options{}, clock, logger)
		if _, ok := set.Sensor.(*synthetic.Gyro); !ok {
			t.Fatalf("sensor = %T, want synthetic gyro", set.Sensor)
		}
		if set.Recorder == nil {
			t.Fatal("sensor logging needs the recorder")
		}
	})
}

func TestApplyOverrides(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.RecordingEnabled = true
	cfg.Pipeline.RecordGyroscope = true

	applyOverrides(&cfg, Options{Headless: true, NoRecord: true, Synthetic: true})

	if cfg.Pipeline.Source != config.SourceSynthetic {
		t.Fatalf("source = %q", cfg.Pipeline.Source)
	}
	if cfg.Pipeline.RecordingEnabled || cfg.Pipeline.RecordGyroscope {
		t.Fatal("no-record must disable both sinks")
	}
	if cfg.Pipeline.LiveViewEnabled {
		t.Fatal("headless must disable live view")
	}
}

func TestPeriod(t *testing.T) {
	tests := map[int]time.Duration{
		0:   0,
		-5:  0,
		100: 10 * time.Millisecond,
		30:  time.Second / 30,
	}
	for hz, want := range tests {
		if got := period(hz); got != want {
			t.Errorf("period(%d) = %v, want %v", hz, got, want)
		}
	}
}
