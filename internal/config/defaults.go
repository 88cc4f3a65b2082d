package config

const (
	defaultConfigPath = "~/.config/oakpipe/config.toml"
	defaultOutputDir  = "~/.local/share/oakpipe/recordings"
	defaultLogDir     = "~/.local/share/oakpipe/logs"
	defaultStateDir   = "~/.local/state/oakpipe"
	defaultModelDir   = "~/.local/share/oakpipe/models"

	// TargetDev is a workstation with a display and a discrete GPU or fast CPU.
	TargetDev = "dev"
	// TargetPi is a constrained single-board computer, usually headless.
	TargetPi = "pi"

	// SourceCamera reads the physical camera and serial gyroscope.
	SourceCamera = "camera"
	// SourceSynthetic generates frames and samples in-process.
	SourceSynthetic = "synthetic"

	defaultFilePrefix = "oakd"
	defaultContainer  = "mkv"
	defaultCodec      = "mp4v"
)

// Default returns a Config populated with repository defaults. Every optional
// feature is off except the live view, matching a first run on a workstation.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			StateDir:  defaultStateDir,
			ModelDir:  defaultModelDir,
		},
		Pipeline: Pipeline{
			Target:                 TargetDev,
			Source:                 SourceCamera,
			LiveViewEnabled:        true,
			FrameTimeoutMillis:     1000,
			MaxConsecutiveTimeouts: 10,
			DrainGraceSeconds:      5,
		},
		Camera: Camera{
			Device:          "0",
			Width:           1280,
			Height:          720,
			FPS:             30,
			BufferDepth:     4,
			MaxReadFailures: 30,
			Hotplug:         true,
		},
		IMU: IMU{
			BaudRate:            115200,
			RateHz:              100,
			BufferDepth:         50,
			SampleTimeoutMillis: 100,
		},
		Inference: Inference{
			InputSize:           640,
			ConfidenceThreshold: 0.5,
			NMSThreshold:        0.45,
			TimeoutMillis:       200,
			Backend:             "default",
		},
		Tracking: Tracking{
			IoUThreshold:  0.3,
			MaxMissed:     30,
			MaxDetections: 100,
		},
		Recording: Recording{
			FilePrefix:       defaultFilePrefix,
			Container:        defaultContainer,
			Codec:            defaultCodec,
			Overlays:         true,
			QueueDepth:       64,
			SensorQueueDepth: 4096,
			SensorFlushEvery: 100,
			MinFreeMegabytes: 512,
			CatalogSessions:  true,
		},
		Logging: Logging{
			Format:        "console",
			Level:         "info",
			RetentionDays: 30,
		},
	}
}

// piProfile holds the values a pi target uses when the file leaves the
// corresponding key at its workstation default.
var piProfile = struct {
	width, height, fps int
	inputSize          int
	timeoutMillis      int
}{
	width:         640,
	height:        480,
	fps:           15,
	inputSize:     320,
	timeoutMillis: 500,
}
