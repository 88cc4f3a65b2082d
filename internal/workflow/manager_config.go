package workflow

import (
	"time"

	"oakpipe/internal/config"
)

const defaultHeartbeat = 10 * time.Second

// SettingsFromConfig derives run loop settings from the loaded configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	if cfg == nil {
		return Settings{}.withDefaults()
	}
	return Settings{
		FrameTimeout:           cfg.FrameTimeout(),
		MaxConsecutiveTimeouts: cfg.Pipeline.MaxConsecutiveTimeouts,
		SampleTimeout:          cfg.SampleTimeout(),
		InferenceTimeout:       cfg.InferenceTimeout(),
		DrainGrace:             cfg.DrainGrace(),
		RecordOverlays:         cfg.Recording.Overlays,
		HeartbeatInterval:      defaultHeartbeat,
	}.withDefaults()
}
