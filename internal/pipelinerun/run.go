package pipelinerun

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"oakpipe/internal/capture"
	"oakpipe/internal/config"
	"oakpipe/internal/logging"
	"oakpipe/internal/preflight"
	"oakpipe/internal/recording"
	"oakpipe/internal/services"
	"oakpipe/internal/sessions"
	"oakpipe/internal/workflow"
)

// Options adjust one run without editing the configuration file.
type Options struct {
	Headless  bool
	NoRecord  bool
	Synthetic bool

	// Logger replaces the process logger built from configuration.
	Logger *slog.Logger
	// Encoders replaces the OpenCV video encoder.
	Encoders recording.EncoderFactory
	// SkipSignals leaves SIGINT and SIGTERM alone.
	SkipSignals bool
}

// Result describes a finished session.
type Result struct {
	SessionID string
	LogPath   string
	Summary   workflow.Summary
}

// Run executes one capture session and blocks until it stops. The returned
// error carries the marker that decides the process exit code.
func Run(ctx context.Context, cfg *config.Config, opts Options) (Result, error) {
	if cfg == nil {
		return Result{}, services.Wrap(services.ErrConfigInvalid, "pipeline", "run", "config is required", nil)
	}
	effective := *cfg
	applyOverrides(&effective, opts)
	cfg = &effective

	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	if err := preflight.Err(preflight.RunAll(ctx, cfg)); err != nil {
		return Result{}, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return Result{}, services.Wrap(services.ErrConfigInvalid, "pipeline", "ensure directories", "create configured directories", err)
	}

	logger := opts.Logger
	if logger == nil {
		built, err := logging.NewFromConfig(cfg)
		if err != nil {
			return Result{}, services.Wrap(services.ErrConfigInvalid, "pipeline", "init logger", "build logger", err)
		}
		logger = built
	}

	catalog, session := openCatalog(ctx, cfg, logger)
	if catalog != nil {
		defer catalog.Close()
	}
	sessionID := uuid.NewString()
	if session != nil {
		sessionID = session.ID
	}

	result := Result{SessionID: sessionID}
	sessionLog, err := logging.OpenSessionLog(logger, cfg.Paths.LogDir, sessionID)
	if err != nil {
		logging.WarnWithContext(logger, "session log unavailable", "session_log_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the log directory"),
			logging.String(logging.FieldImpact, "session records only reach the process log"),
		)
		logger = logging.WithContext(services.WithSessionID(ctx, sessionID), logger)
	} else {
		defer sessionLog.Close()
		logger = sessionLog.Logger
		result.LogPath = sessionLog.Path
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, cfg.Paths.LogDir, "session-*.log", result.LogPath)

	logger.Info("session starting",
		logging.String(logging.FieldEventType, "session_start"),
		logging.String("target", cfg.Pipeline.Target),
		logging.String("source", cfg.Pipeline.Source),
		logging.Bool("inference", cfg.Pipeline.InferenceEnabled),
		logging.Bool("tracking", cfg.Pipeline.TrackingEnabled),
		logging.Bool("recording", cfg.Pipeline.RecordingEnabled),
		logging.Bool("gyroscope", cfg.Pipeline.RecordGyroscope),
		logging.Bool("live_view", cfg.Pipeline.LiveViewEnabled && !opts.Headless),
	)

	clock := capture.NewMonotonicClock()
	stages := buildStages(cfg, opts, clock, logger)
	manager := workflow.NewManager(workflow.SettingsFromConfig(cfg), stages, logger, workflow.WithClock(clock))

	if !opts.SkipSignals {
		stopSignals := forwardSignals(manager, logger)
		defer stopSignals()
	}

	summary, runErr := manager.Run(ctx)
	result.Summary = summary
	logSummary(logger, summary, result.LogPath, runErr)

	if catalog != nil && session != nil {
		finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		outcome := sessions.Outcome{
			EndedAt:      time.Now(),
			Recorder:     summary.Recorder,
			DrainAborted: summary.DrainAborted,
			Err:          runErr,
		}
		if err := catalog.Finish(finishCtx, session.ID, outcome); err != nil {
			logging.WarnWithContext(logger, "session catalog update failed", "session_catalog_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "inspect the state directory database"),
				logging.String(logging.FieldImpact, "session stays marked running until the next start"),
			)
		}
	}
	return result, runErr
}

func applyOverrides(cfg *config.Config, opts Options) {
	if opts.Synthetic {
		cfg.Pipeline.Source = config.SourceSynthetic
	}
	if opts.NoRecord {
		cfg.Pipeline.RecordingEnabled = false
		cfg.Pipeline.RecordGyroscope = false
	}
	if opts.Headless {
		cfg.Pipeline.LiveViewEnabled = false
	}
}

// openCatalog opens the session database and marks leftovers from crashed
// runs. A catalog failure never blocks capture.
func openCatalog(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sessions.Store, *sessions.Session) {
	if !cfg.Recording.CatalogSessions {
		return nil, nil
	}
	warn := func(err error) {
		logging.WarnWithContext(logger, "session catalog unavailable", "session_catalog_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check state_dir permissions or delete a corrupt catalog"),
			logging.String(logging.FieldImpact, "this session is not recorded in the catalog"),
		)
	}
	store, err := sessions.Open(cfg.SessionCatalogPath())
	if err != nil {
		warn(err)
		return nil, nil
	}
	if n, err := store.MarkAbandoned(ctx); err != nil {
		warn(err)
	} else if n > 0 {
		logger.Info("marked abandoned sessions",
			logging.String(logging.FieldEventType, "sessions_abandoned"),
			logging.Int64("count", n),
		)
	}
	session, err := store.Begin(ctx, cfg.Pipeline.Target, time.Now())
	if err != nil {
		warn(err)
		_ = store.Close()
		return nil, nil
	}
	return store, session
}

// forwardSignals turns the first SIGINT or SIGTERM into a graceful stop and
// the second into a forced one. The returned func unregisters the handler.
func forwardSignals(manager *workflow.Manager, logger *slog.Logger) func() {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-sigs:
				logger.Info("stop requested",
					logging.String(logging.FieldEventType, "stop_requested"),
					logging.String("signal", sig.String()),
				)
				manager.Stop()
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

func logSummary(logger *slog.Logger, summary workflow.Summary, logPath string, runErr error) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "session_summary"),
		logging.String(logging.FieldState, summary.State.String()),
		logging.Duration("uptime", summary.Uptime),
		logging.Uint64("frames_processed", summary.FramesProcessed),
		logging.Uint64("frames_annotated", summary.FramesAnnotated),
		logging.Uint64("frames_written", summary.Recorder.FramesWritten),
		logging.Uint64("frames_dropped", summary.Recorder.FramesDropped),
		logging.Uint64("samples_written", summary.Recorder.SamplesWritten),
		logging.Uint64("inference_timeouts", summary.InferenceTimeouts),
		logging.Duration("frame_p95", summary.FrameLatency.P95),
		logging.Duration("inference_p95", summary.InferenceLatency.P95),
		logging.Bool("drain_aborted", summary.DrainAborted),
	}
	if runErr == nil {
		logger.Info("session finished", logging.Args(attrs...)...)
		return
	}
	attrs = append(attrs,
		logging.Error(runErr),
		logging.String(logging.FieldErrorKind, services.Kind(runErr)),
		logging.Int("exit_code", services.ExitCode(runErr)),
	)
	if errors.Is(runErr, services.ErrDeviceDisconnected) {
		attrs = append(attrs, logging.String(logging.FieldErrorHint, "reconnect the camera and start a new session"))
	} else if logPath != "" {
		attrs = append(attrs, logging.String(logging.FieldErrorHint, "inspect "+logPath))
	}
	logging.ErrorWithContext(logger, "session failed", "session_summary", attrs...)
}
