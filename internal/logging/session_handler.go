package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
)

// sessionIDHandler wraps another handler to inject a session_id attribute into all records.
type sessionIDHandler struct {
	base      slog.Handler
	sessionID string
}

func newSessionIDHandler(base slog.Handler, sessionID string) slog.Handler {
	if base == nil {
		return NoopHandler{}
	}
	return &sessionIDHandler{base: base, sessionID: sessionID}
}

func (h *sessionIDHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *sessionIDHandler) Handle(ctx context.Context, record slog.Record) error {
	record.AddAttrs(slog.String(FieldSessionID, h.sessionID))
	return h.base.Handle(ctx, record)
}

func (h *sessionIDHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &sessionIDHandler{base: h.base.WithAttrs(attrs), sessionID: h.sessionID}
}

func (h *sessionIDHandler) WithGroup(name string) slog.Handler {
	return &sessionIDHandler{base: h.base.WithGroup(name), sessionID: h.sessionID}
}

// SessionLog is the per-session JSON log file teed from the process logger.
type SessionLog struct {
	Logger *slog.Logger
	Path   string
	file   io.Closer
}

// Close flushes and closes the session log file.
func (s *SessionLog) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// OpenSessionLog creates dir/session-<id>.log and returns a logger that writes
// every record (at debug level and above) to it in JSON, tagged with the
// session id, while still forwarding to base.
func OpenSessionLog(base *slog.Logger, dir, sessionID string) (*SessionLog, error) {
	path := filepath.Join(dir, fmt.Sprintf("session-%s.log", sessionID))
	file, err := openLogFile(path)
	if err != nil {
		return nil, err
	}
	fileHandler := newJSONHandler(file, slog.LevelDebug, false)
	var baseHandler slog.Handler
	if base != nil {
		baseHandler = base.Handler()
	}
	logger := slog.New(newSessionIDHandler(newFanoutHandler(baseHandler, fileHandler), sessionID))
	return &SessionLog{Logger: logger, Path: path, file: file}, nil
}
