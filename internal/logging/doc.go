// Package logging assembles structured slog loggers and formatting helpers used
// across oakpipe.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so stage code tags log lines with session
// ids and stage names. Each recording session also gets its own JSON log file,
// teed from the process logger, so a session can be diagnosed without the
// console scrollback. A no-op logger is provided for tests.
package logging
