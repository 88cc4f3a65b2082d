package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"oakpipe/internal/sessions"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect the session catalog",
	}
	sessionsCmd.AddCommand(newSessionsListCommand(ctx))
	return sessionsCmd
}

func newSessionsListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent capture sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			path := cfg.SessionCatalogPath()
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Fprintln(out, "No sessions recorded yet")
				return nil
			}
			store, err := sessions.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()

			list, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(out, "No sessions recorded yet")
				return nil
			}
			printSessions(out, list, shouldColorize(out))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum sessions to show (0 for all)")
	return cmd
}

func printSessions(out io.Writer, list []sessions.Session, colorize bool) {
	rows := make([][]string, 0, len(list))
	var frames, dropped, samples uint64
	for _, s := range list {
		frames += s.FramesWritten
		dropped += s.FramesDropped
		samples += s.SamplesWritten
		rows = append(rows, []string{
			shortID(s.ID),
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			durationCell(s),
			statusCell(sessionKind(s.Status), colorize) + " " + string(s.Status),
			strconv.FormatUint(s.FramesWritten, 10),
			strconv.FormatUint(s.FramesDropped, 10),
			strconv.FormatUint(s.SamplesWritten, 10),
			errorCell(s),
		})
	}
	var footer []string
	if len(list) > 1 {
		footer = []string{
			"Total", "", "", "",
			strconv.FormatUint(frames, 10),
			strconv.FormatUint(dropped, 10),
			strconv.FormatUint(samples, 10),
		}
	}
	fmt.Fprintln(out, renderTable([]column{
		{header: "ID"},
		{header: "Started"},
		{header: "Duration", numeric: true},
		{header: "Status"},
		{header: "Frames", numeric: true},
		{header: "Dropped", numeric: true},
		{header: "Samples", numeric: true},
		{header: "Error", maxWidth: 40},
	}, rows, footer))
}

func sessionKind(status sessions.Status) statusKind {
	switch status {
	case sessions.StatusStopped:
		return statusOK
	case sessions.StatusRunning, sessions.StatusAbandoned:
		return statusWarn
	default:
		return statusError
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func durationCell(s sessions.Session) string {
	d := s.Duration()
	if d == 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}

func errorCell(s sessions.Session) string {
	if s.ErrorKind == "" {
		if s.DrainAborted {
			return "drain aborted"
		}
		return ""
	}
	return fmt.Sprintf("%s (exit %d)", s.ErrorKind, s.ExitCode)
}
