package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"oakpipe/internal/pipelinerun"
	"oakpipe/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts pipelinerun.Options

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a capture session and block until it stops",
		Long: "Start a capture session. The first Ctrl-C drains queued frames and samples " +
			"to disk; a second Ctrl-C abandons the drain.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			res, err := pipelinerun.Run(cmd.Context(), cfg, opts)
			if res.SessionID != "" {
				printRunSummary(cmd.OutOrStdout(), res)
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&opts.Headless, "headless", false, "Disable the live view window")
	cmd.Flags().BoolVar(&opts.NoRecord, "no-record", false, "Disable the video and sensor sinks")
	cmd.Flags().BoolVar(&opts.Synthetic, "synthetic", false, "Use generated frames and samples instead of hardware")
	return cmd
}

func printRunSummary(out io.Writer, res pipelinerun.Result) {
	s := res.Summary
	rows := [][]string{
		{"Session", res.SessionID},
		{"State", s.State.String()},
		{"Uptime", s.Uptime.Round(time.Millisecond).String()},
		{"Frames processed", fmt.Sprintf("%d", s.FramesProcessed)},
		{"Frames annotated", fmt.Sprintf("%d", s.FramesAnnotated)},
		{"Frames written", fmt.Sprintf("%d", s.Recorder.FramesWritten)},
		{"Frames dropped", fmt.Sprintf("%d", s.Recorder.FramesDropped)},
		{"Samples written", fmt.Sprintf("%d", s.Recorder.SamplesWritten)},
		{"Inference timeouts", fmt.Sprintf("%d", s.InferenceTimeouts)},
		{"Frame latency p50/p95/p99", latencyCell(s.FrameLatency)},
		{"Inference latency p50/p95/p99", latencyCell(s.InferenceLatency)},
		{"Drain aborted", yesNo(s.DrainAborted)},
	}
	if s.Recorder.VideoPath != "" {
		rows = append(rows, []string{"Video", s.Recorder.VideoPath})
	}
	if s.Recorder.SensorPath != "" {
		rows = append(rows, []string{"Sensor log", s.Recorder.SensorPath})
	}
	if res.LogPath != "" {
		rows = append(rows, []string{"Session log", res.LogPath})
	}
	fmt.Fprintln(out, renderTable([]column{{header: "Field"}, {header: "Value", numeric: true}}, rows, nil))
}

func latencyCell(stats workflow.LatencyStats) string {
	if stats.Count == 0 {
		return "-"
	}
	return fmt.Sprintf("%s / %s / %s", stats.P50, stats.P95, stats.P99)
}
