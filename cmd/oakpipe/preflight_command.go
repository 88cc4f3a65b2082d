package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"oakpipe/internal/preflight"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check devices, model files and storage before a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			out := cmd.OutOrStdout()
			printPreflight(out, results, shouldColorize(out))
			return preflight.Err(results)
		},
	}
}

func printPreflight(out io.Writer, results []preflight.Result, colorize bool) {
	if len(results) == 0 {
		fmt.Fprintln(out, "No checks apply to this configuration")
		return
	}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{r.Name, statusCell(resultKind(r), colorize), r.Detail})
	}
	fmt.Fprintln(out, renderTable([]column{
		{header: "Check"},
		{header: "Status"},
		{header: "Detail", maxWidth: 72},
	}, rows, nil))
}

func resultKind(r preflight.Result) statusKind {
	switch {
	case r.Passed:
		return statusOK
	case r.Optional:
		return statusWarn
	default:
		return statusError
	}
}
