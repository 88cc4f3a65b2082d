package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column describes one rendered table column.
type column struct {
	header string
	// numeric columns are right aligned.
	numeric bool
	// maxWidth soft-wraps longer cells when positive.
	maxWidth int
}

func renderTable(columns []column, rows [][]string, footer []string) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	tw.AppendHeader(toRow(columns, func(i int) string { return columns[i].header }))
	for _, row := range rows {
		tw.AppendRow(toRow(columns, cellAt(row)))
	}
	if footer != nil {
		tw.AppendFooter(toRow(columns, cellAt(footer)))
	}

	configs := make([]table.ColumnConfig, len(columns))
	for i, col := range columns {
		cfg := table.ColumnConfig{Number: i + 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft}
		if col.numeric {
			cfg.Align = text.AlignRight
			cfg.AlignFooter = text.AlignRight
		}
		if col.maxWidth > 0 {
			cfg.WidthMax = col.maxWidth
			cfg.WidthMaxEnforcer = text.WrapSoft
		}
		configs[i] = cfg
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// toRow builds a row with exactly one cell per column.
func toRow(columns []column, cell func(int) string) table.Row {
	row := make(table.Row, len(columns))
	for i := range columns {
		row[i] = cell(i)
	}
	return row
}

func cellAt(values []string) func(int) string {
	return func(i int) string {
		if i < len(values) {
			return values[i]
		}
		return ""
	}
}
