package main

import (
	"strings"
	"testing"
)

func TestRenderTableAlignsNumericColumnsAndPadsRows(t *testing.T) {
	out := renderTable([]column{{header: "Name"}, {header: "Count", numeric: true}}, [][]string{
		{"alpha", "7"},
		{"beta", "1234"},
		{"gamma"},
	}, []string{"Total", "1241"})

	lines := strings.Split(out, "\n")
	var seven string
	for _, line := range lines {
		if strings.Contains(line, "alpha") {
			seven = line
		}
	}
	if seven == "" {
		t.Fatalf("row missing:\n%s", out)
	}
	if !strings.Contains(seven, "    7 │") {
		t.Fatalf("numeric cell not right aligned: %q", seven)
	}
	requireContains(t, out, "gamma")
	requireContains(t, out, "1241")
}

func TestRenderTableWrapsWideColumns(t *testing.T) {
	long := "the model file could not be opened because the path does not exist"
	out := renderTable([]column{{header: "Detail", maxWidth: 20}}, [][]string{{long}}, nil)
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, long) {
			t.Fatalf("cell was not wrapped:\n%s", out)
		}
	}
	requireContains(t, out, "model file")
}

func TestRenderTableWithoutColumns(t *testing.T) {
	if out := renderTable(nil, [][]string{{"x"}}, nil); out != "" {
		t.Fatalf("renderTable = %q, want empty", out)
	}
}
