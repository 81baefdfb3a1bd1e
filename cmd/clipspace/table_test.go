package main

import (
	"strings"
	"testing"
)

func TestRenderTable(t *testing.T) {
	out := renderTable(
		[]string{"State", "Count"},
		[][]string{{"queued", "3"}, {"done", "12"}},
		[]columnAlignment{alignLeft, alignRight},
	)
	for _, want := range []string{"State", "Count", "queued", "done", "12"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "STATE") {
		t.Fatalf("header case was altered:\n%s", out)
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable(
		[]string{"A", "B", "C"},
		[][]string{{"only"}},
		nil,
	)
	if !strings.Contains(out, "only") {
		t.Fatalf("table missing row value:\n%s", out)
	}
}

func TestRenderTableEmptyHeaders(t *testing.T) {
	if out := renderTable(nil, nil, nil); out != "" {
		t.Fatalf("expected empty output, got %q", out)
	}
}
