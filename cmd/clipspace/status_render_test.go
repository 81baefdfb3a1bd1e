package main

import (
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("State", statusError, "not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "State:", "[ERROR] not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("State", statusOK, "pid 42", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestRenderSectionHeader(t *testing.T) {
	lines := renderSectionHeader("Jobs", false)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0] != "== Jobs ==" {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	if len(lines[1]) != len(lines[0]) {
		t.Fatalf("rule length %d != header length %d", len(lines[1]), len(lines[0]))
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatal("expected non-file writer to disable color")
	}
}

func TestBuildJobCountRowsSorted(t *testing.T) {
	rows := buildJobCountRows(map[string]int{"running": 2, "done": 7, "queued": 1})
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "done" || rows[1][0] != "queued" || rows[2][0] != "running" {
		t.Fatalf("rows not sorted by state: %v", rows)
	}
	if rows[0][1] != "7" {
		t.Fatalf("unexpected count: %v", rows[0])
	}
}

func TestTruncatePreview(t *testing.T) {
	if got := truncatePreview("short", 10); got != "short" {
		t.Fatalf("short preview altered: %q", got)
	}
	got := truncatePreview("line one\nline\ttwo", 48)
	if got != "line one line two" {
		t.Fatalf("whitespace not collapsed: %q", got)
	}
	got = truncatePreview(strings.Repeat("x", 60), 10)
	if got != "xxxxxxx..." {
		t.Fatalf("unexpected truncation: %q", got)
	}
}
