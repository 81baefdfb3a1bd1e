package mediatool

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"clipspace/internal/extern"
)

func writeStub(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stub-tool")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestRunParsesProgressLines(t *testing.T) {
	stub := writeStub(t, `
echo "working 10%"
echo "working 55.5%"
echo "done 100%"
`)
	runner := NewRunner(stub)

	var seen []float64
	if _, err := runner.Run(context.Background(), nil, func(f float64) {
		seen = append(seen, f)
	}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(seen) != 3 || seen[0] != 0.10 || seen[2] != 1.0 {
		t.Fatalf("unexpected progress samples: %v", seen)
	}
}

func TestRunNonZeroExitIsToolError(t *testing.T) {
	stub := writeStub(t, `
echo "something broke"
exit 3
`)
	runner := NewRunner(stub)

	_, err := runner.Run(context.Background(), nil, nil)
	if !errors.Is(err, extern.ErrTool) {
		t.Fatalf("expected tool error, got %v", err)
	}
	if ExitCode(err) != 3 {
		t.Fatalf("expected exit code 3, got %d", ExitCode(err))
	}
}

func TestRunCancellationTerminatesChild(t *testing.T) {
	stub := writeStub(t, `
echo "started"
sleep 30
`)
	runner := NewRunner(stub, WithKillGrace(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := runner.Run(ctx, nil, nil)
	if !errors.Is(err, extern.ErrCancelled) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("child not terminated promptly: %s", elapsed)
	}
}

func TestRunMissingBinary(t *testing.T) {
	runner := NewRunner("")
	if _, err := runner.Run(context.Background(), nil, nil); !errors.Is(err, extern.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestParsePercentBounds(t *testing.T) {
	if _, ok := parsePercent("no progress here"); ok {
		t.Fatal("matched line without percent")
	}
	if pct, ok := parsePercent("[download]  42.1% of 10MiB"); !ok || pct != 42.1 {
		t.Fatalf("parsePercent = %v, %v", pct, ok)
	}
}
