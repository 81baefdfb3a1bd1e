// Package mediatool invokes external media binaries (ffmpeg-style tools,
// downloaders, page snapshotters) with progress parsing and cancellation.
//
// Tools are expected to emit progress lines containing a percent figure;
// anything matching "NN%" or "NN.N%" on stdout or stderr is reported. On
// cancellation the child receives SIGTERM, then SIGKILL after a grace period.
package mediatool

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"clipspace/internal/extern"
)

var commandContext = exec.CommandContext

const defaultKillGrace = 5 * time.Second

var percentPattern = regexp.MustCompile(`(\d{1,3}(?:\.\d+)?)%`)

// Runner executes one configured binary.
type Runner struct {
	binary    string
	killGrace time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithKillGrace overrides the SIGTERM-to-SIGKILL grace period.
func WithKillGrace(grace time.Duration) Option {
	return func(r *Runner) {
		if grace > 0 {
			r.killGrace = grace
		}
	}
}

// NewRunner constructs a runner for the given binary.
func NewRunner(binary string, opts ...Option) *Runner {
	runner := &Runner{binary: strings.TrimSpace(binary), killGrace: defaultKillGrace}
	for _, opt := range opts {
		opt(runner)
	}
	return runner
}

// Binary returns the configured binary name.
func (r *Runner) Binary() string {
	return r.binary
}

// Run executes the binary with args, streaming percent progress to the
// callback. The returned string is the tool's combined output, kept for
// error reporting.
func (r *Runner) Run(ctx context.Context, args []string, progress func(float64)) (string, error) {
	if r.binary == "" {
		return "", fmt.Errorf("%w: media binary not configured", extern.ErrConfiguration)
	}
	// Detach from CommandContext's kill so we control the escalation.
	cmd := commandContext(context.Background(), r.binary, args...) //nolint:gosec
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return "", extern.Wrap(extern.ErrTool, "mediatool", "run", "start "+r.binary, err)
	}

	done := make(chan struct{})
	var killOnce sync.Once
	go func() {
		select {
		case <-ctx.Done():
			killOnce.Do(func() { r.terminate(cmd) })
		case <-done:
		}
	}()

	var output strings.Builder
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if output.Len() < 64*1024 {
			output.WriteString(line)
			output.WriteByte('\n')
		}
		if progress == nil {
			continue
		}
		if pct, ok := parsePercent(line); ok {
			progress(pct / 100)
		}
	}
	scanErr := scanner.Err()

	waitErr := cmd.Wait()
	close(done)

	if ctx.Err() != nil {
		return output.String(), fmt.Errorf("%w: %s: %v", extern.ErrCancelled, r.binary, ctx.Err())
	}
	if scanErr != nil {
		return output.String(), fmt.Errorf("read %s output: %w", r.binary, scanErr)
	}
	if waitErr != nil {
		return output.String(), extern.Wrap(extern.ErrTool, "mediatool", "run",
			fmt.Sprintf("%s failed: %s", r.binary, tailOf(output.String())), waitErr)
	}
	return output.String(), nil
}

// terminate sends SIGTERM to the child's process group, escalating to
// SIGKILL after the grace period.
func (r *Runner) terminate(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pgid := -cmd.Process.Pid
	_ = syscall.Kill(pgid, syscall.SIGTERM)

	// Killing an already-exited group is a harmless ESRCH.
	time.AfterFunc(r.killGrace, func() {
		_ = syscall.Kill(pgid, syscall.SIGKILL)
	})
}

func parsePercent(line string) (float64, bool) {
	match := percentPattern.FindStringSubmatch(line)
	if match == nil {
		return 0, false
	}
	pct, err := strconv.ParseFloat(match[1], 64)
	if err != nil || pct < 0 || pct > 100 {
		return 0, false
	}
	return pct, true
}

func tailOf(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) == 0 {
		return ""
	}
	start := len(lines) - 3
	if start < 0 {
		start = 0
	}
	return strings.Join(lines[start:], " | ")
}

// ExitCode extracts the child's exit code from a Run error, or -1.
func ExitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
