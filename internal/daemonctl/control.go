// Package daemonctl orchestrates daemon process lifecycle from the CLI:
// launching a detached daemon, waiting for its IPC socket, and stopping it.
package daemonctl

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"clipspace/internal/ipc"
)

// ErrDaemonNotRunning indicates no daemon answered on the IPC socket.
var ErrDaemonNotRunning = errors.New("daemon is not running")

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	SocketPath string
	ConfigPath string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State    StartState
	Launched bool
	PID      int
}

// Launch starts a detached clipspace daemon process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon"}
	if socket := strings.TrimSpace(opts.SocketPath); socket != "" {
		args = append(args, "--socket", socket)
	}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}

	proc := exec.Command(executablePath, args...)
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForClient waits for IPC socket availability and returns a connected client.
func WaitForClient(socketPath string, timeout time.Duration) (*ipc.Client, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err == nil {
			return client, nil
		}
		lastErr = err
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted connects to a running daemon or launches one, and reports
// which of the two happened.
func EnsureStarted(socketPath, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	client, err := ipc.Dial(socketPath)
	launched := false
	if err != nil {
		if launchErr := Launch(executablePath, opts); launchErr != nil {
			return StartResult{}, launchErr
		}
		client, err = WaitForClient(socketPath, waitTimeout)
		if err != nil {
			return StartResult{}, err
		}
		launched = true
	}
	defer client.Close()

	status, statusErr := client.Status()
	if statusErr != nil {
		return StartResult{}, fmt.Errorf("daemon status: %w", statusErr)
	}
	result := StartResult{Launched: launched, PID: status.PID}
	if launched {
		result.State = StartStateStarted
	} else {
		result.State = StartStateAlreadyRunning
	}
	if !status.Running {
		// Socket answered but the run loop has not come up; treat as started
		// so callers report the launch rather than erroring.
		result.State = StartStateStarted
	}
	return result, nil
}

// Stop asks a running daemon to shut down and waits for the socket to
// disappear. Returns ErrDaemonNotRunning when nothing answers.
func Stop(socketPath string, timeout time.Duration) error {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		return ErrDaemonNotRunning
	}
	_, shutdownErr := client.Shutdown()
	_ = client.Close()
	if shutdownErr != nil {
		return fmt.Errorf("request shutdown: %w", shutdownErr)
	}
	return WaitForShutdown(socketPath, timeout)
}

// WaitForShutdown waits for daemon IPC to disappear or report not-running.
func WaitForShutdown(socketPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err != nil {
			return nil
		}
		status, statusErr := client.Status()
		_ = client.Close()
		if statusErr != nil {
			return nil
		}
		if !status.Running {
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	if _, err := os.Stat(socketPath); err != nil && os.IsNotExist(err) {
		return nil
	}
	return fmt.Errorf("daemon did not stop within %s", timeout)
}
