package daemon_test

import (
	"context"
	"testing"

	"clipspace/internal/api"
	"clipspace/internal/daemon"
	"clipspace/internal/logging"
	"clipspace/internal/testsupport"
)

func newDaemon(t *testing.T) *daemon.Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = "" // no HTTP surface in lifecycle tests
	d, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestDaemonLifecycle(t *testing.T) {
	d := newDaemon(t)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("second Start accepted")
	}

	status := d.Status(ctx)
	if !status.Running || status.PID == 0 {
		t.Fatalf("status = %#v", status)
	}
	if status.DatabasePath == "" || status.BlobRoot == "" {
		t.Fatalf("paths missing: %#v", status)
	}
	// EnsureSystemSpaces seeds the monitor space on open.
	if status.SpaceCount != 1 {
		t.Fatalf("space count = %d", status.SpaceCount)
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("still running after Stop")
	}
	// Stop is idempotent.
	d.Stop()
}

func TestDaemonIngestThroughFacade(t *testing.T) {
	d := newDaemon(t)
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	receipt := d.Facade().AddText(ctx, "daemon smoke test", api.AddOptions{})
	if !receipt.Success {
		t.Fatalf("receipt = %#v", receipt)
	}

	status := d.Status(ctx)
	if status.ItemCount != 1 {
		t.Fatalf("item count = %d", status.ItemCount)
	}
}

func TestRequestShutdownSignalsOnce(t *testing.T) {
	d := newDaemon(t)

	d.RequestShutdown()
	d.RequestShutdown() // must not panic

	select {
	case <-d.ShutdownRequested():
	default:
		t.Fatal("shutdown channel not closed")
	}
}
