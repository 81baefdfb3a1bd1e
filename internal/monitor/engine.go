// Package monitor implements the web-monitor engine: periodic page fetches,
// normalized text diffs, before/after screenshots, and timeline entries on
// the owning item. The check itself runs as an enrichment job so it shares
// the scheduler's admission, retry, and cancellation machinery.
package monitor

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"clipspace/internal/blob"
	"clipspace/internal/bus"
	"clipspace/internal/catalog"
	"clipspace/internal/config"
	"clipspace/internal/extern/llm"
	"clipspace/internal/extern/mediatool"
	"clipspace/internal/ingest"
	"clipspace/internal/logging"
)

// Metadata keys the engine reads and writes on monitor items.
const (
	keyURL            = "url"
	keyStatus         = "status"
	keyAIEnabled      = "aiEnabled"
	keyInterval       = "intervalMinutes"
	keyWatchPrompt    = "watchPrompt"
	keyIgnorePrompt   = "ignorePrompt"
	keyLastChecked    = "lastChecked"
	keyLastChanged    = "lastChanged"
	keyLastScreenshot = "lastScreenshotPath"
)

const (
	StatusActive = "active"
	StatusPaused = "paused"
)

// Engine drives monitor items: a ticker enqueues due checks, and the
// registered worker executes them.
type Engine struct {
	store     *catalog.Store
	blobs     *blob.Store
	hub       *bus.Hub
	cfg       *config.Config
	llm       *llm.Client
	tools     *mediatool.Toolset
	scheduler ingest.Scheduler
	client    *http.Client
	logger    *slog.Logger

	stop context.CancelFunc
	wg   sync.WaitGroup
}

// Option adjusts engine construction.
type Option func(*Engine)

// WithHTTPClient substitutes the page-fetch client.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Engine) { e.client = client }
}

func NewEngine(store *catalog.Store, blobs *blob.Store, hub *bus.Hub, cfg *config.Config, llmClient *llm.Client, tools *mediatool.Toolset, scheduler ingest.Scheduler, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	e := &Engine{
		store:     store,
		blobs:     blobs,
		hub:       hub,
		cfg:       cfg,
		llm:       llmClient,
		tools:     tools,
		scheduler: scheduler,
		client: &http.Client{
			Timeout: time.Duration(cfg.Monitor.FetchTimeoutSeconds) * time.Second,
		},
		logger: logging.NewComponentLogger(logger, "monitor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

const tickInterval = time.Minute

// Start launches the due-check ticker and the screenshot watcher.
func (e *Engine) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	e.stop = cancel

	e.wg.Add(1)
	go e.tick(runCtx)

	if err := e.watchScreenshots(runCtx); err != nil {
		e.logger.Warn("screenshot watcher unavailable", logging.Error(err))
	}
	return nil
}

// Close stops the ticker and watcher.
func (e *Engine) Close() {
	if e.stop != nil {
		e.stop()
	}
	e.wg.Wait()
}

func (e *Engine) tick(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.enqueueDueChecks(ctx)
		}
	}
}

// enqueueDueChecks schedules a check for every active monitor whose interval
// has elapsed. The scheduler's admission table makes repeat enqueues no-ops.
func (e *Engine) enqueueDueChecks(ctx context.Context) {
	space, err := e.store.MonitorSpace(ctx)
	if err != nil {
		e.logger.Error("failed to resolve monitor space", logging.Error(err))
		return
	}
	items, err := e.store.ListItems(ctx, &space.ID)
	if err != nil {
		e.logger.Error("failed to list monitors", logging.Error(err))
		return
	}
	now := time.Now()
	for _, item := range items {
		if item.Kind != catalog.KindWebMonitor {
			continue
		}
		if item.Metadata.String(keyStatus) != StatusActive {
			continue
		}
		interval := item.Metadata.Int(keyInterval)
		if interval <= 0 {
			interval = e.cfg.Monitor.DefaultIntervalMinutes
		}
		if last, ok := item.Metadata.Time(keyLastChecked); ok {
			if now.Sub(last) < time.Duration(interval)*time.Minute {
				continue
			}
		}
		if err := e.scheduler.Enqueue(ctx, item.ID, catalog.JobMonitorCheck, ""); err != nil {
			e.logger.Warn("failed to enqueue check",
				logging.String(logging.FieldItemID, item.ID), logging.Error(err))
		}
	}
}
