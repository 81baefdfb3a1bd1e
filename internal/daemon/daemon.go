package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"log/slog"

	"github.com/gofrs/flock"

	"clipspace/internal/api"
	"clipspace/internal/blob"
	"clipspace/internal/bus"
	"clipspace/internal/catalog"
	"clipspace/internal/config"
	"clipspace/internal/enrich"
	"clipspace/internal/extern/asr"
	"clipspace/internal/extern/llm"
	"clipspace/internal/extern/mediatool"
	"clipspace/internal/extern/tts"
	"clipspace/internal/ingest"
	"clipspace/internal/ipc"
	"clipspace/internal/logging"
	"clipspace/internal/monitor"
	"clipspace/internal/query"
)

// Daemon owns the long-running clipspace process: the catalog, blob store,
// enrichment scheduler, monitor engine, and the HTTP surface. A file lock
// enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	hub         *bus.Hub
	store       *catalog.Store
	blobs       *blob.Store
	scheduler   *enrich.Scheduler
	monitors    *monitor.Engine
	coordinator *ingest.Coordinator
	facade      *api.Service

	apiServer *apiServer

	lockPath string
	lock     *flock.Flock

	running  atomic.Bool
	cancel   context.CancelFunc
	shutdown chan struct{}
	stopOnce atomic.Bool
}

// New builds the daemon's full dependency graph from configuration. Nothing
// starts running until Start.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	hub := bus.NewHub()
	store, err := catalog.Open(cfg, hub)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	blobs, err := blob.NewStore(cfg.Paths.BlobDir)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	tools := mediatool.NewToolset(cfg.Tools.MediaBinary, cfg.Tools.DownloadBinary, cfg.Tools.ScreenshotBinary)

	var llmClient *llm.Client
	if cfg.LLM.APIKey != "" {
		llmClient = llm.NewClient(llm.Config{
			APIKey:         cfg.LLM.APIKey,
			BaseURL:        cfg.LLM.BaseURL,
			Model:          cfg.LLM.Model,
			VisionModel:    cfg.LLM.VisionModel,
			Referer:        cfg.LLM.Referer,
			Title:          cfg.LLM.Title,
			TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		})
	}
	var asrClient *asr.Client
	if cfg.ASR.APIKey != "" {
		asrClient = asr.NewClient(asr.Config{
			APIKey:         cfg.ASR.APIKey,
			BaseURL:        cfg.ASR.BaseURL,
			Model:          cfg.ASR.Model,
			Language:       cfg.ASR.Language,
			TimeoutSeconds: cfg.ASR.TimeoutSeconds,
		})
	}
	var ttsClient *tts.Client
	if cfg.TTS.APIKey != "" {
		ttsClient = tts.NewClient(tts.Config{
			APIKey:         cfg.TTS.APIKey,
			BaseURL:        cfg.TTS.BaseURL,
			Model:          cfg.TTS.Model,
			DefaultVoice:   cfg.TTS.DefaultVoice,
			TimeoutSeconds: cfg.TTS.TimeoutSeconds,
		})
	}

	scheduler := enrich.NewScheduler(store, blobs, hub, cfg, logger)
	scheduler.RegisterDefaultWorkers(tools, llmClient, asrClient, ttsClient)

	coordinator := ingest.New(store, blobs, scheduler, cfg, logger)
	monitors := monitor.NewEngine(store, blobs, hub, cfg, llmClient, tools, scheduler, logger)
	scheduler.Register(monitors)

	var speech api.SpeechSynthesizer
	if ttsClient != nil {
		speech = ttsClient
	}
	facade := api.NewService(store, blobs, coordinator, query.New(store), scheduler, monitors, speech, hub, logger)

	d := &Daemon{
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logger, "daemon"),
		hub:         hub,
		store:       store,
		blobs:       blobs,
		scheduler:   scheduler,
		monitors:    monitors,
		coordinator: coordinator,
		facade:      facade,
		lockPath:    filepath.Join(cfg.Paths.DataDir, "clipspaced.lock"),
		shutdown:    make(chan struct{}),
	}
	d.lock = flock.New(d.lockPath)

	if server, err := newAPIServer(cfg, d, logger); err != nil {
		d.closeStores()
		return nil, err
	} else if server != nil {
		d.apiServer = server
	}
	return d, nil
}

// Facade returns the UI-facing API service.
func (d *Daemon) Facade() *api.Service { return d.facade }

// Hub returns the change bus.
func (d *Daemon) Hub() *bus.Hub { return d.hub }

// Start acquires the instance lock and launches the background services.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another clipspace daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.scheduler.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start scheduler: %w", err)
	}
	if err := d.monitors.Start(runCtx); err != nil {
		d.scheduler.Close()
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start monitor engine: %w", err)
	}
	if d.apiServer != nil {
		if err := d.apiServer.start(runCtx); err != nil {
			d.monitors.Close()
			d.scheduler.Close()
			cancel()
			_ = d.lock.Unlock()
			return err
		}
	}
	go d.retentionLoop(runCtx)

	d.running.Store(true)
	d.logger.Info("clipspace daemon started",
		logging.String("lock", d.lockPath),
		logging.String("data_dir", d.cfg.Paths.DataDir))
	return nil
}

// Stop winds down background services and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.apiServer != nil {
		d.apiServer.stop()
	}
	d.monitors.Close()
	d.scheduler.Close()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("clipspace daemon stopped")
}

// Close stops the daemon and releases storage.
func (d *Daemon) Close() error {
	d.Stop()
	return d.closeStores()
}

func (d *Daemon) closeStores() error {
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// RequestShutdown signals the run loop to exit. Safe to call more than once.
func (d *Daemon) RequestShutdown() {
	if d.stopOnce.CompareAndSwap(false, true) {
		close(d.shutdown)
	}
}

// ShutdownRequested exposes the shutdown signal for the run loop.
func (d *Daemon) ShutdownRequested() <-chan struct{} { return d.shutdown }

// Status reports the daemon's runtime snapshot.
func (d *Daemon) Status(ctx context.Context) ipc.StatusResponse {
	status := ipc.StatusResponse{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.store.Path(),
		BlobRoot:     d.blobs.Root(),
		LockPath:     d.lockPath,
	}
	if counts, err := d.facade.JobCounts(ctx); err == nil {
		status.JobCounts = counts
	}
	if items, err := d.store.ListItems(ctx, nil); err == nil {
		status.ItemCount = len(items)
	}
	if spaces, err := d.store.ListSpaces(ctx); err == nil {
		status.SpaceCount = len(spaces)
	}
	if active, err := d.facade.ActiveSpace(ctx); err == nil {
		status.ActiveSpace = active
	}
	if enabled, err := d.facade.SpacesEnabled(ctx); err == nil {
		status.SpacesEnabled = enabled
	}
	return status
}
