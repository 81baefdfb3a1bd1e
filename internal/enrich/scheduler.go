// Package enrich runs deferred derivation jobs against catalog items. Jobs
// are persisted in the catalog's job table and executed by two bounded worker
// pools: a media pool for CPU-bound tool invocations and a network pool for
// provider calls. At most one live job per (item, kind) is admitted; the
// catalog enforces that with a partial unique index.
package enrich

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"clipspace/internal/blob"
	"clipspace/internal/bus"
	"clipspace/internal/catalog"
	"clipspace/internal/config"
	"clipspace/internal/extern"
	"clipspace/internal/logging"
)

// Worker executes one job kind. Run returns follow-up jobs to enqueue after
// the job completes; the scheduler ignores follow-ups on failure.
type Worker interface {
	Kind() catalog.JobKind
	Run(ctx context.Context, task *Task) ([]Followup, error)
}

// Followup names a job to enqueue once its predecessor completes.
type Followup struct {
	Kind    catalog.JobKind
	Payload string
}

// Task bundles what a worker needs to execute one claimed job.
type Task struct {
	Job  *catalog.Job
	Item *catalog.Item

	store *catalog.Store
	blobs *blob.Store
	hub   *bus.Hub
}

// NewTask builds a Task for invoking a worker directly, outside the
// scheduler's claim loop.
func NewTask(job *catalog.Job, item *catalog.Item, store *catalog.Store, blobs *blob.Store, hub *bus.Hub) *Task {
	return &Task{Job: job, Item: item, store: store, blobs: blobs, hub: hub}
}

// Store exposes the catalog to workers that need to patch items.
func (t *Task) Store() *catalog.Store { return t.store }

// Blobs exposes the blob store to workers that write derivations.
func (t *Task) Blobs() *blob.Store { return t.blobs }

// Progress records a 0..1 fraction and mirrors it to the bus.
func (t *Task) Progress(ctx context.Context, fraction float64) {
	_ = t.store.SetJobProgress(ctx, t.Job.ID, fraction)
}

// Partial publishes a chunked partial result. Fraction is derived from the
// chunk position so subscribers see monotonic progress.
func (t *Task) Partial(ctx context.Context, chunk, total int, partial string) {
	if total > 0 {
		_ = t.store.SetJobProgress(ctx, t.Job.ID, float64(chunk)/float64(total))
	}
	if t.hub == nil {
		return
	}
	t.hub.Publish(bus.Event{
		Type:   bus.EventJobProgress,
		ItemID: t.Item.ID,
		Payload: bus.Progress{
			ItemID:        t.Item.ID,
			Job:           string(t.Job.Kind),
			Status:        "running",
			Fraction:      fractionOf(chunk, total),
			Chunk:         chunk,
			ChunkTotal:    total,
			PartialResult: partial,
		},
	})
}

func fractionOf(chunk, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(chunk) / float64(total)
}

var mediaKinds = []catalog.JobKind{
	catalog.JobThumbnail,
	catalog.JobExtractAudio,
	catalog.JobVideoFetch,
}

var networkKinds = []catalog.JobKind{
	catalog.JobTranscribe,
	catalog.JobSpeakers,
	catalog.JobSummarize,
	catalog.JobAIMetadata,
	catalog.JobMonitorCheck,
	catalog.JobTTS,
}

// Scheduler owns the worker pools and the retry/cancellation machinery.
type Scheduler struct {
	store  *catalog.Store
	blobs  *blob.Store
	hub    *bus.Hub
	cfg    *config.Config
	logger *slog.Logger

	workers map[catalog.JobKind]Worker

	claimCtx    context.Context
	stopClaims  context.CancelFunc
	hardCtx     context.Context
	hardCancel  context.CancelFunc
	mediaKick   chan struct{}
	networkKick chan struct{}
	wg          sync.WaitGroup

	mu      sync.Mutex
	active  map[string]map[int64]context.CancelFunc // item id -> job id -> cancel
	started bool
	closed  bool

	unsubscribe func()
}

// NewScheduler constructs a stopped scheduler. Register workers before Start.
func NewScheduler(store *catalog.Store, blobs *blob.Store, hub *bus.Hub, cfg *config.Config, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	claimCtx, stopClaims := context.WithCancel(context.Background())
	hardCtx, hardCancel := context.WithCancel(context.Background())
	return &Scheduler{
		store:       store,
		blobs:       blobs,
		hub:         hub,
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logger, "enrich"),
		workers:     make(map[catalog.JobKind]Worker),
		claimCtx:    claimCtx,
		stopClaims:  stopClaims,
		hardCtx:     hardCtx,
		hardCancel:  hardCancel,
		mediaKick:   make(chan struct{}, 1),
		networkKick: make(chan struct{}, 1),
		active:      make(map[string]map[int64]context.CancelFunc),
	}
}

// Register installs a worker for its kind, replacing any previous one.
func (s *Scheduler) Register(w Worker) {
	s.workers[w.Kind()] = w
}

// Enqueue admits a job unless a live job for the same (item, kind) already
// exists, in which case it is a no-op. Implements the coordinator's
// fire-and-forget contract.
func (s *Scheduler) Enqueue(ctx context.Context, itemID string, kind catalog.JobKind, payload string) error {
	_, err := s.store.EnqueueJob(ctx, itemID, kind, payload)
	if err != nil {
		if errors.Is(err, catalog.ErrJobExists) {
			return nil
		}
		return err
	}
	s.kick(kind)
	return nil
}

func (s *Scheduler) kick(kind catalog.JobKind) {
	ch := s.networkKick
	if isMediaKind(kind) {
		ch = s.mediaKick
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

func isMediaKind(kind catalog.JobKind) bool {
	for _, k := range mediaKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Start resets jobs orphaned by a previous crash and launches the pools.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	reset, err := s.store.ResetRunningJobs(ctx)
	if err != nil {
		return err
	}
	if reset > 0 {
		s.logger.Info("requeued interrupted jobs", logging.Int("count", reset))
	}

	events, dispose := s.hub.Subscribe(func(evt bus.Event) bool {
		return evt.Type == bus.EventItemDeleted
	})
	s.unsubscribe = dispose
	go s.watchDeletions(events)

	for i := 0; i < s.cfg.Enrichment.MediaWorkers; i++ {
		s.wg.Add(1)
		go s.runPool(mediaKinds, s.mediaKick)
	}
	for i := 0; i < s.cfg.Enrichment.NetworkWorkers; i++ {
		s.wg.Add(1)
		go s.runPool(networkKinds, s.networkKick)
	}
	return nil
}

// Close stops claiming, waits out the grace period, then cancels whatever is
// still running.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.stopClaims()
	if s.unsubscribe != nil {
		s.unsubscribe()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	grace := time.Duration(s.cfg.Enrichment.ShutdownGraceSeconds) * time.Second
	select {
	case <-done:
	case <-time.After(grace):
		s.logger.Warn("shutdown grace expired, cancelling running jobs")
		s.hardCancel()
		<-done
	}
	s.hardCancel()
}

// CancelItem cancels every in-flight job for an item. Pending rows are the
// catalog's responsibility; this only interrupts running workers.
func (s *Scheduler) CancelItem(itemID string) {
	s.mu.Lock()
	cancels := s.active[itemID]
	delete(s.active, itemID)
	s.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

func (s *Scheduler) watchDeletions(events <-chan bus.Event) {
	for evt := range events {
		s.CancelItem(evt.ItemID)
	}
}

const idlePoll = 2 * time.Second

func (s *Scheduler) runPool(kinds []catalog.JobKind, kick <-chan struct{}) {
	defer s.wg.Done()
	ticker := time.NewTicker(idlePoll)
	defer ticker.Stop()
	for {
		s.drain(kinds)
		select {
		case <-s.claimCtx.Done():
			return
		case <-kick:
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) drain(kinds []catalog.JobKind) {
	for {
		if s.claimCtx.Err() != nil {
			return
		}
		job, err := s.store.NextPending(s.claimCtx, kinds)
		if err != nil {
			s.logger.Error("failed to claim job", logging.Error(err))
			return
		}
		if job == nil {
			return
		}
		s.execute(job)
	}
}

func (s *Scheduler) execute(job *catalog.Job) {
	logger := s.logger.With(
		logging.String(logging.FieldItemID, job.ItemID),
		logging.String(logging.FieldJob, string(job.Kind)))

	worker, ok := s.workers[job.Kind]
	if !ok {
		logger.Error("no worker registered")
		_ = s.store.FailJob(context.Background(), job.ID, extern.Wrap(extern.ErrConfiguration, "enrich", "execute", "no worker for kind", nil))
		return
	}

	item, err := s.store.GetItem(s.hardCtx, job.ItemID)
	if err != nil {
		if catalog.IsNotFound(err) {
			// Item deleted between claim and execution.
			_ = s.store.CancelJobsForItem(context.Background(), job.ItemID)
			return
		}
		logger.Error("failed to load item", logging.Error(err))
		_ = s.store.FailJob(context.Background(), job.ID, err)
		return
	}

	ctx, cancel := context.WithTimeout(s.hardCtx, s.timeoutFor(job.Kind))
	s.track(job.ItemID, job.ID, cancel)
	defer s.untrack(job.ItemID, job.ID)
	defer cancel()

	start := time.Now()
	task := &Task{Job: job, Item: item, store: s.store, blobs: s.blobs, hub: s.hub}
	followups, runErr := worker.Run(ctx, task)

	if runErr == nil {
		if err := s.store.CompleteJob(context.Background(), job.ID); err != nil {
			logger.Error("failed to mark job completed", logging.Error(err))
			return
		}
		logger.Info("job completed", logging.Duration("elapsed", time.Since(start)))
		for _, f := range followups {
			if err := s.Enqueue(context.Background(), job.ItemID, f.Kind, f.Payload); err != nil {
				logger.Warn("failed to enqueue follow-up",
					logging.String("followup", string(f.Kind)), logging.Error(err))
			}
		}
		return
	}

	if s.hardCtx.Err() != nil {
		// Shutdown; leave the row running so the next start requeues it.
		return
	}
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(runErr, context.DeadlineExceeded):
		runErr = extern.Wrap(extern.ErrTimeout, "enrich", string(job.Kind), "timeout", runErr)
	case ctx.Err() != nil || errors.Is(runErr, context.Canceled) || errors.Is(runErr, extern.ErrCancelled):
		// Cancelled by item deletion; the catalog already dropped the rows.
		logger.Info("job cancelled")
		return
	}

	if extern.Retryable(runErr) && job.Attempts < s.cfg.Enrichment.MaxRetries {
		delay := s.retryBackoff(job.Attempts)
		logger.Warn("job failed, will retry",
			logging.Int("attempt", job.Attempts+1),
			logging.Duration("backoff", delay),
			logging.Error(runErr))
		s.scheduleRetry(job, delay)
		return
	}

	logger.Error("job failed", logging.Error(runErr))
	if err := s.store.FailJob(context.Background(), job.ID, runErr); err != nil {
		logger.Error("failed to mark job failed", logging.Error(err))
	}
}

func (s *Scheduler) scheduleRetry(job *catalog.Job, delay time.Duration) {
	kind := job.Kind
	id := job.ID
	time.AfterFunc(delay, func() {
		if s.claimCtx.Err() != nil {
			return
		}
		if _, err := s.store.RetryJob(context.Background(), id); err != nil {
			if !catalog.IsNotFound(err) {
				s.logger.Error("failed to requeue job", logging.Error(err))
			}
			return
		}
		s.kick(kind)
	})
}

func (s *Scheduler) retryBackoff(attempt int) time.Duration {
	base := time.Duration(s.cfg.Enrichment.RetryBackoffSeconds) * time.Second
	cap := time.Duration(s.cfg.Enrichment.RetryBackoffCap) * time.Second
	delay := base << attempt
	if delay > cap || delay <= 0 {
		delay = cap
	}
	return delay
}

func (s *Scheduler) timeoutFor(kind catalog.JobKind) time.Duration {
	e := s.cfg.Enrichment
	seconds := 0
	switch kind {
	case catalog.JobThumbnail:
		seconds = e.ThumbnailTimeoutSeconds
	case catalog.JobExtractAudio:
		seconds = e.ExtractAudioTimeoutSeconds
	case catalog.JobTranscribe:
		seconds = e.TranscribeTimeoutSeconds
	case catalog.JobSpeakers:
		seconds = e.SpeakersTimeoutSeconds
	case catalog.JobSummarize:
		seconds = e.SummarizeTimeoutSeconds
	case catalog.JobAIMetadata:
		seconds = e.AIMetadataTimeoutSeconds
	case catalog.JobMonitorCheck:
		seconds = e.MonitorTimeoutSeconds
	case catalog.JobTTS:
		seconds = e.TTSTimeoutSeconds
	case catalog.JobVideoFetch:
		seconds = e.VideoFetchTimeoutSeconds
	}
	if seconds <= 0 {
		seconds = 300
	}
	return time.Duration(seconds) * time.Second
}

func (s *Scheduler) track(itemID string, jobID int64, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[itemID] == nil {
		s.active[itemID] = make(map[int64]context.CancelFunc)
	}
	s.active[itemID][jobID] = cancel
}

func (s *Scheduler) untrack(itemID string, jobID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := s.active[itemID]
	delete(jobs, jobID)
	if len(jobs) == 0 {
		delete(s.active, itemID)
	}
}
