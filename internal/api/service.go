// Package api exposes the UI-facing facade over the item store, ingest
// coordinator, enrichment scheduler, and monitor engine. Transport layers
// (IPC, HTTP) translate its typed results into wire envelopes.
package api

import (
	"context"
	"log/slog"

	"clipspace/internal/blob"
	"clipspace/internal/bus"
	"clipspace/internal/catalog"
	"clipspace/internal/ingest"
	"clipspace/internal/logging"
	"clipspace/internal/query"
)

const (
	settingActiveSpace   = "active_space"
	settingSpacesEnabled = "spaces_enabled"
)

// JobScheduler admits enrichment jobs. Satisfied by the enrich scheduler.
type JobScheduler interface {
	Enqueue(ctx context.Context, itemID string, kind catalog.JobKind, payload string) error
}

// MonitorControl drives web-monitor items. Satisfied by the monitor engine.
type MonitorControl interface {
	CheckNow(ctx context.Context, itemID string) error
	SetStatus(ctx context.Context, itemID, status string) error
	SetAIEnabled(ctx context.Context, itemID string, enabled bool) error
	SetInterval(ctx context.Context, itemID string, minutes int) error
	MarkViewed(ctx context.Context) error
}

// SpeechSynthesizer produces audio for a text. Satisfied by the TTS client.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// Service is the facade the UI collaborator consumes.
type Service struct {
	store     *catalog.Store
	blobs     *blob.Store
	ingest    *ingest.Coordinator
	queries   *query.Service
	scheduler JobScheduler
	monitors  MonitorControl
	speech    SpeechSynthesizer
	hub       *bus.Hub
	logger    *slog.Logger
}

// NewService wires the facade. Scheduler, monitors, and speech may be nil;
// the operations that need them then fail with a configuration error.
func NewService(
	store *catalog.Store,
	blobs *blob.Store,
	coordinator *ingest.Coordinator,
	queries *query.Service,
	scheduler JobScheduler,
	monitors MonitorControl,
	speech SpeechSynthesizer,
	hub *bus.Hub,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:     store,
		blobs:     blobs,
		ingest:    coordinator,
		queries:   queries,
		scheduler: scheduler,
		monitors:  monitors,
		speech:    speech,
		hub:       hub,
		logger:    logging.NewComponentLogger(logger, "api"),
	}
}

// Jobs lists derivation jobs in the given states (all states when empty).
func (s *Service) Jobs(ctx context.Context, states []string) ([]JobRecord, error) {
	var filter []catalog.JobState
	for _, state := range states {
		filter = append(filter, catalog.JobState(state))
	}
	jobs, err := s.store.ListJobs(ctx, filter)
	if err != nil {
		return nil, err
	}
	records := make([]JobRecord, 0, len(jobs))
	for _, job := range jobs {
		records = append(records, JobToRecord(job))
	}
	return records, nil
}

// JobCounts returns the number of jobs per state.
func (s *Service) JobCounts(ctx context.Context) (map[string]int, error) {
	counts, err := s.store.JobCounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(counts))
	for state, n := range counts {
		out[string(state)] = n
	}
	return out, nil
}

// ClearCorrupt removes items whose stored records no longer decode.
func (s *Service) ClearCorrupt(ctx context.Context) (int, error) {
	return s.store.ClearCorruptItems(ctx)
}
