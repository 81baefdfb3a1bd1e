// Package ingest is the single entry point for adding items. All add calls
// are serialized so the duplicate-window check observes every prior ingest,
// and failures roll back any blob or record written before the error.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"clipspace/internal/blob"
	"clipspace/internal/catalog"
	"clipspace/internal/classify"
	"clipspace/internal/config"
	"clipspace/internal/extern"
	"clipspace/internal/logging"
)

// activeSpaceKey is the settings row holding the UI's current space.
const (
	activeSpaceKey   = "active_space"
	spacesEnabledKey = "spaces_enabled"
)

// Scheduler admits enrichment jobs. Satisfied by the enrich scheduler;
// declared here so ingest does not depend on it.
type Scheduler interface {
	Enqueue(ctx context.Context, itemID string, kind catalog.JobKind, payload string) error
}

// Options carries per-call ingest parameters.
type Options struct {
	// SpaceID overrides the active space. Nil means "use the active space";
	// a pointer to "" forces unclassified.
	SpaceID *string
	Context *catalog.CaptureContext
}

// Result is returned to the caller of every add operation.
type Result struct {
	ID        string
	Kind      catalog.Kind
	Duplicate bool
	VideoURL  bool
}

// Coordinator serializes ingest operations.
type Coordinator struct {
	mu        sync.Mutex
	store     *catalog.Store
	blobs     *blob.Store
	scheduler Scheduler
	cfg       *config.Config
	logger    *slog.Logger
}

// New constructs a coordinator. The scheduler may be nil in tests; seeding
// derivations is then skipped.
func New(store *catalog.Store, blobs *blob.Store, scheduler Scheduler, cfg *config.Config, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Coordinator{
		store:     store,
		blobs:     blobs,
		scheduler: scheduler,
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "ingest"),
	}
}

// AddText ingests a plain text payload.
func (c *Coordinator) AddText(ctx context.Context, text string, opts Options) (*Result, error) {
	return c.add(ctx, classify.Input{Text: text}, []byte(text), opts, nil)
}

// AddHTML ingests an HTML payload with its plain-text equivalent.
func (c *Coordinator) AddHTML(ctx context.Context, html, plain string, opts Options) (*Result, error) {
	return c.add(ctx, classify.Input{HTML: html, Text: plain}, []byte(html), opts, nil)
}

// AddImage ingests raw image bytes.
func (c *Coordinator) AddImage(ctx context.Context, data []byte, mimeType string, opts Options) (*Result, error) {
	return c.add(ctx, classify.Input{Image: data, ImageMime: mimeType}, data, opts, nil)
}

// AddFile ingests a file by path. The file is copied into the blob store.
func (c *Coordinator) AddFile(ctx context.Context, path string, opts Options) (*Result, error) {
	return c.add(ctx, classify.Input{FilePath: path}, nil, opts, nil)
}

// AddURL ingests a URL string.
func (c *Coordinator) AddURL(ctx context.Context, rawURL string, opts Options) (*Result, error) {
	return c.add(ctx, classify.Input{Text: strings.TrimSpace(rawURL)}, []byte(strings.TrimSpace(rawURL)), opts, nil)
}

// AddAIConversation ingests a structured conversation export.
func (c *Coordinator) AddAIConversation(ctx context.Context, payload string, opts Options) (*Result, error) {
	var probe any
	if err := json.Unmarshal([]byte(payload), &probe); err != nil {
		return nil, fmt.Errorf("%w: conversation payload is not JSON: %v", extern.ErrValidation, err)
	}
	shape := overrideShape(classify.Input{Text: payload}, catalog.KindAIChat)
	shape.PrimaryName = "primary.json"
	return c.add(ctx, classify.Input{}, []byte(payload), opts, &shape)
}

// AddGeneratedDocument ingests a markdown document produced by an AI flow.
func (c *Coordinator) AddGeneratedDocument(ctx context.Context, markdown string, opts Options) (*Result, error) {
	plain := classify.MarkdownToText(markdown)
	shape := classify.Result{
		Kind:        catalog.KindGeneratedDoc,
		Preview:     classify.Preview(plain),
		Fingerprint: classify.TextFingerprint(plain),
		Metadata:    catalog.Metadata{"aiGenerated": true},
		PrimaryName: "primary.md",
	}
	return c.add(ctx, classify.Input{}, []byte(markdown), opts, &shape)
}

// MonitorOptions configures a new web monitor.
type MonitorOptions struct {
	IntervalMinutes int
	WatchPrompt     string
	IgnorePrompt    string
	AIEnabled       bool
}

// AddWebMonitor creates a web-monitor item in the system monitors space and
// schedules its baseline check.
func (c *Coordinator) AddWebMonitor(ctx context.Context, rawURL string, monitorOpts MonitorOptions, opts Options) (*Result, error) {
	trimmed := strings.TrimSpace(rawURL)
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		return nil, fmt.Errorf("%w: monitor url must be http(s)", extern.ErrValidation)
	}
	interval := monitorOpts.IntervalMinutes
	if interval <= 0 {
		interval = c.cfg.Monitor.DefaultIntervalMinutes
	}

	space, err := c.store.MonitorSpace(ctx)
	if err != nil {
		return nil, err
	}
	spaceID := space.ID
	meta := catalog.Metadata{
		"url":             trimmed,
		"status":          "active",
		"aiEnabled":       monitorOpts.AIEnabled,
		"intervalMinutes": interval,
	}
	if monitorOpts.WatchPrompt != "" {
		meta.Set("watchPrompt", monitorOpts.WatchPrompt)
	}
	if monitorOpts.IgnorePrompt != "" {
		meta.Set("ignorePrompt", monitorOpts.IgnorePrompt)
	}
	shape := classify.Result{
		Kind:        catalog.KindWebMonitor,
		Preview:     classify.Preview(trimmed),
		Fingerprint: classify.TextFingerprint("monitor:" + trimmed),
		Metadata:    meta,
		Derivations: []catalog.JobKind{catalog.JobMonitorCheck},
		PrimaryName: "primary.txt",
	}
	opts.SpaceID = &spaceID
	return c.add(ctx, classify.Input{}, []byte(trimmed), opts, &shape)
}

// add runs the ingest protocol: fingerprint, duplicate window, classify,
// blob write, record create, derivation scheduling.
func (c *Coordinator) add(ctx context.Context, input classify.Input, payload []byte, opts Options, precomputed *classify.Result) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	shape := precomputed
	if shape == nil {
		classified, err := classify.Classify(input)
		if err != nil {
			return nil, err
		}
		shape = &classified
	}

	window := time.Duration(c.cfg.Ingest.DedupWindowSeconds) * time.Second
	if window > 0 && shape.Fingerprint != "" {
		existing, err := c.store.FindRecentFingerprint(ctx, shape.Fingerprint, time.Now().Add(-window))
		if err != nil {
			return nil, err
		}
		if existing != nil {
			c.logger.Debug("duplicate suppressed",
				logging.String(logging.FieldItemID, existing.ID),
				logging.String("fingerprint", shape.Fingerprint))
			return &Result{ID: existing.ID, Kind: existing.Kind, Duplicate: true, VideoURL: shape.VideoURL}, nil
		}
	}

	itemID := ulid.Make().String()

	var primaryRef string
	var err error
	if input.FilePath != "" {
		primaryRef, err = c.blobs.Adopt(ctx, itemID, shape.PrimaryName, input.FilePath)
	} else {
		primaryRef, err = c.blobs.WriteNewBytes(ctx, itemID, shape.PrimaryName, payload)
	}
	if err != nil {
		return nil, err
	}

	item := &catalog.Item{
		ID:          itemID,
		Kind:        shape.Kind,
		Subkind:     shape.Subkind,
		JSONSubtype: shape.JSONSubtype,
		SpaceID:     c.resolveSpace(ctx, opts),
		Fingerprint: shape.Fingerprint,
		Preview:     shape.Preview,
		Body:        catalog.BodyRefs{Primary: primaryRef},
		Metadata:    shape.Metadata,
		Context:     opts.Context,
	}
	if err := c.store.CreateItem(ctx, item); err != nil {
		_ = c.blobs.RemoveItem(itemID)
		return nil, err
	}

	// Scheduling failures never fail the ingest; jobs can be re-seeded.
	c.seedDerivations(ctx, item, shape.Derivations)

	return &Result{ID: itemID, Kind: shape.Kind, VideoURL: shape.VideoURL}, nil
}

func (c *Coordinator) seedDerivations(ctx context.Context, item *catalog.Item, kinds []catalog.JobKind) {
	if c.scheduler == nil {
		return
	}
	for _, kind := range kinds {
		if err := c.scheduler.Enqueue(ctx, item.ID, kind, ""); err != nil {
			c.logger.Warn("failed to seed derivation",
				logging.String(logging.FieldItemID, item.ID),
				logging.String(logging.FieldJob, string(kind)),
				logging.Error(err))
		}
	}
}

// resolveSpace returns the target space: explicit override, else the active
// space when spaces are enabled, else unclassified.
func (c *Coordinator) resolveSpace(ctx context.Context, opts Options) string {
	if opts.SpaceID != nil {
		return *opts.SpaceID
	}
	enabled, err := c.store.GetSetting(ctx, spacesEnabledKey)
	if err != nil || enabled != "true" {
		return ""
	}
	active, err := c.store.GetSetting(ctx, activeSpaceKey)
	if err != nil {
		return ""
	}
	return active
}

func overrideShape(input classify.Input, kind catalog.Kind) classify.Result {
	plain := input.Text
	return classify.Result{
		Kind:        kind,
		Preview:     classify.Preview(plain),
		Fingerprint: classify.TextFingerprint(plain),
		Metadata:    catalog.Metadata{},
	}
}
