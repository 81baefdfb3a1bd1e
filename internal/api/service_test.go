package api_test

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"

	"clipspace/internal/api"
	"clipspace/internal/blob"
	"clipspace/internal/bus"
	"clipspace/internal/catalog"
	"clipspace/internal/extern"
	"clipspace/internal/ingest"
	"clipspace/internal/query"
	"clipspace/internal/testsupport"
)

type recordingScheduler struct {
	mu   sync.Mutex
	jobs []recordedJob
}

type recordedJob struct {
	itemID  string
	kind    catalog.JobKind
	payload string
}

func (r *recordingScheduler) Enqueue(_ context.Context, itemID string, kind catalog.JobKind, payload string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, recordedJob{itemID: itemID, kind: kind, payload: payload})
	return nil
}

func (r *recordingScheduler) recorded() []recordedJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedJob(nil), r.jobs...)
}

type fixture struct {
	service *api.Service
	store   *catalog.Store
	hub     *bus.Hub
	sched   *recordingScheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	hub := bus.NewHub()
	store := testsupport.MustOpenStoreWithHub(t, cfg, hub)
	blobs, err := blob.NewStore(cfg.Paths.BlobDir)
	if err != nil {
		t.Fatalf("blob.NewStore: %v", err)
	}
	sched := &recordingScheduler{}
	coordinator := ingest.New(store, blobs, sched, cfg, nil)
	service := api.NewService(store, blobs, coordinator, query.New(store), sched, nil, nil, hub, nil)
	return &fixture{service: service, store: store, hub: hub, sched: sched}
}

func pngDataURL(payload string) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte(payload))
}

func TestAddTextReceipt(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	receipt := fx.service.AddText(ctx, "remember this", api.AddOptions{})
	if !receipt.Success || receipt.ID == "" {
		t.Fatalf("unexpected receipt: %#v", receipt)
	}
	if receipt.Kind != string(catalog.KindText) {
		t.Fatalf("kind = %q", receipt.Kind)
	}

	again := fx.service.AddText(ctx, "remember this", api.AddOptions{})
	if !again.Success || !again.Duplicate || again.ID != receipt.ID {
		t.Fatalf("duplicate receipt: %#v", again)
	}
}

func TestAddImageRejectsMalformedDataURL(t *testing.T) {
	fx := newFixture(t)

	receipt := fx.service.AddImage(context.Background(), "nonsense", api.AddOptions{})
	if receipt.Success {
		t.Fatal("expected failure for malformed data URL")
	}
	if receipt.ErrorKind != "validation" {
		t.Fatalf("error kind = %q", receipt.ErrorKind)
	}
}

func TestHistoryNewestFirstAsRecords(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	first := fx.service.AddText(ctx, "first", api.AddOptions{})
	second := fx.service.AddText(ctx, "second", api.AddOptions{})

	records, err := fx.service.History(ctx)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len = %d", len(records))
	}
	if records[0].ID != second.ID || records[1].ID != first.ID {
		t.Fatalf("order = %s, %s", records[0].ID, records[1].ID)
	}
	if records[0].CreatedAt == "" {
		t.Fatal("createdAt missing")
	}
}

func TestTogglePinFlips(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	receipt := fx.service.AddText(ctx, "pin me", api.AddOptions{})

	pinned, err := fx.service.TogglePin(ctx, receipt.ID)
	if err != nil || !pinned {
		t.Fatalf("first toggle: %v %v", pinned, err)
	}
	pinned, err = fx.service.TogglePin(ctx, receipt.ID)
	if err != nil || pinned {
		t.Fatalf("second toggle: %v %v", pinned, err)
	}
}

func TestUpdateMetadataMarksEdited(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	receipt := fx.service.AddText(ctx, "meta target", api.AddOptions{})

	record, err := fx.service.UpdateMetadata(ctx, receipt.ID, map[string]any{"title": "Custom"})
	if err != nil {
		t.Fatalf("UpdateMetadata: %v", err)
	}
	if record.Metadata["title"] != "Custom" {
		t.Fatalf("metadata = %#v", record.Metadata)
	}

	item, err := fx.store.GetItem(ctx, receipt.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if !item.Metadata.IsEdited("title") {
		t.Fatal("title not marked edited")
	}

	if _, err := fx.service.UpdateMetadata(ctx, receipt.ID, nil); err == nil {
		t.Fatal("empty patch accepted")
	}
}

func TestUpdateItemContentRewritesPreview(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	receipt := fx.service.AddText(ctx, "old body", api.AddOptions{})

	record, err := fx.service.UpdateItemContent(ctx, receipt.ID, "brand new body")
	if err != nil {
		t.Fatalf("UpdateItemContent: %v", err)
	}
	if record.Preview != "brand new body" {
		t.Fatalf("preview = %q", record.Preview)
	}

	content, err := fx.service.ItemContent(ctx, receipt.ID)
	if err != nil {
		t.Fatalf("ItemContent: %v", err)
	}
	if content != "brand new body" {
		t.Fatalf("content = %q", content)
	}
}

func TestUpdateItemImageRequeuesThumbnail(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	receipt := fx.service.AddImage(ctx, pngDataURL("\x89PNG fake pixels"), api.AddOptions{})
	if !receipt.Success {
		t.Fatalf("AddImage: %#v", receipt)
	}
	before := len(fx.sched.recorded())

	if _, err := fx.service.UpdateItemImage(ctx, receipt.ID, pngDataURL("edited pixels")); err != nil {
		t.Fatalf("UpdateItemImage: %v", err)
	}

	jobs := fx.sched.recorded()
	if len(jobs) != before+1 || jobs[len(jobs)-1].kind != catalog.JobThumbnail {
		t.Fatalf("jobs = %#v", jobs)
	}
}

func TestBulkDeleteReportsPerItem(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	keep := fx.service.AddText(ctx, "keep", api.AddOptions{})
	gone := fx.service.AddText(ctx, "gone", api.AddOptions{})

	receipt := fx.service.DeleteItems(ctx, []string{gone.ID, "missing-id"})
	if receipt.Success {
		t.Fatal("expected partial failure")
	}
	if len(receipt.Succeeded) != 1 || receipt.Succeeded[0] != gone.ID {
		t.Fatalf("succeeded = %#v", receipt.Succeeded)
	}
	if len(receipt.Failed) != 1 || receipt.Failed[0].ID != "missing-id" {
		t.Fatalf("failed = %#v", receipt.Failed)
	}

	if _, err := fx.store.GetItem(ctx, keep.ID); err != nil {
		t.Fatalf("survivor missing: %v", err)
	}
}

func TestSetCurrentSpaceValidatesAndPublishes(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	events, dispose := fx.hub.Subscribe(func(evt bus.Event) bool {
		return evt.Type == bus.EventActiveSpace
	})
	defer dispose()

	if err := fx.service.SetCurrentSpace(ctx, "no-such-space"); err == nil {
		t.Fatal("unknown space accepted")
	}

	space, err := fx.store.CreateSpace(ctx, "Research", "book")
	if err != nil {
		t.Fatalf("CreateSpace: %v", err)
	}
	if err := fx.service.SetCurrentSpace(ctx, space.ID); err != nil {
		t.Fatalf("SetCurrentSpace: %v", err)
	}

	evt := <-events
	if evt.SpaceID != space.ID {
		t.Fatalf("event space = %q", evt.SpaceID)
	}

	active, err := fx.service.ActiveSpace(ctx)
	if err != nil || active != space.ID {
		t.Fatalf("active = %q, %v", active, err)
	}
}

func TestSpacesEnabledRoundTrip(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	enabled, err := fx.service.SpacesEnabled(ctx)
	if err != nil || enabled {
		t.Fatalf("default enabled = %v, %v", enabled, err)
	}
	if err := fx.service.SetSpacesEnabled(ctx, true); err != nil {
		t.Fatalf("SetSpacesEnabled: %v", err)
	}
	enabled, err = fx.service.SpacesEnabled(ctx)
	if err != nil || !enabled {
		t.Fatalf("enabled = %v, %v", enabled, err)
	}
}

func TestGenerateMetadataAIQueuesJob(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	receipt := fx.service.AddText(ctx, "describe me", api.AddOptions{})
	before := len(fx.sched.recorded())

	if err := fx.service.GenerateMetadataAI(ctx, receipt.ID, "a meeting note"); err != nil {
		t.Fatalf("GenerateMetadataAI: %v", err)
	}

	jobs := fx.sched.recorded()
	last := jobs[len(jobs)-1]
	if len(jobs) != before+1 || last.kind != catalog.JobAIMetadata {
		t.Fatalf("jobs = %#v", jobs)
	}
	if last.payload == "" {
		t.Fatal("context hint dropped from payload")
	}

	if err := fx.service.GenerateMetadataAI(ctx, "missing-id", ""); err == nil {
		t.Fatal("unknown item accepted")
	}
}

func TestIdentifySpeakersRequiresTranscript(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	receipt := fx.service.AddText(ctx, "no transcript here", api.AddOptions{})

	if err := fx.service.IdentifySpeakers(ctx, receipt.ID, ""); err == nil {
		t.Fatal("missing transcript accepted")
	}

	if _, err := fx.store.Patch(ctx, receipt.ID, func(it *catalog.Item) error {
		it.Metadata.Set("transcript", "alpha\nbeta")
		return nil
	}); err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if err := fx.service.IdentifySpeakers(ctx, receipt.ID, "podcast"); err != nil {
		t.Fatalf("IdentifySpeakers: %v", err)
	}
}

func TestSaveTTSAudioAttachesToSource(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	receipt := fx.service.AddText(ctx, "speak this", api.AddOptions{})

	id, err := fx.service.SaveTTSAudio(ctx, []byte("mp3 bytes"), "nova", receipt.ID, true)
	if err != nil || id != receipt.ID {
		t.Fatalf("SaveTTSAudio: %q, %v", id, err)
	}

	audio, err := fx.service.TTSAudio(ctx, receipt.ID)
	if err != nil {
		t.Fatalf("TTSAudio: %v", err)
	}
	if string(audio.Data) != "mp3 bytes" || audio.Voice != "nova" {
		t.Fatalf("audio = %#v", audio)
	}
}

func TestSaveTTSAudioAsNewItem(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	id, err := fx.service.SaveTTSAudio(ctx, []byte("standalone"), "echo", "", false)
	if err != nil || id == "" {
		t.Fatalf("SaveTTSAudio: %q, %v", id, err)
	}

	item, err := fx.store.GetItem(ctx, id)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if item.Kind != catalog.KindFile || item.Subkind != catalog.SubkindAudio {
		t.Fatalf("shape = %s/%s", item.Kind, item.Subkind)
	}
}

func TestSaveTranscriptionAttachesToSource(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	receipt := fx.service.AddText(ctx, "media stand-in", api.AddOptions{})

	id, err := fx.service.SaveTranscription(ctx, "corrected words", receipt.ID, true)
	if err != nil || id != receipt.ID {
		t.Fatalf("SaveTranscription: %q, %v", id, err)
	}

	transcript, err := fx.service.Transcription(ctx, receipt.ID)
	if err != nil || transcript != "corrected words" {
		t.Fatalf("transcript = %q, %v", transcript, err)
	}
}

func TestMonitorOpsWithoutEngine(t *testing.T) {
	fx := newFixture(t)

	err := fx.service.CheckMonitorNow(context.Background(), "any")
	if err == nil {
		t.Fatal("expected configuration error")
	}
	outcome := api.Outcome(err)
	if outcome.ErrorKind != "configuration" {
		t.Fatalf("error kind = %q", outcome.ErrorKind)
	}
}

func TestOnHistoryUpdateDelivers(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	got := make(chan bus.Event, 4)
	dispose := fx.service.OnHistoryUpdate(func(evt bus.Event) { got <- evt })
	defer dispose()

	receipt := fx.service.AddText(ctx, "watched", api.AddOptions{})

	evt := <-got
	if evt.Type != bus.EventItemCreated || evt.ItemID != receipt.ID {
		t.Fatalf("event = %#v", evt)
	}
}

func TestEditImageWithAIReportsUnsupported(t *testing.T) {
	fx := newFixture(t)
	err := fx.service.EditImageWithAI(context.Background(), "any-id", "make it blue")
	if err == nil {
		t.Fatal("expected error")
	}
	if kind := extern.Kind(err); kind != "unsupported" {
		t.Fatalf("error kind = %q, want unsupported", kind)
	}
}

func TestUpdateItemContentAcceptsConversation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	item := &catalog.Item{
		ID:          "conv-1",
		Kind:        catalog.KindAIChat,
		Fingerprint: "fp-conv",
		Preview:     "assistant chat",
		Body:        catalog.BodyRefs{Primary: "conv-1/primary.txt"},
	}
	if err := fx.store.CreateItem(ctx, item); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	record, err := fx.service.UpdateItemContent(ctx, item.ID, "revised conversation")
	if err != nil {
		t.Fatalf("UpdateItemContent: %v", err)
	}
	if record.Preview != "revised conversation" {
		t.Fatalf("preview = %q", record.Preview)
	}
}
