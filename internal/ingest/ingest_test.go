package ingest_test

import (
	"context"
	"sync"
	"testing"

	"clipspace/internal/blob"
	"clipspace/internal/catalog"
	"clipspace/internal/ingest"
	"clipspace/internal/testsupport"
)

type recordingScheduler struct {
	mu   sync.Mutex
	jobs []catalog.JobKind
}

func (r *recordingScheduler) Enqueue(_ context.Context, _ string, kind catalog.JobKind, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, kind)
	return nil
}

func (r *recordingScheduler) kinds() []catalog.JobKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]catalog.JobKind(nil), r.jobs...)
}

func newCoordinator(t *testing.T) (*ingest.Coordinator, *catalog.Store, *recordingScheduler) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	blobs, err := blob.NewStore(cfg.Paths.BlobDir)
	if err != nil {
		t.Fatalf("blob.NewStore: %v", err)
	}
	sched := &recordingScheduler{}
	return ingest.New(store, blobs, sched, cfg, nil), store, sched
}

func TestAddTextRoundTrip(t *testing.T) {
	coord, store, _ := newCoordinator(t)

	ctx := context.Background()
	result, err := coord.AddText(ctx, "hello world", ingest.Options{})
	if err != nil {
		t.Fatalf("AddText failed: %v", err)
	}
	if result.Duplicate || result.Kind != catalog.KindText {
		t.Fatalf("unexpected result: %#v", result)
	}

	item, err := store.GetItem(ctx, result.ID)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if item.Preview != "hello world" || item.Body.Primary == "" {
		t.Fatalf("unexpected item: %#v", item)
	}
}

func TestDuplicateWindowSuppresses(t *testing.T) {
	coord, store, _ := newCoordinator(t)

	ctx := context.Background()
	first, err := coord.AddText(ctx, "dup", ingest.Options{})
	if err != nil {
		t.Fatalf("AddText failed: %v", err)
	}
	second, err := coord.AddText(ctx, "dup", ingest.Options{})
	if err != nil {
		t.Fatalf("AddText failed: %v", err)
	}
	if !second.Duplicate || second.ID != first.ID {
		t.Fatalf("expected duplicate suppression, got %#v", second)
	}

	items, err := store.ListItems(ctx, nil)
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected exactly one item, got %d", len(items))
	}
}

func TestImageIngestSeedsThumbnail(t *testing.T) {
	coord, _, sched := newCoordinator(t)

	_, err := coord.AddImage(context.Background(), []byte{0x89, 0x50}, "image/png", ingest.Options{})
	if err != nil {
		t.Fatalf("AddImage failed: %v", err)
	}
	kinds := sched.kinds()
	if len(kinds) != 1 || kinds[0] != catalog.JobThumbnail {
		t.Fatalf("expected thumbnail job, got %v", kinds)
	}
}

func TestVideoURLSeedsFetch(t *testing.T) {
	coord, _, sched := newCoordinator(t)

	result, err := coord.AddURL(context.Background(), "https://youtu.be/abc123", ingest.Options{})
	if err != nil {
		t.Fatalf("AddURL failed: %v", err)
	}
	if !result.VideoURL {
		t.Fatal("expected video URL hint")
	}
	kinds := sched.kinds()
	if len(kinds) != 1 || kinds[0] != catalog.JobVideoFetch {
		t.Fatalf("expected video fetch job, got %v", kinds)
	}
}

func TestActiveSpaceDefault(t *testing.T) {
	coord, store, _ := newCoordinator(t)

	ctx := context.Background()
	space, err := store.CreateSpace(ctx, "Active", "")
	if err != nil {
		t.Fatalf("CreateSpace failed: %v", err)
	}
	if err := store.SetSetting(ctx, "spaces_enabled", "true"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	if err := store.SetSetting(ctx, "active_space", space.ID); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}

	result, err := coord.AddText(ctx, "goes to active space", ingest.Options{})
	if err != nil {
		t.Fatalf("AddText failed: %v", err)
	}
	item, err := store.GetItem(ctx, result.ID)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if item.SpaceID != space.ID {
		t.Fatalf("expected active space %s, got %q", space.ID, item.SpaceID)
	}

	// Explicit unclassified override beats the active space.
	empty := ""
	result, err = coord.AddText(ctx, "stays unclassified", ingest.Options{SpaceID: &empty})
	if err != nil {
		t.Fatalf("AddText failed: %v", err)
	}
	item, err = store.GetItem(ctx, result.ID)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if item.SpaceID != "" {
		t.Fatalf("expected unclassified, got %q", item.SpaceID)
	}
}

func TestAddWebMonitorLandsInSystemSpace(t *testing.T) {
	coord, store, sched := newCoordinator(t)

	ctx := context.Background()
	result, err := coord.AddWebMonitor(ctx, "https://example.com", ingest.MonitorOptions{AIEnabled: true}, ingest.Options{})
	if err != nil {
		t.Fatalf("AddWebMonitor failed: %v", err)
	}
	item, err := store.GetItem(ctx, result.ID)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	monitors, err := store.MonitorSpace(ctx)
	if err != nil {
		t.Fatalf("MonitorSpace failed: %v", err)
	}
	if item.SpaceID != monitors.ID {
		t.Fatalf("monitor not in system space: %q", item.SpaceID)
	}
	if item.Metadata.String("status") != "active" {
		t.Fatalf("unexpected monitor metadata: %v", item.Metadata)
	}
	kinds := sched.kinds()
	if len(kinds) != 1 || kinds[0] != catalog.JobMonitorCheck {
		t.Fatalf("expected baseline check job, got %v", kinds)
	}
}

func TestAddFileCopiesIntoBlobStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	blobs, err := blob.NewStore(cfg.Paths.BlobDir)
	if err != nil {
		t.Fatalf("blob.NewStore: %v", err)
	}
	coord := ingest.New(store, blobs, nil, cfg, nil)

	src := t.TempDir() + "/recording.mp3"
	testsupport.WriteFile(t, src, 2048)

	result, err := coord.AddFile(context.Background(), src, ingest.Options{})
	if err != nil {
		t.Fatalf("AddFile failed: %v", err)
	}
	item, err := store.GetItem(context.Background(), result.ID)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if item.Subkind != catalog.SubkindAudio {
		t.Fatalf("expected audio subkind, got %s", item.Subkind)
	}
	size, err := blobs.Size(item.Body.Primary)
	if err != nil || size != 2048 {
		t.Fatalf("blob not copied: size=%d err=%v", size, err)
	}
}

func TestAIConversationRejectsNonJSON(t *testing.T) {
	coord, _, _ := newCoordinator(t)
	if _, err := coord.AddAIConversation(context.Background(), "not json", ingest.Options{}); err == nil {
		t.Fatal("expected validation error")
	}
}
