package catalog_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"clipspace/internal/catalog"
	"clipspace/internal/testsupport"
)

func TestCreateAndFetchItem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.NewTextItem(t, store, "hello world", "fp-1")

	fetched, err := store.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if fetched.Preview != "hello world" || fetched.Kind != catalog.KindText {
		t.Fatalf("unexpected fetched item: %#v", fetched)
	}

	recent, err := store.FindRecentFingerprint(ctx, "fp-1", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("FindRecentFingerprint failed: %v", err)
	}
	if recent == nil || recent.ID != item.ID {
		t.Fatalf("expected fingerprint match, got %#v", recent)
	}
}

func TestCreateItemRejectsDuplicateID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.NewTextItem(t, store, "first", "fp-dup")

	clone := item.Clone()
	clone.Fingerprint = "fp-other"
	if err := store.CreateItem(ctx, clone); !errors.Is(err, catalog.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestSpaceCountsFollowItemMoves(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	space, err := store.CreateSpace(ctx, "Research", "book")
	if err != nil {
		t.Fatalf("CreateSpace failed: %v", err)
	}

	item := testsupport.NewTextItem(t, store, "note", "fp-move")
	if _, err := store.MoveToSpace(ctx, item.ID, space.ID); err != nil {
		t.Fatalf("MoveToSpace failed: %v", err)
	}

	got, err := store.GetSpace(ctx, space.ID)
	if err != nil {
		t.Fatalf("GetSpace failed: %v", err)
	}
	if got.ItemCount != 1 {
		t.Fatalf("expected item_count 1, got %d", got.ItemCount)
	}

	if err := store.DeleteItem(ctx, item.ID); err != nil {
		t.Fatalf("DeleteItem failed: %v", err)
	}
	got, err = store.GetSpace(ctx, space.ID)
	if err != nil {
		t.Fatalf("GetSpace failed: %v", err)
	}
	if got.ItemCount != 0 {
		t.Fatalf("expected item_count 0 after delete, got %d", got.ItemCount)
	}
}

func TestTagHistogramTracksPatches(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.NewTextItem(t, store, "tagged", "fp-tags")

	if _, err := store.Patch(ctx, item.ID, func(it *catalog.Item) error {
		if it.Metadata == nil {
			it.Metadata = catalog.Metadata{}
		}
		it.Metadata.Set("tags", []string{"go", "notes"})
		return nil
	}); err != nil {
		t.Fatalf("Patch failed: %v", err)
	}

	histogram, err := store.TagHistogram(ctx, "")
	if err != nil {
		t.Fatalf("TagHistogram failed: %v", err)
	}
	if histogram["go"] != 1 || histogram["notes"] != 1 {
		t.Fatalf("unexpected histogram: %v", histogram)
	}

	if _, err := store.Patch(ctx, item.ID, func(it *catalog.Item) error {
		it.Metadata.Set("tags", []string{"go"})
		return nil
	}); err != nil {
		t.Fatalf("Patch failed: %v", err)
	}
	histogram, err = store.TagHistogram(ctx, "")
	if err != nil {
		t.Fatalf("TagHistogram failed: %v", err)
	}
	if histogram["go"] != 1 {
		t.Fatalf("expected go=1, got %v", histogram)
	}
	if _, ok := histogram["notes"]; ok {
		t.Fatalf("dropped tag should leave histogram: %v", histogram)
	}
}

func TestDeleteSpaceReparentsItems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	space, err := store.CreateSpace(ctx, "Scratch", "")
	if err != nil {
		t.Fatalf("CreateSpace failed: %v", err)
	}
	item := testsupport.NewTextItem(t, store, "homeless soon", "fp-reparent")
	if _, err := store.MoveToSpace(ctx, item.ID, space.ID); err != nil {
		t.Fatalf("MoveToSpace failed: %v", err)
	}

	if err := store.DeleteSpace(ctx, space.ID); err != nil {
		t.Fatalf("DeleteSpace failed: %v", err)
	}

	got, err := store.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if got.SpaceID != "" {
		t.Fatalf("expected item reparented to unclassified, got %q", got.SpaceID)
	}
}

func TestSystemSpaceIsProtected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	monitors, err := store.MonitorSpace(ctx)
	if err != nil {
		t.Fatalf("MonitorSpace failed: %v", err)
	}
	if err := store.DeleteSpace(ctx, monitors.ID); !errors.Is(err, catalog.ErrSystemSpace) {
		t.Fatalf("expected ErrSystemSpace, got %v", err)
	}
}

func TestJobLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.NewTextItem(t, store, "summarize me", "fp-jobs")

	job, err := store.EnqueueJob(ctx, item.ID, catalog.JobSummarize, "")
	if err != nil {
		t.Fatalf("EnqueueJob failed: %v", err)
	}
	if _, err := store.EnqueueJob(ctx, item.ID, catalog.JobSummarize, ""); !errors.Is(err, catalog.ErrJobExists) {
		t.Fatalf("expected ErrJobExists for live duplicate, got %v", err)
	}

	claimed, err := store.NextPending(ctx, []catalog.JobKind{catalog.JobSummarize})
	if err != nil {
		t.Fatalf("NextPending failed: %v", err)
	}
	if claimed == nil || claimed.ID != job.ID || claimed.State != catalog.JobRunning {
		t.Fatalf("unexpected claimed job: %#v", claimed)
	}

	if err := store.CompleteJob(ctx, job.ID); err != nil {
		t.Fatalf("CompleteJob failed: %v", err)
	}

	got, err := store.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if !got.Derivations.Completed(catalog.JobSummarize) {
		t.Fatalf("derivation record not stamped: %#v", got.Derivations)
	}

	// Terminal job frees the (item, kind) slot for re-enqueue.
	if _, err := store.EnqueueJob(ctx, item.ID, catalog.JobSummarize, ""); err != nil {
		t.Fatalf("re-enqueue after completion failed: %v", err)
	}
}

func TestNextPendingFiltersByKind(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.NewTextItem(t, store, "media work", "fp-kinds")
	if _, err := store.EnqueueJob(ctx, item.ID, catalog.JobSummarize, ""); err != nil {
		t.Fatalf("EnqueueJob failed: %v", err)
	}

	claimed, err := store.NextPending(ctx, []catalog.JobKind{catalog.JobThumbnail, catalog.JobExtractAudio})
	if err != nil {
		t.Fatalf("NextPending failed: %v", err)
	}
	if claimed != nil {
		t.Fatalf("media pool claimed a network job: %#v", claimed)
	}
}

func TestResetRunningJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.NewTextItem(t, store, "crash victim", "fp-reset")
	job, err := store.EnqueueJob(ctx, item.ID, catalog.JobTranscribe, "")
	if err != nil {
		t.Fatalf("EnqueueJob failed: %v", err)
	}
	if _, err := store.NextPending(ctx, []catalog.JobKind{catalog.JobTranscribe}); err != nil {
		t.Fatalf("NextPending failed: %v", err)
	}

	reset, err := store.ResetRunningJobs(ctx)
	if err != nil {
		t.Fatalf("ResetRunningJobs failed: %v", err)
	}
	if reset != 1 {
		t.Fatalf("expected 1 reset job, got %d", reset)
	}
	got, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got.State != catalog.JobPending {
		t.Fatalf("expected pending after reset, got %s", got.State)
	}
}

func TestDeleteItemCancelsJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.NewTextItem(t, store, "short lived", "fp-cancel")
	if _, err := store.EnqueueJob(ctx, item.ID, catalog.JobAIMetadata, ""); err != nil {
		t.Fatalf("EnqueueJob failed: %v", err)
	}
	if err := store.DeleteItem(ctx, item.ID); err != nil {
		t.Fatalf("DeleteItem failed: %v", err)
	}

	jobs, err := store.ListJobs(ctx, nil)
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	for _, job := range jobs {
		if job.ItemID == item.ID {
			t.Fatalf("job survived item deletion: %#v", job)
		}
	}
}

func TestBulkMoveReportsPartialFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	space, err := store.CreateSpace(ctx, "Target", "")
	if err != nil {
		t.Fatalf("CreateSpace failed: %v", err)
	}
	a := testsupport.NewTextItem(t, store, "a", "fp-bulk-a")
	b := testsupport.NewTextItem(t, store, "b", "fp-bulk-b")

	result := store.BulkMove(ctx, []string{a.ID, "missing-id", b.ID}, space.ID)
	if len(result.Succeeded) != 2 || len(result.Failed) != 1 {
		t.Fatalf("unexpected bulk result: %#v", result)
	}
	if _, ok := result.Errors["missing-id"]; !ok {
		t.Fatalf("missing id not reported: %#v", result.Errors)
	}

	got, err := store.GetSpace(ctx, space.ID)
	if err != nil {
		t.Fatalf("GetSpace failed: %v", err)
	}
	if got.ItemCount != 2 {
		t.Fatalf("expected item_count 2, got %d", got.ItemCount)
	}
}

func TestEvictOldestSkipsPinned(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	var pinnedID string
	for i := 0; i < 4; i++ {
		item := testsupport.NewTextItem(t, store, fmt.Sprintf("item-%d", i), fmt.Sprintf("fp-evict-%d", i))
		if i == 0 {
			pinnedID = item.ID
			if _, err := store.Patch(ctx, item.ID, func(it *catalog.Item) error {
				it.Pinned = true
				return nil
			}); err != nil {
				t.Fatalf("Patch failed: %v", err)
			}
		}
		time.Sleep(2 * time.Millisecond)
	}

	removed, err := store.EvictOldest(ctx, 2)
	if err != nil {
		t.Fatalf("EvictOldest failed: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("expected 2 removals, got %d", len(removed))
	}
	if _, err := store.GetItem(ctx, pinnedID); err != nil {
		t.Fatalf("pinned item evicted: %v", err)
	}
}

func TestRebuildCachesRepairsCounts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	space, err := store.CreateSpace(ctx, "Repair", "")
	if err != nil {
		t.Fatalf("CreateSpace failed: %v", err)
	}
	item := testsupport.NewTextItem(t, store, "counted", "fp-rebuild")
	if _, err := store.MoveToSpace(ctx, item.ID, space.ID); err != nil {
		t.Fatalf("MoveToSpace failed: %v", err)
	}

	if err := store.RebuildCaches(ctx); err != nil {
		t.Fatalf("RebuildCaches failed: %v", err)
	}
	got, err := store.GetSpace(ctx, space.ID)
	if err != nil {
		t.Fatalf("GetSpace failed: %v", err)
	}
	if got.ItemCount != 1 {
		t.Fatalf("rebuild produced item_count %d", got.ItemCount)
	}
}
