package query_test

import (
	"context"
	"testing"

	"github.com/oklog/ulid/v2"

	"clipspace/internal/catalog"
	"clipspace/internal/query"
	"clipspace/internal/testsupport"
)

func newService(t *testing.T) (*query.Service, *catalog.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	return query.New(store), store
}

func addItem(t *testing.T, store *catalog.Store, preview string, mutate func(*catalog.Item)) *catalog.Item {
	t.Helper()
	item := &catalog.Item{
		ID:          ulid.Make().String(),
		Kind:        catalog.KindText,
		Fingerprint: "fp-" + ulid.Make().String(),
		Preview:     preview,
		Body:        catalog.BodyRefs{Primary: "primary.txt"},
		Metadata:    catalog.Metadata{},
	}
	if mutate != nil {
		mutate(item)
	}
	if err := store.CreateItem(context.Background(), item); err != nil {
		t.Fatalf("CreateItem failed: %v", err)
	}
	return item
}

func TestHistoryNewestFirst(t *testing.T) {
	svc, store := newService(t)
	first := addItem(t, store, "first", nil)
	second := addItem(t, store, "second", nil)

	items, err := svc.History(context.Background())
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].ID != second.ID || items[1].ID != first.ID {
		t.Fatalf("history out of order: %s, %s", items[0].ID, items[1].ID)
	}
}

func TestSearchMatchesAcrossFields(t *testing.T) {
	svc, store := newService(t)
	byPreview := addItem(t, store, "Grocery list for the week", nil)
	byTitle := addItem(t, store, "untitled", func(it *catalog.Item) {
		it.Metadata.Set("title", "Quarterly grocery budget")
	})
	byTag := addItem(t, store, "receipt", func(it *catalog.Item) {
		it.Metadata.Set("tags", []string{"groceries", "finance"})
	})
	byTranscript := addItem(t, store, "voice memo", func(it *catalog.Item) {
		it.Metadata.Set("transcript", "remember to buy groceries on Friday")
	})
	addItem(t, store, "unrelated", nil)

	items, err := svc.Search(context.Background(), "GROCER")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("expected 4 matches, got %d", len(items))
	}
	want := map[string]bool{byPreview.ID: true, byTitle.ID: true, byTag.ID: true, byTranscript.ID: true}
	for _, item := range items {
		if !want[item.ID] {
			t.Fatalf("unexpected match %s", item.ID)
		}
	}
	// Recency ranking: the transcript item is the newest match.
	if items[0].ID != byTranscript.ID {
		t.Fatalf("expected newest match first, got %s", items[0].ID)
	}
}

func TestSearchEmptyQueryReturnsHistory(t *testing.T) {
	svc, store := newService(t)
	addItem(t, store, "anything", nil)

	items, err := svc.Search(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected full history, got %d items", len(items))
	}
}

func TestFilterPredicates(t *testing.T) {
	svc, store := newService(t)
	pinned := addItem(t, store, "pinned note", func(it *catalog.Item) {
		it.Pinned = true
		it.Metadata.Set("tags", []string{"Work", "urgent"})
	})
	addItem(t, store, "plain note", func(it *catalog.Item) {
		it.Metadata.Set("tags", []string{"work"})
	})
	addItem(t, store, "image", func(it *catalog.Item) {
		it.Kind = catalog.KindImage
		it.Body.Primary = "primary.png"
	})

	ctx := context.Background()
	items, err := svc.Filter(ctx, query.ByPinned())
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if len(items) != 1 || items[0].ID != pinned.ID {
		t.Fatalf("pinned filter wrong: %v", items)
	}

	items, err = svc.Filter(ctx, query.ByKind(catalog.KindText), query.ByTags("work", "URGENT"))
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if len(items) != 1 || items[0].ID != pinned.ID {
		t.Fatalf("tag AND filter wrong, got %d items", len(items))
	}

	items, err = svc.Filter(ctx, query.ByKind(catalog.KindImage))
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if len(items) != 1 || items[0].Kind != catalog.KindImage {
		t.Fatalf("kind filter wrong: %v", items)
	}
}

func TestTagHistogramDelegation(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	space, err := store.CreateSpace(ctx, "Tagged", "")
	if err != nil {
		t.Fatalf("CreateSpace failed: %v", err)
	}
	addItem(t, store, "a", func(it *catalog.Item) {
		it.SpaceID = space.ID
		it.Metadata.Set("tags", []string{"go", "notes"})
	})
	addItem(t, store, "b", func(it *catalog.Item) {
		it.SpaceID = space.ID
		it.Metadata.Set("tags", []string{"go"})
	})

	histogram, err := svc.TagHistogram(ctx, space.ID)
	if err != nil {
		t.Fatalf("TagHistogram failed: %v", err)
	}
	if histogram["go"] != 2 || histogram["notes"] != 1 {
		t.Fatalf("unexpected histogram: %v", histogram)
	}
}
