package testsupport

import (
	"context"
	"testing"

	"github.com/oklog/ulid/v2"

	"clipspace/internal/bus"
	"clipspace/internal/catalog"
	"clipspace/internal/config"
)

// MustOpenStore opens a catalog.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	hub := bus.NewHub()
	store, err := catalog.Open(cfg, hub)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
		hub.Close()
	})
	return store
}

// MustOpenStoreWithHub is MustOpenStore with a caller-supplied event hub, for
// tests that assert on published events.
func MustOpenStoreWithHub(t testing.TB, cfg *config.Config, hub *bus.Hub) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg, hub)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewTextItem creates a plain text item for tests using the provided store.
func NewTextItem(t testing.TB, store *catalog.Store, body, fingerprint string) *catalog.Item {
	t.Helper()

	item := &catalog.Item{
		ID:          ulid.Make().String(),
		Kind:        catalog.KindText,
		Fingerprint: fingerprint,
		Preview:     body,
		Body:        catalog.BodyRefs{Primary: "primary.txt"},
	}
	if err := store.CreateItem(context.Background(), item); err != nil {
		t.Fatalf("store.CreateItem: %v", err)
	}
	return item
}
