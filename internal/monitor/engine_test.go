package monitor_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"

	"clipspace/internal/blob"
	"clipspace/internal/bus"
	"clipspace/internal/catalog"
	"clipspace/internal/config"
	"clipspace/internal/enrich"
	"clipspace/internal/monitor"
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

type fixture struct {
	engine *monitor.Engine
	store  *catalog.Store
	blobs  *blob.Store
	hub    *bus.Hub
	cfg    *config.Config
	sched  *recordingScheduler
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
	engine := monitor.NewEngine(store, blobs, hub, cfg, nil, nil, sched, nil)
	return &fixture{engine: engine, store: store, blobs: blobs, hub: hub, cfg: cfg, sched: sched}
}

func (f *fixture) newMonitor(t *testing.T, url string) *catalog.Item {
	t.Helper()
	ctx := context.Background()
	space, err := f.store.MonitorSpace(ctx)
	if err != nil {
		t.Fatalf("MonitorSpace failed: %v", err)
	}
	item := &catalog.Item{
		ID:          ulid.Make().String(),
		Kind:        catalog.KindWebMonitor,
		SpaceID:     space.ID,
		Fingerprint: "monitor:" + url,
		Preview:     url,
		Body:        catalog.BodyRefs{Primary: "primary.txt"},
		Metadata: catalog.Metadata{
			"url":    url,
			"status": monitor.StatusActive,
		},
	}
	if err := f.store.CreateItem(ctx, item); err != nil {
		t.Fatalf("CreateItem failed: %v", err)
	}
	return item
}

// runCheck executes one monitor check against the freshest item state.
func (f *fixture) runCheck(t *testing.T, itemID string) error {
	t.Helper()
	ctx := context.Background()
	item, err := f.store.GetItem(ctx, itemID)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	job, err := f.store.EnqueueJob(ctx, itemID, catalog.JobMonitorCheck, "")
	if err != nil {
		t.Fatalf("EnqueueJob failed: %v", err)
	}
	task := enrich.NewTask(job, item, f.store, f.blobs, f.hub)
	_, runErr := f.engine.Run(ctx, task)
	if err := f.store.CompleteJob(ctx, job.ID); err != nil {
		t.Fatalf("CompleteJob failed: %v", err)
	}
	return runErr
}

func TestFirstCheckWritesBaseline(t *testing.T) {
	f := newFixture(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html><body><h1>News</h1><p>first story</p></body></html>"))
	}))
	defer server.Close()

	item := f.newMonitor(t, server.URL)
	if err := f.runCheck(t, item.ID); err != nil {
		t.Fatalf("check failed: %v", err)
	}

	got, err := f.store.GetItem(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	timeline := got.Metadata.Timeline()
	if len(timeline) != 1 || timeline[0].Type != "baseline" {
		t.Fatalf("expected single baseline entry, got %+v", timeline)
	}
	if timeline[0].TextLength == 0 {
		t.Fatal("baseline should record text length")
	}
	if got.Metadata.String("lastChecked") == "" {
		t.Fatal("lastChecked not set")
	}
	if _, err := f.blobs.ReadAll(blob.Ref(item.ID, "snapshot.txt")); err != nil {
		t.Fatalf("snapshot blob missing: %v", err)
	}
}

func TestChangeAppendsTimelineAndCountsUnviewed(t *testing.T) {
	f := newFixture(t)
	var mu sync.Mutex
	page := "<html><body><p>old line</p><p>stable line</p></body></html>"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		w.Write([]byte(page))
	}))
	defer server.Close()

	item := f.newMonitor(t, server.URL)
	if err := f.runCheck(t, item.ID); err != nil {
		t.Fatalf("baseline check failed: %v", err)
	}

	mu.Lock()
	page = "<html><body><p>new line</p><p>stable line</p></body></html>"
	mu.Unlock()
	if err := f.runCheck(t, item.ID); err != nil {
		t.Fatalf("change check failed: %v", err)
	}

	ctx := context.Background()
	got, err := f.store.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	timeline := got.Metadata.Timeline()
	if len(timeline) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(timeline))
	}
	change := timeline[1]
	if change.Type != "change" {
		t.Fatalf("expected change entry, got %q", change.Type)
	}
	if len(change.Added) == 0 || len(change.Removed) == 0 {
		t.Fatalf("expected non-empty diff, got added=%v removed=%v", change.Added, change.Removed)
	}
	if change.Timestamp.Before(timeline[0].Timestamp) {
		t.Fatal("timeline timestamps regressed")
	}

	space, err := f.store.MonitorSpace(ctx)
	if err != nil {
		t.Fatalf("MonitorSpace failed: %v", err)
	}
	if space.UnviewedChanges != 1 {
		t.Fatalf("expected 1 unviewed change, got %d", space.UnviewedChanges)
	}
}

func TestUnchangedPageOnlyTouchesLastChecked(t *testing.T) {
	f := newFixture(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html><body><p>static</p></body></html>"))
	}))
	defer server.Close()

	item := f.newMonitor(t, server.URL)
	for i := 0; i < 3; i++ {
		if err := f.runCheck(t, item.ID); err != nil {
			t.Fatalf("check %d failed: %v", i, err)
		}
	}

	got, err := f.store.GetItem(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if n := len(got.Metadata.Timeline()); n != 1 {
		t.Fatalf("expected baseline only, got %d entries", n)
	}
}

func TestFetchErrorSurfacesAsProviderFailure(t *testing.T) {
	f := newFixture(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	item := f.newMonitor(t, server.URL)
	if err := f.runCheck(t, item.ID); err == nil {
		t.Fatal("expected fetch failure")
	}
}

func TestMonitorOps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.newMonitor(t, "https://example.com")

	if err := f.engine.SetStatus(ctx, item.ID, "paused"); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if err := f.engine.SetStatus(ctx, item.ID, "bogus"); err == nil {
		t.Fatal("expected invalid status to be rejected")
	}
	if err := f.engine.SetInterval(ctx, item.ID, 15); err != nil {
		t.Fatalf("SetInterval failed: %v", err)
	}
	if err := f.engine.SetInterval(ctx, item.ID, 0); err == nil {
		t.Fatal("expected zero interval to be rejected")
	}
	if err := f.engine.SetAIEnabled(ctx, item.ID, true); err != nil {
		t.Fatalf("SetAIEnabled failed: %v", err)
	}

	got, err := f.store.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if got.Metadata.String("status") != "paused" || got.Metadata.Int("intervalMinutes") != 15 || !got.Metadata.Bool("aiEnabled") {
		t.Fatalf("unexpected metadata: %v", got.Metadata)
	}

	if err := f.engine.CheckNow(ctx, item.ID); err != nil {
		t.Fatalf("CheckNow failed: %v", err)
	}
	f.sched.mu.Lock()
	defer f.sched.mu.Unlock()
	if len(f.sched.jobs) != 1 || f.sched.jobs[0] != catalog.JobMonitorCheck {
		t.Fatalf("expected one monitor check enqueue, got %v", f.sched.jobs)
	}
}

func TestCheckNowRejectsNonMonitor(t *testing.T) {
	f := newFixture(t)
	item := testsupport.NewTextItem(t, f.store, "plain", "fp-not-monitor")
	if err := f.engine.CheckNow(context.Background(), item.ID); err == nil {
		t.Fatal("expected validation error")
	}
}
