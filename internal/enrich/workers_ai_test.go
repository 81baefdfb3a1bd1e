package enrich_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"clipspace/internal/blob"
	"clipspace/internal/bus"
	"clipspace/internal/catalog"
	"clipspace/internal/enrich"
	"clipspace/internal/extern/llm"
	"clipspace/internal/testsupport"
)

func TestAIMetadataFoldsContextHintIntoPrompt(t *testing.T) {
	var captured string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		captured = string(body)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{
				map[string]any{
					"message": map[string]any{"content": `{"title":"Quarterly Plan"}`},
				},
			},
		})
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	hub := bus.NewHub()
	t.Cleanup(hub.Close)
	store := testsupport.MustOpenStoreWithHub(t, cfg, hub)
	blobs, err := blob.NewStore(cfg.Paths.BlobDir)
	if err != nil {
		t.Fatalf("blob.NewStore: %v", err)
	}

	item := testsupport.NewTextItem(t, store, "planning notes", "fp-hint")
	client := llm.NewClient(llm.Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	worker := enrich.NewAIMetadataWorker(client)

	job := &catalog.Job{Payload: `{"contextHint":"notes from the Q3 board meeting"}`}
	task := enrich.NewTask(job, item, store, blobs, hub)
	if _, err := worker.Run(context.Background(), task); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !strings.Contains(captured, "notes from the Q3 board meeting") {
		t.Fatalf("context hint missing from request:\n%s", captured)
	}

	got, err := store.GetItem(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if got.Metadata.String("title") != "Quarterly Plan" {
		t.Fatalf("generated title not merged: %#v", got.Metadata)
	}
}
