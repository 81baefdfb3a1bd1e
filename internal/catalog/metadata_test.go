package catalog

import (
	"testing"
	"time"
)

func TestMergeGeneratedSkipsEditedFields(t *testing.T) {
	meta := Metadata{"title": "My Title"}
	meta.MarkEdited("title")

	meta.MergeGenerated(map[string]any{
		"title":   "Generated Title",
		"summary": "Generated summary",
	})

	if got := meta.String("title"); got != "My Title" {
		t.Fatalf("edited title overwritten: %q", got)
	}
	if got := meta.String("summary"); got != "Generated summary" {
		t.Fatalf("expected generated summary, got %q", got)
	}
}

func TestMergeGeneratedSkipsEmptyValues(t *testing.T) {
	meta := Metadata{"summary": "existing"}
	meta.MergeGenerated(map[string]any{
		"summary": "   ",
		"tags":    []string{},
	})

	if got := meta.String("summary"); got != "existing" {
		t.Fatalf("blank value clobbered summary: %q", got)
	}
	if _, ok := meta["tags"]; ok {
		t.Fatal("empty tag list should not be stored")
	}
}

func TestApplyPatchMarksEditedAndDeletes(t *testing.T) {
	meta := Metadata{"title": "old", "summary": "keep"}
	meta.ApplyPatch(map[string]any{
		"title": "new",
		"notes": nil,
	})

	if got := meta.String("title"); got != "new" {
		t.Fatalf("patch not applied: %q", got)
	}
	if !meta.IsEdited("title") {
		t.Fatal("patched key not marked edited")
	}
	if !meta.IsEdited("notes") {
		t.Fatal("deleted key should still be marked edited")
	}
	if _, ok := meta["notes"]; ok {
		t.Fatal("nil patch value should delete the key")
	}
}

func TestApplyPatchIgnoresEditedShadowKey(t *testing.T) {
	meta := Metadata{}
	meta.ApplyPatch(map[string]any{editedKey: []string{"injected"}})
	if meta.IsEdited("injected") {
		t.Fatal("patch must not write the edited set directly")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	meta := Metadata{"tags": []string{"a", "b"}}
	cp := meta.Clone()
	cp.Set("tags", []string{"c"})

	if got := meta.StringSlice("tags"); len(got) != 2 || got[0] != "a" {
		t.Fatalf("clone mutation leaked into original: %v", got)
	}
}

func TestTimelineRoundTrip(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	meta := Metadata{}
	meta.SetTimeline([]TimelineEntry{
		{Type: "baseline", Timestamp: ts, TextLength: 120},
		{Type: "change", Timestamp: ts.Add(time.Hour), Summary: "2 added", Added: []string{"line"}},
	})

	// Force the []any shape a JSON round trip produces.
	decoded := meta.Clone()
	entries := decoded.Timeline()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Type != "baseline" || entries[0].TextLength != 120 {
		t.Fatalf("baseline entry mangled: %#v", entries[0])
	}
	if entries[1].Summary != "2 added" || len(entries[1].Added) != 1 {
		t.Fatalf("change entry mangled: %#v", entries[1])
	}
}

func TestTimeAccessor(t *testing.T) {
	meta := Metadata{"captured_at": "2025-06-01T12:00:00Z"}
	ts, ok := meta.Time("captured_at")
	if !ok || !ts.Equal(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time: %v ok=%v", ts, ok)
	}
	if _, ok := meta.Time("missing"); ok {
		t.Fatal("missing key should not parse")
	}
}
