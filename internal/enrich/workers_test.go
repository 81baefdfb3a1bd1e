package enrich

import (
	"strings"
	"testing"

	"clipspace/internal/catalog"
)

func TestChunkByLinesRespectsLimit(t *testing.T) {
	lines := make([]string, 40)
	for i := range lines {
		lines[i] = strings.Repeat("a", 90)
	}
	text := strings.Join(lines, "\n")

	chunks := chunkByLines(text, 1000)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > 1000 {
			t.Fatalf("chunk %d exceeds limit: %d chars", i, len(chunk))
		}
	}
	if strings.Join(chunks, "\n") != text {
		t.Fatal("chunking lost content")
	}
}

func TestChunkByLinesHardSplitsOversizedLine(t *testing.T) {
	text := strings.Repeat("x", 2500)
	chunks := chunkByLines(text, 1000)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if strings.Join(chunks, "") != text {
		t.Fatal("hard split lost content")
	}
}

func TestChunkByLinesShortTextIsSingleChunk(t *testing.T) {
	chunks := chunkByLines("short", 1000)
	if len(chunks) != 1 || chunks[0] != "short" {
		t.Fatalf("unexpected chunks: %v", chunks)
	}
}

func TestEffectiveKindMapping(t *testing.T) {
	cases := []struct {
		item *catalog.Item
		want string
	}{
		{&catalog.Item{Kind: catalog.KindImage}, "image"},
		{&catalog.Item{Kind: catalog.KindText}, "text"},
		{&catalog.Item{Kind: catalog.KindURL}, "url"},
		{&catalog.Item{Kind: catalog.KindHTML}, "html"},
		{&catalog.Item{Kind: catalog.KindFile, Subkind: catalog.SubkindVideo}, "video"},
		{&catalog.Item{Kind: catalog.KindFile, Subkind: catalog.SubkindAudio}, "audio"},
		{&catalog.Item{Kind: catalog.KindFile, Subkind: catalog.SubkindCode}, "code"},
		{&catalog.Item{Kind: catalog.KindFile, Subkind: catalog.SubkindPDF}, "pdf"},
		{&catalog.Item{Kind: catalog.KindFile, Subkind: catalog.SubkindData}, "data"},
		{&catalog.Item{Kind: catalog.KindFile, Subkind: catalog.SubkindPresentation}, "default"},
		{&catalog.Item{Kind: catalog.KindAIChat}, "default"},
	}
	for _, tc := range cases {
		if got := effectiveKind(tc.item); got != tc.want {
			t.Errorf("effectiveKind(%s/%s) = %q, want %q", tc.item.Kind, tc.item.Subkind, got, tc.want)
		}
	}
}

func TestNormalizeFieldsFiltersAndCoerces(t *testing.T) {
	fields := metadataSchemas["text"]
	parsed := map[string]any{
		"title":       "  A Title  ",
		"description": "",
		"topics":      []any{"one", " two ", ""},
		"keyPoints":   "first\nsecond\n",
		"bogus":       "dropped",
		"tags":        []any{"go"},
	}

	got := normalizeFields(fields, parsed)
	if got["title"] != "A Title" {
		t.Fatalf("title not trimmed: %v", got["title"])
	}
	if _, ok := got["description"]; ok {
		t.Fatal("empty value should be dropped")
	}
	if _, ok := got["bogus"]; ok {
		t.Fatal("non-schema field should be dropped")
	}
	topics, _ := got["topics"].([]string)
	if len(topics) != 2 || topics[1] != "two" {
		t.Fatalf("unexpected topics: %v", topics)
	}
	points, _ := got["keyPoints"].([]string)
	if len(points) != 2 || points[0] != "first" {
		t.Fatalf("newline-joined list not split: %v", points)
	}
}

func TestSchemaPromptListsEveryField(t *testing.T) {
	prompt := schemaPrompt(metadataSchemas["video"])
	for _, f := range metadataSchemas["video"] {
		if !strings.Contains(prompt, f.Name) {
			t.Fatalf("prompt missing field %s", f.Name)
		}
	}
}
