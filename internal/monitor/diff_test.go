package monitor

import (
	"reflect"
	"strings"
	"testing"

	"clipspace/internal/catalog"
)

func TestDiffLinesAddedAndRemoved(t *testing.T) {
	previous := "alpha\nbravo\ncharlie"
	current := "alpha\ndelta\ncharlie\necho"

	added, removed := DiffLines(previous, current)
	if !reflect.DeepEqual(added, []string{"delta", "echo"}) {
		t.Fatalf("unexpected added: %v", added)
	}
	if !reflect.DeepEqual(removed, []string{"bravo"}) {
		t.Fatalf("unexpected removed: %v", removed)
	}
}

func TestDiffLinesIdenticalTexts(t *testing.T) {
	added, removed := DiffLines("same\ntext", "same\ntext")
	if len(added) != 0 || len(removed) != 0 {
		t.Fatalf("expected empty diff, got added=%v removed=%v", added, removed)
	}
}

func TestDiffLinesFromEmpty(t *testing.T) {
	added, removed := DiffLines("", "one\ntwo")
	if len(added) != 2 || len(removed) != 0 {
		t.Fatalf("unexpected diff: added=%v removed=%v", added, removed)
	}
}

func TestNormalizeStripsMarkupAndBlankLines(t *testing.T) {
	page := "<html><head><script>var x=1;</script></head><body>\n<h1>Title</h1>\n\n<p>  body text  </p>\n</body></html>"
	got := Normalize(page)
	if got == "" {
		t.Fatal("normalize produced nothing")
	}
	for _, banned := range []string{"<", "var x"} {
		if strings.Contains(got, banned) {
			t.Fatalf("normalized text still contains %q: %q", banned, got)
		}
	}
}

func TestTrimTimelineKeepsBaseline(t *testing.T) {
	entries := make([]catalog.TimelineEntry, 6)
	entries[0] = catalog.TimelineEntry{Type: "baseline"}
	for i := 1; i < 6; i++ {
		entries[i] = catalog.TimelineEntry{Type: "change", Summary: string(rune('a' + i))}
	}

	trimmed := trimTimeline(entries, 4)
	if len(trimmed) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(trimmed))
	}
	if trimmed[0].Type != "baseline" {
		t.Fatal("baseline must survive trimming")
	}
	if trimmed[len(trimmed)-1].Summary != entries[5].Summary {
		t.Fatal("newest entry must survive trimming")
	}
}

func TestScreenshotItemID(t *testing.T) {
	if got := screenshotItemID("/shots/01ABC-baseline.png"); got != "01ABC" {
		t.Fatalf("unexpected item id %q", got)
	}
	if got := screenshotItemID("/shots/notes.txt"); got != "" {
		t.Fatalf("expected empty id for non-png, got %q", got)
	}
}
