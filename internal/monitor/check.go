package monitor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"clipspace/internal/blob"
	"clipspace/internal/catalog"
	"clipspace/internal/classify"
	"clipspace/internal/enrich"
	"clipspace/internal/extern"
	"clipspace/internal/logging"
)

// snapshotName is the blob holding the last normalized page text.
const snapshotName = "snapshot.txt"

const maxPageBytes = 4 << 20

// Kind registers the engine as the monitor-check worker.
func (e *Engine) Kind() catalog.JobKind { return catalog.JobMonitorCheck }

// Run performs one check: fetch, normalize, diff against the stored
// snapshot, and record the outcome on the item's timeline.
func (e *Engine) Run(ctx context.Context, task *enrich.Task) ([]enrich.Followup, error) {
	item := task.Item
	if item.Kind != catalog.KindWebMonitor {
		return nil, extern.Wrap(extern.ErrValidation, "monitor", "check", "item is not a web monitor", nil)
	}
	rawURL := item.Metadata.String(keyURL)
	if rawURL == "" {
		return nil, extern.Wrap(extern.ErrValidation, "monitor", "check", "monitor carries no url", nil)
	}

	text, err := e.fetchNormalized(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	task.Progress(ctx, 0.5)

	snapshotRef := blob.Ref(item.ID, snapshotName)
	previous, err := e.blobs.ReadAll(snapshotRef)
	if err != nil {
		if !catalog.IsNotFound(err) {
			return nil, err
		}
		return nil, e.recordBaseline(ctx, task, rawURL, text)
	}

	if string(previous) == text {
		_, err := e.store.Patch(ctx, item.ID, func(it *catalog.Item) error {
			it.Metadata.Set(keyLastChecked, time.Now().UTC().Format(time.RFC3339))
			return nil
		})
		return nil, err
	}
	return nil, e.recordChange(ctx, task, rawURL, string(previous), text)
}

// fetchNormalized downloads the page and reduces it to comparable text.
func (e *Engine) fetchNormalized(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", extern.Wrap(extern.ErrValidation, "monitor", "fetch", "invalid url", err)
	}
	req.Header.Set("User-Agent", "clipspace-monitor/1.0")

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: monitor fetch: %v", extern.ErrCancelled, ctx.Err())
		}
		return "", extern.Wrap(extern.ErrProvider, "monitor", "fetch", "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", extern.Wrap(extern.ErrProvider, "monitor", "fetch",
			fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", extern.Wrap(extern.ErrProvider, "monitor", "fetch", "read body", err)
	}
	return Normalize(string(body)), nil
}

// Normalize projects a page to stable comparable text: markup stripped,
// whitespace collapsed, empty lines dropped.
func Normalize(page string) string {
	text := classify.HTMLToText(page)
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func (e *Engine) recordBaseline(ctx context.Context, task *enrich.Task, rawURL, text string) error {
	item := task.Item
	if _, err := e.blobs.WriteBytes(ctx, item.ID, snapshotName, []byte(text)); err != nil {
		return err
	}

	shot := e.capture(ctx, rawURL, item.ID, "baseline")
	now := time.Now().UTC()
	entry := catalog.TimelineEntry{
		Type:           "baseline",
		Timestamp:      now,
		Summary:        "Baseline captured",
		ScreenshotPath: shot,
		TextLength:     len(text),
	}

	_, err := e.store.Patch(ctx, item.ID, func(it *catalog.Item) error {
		it.Metadata.SetTimeline(append(it.Metadata.Timeline(), entry))
		it.Metadata.Set(keyLastChecked, now.Format(time.RFC3339))
		if shot != "" {
			it.Metadata.Set(keyLastScreenshot, shot)
		}
		return nil
	})
	return err
}

func (e *Engine) recordChange(ctx context.Context, task *enrich.Task, rawURL, previous, current string) error {
	item := task.Item
	added, removed := DiffLines(previous, current)

	before := item.Metadata.String(keyLastScreenshot)
	after := e.capture(ctx, rawURL, item.ID, fmt.Sprintf("change-%d", time.Now().Unix()))

	var description string
	if item.Metadata.Bool(keyAIEnabled) && e.llm != nil {
		description = e.describeChange(ctx, item, added, removed)
	}
	task.Progress(ctx, 0.9)

	if _, err := e.blobs.WriteBytes(ctx, item.ID, snapshotName, []byte(current)); err != nil {
		return err
	}

	now := time.Now().UTC()
	entry := catalog.TimelineEntry{
		Type:                 "change",
		Timestamp:            now,
		Summary:              fmt.Sprintf("%d lines added, %d removed", len(added), len(removed)),
		AIDescription:        description,
		Added:                added,
		Removed:              removed,
		ScreenshotBeforePath: before,
		ScreenshotAfterPath:  after,
		TextLength:           len(current),
	}

	_, err := e.store.Patch(ctx, item.ID, func(it *catalog.Item) error {
		timeline := append(it.Metadata.Timeline(), entry)
		it.Metadata.SetTimeline(trimTimeline(timeline, e.cfg.Monitor.MaxTimelineEntries))
		it.Metadata.Set(keyLastChecked, now.Format(time.RFC3339))
		it.Metadata.Set(keyLastChanged, now.Format(time.RFC3339))
		if after != "" {
			it.Metadata.Set(keyLastScreenshot, after)
		}
		return nil
	})
	if err != nil {
		return err
	}

	space, err := e.store.MonitorSpace(ctx)
	if err != nil {
		return err
	}
	return e.store.AddUnviewedChanges(ctx, space.ID, 1)
}

// capture writes a screenshot into the screenshots directory. Capture
// failures are logged and degrade to an empty path; the check itself still
// counts.
func (e *Engine) capture(ctx context.Context, rawURL, itemID, label string) string {
	if e.tools == nil {
		return ""
	}
	dir := e.cfg.Paths.ScreenshotsDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		e.logger.Warn("cannot create screenshots dir", logging.Error(err))
		return ""
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.png", itemID, label))
	if err := e.tools.CapturePage(ctx, rawURL, path); err != nil {
		e.logger.Warn("screenshot capture failed",
			logging.String(logging.FieldItemID, itemID), logging.Error(err))
		return ""
	}
	return path
}

const describeSystemPrompt = `You describe changes on a monitored web page in one or two sentences. Only mention changes matching what the user watches for; stay silent about ignored changes. If nothing relevant changed, respond with exactly "No relevant changes".`

func (e *Engine) describeChange(ctx context.Context, item *catalog.Item, added, removed []string) string {
	var b strings.Builder
	if watch := item.Metadata.String(keyWatchPrompt); watch != "" {
		b.WriteString("Watch for: ")
		b.WriteString(watch)
		b.WriteString("\n")
	}
	if ignore := item.Metadata.String(keyIgnorePrompt); ignore != "" {
		b.WriteString("Ignore: ")
		b.WriteString(ignore)
		b.WriteString("\n")
	}
	b.WriteString("\nAdded lines:\n")
	for _, line := range added {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\nRemoved lines:\n")
	for _, line := range removed {
		b.WriteString(line)
		b.WriteString("\n")
	}

	description, err := e.llm.Complete(ctx, describeSystemPrompt, b.String())
	if err != nil {
		e.logger.Warn("change description failed",
			logging.String(logging.FieldItemID, item.ID), logging.Error(err))
		return ""
	}
	return strings.TrimSpace(description)
}

// trimTimeline caps the timeline length while always preserving the baseline
// entry at the head.
func trimTimeline(entries []catalog.TimelineEntry, max int) []catalog.TimelineEntry {
	if max <= 0 || len(entries) <= max {
		return entries
	}
	trimmed := make([]catalog.TimelineEntry, 0, max)
	trimmed = append(trimmed, entries[0])
	trimmed = append(trimmed, entries[len(entries)-(max-1):]...)
	return trimmed
}
