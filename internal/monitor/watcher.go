package monitor

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"clipspace/internal/bus"
	"clipspace/internal/logging"
)

// watchScreenshots publishes an item_updated event when a capture lands in
// the screenshots directory. Captures are written by an external process, so
// without the watcher the UI would only notice them on the next poll.
func (e *Engine) watchScreenshots(ctx context.Context) error {
	dir := e.cfg.Paths.ScreenshotsDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				if itemID := screenshotItemID(event.Name); itemID != "" {
					e.hub.Publish(bus.Event{
						Type:    bus.EventItemUpdated,
						ItemID:  itemID,
						Payload: map[string]string{"screenshot": event.Name},
					})
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				e.logger.Warn("screenshot watcher error", logging.Error(err))
			}
		}
	}()
	return nil
}

// screenshotItemID extracts the owning item id from a capture filename of
// the form <itemID>-<label>.png.
func screenshotItemID(path string) string {
	name := filepath.Base(path)
	if !strings.HasSuffix(name, ".png") {
		return ""
	}
	idx := strings.IndexByte(name, '-')
	if idx <= 0 {
		return ""
	}
	return name[:idx]
}
