package monitor

import (
	"context"

	"clipspace/internal/catalog"
	"clipspace/internal/extern"
)

// CheckNow schedules an immediate check for a monitor, bypassing its
// interval. Paused monitors are checked too; an explicit request wins.
func (e *Engine) CheckNow(ctx context.Context, itemID string) error {
	item, err := e.store.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item.Kind != catalog.KindWebMonitor {
		return extern.Wrap(extern.ErrValidation, "monitor", "check_now", "item is not a web monitor", nil)
	}
	return e.scheduler.Enqueue(ctx, itemID, catalog.JobMonitorCheck, "")
}

// SetStatus switches a monitor between active and paused.
func (e *Engine) SetStatus(ctx context.Context, itemID, status string) error {
	if status != StatusActive && status != StatusPaused {
		return extern.Wrap(extern.ErrValidation, "monitor", "set_status", "status must be active or paused", nil)
	}
	return e.patchMonitor(ctx, itemID, func(it *catalog.Item) {
		it.Metadata.Set(keyStatus, status)
	})
}

// SetAIEnabled toggles LLM change descriptions for a monitor.
func (e *Engine) SetAIEnabled(ctx context.Context, itemID string, enabled bool) error {
	return e.patchMonitor(ctx, itemID, func(it *catalog.Item) {
		it.Metadata.Set(keyAIEnabled, enabled)
	})
}

// SetInterval changes the minutes between checks.
func (e *Engine) SetInterval(ctx context.Context, itemID string, minutes int) error {
	if minutes <= 0 {
		return extern.Wrap(extern.ErrValidation, "monitor", "set_interval", "interval must be positive", nil)
	}
	return e.patchMonitor(ctx, itemID, func(it *catalog.Item) {
		it.Metadata.Set(keyInterval, minutes)
	})
}

// MarkViewed clears the monitor space's unviewed-change counter.
func (e *Engine) MarkViewed(ctx context.Context) error {
	space, err := e.store.MonitorSpace(ctx)
	if err != nil {
		return err
	}
	return e.store.AddUnviewedChanges(ctx, space.ID, 0)
}

func (e *Engine) patchMonitor(ctx context.Context, itemID string, fn func(*catalog.Item)) error {
	_, err := e.store.Patch(ctx, itemID, func(it *catalog.Item) error {
		if it.Kind != catalog.KindWebMonitor {
			return extern.Wrap(extern.ErrValidation, "monitor", "patch", "item is not a web monitor", nil)
		}
		fn(it)
		return nil
	})
	return err
}
