package daemon

import (
	"context"
	"time"

	"clipspace/internal/catalog"
	"clipspace/internal/logging"
)

const retentionInterval = time.Hour

// retentionLoop periodically evicts the oldest unpinned items beyond the
// configured cap and sweeps blob directories that no longer have a record.
func (d *Daemon) retentionLoop(ctx context.Context) {
	ticker := time.NewTicker(retentionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.runRetention(ctx)
		}
	}
}

func (d *Daemon) runRetention(ctx context.Context) {
	if d.cfg.Retention.MaxItems > 0 {
		evicted, err := d.store.EvictOldest(ctx, d.cfg.Retention.MaxItems)
		if err != nil {
			d.logger.Warn("retention eviction failed", logging.Error(err))
		} else {
			for _, id := range evicted {
				if err := d.blobs.RemoveItem(id); err != nil {
					d.logger.Warn("failed to remove evicted blobs",
						logging.String(logging.FieldItemID, id), logging.Error(err))
				}
			}
			if len(evicted) > 0 {
				d.logger.Info("retention evicted items", logging.Int("count", len(evicted)))
			}
		}
	}

	result := d.blobs.SweepOrphans(ctx, func(itemID string) bool {
		_, err := d.store.GetItem(ctx, itemID)
		if err == nil {
			return true
		}
		// Keep blobs of rows that still exist but fail to decode; only
		// confirmed-missing items lose their directory.
		return !catalog.IsNotFound(err)
	})
	if len(result.Removed) > 0 {
		d.logger.Info("swept orphaned blob directories", logging.Int("count", len(result.Removed)))
	}
}
