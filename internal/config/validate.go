package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	if err := c.validateEnrichment(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateMonitor(); err != nil {
		return err
	}
	if c.Retention.MaxItems < 0 {
		return errors.New("retention.max_items must not be negative")
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.BlobDir) == "" {
		return errors.New("paths.blob_dir must be set")
	}
	if c.Paths.BlobDir == c.Paths.DataDir {
		return errors.New("paths.blob_dir must differ from paths.data_dir")
	}
	return nil
}

func (c *Config) validateIngest() error {
	if c.Ingest.DedupWindowSeconds > 60 {
		return fmt.Errorf("ingest.dedup_window_seconds too large: %d (max 60)", c.Ingest.DedupWindowSeconds)
	}
	return nil
}

func (c *Config) validateEnrichment() error {
	if c.Enrichment.MediaWorkers > 16 {
		return errors.New("enrichment.media_workers must be 16 or fewer")
	}
	if c.Enrichment.NetworkWorkers > 32 {
		return errors.New("enrichment.network_workers must be 32 or fewer")
	}
	if c.Enrichment.MaxRetries > 10 {
		return errors.New("enrichment.max_retries must be 10 or fewer")
	}
	if c.Enrichment.RetryBackoffSeconds > c.Enrichment.RetryBackoffCap {
		return errors.New("enrichment.retry_backoff_seconds must not exceed the backoff cap")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateMonitor() error {
	if c.Monitor.DefaultIntervalMinutes > 24*60 {
		return errors.New("monitor.default_interval_minutes must be one day or less")
	}
	if c.Monitor.MaxTimelineEntries < 0 {
		return errors.New("monitor.max_timeline_entries must not be negative")
	}
	return nil
}
