package config

import (
	"os"
	"strings"
)

// normalize expands paths, applies environment overrides, and backfills
// zero-valued settings with defaults.
func (c *Config) normalize() error {
	if key := strings.TrimSpace(os.Getenv("CLIPSPACE_LLM_API_KEY")); key != "" {
		c.LLM.APIKey = key
	}
	if key := strings.TrimSpace(os.Getenv("CLIPSPACE_ASR_API_KEY")); key != "" {
		c.ASR.APIKey = key
	}
	if key := strings.TrimSpace(os.Getenv("CLIPSPACE_TTS_API_KEY")); key != "" {
		c.TTS.APIKey = key
	}

	for _, field := range []*string{
		&c.Paths.DataDir,
		&c.Paths.BlobDir,
		&c.Paths.ScreenshotsDir,
		&c.Paths.LogDir,
	} {
		expanded, err := expandPath(strings.TrimSpace(*field))
		if err != nil {
			return err
		}
		*field = expanded
	}

	defaults := Default()
	if c.Ingest.DedupWindowSeconds <= 0 {
		c.Ingest.DedupWindowSeconds = defaults.Ingest.DedupWindowSeconds
	}
	if c.Enrichment.MediaWorkers <= 0 {
		c.Enrichment.MediaWorkers = defaults.Enrichment.MediaWorkers
	}
	if c.Enrichment.NetworkWorkers <= 0 {
		c.Enrichment.NetworkWorkers = defaults.Enrichment.NetworkWorkers
	}
	if c.Enrichment.MaxRetries < 0 {
		c.Enrichment.MaxRetries = defaults.Enrichment.MaxRetries
	}
	if c.Enrichment.RetryBackoffSeconds <= 0 {
		c.Enrichment.RetryBackoffSeconds = defaults.Enrichment.RetryBackoffSeconds
	}
	if c.Enrichment.RetryBackoffCap <= 0 {
		c.Enrichment.RetryBackoffCap = defaults.Enrichment.RetryBackoffCap
	}
	if c.Enrichment.SpeakerChunkChars <= 0 {
		c.Enrichment.SpeakerChunkChars = defaults.Enrichment.SpeakerChunkChars
	}
	if c.Enrichment.ShutdownGraceSeconds <= 0 {
		c.Enrichment.ShutdownGraceSeconds = defaults.Enrichment.ShutdownGraceSeconds
	}
	normalizeTimeout(&c.Enrichment.ThumbnailTimeoutSeconds, defaults.Enrichment.ThumbnailTimeoutSeconds)
	normalizeTimeout(&c.Enrichment.ExtractAudioTimeoutSeconds, defaults.Enrichment.ExtractAudioTimeoutSeconds)
	normalizeTimeout(&c.Enrichment.TranscribeTimeoutSeconds, defaults.Enrichment.TranscribeTimeoutSeconds)
	normalizeTimeout(&c.Enrichment.SpeakersTimeoutSeconds, defaults.Enrichment.SpeakersTimeoutSeconds)
	normalizeTimeout(&c.Enrichment.SummarizeTimeoutSeconds, defaults.Enrichment.SummarizeTimeoutSeconds)
	normalizeTimeout(&c.Enrichment.AIMetadataTimeoutSeconds, defaults.Enrichment.AIMetadataTimeoutSeconds)
	normalizeTimeout(&c.Enrichment.MonitorTimeoutSeconds, defaults.Enrichment.MonitorTimeoutSeconds)
	normalizeTimeout(&c.Enrichment.TTSTimeoutSeconds, defaults.Enrichment.TTSTimeoutSeconds)
	normalizeTimeout(&c.Enrichment.VideoFetchTimeoutSeconds, defaults.Enrichment.VideoFetchTimeoutSeconds)

	if strings.TrimSpace(c.LLM.BaseURL) == "" {
		c.LLM.BaseURL = defaults.LLM.BaseURL
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		c.LLM.Model = defaults.LLM.Model
	}
	if strings.TrimSpace(c.ASR.BaseURL) == "" {
		c.ASR.BaseURL = defaults.ASR.BaseURL
	}
	if strings.TrimSpace(c.ASR.Model) == "" {
		c.ASR.Model = defaults.ASR.Model
	}
	if strings.TrimSpace(c.TTS.BaseURL) == "" {
		c.TTS.BaseURL = defaults.TTS.BaseURL
	}
	if strings.TrimSpace(c.TTS.Model) == "" {
		c.TTS.Model = defaults.TTS.Model
	}
	if strings.TrimSpace(c.TTS.DefaultVoice) == "" {
		c.TTS.DefaultVoice = defaults.TTS.DefaultVoice
	}
	if strings.TrimSpace(c.Tools.MediaBinary) == "" {
		c.Tools.MediaBinary = defaults.Tools.MediaBinary
	}
	if strings.TrimSpace(c.Tools.ScreenshotBinary) == "" {
		c.Tools.ScreenshotBinary = defaults.Tools.ScreenshotBinary
	}
	if strings.TrimSpace(c.Tools.DownloadBinary) == "" {
		c.Tools.DownloadBinary = defaults.Tools.DownloadBinary
	}
	if c.Monitor.DefaultIntervalMinutes <= 0 {
		c.Monitor.DefaultIntervalMinutes = defaults.Monitor.DefaultIntervalMinutes
	}
	if c.Monitor.FetchTimeoutSeconds <= 0 {
		c.Monitor.FetchTimeoutSeconds = defaults.Monitor.FetchTimeoutSeconds
	}
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaults.Logging.Format
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if strings.TrimSpace(c.Paths.APIBind) == "" {
		c.Paths.APIBind = defaults.Paths.APIBind
	}
	return nil
}

func normalizeTimeout(field *int, fallback int) {
	if *field <= 0 {
		*field = fallback
	}
}
