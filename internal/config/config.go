package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir        string `toml:"data_dir"`
	BlobDir        string `toml:"blob_dir"`
	ScreenshotsDir string `toml:"screenshots_dir"`
	LogDir         string `toml:"log_dir"`
	APIBind        string `toml:"api_bind"`
	APIToken       string `toml:"api_token"`
}

// Ingest contains configuration for the ingest coordinator.
type Ingest struct {
	// DedupWindowSeconds controls how long two identical fingerprints are
	// treated as the same paste event.
	DedupWindowSeconds int `toml:"dedup_window_seconds"`
	// ActiveSpaceDefault seeds the active space on first boot (empty = all items).
	ActiveSpaceDefault string `toml:"active_space_default"`
}

// Enrichment contains worker pool sizing, retry, and timeout settings.
type Enrichment struct {
	MediaWorkers   int `toml:"media_workers"`
	NetworkWorkers int `toml:"network_workers"`
	MaxRetries     int `toml:"max_retries"`
	// RetryBackoffSeconds is the base of the exponential retry backoff.
	RetryBackoffSeconds int `toml:"retry_backoff_seconds"`
	RetryBackoffCap     int `toml:"retry_backoff_cap_seconds"`

	ThumbnailTimeoutSeconds    int `toml:"thumbnail_timeout_seconds"`
	ExtractAudioTimeoutSeconds int `toml:"extract_audio_timeout_seconds"`
	TranscribeTimeoutSeconds   int `toml:"transcribe_timeout_seconds"`
	SpeakersTimeoutSeconds     int `toml:"speakers_timeout_seconds"`
	SummarizeTimeoutSeconds    int `toml:"summarize_timeout_seconds"`
	AIMetadataTimeoutSeconds   int `toml:"ai_metadata_timeout_seconds"`
	MonitorTimeoutSeconds      int `toml:"monitor_timeout_seconds"`
	TTSTimeoutSeconds          int `toml:"tts_timeout_seconds"`
	VideoFetchTimeoutSeconds   int `toml:"video_fetch_timeout_seconds"`

	// SpeakerChunkChars bounds how much transcript each speaker-labeling
	// request carries before the job switches to chunked mode.
	SpeakerChunkChars int `toml:"speaker_chunk_chars"`
	// ShutdownGraceSeconds is how long workers get to finish on shutdown
	// before external processes are force-terminated.
	ShutdownGraceSeconds int `toml:"shutdown_grace_seconds"`
}

// LLM contains shared LLM connection settings used by multiple workers.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	VisionModel    string `toml:"vision_model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// ASR contains configuration for the transcription provider.
type ASR struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Language       string `toml:"language"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// TTS contains configuration for the speech synthesis provider.
type TTS struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	DefaultVoice   string `toml:"default_voice"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Tools contains the external binaries used for media derivations.
type Tools struct {
	MediaBinary      string `toml:"media_binary"`
	ScreenshotBinary string `toml:"screenshot_binary"`
	DownloadBinary   string `toml:"download_binary"`
}

// Monitor contains defaults for web-page monitors.
type Monitor struct {
	DefaultIntervalMinutes int `toml:"default_interval_minutes"`
	FetchTimeoutSeconds    int `toml:"fetch_timeout_seconds"`
	// MaxTimelineEntries caps stored change entries per monitor (0 = unbounded).
	MaxTimelineEntries int `toml:"max_timeline_entries"`
}

// Retention controls optional eviction of old items.
type Retention struct {
	// MaxItems evicts the oldest unpinned items beyond this count (0 = unbounded).
	MaxItems int `toml:"max_items"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Clipspace.
//
// Configuration sections by subsystem:
//   - Paths: data directories and API bind address
//   - Ingest: duplicate suppression window
//   - Enrichment: worker pools, retries, per-kind timeouts
//   - LLM / ASR / TTS: provider connection settings
//   - Tools: external binary names
//   - Monitor: web-monitor polling defaults
//   - Retention: optional item eviction
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Ingest     Ingest     `toml:"ingest"`
	Enrichment Enrichment `toml:"enrichment"`
	LLM        LLM        `toml:"llm"`
	ASR        ASR        `toml:"asr"`
	TTS        TTS        `toml:"tts"`
	Tools      Tools      `toml:"tools"`
	Monitor    Monitor    `toml:"monitor"`
	Retention  Retention  `toml:"retention"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/clipspace/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("clipspace.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.BlobDir, c.Paths.ScreenshotsDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// WriteSample writes the embedded sample configuration to path.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
