package config

const (
	defaultDataDir        = "~/.local/share/clipspace/data"
	defaultBlobDir        = "~/.local/share/clipspace/blobs"
	defaultScreenshotsDir = "~/.local/share/clipspace/screenshots"
	defaultLogDir         = "~/.local/share/clipspace/logs"
	defaultAPIBind        = "127.0.0.1:7519"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"

	defaultDedupWindowSeconds = 2

	defaultMediaWorkers        = 2
	defaultNetworkWorkers      = 4
	defaultMaxRetries          = 2
	defaultRetryBackoffSeconds = 2
	defaultRetryBackoffCap     = 60
	defaultSpeakerChunkChars   = 8000
	defaultShutdownGrace       = 10

	defaultThumbnailTimeout    = 120
	defaultExtractAudioTimeout = 600
	defaultTranscribeTimeout   = 600
	defaultSpeakersTimeout     = 300
	defaultSummarizeTimeout    = 120
	defaultAIMetadataTimeout   = 60
	defaultMonitorTimeout      = 60
	defaultTTSTimeout          = 120
	defaultVideoFetchTimeout   = 1800

	defaultLLMBaseURL    = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel      = "google/gemini-3-flash-preview"
	defaultLLMTimeout    = 60
	defaultASRBaseURL    = "https://api.openai.com/v1/audio/transcriptions"
	defaultASRModel      = "whisper-1"
	defaultASRTimeout    = 600
	defaultTTSBaseURL    = "https://api.openai.com/v1/audio/speech"
	defaultTTSModel      = "tts-1"
	defaultTTSVoice      = "alloy"
	defaultTTSTimeoutSec = 120

	defaultMediaBinary      = "ffmpeg"
	defaultScreenshotBinary = "pagesnap"
	defaultDownloadBinary   = "yt-dlp"

	defaultMonitorIntervalMinutes = 30
	defaultMonitorFetchTimeout    = 60
	defaultMonitorMaxTimeline     = 200
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:        defaultDataDir,
			BlobDir:        defaultBlobDir,
			ScreenshotsDir: defaultScreenshotsDir,
			LogDir:         defaultLogDir,
			APIBind:        defaultAPIBind,
		},
		Ingest: Ingest{
			DedupWindowSeconds: defaultDedupWindowSeconds,
		},
		Enrichment: Enrichment{
			MediaWorkers:               defaultMediaWorkers,
			NetworkWorkers:             defaultNetworkWorkers,
			MaxRetries:                 defaultMaxRetries,
			RetryBackoffSeconds:        defaultRetryBackoffSeconds,
			RetryBackoffCap:            defaultRetryBackoffCap,
			ThumbnailTimeoutSeconds:    defaultThumbnailTimeout,
			ExtractAudioTimeoutSeconds: defaultExtractAudioTimeout,
			TranscribeTimeoutSeconds:   defaultTranscribeTimeout,
			SpeakersTimeoutSeconds:     defaultSpeakersTimeout,
			SummarizeTimeoutSeconds:    defaultSummarizeTimeout,
			AIMetadataTimeoutSeconds:   defaultAIMetadataTimeout,
			MonitorTimeoutSeconds:      defaultMonitorTimeout,
			TTSTimeoutSeconds:          defaultTTSTimeout,
			VideoFetchTimeoutSeconds:   defaultVideoFetchTimeout,
			SpeakerChunkChars:          defaultSpeakerChunkChars,
			ShutdownGraceSeconds:       defaultShutdownGrace,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeout,
		},
		ASR: ASR{
			BaseURL:        defaultASRBaseURL,
			Model:          defaultASRModel,
			TimeoutSeconds: defaultASRTimeout,
		},
		TTS: TTS{
			BaseURL:        defaultTTSBaseURL,
			Model:          defaultTTSModel,
			DefaultVoice:   defaultTTSVoice,
			TimeoutSeconds: defaultTTSTimeoutSec,
		},
		Tools: Tools{
			MediaBinary:      defaultMediaBinary,
			ScreenshotBinary: defaultScreenshotBinary,
			DownloadBinary:   defaultDownloadBinary,
		},
		Monitor: Monitor{
			DefaultIntervalMinutes: defaultMonitorIntervalMinutes,
			FetchTimeoutSeconds:    defaultMonitorFetchTimeout,
			MaxTimelineEntries:     defaultMonitorMaxTimeline,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
