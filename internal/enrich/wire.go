package enrich

import (
	"clipspace/internal/extern/asr"
	"clipspace/internal/extern/llm"
	"clipspace/internal/extern/mediatool"
	"clipspace/internal/extern/tts"
)

// RegisterDefaultWorkers installs the built-in derivation workers. The
// monitor-check worker lives in its own package and registers separately.
func (s *Scheduler) RegisterDefaultWorkers(tools *mediatool.Toolset, llmClient *llm.Client, asrClient *asr.Client, ttsClient *tts.Client) {
	s.Register(NewThumbnailWorker(tools))
	s.Register(NewExtractAudioWorker(tools))
	s.Register(NewVideoFetchWorker(tools))
	s.Register(NewTranscribeWorker(asrClient, tools))
	s.Register(NewSpeakersWorker(llmClient, s.cfg.LLM.Model, s.cfg.Enrichment.SpeakerChunkChars))
	s.Register(NewSummarizeWorker(llmClient))
	s.Register(NewAIMetadataWorker(llmClient))
	s.Register(NewTTSWorker(ttsClient))
}
