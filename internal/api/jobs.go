package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"

	"clipspace/internal/catalog"
	"clipspace/internal/classify"
	"clipspace/internal/extern"
)

// jobArgs mirrors the payload shape the enrichment workers decode.
type jobArgs struct {
	Language    string `json:"language,omitempty"`
	ContextHint string `json:"contextHint,omitempty"`
	Voice       string `json:"voice,omitempty"`
}

func encodeJobArgs(args jobArgs) string {
	if args == (jobArgs{}) {
		return ""
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return ""
	}
	return string(raw)
}

func (s *Service) enqueue(ctx context.Context, itemID string, kind catalog.JobKind, args jobArgs) error {
	if s.scheduler == nil {
		return fmt.Errorf("%w: enrichment scheduler not running", extern.ErrConfiguration)
	}
	if _, err := s.store.GetItem(ctx, itemID); err != nil {
		return err
	}
	return s.scheduler.Enqueue(ctx, itemID, kind, encodeJobArgs(args))
}

// GenerateMetadataAI queues an AI metadata pass over the item. The context
// hint, when present, is folded into the generation prompt.
func (s *Service) GenerateMetadataAI(ctx context.Context, itemID, contextHint string) error {
	return s.enqueue(ctx, itemID, catalog.JobAIMetadata, jobArgs{ContextHint: contextHint})
}

// TranscribeAudio queues transcription of the item's audio track.
func (s *Service) TranscribeAudio(ctx context.Context, itemID, language string) error {
	return s.enqueue(ctx, itemID, catalog.JobTranscribe, jobArgs{Language: language})
}

// IdentifySpeakers queues speaker identification over the item's transcript.
func (s *Service) IdentifySpeakers(ctx context.Context, itemID, contextHint string) error {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item.Metadata.String("transcript") == "" && item.Body.Transcript == "" {
		return fmt.Errorf("%w: item %s has no transcript to label", extern.ErrValidation, itemID)
	}
	return s.enqueue(ctx, itemID, catalog.JobSpeakers, jobArgs{ContextHint: contextHint})
}

// GenerateSummary queues summarization of the item's textual content.
func (s *Service) GenerateSummary(ctx context.Context, itemID string) error {
	return s.enqueue(ctx, itemID, catalog.JobSummarize, jobArgs{})
}

// GenerateSpeechForItem queues text-to-speech synthesis of the item's text.
func (s *Service) GenerateSpeechForItem(ctx context.Context, itemID, voice string) error {
	return s.enqueue(ctx, itemID, catalog.JobTTS, jobArgs{Voice: voice})
}

// GenerateSpeech synthesizes free text immediately and returns the audio.
func (s *Service) GenerateSpeech(ctx context.Context, text, voice string) (AudioPayload, error) {
	if s.speech == nil {
		return AudioPayload{}, fmt.Errorf("%w: speech provider not configured", extern.ErrConfiguration)
	}
	if strings.TrimSpace(text) == "" {
		return AudioPayload{}, fmt.Errorf("%w: empty text", extern.ErrValidation)
	}
	data, err := s.speech.Synthesize(ctx, text, voice)
	if err != nil {
		return AudioPayload{}, err
	}
	return AudioPayload{Data: data, MimeType: "audio/mpeg", Voice: voice}, nil
}

// SaveTTSAudio persists synthesized audio: attached to its source item, or as
// a new audio item when attachToSource is false or no source exists.
func (s *Service) SaveTTSAudio(ctx context.Context, audio []byte, voice, sourceItemID string, attachToSource bool) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("%w: empty audio payload", extern.ErrValidation)
	}
	if attachToSource && sourceItemID != "" {
		ref, err := s.blobs.WriteBytes(ctx, sourceItemID, "tts.mp3", audio)
		if err != nil {
			return "", err
		}
		_, err = s.store.Patch(ctx, sourceItemID, func(it *catalog.Item) error {
			it.Body.TTS = ref
			it.Metadata.Set("ttsVoice", voice)
			return nil
		})
		if err != nil {
			return "", err
		}
		return sourceItemID, nil
	}

	id := ulid.Make().String()
	ref, err := s.blobs.WriteBytes(ctx, id, "audio.mp3", audio)
	if err != nil {
		return "", err
	}
	item := &catalog.Item{
		ID:          id,
		Kind:        catalog.KindFile,
		Subkind:     catalog.SubkindAudio,
		Preview:     "Synthesized speech",
		Fingerprint: classify.TextFingerprint("tts:" + id),
		Body:        catalog.BodyRefs{Primary: ref},
		Metadata:    catalog.Metadata{"ttsVoice": voice},
	}
	if sourceItemID != "" {
		item.Metadata.Set("sourceItemId", sourceItemID)
	}
	if err := s.store.CreateItem(ctx, item); err != nil {
		_ = s.blobs.RemoveItem(id)
		return "", err
	}
	return id, nil
}

// SaveTranscription persists a transcript: onto its source item, or as a new
// text item when attachToSource is false or no source exists.
func (s *Service) SaveTranscription(ctx context.Context, transcription, sourceItemID string, attachToSource bool) (string, error) {
	if strings.TrimSpace(transcription) == "" {
		return "", fmt.Errorf("%w: empty transcription", extern.ErrValidation)
	}
	if attachToSource && sourceItemID != "" {
		ref, err := s.blobs.WriteBytes(ctx, sourceItemID, "transcript.json", mustTranscriptJSON(transcription))
		if err != nil {
			return "", err
		}
		_, err = s.store.Patch(ctx, sourceItemID, func(it *catalog.Item) error {
			it.Body.Transcript = ref
			it.Metadata.Set("transcript", transcription)
			it.Metadata.MarkEdited("transcript")
			return nil
		})
		if err != nil {
			return "", err
		}
		return sourceItemID, nil
	}

	receipt := s.AddText(ctx, transcription, AddOptions{})
	if !receipt.Success {
		return "", fmt.Errorf("%w: %s", extern.ErrStorage, receipt.Error)
	}
	if sourceItemID != "" {
		_, _ = s.store.Patch(ctx, receipt.ID, func(it *catalog.Item) error {
			it.Metadata.Set("sourceItemId", sourceItemID)
			return nil
		})
	}
	return receipt.ID, nil
}

func mustTranscriptJSON(text string) []byte {
	raw, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return []byte(`{}`)
	}
	return raw
}

// SaveImageAsNew stores edited image pixels as a fresh item linked back to
// its source.
func (s *Service) SaveImageAsNew(ctx context.Context, dataURL, sourceItemID, description string) (IngestReceipt, error) {
	receipt := s.AddImage(ctx, dataURL, AddOptions{})
	if !receipt.Success || receipt.ID == "" {
		return receipt, nil
	}
	_, err := s.store.Patch(ctx, receipt.ID, func(it *catalog.Item) error {
		if sourceItemID != "" {
			it.Metadata.Set("sourceItemId", sourceItemID)
		}
		if description != "" {
			it.Metadata.Set("description", description)
			it.Metadata.MarkEdited("description")
		}
		return nil
	})
	return receipt, err
}

// EditImageWithAI is intentionally unimplemented. The supported LLM endpoints
// describe images but do not emit pixels, so there is no provider this could
// call; the error tells clients the operation is unavailable, not
// misconfigured.
func (s *Service) EditImageWithAI(ctx context.Context, itemID, prompt string) error {
	return fmt.Errorf("%w: image editing is not supported by any configured provider", extern.ErrUnsupported)
}
