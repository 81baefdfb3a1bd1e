package enrich

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"clipspace/internal/blob"
	"clipspace/internal/catalog"
	"clipspace/internal/classify"
	"clipspace/internal/extern"
	"clipspace/internal/extern/asr"
	"clipspace/internal/extern/llm"
	"clipspace/internal/extern/mediatool"
	"clipspace/internal/extern/tts"
)

// jobPayload carries the optional kind-specific arguments jobs are enqueued
// with.
type jobPayload struct {
	Language    string `json:"language,omitempty"`
	ContextHint string `json:"contextHint,omitempty"`
	Voice       string `json:"voice,omitempty"`
}

func decodePayload(raw string) jobPayload {
	var p jobPayload
	if raw != "" {
		_ = json.Unmarshal([]byte(raw), &p)
	}
	return p
}

// TranscribeWorker sends the item's audio track to the ASR provider. Video
// items without an extracted track get one extracted inline first.
type TranscribeWorker struct {
	asr   *asr.Client
	tools *mediatool.Toolset
}

func NewTranscribeWorker(client *asr.Client, tools *mediatool.Toolset) *TranscribeWorker {
	return &TranscribeWorker{asr: client, tools: tools}
}

func (w *TranscribeWorker) Kind() catalog.JobKind { return catalog.JobTranscribe }

func (w *TranscribeWorker) Run(ctx context.Context, task *Task) ([]Followup, error) {
	item := task.Item
	payload := decodePayload(task.Job.Payload)

	audioRef, err := w.resolveAudio(ctx, task)
	if err != nil {
		return nil, err
	}
	audioPath, err := task.Blobs().Path(audioRef)
	if err != nil {
		return nil, err
	}

	transcript, err := w.asr.Transcribe(ctx, audioPath, payload.Language)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(transcript)
	if err != nil {
		return nil, err
	}
	ref, err := task.Blobs().WriteBytes(ctx, item.ID, "transcript.json", raw)
	if err != nil {
		return nil, err
	}

	_, err = task.Store().Patch(ctx, item.ID, func(it *catalog.Item) error {
		it.Body.Transcript = ref
		it.Metadata.Set("transcript", transcript.Text)
		it.Metadata.Set("transcriptSegments", transcript.Segments)
		if transcript.Language != "" {
			it.Metadata.Set("language", transcript.Language)
		}
		return nil
	})
	return nil, err
}

// resolveAudio returns the blob ref holding the item's audio, extracting one
// from a video primary when necessary.
func (w *TranscribeWorker) resolveAudio(ctx context.Context, task *Task) (string, error) {
	item := task.Item
	if item.Body.Audio != "" {
		return item.Body.Audio, nil
	}
	if item.Subkind == catalog.SubkindAudio {
		return item.Body.Primary, nil
	}
	if item.Subkind != catalog.SubkindVideo {
		return "", extern.Wrap(extern.ErrValidation, "enrich", "transcribe", "item has no audio to transcribe", nil)
	}

	src, err := task.Blobs().Path(item.Body.Primary)
	if err != nil {
		return "", err
	}
	ref := blob.Ref(item.ID, "audio.mp3")
	if _, err := task.Blobs().ItemDir(item.ID); err != nil {
		return "", err
	}
	out, err := task.Blobs().Path(ref)
	if err != nil {
		return "", err
	}
	// Extraction owns the first quarter of the progress bar; the provider
	// round trip has no usable progress signal.
	err = w.tools.ExtractAudio(ctx, src, out, func(fraction float64) {
		task.Progress(ctx, fraction*0.25)
	})
	if err != nil {
		_ = task.Blobs().Remove(ref)
		return "", err
	}
	_, err = task.Store().Patch(ctx, item.ID, func(it *catalog.Item) error {
		it.Body.Audio = ref
		it.Metadata.Set("audioPath", ref)
		return nil
	})
	if err != nil {
		return "", err
	}
	return ref, nil
}

// SpeakersWorker labels speakers in a transcript, chunking long transcripts
// and keeping labels consistent across chunks.
type SpeakersWorker struct {
	llm        *llm.Client
	model      string
	chunkChars int
}

func NewSpeakersWorker(client *llm.Client, model string, chunkChars int) *SpeakersWorker {
	return &SpeakersWorker{llm: client, model: model, chunkChars: chunkChars}
}

func (w *SpeakersWorker) Kind() catalog.JobKind { return catalog.JobSpeakers }

type speakerChunkResult struct {
	LabeledTranscript string   `json:"labeled_transcript"`
	Speakers          []string `json:"speakers"`
}

const speakersSystemPrompt = `You label speakers in transcripts. Rewrite the transcript with each utterance prefixed by a speaker label ("Speaker 1:", or a real name when the text reveals one). Keep the wording unchanged. Respond with JSON: {"labeled_transcript": "...", "speakers": ["label: short description", ...]}.`

func (w *SpeakersWorker) Run(ctx context.Context, task *Task) ([]Followup, error) {
	item := task.Item
	transcript := item.Metadata.String("transcript")
	if strings.TrimSpace(transcript) == "" {
		return nil, extern.Wrap(extern.ErrValidation, "enrich", "identify_speakers", "item has no transcript", nil)
	}
	hint := decodePayload(task.Job.Payload).ContextHint

	chunks := chunkByLines(transcript, w.chunkChars)
	var labeled strings.Builder
	var speakers []string
	seen := make(map[string]bool)

	for i, chunk := range chunks {
		user := buildSpeakerPrompt(chunk, hint, speakers, i, len(chunks))
		content, err := w.llm.CompleteJSON(ctx, speakersSystemPrompt, user)
		if err != nil {
			return nil, err
		}
		var result speakerChunkResult
		if err := llm.DecodeLLMJSON(content, &result); err != nil {
			return nil, err
		}
		if labeled.Len() > 0 {
			labeled.WriteString("\n")
		}
		labeled.WriteString(strings.TrimSpace(result.LabeledTranscript))
		for _, s := range result.Speakers {
			if s = strings.TrimSpace(s); s != "" && !seen[s] {
				seen[s] = true
				speakers = append(speakers, s)
			}
		}
		task.Partial(ctx, i+1, len(chunks), labeled.String())
	}

	_, err := task.Store().Patch(ctx, item.ID, func(it *catalog.Item) error {
		it.Metadata.Set("transcript", labeled.String())
		it.Metadata.Set("speakers", speakers)
		it.Metadata.Set("speakersIdentified", true)
		it.Metadata.Set("speakersModel", w.model)
		it.Metadata.Set("speakersIdentifiedAt", time.Now().UTC().Format(time.RFC3339))
		return nil
	})
	return nil, err
}

func buildSpeakerPrompt(chunk, hint string, known []string, index, total int) string {
	var b strings.Builder
	if hint != "" {
		b.WriteString("Context: ")
		b.WriteString(hint)
		b.WriteString("\n\n")
	}
	if total > 1 {
		fmt.Fprintf(&b, "This is chunk %d of %d.\n", index+1, total)
	}
	if len(known) > 0 {
		b.WriteString("Speakers already identified in earlier chunks (reuse these labels):\n")
		for _, s := range known {
			b.WriteString("- ")
			b.WriteString(s)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	b.WriteString("Transcript:\n")
	b.WriteString(chunk)
	return b.String()
}

// chunkByLines splits text into pieces of at most limit characters, breaking
// at line boundaries where possible.
func chunkByLines(text string, limit int) []string {
	if limit <= 0 || len(text) <= limit {
		return []string{text}
	}
	var chunks []string
	var current strings.Builder
	for _, line := range strings.Split(text, "\n") {
		// Oversized single lines get hard-split.
		for len(line) > limit {
			if current.Len() > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
			}
			chunks = append(chunks, line[:limit])
			line = line[limit:]
		}
		if current.Len() > 0 && current.Len()+len(line)+1 > limit {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// SummarizeWorker produces a structured prose summary of the item's text.
type SummarizeWorker struct {
	llm *llm.Client
}

func NewSummarizeWorker(client *llm.Client) *SummarizeWorker {
	return &SummarizeWorker{llm: client}
}

func (w *SummarizeWorker) Kind() catalog.JobKind { return catalog.JobSummarize }

const summarizeSystemPrompt = `You summarize content for a personal knowledge base. Respond in plain text with exactly three sections headed OVERVIEW, KEY POINTS, and MAIN TAKEAWAYS. KEY POINTS and MAIN TAKEAWAYS are bulleted lists.`

const maxSummaryInput = 24000

func (w *SummarizeWorker) Run(ctx context.Context, task *Task) ([]Followup, error) {
	item := task.Item
	text, err := textualContent(task)
	if err != nil {
		return nil, err
	}
	if len(text) > maxSummaryInput {
		text = text[:maxSummaryInput]
	}

	summary, err := w.llm.Complete(ctx, summarizeSystemPrompt, text)
	if err != nil {
		return nil, err
	}

	_, err = task.Store().Patch(ctx, item.ID, func(it *catalog.Item) error {
		it.Metadata.Set("aiSummary", strings.TrimSpace(summary))
		return nil
	})
	return nil, err
}

// textualContent picks the best text projection of an item: transcript when
// present, otherwise the primary blob rendered as plain text.
func textualContent(task *Task) (string, error) {
	item := task.Item
	if t := item.Metadata.String("transcript"); strings.TrimSpace(t) != "" {
		return t, nil
	}
	switch item.Kind {
	case catalog.KindText, catalog.KindHTML, catalog.KindURL, catalog.KindAIChat, catalog.KindGeneratedDoc, catalog.KindWebMonitor:
	case catalog.KindFile:
		switch item.Subkind {
		case catalog.SubkindCode, catalog.SubkindData, catalog.SubkindDocument, catalog.SubkindNotebook, catalog.SubkindFlow:
		default:
			return "", extern.Wrap(extern.ErrValidation, "enrich", "content", "item has no textual content", nil)
		}
	default:
		return "", extern.Wrap(extern.ErrValidation, "enrich", "content", "item has no textual content", nil)
	}

	raw, err := task.Blobs().ReadAll(item.Body.Primary)
	if err != nil {
		return "", err
	}
	text := string(raw)
	switch {
	case item.Kind == catalog.KindHTML:
		text = classify.HTMLToText(text)
	case item.Kind == catalog.KindGeneratedDoc, strings.HasSuffix(item.Body.Primary, ".md"):
		text = classify.MarkdownToText(text)
	}
	return text, nil
}

// AIMetadataWorker asks the LLM for kind-specific metadata fields and merges
// them into the item without clobbering user edits.
type AIMetadataWorker struct {
	llm *llm.Client
}

func NewAIMetadataWorker(client *llm.Client) *AIMetadataWorker {
	return &AIMetadataWorker{llm: client}
}

func (w *AIMetadataWorker) Kind() catalog.JobKind { return catalog.JobAIMetadata }

const maxMetadataInput = 12000

func (w *AIMetadataWorker) Run(ctx context.Context, task *Task) ([]Followup, error) {
	item := task.Item
	fields := schemaFor(item)

	system := "You extract structured metadata from content. Respond with a single JSON object containing exactly these fields (use empty values when unknown):\n" + schemaPrompt(fields)
	if hint := decodePayload(task.Job.Payload).ContextHint; hint != "" {
		system += "\nContext from the user: " + hint
	}

	var content string
	var err error
	if effectiveKind(item) == "image" {
		content, err = w.describeImage(ctx, task, system)
	} else {
		var text string
		text, err = metadataInput(task)
		if err == nil {
			content, err = w.llm.CompleteJSON(ctx, system, text)
		}
	}
	if err != nil {
		return nil, err
	}

	var parsed map[string]any
	if err := llm.DecodeLLMJSON(content, &parsed); err != nil {
		return nil, err
	}
	generated := normalizeFields(fields, parsed)
	if len(generated) == 0 {
		return nil, extern.Wrap(extern.ErrProvider, "enrich", "ai_metadata", "response contained no usable fields", nil)
	}

	_, err = task.Store().Patch(ctx, item.ID, func(it *catalog.Item) error {
		it.Metadata.MergeGenerated(generated)
		it.Metadata.Set("aiMetadataGeneratedAt", time.Now().UTC().Format(time.RFC3339))
		return nil
	})
	return nil, err
}

func (w *AIMetadataWorker) describeImage(ctx context.Context, task *Task, system string) (string, error) {
	item := task.Item
	ref := item.Body.Thumbnail
	if ref == "" {
		ref = item.Body.Primary
	}
	raw, err := task.Blobs().ReadAll(ref)
	if err != nil {
		return "", err
	}
	mime := "image/png"
	if strings.HasSuffix(ref, ".jpg") || strings.HasSuffix(ref, ".jpeg") {
		mime = "image/jpeg"
	}
	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(raw)
	return w.llm.CompleteVisionJSON(ctx, system, "Describe this image.", dataURL)
}

func metadataInput(task *Task) (string, error) {
	item := task.Item
	var b strings.Builder
	if item.Preview != "" {
		b.WriteString(item.Preview)
		b.WriteString("\n\n")
	}
	if url := item.Metadata.String("url"); url != "" {
		b.WriteString("URL: ")
		b.WriteString(url)
		b.WriteString("\n")
	}
	if name := item.Metadata.String("filename"); name != "" {
		b.WriteString("Filename: ")
		b.WriteString(name)
		b.WriteString("\n")
	}
	if text, err := textualContent(task); err == nil {
		b.WriteString("\n")
		b.WriteString(text)
	}
	input := b.String()
	if strings.TrimSpace(input) == "" {
		return "", extern.Wrap(extern.ErrValidation, "enrich", "ai_metadata", "item has no describable content", nil)
	}
	if len(input) > maxMetadataInput {
		input = input[:maxMetadataInput]
	}
	return input, nil
}

// normalizeFields keeps only schema fields and coerces array values into
// string slices.
func normalizeFields(fields []schemaField, parsed map[string]any) map[string]any {
	out := make(map[string]any)
	for _, f := range fields {
		value, ok := parsed[f.Name]
		if !ok {
			continue
		}
		switch f.Type {
		case fieldArray, fieldList:
			items := toStringSlice(value)
			if len(items) > 0 {
				out[f.Name] = items
			}
		default:
			if s, ok := value.(string); ok && strings.TrimSpace(s) != "" {
				out[f.Name] = strings.TrimSpace(s)
			}
		}
	}
	return out
}

func toStringSlice(value any) []string {
	var out []string
	switch v := value.(type) {
	case []any:
		for _, entry := range v {
			if s, ok := entry.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case []string:
		for _, s := range v {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		for _, part := range strings.Split(v, "\n") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// TTSWorker synthesizes speech for a text item and attaches the audio to it.
type TTSWorker struct {
	tts *tts.Client
}

func NewTTSWorker(client *tts.Client) *TTSWorker {
	return &TTSWorker{tts: client}
}

func (w *TTSWorker) Kind() catalog.JobKind { return catalog.JobTTS }

func (w *TTSWorker) Run(ctx context.Context, task *Task) ([]Followup, error) {
	item := task.Item
	text, err := textualContent(task)
	if err != nil {
		return nil, err
	}
	voice := decodePayload(task.Job.Payload).Voice

	audio, err := w.tts.Synthesize(ctx, text, voice)
	if err != nil {
		return nil, err
	}

	ref, err := task.Blobs().WriteBytes(ctx, item.ID, "tts.mp3", audio)
	if err != nil {
		return nil, err
	}
	_, err = task.Store().Patch(ctx, item.ID, func(it *catalog.Item) error {
		it.Body.TTS = ref
		if voice != "" {
			it.Metadata.Set("ttsVoice", voice)
		}
		return nil
	})
	return nil, err
}
