package api

import (
	"context"
	"fmt"
	"path"
	"strings"

	"clipspace/internal/catalog"
	"clipspace/internal/classify"
	"clipspace/internal/extern"
	"clipspace/internal/logging"
)

// History returns all items, newest first.
func (s *Service) History(ctx context.Context) ([]ItemRecord, error) {
	items, err := s.queries.History(ctx)
	if err != nil {
		return nil, err
	}
	return ItemsToRecords(items), nil
}

// SpaceItems returns the items of one space, newest first. An empty space id
// selects unclassified items.
func (s *Service) SpaceItems(ctx context.Context, spaceID string) ([]ItemRecord, error) {
	items, err := s.queries.SpaceItems(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	return ItemsToRecords(items), nil
}

// Search returns items matching the query text, newest first.
func (s *Service) Search(ctx context.Context, queryText string) ([]ItemRecord, error) {
	items, err := s.queries.Search(ctx, queryText)
	if err != nil {
		return nil, err
	}
	return ItemsToRecords(items), nil
}

// Item returns a single item record.
func (s *Service) Item(ctx context.Context, id string) (ItemRecord, error) {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return ItemRecord{}, err
	}
	return ItemToRecord(item), nil
}

// MoveToSpace reassigns one item. An empty space id unclassifies it.
func (s *Service) MoveToSpace(ctx context.Context, itemID, spaceID string) error {
	_, err := s.store.MoveToSpace(ctx, itemID, spaceID)
	return err
}

// MoveItems reassigns a batch of items. Items that fail are reported
// individually; the rest still move.
func (s *Service) MoveItems(ctx context.Context, ids []string, spaceID string) BulkReceipt {
	return bulkReceipt(s.store.BulkMove(ctx, ids, spaceID))
}

// DeleteItem removes one item, its blobs, and any live jobs.
func (s *Service) DeleteItem(ctx context.Context, id string) error {
	if err := s.store.DeleteItem(ctx, id); err != nil {
		return err
	}
	if err := s.blobs.RemoveItem(id); err != nil {
		s.logger.Warn("failed to remove item blobs",
			logging.String(logging.FieldItemID, id), logging.Error(err))
	}
	return nil
}

// DeleteItems removes a batch of items.
func (s *Service) DeleteItems(ctx context.Context, ids []string) BulkReceipt {
	receipt := bulkReceipt(s.store.BulkDelete(ctx, ids))
	for _, id := range receipt.Succeeded {
		if err := s.blobs.RemoveItem(id); err != nil {
			s.logger.Warn("failed to remove item blobs",
				logging.String(logging.FieldItemID, id), logging.Error(err))
		}
	}
	return receipt
}

func bulkReceipt(result catalog.BulkResult) BulkReceipt {
	receipt := BulkReceipt{
		Envelope:  Envelope{Success: len(result.Failed) == 0},
		Succeeded: result.Succeeded,
	}
	for _, id := range result.Failed {
		receipt.Failed = append(receipt.Failed, BulkFailure{
			ID:    id,
			Error: result.Errors[id],
		})
	}
	if !receipt.Success && len(receipt.Failed) > 0 {
		receipt.Error = receipt.Failed[0].Error
	}
	return receipt
}

// TogglePin flips the pinned flag and returns the new state.
func (s *Service) TogglePin(ctx context.Context, id string) (bool, error) {
	item, err := s.store.Patch(ctx, id, func(it *catalog.Item) error {
		it.Pinned = !it.Pinned
		return nil
	})
	if err != nil {
		return false, err
	}
	return item.Pinned, nil
}

// UpdateMetadata applies a sparse patch to the item's metadata. Patched keys
// are marked user-edited so later AI passes leave them alone.
func (s *Service) UpdateMetadata(ctx context.Context, id string, patch map[string]any) (ItemRecord, error) {
	if len(patch) == 0 {
		return ItemRecord{}, fmt.Errorf("%w: empty metadata patch", extern.ErrValidation)
	}
	item, err := s.store.Patch(ctx, id, func(it *catalog.Item) error {
		it.Metadata.ApplyPatch(patch)
		return nil
	})
	if err != nil {
		return ItemRecord{}, err
	}
	return ItemToRecord(item), nil
}

func isTextual(kind catalog.Kind) bool {
	switch kind {
	case catalog.KindText, catalog.KindHTML, catalog.KindURL,
		catalog.KindAIChat, catalog.KindGeneratedDoc:
		return true
	}
	return false
}

// UpdateItemContent replaces the primary body of a textual item and
// recomputes its preview and fingerprint.
func (s *Service) UpdateItemContent(ctx context.Context, id, content string) (ItemRecord, error) {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return ItemRecord{}, err
	}
	if !isTextual(item.Kind) {
		return ItemRecord{}, fmt.Errorf("%w: item %s has binary content", extern.ErrValidation, id)
	}
	name := "primary.txt"
	if item.Body.Primary != "" {
		name = path.Base(item.Body.Primary)
	}
	ref, err := s.blobs.WriteBytes(ctx, id, name, []byte(content))
	if err != nil {
		return ItemRecord{}, err
	}
	updated, err := s.store.Patch(ctx, id, func(it *catalog.Item) error {
		it.Body.Primary = ref
		it.Preview = classify.Preview(content)
		it.Fingerprint = classify.TextFingerprint(content)
		return nil
	})
	if err != nil {
		return ItemRecord{}, err
	}
	return ItemToRecord(updated), nil
}

// UpdateItemImage replaces an image item's pixels and requeues its thumbnail.
func (s *Service) UpdateItemImage(ctx context.Context, id, dataURL string) (ItemRecord, error) {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return ItemRecord{}, err
	}
	if item.Kind != catalog.KindImage && item.Subkind != catalog.SubkindImage {
		return ItemRecord{}, fmt.Errorf("%w: item %s is not an image", extern.ErrValidation, id)
	}
	_, data, err := decodeDataURL(dataURL)
	if err != nil {
		return ItemRecord{}, err
	}
	name := "image.png"
	if item.Body.Primary != "" {
		name = path.Base(item.Body.Primary)
	}
	ref, err := s.blobs.WriteBytes(ctx, id, name, data)
	if err != nil {
		return ItemRecord{}, err
	}
	updated, err := s.store.Patch(ctx, id, func(it *catalog.Item) error {
		it.Body.Primary = ref
		it.Body.Thumbnail = ""
		return nil
	})
	if err != nil {
		return ItemRecord{}, err
	}
	if s.scheduler != nil {
		if err := s.scheduler.Enqueue(ctx, id, catalog.JobThumbnail, ""); err != nil {
			s.logger.Warn("failed to requeue thumbnail",
				logging.String(logging.FieldItemID, id), logging.Error(err))
		}
	}
	return ItemToRecord(updated), nil
}

// ItemContent returns the primary body of a textual item as a string.
func (s *Service) ItemContent(ctx context.Context, id string) (string, error) {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return "", err
	}
	if !isTextual(item.Kind) {
		return "", fmt.Errorf("%w: item %s has binary content", extern.ErrValidation, id)
	}
	raw, err := s.blobs.ReadAll(item.Body.Primary)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Metadata returns the item's metadata mapping.
func (s *Service) Metadata(ctx context.Context, id string) (map[string]any, error) {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	return item.Metadata.Clone(), nil
}

// Transcription returns the item's transcript text.
func (s *Service) Transcription(ctx context.Context, id string) (string, error) {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return "", err
	}
	if transcript := item.Metadata.String("transcript"); transcript != "" {
		return transcript, nil
	}
	return "", fmt.Errorf("%w: item %s has no transcript", extern.ErrNotFound, id)
}

// AudioData returns the item's audio track: the extracted track when present,
// else the primary body of an audio item.
func (s *Service) AudioData(ctx context.Context, id string) (AudioPayload, error) {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return AudioPayload{}, err
	}
	ref := item.Body.Audio
	if ref == "" && item.Subkind == catalog.SubkindAudio {
		ref = item.Body.Primary
	}
	if ref == "" {
		return AudioPayload{}, fmt.Errorf("%w: item %s has no audio", extern.ErrNotFound, id)
	}
	data, err := s.blobs.ReadAll(ref)
	if err != nil {
		return AudioPayload{}, err
	}
	return AudioPayload{Data: data, MimeType: audioMime(ref)}, nil
}

// TTSAudio returns the synthesized speech attached to the item.
func (s *Service) TTSAudio(ctx context.Context, id string) (AudioPayload, error) {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return AudioPayload{}, err
	}
	if item.Body.TTS == "" {
		return AudioPayload{}, fmt.Errorf("%w: item %s has no synthesized audio", extern.ErrNotFound, id)
	}
	data, err := s.blobs.ReadAll(item.Body.TTS)
	if err != nil {
		return AudioPayload{}, err
	}
	return AudioPayload{
		Data:     data,
		MimeType: audioMime(item.Body.TTS),
		Voice:    item.Metadata.String("ttsVoice"),
	}, nil
}

// VideoPath resolves the absolute filesystem path of a video item's file so
// the UI can hand it to a native player.
func (s *Service) VideoPath(ctx context.Context, id string) (string, error) {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return "", err
	}
	if item.Subkind != catalog.SubkindVideo || item.Body.Primary == "" {
		return "", fmt.Errorf("%w: item %s is not a stored video", extern.ErrValidation, id)
	}
	return s.blobs.Path(item.Body.Primary)
}

// PDFPageThumbnail returns the rendered first page of a PDF item. Only the
// first page is rendered; other page numbers are rejected.
func (s *Service) PDFPageThumbnail(ctx context.Context, id string, page int) ([]byte, error) {
	if page != 1 {
		return nil, fmt.Errorf("%w: only page 1 is rendered", extern.ErrValidation)
	}
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Subkind != catalog.SubkindPDF {
		return nil, fmt.Errorf("%w: item %s is not a PDF", extern.ErrValidation, id)
	}
	if item.Body.Thumbnail == "" {
		return nil, fmt.Errorf("%w: item %s has no rendered page", extern.ErrNotFound, id)
	}
	return s.blobs.ReadAll(item.Body.Thumbnail)
}

// Thumbnail returns the item's thumbnail image bytes.
func (s *Service) Thumbnail(ctx context.Context, id string) ([]byte, error) {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Body.Thumbnail == "" {
		return nil, fmt.Errorf("%w: item %s has no thumbnail", extern.ErrNotFound, id)
	}
	return s.blobs.ReadAll(item.Body.Thumbnail)
}

func audioMime(ref string) string {
	switch strings.ToLower(path.Ext(ref)) {
	case ".wav":
		return "audio/wav"
	case ".ogg":
		return "audio/ogg"
	case ".m4a":
		return "audio/mp4"
	default:
		return "audio/mpeg"
	}
}
