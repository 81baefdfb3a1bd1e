package api

import (
	"time"

	"clipspace/internal/catalog"
	"clipspace/internal/extern"
)

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// ItemToRecord converts a catalog item into its transport form.
func ItemToRecord(item *catalog.Item) ItemRecord {
	if item == nil {
		return ItemRecord{}
	}
	rec := ItemRecord{
		ID:          item.ID,
		Kind:        string(item.Kind),
		Subkind:     string(item.Subkind),
		JSONSubtype: string(item.JSONSubtype),
		SpaceID:     item.SpaceID,
		Pinned:      item.Pinned,
		Preview:     item.Preview,
		HasThumb:    item.Body.Thumbnail != "",
		HasAudio:    item.Body.Audio != "",
		HasTTS:      item.Body.TTS != "",
		CreatedAt:   formatTimestamp(item.CreatedAt),
		UpdatedAt:   formatTimestamp(item.UpdatedAt),
	}
	if len(item.Metadata) > 0 {
		rec.Metadata = item.Metadata.Clone()
	}
	if len(item.Derivations) > 0 {
		rec.Derivations = make(map[string]string, len(item.Derivations))
		for kind, record := range item.Derivations {
			rec.Derivations[string(kind)] = string(record.State)
		}
	}
	if item.Context != nil {
		rec.Context = &CaptureContextDTO{
			SourceApp:  item.Context.SourceApp,
			SourceURL:  item.Context.SourceURL,
			CapturedAt: formatTimestamp(item.Context.CapturedAt),
		}
	}
	return rec
}

// ItemsToRecords converts a slice of catalog items, preserving order.
func ItemsToRecords(items []*catalog.Item) []ItemRecord {
	records := make([]ItemRecord, 0, len(items))
	for _, item := range items {
		records = append(records, ItemToRecord(item))
	}
	return records
}

// SpaceToRecord converts a catalog space into its transport form.
func SpaceToRecord(space *catalog.Space, tagCounts map[string]int) SpaceRecord {
	if space == nil {
		return SpaceRecord{}
	}
	return SpaceRecord{
		ID:   space.ID,
		Name: space.Name,
		Icon: space.Icon,
		Notebook: NotebookDTO{
			Description:  space.Notebook.Description,
			Objective:    space.Notebook.Objective,
			Instructions: space.Notebook.Instructions,
			Tags:         space.Notebook.Tags,
			Links:        space.Notebook.Links,
		},
		IsSystem:        space.IsSystem,
		ItemCount:       space.ItemCount,
		UnviewedChanges: space.UnviewedChanges,
		TagCounts:       tagCounts,
		CreatedAt:       formatTimestamp(space.CreatedAt),
		LastUsed:        formatTimestamp(space.LastUsed),
	}
}

// JobToRecord converts a catalog job into its transport form.
func JobToRecord(job *catalog.Job) JobRecord {
	if job == nil {
		return JobRecord{}
	}
	return JobRecord{
		ID:        job.ID,
		ItemID:    job.ItemID,
		Kind:      string(job.Kind),
		State:     string(job.State),
		Attempts:  job.Attempts,
		Progress:  job.Progress,
		LastError: job.LastError,
		CreatedAt: formatTimestamp(job.CreatedAt),
		UpdatedAt: formatTimestamp(job.UpdatedAt),
	}
}

// Outcome builds the uniform success/error block from a call result.
func Outcome(err error) Envelope {
	if err == nil {
		return Envelope{Success: true}
	}
	return Envelope{Error: err.Error(), ErrorKind: extern.Kind(err)}
}
