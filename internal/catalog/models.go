package catalog

import (
	"strings"
	"time"
)

// Kind is the top-level item variant.
type Kind string

const (
	KindText         Kind = "text"
	KindHTML         Kind = "html"
	KindImage        Kind = "image"
	KindFile         Kind = "file"
	KindURL          Kind = "url"
	KindAIChat       Kind = "ai_conversation"
	KindGeneratedDoc Kind = "generated_document"
	KindWebMonitor   Kind = "web_monitor"
)

// FileSubkind refines KindFile by content family.
type FileSubkind string

const (
	SubkindImage        FileSubkind = "image"
	SubkindVideo        FileSubkind = "video"
	SubkindAudio        FileSubkind = "audio"
	SubkindPDF          FileSubkind = "pdf"
	SubkindPresentation FileSubkind = "presentation"
	SubkindCode         FileSubkind = "code"
	SubkindDocument     FileSubkind = "document"
	SubkindData         FileSubkind = "data"
	SubkindNotebook     FileSubkind = "notebook"
	SubkindFlow         FileSubkind = "flow"
	SubkindOther        FileSubkind = "other"
)

// JSONSubtype refines JSON text payloads recognized by the classifier.
type JSONSubtype string

const (
	SubtypeStyleGuide   JSONSubtype = "style-guide"
	SubtypeJourneyMap   JSONSubtype = "journey-map"
	SubtypeChatbotConvo JSONSubtype = "chatbot-conversation"
)

var allKinds = []Kind{
	KindText, KindHTML, KindImage, KindFile, KindURL,
	KindAIChat, KindGeneratedDoc, KindWebMonitor,
}

// ParseKind converts a string into a known Kind.
func ParseKind(value string) (Kind, bool) {
	normalized := Kind(strings.ToLower(strings.TrimSpace(value)))
	for _, k := range allKinds {
		if k == normalized {
			return k, true
		}
	}
	return "", false
}

// BodyRefs holds blob references for an item: one primary body plus optional
// derivations keyed by role.
type BodyRefs struct {
	Primary       string `json:"primary"`
	Thumbnail     string `json:"thumbnail,omitempty"`
	Audio         string `json:"audio,omitempty"`
	Transcript    string `json:"transcript,omitempty"`
	TTS           string `json:"tts,omitempty"`
	PosterFrame   string `json:"poster_frame,omitempty"`
	PDFThumbnail  string `json:"pdf_thumbnail,omitempty"`
	ScreenshotDir string `json:"screenshot_dir,omitempty"`
}

// CaptureContext records where an ingest event came from.
type CaptureContext struct {
	SourceApp  string    `json:"source_app,omitempty"`
	SourceURL  string    `json:"source_url,omitempty"`
	CapturedAt time.Time `json:"captured_at,omitempty"`
}

// Item is the central stored artifact.
type Item struct {
	ID          string
	Kind        Kind
	Subkind     FileSubkind
	JSONSubtype JSONSubtype
	SpaceID     string // empty = unclassified
	Pinned      bool
	Fingerprint string
	Preview     string
	Body        BodyRefs
	Metadata    Metadata
	Derivations DerivationStatus
	Context     *CaptureContext
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Clone returns a deep copy safe to hand to subscribers.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	cp := *i
	cp.Metadata = i.Metadata.Clone()
	cp.Derivations = i.Derivations.Clone()
	if i.Context != nil {
		ctx := *i.Context
		cp.Context = &ctx
	}
	return &cp
}

// Tags returns the item's tag list from metadata.
func (i *Item) Tags() []string {
	return i.Metadata.StringSlice("tags")
}

// Notebook is the structured notes block attached to a space.
type Notebook struct {
	Description  string   `json:"description,omitempty"`
	Objective    string   `json:"objective,omitempty"`
	Instructions string   `json:"instructions,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Links        []string `json:"links,omitempty"`
}

// Space is a named bucket items may belong to.
type Space struct {
	ID              string
	Name            string
	Icon            string
	Notebook        Notebook
	IsSystem        bool
	ItemCount       int
	UnviewedChanges int
	CreatedAt       time.Time
	LastUsed        time.Time
}

// MonitorSpaceName is the system space aggregating web-monitor items. It is
// created on first boot and cannot be deleted.
const MonitorSpaceName = "Web Monitors"

// JobKind names a derivation job type.
type JobKind string

const (
	JobThumbnail    JobKind = "thumbnail"
	JobExtractAudio JobKind = "extract_audio"
	JobTranscribe   JobKind = "transcribe"
	JobSpeakers     JobKind = "identify_speakers"
	JobSummarize    JobKind = "summarize"
	JobAIMetadata   JobKind = "ai_metadata"
	JobMonitorCheck JobKind = "monitor_check"
	JobTTS          JobKind = "tts"
	JobVideoFetch   JobKind = "video_fetch"
)

// JobState is the lifecycle of a derivation job.
type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// IsTerminal reports whether no further transitions are possible for the state.
func (s JobState) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Job is a persisted derivation job.
type Job struct {
	ID        int64
	ItemID    string
	Kind      JobKind
	State     JobState
	Attempts  int
	LastError string
	Progress  float64
	// Payload carries kind-specific arguments (voice, language hint, context
	// hint) serialized as JSON.
	Payload     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// DerivationRecord tracks the latest outcome of one job kind on an item.
type DerivationRecord struct {
	State       JobState   `json:"state"`
	Error       string     `json:"error,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// DerivationStatus maps job kinds to their latest outcome on the item.
type DerivationStatus map[JobKind]DerivationRecord

// Clone returns an independent copy of the status map.
func (d DerivationStatus) Clone() DerivationStatus {
	if d == nil {
		return nil
	}
	cp := make(DerivationStatus, len(d))
	for k, v := range d {
		cp[k] = v
	}
	return cp
}

// Completed reports whether the given kind finished successfully.
func (d DerivationStatus) Completed(kind JobKind) bool {
	rec, ok := d[kind]
	return ok && rec.State == JobCompleted
}

// TimelineEntry is one element of a web monitor's change history, stored in
// the item's metadata under "timeline".
type TimelineEntry struct {
	Type                 string    `json:"type"` // baseline | change
	Timestamp            time.Time `json:"timestamp"`
	Summary              string    `json:"summary,omitempty"`
	AIDescription        string    `json:"aiDescription,omitempty"`
	Added                []string  `json:"added,omitempty"`
	Removed              []string  `json:"removed,omitempty"`
	ScreenshotPath       string    `json:"screenshotPath,omitempty"`
	ScreenshotBeforePath string    `json:"screenshotBeforePath,omitempty"`
	ScreenshotAfterPath  string    `json:"screenshotAfterPath,omitempty"`
	TextLength           int       `json:"textLength,omitempty"`
}
