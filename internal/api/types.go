package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ItemRecord describes a stored item in a transport-friendly format.
type ItemRecord struct {
	ID          string             `json:"id"`
	Kind        string             `json:"kind"`
	Subkind     string             `json:"subkind,omitempty"`
	JSONSubtype string             `json:"jsonSubtype,omitempty"`
	SpaceID     string             `json:"spaceId,omitempty"`
	Pinned      bool               `json:"pinned"`
	Preview     string             `json:"preview"`
	Metadata    map[string]any     `json:"metadata,omitempty"`
	Derivations map[string]string  `json:"derivations,omitempty"`
	Context     *CaptureContextDTO `json:"context,omitempty"`
	HasThumb    bool               `json:"hasThumbnail"`
	HasAudio    bool               `json:"hasAudio"`
	HasTTS      bool               `json:"hasTts"`
	CreatedAt   string             `json:"createdAt"`
	UpdatedAt   string             `json:"updatedAt"`
}

// CaptureContextDTO mirrors the capture provenance recorded at ingest.
type CaptureContextDTO struct {
	SourceApp  string `json:"sourceApp,omitempty"`
	SourceURL  string `json:"sourceUrl,omitempty"`
	CapturedAt string `json:"capturedAt,omitempty"`
}

// SpaceRecord describes a space including its cached counters.
type SpaceRecord struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Icon            string         `json:"icon,omitempty"`
	Notebook        NotebookDTO    `json:"notebook"`
	IsSystem        bool           `json:"isSystem"`
	ItemCount       int            `json:"itemCount"`
	UnviewedChanges int            `json:"unviewedChanges,omitempty"`
	TagCounts       map[string]int `json:"tagCounts,omitempty"`
	CreatedAt       string         `json:"createdAt"`
	LastUsed        string         `json:"lastUsed,omitempty"`
}

// NotebookDTO is the structured notes block attached to a space.
type NotebookDTO struct {
	Description  string   `json:"description,omitempty"`
	Objective    string   `json:"objective,omitempty"`
	Instructions string   `json:"instructions,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Links        []string `json:"links,omitempty"`
}

// JobRecord describes a derivation job.
type JobRecord struct {
	ID        int64   `json:"id"`
	ItemID    string  `json:"itemId"`
	Kind      string  `json:"kind"`
	State     string  `json:"state"`
	Attempts  int     `json:"attempts"`
	Progress  float64 `json:"progress"`
	LastError string  `json:"lastError,omitempty"`
	CreatedAt string  `json:"createdAt,omitempty"`
	UpdatedAt string  `json:"updatedAt,omitempty"`
}

// Envelope is the uniform outcome block every mutating call returns.
type Envelope struct {
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"errorKind,omitempty"`
}

// IngestReceipt reports the result of an add operation.
type IngestReceipt struct {
	Envelope
	ID        string `json:"id,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Duplicate bool   `json:"isDuplicate,omitempty"`
	VideoURL  bool   `json:"isVideoUrl,omitempty"`
}

// BulkFailure names one item a bulk operation could not process.
type BulkFailure struct {
	ID        string `json:"id"`
	Error     string `json:"error"`
	ErrorKind string `json:"errorKind,omitempty"`
}

// BulkReceipt reports a bulk move or delete. Succeeded plus Failed always
// covers every requested id exactly once.
type BulkReceipt struct {
	Envelope
	Succeeded []string      `json:"succeeded"`
	Failed    []BulkFailure `json:"failed,omitempty"`
}

// AudioPayload carries raw audio bytes with their media type.
type AudioPayload struct {
	Data     []byte `json:"data"`
	MimeType string `json:"mimeType"`
	Voice    string `json:"voice,omitempty"`
}
