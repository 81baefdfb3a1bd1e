package ipc

import "clipspace/internal/api"

// ItemRecord mirrors the API item DTO for IPC callers.
type ItemRecord = api.ItemRecord

// SpaceRecord mirrors the API space DTO for IPC callers.
type SpaceRecord = api.SpaceRecord

// JobRecord mirrors the API job DTO for IPC callers.
type JobRecord = api.JobRecord

// IngestReceipt mirrors the API add-operation receipt.
type IngestReceipt = api.IngestReceipt

// BulkReceipt mirrors the API bulk-operation receipt.
type BulkReceipt = api.BulkReceipt

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse is the combined daemon status snapshot.
type StatusResponse struct {
	Running       bool           `json:"running"`
	PID           int            `json:"pid"`
	DatabasePath  string         `json:"database_path"`
	BlobRoot      string         `json:"blob_root"`
	LockPath      string         `json:"lock_path"`
	ItemCount     int            `json:"item_count"`
	SpaceCount    int            `json:"space_count"`
	ActiveSpace   string         `json:"active_space"`
	SpacesEnabled bool           `json:"spaces_enabled"`
	JobCounts     map[string]int `json:"job_counts"`
}

// ShutdownRequest asks the daemon to exit.
type ShutdownRequest struct{}

// ShutdownResponse confirms shutdown was initiated.
type ShutdownResponse struct {
	Stopping bool `json:"stopping"`
}

// HistoryRequest lists items. Query filters by free text; SpaceID, when
// non-nil, limits to one space ("" = unclassified).
type HistoryRequest struct {
	Query   string  `json:"query,omitempty"`
	SpaceID *string `json:"space_id,omitempty"`
}

// HistoryResponse contains item records, newest first.
type HistoryResponse struct {
	Items []ItemRecord `json:"items"`
}

// ItemDescribeRequest fetches a single item by id.
type ItemDescribeRequest struct {
	ID string `json:"id"`
}

// ItemDescribeResponse contains a single item plus its textual content when
// the item kind has one.
type ItemDescribeResponse struct {
	Item    ItemRecord `json:"item"`
	Content string     `json:"content,omitempty"`
}

// AddTextRequest ingests plain text.
type AddTextRequest struct {
	Text    string `json:"text"`
	SpaceID string `json:"space_id,omitempty"`
}

// AddFileRequest ingests a file path.
type AddFileRequest struct {
	Path    string `json:"path"`
	SpaceID string `json:"space_id,omitempty"`
}

// AddURLRequest ingests a URL.
type AddURLRequest struct {
	URL     string `json:"url"`
	SpaceID string `json:"space_id,omitempty"`
}

// AddResponse reports the ingest receipt.
type AddResponse struct {
	Receipt IngestReceipt `json:"receipt"`
}

// DeleteItemsRequest removes items by id.
type DeleteItemsRequest struct {
	IDs []string `json:"ids"`
}

// DeleteItemsResponse reports per-item outcomes.
type DeleteItemsResponse struct {
	Receipt BulkReceipt `json:"receipt"`
}

// MoveItemsRequest reassigns items to a space ("" = unclassified).
type MoveItemsRequest struct {
	IDs     []string `json:"ids"`
	SpaceID string   `json:"space_id"`
}

// MoveItemsResponse reports per-item outcomes.
type MoveItemsResponse struct {
	Receipt BulkReceipt `json:"receipt"`
}

// PinRequest toggles the pinned flag on an item.
type PinRequest struct {
	ID string `json:"id"`
}

// PinResponse reports the new pinned state.
type PinResponse struct {
	Pinned bool `json:"pinned"`
}

// SpaceListRequest lists spaces.
type SpaceListRequest struct{}

// SpaceListResponse contains space records.
type SpaceListResponse struct {
	Spaces []SpaceRecord `json:"spaces"`
}

// SpaceCreateRequest adds a user space.
type SpaceCreateRequest struct {
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

// SpaceCreateResponse contains the created space.
type SpaceCreateResponse struct {
	Space SpaceRecord `json:"space"`
}

// SpaceDeleteRequest removes a user space.
type SpaceDeleteRequest struct {
	ID string `json:"id"`
}

// SpaceDeleteResponse confirms removal.
type SpaceDeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// SetActiveSpaceRequest switches the capture target ("" clears it).
type SetActiveSpaceRequest struct {
	SpaceID string `json:"space_id"`
}

// SetActiveSpaceResponse confirms the switch.
type SetActiveSpaceResponse struct {
	ActiveSpace string `json:"active_space"`
}

// SetSpacesEnabledRequest toggles space-directed capture.
type SetSpacesEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// SetSpacesEnabledResponse confirms the toggle.
type SetSpacesEnabledResponse struct {
	Enabled bool `json:"enabled"`
}

// JobListRequest lists derivation jobs, optionally filtered by state.
type JobListRequest struct {
	States []string `json:"states,omitempty"`
}

// JobListResponse contains job records.
type JobListResponse struct {
	Jobs []JobRecord `json:"jobs"`
}

// EnqueueJobRequest queues an enrichment job for an item.
type EnqueueJobRequest struct {
	ItemID      string `json:"item_id"`
	Kind        string `json:"kind"`
	Language    string `json:"language,omitempty"`
	ContextHint string `json:"context_hint,omitempty"`
	Voice       string `json:"voice,omitempty"`
}

// EnqueueJobResponse confirms the job was admitted.
type EnqueueJobResponse struct {
	Queued bool `json:"queued"`
}

// MonitorCheckRequest queues an immediate web-monitor check.
type MonitorCheckRequest struct {
	ID string `json:"id"`
}

// MonitorCheckResponse confirms the check was queued.
type MonitorCheckResponse struct {
	Queued bool `json:"queued"`
}

// ClearCorruptRequest removes undecodable item rows.
type ClearCorruptRequest struct{}

// ClearCorruptResponse reports the number of removed rows.
type ClearCorruptResponse struct {
	Removed int `json:"removed"`
}
