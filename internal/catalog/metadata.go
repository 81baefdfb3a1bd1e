package catalog

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// Metadata is the open-ended per-item mapping. Recognized keys get typed
// accessors; unknown keys round-trip untouched so newer writers never lose
// fields to older readers.
type Metadata map[string]any

// editedKey is the shadow set tracking user-edited fields. AI enrichment
// never overwrites a key listed here.
const editedKey = "_edited"

// Clone deep-copies the metadata through JSON. Values are plain JSON shapes,
// so the round trip is lossless.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		cp := make(Metadata, len(m))
		for k, v := range m {
			cp[k] = v
		}
		return cp
	}
	var cp Metadata
	if err := json.Unmarshal(raw, &cp); err != nil {
		return m
	}
	return cp
}

// String returns the string value for key, or "".
func (m Metadata) String(key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// Bool returns the boolean value for key.
func (m Metadata) Bool(key string) bool {
	v, ok := m[key].(bool)
	return ok && v
}

// Int returns the integer value for key, tolerating the float64 shape
// produced by JSON decoding. Missing or non-numeric values yield 0.
func (m Metadata) Int(key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0
		}
		return int(n)
	default:
		return 0
	}
}

// StringSlice returns the value for key as a string slice, tolerating the
// []any shape produced by JSON decoding.
func (m Metadata) StringSlice(key string) []string {
	switch v := m[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, elem := range v {
			if s, ok := elem.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Set assigns a value.
func (m Metadata) Set(key string, value any) {
	m[key] = value
}

// MarkEdited records that the user explicitly set the given keys.
func (m Metadata) MarkEdited(keys ...string) {
	edited := m.editedSet()
	for _, key := range keys {
		edited[key] = struct{}{}
	}
	names := make([]string, 0, len(edited))
	for name := range edited {
		names = append(names, name)
	}
	sort.Strings(names)
	m[editedKey] = names
}

// IsEdited reports whether the user explicitly set the key.
func (m Metadata) IsEdited(key string) bool {
	_, ok := m.editedSet()[key]
	return ok
}

func (m Metadata) editedSet() map[string]struct{} {
	set := make(map[string]struct{})
	for _, name := range m.StringSlice(editedKey) {
		set[name] = struct{}{}
	}
	return set
}

// MergeGenerated folds AI-generated fields into the metadata without
// clobbering user-edited values. Empty generated values are skipped.
func (m Metadata) MergeGenerated(fields map[string]any) {
	for key, value := range fields {
		if key == editedKey {
			continue
		}
		if m.IsEdited(key) {
			continue
		}
		if isEmptyValue(value) {
			continue
		}
		m[key] = value
	}
}

// ApplyPatch merges a user-supplied patch, marking each touched key as
// edited. A nil value deletes the key.
func (m Metadata) ApplyPatch(patch map[string]any) {
	touched := make([]string, 0, len(patch))
	for key, value := range patch {
		if key == editedKey {
			continue
		}
		if value == nil {
			delete(m, key)
		} else {
			m[key] = value
		}
		touched = append(touched, key)
	}
	if len(touched) > 0 {
		m.MarkEdited(touched...)
	}
}

// Timeline decodes the monitor timeline stored under "timeline".
func (m Metadata) Timeline() []TimelineEntry {
	raw, ok := m["timeline"]
	if !ok {
		return nil
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var entries []TimelineEntry
	if err := json.Unmarshal(encoded, &entries); err != nil {
		return nil
	}
	return entries
}

// SetTimeline stores the monitor timeline under "timeline".
func (m Metadata) SetTimeline(entries []TimelineEntry) {
	m["timeline"] = entries
}

// Time parses an RFC3339 value stored under key.
func (m Metadata) Time(key string) (time.Time, bool) {
	s := m.String(key)
	if s == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func isEmptyValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []string:
		return len(v) == 0
	case []any:
		return len(v) == 0
	default:
		return false
	}
}
