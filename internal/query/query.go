// Package query answers the read side of the catalog: history listings,
// space listings, substring search, predicate filtering, and per-space tag
// histograms. All results come back newest first; the catalog's list order
// already guarantees that.
package query

import (
	"context"
	"strings"

	"clipspace/internal/catalog"
)

// Service wraps a catalog store with read-only query operations.
type Service struct {
	store *catalog.Store
}

func New(store *catalog.Store) *Service {
	return &Service{store: store}
}

// History returns every item, newest first.
func (s *Service) History(ctx context.Context) ([]*catalog.Item, error) {
	return s.store.ListItems(ctx, nil)
}

// SpaceItems returns the items in one space, newest first. The empty space id
// selects unclassified items.
func (s *Service) SpaceItems(ctx context.Context, spaceID string) ([]*catalog.Item, error) {
	return s.store.ListItems(ctx, &spaceID)
}

// TagHistogram returns tag counts for a space from the maintained cache.
func (s *Service) TagHistogram(ctx context.Context, spaceID string) (map[string]int, error) {
	return s.store.TagHistogram(ctx, spaceID)
}

// Search returns items whose preview, title, tags, transcript, or filename
// contain the query, case-insensitively. Results keep the history order, so
// ranking is by recency.
func (s *Service) Search(ctx context.Context, queryText string) ([]*catalog.Item, error) {
	needle := strings.ToLower(strings.TrimSpace(queryText))
	if needle == "" {
		return s.History(ctx)
	}
	items, err := s.store.ListItems(ctx, nil)
	if err != nil {
		return nil, err
	}
	matched := items[:0]
	for _, item := range items {
		if matchesQuery(item, needle) {
			matched = append(matched, item)
		}
	}
	return matched, nil
}

func matchesQuery(item *catalog.Item, needle string) bool {
	if strings.Contains(strings.ToLower(item.Preview), needle) {
		return true
	}
	for _, field := range []string{"title", "transcript", "filename"} {
		if strings.Contains(strings.ToLower(item.Metadata.String(field)), needle) {
			return true
		}
	}
	for _, tag := range item.Metadata.StringSlice("tags") {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

// Predicate filters items; Filter keeps items satisfying every predicate.
type Predicate func(*catalog.Item) bool

// ByKind matches one item kind.
func ByKind(kind catalog.Kind) Predicate {
	return func(item *catalog.Item) bool { return item.Kind == kind }
}

// BySubkind matches one file subkind.
func BySubkind(subkind catalog.FileSubkind) Predicate {
	return func(item *catalog.Item) bool { return item.Subkind == subkind }
}

// ByJSONSubtype matches one detected JSON subtype.
func ByJSONSubtype(subtype catalog.JSONSubtype) Predicate {
	return func(item *catalog.Item) bool { return item.JSONSubtype == subtype }
}

// ByPinned matches pinned items.
func ByPinned() Predicate {
	return func(item *catalog.Item) bool { return item.Pinned }
}

// ByPlaybookNote matches items flagged as playbook notes.
func ByPlaybookNote() Predicate {
	return func(item *catalog.Item) bool { return item.Metadata.Bool("isPlaybookNote") }
}

// ByTags matches items carrying every listed tag.
func ByTags(tags ...string) Predicate {
	return func(item *catalog.Item) bool {
		have := make(map[string]bool)
		for _, tag := range item.Metadata.StringSlice("tags") {
			have[strings.ToLower(tag)] = true
		}
		for _, want := range tags {
			if !have[strings.ToLower(want)] {
				return false
			}
		}
		return true
	}
}

// Filter returns the items satisfying all predicates, newest first.
func (s *Service) Filter(ctx context.Context, predicates ...Predicate) ([]*catalog.Item, error) {
	items, err := s.store.ListItems(ctx, nil)
	if err != nil {
		return nil, err
	}
	matched := items[:0]
	for _, item := range items {
		if satisfiesAll(item, predicates) {
			matched = append(matched, item)
		}
	}
	return matched, nil
}

func satisfiesAll(item *catalog.Item, predicates []Predicate) bool {
	for _, pred := range predicates {
		if !pred(item) {
			return false
		}
	}
	return true
}
