package api

import (
	"context"
	"fmt"
	"strings"

	"clipspace/internal/bus"
	"clipspace/internal/catalog"
	"clipspace/internal/extern"
)

// Spaces returns all spaces with their cached item counts and tag histograms.
func (s *Service) Spaces(ctx context.Context) ([]SpaceRecord, error) {
	spaces, err := s.store.ListSpaces(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]SpaceRecord, 0, len(spaces))
	for _, space := range spaces {
		counts, err := s.store.TagHistogram(ctx, space.ID)
		if err != nil {
			return nil, err
		}
		records = append(records, SpaceToRecord(space, counts))
	}
	return records, nil
}

// CreateSpace adds a new user space.
func (s *Service) CreateSpace(ctx context.Context, name, icon string) (SpaceRecord, error) {
	space, err := s.store.CreateSpace(ctx, name, icon)
	if err != nil {
		return SpaceRecord{}, err
	}
	return SpaceToRecord(space, nil), nil
}

// UpdateSpace renames a space or replaces its icon and notebook.
func (s *Service) UpdateSpace(ctx context.Context, id string, name, icon *string, notebook *NotebookDTO) (SpaceRecord, error) {
	space, err := s.store.UpdateSpace(ctx, id, func(sp *catalog.Space) error {
		if name != nil {
			trimmed := strings.TrimSpace(*name)
			if trimmed == "" {
				return fmt.Errorf("%w: space name required", extern.ErrValidation)
			}
			sp.Name = trimmed
		}
		if icon != nil {
			sp.Icon = *icon
		}
		if notebook != nil {
			sp.Notebook = catalog.Notebook{
				Description:  notebook.Description,
				Objective:    notebook.Objective,
				Instructions: notebook.Instructions,
				Tags:         notebook.Tags,
				Links:        notebook.Links,
			}
		}
		return nil
	})
	if err != nil {
		return SpaceRecord{}, err
	}
	return SpaceToRecord(space, nil), nil
}

// DeleteSpace removes a user space; its items become unclassified.
func (s *Service) DeleteSpace(ctx context.Context, id string) error {
	return s.store.DeleteSpace(ctx, id)
}

// TagHistogram returns per-tag item counts for a space.
func (s *Service) TagHistogram(ctx context.Context, spaceID string) (map[string]int, error) {
	return s.store.TagHistogram(ctx, spaceID)
}

// SpacesEnabled reports whether new captures land in the active space.
func (s *Service) SpacesEnabled(ctx context.Context) (bool, error) {
	value, err := s.store.GetSetting(ctx, settingSpacesEnabled)
	if err != nil {
		return false, err
	}
	return value == "true", nil
}

// SetSpacesEnabled toggles space-directed capture.
func (s *Service) SetSpacesEnabled(ctx context.Context, enabled bool) error {
	value := "false"
	if enabled {
		value = "true"
	}
	if err := s.store.SetSetting(ctx, settingSpacesEnabled, value); err != nil {
		return err
	}
	s.hub.Publish(bus.Event{Type: bus.EventSpacesChanged})
	return nil
}

// ActiveSpace returns the current capture target ("" = none).
func (s *Service) ActiveSpace(ctx context.Context) (string, error) {
	return s.store.GetSetting(ctx, settingActiveSpace)
}

// SetCurrentSpace switches the capture target. An empty id clears it. The
// space must exist; subscribers get an active-space event.
func (s *Service) SetCurrentSpace(ctx context.Context, spaceID string) error {
	if spaceID != "" {
		if _, err := s.store.GetSpace(ctx, spaceID); err != nil {
			return err
		}
	}
	if err := s.store.SetSetting(ctx, settingActiveSpace, spaceID); err != nil {
		return err
	}
	s.hub.Publish(bus.Event{Type: bus.EventActiveSpace, SpaceID: spaceID})
	return nil
}
