package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"clipspace/internal/bus"
	"clipspace/internal/extern"
)

const spaceColumns = `id, name, icon, notebook_json, is_system, item_count, unviewed_changes, created_at, last_used`

func scanSpace(row rowScanner) (*Space, error) {
	var (
		space        Space
		notebookJSON string
		isSystem     int
		createdAt    string
		lastUsed     string
	)
	err := row.Scan(
		&space.ID,
		&space.Name,
		&space.Icon,
		&notebookJSON,
		&isSystem,
		&space.ItemCount,
		&space.UnviewedChanges,
		&createdAt,
		&lastUsed,
	)
	if err != nil {
		return nil, err
	}
	space.IsSystem = isSystem != 0
	space.CreatedAt = parseTime(createdAt)
	space.LastUsed = parseTime(lastUsed)
	if notebookJSON != "" {
		if err := json.Unmarshal([]byte(notebookJSON), &space.Notebook); err != nil {
			return nil, fmt.Errorf("%w: space %s notebook: %v", extern.ErrCorrupt, space.ID, err)
		}
	}
	return &space, nil
}

func spaceExistsTx(ctx context.Context, tx *sql.Tx, id string) error {
	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM spaces WHERE id = ?`, id).Scan(&count); err != nil {
		return fmt.Errorf("check space: %w", err)
	}
	if count == 0 {
		return spaceNotFound(id)
	}
	return nil
}

// adjustSpaceCountTx shifts a space's cached item count. The unclassified
// bucket ("") has no row and is skipped.
func adjustSpaceCountTx(ctx context.Context, tx *sql.Tx, spaceID string, delta int) error {
	if spaceID == "" || delta == 0 {
		return nil
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE spaces SET item_count = MAX(item_count + ?, 0) WHERE id = ?`, delta, spaceID); err != nil {
		return fmt.Errorf("adjust space count: %w", err)
	}
	return nil
}

// adjustTagCountsTx applies the histogram delta between two tag sets for one
// space bucket ("" holds unclassified items).
func adjustTagCountsTx(ctx context.Context, tx *sql.Tx, spaceID string, before, after []string) error {
	deltas := make(map[string]int)
	for _, tag := range before {
		if tag = strings.TrimSpace(tag); tag != "" {
			deltas[tag]--
		}
	}
	for _, tag := range after {
		if tag = strings.TrimSpace(tag); tag != "" {
			deltas[tag]++
		}
	}
	for tag, delta := range deltas {
		if delta == 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tag_counts (space_id, tag, count) VALUES (?, ?, MAX(?, 0))
             ON CONFLICT(space_id, tag) DO UPDATE SET count = MAX(count + ?, 0)`,
			spaceID, tag, delta, delta); err != nil {
			return fmt.Errorf("adjust tag count %q: %w", tag, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM tag_counts WHERE space_id = ? AND count <= 0`, spaceID); err != nil {
		return fmt.Errorf("prune tag counts: %w", err)
	}
	return nil
}

// CreateSpace inserts a new user space and emits SpacesChanged.
func (s *Store) CreateSpace(ctx context.Context, name, icon string) (*Space, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: space name required", extern.ErrValidation)
	}
	now := time.Now().UTC()
	space := &Space{
		ID:        uuid.NewString(),
		Name:      name,
		Icon:      icon,
		CreatedAt: now,
		LastUsed:  now,
	}
	if err := s.insertSpace(ctx, space); err != nil {
		return nil, err
	}
	s.publish(bus.Event{Type: bus.EventSpacesChanged, SpaceID: space.ID})
	return space, nil
}

func (s *Store) insertSpace(ctx context.Context, space *Space) error {
	notebookJSON, err := json.Marshal(space.Notebook)
	if err != nil {
		return fmt.Errorf("marshal notebook: %w", err)
	}
	_, err = s.execWithRetry(
		ensureContext(ctx),
		`INSERT INTO spaces (`+spaceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		space.ID,
		space.Name,
		space.Icon,
		string(notebookJSON),
		boolToInt(space.IsSystem),
		space.ItemCount,
		space.UnviewedChanges,
		formatTime(space.CreatedAt),
		formatTime(space.LastUsed),
	)
	if err != nil {
		return fmt.Errorf("insert space: %w", err)
	}
	return nil
}

// GetSpace fetches a space by identifier.
func (s *Store) GetSpace(ctx context.Context, id string) (*Space, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+spaceColumns+` FROM spaces WHERE id = ?`, id)
	space, err := scanSpace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, spaceNotFound(id)
	}
	if err != nil {
		return nil, err
	}
	return space, nil
}

// ListSpaces returns all spaces ordered by most recent use.
func (s *Store) ListSpaces(ctx context.Context) ([]*Space, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+spaceColumns+` FROM spaces ORDER BY last_used DESC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list spaces: %w", err)
	}
	defer rows.Close()

	var spaces []*Space
	for rows.Next() {
		space, err := scanSpace(rows)
		if err != nil {
			return nil, err
		}
		spaces = append(spaces, space)
	}
	return spaces, rows.Err()
}

// UpdateSpace patches a space's mutable fields (name, icon, notebook).
func (s *Store) UpdateSpace(ctx context.Context, id string, fn func(*Space) error) (*Space, error) {
	if fn == nil {
		return nil, errors.New("update function is nil")
	}
	space, err := s.GetSpace(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(space); err != nil {
		return nil, err
	}
	space.ID = id

	notebookJSON, err := json.Marshal(space.Notebook)
	if err != nil {
		return nil, fmt.Errorf("marshal notebook: %w", err)
	}
	_, err = s.execWithRetry(
		ensureContext(ctx),
		`UPDATE spaces SET name = ?, icon = ?, notebook_json = ?, last_used = ? WHERE id = ?`,
		space.Name, space.Icon, string(notebookJSON), formatTime(time.Now()), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update space: %w", err)
	}
	s.publish(bus.Event{Type: bus.EventSpacesChanged, SpaceID: id})
	return space, nil
}

// DeleteSpace removes a user space and reparents its items to unclassified.
// System spaces cannot be deleted.
func (s *Store) DeleteSpace(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)
	space, err := s.GetSpace(ctx, id)
	if err != nil {
		return err
	}
	if space.IsSystem {
		return fmt.Errorf("%w: %s", ErrSystemSpace, space.Name)
	}

	s.bulkMu.Lock()
	defer s.bulkMu.Unlock()

	err = retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx,
			`UPDATE items SET space_id = '' WHERE space_id = ?`, id); err != nil {
			return fmt.Errorf("reparent items: %w", err)
		}
		// Reparented items carry their tags into the unclassified histogram.
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tag_counts (space_id, tag, count)
             SELECT '', tag, count FROM tag_counts WHERE space_id = ?
             ON CONFLICT(space_id, tag) DO UPDATE SET count = tag_counts.count + excluded.count`,
			id); err != nil {
			return fmt.Errorf("merge tag counts: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tag_counts WHERE space_id = ?`, id); err != nil {
			return fmt.Errorf("drop tag counts: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM spaces WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete space: %w", err)
		}
		return tx.Commit()
	})
	if err != nil {
		return err
	}

	s.publish(bus.Event{Type: bus.EventSpacesChanged, SpaceID: id})
	return nil
}

// EnsureSystemSpaces creates the built-in spaces on first boot.
func (s *Store) EnsureSystemSpaces(ctx context.Context) error {
	ctx = ensureContext(ctx)
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM spaces WHERE is_system = 1 AND name = ?`, MonitorSpaceName).Scan(&count); err != nil {
		return fmt.Errorf("check system spaces: %w", err)
	}
	if count > 0 {
		return nil
	}
	now := time.Now().UTC()
	return s.insertSpace(ctx, &Space{
		ID:        uuid.NewString(),
		Name:      MonitorSpaceName,
		Icon:      "radar",
		IsSystem:  true,
		CreatedAt: now,
		LastUsed:  now,
	})
}

// MonitorSpace returns the system space that aggregates web monitors.
func (s *Store) MonitorSpace(ctx context.Context) (*Space, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+spaceColumns+` FROM spaces WHERE is_system = 1 AND name = ? LIMIT 1`, MonitorSpaceName)
	space, err := scanSpace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, spaceNotFound(MonitorSpaceName)
	}
	if err != nil {
		return nil, err
	}
	return space, nil
}

// AddUnviewedChanges shifts a system space's unviewed-change counter.
// Negative deltas floor at zero; passing delta 0 resets the counter.
func (s *Store) AddUnviewedChanges(ctx context.Context, id string, delta int) error {
	var err error
	if delta == 0 {
		_, err = s.execWithRetry(ensureContext(ctx),
			`UPDATE spaces SET unviewed_changes = 0 WHERE id = ?`, id)
	} else {
		_, err = s.execWithRetry(ensureContext(ctx),
			`UPDATE spaces SET unviewed_changes = MAX(unviewed_changes + ?, 0) WHERE id = ?`, delta, id)
	}
	if err != nil {
		return fmt.Errorf("adjust unviewed changes: %w", err)
	}
	s.publish(bus.Event{Type: bus.EventSpacesChanged, SpaceID: id})
	return nil
}

// TouchSpace bumps a space's last_used timestamp.
func (s *Store) TouchSpace(ctx context.Context, id string) error {
	_, err := s.execWithRetry(ensureContext(ctx),
		`UPDATE spaces SET last_used = ? WHERE id = ?`, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("touch space: %w", err)
	}
	return nil
}

// TagHistogram returns tag→count for one space bucket ("" = unclassified).
func (s *Store) TagHistogram(ctx context.Context, spaceID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT tag, count FROM tag_counts WHERE space_id = ? AND count > 0`, spaceID)
	if err != nil {
		return nil, fmt.Errorf("tag histogram: %w", err)
	}
	defer rows.Close()

	histogram := make(map[string]int)
	for rows.Next() {
		var (
			tag   string
			count int
		)
		if err := rows.Scan(&tag, &count); err != nil {
			return nil, err
		}
		histogram[tag] = count
	}
	return histogram, rows.Err()
}

// RebuildCaches recomputes space item counts and tag histograms from the
// items table. Run on startup and after corrupt-item cleanup.
func (s *Store) RebuildCaches(ctx context.Context) error {
	ctx = ensureContext(ctx)

	s.bulkMu.Lock()
	defer s.bulkMu.Unlock()

	items, err := s.ListItems(ctx, nil)
	if err != nil {
		return err
	}

	counts := make(map[string]int)
	tags := make(map[string]map[string]int)
	for _, item := range items {
		counts[item.SpaceID]++
		for _, tag := range item.Tags() {
			if tag = strings.TrimSpace(tag); tag == "" {
				continue
			}
			if tags[item.SpaceID] == nil {
				tags[item.SpaceID] = make(map[string]int)
			}
			tags[item.SpaceID][tag]++
		}
	}

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `UPDATE spaces SET item_count = 0`); err != nil {
			return fmt.Errorf("reset counts: %w", err)
		}
		for spaceID, count := range counts {
			if spaceID == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE spaces SET item_count = ? WHERE id = ?`, count, spaceID); err != nil {
				return fmt.Errorf("set count: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tag_counts`); err != nil {
			return fmt.Errorf("reset tag counts: %w", err)
		}
		for spaceID, spaceTags := range tags {
			for tag, count := range spaceTags {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO tag_counts (space_id, tag, count) VALUES (?, ?, ?)`,
					spaceID, tag, count); err != nil {
					return fmt.Errorf("insert tag count: %w", err)
				}
			}
		}
		return tx.Commit()
	})
}
