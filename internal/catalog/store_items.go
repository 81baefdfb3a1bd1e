package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"clipspace/internal/bus"
	"clipspace/internal/extern"
)

const itemColumns = `id, kind, subkind, json_subtype, space_id, pinned, fingerprint,
    preview, body_json, metadata_json, derivations_json, context_json, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*Item, error) {
	var (
		item        Item
		pinned      int
		bodyJSON    string
		metaJSON    string
		derivJSON   string
		contextJSON sql.NullString
		createdAt   string
		updatedAt   string
	)
	err := row.Scan(
		&item.ID,
		(*string)(&item.Kind),
		(*string)(&item.Subkind),
		(*string)(&item.JSONSubtype),
		&item.SpaceID,
		&pinned,
		&item.Fingerprint,
		&item.Preview,
		&bodyJSON,
		&metaJSON,
		&derivJSON,
		&contextJSON,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.Pinned = pinned != 0
	item.CreatedAt = parseTime(createdAt)
	item.UpdatedAt = parseTime(updatedAt)

	if err := json.Unmarshal([]byte(bodyJSON), &item.Body); err != nil {
		return nil, fmt.Errorf("%w: item %s body: %v", extern.ErrCorrupt, item.ID, err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &item.Metadata); err != nil {
		return nil, fmt.Errorf("%w: item %s metadata: %v", extern.ErrCorrupt, item.ID, err)
	}
	if derivJSON != "" {
		if err := json.Unmarshal([]byte(derivJSON), &item.Derivations); err != nil {
			return nil, fmt.Errorf("%w: item %s derivations: %v", extern.ErrCorrupt, item.ID, err)
		}
	}
	if contextJSON.Valid && contextJSON.String != "" {
		var cc CaptureContext
		if err := json.Unmarshal([]byte(contextJSON.String), &cc); err != nil {
			return nil, fmt.Errorf("%w: item %s context: %v", extern.ErrCorrupt, item.ID, err)
		}
		item.Context = &cc
	}
	if item.Metadata == nil {
		item.Metadata = Metadata{}
	}
	if item.Derivations == nil {
		item.Derivations = DerivationStatus{}
	}
	return &item, nil
}

func marshalItem(item *Item) (body, meta, deriv string, captureCtx any, err error) {
	bodyBytes, err := json.Marshal(item.Body)
	if err != nil {
		return "", "", "", nil, fmt.Errorf("marshal body: %w", err)
	}
	if item.Metadata == nil {
		item.Metadata = Metadata{}
	}
	metaBytes, err := json.Marshal(item.Metadata)
	if err != nil {
		return "", "", "", nil, fmt.Errorf("marshal metadata: %w", err)
	}
	if item.Derivations == nil {
		item.Derivations = DerivationStatus{}
	}
	derivBytes, err := json.Marshal(item.Derivations)
	if err != nil {
		return "", "", "", nil, fmt.Errorf("marshal derivations: %w", err)
	}
	captureCtx = nil
	if item.Context != nil {
		ctxBytes, err := json.Marshal(item.Context)
		if err != nil {
			return "", "", "", nil, fmt.Errorf("marshal context: %w", err)
		}
		captureCtx = string(ctxBytes)
	}
	return string(bodyBytes), string(metaBytes), string(derivBytes), captureCtx, nil
}

// CreateItem inserts a new item, maintains the owning space's cached count
// and tag histogram in the same transaction, and emits ItemCreated.
func (s *Store) CreateItem(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	if strings.TrimSpace(item.ID) == "" {
		return fmt.Errorf("%w: item id required", extern.ErrValidation)
	}
	ctx = ensureContext(ctx)

	s.bulkMu.RLock()
	defer s.bulkMu.RUnlock()

	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	body, meta, deriv, captureCtx, err := marshalItem(item)
	if err != nil {
		return err
	}

	err = retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if item.SpaceID != "" {
			if err := spaceExistsTx(ctx, tx, item.SpaceID); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO items (`+itemColumns+`)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID,
			string(item.Kind),
			string(item.Subkind),
			string(item.JSONSubtype),
			item.SpaceID,
			boolToInt(item.Pinned),
			item.Fingerprint,
			item.Preview,
			body,
			meta,
			deriv,
			captureCtx,
			formatTime(item.CreatedAt),
			formatTime(item.UpdatedAt),
		)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				return fmt.Errorf("%w: %s", ErrDuplicateID, item.ID)
			}
			return fmt.Errorf("insert item: %w", err)
		}

		if err := adjustSpaceCountTx(ctx, tx, item.SpaceID, 1); err != nil {
			return err
		}
		if err := adjustTagCountsTx(ctx, tx, item.SpaceID, nil, item.Tags()); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return err
	}

	s.publish(bus.Event{
		Type:    bus.EventItemCreated,
		ItemID:  item.ID,
		SpaceID: item.SpaceID,
		Payload: item.Clone(),
	})
	return nil
}

// GetItem fetches an item by identifier.
func (s *Store) GetItem(ctx context.Context, id string) (*Item, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, itemNotFound(id)
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Patch applies a read-modify-write transformation under the item's lock.
// The function receives a private copy; returning an error abandons the
// patch. Derived caches (space counts, tag histogram) stay consistent within
// the same commit, and ItemUpdated is emitted afterwards.
func (s *Store) Patch(ctx context.Context, id string, fn func(*Item) error) (*Item, error) {
	if fn == nil {
		return nil, errors.New("patch function is nil")
	}
	ctx = ensureContext(ctx)

	s.bulkMu.RLock()
	defer s.bulkMu.RUnlock()
	unlock := s.lockItem(id)
	defer unlock()

	return s.patchLocked(ctx, id, fn)
}

func (s *Store) patchLocked(ctx context.Context, id string, fn func(*Item) error) (*Item, error) {
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}

	oldSpace := item.SpaceID
	oldTags := item.Tags()

	updated := item.Clone()
	if err := fn(updated); err != nil {
		return nil, err
	}
	updated.ID = item.ID
	updated.CreatedAt = item.CreatedAt
	updated.UpdatedAt = time.Now().UTC()

	body, meta, deriv, captureCtx, err := marshalItem(updated)
	if err != nil {
		return nil, err
	}

	err = retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if updated.SpaceID != "" && updated.SpaceID != oldSpace {
			if err := spaceExistsTx(ctx, tx, updated.SpaceID); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE items SET kind = ?, subkind = ?, json_subtype = ?, space_id = ?,
                pinned = ?, fingerprint = ?, preview = ?, body_json = ?,
                metadata_json = ?, derivations_json = ?, context_json = ?, updated_at = ?
             WHERE id = ?`,
			string(updated.Kind),
			string(updated.Subkind),
			string(updated.JSONSubtype),
			updated.SpaceID,
			boolToInt(updated.Pinned),
			updated.Fingerprint,
			updated.Preview,
			body,
			meta,
			deriv,
			captureCtx,
			formatTime(updated.UpdatedAt),
			updated.ID,
		)
		if err != nil {
			return fmt.Errorf("update item: %w", err)
		}

		if updated.SpaceID != oldSpace {
			if err := adjustSpaceCountTx(ctx, tx, oldSpace, -1); err != nil {
				return err
			}
			if err := adjustSpaceCountTx(ctx, tx, updated.SpaceID, 1); err != nil {
				return err
			}
			// Tags move wholesale between space histograms.
			if err := adjustTagCountsTx(ctx, tx, oldSpace, oldTags, nil); err != nil {
				return err
			}
			if err := adjustTagCountsTx(ctx, tx, updated.SpaceID, nil, updated.Tags()); err != nil {
				return err
			}
		} else if err := adjustTagCountsTx(ctx, tx, updated.SpaceID, oldTags, updated.Tags()); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}

	s.publish(bus.Event{
		Type:    bus.EventItemUpdated,
		ItemID:  updated.ID,
		SpaceID: updated.SpaceID,
		Payload: updated.Clone(),
	})
	return updated, nil
}

// DeleteItem removes a record, maintains cached counts, and emits
// ItemDeleted. Blob removal is the caller's responsibility so deletion of the
// record and the files stay in a fixed order.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	s.bulkMu.RLock()
	defer s.bulkMu.RUnlock()
	unlock := s.lockItem(id)
	defer unlock()

	if err := s.deleteItemLocked(ctx, id); err != nil {
		return err
	}
	s.forgetItemLock(id)
	return nil
}

func (s *Store) deleteItemLocked(ctx context.Context, id string) error {
	item, err := s.GetItem(ctx, id)
	if err != nil {
		if errors.Is(err, extern.ErrCorrupt) {
			// Corrupt rows can still be deleted; counts were rebuilt without them.
			_, execErr := s.execWithRetry(ctx, `DELETE FROM items WHERE id = ?`, id)
			return execErr
		}
		return err
	}

	err = retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		res, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete item: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return itemNotFound(id)
		}

		if err := adjustSpaceCountTx(ctx, tx, item.SpaceID, -1); err != nil {
			return err
		}
		if err := adjustTagCountsTx(ctx, tx, item.SpaceID, item.Tags(), nil); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE item_id = ?`, id); err != nil {
			return fmt.Errorf("delete item jobs: %w", err)
		}
		return tx.Commit()
	})
	if err != nil {
		return err
	}

	s.publish(bus.Event{
		Type:    bus.EventItemDeleted,
		ItemID:  id,
		SpaceID: item.SpaceID,
	})
	return nil
}

// MoveToSpace reassigns an item's space ("" moves it to unclassified).
func (s *Store) MoveToSpace(ctx context.Context, id, spaceID string) (*Item, error) {
	return s.Patch(ctx, id, func(item *Item) error {
		item.SpaceID = spaceID
		return nil
	})
}

// BulkResult reports per-item outcomes of a bulk operation.
type BulkResult struct {
	Succeeded []string
	Failed    []string
	Errors    map[string]string
}

// BulkDelete removes many items, continuing past individual failures. Each
// item commits independently; succeeded+failed always equals len(ids).
func (s *Store) BulkDelete(ctx context.Context, ids []string) BulkResult {
	ctx = ensureContext(ctx)
	result := BulkResult{Errors: make(map[string]string)}

	s.bulkMu.Lock()
	defer s.bulkMu.Unlock()

	for _, id := range ids {
		if err := s.deleteItemLocked(ctx, id); err != nil {
			result.Failed = append(result.Failed, id)
			result.Errors[id] = err.Error()
			continue
		}
		s.forgetItemLock(id)
		result.Succeeded = append(result.Succeeded, id)
	}
	return result
}

// BulkMove reassigns many items to a space, continuing past individual failures.
func (s *Store) BulkMove(ctx context.Context, ids []string, spaceID string) BulkResult {
	ctx = ensureContext(ctx)
	result := BulkResult{Errors: make(map[string]string)}

	s.bulkMu.Lock()
	defer s.bulkMu.Unlock()

	for _, id := range ids {
		_, err := s.patchLocked(ctx, id, func(item *Item) error {
			item.SpaceID = spaceID
			return nil
		})
		if err != nil {
			result.Failed = append(result.Failed, id)
			result.Errors[id] = err.Error()
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}
	return result
}

// ListItems returns items newest first. When spaceID is non-nil, only items
// in that space are returned ("" = unclassified). Corrupt rows are skipped.
func (s *Store) ListItems(ctx context.Context, spaceID *string) ([]*Item, error) {
	ctx = ensureContext(ctx)
	var (
		rows *sql.Rows
		err  error
	)
	if spaceID == nil {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+itemColumns+` FROM items ORDER BY created_at DESC, id DESC`)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+itemColumns+` FROM items WHERE space_id = ? ORDER BY created_at DESC, id DESC`, *spaceID)
	}
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			if errors.Is(err, extern.ErrCorrupt) {
				continue
			}
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// FindRecentFingerprint returns the newest item whose fingerprint matches and
// whose creation time is at or after cutoff. Used by the ingest duplicate
// window.
func (s *Store) FindRecentFingerprint(ctx context.Context, fingerprint string, cutoff time.Time) (*Item, error) {
	if strings.TrimSpace(fingerprint) == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+itemColumns+` FROM items
         WHERE fingerprint = ? AND created_at >= ?
         ORDER BY created_at DESC LIMIT 1`,
		fingerprint, formatTime(cutoff),
	)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// CorruptItemIDs returns ids of rows whose JSON payloads fail to decode.
func (s *Store) CorruptItemIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT `+itemColumns+` FROM items`)
	if err != nil {
		return nil, fmt.Errorf("scan for corrupt items: %w", err)
	}
	defer rows.Close()

	var corrupt []string
	for rows.Next() {
		var id string
		_, err := scanItem(rows)
		if err == nil {
			continue
		}
		if errors.Is(err, extern.ErrCorrupt) {
			if parsed := corruptItemID(err); parsed != "" {
				id = parsed
			}
			corrupt = append(corrupt, id)
			continue
		}
		return nil, err
	}
	return corrupt, rows.Err()
}

func corruptItemID(err error) string {
	msg := err.Error()
	const marker = "item "
	idx := strings.Index(msg, marker)
	if idx < 0 {
		return ""
	}
	rest := msg[idx+len(marker):]
	if end := strings.IndexByte(rest, ' '); end > 0 {
		return rest[:end]
	}
	return rest
}

// ClearCorruptItems deletes undecodable rows and returns how many were removed.
func (s *Store) ClearCorruptItems(ctx context.Context) (int, error) {
	ids, err := s.CorruptItemIDs(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, err := s.execWithRetry(ensureContext(ctx), `DELETE FROM items WHERE id = ?`, id); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		if err := s.RebuildCaches(ctx); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// EvictOldest removes the oldest unpinned items until at most maxItems remain.
// Returns the ids removed so the caller can clean up blobs.
func (s *Store) EvictOldest(ctx context.Context, maxItems int) ([]string, error) {
	if maxItems <= 0 {
		return nil, nil
	}
	ctx = ensureContext(ctx)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM items`).Scan(&total); err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}
	excess := total - maxItems
	if excess <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM items WHERE pinned = 0 ORDER BY created_at ASC, id ASC LIMIT ?`, excess)
	if err != nil {
		return nil, fmt.Errorf("select eviction candidates: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var removed []string
	for _, id := range ids {
		if err := s.DeleteItem(ctx, id); err != nil {
			if IsNotFound(err) {
				continue
			}
			return removed, err
		}
		removed = append(removed, id)
	}
	return removed, nil
}
