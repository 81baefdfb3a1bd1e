// Package blob stores item payloads and derived artifacts on disk.
//
// Each item owns one directory under the blob root, named by the item ID.
// Artifacts inside it carry role-based filenames (primary.*, thumbnail.jpg,
// transcript.json). References handed to the catalog are paths relative to
// the blob root, so the root can move without rewriting rows.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"clipspace/internal/extern"
	"clipspace/internal/fileutil"
)

// Store manages the on-disk blob tree.
type Store struct {
	root string
}

// NewStore opens (creating if needed) a blob store rooted at dir.
func NewStore(dir string) (*Store, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("%w: blob directory required", extern.ErrConfiguration)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, extern.Wrap(extern.ErrStorage, "blob", "open", "create blob root", err)
	}
	return &Store{root: dir}, nil
}

// Root returns the blob root directory.
func (s *Store) Root() string {
	return s.root
}

// Ref builds the catalog reference for an artifact.
func Ref(itemID, name string) string {
	return filepath.ToSlash(filepath.Join(itemID, name))
}

// Path resolves a catalog reference to an absolute path. References that
// escape the blob root are rejected.
func (s *Store) Path(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: empty blob reference", extern.ErrValidation)
	}
	clean := filepath.Clean(filepath.FromSlash(ref))
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("%w: blob reference escapes root: %s", extern.ErrValidation, ref)
	}
	return filepath.Join(s.root, clean), nil
}

// Write streams r into the item's directory under name and returns the
// reference. The write lands in a temp file first and is renamed into place,
// so readers never observe a partial artifact.
func (s *Store) Write(ctx context.Context, itemID, name string, r io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	if strings.TrimSpace(itemID) == "" || strings.TrimSpace(name) == "" {
		return "", 0, fmt.Errorf("%w: item id and artifact name required", extern.ErrValidation)
	}

	dir := filepath.Join(s.root, itemID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, extern.Wrap(extern.ErrStorage, "blob", "write", "create item directory", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", 0, extern.Wrap(extern.ErrStorage, "blob", "write", "create temp file", err)
	}
	tmpName := tmp.Name()
	written, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return "", 0, extern.Wrap(extern.ErrStorage, "blob", "write", "stream artifact", err)
	}
	target := filepath.Join(dir, name)
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return "", 0, extern.Wrap(extern.ErrStorage, "blob", "write", "finalize artifact", err)
	}
	return Ref(itemID, name), written, nil
}

// WriteBytes is Write for in-memory payloads.
func (s *Store) WriteBytes(ctx context.Context, itemID, name string, data []byte) (string, error) {
	ref, _, err := s.Write(ctx, itemID, name, bytes.NewReader(data))
	return ref, err
}

// WriteNewBytes is WriteBytes but refuses to overwrite an existing artifact.
// Ingest writes the primary body through it exactly once; replacement goes
// through the explicit content update paths, which overwrite.
func (s *Store) WriteNewBytes(ctx context.Context, itemID, name string, data []byte) (string, error) {
	if err := s.requireAbsent(itemID, name); err != nil {
		return "", err
	}
	return s.WriteBytes(ctx, itemID, name, data)
}

func (s *Store) requireAbsent(itemID, name string) error {
	_, err := os.Stat(filepath.Join(s.root, itemID, name))
	switch {
	case err == nil:
		return fmt.Errorf("%w: blob %s already exists", extern.ErrValidation, Ref(itemID, name))
	case os.IsNotExist(err):
		return nil
	default:
		return extern.Wrap(extern.ErrStorage, "blob", "write", "stat artifact", err)
	}
}

// Adopt copies an external file into the item's directory with size and hash
// verification, returning the reference.
func (s *Store) Adopt(ctx context.Context, itemID, name, srcPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := s.requireAbsent(itemID, name); err != nil {
		return "", err
	}
	dir := filepath.Join(s.root, itemID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", extern.Wrap(extern.ErrStorage, "blob", "adopt", "create item directory", err)
	}
	if err := fileutil.CopyVerified(srcPath, filepath.Join(dir, name)); err != nil {
		return "", extern.Wrap(extern.ErrStorage, "blob", "adopt", "copy source file", err)
	}
	return Ref(itemID, name), nil
}

// Open returns a reader over the referenced artifact.
func (s *Store) Open(ref string) (io.ReadCloser, error) {
	path, err := s.Path(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: blob %s", extern.ErrNotFound, ref)
	}
	if err != nil {
		return nil, extern.Wrap(extern.ErrStorage, "blob", "open", "open artifact", err)
	}
	return f, nil
}

// ReadAll loads the referenced artifact into memory.
func (s *Store) ReadAll(ref string) ([]byte, error) {
	f, err := s.Open(ref)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, extern.Wrap(extern.ErrStorage, "blob", "read", "read artifact", err)
	}
	return data, nil
}

// Size reports the referenced artifact's size in bytes.
func (s *Store) Size(ref string) (int64, error) {
	path, err := s.Path(ref)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return 0, fmt.Errorf("%w: blob %s", extern.ErrNotFound, ref)
	}
	if err != nil {
		return 0, extern.Wrap(extern.ErrStorage, "blob", "stat", "stat artifact", err)
	}
	return info.Size(), nil
}

// Remove deletes a single artifact. Missing artifacts are not an error.
func (s *Store) Remove(ref string) error {
	path, err := s.Path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return extern.Wrap(extern.ErrStorage, "blob", "remove", "remove artifact", err)
	}
	return nil
}

// RemoveItem deletes every artifact belonging to an item.
func (s *Store) RemoveItem(itemID string) error {
	if strings.TrimSpace(itemID) == "" {
		return fmt.Errorf("%w: item id required", extern.ErrValidation)
	}
	if err := os.RemoveAll(filepath.Join(s.root, itemID)); err != nil {
		return extern.Wrap(extern.ErrStorage, "blob", "remove", "remove item directory", err)
	}
	return nil
}

// ItemDir returns the directory holding an item's artifacts, creating it if
// needed. Workers hand this to external tools that write output files.
func (s *Store) ItemDir(itemID string) (string, error) {
	dir := filepath.Join(s.root, itemID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", extern.Wrap(extern.ErrStorage, "blob", "itemdir", "create item directory", err)
	}
	return dir, nil
}

// SweepResult reports the outcome of an orphan sweep.
type SweepResult struct {
	Removed []string
	Errors  map[string]error
}

// SweepOrphans removes item directories whose IDs the keep predicate rejects.
// Run after retention eviction and corrupt-item cleanup so disk usage tracks
// the catalog.
func (s *Store) SweepOrphans(ctx context.Context, keep func(itemID string) bool) SweepResult {
	result := SweepResult{Errors: make(map[string]error)}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors[s.root] = err
		}
		return result
	}
	for _, entry := range entries {
		if ctx.Err() != nil {
			return result
		}
		if !entry.IsDir() {
			continue
		}
		id := entry.Name()
		if keep != nil && keep(id) {
			continue
		}
		path := filepath.Join(s.root, id)
		if err := os.RemoveAll(path); err != nil {
			result.Errors[path] = err
			continue
		}
		result.Removed = append(result.Removed, id)
	}
	return result
}
