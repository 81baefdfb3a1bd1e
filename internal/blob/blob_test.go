package blob_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"clipspace/internal/blob"
	"clipspace/internal/extern"
	"clipspace/internal/testsupport"
)

func TestWriteAndReadBack(t *testing.T) {
	store, err := blob.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	ctx := context.Background()
	ref, err := store.WriteBytes(ctx, "item-1", "primary.txt", []byte("hello"))
	if err != nil {
		t.Fatalf("WriteBytes failed: %v", err)
	}
	if ref != "item-1/primary.txt" {
		t.Fatalf("unexpected ref: %q", ref)
	}

	data, err := store.ReadAll(ref)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("unexpected payload: %q", data)
	}

	size, err := store.Size(ref)
	if err != nil || size != 5 {
		t.Fatalf("Size = %d, %v", size, err)
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	store, err := blob.NewStore(root)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if _, err := store.WriteBytes(context.Background(), "item-2", "primary.txt", []byte("payload")); err != nil {
		t.Fatalf("WriteBytes failed: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(root, "item-2"))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "primary.txt" {
		t.Fatalf("unexpected directory contents: %v", entries)
	}
}

func TestPathRejectsEscapes(t *testing.T) {
	store, err := blob.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	for _, ref := range []string{"../outside", "/etc/passwd", "item/../../x"} {
		if _, err := store.Path(ref); !errors.Is(err, extern.ErrValidation) {
			t.Fatalf("ref %q: expected validation error, got %v", ref, err)
		}
	}
}

func TestAdoptCopiesSource(t *testing.T) {
	root := t.TempDir()
	store, err := blob.NewStore(root)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	src := filepath.Join(t.TempDir(), "incoming.bin")
	testsupport.WriteFile(t, src, 4096)

	ref, err := store.Adopt(context.Background(), "item-3", "primary.bin", src)
	if err != nil {
		t.Fatalf("Adopt failed: %v", err)
	}
	size, err := store.Size(ref)
	if err != nil || size != 4096 {
		t.Fatalf("adopted size = %d, %v", size, err)
	}
	// Source file stays untouched.
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("source removed by adopt: %v", err)
	}
}

func TestRemoveItemAndSweep(t *testing.T) {
	store, err := blob.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	ctx := context.Background()
	if _, err := store.WriteBytes(ctx, "keep", "primary.txt", []byte("a")); err != nil {
		t.Fatalf("WriteBytes failed: %v", err)
	}
	if _, err := store.WriteBytes(ctx, "orphan", "primary.txt", []byte("b")); err != nil {
		t.Fatalf("WriteBytes failed: %v", err)
	}

	result := store.SweepOrphans(ctx, func(id string) bool { return id == "keep" })
	if len(result.Removed) != 1 || result.Removed[0] != "orphan" {
		t.Fatalf("unexpected sweep result: %#v", result)
	}
	if _, err := store.ReadAll("keep/primary.txt"); err != nil {
		t.Fatalf("kept blob removed: %v", err)
	}
	if _, err := store.ReadAll("orphan/primary.txt"); !errors.Is(err, extern.ErrNotFound) {
		t.Fatalf("expected not found after sweep, got %v", err)
	}
}

func TestWriteNewBytesRefusesOverwrite(t *testing.T) {
	store, err := blob.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	ctx := context.Background()
	ref, err := store.WriteNewBytes(ctx, "item-1", "primary.txt", []byte("first"))
	if err != nil {
		t.Fatalf("WriteNewBytes failed: %v", err)
	}

	if _, err := store.WriteNewBytes(ctx, "item-1", "primary.txt", []byte("second")); !errors.Is(err, extern.ErrValidation) {
		t.Fatalf("expected validation error on overwrite, got %v", err)
	}

	data, err := store.ReadAll(ref)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "first" {
		t.Fatalf("original payload was clobbered: %q", data)
	}

	// The overwriting entry point still replaces content for updates.
	if _, err := store.WriteBytes(ctx, "item-1", "primary.txt", []byte("updated")); err != nil {
		t.Fatalf("WriteBytes failed: %v", err)
	}
}

func TestAdoptRefusesOverwrite(t *testing.T) {
	store, err := blob.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	src := filepath.Join(t.TempDir(), "src.bin")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if _, err := store.Adopt(ctx, "item-1", "primary.bin", src); err != nil {
		t.Fatalf("Adopt failed: %v", err)
	}
	if _, err := store.Adopt(ctx, "item-1", "primary.bin", src); !errors.Is(err, extern.ErrValidation) {
		t.Fatalf("expected validation error on overwrite, got %v", err)
	}
}
