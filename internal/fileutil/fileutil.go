// Package fileutil holds the copy helper ingest uses to capture file
// payloads into the blob directory.
package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// CopyVerified copies src to dst and confirms the landed bytes match what was
// read, by size and SHA-256 of the destination. dst is removed on any
// mismatch so a truncated or corrupted capture never survives as a blob.
func CopyVerified(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	hasher := sha256.New()
	written, err := io.Copy(out, io.TeeReader(in, hasher))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return err
	}
	if written != info.Size() {
		_ = os.Remove(dst)
		return fmt.Errorf("short copy: wrote %d of %d bytes", written, info.Size())
	}

	landed, err := hashFile(dst)
	if err != nil {
		_ = os.Remove(dst)
		return err
	}
	if landed != hex.EncodeToString(hasher.Sum(nil)) {
		_ = os.Remove(dst)
		return fmt.Errorf("destination hash mismatch after copy")
	}
	return nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
