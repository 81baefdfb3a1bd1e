package classify

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"

	"clipspace/internal/extern"
)

// maxHashBytes is the largest file hashed by content on the ingest path.
// Bigger files are fingerprinted by (path, size, mtime) so a paste of a
// multi-gigabyte video does not stall ingest.
const maxHashBytes = 32 << 20

// TextFingerprint hashes the NFC-normalized, trimmed, lowercased projection
// of text content. Volatile whitespace and case differences collapse to the
// same fingerprint.
func TextFingerprint(text string) string {
	normalized := strings.ToLower(strings.TrimSpace(norm.NFC.String(text)))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// BytesFingerprint hashes raw bytes, used for image payloads.
func BytesFingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FileFingerprint hashes a file's contents, falling back to an identity hash
// of (path, size, mtime) above maxHashBytes.
func FileFingerprint(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", extern.Wrap(extern.ErrStorage, "classify", "fingerprint", "stat file", err)
	}
	if info.Size() > maxHashBytes {
		identity := fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
		sum := sha256.Sum256([]byte(identity))
		return hex.EncodeToString(sum[:]), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", extern.Wrap(extern.ErrStorage, "classify", "fingerprint", "open file", err)
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", extern.Wrap(extern.ErrStorage, "classify", "fingerprint", "hash file", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
