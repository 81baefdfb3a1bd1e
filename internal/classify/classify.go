// Package classify decides an ingest payload's item shape: kind, subkind,
// JSON subtype, preview, metadata seed, fingerprint, and the derivations to
// schedule. Rules are ordered; the first match wins.
package classify

import (
	"fmt"
	"mime"
	"net/url"
	"path/filepath"
	"strings"

	"clipspace/internal/catalog"
	"clipspace/internal/extern"
)

// Input is one raw ingest payload. Exactly one source field group is set:
// Text, (HTML, Text), (Image, ImageMime), or FilePath.
type Input struct {
	Text      string
	HTML      string
	Image     []byte
	ImageMime string
	FilePath  string
}

// Result is the classified item shape handed to the ingest coordinator.
type Result struct {
	Kind        catalog.Kind
	Subkind     catalog.FileSubkind
	JSONSubtype catalog.JSONSubtype
	Preview     string
	Fingerprint string
	Metadata    catalog.Metadata
	Derivations []catalog.JobKind
	// VideoURL is set when the payload is a URL on a known video platform;
	// the caller surfaces it as an ingest hint.
	VideoURL bool
	// PrimaryName is the blob filename for the primary body.
	PrimaryName string
}

// Classify runs the rule chain over one input.
func Classify(in Input) (Result, error) {
	switch {
	case len(in.Image) > 0:
		return classifyImage(in), nil
	case strings.TrimSpace(in.FilePath) != "":
		return classifyFile(in.FilePath)
	case strings.TrimSpace(in.HTML) != "":
		return classifyHTML(in), nil
	case strings.TrimSpace(in.Text) != "":
		return classifyText(in.Text), nil
	default:
		return Result{}, fmt.Errorf("%w: empty ingest payload", extern.ErrValidation)
	}
}

func classifyImage(in Input) Result {
	ext := extensionForMime(in.ImageMime)
	meta := catalog.Metadata{}
	if in.ImageMime != "" {
		meta.Set("mimeType", in.ImageMime)
	}
	return Result{
		Kind:        catalog.KindImage,
		Preview:     "Image",
		Fingerprint: BytesFingerprint(in.Image),
		Metadata:    meta,
		Derivations: []catalog.JobKind{catalog.JobThumbnail},
		PrimaryName: "primary" + ext,
	}
}

func classifyFile(path string) (Result, error) {
	fingerprint, err := FileFingerprint(path)
	if err != nil {
		return Result{}, err
	}
	base := filepath.Base(path)
	subkind := FileSubkind(path)
	meta := catalog.Metadata{}
	meta.Set("filename", base)
	meta.Set("originalPath", path)

	result := Result{
		Kind:        catalog.KindFile,
		Subkind:     subkind,
		Preview:     base,
		Fingerprint: fingerprint,
		Metadata:    meta,
		PrimaryName: "primary" + strings.ToLower(filepath.Ext(path)),
	}
	switch subkind {
	case catalog.SubkindImage, catalog.SubkindVideo, catalog.SubkindPDF:
		result.Derivations = []catalog.JobKind{catalog.JobThumbnail}
	case catalog.SubkindCode:
		meta.Set("source", "code")
		meta.Set("language", strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
	}
	return result, nil
}

func classifyHTML(in Input) Result {
	plain := in.Text
	if strings.TrimSpace(plain) == "" {
		plain = HTMLToText(in.HTML)
	}
	// Markup without substance beyond its text projection is just text.
	if !HasMarkup(in.HTML) {
		return classifyText(plain)
	}
	return Result{
		Kind:        catalog.KindHTML,
		Preview:     Preview(plain),
		Fingerprint: TextFingerprint(plain),
		Metadata:    catalog.Metadata{},
		PrimaryName: "primary.html",
	}
}

func classifyText(text string) Result {
	if target, ok := singleURL(text); ok {
		return classifyURL(target)
	}
	result := Result{
		Kind:        catalog.KindText,
		Preview:     Preview(text),
		Fingerprint: TextFingerprint(text),
		Metadata:    catalog.Metadata{},
		PrimaryName: "primary.txt",
	}
	if subtype, ok := DetectJSONSubtype(text); ok {
		result.JSONSubtype = subtype
		result.PrimaryName = "primary.json"
	} else if DetectCode(text) {
		result.Metadata.Set("source", "code")
	}
	return result
}

func classifyURL(target *url.URL) Result {
	meta := catalog.Metadata{}
	meta.Set("url", target.String())
	meta.Set("host", target.Hostname())

	result := Result{
		Kind:        catalog.KindURL,
		Preview:     Preview(target.String()),
		Fingerprint: TextFingerprint(target.String()),
		Metadata:    meta,
		PrimaryName: "primary.txt",
	}
	if isVideoPlatformHost(target.Host) {
		result.VideoURL = true
		result.Derivations = []catalog.JobKind{catalog.JobVideoFetch}
		meta.Set("source", "youtube")
	}
	return result
}

// singleURL reports whether text is exactly one http(s) URL with no
// surrounding content.
func singleURL(text string) (*url.URL, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || strings.ContainsAny(trimmed, " \t\n\r") {
		return nil, false
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		return nil, false
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" {
		return nil, false
	}
	return parsed, true
}

func extensionForMime(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/png", "":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
			return exts[0]
		}
		return ".bin"
	}
}
