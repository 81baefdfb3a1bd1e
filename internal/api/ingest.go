package api

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"clipspace/internal/catalog"
	"clipspace/internal/extern"
	"clipspace/internal/ingest"
)

// AddOptions carries per-call ingest parameters from the UI.
type AddOptions struct {
	// SpaceID overrides the active space. Nil means "use the active space";
	// a pointer to "" forces unclassified.
	SpaceID   *string `json:"spaceId,omitempty"`
	SourceApp string  `json:"sourceApp,omitempty"`
	SourceURL string  `json:"sourceUrl,omitempty"`
}

func (o AddOptions) toIngest() ingest.Options {
	opts := ingest.Options{SpaceID: o.SpaceID}
	if o.SourceApp != "" || o.SourceURL != "" {
		opts.Context = &catalog.CaptureContext{SourceApp: o.SourceApp, SourceURL: o.SourceURL}
	}
	return opts
}

func ingestReceipt(res *ingest.Result, err error) IngestReceipt {
	receipt := IngestReceipt{Envelope: Outcome(err)}
	if res != nil {
		receipt.ID = res.ID
		receipt.Kind = string(res.Kind)
		receipt.Duplicate = res.Duplicate
		receipt.VideoURL = res.VideoURL
	}
	return receipt
}

// AddText ingests plain text from the clipboard.
func (s *Service) AddText(ctx context.Context, text string, opts AddOptions) IngestReceipt {
	return ingestReceipt(s.ingest.AddText(ctx, text, opts.toIngest()))
}

// AddHTML ingests an HTML clipboard flavor alongside its plain-text fallback.
func (s *Service) AddHTML(ctx context.Context, html, plain string, opts AddOptions) IngestReceipt {
	return ingestReceipt(s.ingest.AddHTML(ctx, html, plain, opts.toIngest()))
}

// AddImage ingests image bytes supplied as a data URL.
func (s *Service) AddImage(ctx context.Context, dataURL string, opts AddOptions) IngestReceipt {
	mimeType, data, err := decodeDataURL(dataURL)
	if err != nil {
		return IngestReceipt{Envelope: Outcome(err)}
	}
	return ingestReceipt(s.ingest.AddImage(ctx, data, mimeType, opts.toIngest()))
}

// AddFile ingests a file path, copying the file into the blob store.
func (s *Service) AddFile(ctx context.Context, path string, opts AddOptions) IngestReceipt {
	return ingestReceipt(s.ingest.AddFile(ctx, path, opts.toIngest()))
}

// AddURL ingests a URL string.
func (s *Service) AddURL(ctx context.Context, rawURL string, opts AddOptions) IngestReceipt {
	return ingestReceipt(s.ingest.AddURL(ctx, rawURL, opts.toIngest()))
}

// AddAIConversation ingests an exported AI conversation JSON payload.
func (s *Service) AddAIConversation(ctx context.Context, payload string, opts AddOptions) IngestReceipt {
	return ingestReceipt(s.ingest.AddAIConversation(ctx, payload, opts.toIngest()))
}

// AddGeneratedDocument ingests markdown produced by an AI collaborator.
func (s *Service) AddGeneratedDocument(ctx context.Context, markdown string, opts AddOptions) IngestReceipt {
	return ingestReceipt(s.ingest.AddGeneratedDocument(ctx, markdown, opts.toIngest()))
}

// MonitorSettings carries the initial configuration of a web monitor.
type MonitorSettings struct {
	IntervalMinutes int    `json:"intervalMinutes,omitempty"`
	AIEnabled       bool   `json:"aiEnabled,omitempty"`
	WatchPrompt     string `json:"watchPrompt,omitempty"`
	IgnorePrompt    string `json:"ignorePrompt,omitempty"`
}

// AddWebMonitor creates a web-monitor item in the system monitor space and
// seeds its baseline check.
func (s *Service) AddWebMonitor(ctx context.Context, rawURL string, settings MonitorSettings, opts AddOptions) IngestReceipt {
	monitorOpts := ingest.MonitorOptions{
		IntervalMinutes: settings.IntervalMinutes,
		AIEnabled:       settings.AIEnabled,
		WatchPrompt:     settings.WatchPrompt,
		IgnorePrompt:    settings.IgnorePrompt,
	}
	return ingestReceipt(s.ingest.AddWebMonitor(ctx, rawURL, monitorOpts, opts.toIngest()))
}

// decodeDataURL splits a "data:<mime>;base64,<payload>" URL into its media
// type and decoded bytes.
func decodeDataURL(dataURL string) (string, []byte, error) {
	const prefix = "data:"
	if !strings.HasPrefix(dataURL, prefix) {
		return "", nil, fmt.Errorf("%w: not a data URL", extern.ErrValidation)
	}
	meta, payload, found := strings.Cut(dataURL[len(prefix):], ",")
	if !found {
		return "", nil, fmt.Errorf("%w: data URL missing payload", extern.ErrValidation)
	}
	mimeType, _, _ := strings.Cut(meta, ";")
	if mimeType == "" {
		mimeType = "text/plain"
	}
	if !strings.Contains(meta, "base64") {
		return mimeType, []byte(payload), nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: data URL payload: %v", extern.ErrValidation, err)
	}
	return mimeType, data, nil
}
