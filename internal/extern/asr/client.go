// Package asr wraps an OpenAI-compatible audio transcription endpoint.
package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"clipspace/internal/extern"
)

const defaultHTTPTimeout = 10 * time.Minute

// Config captures transcription provider settings.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Language       string
	TimeoutSeconds int
}

// Segment is one timed span of the transcript.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the provider's output: full text plus timed segments.
type Transcript struct {
	Text     string    `json:"text"`
	Language string    `json:"language,omitempty"`
	Duration float64   `json:"duration,omitempty"`
	Segments []Segment `json:"segments,omitempty"`
}

// Client calls the transcription endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a transcription client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			Language:       strings.TrimSpace(cfg.Language),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = "https://api.openai.com/v1/audio/transcriptions"
	}
	if client.cfg.Model == "" {
		client.cfg.Model = "whisper-1"
	}
	return client
}

// Transcribe uploads the audio file and returns the transcript. The language
// hint overrides the configured default when non-empty.
func (c *Client) Transcribe(ctx context.Context, audioPath, languageHint string) (*Transcript, error) {
	if c.cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: asr api key required", extern.ErrAuth)
	}
	audioPath = strings.TrimSpace(audioPath)
	if audioPath == "" {
		return nil, fmt.Errorf("%w: audio path required", extern.ErrValidation)
	}
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, extern.Wrap(extern.ErrStorage, "asr", "transcribe", "open audio", err)
	}
	defer f.Close()

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("asr request: build form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, extern.Wrap(extern.ErrStorage, "asr", "transcribe", "read audio", err)
	}
	fields := map[string]string{
		"model":           c.cfg.Model,
		"response_format": "verbose_json",
	}
	language := strings.TrimSpace(languageHint)
	if language == "" {
		language = c.cfg.Language
	}
	if language != "" {
		fields["language"] = language
	}
	for key, value := range fields {
		if err := form.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("asr request: write field %s: %w", key, err)
		}
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("asr request: close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, &body)
	if err != nil {
		return nil, fmt.Errorf("asr request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError("asr request", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: asr request: read body: %v", extern.ErrProvider, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("asr request", resp.StatusCode, payload)
	}

	var transcript Transcript
	if err := json.Unmarshal(payload, &transcript); err != nil {
		return nil, fmt.Errorf("%w: asr request: decode response: %v", extern.ErrProvider, err)
	}
	transcript.Text = strings.TrimSpace(transcript.Text)
	if transcript.Text == "" {
		return nil, fmt.Errorf("%w: asr request: empty transcript", extern.ErrProvider)
	}
	for i := range transcript.Segments {
		transcript.Segments[i].Text = strings.TrimSpace(transcript.Segments[i].Text)
	}
	return &transcript, nil
}

func classifyTransportError(op string, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %s: %v", extern.ErrCancelled, op, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s: %v", extern.ErrTimeout, op, err)
	default:
		return fmt.Errorf("%w: %s: %v", extern.ErrProvider, op, err)
	}
}

func statusError(op string, status int, body []byte) error {
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s: http %d: %s", extern.ErrAuth, op, status, snippet)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s: http %d: %s", extern.ErrRateLimited, op, status, snippet)
	default:
		return fmt.Errorf("%w: %s: http %d: %s", extern.ErrProvider, op, status, snippet)
	}
}
