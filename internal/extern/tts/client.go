// Package tts wraps an OpenAI-compatible speech synthesis endpoint.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"clipspace/internal/extern"
)

const (
	defaultHTTPTimeout = 2 * time.Minute
	// maxInputChars is the provider-side cap per synthesis request.
	maxInputChars = 4096
)

// Config captures speech provider settings.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	DefaultVoice   string
	TimeoutSeconds int
}

// Client calls the speech endpoint.
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

// NewClient constructs a speech client.
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
			DefaultVoice:   strings.TrimSpace(cfg.DefaultVoice),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = "https://api.openai.com/v1/audio/speech"
	}
	if client.cfg.Model == "" {
		client.cfg.Model = "tts-1"
	}
	if client.cfg.DefaultVoice == "" {
		client.cfg.DefaultVoice = "alloy"
	}
	return client
}

// Synthesize converts text to speech and returns the audio bytes (mp3).
// Long inputs are synthesized in chunks and concatenated.
func (c *Client) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if c.cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: tts api key required", extern.ErrAuth)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: text required", extern.ErrValidation)
	}
	if voice = strings.TrimSpace(voice); voice == "" {
		voice = c.cfg.DefaultVoice
	}

	var audio bytes.Buffer
	for _, chunk := range splitForSynthesis(text) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: tts: %v", extern.ErrCancelled, err)
		}
		part, err := c.synthesizeOnce(ctx, chunk, voice)
		if err != nil {
			return nil, err
		}
		audio.Write(part)
	}
	return audio.Bytes(), nil
}

func (c *Client) synthesizeOnce(ctx context.Context, text, voice string) ([]byte, error) {
	payload, err := json.Marshal(map[string]string{
		"model":           c.cfg.Model,
		"input":           text,
		"voice":           voice,
		"response_format": "mp3",
	})
	if err != nil {
		return nil, fmt.Errorf("tts request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("tts request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			return nil, fmt.Errorf("%w: tts request: %v", extern.ErrCancelled, err)
		case errors.Is(err, context.DeadlineExceeded):
			return nil, fmt.Errorf("%w: tts request: %v", extern.ErrTimeout, err)
		default:
			return nil, fmt.Errorf("%w: tts request: %v", extern.ErrProvider, err)
		}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: tts request: read body: %v", extern.ErrProvider, err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, fmt.Errorf("%w: tts request: http %d: %s", extern.ErrAuth, resp.StatusCode, snippet)
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, fmt.Errorf("%w: tts request: http %d: %s", extern.ErrRateLimited, resp.StatusCode, snippet)
		default:
			return nil, fmt.Errorf("%w: tts request: http %d: %s", extern.ErrProvider, resp.StatusCode, snippet)
		}
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: tts request: empty audio", extern.ErrProvider)
	}
	return body, nil
}

// splitForSynthesis breaks text into provider-sized chunks on paragraph, then
// sentence, then hard boundaries.
func splitForSynthesis(text string) []string {
	if len(text) <= maxInputChars {
		return []string{text}
	}
	var chunks []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	for _, paragraph := range strings.Split(text, "\n\n") {
		if len(paragraph) > maxInputChars {
			flush()
			chunks = append(chunks, hardSplit(paragraph)...)
			continue
		}
		if current.Len()+len(paragraph)+2 > maxInputChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(paragraph)
	}
	flush()
	return chunks
}

func hardSplit(text string) []string {
	var chunks []string
	for len(text) > maxInputChars {
		cut := maxInputChars
		if idx := strings.LastIndex(text[:cut], ". "); idx > maxInputChars/2 {
			cut = idx + 2
		}
		chunks = append(chunks, strings.TrimSpace(text[:cut]))
		text = text[cut:]
	}
	if trimmed := strings.TrimSpace(text); trimmed != "" {
		chunks = append(chunks, trimmed)
	}
	return chunks
}
