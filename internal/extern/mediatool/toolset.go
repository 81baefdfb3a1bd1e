package mediatool

import (
	"context"
	"fmt"
	"strconv"
)

// Toolset bundles the configured external binaries behind typed operations.
type Toolset struct {
	media      *Runner
	download   *Runner
	screenshot *Runner
}

// NewToolset wires the three binaries used by derivation workers.
func NewToolset(mediaBinary, downloadBinary, screenshotBinary string, opts ...Option) *Toolset {
	return &Toolset{
		media:      NewRunner(mediaBinary, opts...),
		download:   NewRunner(downloadBinary, opts...),
		screenshot: NewRunner(screenshotBinary, opts...),
	}
}

// ResizeImage writes a thumbnail of input capped at maxDim pixels on the
// longest side.
func (t *Toolset) ResizeImage(ctx context.Context, input, output string, maxDim int) error {
	if maxDim <= 0 {
		maxDim = 512
	}
	dim := strconv.Itoa(maxDim)
	scale := fmt.Sprintf("scale='min(%s,iw)':'min(%s,ih)':force_original_aspect_ratio=decrease", dim, dim)
	_, err := t.media.Run(ctx, []string{"-y", "-i", input, "-vf", scale, output}, nil)
	return err
}

// PosterFrame extracts a single frame near the start of a video.
func (t *Toolset) PosterFrame(ctx context.Context, input, output string) error {
	_, err := t.media.Run(ctx, []string{"-y", "-ss", "1", "-i", input, "-frames:v", "1", output}, nil)
	return err
}

// ExtractAudio strips the audio track from a video into an mp3.
func (t *Toolset) ExtractAudio(ctx context.Context, input, output string, progress func(float64)) error {
	args := []string{"-y", "-i", input, "-vn", "-acodec", "libmp3lame", "-q:a", "4", output}
	_, err := t.media.Run(ctx, args, progress)
	return err
}

// DownloadVideo fetches a platform URL into outputTemplate (downloader
// output path template). Progress comes from the tool's percent lines.
func (t *Toolset) DownloadVideo(ctx context.Context, url, outputTemplate string, progress func(float64)) error {
	args := []string{"--newline", "-f", "mp4/bestvideo+bestaudio/best", "-o", outputTemplate, url}
	_, err := t.download.Run(ctx, args, progress)
	return err
}

// CapturePage renders a web page (or local document) to an image file.
func (t *Toolset) CapturePage(ctx context.Context, url, output string) error {
	_, err := t.screenshot.Run(ctx, []string{url, output}, nil)
	return err
}
