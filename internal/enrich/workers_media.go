package enrich

import (
	"context"
	"os"
	"path/filepath"

	"clipspace/internal/blob"
	"clipspace/internal/catalog"
	"clipspace/internal/extern"
	"clipspace/internal/extern/mediatool"
)

const thumbnailMaxDim = 512

// ThumbnailWorker renders a small preview image: resized copy for images, a
// poster frame for videos, a page-one render for PDFs.
type ThumbnailWorker struct {
	tools *mediatool.Toolset
}

func NewThumbnailWorker(tools *mediatool.Toolset) *ThumbnailWorker {
	return &ThumbnailWorker{tools: tools}
}

func (w *ThumbnailWorker) Kind() catalog.JobKind { return catalog.JobThumbnail }

func (w *ThumbnailWorker) Run(ctx context.Context, task *Task) ([]Followup, error) {
	item := task.Item
	src, err := task.Blobs().Path(item.Body.Primary)
	if err != nil {
		return nil, err
	}

	ref := blob.Ref(item.ID, "thumbnail.png")
	if _, err := task.Blobs().ItemDir(item.ID); err != nil {
		return nil, err
	}
	out, err := task.Blobs().Path(ref)
	if err != nil {
		return nil, err
	}

	var posterRef string
	switch {
	case item.Kind == catalog.KindImage || item.Subkind == catalog.SubkindImage:
		err = w.tools.ResizeImage(ctx, src, out, thumbnailMaxDim)
	case item.Subkind == catalog.SubkindVideo:
		posterRef = blob.Ref(item.ID, "poster.png")
		var poster string
		poster, err = task.Blobs().Path(posterRef)
		if err != nil {
			return nil, err
		}
		if err = w.tools.PosterFrame(ctx, src, poster); err == nil {
			err = w.tools.ResizeImage(ctx, poster, out, thumbnailMaxDim)
		}
	case item.Subkind == catalog.SubkindPDF:
		// The page renderer handles file URLs, so PDFs reuse the capture
		// path rather than growing a dedicated rasterizer.
		err = w.tools.CapturePage(ctx, "file://"+src, out)
	default:
		return nil, extern.Wrap(extern.ErrValidation, "enrich", "thumbnail", "item has no visual representation", nil)
	}
	if err != nil {
		return nil, err
	}

	_, err = task.Store().Patch(ctx, item.ID, func(it *catalog.Item) error {
		it.Body.Thumbnail = ref
		if posterRef != "" {
			it.Body.PosterFrame = posterRef
		}
		return nil
	})
	return nil, err
}

// ExtractAudioWorker strips the audio track out of a video item so the
// transcription chain can run on it.
type ExtractAudioWorker struct {
	tools *mediatool.Toolset
}

func NewExtractAudioWorker(tools *mediatool.Toolset) *ExtractAudioWorker {
	return &ExtractAudioWorker{tools: tools}
}

func (w *ExtractAudioWorker) Kind() catalog.JobKind { return catalog.JobExtractAudio }

func (w *ExtractAudioWorker) Run(ctx context.Context, task *Task) ([]Followup, error) {
	item := task.Item
	src, err := task.Blobs().Path(item.Body.Primary)
	if err != nil {
		return nil, err
	}
	ref := blob.Ref(item.ID, "audio.mp3")
	if _, err := task.Blobs().ItemDir(item.ID); err != nil {
		return nil, err
	}
	out, err := task.Blobs().Path(ref)
	if err != nil {
		return nil, err
	}

	err = w.tools.ExtractAudio(ctx, src, out, func(fraction float64) {
		task.Progress(ctx, fraction)
	})
	if err != nil {
		_ = task.Blobs().Remove(ref)
		return nil, err
	}

	_, err = task.Store().Patch(ctx, item.ID, func(it *catalog.Item) error {
		it.Body.Audio = ref
		it.Metadata.Set("audioPath", ref)
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Transcription consumes the extracted track; the payload carries the
	// language hint through unchanged.
	return []Followup{{Kind: catalog.JobTranscribe, Payload: task.Job.Payload}}, nil
}

// VideoFetchWorker downloads a platform video URL and converts the item into
// a local video file.
type VideoFetchWorker struct {
	tools *mediatool.Toolset
}

func NewVideoFetchWorker(tools *mediatool.Toolset) *VideoFetchWorker {
	return &VideoFetchWorker{tools: tools}
}

func (w *VideoFetchWorker) Kind() catalog.JobKind { return catalog.JobVideoFetch }

func (w *VideoFetchWorker) Run(ctx context.Context, task *Task) ([]Followup, error) {
	item := task.Item
	rawURL := item.Metadata.String("url")
	if rawURL == "" {
		return nil, extern.Wrap(extern.ErrValidation, "enrich", "video_fetch", "item carries no url", nil)
	}

	dir, err := task.Blobs().ItemDir(item.ID)
	if err != nil {
		return nil, err
	}
	ref := blob.Ref(item.ID, "video.mp4")
	target := filepath.Join(dir, "video.mp4")

	_, _ = task.Store().Patch(ctx, item.ID, func(it *catalog.Item) error {
		it.Metadata.Set("downloadStatus", "downloading")
		return nil
	})
	err = w.tools.DownloadVideo(ctx, rawURL, target, func(fraction float64) {
		task.Progress(ctx, fraction)
	})
	if err != nil {
		_ = task.Blobs().Remove(ref)
		_, _ = task.Store().Patch(context.WithoutCancel(ctx), item.ID, func(it *catalog.Item) error {
			it.Metadata.Set("downloadStatus", "error")
			return nil
		})
		return nil, err
	}
	if _, statErr := os.Stat(target); statErr != nil {
		return nil, extern.Wrap(extern.ErrTool, "enrich", "video_fetch", "download produced no file", statErr)
	}

	_, err = task.Store().Patch(ctx, item.ID, func(it *catalog.Item) error {
		it.Kind = catalog.KindFile
		it.Subkind = catalog.SubkindVideo
		it.Body.Primary = ref
		it.Metadata.Set("filename", "video.mp4")
		it.Metadata.Set("downloadStatus", "complete")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return []Followup{{Kind: catalog.JobThumbnail}}, nil
}
