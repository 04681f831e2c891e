package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/hossain-khan/social-sync/internal/post"
)

// mediaResult pairs an image with the destination media id it was uploaded
// as. ID is empty when the transfer failed.
type mediaResult struct {
	Image post.Image
	ID    string
	Err   error
}

// transferMedia downloads every image from the source and uploads it to the
// destination, each step retried under the engine's policy. A failed image
// does not stop the others.
func (e *Engine) transferMedia(ctx context.Context, sourceID string, images []post.Image) []mediaResult {
	results := make([]mediaResult, 0, len(images))
	for i, img := range images {
		logger := e.logger.With("source_id", sourceID, "image", i+1, "of", len(images))
		id, err := e.transferImage(ctx, img, logger)
		if err != nil {
			logger.Warn("image transfer failed", "error", err)
		} else {
			logger.Debug("image transferred", "media_id", id)
		}
		results = append(results, mediaResult{Image: img, ID: id, Err: err})
	}
	return results
}

type download struct {
	data []byte
	mime string
}

func (e *Engine) transferImage(ctx context.Context, img post.Image, logger *slog.Logger) (string, error) {
	notify := func(err error, d time.Duration) {
		logger.Debug("retrying media step", "error", err, "backoff", d)
	}

	dl, err := Retry(ctx, e.retry, retryableMedia, func(ctx context.Context) (download, error) {
		data, mime, err := e.source.Download(ctx, img)
		return download{data: data, mime: mime}, err
	}, notify)
	if err != nil {
		return "", err
	}
	if dl.mime == "" {
		dl.mime = img.MimeType
	}

	return Retry(ctx, e.retry, retryableMedia, func(ctx context.Context) (string, error) {
		return e.dest.UploadMedia(ctx, dl.data, dl.mime, img.Alt)
	}, notify)
}

// Media calls are idempotent from the ledger's point of view: a duplicate
// upload only leaves an unattached attachment. Everything except content
// rejections is retried.
func retryableMedia(err error) bool {
	return !IsContentError(err)
}

// splitMedia separates transferred media ids from the images that failed.
func splitMedia(results []mediaResult) (ids []string, missing []post.Image) {
	for _, r := range results {
		if r.Err != nil || r.ID == "" {
			missing = append(missing, r.Image)
			continue
		}
		ids = append(ids, r.ID)
	}
	return ids, missing
}
