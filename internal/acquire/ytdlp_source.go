package acquire

import (
	"context"
	"strings"

	"github.com/desertthunder/nexus/internal/ytdlp"
)

// YtDlpCatalog adapts a [ytdlp.Client] to [Catalog].
type YtDlpCatalog struct {
	Client *ytdlp.Client
}

// Search implements [Catalog].
func (c YtDlpCatalog) Search(ctx context.Context, query string, limit int) ([]CatalogEntry, error) {
	entries, err := c.Client.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	out := make([]CatalogEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, CatalogEntry{
			ID:           e.ID,
			Title:        e.Title,
			Artist:       firstNonBlank(e.Uploader, e.Channel),
			Duration:     e.Duration,
			ThumbnailURL: bestThumbnail(e.Thumbnails),
		})
	}
	return out, nil
}

// YtDlpDownloader adapts a [ytdlp.Client] to [Downloader].
type YtDlpDownloader struct {
	Client *ytdlp.Client
}

// Download implements [Downloader]. The profile name selects the player client.
func (d YtDlpDownloader) Download(ctx context.Context, req DownloadRequest) (*SourceMetadata, error) {
	info, err := d.Client.Download(ctx, ytdlp.DownloadOptions{
		Reference:    req.Reference,
		OutputDir:    req.OutputDir,
		Stem:         req.Stem,
		PlayerClient: req.Profile.Name,
		UserAgent:    req.Profile.UserAgent,
		Headers:      req.Profile.Headers,
		Cookies:      req.Credentials.Netscape(),
		Progress:     req.Progress,
	})
	if err != nil {
		return nil, err
	}

	ext := info.Ext
	if len(info.RequestedDownloads) > 0 && info.RequestedDownloads[0].Ext != "" {
		ext = info.RequestedDownloads[0].Ext
	}

	return &SourceMetadata{
		Title:    firstNonBlank(info.Track, info.Title),
		Artist:   firstNonBlank(info.Artist, info.Uploader, info.Channel),
		Duration: info.Duration,
		Ext:      ext,
	}, nil
}

// bestThumbnail picks the widest thumbnail, or the last one when none report a width.
func bestThumbnail(thumbs []ytdlp.Thumbnail) string {
	if len(thumbs) == 0 {
		return ""
	}
	best := thumbs[len(thumbs)-1]
	for _, t := range thumbs {
		if t.Width > best.Width {
			best = t
		}
	}
	return best.URL
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
