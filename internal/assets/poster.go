package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/vidsyncd/vidsyncd/internal/ffmpeg"
	"github.com/vidsyncd/vidsyncd/internal/models"
	"github.com/vidsyncd/vidsyncd/internal/platform"
	"github.com/vidsyncd/vidsyncd/internal/storage"
)

const (
	posterFileName    = "poster.jpg"
	thumbnailFileName = "thumb.jpg"
	avatarFileName    = "folder.jpg"

	cardEndpoint = "https://api.bilibili.com/x/web-interface/card"
)

// Fetcher implements the pipeline's remote-artifact task providers: the
// small idempotent image fetches, the uploader card lookup, and (in
// payload.go) the DASH payload download-and-remux.
type Fetcher struct {
	ffmpegPath   string
	prober       *ffmpeg.Prober
	cardEndpoint string
}

// NewFetcher builds a Fetcher that shells out to ffmpegPath for remuxing and,
// when probePath is non-empty, runs every remux output through ffprobe
// before publishing it, so a corrupt stream-copy never reaches the library
// looking like a succeeded task. probePath empty disables the check.
func NewFetcher(ffmpegPath, probePath string) *Fetcher {
	f := &Fetcher{ffmpegPath: ffmpegPath, cardEndpoint: cardEndpoint}
	if probePath != "" {
		f.prober = ffmpeg.NewProber(probePath)
	}
	return f
}

// FetchPoster downloads a video's cover image into its own directory.
func (f *Fetcher) FetchPoster(ctx context.Context, client *platform.Client, video *models.Video, sandbox *storage.Sandbox) error {
	if video.CoverURL == "" {
		return models.NewClassifiedError(models.KindNotFound, fmt.Errorf("assets: video has no cover url"))
	}
	return fetchFile(ctx, client, video.CoverURL, filepath.Join(video.Path, posterFileName), sandbox)
}

// FetchThumbnail downloads one page's own cover image. Single-part videos
// rarely carry a distinct per-page image; multi-part and bangumi listings
// usually do.
func (f *Fetcher) FetchThumbnail(ctx context.Context, client *platform.Client, video *models.Video, page *models.Page, sandbox *storage.Sandbox) error {
	if page.ImageURL == "" {
		return models.NewClassifiedError(models.KindNotFound, fmt.Errorf("assets: page has no thumbnail url"))
	}
	return fetchFile(ctx, client, page.ImageURL, filepath.Join(video.PageDir(page), thumbnailFileName), sandbox)
}

type cardData struct {
	Card struct {
		Face string `json:"face"`
	} `json:"card"`
}

// FetchUploaderAsset resolves the uploader's avatar face URL via the card
// endpoint and downloads it as the video's folder art. Videos don't carry
// the avatar URL directly; only the uploader's numeric mid, so this is the
// one task that needs its own round trip rather than reusing a field
// already on models.Video.
func (f *Fetcher) FetchUploaderAsset(ctx context.Context, client *platform.Client, video *models.Video, sandbox *storage.Sandbox) error {
	if video.UpperID == "" {
		return models.NewClassifiedError(models.KindNotFound, fmt.Errorf("assets: video has no uploader id"))
	}

	resp, err := client.SignedGet(ctx, f.cardEndpoint, url.Values{"mid": {video.UpperID}, "photo": {"false"}})
	if err != nil {
		return models.NewClassifiedError(models.KindNetwork, err)
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(resp.Body)
	if err != nil {
		return err
	}
	var data cardData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return models.NewClassifiedError(models.KindMalformed, err)
	}
	if data.Card.Face == "" {
		return models.NewClassifiedError(models.KindNotFound, fmt.Errorf("assets: uploader card has no avatar"))
	}

	return fetchFile(ctx, client, data.Card.Face, filepath.Join(video.Path, avatarFileName), sandbox)
}
