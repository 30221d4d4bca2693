package pipeline

import (
	"context"

	"github.com/vidsyncd/vidsyncd/internal/models"
	"github.com/vidsyncd/vidsyncd/internal/platform"
	"github.com/vidsyncd/vidsyncd/internal/storage"
)

// The narrow interfaces below let internal/assets, internal/sidecar, and
// internal/danmaku each implement only the handful of tasks they own,
// rather than forcing one package to satisfy the whole VideoTaskRunner/
// PageTaskRunner surface. NewVideoTaskSet/NewPageTaskSet compose them back
// into the shape VideoPipeline expects.

type PosterFetcher interface {
	FetchPoster(ctx context.Context, client *platform.Client, video *models.Video, sandbox *storage.Sandbox) error
}

type VideoNFOGenerator interface {
	GenerateVideoNFO(ctx context.Context, video *models.Video, sandbox *storage.Sandbox) error
}

type UploaderAssetFetcher interface {
	FetchUploaderAsset(ctx context.Context, client *platform.Client, video *models.Video, sandbox *storage.Sandbox) error
}

type TVShowNFOGenerator interface {
	GenerateTVShowNFO(ctx context.Context, video *models.Video, sandbox *storage.Sandbox) error
}

type UploaderMetaGenerator interface {
	GenerateUploaderMeta(ctx context.Context, video *models.Video, sandbox *storage.Sandbox) error
}

type PageLister interface {
	UpsertPages(ctx context.Context, client *platform.Client, video *models.Video) ([]models.PageInfo, error)
}

type ThumbnailFetcher interface {
	FetchThumbnail(ctx context.Context, client *platform.Client, video *models.Video, page *models.Page, sandbox *storage.Sandbox) error
}

type PayloadFetcher interface {
	FetchPayload(ctx context.Context, client *platform.Client, video *models.Video, page *models.Page, sandbox *storage.Sandbox) error
}

type PageNFOGenerator interface {
	GeneratePageNFO(ctx context.Context, video *models.Video, page *models.Page, sandbox *storage.Sandbox) error
}

type DanmakuFetcher interface {
	FetchDanmaku(ctx context.Context, client *platform.Client, video *models.Video, page *models.Page, sandbox *storage.Sandbox) error
}

type SubtitleFetcher interface {
	FetchSubtitles(ctx context.Context, client *platform.Client, video *models.Video, page *models.Page, sandbox *storage.Sandbox) error
}

// videoTaskSet composes the five video-level task providers into
// VideoTaskRunner.
type videoTaskSet struct {
	poster   PosterFetcher
	nfo      VideoNFOGenerator
	uploader uploaderAssetTask
	meta     UploaderMetaGenerator
	pages    PageLister
}

// NewVideoTaskSet wires a VideoTaskRunner from its five task providers.
// uploaderAsset generates the category's uploader art (avatar for plain
// videos) and tvshowNFO generates the bangumi-only tvshow.nfo root, since
// video task 3 ("uploader asset") means different output for the two
// categories rather than being two separate status-word nibbles.
func NewVideoTaskSet(poster PosterFetcher, nfo VideoNFOGenerator, uploaderAsset UploaderAssetFetcher, tvshowNFO TVShowNFOGenerator, meta UploaderMetaGenerator, pages PageLister) VideoTaskRunner {
	return &videoTaskSet{
		poster:   poster,
		nfo:      nfo,
		uploader: uploaderAssetTask{avatar: uploaderAsset, tvshow: tvshowNFO},
		meta:     meta,
		pages:    pages,
	}
}

// audioOnly reports whether the source's options restrict this sync to
// audio-only m4a payloads, in which case every companion sidecar (cover,
// NFO, uploader asset/meta, danmaku, subtitles) is skipped rather than
// fetched: only the page payload task and page discovery still run.
func audioOnly(ctx context.Context) bool {
	return models.DownloadOptionsFromContext(ctx).AudioOnlyM4AOnly
}

func (s *videoTaskSet) FetchPoster(ctx context.Context, client *platform.Client, video *models.Video, sandbox *storage.Sandbox) error {
	if audioOnly(ctx) {
		return models.ErrPolicySkipped
	}
	return s.poster.FetchPoster(ctx, client, video, sandbox)
}

func (s *videoTaskSet) GenerateVideoNFO(ctx context.Context, video *models.Video, sandbox *storage.Sandbox) error {
	if audioOnly(ctx) {
		return models.ErrPolicySkipped
	}
	return s.nfo.GenerateVideoNFO(ctx, video, sandbox)
}

func (s *videoTaskSet) FetchUploaderAsset(ctx context.Context, client *platform.Client, video *models.Video, sandbox *storage.Sandbox) error {
	if audioOnly(ctx) {
		return models.ErrPolicySkipped
	}
	return s.uploader.run(ctx, client, video, sandbox)
}

func (s *videoTaskSet) GenerateUploaderMeta(ctx context.Context, video *models.Video, sandbox *storage.Sandbox) error {
	if audioOnly(ctx) {
		return models.ErrPolicySkipped
	}
	return s.meta.GenerateUploaderMeta(ctx, video, sandbox)
}

func (s *videoTaskSet) UpsertPages(ctx context.Context, client *platform.Client, video *models.Video) ([]models.PageInfo, error) {
	return s.pages.UpsertPages(ctx, client, video)
}

type uploaderAssetTask struct {
	avatar UploaderAssetFetcher
	tvshow TVShowNFOGenerator
}

func (t uploaderAssetTask) run(ctx context.Context, client *platform.Client, video *models.Video, sandbox *storage.Sandbox) error {
	if video.Category == models.CategoryBangumi {
		return t.tvshow.GenerateTVShowNFO(ctx, video, sandbox)
	}
	return t.avatar.FetchUploaderAsset(ctx, client, video, sandbox)
}

// pageTaskSet composes the five page-level task providers into
// PageTaskRunner.
type pageTaskSet struct {
	thumbnail ThumbnailFetcher
	payload   PayloadFetcher
	nfo       PageNFOGenerator
	danmaku   DanmakuFetcher
	subtitles SubtitleFetcher
}

// NewPageTaskSet wires a PageTaskRunner from its five task providers.
func NewPageTaskSet(thumbnail ThumbnailFetcher, payload PayloadFetcher, nfo PageNFOGenerator, danmaku DanmakuFetcher, subtitles SubtitleFetcher) PageTaskRunner {
	return &pageTaskSet{
		thumbnail: thumbnail,
		payload:   payload,
		nfo:       nfo,
		danmaku:   danmaku,
		subtitles: subtitles,
	}
}

func (s *pageTaskSet) FetchThumbnail(ctx context.Context, client *platform.Client, video *models.Video, page *models.Page, sandbox *storage.Sandbox) error {
	if audioOnly(ctx) {
		return models.ErrPolicySkipped
	}
	return s.thumbnail.FetchThumbnail(ctx, client, video, page, sandbox)
}

// FetchPayload always runs: it's the one task audio_only_m4a_only narrows
// rather than skips (selectAudioStream restricts it to the mp4a track).
func (s *pageTaskSet) FetchPayload(ctx context.Context, client *platform.Client, video *models.Video, page *models.Page, sandbox *storage.Sandbox) error {
	return s.payload.FetchPayload(ctx, client, video, page, sandbox)
}

func (s *pageTaskSet) GeneratePageNFO(ctx context.Context, video *models.Video, page *models.Page, sandbox *storage.Sandbox) error {
	if audioOnly(ctx) {
		return models.ErrPolicySkipped
	}
	return s.nfo.GeneratePageNFO(ctx, video, page, sandbox)
}

func (s *pageTaskSet) FetchDanmaku(ctx context.Context, client *platform.Client, video *models.Video, page *models.Page, sandbox *storage.Sandbox) error {
	if audioOnly(ctx) {
		return models.ErrPolicySkipped
	}
	return s.danmaku.FetchDanmaku(ctx, client, video, page, sandbox)
}

func (s *pageTaskSet) FetchSubtitles(ctx context.Context, client *platform.Client, video *models.Video, page *models.Page, sandbox *storage.Sandbox) error {
	if audioOnly(ctx) {
		return models.ErrPolicySkipped
	}
	return s.subtitles.FetchSubtitles(ctx, client, video, page, sandbox)
}
