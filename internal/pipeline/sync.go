// Package pipeline turns one source's remote listing into upserted Video/
// Page rows and then drives each non-terminal row through its per-task
// status-word advancement, grounded on the teacher's internal/pipeline/core
// orchestrator and internal/ingestor enumeration flow.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vidsyncd/vidsyncd/internal/adapters"
	"github.com/vidsyncd/vidsyncd/internal/concurrency"
	"github.com/vidsyncd/vidsyncd/internal/models"
	"github.com/vidsyncd/vidsyncd/internal/platform"
	"github.com/vidsyncd/vidsyncd/internal/repository"
	"github.com/vidsyncd/vidsyncd/internal/scheduler"
)

// sourceRow is the minimal view Service needs of any of the five source
// discriminants, satisfied automatically by every models.SourceXxx via the
// promoted SourceCommon/BaseModel accessors.
type sourceRow interface {
	GetID() models.ULID
	GetDisplayName() string
	GetLatestRowAt() *models.Time
	GetBasePath() string
	GetFilter() models.KeywordFilter
	GetOptions() models.DownloadOptions
	GetScanDeletedVideos() bool
	BumpWatermark(models.Time)
}

// SourceRepos bundles the five per-discriminant repositories Service needs
// to resolve a job's (TargetType, TargetID) pair into a concrete row.
type SourceRepos struct {
	Favorite   repository.SourceFavoriteRepository
	Collection repository.SourceCollectionRepository
	Submission repository.SourceSubmissionRepository
	WatchLater repository.SourceWatchLaterRepository
	Bangumi    repository.SourceBangumiRepository
}

// Service performs the per-source enumerate → filter → upsert → dispatch
// pass and satisfies scheduler.SourceSyncer, so the job runner can drive it
// without importing this package's implementation details beyond the
// interface scheduler itself declares.
type Service struct {
	registry      *adapters.Registry
	client        *platform.Client
	repos         SourceRepos
	videoRepo     repository.VideoRepository
	videoPipeline *VideoPipeline
	videoLimit    int
	logger        *slog.Logger
}

// NewService wires a sync Service. videoLimit bounds how many videos of one
// source run through the pipeline concurrently (spec's "4 videos/source").
func NewService(registry *adapters.Registry, client *platform.Client, repos SourceRepos, videoRepo repository.VideoRepository, videoPipeline *VideoPipeline, videoLimit int) *Service {
	if videoLimit < 1 {
		videoLimit = 1
	}
	return &Service{
		registry:      registry,
		client:        client,
		repos:         repos,
		videoRepo:     videoRepo,
		videoPipeline: videoPipeline,
		videoLimit:    videoLimit,
		logger:        slog.Default(),
	}
}

// WithLogger sets a custom logger.
func (s *Service) WithLogger(logger *slog.Logger) *Service {
	s.logger = logger
	return s
}

// Sync implements scheduler.SourceSyncer.
func (s *Service) Sync(ctx context.Context, sourceType models.SourceType, sourceID models.ULID) (scheduler.SyncStats, error) {
	var stats scheduler.SyncStats

	row, err := s.lookupSource(ctx, sourceType, sourceID)
	if err != nil {
		return stats, fmt.Errorf("pipeline: resolving source: %w", err)
	}
	adapter, err := s.registry.Get(sourceType)
	if err != nil {
		return stats, err
	}

	scanDeleted := row.GetScanDeletedVideos()
	watermark := row.GetLatestRowAt()
	if scanDeleted {
		// A deletion sweep needs every remote key still live, not just the
		// ones newer than the last watermark, so the cut-off is bypassed
		// for this pass.
		watermark = nil
	}

	var (
		filterStats adapters.FilterStats
		maxSeen     models.Time
		sawMax      bool
		seenKeys    []string
		toUpsert    []*models.Video
	)

	collect := func(info models.VideoInfo) error {
		if !sawMax || info.PublishAt.After(maxSeen) {
			maxSeen = info.PublishAt
			sawMax = true
		}
		seenKeys = append(seenKeys, info.RemoteKey)
		toUpsert = append(toUpsert, s.toVideo(row, sourceType, sourceID, info))
		return nil
	}
	filtered := adapters.FilteringCallback(row.GetFilter(), &filterStats, collect)

	if err := adapter.Enumerate(ctx, s.client, row, watermark, filtered); err != nil {
		return stats, err
	}
	stats.Enumerated = filterStats.Accepted + filterStats.Rejected

	for _, v := range toUpsert {
		if err := s.videoRepo.Upsert(ctx, v); err != nil {
			s.logger.Error("upserting video",
				slog.String("remote_key", v.RemoteKey), slog.Any("error", err))
			continue
		}
		stats.Upserted++
	}

	if scanDeleted && len(seenKeys) > 0 {
		if n, err := s.videoRepo.MarkMissingDeleted(ctx, sourceType, sourceID, seenKeys); err != nil {
			s.logger.Error("marking missing videos deleted", slog.Any("error", err))
		} else if n > 0 {
			s.logger.Info("marked videos deleted", slog.Int64("count", n))
		}
	}

	if sawMax {
		row.BumpWatermark(maxSeen)
		if bumped := row.GetLatestRowAt(); bumped != nil {
			if err := s.persistWatermark(ctx, sourceType, sourceID, *bumped); err != nil {
				s.logger.Error("persisting watermark", slog.Any("error", err))
			}
		}
	}

	pending, err := s.videoRepo.GetNonTerminal(ctx, sourceType, sourceID)
	if err != nil {
		return stats, fmt.Errorf("pipeline: listing non-terminal videos: %w", err)
	}

	taskCtx := models.WithDownloadOptions(ctx, row.GetOptions())
	var mu sync.Mutex
	riskHit := false
	errs := concurrency.ForEachTolerant(taskCtx, s.videoLimit, pending, func(ctx context.Context, v *models.Video) error {
		mu.Lock()
		stop := riskHit
		mu.Unlock()
		if stop {
			return nil
		}
		err := s.videoPipeline.Run(ctx, s.client, v)
		mu.Lock()
		if err != nil {
			stats.Failed++
			if models.KindOf(err) == models.KindRiskControl {
				riskHit = true
			}
		} else {
			stats.Dispatched++
		}
		mu.Unlock()
		return err
	})

	// A risk-control response aborts this source's remaining work outright;
	// siblings already dispatched in this pass are left as-is, and nothing
	// further is attempted until the next scheduled tick.
	for _, err := range errs {
		if models.KindOf(err) == models.KindRiskControl {
			return stats, err
		}
	}
	return stats, nil
}

func (s *Service) lookupSource(ctx context.Context, sourceType models.SourceType, id models.ULID) (sourceRow, error) {
	switch sourceType {
	case models.SourceTypeFavorite:
		return s.repos.Favorite.GetByID(ctx, id)
	case models.SourceTypeCollection:
		return s.repos.Collection.GetByID(ctx, id)
	case models.SourceTypeSubmission:
		return s.repos.Submission.GetByID(ctx, id)
	case models.SourceTypeWatchLater:
		return s.repos.WatchLater.GetByID(ctx, id)
	case models.SourceTypeBangumi:
		return s.repos.Bangumi.GetByID(ctx, id)
	default:
		return nil, fmt.Errorf("pipeline: unknown source type %q", sourceType)
	}
}

func (s *Service) persistWatermark(ctx context.Context, sourceType models.SourceType, id models.ULID, seen models.Time) error {
	switch sourceType {
	case models.SourceTypeFavorite:
		return s.repos.Favorite.UpdateWatermark(ctx, id, seen)
	case models.SourceTypeCollection:
		return s.repos.Collection.UpdateWatermark(ctx, id, seen)
	case models.SourceTypeSubmission:
		return s.repos.Submission.UpdateWatermark(ctx, id, seen)
	case models.SourceTypeWatchLater:
		return s.repos.WatchLater.UpdateWatermark(ctx, id, seen)
	case models.SourceTypeBangumi:
		return s.repos.Bangumi.UpdateWatermark(ctx, id, seen)
	default:
		return fmt.Errorf("pipeline: unknown source type %q", sourceType)
	}
}

func (s *Service) toVideo(row sourceRow, sourceType models.SourceType, sourceID models.ULID, info models.VideoInfo) *models.Video {
	return &models.Video{
		SourceRef:  models.SourceRef{Type: sourceType, ID: sourceID},
		RemoteKey:  info.RemoteKey,
		Title:      info.Title,
		UpperID:    info.UpperID,
		UpperName:  info.UpperName,
		PublishAt:  info.PublishAt,
		CoverURL:   info.CoverURL,
		Category:   info.Category,
		Path:       videoDirPath(row.GetBasePath(), info),
		SinglePage: info.Category != models.CategoryMultiPart,
		Tags:       models.StringSlice(info.Tags),
	}
}

// videoDirPath computes a video's directory relative to its source's base
// path: a sanitized "title [remote_key]" leaf, since the remote key alone
// is unreadable and the title alone can collide or change.
func videoDirPath(basePath string, info models.VideoInfo) string {
	leaf := sanitizePathSegment(fmt.Sprintf("%s [%s]", info.Title, info.RemoteKey))
	return filepath.Join(basePath, leaf)
}

var pathSegmentReplacer = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
	"\"", "_", "<", "_", ">", "_", "|", "_",
)

func sanitizePathSegment(s string) string {
	s = pathSegmentReplacer.Replace(strings.TrimSpace(s))
	if s == "" {
		return "untitled"
	}
	return s
}
