// Package repository defines data access interfaces for vidsyncd entities.
// All database access goes through these interfaces, enabling easy testing
// and database backend switching.
package repository

import (
	"context"
	"time"

	"github.com/vidsyncd/vidsyncd/internal/models"
)

// SourceFavoriteRepository defines operations for favorite-folder source persistence.
type SourceFavoriteRepository interface {
	Create(ctx context.Context, source *models.SourceFavorite) error
	GetByID(ctx context.Context, id models.ULID) (*models.SourceFavorite, error)
	GetAll(ctx context.Context) ([]*models.SourceFavorite, error)
	GetEnabled(ctx context.Context) ([]*models.SourceFavorite, error)
	GetByFID(ctx context.Context, fid string) (*models.SourceFavorite, error)
	Update(ctx context.Context, source *models.SourceFavorite) error
	Delete(ctx context.Context, id models.ULID) error
	UpdateWatermark(ctx context.Context, id models.ULID, seen models.Time) error
}

// SourceCollectionRepository defines operations for collection (season/series) source persistence.
type SourceCollectionRepository interface {
	Create(ctx context.Context, source *models.SourceCollection) error
	GetByID(ctx context.Context, id models.ULID) (*models.SourceCollection, error)
	GetAll(ctx context.Context) ([]*models.SourceCollection, error)
	GetEnabled(ctx context.Context) ([]*models.SourceCollection, error)
	GetByCollectionID(ctx context.Context, collectionID string, kind models.CollectionKind) (*models.SourceCollection, error)
	Update(ctx context.Context, source *models.SourceCollection) error
	Delete(ctx context.Context, id models.ULID) error
	UpdateWatermark(ctx context.Context, id models.ULID, seen models.Time) error
}

// SourceSubmissionRepository defines operations for uploader-submission source persistence.
type SourceSubmissionRepository interface {
	Create(ctx context.Context, source *models.SourceSubmission) error
	GetByID(ctx context.Context, id models.ULID) (*models.SourceSubmission, error)
	GetAll(ctx context.Context) ([]*models.SourceSubmission, error)
	GetEnabled(ctx context.Context) ([]*models.SourceSubmission, error)
	GetByMID(ctx context.Context, mid string) (*models.SourceSubmission, error)
	Update(ctx context.Context, source *models.SourceSubmission) error
	Delete(ctx context.Context, id models.ULID) error
	UpdateWatermark(ctx context.Context, id models.ULID, seen models.Time) error
}

// SourceWatchLaterRepository defines operations for watch-later queue source persistence.
type SourceWatchLaterRepository interface {
	Create(ctx context.Context, source *models.SourceWatchLater) error
	GetByID(ctx context.Context, id models.ULID) (*models.SourceWatchLater, error)
	GetAll(ctx context.Context) ([]*models.SourceWatchLater, error)
	GetEnabled(ctx context.Context) ([]*models.SourceWatchLater, error)
	GetByOwnerKey(ctx context.Context, ownerKey string) (*models.SourceWatchLater, error)
	Update(ctx context.Context, source *models.SourceWatchLater) error
	Delete(ctx context.Context, id models.ULID) error
	UpdateWatermark(ctx context.Context, id models.ULID, seen models.Time) error
}

// SourceBangumiRepository defines operations for bangumi season source persistence.
type SourceBangumiRepository interface {
	Create(ctx context.Context, source *models.SourceBangumi) error
	GetByID(ctx context.Context, id models.ULID) (*models.SourceBangumi, error)
	GetAll(ctx context.Context) ([]*models.SourceBangumi, error)
	GetEnabled(ctx context.Context) ([]*models.SourceBangumi, error)
	GetBySeasonID(ctx context.Context, seasonID string) (*models.SourceBangumi, error)
	Update(ctx context.Context, source *models.SourceBangumi) error
	Delete(ctx context.Context, id models.ULID) error
	UpdateWatermark(ctx context.Context, id models.ULID, seen models.Time) error
}

// VideoRepository defines operations for video persistence.
type VideoRepository interface {
	Create(ctx context.Context, video *models.Video) error
	// Upsert creates or updates a video keyed on (source_type, source_id, remote_key).
	Upsert(ctx context.Context, video *models.Video) error
	GetByID(ctx context.Context, id models.ULID) (*models.Video, error)
	GetByRemoteKey(ctx context.Context, sourceType models.SourceType, sourceID models.ULID, remoteKey string) (*models.Video, error)
	GetBySource(ctx context.Context, sourceType models.SourceType, sourceID models.ULID) ([]*models.Video, error)
	// GetNonTerminal returns videos whose status word has at least one unfinished nibble.
	GetNonTerminal(ctx context.Context, sourceType models.SourceType, sourceID models.ULID) ([]*models.Video, error)
	Update(ctx context.Context, video *models.Video) error
	UpdateStatus(ctx context.Context, id models.ULID, status models.StatusWord) error
	Delete(ctx context.Context, id models.ULID) error
	// MarkMissingDeleted deletes videos for a source whose remote_key is not in the given set,
	// implementing the configurable deleted-video reconciliation (scan_deleted_videos).
	MarkMissingDeleted(ctx context.Context, sourceType models.SourceType, sourceID models.ULID, seenRemoteKeys []string) (int64, error)
}

// PageRepository defines operations for page (part/episode) persistence.
type PageRepository interface {
	Create(ctx context.Context, page *models.Page) error
	Upsert(ctx context.Context, page *models.Page) error
	GetByID(ctx context.Context, id models.ULID) (*models.Page, error)
	GetByVideoID(ctx context.Context, videoID models.ULID) ([]*models.Page, error)
	GetByVideoAndPID(ctx context.Context, videoID models.ULID, pid int) (*models.Page, error)
	GetNonTerminal(ctx context.Context, videoID models.ULID) ([]*models.Page, error)
	Update(ctx context.Context, page *models.Page) error
	UpdateStatus(ctx context.Context, id models.ULID, status models.StatusWord) error
	Delete(ctx context.Context, id models.ULID) error
	DeleteByVideoID(ctx context.Context, videoID models.ULID) error
}

// CredentialRepository defines operations for credential persistence.
// A daemon normally holds exactly one credential row.
type CredentialRepository interface {
	Create(ctx context.Context, credential *models.Credential) error
	Get(ctx context.Context) (*models.Credential, error)
	Update(ctx context.Context, credential *models.Credential) error
	Delete(ctx context.Context, id models.ULID) error
}

// ConfigKVRepository defines operations for free-form persisted settings.
type ConfigKVRepository interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// JobRepository defines operations for job persistence.
type JobRepository interface {
	Create(ctx context.Context, job *models.Job) error
	GetByID(ctx context.Context, id models.ULID) (*models.Job, error)
	GetAll(ctx context.Context) ([]*models.Job, error)
	GetPending(ctx context.Context) ([]*models.Job, error)
	GetByStatus(ctx context.Context, status models.JobStatus) ([]*models.Job, error)
	GetByType(ctx context.Context, jobType models.JobType) ([]*models.Job, error)
	GetByTargetID(ctx context.Context, targetID models.ULID) ([]*models.Job, error)
	GetRunning(ctx context.Context) ([]*models.Job, error)
	Update(ctx context.Context, job *models.Job) error
	Delete(ctx context.Context, id models.ULID) error
	DeleteCompleted(ctx context.Context, before time.Time) (int64, error)
	AcquireJob(ctx context.Context, workerID string) (*models.Job, error)
	ReleaseJob(ctx context.Context, id models.ULID) error
	FindDuplicatePending(ctx context.Context, jobType models.JobType, targetID models.ULID) (*models.Job, error)
	CreateHistory(ctx context.Context, history *models.JobHistory) error
	GetHistory(ctx context.Context, jobType *models.JobType, offset, limit int) ([]*models.JobHistory, int64, error)
	DeleteHistory(ctx context.Context, before time.Time) (int64, error)
}
