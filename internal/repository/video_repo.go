package repository

import (
	"context"
	"fmt"

	"github.com/vidsyncd/vidsyncd/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// videoRepo implements VideoRepository using GORM.
type videoRepo struct {
	db *gorm.DB
}

// NewVideoRepository creates a new VideoRepository.
func NewVideoRepository(db *gorm.DB) *videoRepo {
	return &videoRepo{db: db}
}

func (r *videoRepo) Create(ctx context.Context, video *models.Video) error {
	if err := r.db.WithContext(ctx).Create(video).Error; err != nil {
		return fmt.Errorf("creating video: %w", err)
	}
	return nil
}

// Upsert creates or updates a video keyed on (source_type, source_id, remote_key),
// preserving the existing status_word and path so a re-seen item doesn't
// re-run already-succeeded tasks.
func (r *videoRepo) Upsert(ctx context.Context, video *models.Video) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "source_type"}, {Name: "source_id"}, {Name: "remote_key"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"title", "upper_id", "upper_name", "publish_at", "cover_url", "tags", "updated_at",
			}),
		}).
		Create(video).Error
	if err != nil {
		return fmt.Errorf("upserting video: %w", err)
	}
	return nil
}

func (r *videoRepo) GetByID(ctx context.Context, id models.ULID) (*models.Video, error) {
	var video models.Video
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&video).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting video by ID: %w", err)
	}
	return &video, nil
}

func (r *videoRepo) GetByRemoteKey(ctx context.Context, sourceType models.SourceType, sourceID models.ULID, remoteKey string) (*models.Video, error) {
	var video models.Video
	err := r.db.WithContext(ctx).
		Where("source_type = ? AND source_id = ? AND remote_key = ?", sourceType, sourceID, remoteKey).
		First(&video).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting video by remote key: %w", err)
	}
	return &video, nil
}

func (r *videoRepo) GetBySource(ctx context.Context, sourceType models.SourceType, sourceID models.ULID) ([]*models.Video, error) {
	var videos []*models.Video
	err := r.db.WithContext(ctx).
		Where("source_type = ? AND source_id = ?", sourceType, sourceID).
		Order("publish_at DESC").
		Find(&videos).Error
	if err != nil {
		return nil, fmt.Errorf("getting videos by source: %w", err)
	}
	return videos, nil
}

// GetNonTerminal returns videos whose status word is not fully
// succeeded-or-ignored across all five video tasks, i.e. work remains.
// Succeeded and Ignored are both terminal but not bitwise-equal, so the
// filter is applied in Go rather than as a single SQL predicate.
func (r *videoRepo) GetNonTerminal(ctx context.Context, sourceType models.SourceType, sourceID models.ULID) ([]*models.Video, error) {
	var all []*models.Video
	err := r.db.WithContext(ctx).
		Where("source_type = ? AND source_id = ?", sourceType, sourceID).
		Order("publish_at ASC").
		Find(&all).Error
	if err != nil {
		return nil, fmt.Errorf("getting non-terminal videos: %w", err)
	}

	videos := make([]*models.Video, 0, len(all))
	for _, v := range all {
		if !v.IsTerminal() {
			videos = append(videos, v)
		}
	}
	return videos, nil
}

func (r *videoRepo) Update(ctx context.Context, video *models.Video) error {
	if err := r.db.WithContext(ctx).Save(video).Error; err != nil {
		return fmt.Errorf("updating video: %w", err)
	}
	return nil
}

func (r *videoRepo) UpdateStatus(ctx context.Context, id models.ULID, status models.StatusWord) error {
	if err := r.db.WithContext(ctx).Model(&models.Video{}).Where("id = ?", id).
		UpdateColumn("status_word", status).Error; err != nil {
		return fmt.Errorf("updating video status: %w", err)
	}
	return nil
}

func (r *videoRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Video{}).Error; err != nil {
		return fmt.Errorf("deleting video: %w", err)
	}
	return nil
}

// MarkMissingDeleted soft-deletes videos for a source whose remote_key is not
// in the given set, implementing the scan_deleted_videos reconciliation pass.
func (r *videoRepo) MarkMissingDeleted(ctx context.Context, sourceType models.SourceType, sourceID models.ULID, seenRemoteKeys []string) (int64, error) {
	query := r.db.WithContext(ctx).
		Where("source_type = ? AND source_id = ?", sourceType, sourceID)

	if len(seenRemoteKeys) > 0 {
		query = query.Where("remote_key NOT IN ?", seenRemoteKeys)
	}

	result := query.Delete(&models.Video{})
	if result.Error != nil {
		return 0, fmt.Errorf("marking missing videos deleted: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Ensure videoRepo implements VideoRepository at compile time.
var _ VideoRepository = (*videoRepo)(nil)
