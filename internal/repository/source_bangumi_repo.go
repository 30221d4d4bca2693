package repository

import (
	"context"
	"fmt"

	"github.com/vidsyncd/vidsyncd/internal/models"
	"gorm.io/gorm"
)

// sourceBangumiRepo implements SourceBangumiRepository using GORM.
type sourceBangumiRepo struct {
	db *gorm.DB
}

// NewSourceBangumiRepository creates a new SourceBangumiRepository.
func NewSourceBangumiRepository(db *gorm.DB) *sourceBangumiRepo {
	return &sourceBangumiRepo{db: db}
}

func (r *sourceBangumiRepo) Create(ctx context.Context, source *models.SourceBangumi) error {
	if err := r.db.WithContext(ctx).Create(source).Error; err != nil {
		return fmt.Errorf("creating bangumi source: %w", err)
	}
	return nil
}

func (r *sourceBangumiRepo) GetByID(ctx context.Context, id models.ULID) (*models.SourceBangumi, error) {
	var source models.SourceBangumi
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&source).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting bangumi source by ID: %w", err)
	}
	return &source, nil
}

func (r *sourceBangumiRepo) GetAll(ctx context.Context) ([]*models.SourceBangumi, error) {
	var sources []*models.SourceBangumi
	if err := r.db.WithContext(ctx).Order("display_name ASC").Find(&sources).Error; err != nil {
		return nil, fmt.Errorf("getting all bangumi sources: %w", err)
	}
	return sources, nil
}

func (r *sourceBangumiRepo) GetEnabled(ctx context.Context) ([]*models.SourceBangumi, error) {
	var sources []*models.SourceBangumi
	if err := r.db.WithContext(ctx).Where("enabled = ?", true).Order("display_name ASC").Find(&sources).Error; err != nil {
		return nil, fmt.Errorf("getting enabled bangumi sources: %w", err)
	}
	return sources, nil
}

func (r *sourceBangumiRepo) GetBySeasonID(ctx context.Context, seasonID string) (*models.SourceBangumi, error) {
	var source models.SourceBangumi
	if err := r.db.WithContext(ctx).Where("season_id = ?", seasonID).First(&source).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting bangumi source by season id: %w", err)
	}
	return &source, nil
}

func (r *sourceBangumiRepo) Update(ctx context.Context, source *models.SourceBangumi) error {
	if err := r.db.WithContext(ctx).Save(source).Error; err != nil {
		return fmt.Errorf("updating bangumi source: %w", err)
	}
	return nil
}

func (r *sourceBangumiRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Unscoped().Where("id = ?", id).Delete(&models.SourceBangumi{}).Error; err != nil {
		return fmt.Errorf("deleting bangumi source: %w", err)
	}
	return nil
}

// UpdateWatermark advances latest_row_at. For a merged season this is called
// on the merge target's ID, not the season's own ID.
func (r *sourceBangumiRepo) UpdateWatermark(ctx context.Context, id models.ULID, seen models.Time) error {
	if err := r.db.WithContext(ctx).Model(&models.SourceBangumi{}).
		Where("id = ? AND (latest_row_at IS NULL OR latest_row_at < ?)", id, seen).
		Update("latest_row_at", seen).Error; err != nil {
		return fmt.Errorf("updating bangumi source watermark: %w", err)
	}
	return nil
}

// Ensure sourceBangumiRepo implements SourceBangumiRepository at compile time.
var _ SourceBangumiRepository = (*sourceBangumiRepo)(nil)
