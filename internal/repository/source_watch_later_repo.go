package repository

import (
	"context"
	"fmt"

	"github.com/vidsyncd/vidsyncd/internal/models"
	"gorm.io/gorm"
)

// sourceWatchLaterRepo implements SourceWatchLaterRepository using GORM.
type sourceWatchLaterRepo struct {
	db *gorm.DB
}

// NewSourceWatchLaterRepository creates a new SourceWatchLaterRepository.
func NewSourceWatchLaterRepository(db *gorm.DB) *sourceWatchLaterRepo {
	return &sourceWatchLaterRepo{db: db}
}

func (r *sourceWatchLaterRepo) Create(ctx context.Context, source *models.SourceWatchLater) error {
	if err := r.db.WithContext(ctx).Create(source).Error; err != nil {
		return fmt.Errorf("creating watch-later source: %w", err)
	}
	return nil
}

func (r *sourceWatchLaterRepo) GetByID(ctx context.Context, id models.ULID) (*models.SourceWatchLater, error) {
	var source models.SourceWatchLater
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&source).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting watch-later source by ID: %w", err)
	}
	return &source, nil
}

func (r *sourceWatchLaterRepo) GetAll(ctx context.Context) ([]*models.SourceWatchLater, error) {
	var sources []*models.SourceWatchLater
	if err := r.db.WithContext(ctx).Order("display_name ASC").Find(&sources).Error; err != nil {
		return nil, fmt.Errorf("getting all watch-later sources: %w", err)
	}
	return sources, nil
}

func (r *sourceWatchLaterRepo) GetEnabled(ctx context.Context) ([]*models.SourceWatchLater, error) {
	var sources []*models.SourceWatchLater
	if err := r.db.WithContext(ctx).Where("enabled = ?", true).Order("display_name ASC").Find(&sources).Error; err != nil {
		return nil, fmt.Errorf("getting enabled watch-later sources: %w", err)
	}
	return sources, nil
}

func (r *sourceWatchLaterRepo) GetByOwnerKey(ctx context.Context, ownerKey string) (*models.SourceWatchLater, error) {
	var source models.SourceWatchLater
	if err := r.db.WithContext(ctx).Where("owner_key = ?", ownerKey).First(&source).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting watch-later source by owner key: %w", err)
	}
	return &source, nil
}

func (r *sourceWatchLaterRepo) Update(ctx context.Context, source *models.SourceWatchLater) error {
	if err := r.db.WithContext(ctx).Save(source).Error; err != nil {
		return fmt.Errorf("updating watch-later source: %w", err)
	}
	return nil
}

func (r *sourceWatchLaterRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Unscoped().Where("id = ?", id).Delete(&models.SourceWatchLater{}).Error; err != nil {
		return fmt.Errorf("deleting watch-later source: %w", err)
	}
	return nil
}

func (r *sourceWatchLaterRepo) UpdateWatermark(ctx context.Context, id models.ULID, seen models.Time) error {
	if err := r.db.WithContext(ctx).Model(&models.SourceWatchLater{}).
		Where("id = ? AND (latest_row_at IS NULL OR latest_row_at < ?)", id, seen).
		Update("latest_row_at", seen).Error; err != nil {
		return fmt.Errorf("updating watch-later source watermark: %w", err)
	}
	return nil
}

// Ensure sourceWatchLaterRepo implements SourceWatchLaterRepository at compile time.
var _ SourceWatchLaterRepository = (*sourceWatchLaterRepo)(nil)
