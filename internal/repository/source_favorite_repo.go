package repository

import (
	"context"
	"fmt"

	"github.com/vidsyncd/vidsyncd/internal/models"
	"gorm.io/gorm"
)

// sourceFavoriteRepo implements SourceFavoriteRepository using GORM.
type sourceFavoriteRepo struct {
	db *gorm.DB
}

// NewSourceFavoriteRepository creates a new SourceFavoriteRepository.
func NewSourceFavoriteRepository(db *gorm.DB) *sourceFavoriteRepo {
	return &sourceFavoriteRepo{db: db}
}

func (r *sourceFavoriteRepo) Create(ctx context.Context, source *models.SourceFavorite) error {
	if err := r.db.WithContext(ctx).Create(source).Error; err != nil {
		return fmt.Errorf("creating favorite source: %w", err)
	}
	return nil
}

func (r *sourceFavoriteRepo) GetByID(ctx context.Context, id models.ULID) (*models.SourceFavorite, error) {
	var source models.SourceFavorite
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&source).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting favorite source by ID: %w", err)
	}
	return &source, nil
}

func (r *sourceFavoriteRepo) GetAll(ctx context.Context) ([]*models.SourceFavorite, error) {
	var sources []*models.SourceFavorite
	if err := r.db.WithContext(ctx).Order("display_name ASC").Find(&sources).Error; err != nil {
		return nil, fmt.Errorf("getting all favorite sources: %w", err)
	}
	return sources, nil
}

func (r *sourceFavoriteRepo) GetEnabled(ctx context.Context) ([]*models.SourceFavorite, error) {
	var sources []*models.SourceFavorite
	if err := r.db.WithContext(ctx).Where("enabled = ?", true).Order("display_name ASC").Find(&sources).Error; err != nil {
		return nil, fmt.Errorf("getting enabled favorite sources: %w", err)
	}
	return sources, nil
}

func (r *sourceFavoriteRepo) GetByFID(ctx context.Context, fid string) (*models.SourceFavorite, error) {
	var source models.SourceFavorite
	if err := r.db.WithContext(ctx).Where("fid = ?", fid).First(&source).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting favorite source by fid: %w", err)
	}
	return &source, nil
}

func (r *sourceFavoriteRepo) Update(ctx context.Context, source *models.SourceFavorite) error {
	if err := r.db.WithContext(ctx).Save(source).Error; err != nil {
		return fmt.Errorf("updating favorite source: %w", err)
	}
	return nil
}

// Delete hard-deletes a favorite source by ID, so the unique fid constraint
// doesn't conflict when re-creating a source for the same remote folder.
func (r *sourceFavoriteRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Unscoped().Where("id = ?", id).Delete(&models.SourceFavorite{}).Error; err != nil {
		return fmt.Errorf("deleting favorite source: %w", err)
	}
	return nil
}

// UpdateWatermark advances latest_row_at, ignoring updates that would move it backwards.
func (r *sourceFavoriteRepo) UpdateWatermark(ctx context.Context, id models.ULID, seen models.Time) error {
	if err := r.db.WithContext(ctx).Model(&models.SourceFavorite{}).
		Where("id = ? AND (latest_row_at IS NULL OR latest_row_at < ?)", id, seen).
		Update("latest_row_at", seen).Error; err != nil {
		return fmt.Errorf("updating favorite source watermark: %w", err)
	}
	return nil
}

// Ensure sourceFavoriteRepo implements SourceFavoriteRepository at compile time.
var _ SourceFavoriteRepository = (*sourceFavoriteRepo)(nil)
