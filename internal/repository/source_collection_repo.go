package repository

import (
	"context"
	"fmt"

	"github.com/vidsyncd/vidsyncd/internal/models"
	"gorm.io/gorm"
)

// sourceCollectionRepo implements SourceCollectionRepository using GORM.
type sourceCollectionRepo struct {
	db *gorm.DB
}

// NewSourceCollectionRepository creates a new SourceCollectionRepository.
func NewSourceCollectionRepository(db *gorm.DB) *sourceCollectionRepo {
	return &sourceCollectionRepo{db: db}
}

func (r *sourceCollectionRepo) Create(ctx context.Context, source *models.SourceCollection) error {
	if err := r.db.WithContext(ctx).Create(source).Error; err != nil {
		return fmt.Errorf("creating collection source: %w", err)
	}
	return nil
}

func (r *sourceCollectionRepo) GetByID(ctx context.Context, id models.ULID) (*models.SourceCollection, error) {
	var source models.SourceCollection
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&source).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting collection source by ID: %w", err)
	}
	return &source, nil
}

func (r *sourceCollectionRepo) GetAll(ctx context.Context) ([]*models.SourceCollection, error) {
	var sources []*models.SourceCollection
	if err := r.db.WithContext(ctx).Order("display_name ASC").Find(&sources).Error; err != nil {
		return nil, fmt.Errorf("getting all collection sources: %w", err)
	}
	return sources, nil
}

func (r *sourceCollectionRepo) GetEnabled(ctx context.Context) ([]*models.SourceCollection, error) {
	var sources []*models.SourceCollection
	if err := r.db.WithContext(ctx).Where("enabled = ?", true).Order("display_name ASC").Find(&sources).Error; err != nil {
		return nil, fmt.Errorf("getting enabled collection sources: %w", err)
	}
	return sources, nil
}

func (r *sourceCollectionRepo) GetByCollectionID(ctx context.Context, collectionID string, kind models.CollectionKind) (*models.SourceCollection, error) {
	var source models.SourceCollection
	if err := r.db.WithContext(ctx).Where("collection_id = ? AND kind = ?", collectionID, kind).First(&source).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting collection source by collection id: %w", err)
	}
	return &source, nil
}

func (r *sourceCollectionRepo) Update(ctx context.Context, source *models.SourceCollection) error {
	if err := r.db.WithContext(ctx).Save(source).Error; err != nil {
		return fmt.Errorf("updating collection source: %w", err)
	}
	return nil
}

func (r *sourceCollectionRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Unscoped().Where("id = ?", id).Delete(&models.SourceCollection{}).Error; err != nil {
		return fmt.Errorf("deleting collection source: %w", err)
	}
	return nil
}

func (r *sourceCollectionRepo) UpdateWatermark(ctx context.Context, id models.ULID, seen models.Time) error {
	if err := r.db.WithContext(ctx).Model(&models.SourceCollection{}).
		Where("id = ? AND (latest_row_at IS NULL OR latest_row_at < ?)", id, seen).
		Update("latest_row_at", seen).Error; err != nil {
		return fmt.Errorf("updating collection source watermark: %w", err)
	}
	return nil
}

// Ensure sourceCollectionRepo implements SourceCollectionRepository at compile time.
var _ SourceCollectionRepository = (*sourceCollectionRepo)(nil)
