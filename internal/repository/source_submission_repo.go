package repository

import (
	"context"
	"fmt"

	"github.com/vidsyncd/vidsyncd/internal/models"
	"gorm.io/gorm"
)

// sourceSubmissionRepo implements SourceSubmissionRepository using GORM.
type sourceSubmissionRepo struct {
	db *gorm.DB
}

// NewSourceSubmissionRepository creates a new SourceSubmissionRepository.
func NewSourceSubmissionRepository(db *gorm.DB) *sourceSubmissionRepo {
	return &sourceSubmissionRepo{db: db}
}

func (r *sourceSubmissionRepo) Create(ctx context.Context, source *models.SourceSubmission) error {
	if err := r.db.WithContext(ctx).Create(source).Error; err != nil {
		return fmt.Errorf("creating submission source: %w", err)
	}
	return nil
}

func (r *sourceSubmissionRepo) GetByID(ctx context.Context, id models.ULID) (*models.SourceSubmission, error) {
	var source models.SourceSubmission
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&source).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting submission source by ID: %w", err)
	}
	return &source, nil
}

func (r *sourceSubmissionRepo) GetAll(ctx context.Context) ([]*models.SourceSubmission, error) {
	var sources []*models.SourceSubmission
	if err := r.db.WithContext(ctx).Order("display_name ASC").Find(&sources).Error; err != nil {
		return nil, fmt.Errorf("getting all submission sources: %w", err)
	}
	return sources, nil
}

func (r *sourceSubmissionRepo) GetEnabled(ctx context.Context) ([]*models.SourceSubmission, error) {
	var sources []*models.SourceSubmission
	if err := r.db.WithContext(ctx).Where("enabled = ?", true).Order("display_name ASC").Find(&sources).Error; err != nil {
		return nil, fmt.Errorf("getting enabled submission sources: %w", err)
	}
	return sources, nil
}

func (r *sourceSubmissionRepo) GetByMID(ctx context.Context, mid string) (*models.SourceSubmission, error) {
	var source models.SourceSubmission
	if err := r.db.WithContext(ctx).Where("mid = ?", mid).First(&source).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting submission source by mid: %w", err)
	}
	return &source, nil
}

func (r *sourceSubmissionRepo) Update(ctx context.Context, source *models.SourceSubmission) error {
	if err := r.db.WithContext(ctx).Save(source).Error; err != nil {
		return fmt.Errorf("updating submission source: %w", err)
	}
	return nil
}

func (r *sourceSubmissionRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Unscoped().Where("id = ?", id).Delete(&models.SourceSubmission{}).Error; err != nil {
		return fmt.Errorf("deleting submission source: %w", err)
	}
	return nil
}

func (r *sourceSubmissionRepo) UpdateWatermark(ctx context.Context, id models.ULID, seen models.Time) error {
	if err := r.db.WithContext(ctx).Model(&models.SourceSubmission{}).
		Where("id = ? AND (latest_row_at IS NULL OR latest_row_at < ?)", id, seen).
		Update("latest_row_at", seen).Error; err != nil {
		return fmt.Errorf("updating submission source watermark: %w", err)
	}
	return nil
}

// Ensure sourceSubmissionRepo implements SourceSubmissionRepository at compile time.
var _ SourceSubmissionRepository = (*sourceSubmissionRepo)(nil)
