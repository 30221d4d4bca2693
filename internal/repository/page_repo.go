package repository

import (
	"context"
	"fmt"

	"github.com/vidsyncd/vidsyncd/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// pageRepo implements PageRepository using GORM.
type pageRepo struct {
	db *gorm.DB
}

// NewPageRepository creates a new PageRepository.
func NewPageRepository(db *gorm.DB) *pageRepo {
	return &pageRepo{db: db}
}

func (r *pageRepo) Create(ctx context.Context, page *models.Page) error {
	if err := r.db.WithContext(ctx).Create(page).Error; err != nil {
		return fmt.Errorf("creating page: %w", err)
	}
	return nil
}

// Upsert creates or updates a page keyed on (video_id, pid), preserving the
// existing status_word so a re-seen page doesn't re-run succeeded tasks.
func (r *pageRepo) Upsert(ctx context.Context, page *models.Page) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "video_id"}, {Name: "pid"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "duration_ms", "width", "height", "image_url", "updated_at"}),
		}).
		Create(page).Error
	if err != nil {
		return fmt.Errorf("upserting page: %w", err)
	}
	return nil
}

func (r *pageRepo) GetByID(ctx context.Context, id models.ULID) (*models.Page, error) {
	var page models.Page
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&page).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting page by ID: %w", err)
	}
	return &page, nil
}

func (r *pageRepo) GetByVideoID(ctx context.Context, videoID models.ULID) ([]*models.Page, error) {
	var pages []*models.Page
	if err := r.db.WithContext(ctx).Where("video_id = ?", videoID).Order("pid ASC").Find(&pages).Error; err != nil {
		return nil, fmt.Errorf("getting pages by video ID: %w", err)
	}
	return pages, nil
}

func (r *pageRepo) GetByVideoAndPID(ctx context.Context, videoID models.ULID, pid int) (*models.Page, error) {
	var page models.Page
	if err := r.db.WithContext(ctx).Where("video_id = ? AND pid = ?", videoID, pid).First(&page).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting page by video and pid: %w", err)
	}
	return &page, nil
}

func (r *pageRepo) GetNonTerminal(ctx context.Context, videoID models.ULID) ([]*models.Page, error) {
	var all []*models.Page
	if err := r.db.WithContext(ctx).Where("video_id = ?", videoID).Order("pid ASC").Find(&all).Error; err != nil {
		return nil, fmt.Errorf("getting non-terminal pages: %w", err)
	}

	pages := make([]*models.Page, 0, len(all))
	for _, p := range all {
		if !p.IsTerminal() {
			pages = append(pages, p)
		}
	}
	return pages, nil
}

func (r *pageRepo) Update(ctx context.Context, page *models.Page) error {
	if err := r.db.WithContext(ctx).Save(page).Error; err != nil {
		return fmt.Errorf("updating page: %w", err)
	}
	return nil
}

func (r *pageRepo) UpdateStatus(ctx context.Context, id models.ULID, status models.StatusWord) error {
	if err := r.db.WithContext(ctx).Model(&models.Page{}).Where("id = ?", id).
		UpdateColumn("status_word", status).Error; err != nil {
		return fmt.Errorf("updating page status: %w", err)
	}
	return nil
}

func (r *pageRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Page{}).Error; err != nil {
		return fmt.Errorf("deleting page: %w", err)
	}
	return nil
}

func (r *pageRepo) DeleteByVideoID(ctx context.Context, videoID models.ULID) error {
	if err := r.db.WithContext(ctx).Where("video_id = ?", videoID).Delete(&models.Page{}).Error; err != nil {
		return fmt.Errorf("deleting pages by video ID: %w", err)
	}
	return nil
}

// Ensure pageRepo implements PageRepository at compile time.
var _ PageRepository = (*pageRepo)(nil)
