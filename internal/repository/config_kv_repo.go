package repository

import (
	"context"
	"fmt"

	"github.com/vidsyncd/vidsyncd/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// configKVRepo implements ConfigKVRepository using GORM.
type configKVRepo struct {
	db *gorm.DB
}

// NewConfigKVRepository creates a new ConfigKVRepository.
func NewConfigKVRepository(db *gorm.DB) *configKVRepo {
	return &configKVRepo{db: db}
}

func (r *configKVRepo) Get(ctx context.Context, key string) (string, bool, error) {
	var row models.ConfigKV
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", false, nil
		}
		return "", false, fmt.Errorf("getting config key %q: %w", key, err)
	}
	return row.Value, true, nil
}

func (r *configKVRepo) Set(ctx context.Context, key, value string) error {
	row := models.ConfigKV{Key: key, Value: value, UpdatedAt: models.Now()}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("setting config key %q: %w", key, err)
	}
	return nil
}

func (r *configKVRepo) Delete(ctx context.Context, key string) error {
	if err := r.db.WithContext(ctx).Where("key = ?", key).Delete(&models.ConfigKV{}).Error; err != nil {
		return fmt.Errorf("deleting config key %q: %w", key, err)
	}
	return nil
}

// Ensure configKVRepo implements ConfigKVRepository at compile time.
var _ ConfigKVRepository = (*configKVRepo)(nil)
