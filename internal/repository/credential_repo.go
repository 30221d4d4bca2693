package repository

import (
	"context"
	"fmt"

	"github.com/vidsyncd/vidsyncd/internal/models"
	"gorm.io/gorm"
)

// credentialRepo implements CredentialRepository using GORM.
type credentialRepo struct {
	db *gorm.DB
}

// NewCredentialRepository creates a new CredentialRepository.
func NewCredentialRepository(db *gorm.DB) *credentialRepo {
	return &credentialRepo{db: db}
}

func (r *credentialRepo) Create(ctx context.Context, credential *models.Credential) error {
	if err := r.db.WithContext(ctx).Create(credential).Error; err != nil {
		return fmt.Errorf("creating credential: %w", err)
	}
	return nil
}

// Get returns the single stored credential row, or nil if none exists yet.
func (r *credentialRepo) Get(ctx context.Context) (*models.Credential, error) {
	var credential models.Credential
	if err := r.db.WithContext(ctx).Order("created_at ASC").First(&credential).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting credential: %w", err)
	}
	return &credential, nil
}

func (r *credentialRepo) Update(ctx context.Context, credential *models.Credential) error {
	if err := r.db.WithContext(ctx).Save(credential).Error; err != nil {
		return fmt.Errorf("updating credential: %w", err)
	}
	return nil
}

func (r *credentialRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Unscoped().Where("id = ?", id).Delete(&models.Credential{}).Error; err != nil {
		return fmt.Errorf("deleting credential: %w", err)
	}
	return nil
}

// Ensure credentialRepo implements CredentialRepository at compile time.
var _ CredentialRepository = (*credentialRepo)(nil)
