// Package repository implements the data access layer for the identity
// provider's credential records.
package repository

import (
	"context"
	"errors"

	"eslive/internal/models"

	"gorm.io/gorm"
)

// CredentialRepository defines persistence operations for credentials.
type CredentialRepository interface {
	GetByUID(ctx context.Context, uid string) (*models.Credential, error)
	GetByEmail(ctx context.Context, email string) (*models.Credential, error)
	Create(ctx context.Context, cred *models.Credential) error
	Update(ctx context.Context, cred *models.Credential) error
}

type credentialRepository struct {
	db *gorm.DB
}

// NewCredentialRepository returns a new CredentialRepository implementation.
func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &credentialRepository{db: db}
}

func (r *credentialRepository) GetByUID(ctx context.Context, uid string) (*models.Credential, error) {
	var cred models.Credential
	err := r.db.WithContext(ctx).Where("uid = ?", uid).First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &cred, nil
}

func (r *credentialRepository) GetByEmail(ctx context.Context, email string) (*models.Credential, error) {
	var cred models.Credential
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &cred, nil
}

func (r *credentialRepository) Create(ctx context.Context, cred *models.Credential) error {
	if err := r.db.WithContext(ctx).Create(cred).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *credentialRepository) Update(ctx context.Context, cred *models.Credential) error {
	if err := r.db.WithContext(ctx).Save(cred).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
