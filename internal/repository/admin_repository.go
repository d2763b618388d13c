package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/urlmg/urlkeeper/internal/models"
	"gorm.io/gorm"
)

// AdminRepository serves the static reference data endpoints.
type AdminRepository interface {
	ListBackgrounds(ctx context.Context) ([]models.Background, error)
	LatestNotification(ctx context.Context) (*models.Notification, error)
}

// GormAdminRepository is the GORM implementation of AdminRepository.
type GormAdminRepository struct {
	db *gorm.DB
}

// NewAdminRepository returns a new GormAdminRepository.
func NewAdminRepository(db *gorm.DB) *GormAdminRepository {
	return &GormAdminRepository{db: db}
}

func (r *GormAdminRepository) ListBackgrounds(ctx context.Context) ([]models.Background, error) {
	var rows []models.Background
	err := r.db.WithContext(ctx).
		Select("type", "name", "background").
		Order("type").Order("name").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list backgrounds: %w", err)
	}
	return rows, nil
}

// LatestNotification returns the most recent notification, or nil when none exist.
func (r *GormAdminRepository) LatestNotification(ctx context.Context) (*models.Notification, error) {
	var latest models.Notification
	err := r.db.WithContext(ctx).Order("created_at DESC").First(&latest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch latest notification: %w", err)
	}
	return &latest, nil
}
