package repository

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/urlmg/urlkeeper/internal/errors"
	"github.com/urlmg/urlkeeper/internal/models"
	"gorm.io/gorm"
)

// TagRepository defines data access for user tags.
type TagRepository interface {
	ListByUser(ctx context.Context, userID uint) ([]models.UserTag, error)
	CountByUser(ctx context.Context, userID uint) (int64, error)
	ExistsForUser(ctx context.Context, userID uint, tag string) (bool, error)
	Create(ctx context.Context, tag *models.UserTag) error
	CreateBatch(ctx context.Context, tags []models.UserTag) error
	FindForUser(ctx context.Context, userID, id uint) (*models.UserTag, error)
	Update(ctx context.Context, tag *models.UserTag) error
	Delete(ctx context.Context, userID, id uint) error
}

// GormTagRepository is the GORM implementation of TagRepository.
type GormTagRepository struct {
	db *gorm.DB
}

// NewTagRepository returns a new GormTagRepository.
func NewTagRepository(db *gorm.DB) *GormTagRepository {
	return &GormTagRepository{db: db}
}

func (r *GormTagRepository) ListByUser(ctx context.Context, userID uint) ([]models.UserTag, error) {
	var tags []models.UserTag
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&tags).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tags for user %d: %w", userID, err)
	}
	return tags, nil
}

func (r *GormTagRepository) CountByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.UserTag{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count tags for user %d: %w", userID, err)
	}
	return count, nil
}

// ExistsForUser checks case-insensitively whether the user already has tag.
// Only a pre-check: the NOCASE unique index catches races at insert time.
func (r *GormTagRepository) ExistsForUser(ctx context.Context, userID uint, tag string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.UserTag{}).
		Where("user_id = ? AND LOWER(tag) = LOWER(?)", userID, tag).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check tag existence: %w", err)
	}
	return count > 0, nil
}

func (r *GormTagRepository) Create(ctx context.Context, tag *models.UserTag) error {
	if err := r.db.WithContext(ctx).Create(tag).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.ErrDuplicateTag
		}
		return fmt.Errorf("failed to create tag: %w", err)
	}
	return nil
}

// CreateBatch inserts the default tag seed. Duplicate rows are reported as
// ErrDuplicateTag so callers can treat an already-seeded user as a no-op.
func (r *GormTagRepository) CreateBatch(ctx context.Context, tags []models.UserTag) error {
	if len(tags) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&tags).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.ErrDuplicateTag
		}
		return fmt.Errorf("failed to create tags: %w", err)
	}
	return nil
}

func (r *GormTagRepository) FindForUser(ctx context.Context, userID, id uint) (*models.UserTag, error) {
	var tag models.UserTag
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&tag).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch tag %d: %w", id, err)
	}
	return &tag, nil
}

func (r *GormTagRepository) Update(ctx context.Context, tag *models.UserTag) error {
	if err := r.db.WithContext(ctx).Save(tag).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.ErrDuplicateTag
		}
		return fmt.Errorf("failed to update tag %d: %w", tag.ID, err)
	}
	return nil
}

func (r *GormTagRepository) Delete(ctx context.Context, userID, id uint) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.UserTag{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete tag %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
