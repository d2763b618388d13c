package repository

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/urlmg/urlkeeper/internal/errors"
	"github.com/urlmg/urlkeeper/internal/models"
	"github.com/urlmg/urlkeeper/internal/scope"
	"gorm.io/gorm"
)

// URLRepository defines data access for URL records. Every lookup except
// FindAny is constrained to an ownership key; a record outside the caller's
// scope is reported as not found.
type URLRepository interface {
	Create(ctx context.Context, url *models.URL) error
	FindInScope(ctx context.Context, key scope.Key, id uint) (*models.URL, error)
	FindAny(ctx context.Context, id uint) (*models.URL, error)
	ListByScope(ctx context.Context, key scope.Key, status string) ([]models.URL, error)
	ListActive(ctx context.Context) ([]models.URL, error)
	Update(ctx context.Context, url *models.URL) error
	Delete(ctx context.Context, key scope.Key, id uint) error
	IncrementClicks(ctx context.Context, key scope.Key, id uint) (uint64, error)
	DeleteDuplicates(ctx context.Context, key scope.Key, target string, keepID uint) (int64, error)
	TransferOwnership(ctx context.Context, sessionID string, userID uint) (int64, error)
}

// GormURLRepository is the GORM implementation of URLRepository.
type GormURLRepository struct {
	db *gorm.DB
}

// NewURLRepository returns a new GormURLRepository.
func NewURLRepository(db *gorm.DB) *GormURLRepository {
	return &GormURLRepository{db: db}
}

// scoped applies the ownership constraint for key to a urls query.
func scoped(db *gorm.DB, key scope.Key) *gorm.DB {
	if id, ok := key.UserID(); ok {
		return db.Where("user_id = ?", id)
	}
	sid, _ := key.SessionID()
	return db.Where("session_id = ?", sid)
}

func (r *GormURLRepository) Create(ctx context.Context, url *models.URL) error {
	if err := r.db.WithContext(ctx).Create(url).Error; err != nil {
		return fmt.Errorf("failed to create url: %w", err)
	}
	return nil
}

func (r *GormURLRepository) FindInScope(ctx context.Context, key scope.Key, id uint) (*models.URL, error) {
	var url models.URL
	err := scoped(r.db.WithContext(ctx), key).Where("id = ?", id).First(&url).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch url %d: %w", id, err)
	}
	return &url, nil
}

// FindAny looks a record up by id with no ownership constraint. Reserved for
// the public guest read endpoint; every other caller goes through FindInScope.
func (r *GormURLRepository) FindAny(ctx context.Context, id uint) (*models.URL, error) {
	var url models.URL
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&url).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch url %d: %w", id, err)
	}
	return &url, nil
}

func (r *GormURLRepository) ListByScope(ctx context.Context, key scope.Key, status string) ([]models.URL, error) {
	q := scoped(r.db.WithContext(ctx), key)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var urls []models.URL
	if err := q.Order("created_at DESC").Find(&urls).Error; err != nil {
		return nil, fmt.Errorf("failed to list urls: %w", err)
	}
	return urls, nil
}

// ListActive returns every active record regardless of owner. Used by the
// availability monitor only.
func (r *GormURLRepository) ListActive(ctx context.Context) ([]models.URL, error) {
	var urls []models.URL
	if err := r.db.WithContext(ctx).Where("status = ?", models.StatusActive).Find(&urls).Error; err != nil {
		return nil, fmt.Errorf("failed to list active urls: %w", err)
	}
	return urls, nil
}

func (r *GormURLRepository) Update(ctx context.Context, url *models.URL) error {
	if err := r.db.WithContext(ctx).Save(url).Error; err != nil {
		return fmt.Errorf("failed to update url %d: %w", url.ID, err)
	}
	return nil
}

func (r *GormURLRepository) Delete(ctx context.Context, key scope.Key, id uint) error {
	res := scoped(r.db.WithContext(ctx), key).Where("id = ?", id).Delete(&models.URL{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete url %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// IncrementClicks bumps url_clicks by one at the SQL level so concurrent
// increments on the same record never lose updates, then reads the new count
// back within the same scope.
func (r *GormURLRepository) IncrementClicks(ctx context.Context, key scope.Key, id uint) (uint64, error) {
	res := scoped(r.db.WithContext(ctx).Model(&models.URL{}), key).
		Where("id = ?", id).
		UpdateColumn("url_clicks", gorm.Expr("url_clicks + 1"))
	if res.Error != nil {
		return 0, fmt.Errorf("failed to increment clicks for url %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, apperrors.ErrNotFound
	}

	var clicks uint64
	err := scoped(r.db.WithContext(ctx).Model(&models.URL{}), key).
		Where("id = ?", id).
		Pluck("url_clicks", &clicks).Error
	if err != nil {
		return 0, fmt.Errorf("failed to read clicks for url %d: %w", id, err)
	}
	return clicks, nil
}

// DeleteDuplicates removes every record in scope sharing target except the
// one identified by keepID. The caller has already resolved keepID inside
// the same scope.
func (r *GormURLRepository) DeleteDuplicates(ctx context.Context, key scope.Key, target string, keepID uint) (int64, error) {
	res := scoped(r.db.WithContext(ctx), key).
		Where("url = ?", target).
		Where("id <> ?", keepID).
		Delete(&models.URL{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete duplicates of url %d: %w", keepID, res.Error)
	}
	return res.RowsAffected, nil
}

// TransferOwnership re-keys every URL record owned by sessionID to userID and
// removes the superseded guest session row, all inside one transaction.
// A failure anywhere rolls the whole migration back: readers observe either
// the full pre-transfer or the full post-transfer state.
func (r *GormURLRepository) TransferOwnership(ctx context.Context, sessionID string, userID uint) (int64, error) {
	var migrated int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.URL{}).
			Where("session_id = ?", sessionID).
			Updates(map[string]any{"user_id": userID, "session_id": nil})
		if res.Error != nil {
			return res.Error
		}
		migrated = res.RowsAffected

		if err := tx.Where("id = ? AND user_id IS NULL", sessionID).Delete(&models.Session{}).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to transfer ownership of session %s: %w", sessionID, err)
	}
	return migrated, nil
}
