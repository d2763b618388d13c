package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/urlmg/urlkeeper/internal/errors"
	"github.com/urlmg/urlkeeper/internal/models"
	"gorm.io/gorm"
)

// SessionRepository defines data access for session rows.
type SessionRepository interface {
	Find(ctx context.Context, id string) (*models.Session, error)
	Upsert(ctx context.Context, session *models.Session) (created bool, err error)
	Create(ctx context.Context, session *models.Session) error
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID uint) error
	Touch(ctx context.Context, id string) error
}

// GormSessionRepository is the GORM implementation of SessionRepository.
type GormSessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository returns a new GormSessionRepository.
func NewSessionRepository(db *gorm.DB) *GormSessionRepository {
	return &GormSessionRepository{db: db}
}

func (r *GormSessionRepository) Find(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch session: %w", err)
	}
	return &session, nil
}

// Upsert updates the existing row for session.ID or inserts a new one.
// The primary key constraint resolves a concurrent double-insert: the loser
// retries as an update.
func (r *GormSessionRepository) Upsert(ctx context.Context, session *models.Session) (bool, error) {
	session.LastActivity = time.Now().Unix()

	res := r.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ?", session.ID).
		Updates(map[string]any{
			"user_id":       session.UserID,
			"ip_address":    session.IPAddress,
			"user_agent":    session.UserAgent,
			"payload":       session.Payload,
			"last_activity": session.LastActivity,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to update session: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return false, nil
	}

	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the insert race; the row exists now, update it.
			if err2 := r.db.WithContext(ctx).Save(session).Error; err2 != nil {
				return false, fmt.Errorf("failed to upsert session: %w", err2)
			}
			return false, nil
		}
		return false, fmt.Errorf("failed to create session: %w", err)
	}
	return true, nil
}

func (r *GormSessionRepository) Create(ctx context.Context, session *models.Session) error {
	session.LastActivity = time.Now().Unix()
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *GormSessionRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Session{}).Error; err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteByUser removes every session belonging to userID. Called after a
// password reset to force re-login everywhere.
func (r *GormSessionRepository) DeleteByUser(ctx context.Context, userID uint) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Session{}).Error; err != nil {
		return fmt.Errorf("failed to delete sessions for user %d: %w", userID, err)
	}
	return nil
}

// Touch refreshes last_activity for an authenticated request.
func (r *GormSessionRepository) Touch(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ?", id).
		UpdateColumn("last_activity", time.Now().Unix()).Error
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}
