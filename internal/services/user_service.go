package services

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "github.com/urlmg/urlkeeper/internal/errors"
	"github.com/urlmg/urlkeeper/internal/logger"
	"github.com/urlmg/urlkeeper/internal/models"
	"github.com/urlmg/urlkeeper/internal/password"
	"github.com/urlmg/urlkeeper/internal/repository"
)

// MaxTagsPerUser is the per-account tag ceiling.
const MaxTagsPerUser = 10

// maxIconLen bounds a stored tag icon; longer input is truncated, not
// rejected.
const maxIconLen = 16

// UserService covers account operations after signup: login, profile edits,
// session payload storage and tag management.
type UserService struct {
	userRepo    repository.UserRepository
	tagRepo     repository.TagRepository
	sessionRepo repository.SessionRepository
	urlSvc      *URLService
	log         logger.Logger
}

// NewUserService wires the account operations.
func NewUserService(
	userRepo repository.UserRepository,
	tagRepo repository.TagRepository,
	sessionRepo repository.SessionRepository,
	urlSvc *URLService,
	log logger.Logger,
) *UserService {
	return &UserService{
		userRepo:    userRepo,
		tagRepo:     tagRepo,
		sessionRepo: sessionRepo,
		urlSvc:      urlSvc,
		log:         log,
	}
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	User         *models.User
	Session      *models.Session
	MigratedURLs int64
}

// Login verifies credentials, opens a fresh session and, when the request
// carried a guest session id, migrates that guest's URLs into the account.
// Wrong email and wrong password are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, plainPassword, guestSessionID, ip, userAgent string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := password.Verify(plainPassword, user.Password)
	if err != nil || !ok {
		return nil, apperrors.ErrInvalidCredentials
	}

	// A successful password login proves control of the mailbox-backed
	// account, so pre-OTP accounts get verified here.
	if user.EmailVerifiedAt == nil {
		repository.MarkEmailVerified(user)
		if err := s.userRepo.Update(ctx, user); err != nil {
			return nil, err
		}
	}

	if err := seedDefaultTags(ctx, s.tagRepo, user.ID); err != nil {
		s.log.Warn("failed to seed default tags on login",
			logger.Uint("user_id", user.ID),
			logger.Error(err))
	}

	session, err := openSession(ctx, s.sessionRepo, user.ID, ip, userAgent)
	if err != nil {
		return nil, err
	}

	var migrated int64
	if guestSessionID != "" {
		migrated, err = s.urlSvc.TransferOwnership(ctx, guestSessionID, user.ID)
		if err != nil {
			s.log.Error("guest URL migration failed on login",
				logger.String("session_id", guestSessionID),
				logger.Uint("user_id", user.ID),
				logger.Error(err))
			return nil, err
		}
	}

	s.log.Info("user logged in",
		logger.Uint("user_id", user.ID),
		logger.Int64("migrated_urls", migrated))
	return &LoginResult{User: user, Session: session, MigratedURLs: migrated}, nil
}

// Logout deletes the session row. Logging out an already-dead session
// succeeds.
func (s *UserService) Logout(ctx context.Context, sessionID string) error {
	return s.sessionRepo.Delete(ctx, sessionID)
}

// FetchUser loads a profile by id.
func (s *UserService) FetchUser(ctx context.Context, userID uint) (*models.User, error) {
	return s.userRepo.FindByID(ctx, userID)
}

// UpdateName changes the display name.
func (s *UserService) UpdateName(ctx context.Context, userID uint, name string) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Name = strings.TrimSpace(name)
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateEmail changes the account email. The unique index turns a duplicate
// into ErrUserExists; verification state is cleared for the new address.
func (s *UserService) UpdateEmail(ctx context.Context, userID uint, email string) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email != user.Email {
		user.Email = email
		user.EmailVerifiedAt = nil
	}
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// StoreSessionData upserts a session row with arbitrary client payload.
// Without an id a fresh one is generated, which is how a guest first obtains
// a session identifier.
func (s *UserService) StoreSessionData(ctx context.Context, sessionID string, userID *uint, payload, ip, userAgent string) (*models.Session, bool, error) {
	if sessionID == "" {
		id, err := randomToken(otpTokenLen)
		if err != nil {
			return nil, false, err
		}
		sessionID = id
	}

	session := &models.Session{
		ID:        sessionID,
		UserID:    userID,
		IPAddress: ip,
		UserAgent: userAgent,
		Payload:   payload,
	}
	created, err := s.sessionRepo.Upsert(ctx, session)
	if err != nil {
		return nil, false, err
	}
	return session, created, nil
}

// SessionInfo loads a session row by id.
func (s *UserService) SessionInfo(ctx context.Context, sessionID string) (*models.Session, error) {
	return s.sessionRepo.Find(ctx, sessionID)
}

// TouchSession refreshes a session's last activity stamp.
func (s *UserService) TouchSession(ctx context.Context, sessionID string) error {
	return s.sessionRepo.Touch(ctx, sessionID)
}

// ListTags returns the user's tags, newest first.
func (s *UserService) ListTags(ctx context.Context, userID uint) ([]models.UserTag, error) {
	return s.tagRepo.ListByUser(ctx, userID)
}

// CreateTag adds a tag for the user. Duplicates compare case-insensitively
// and the ceiling is MaxTagsPerUser; the unique index backstops the
// duplicate pre-check under concurrency.
func (s *UserService) CreateTag(ctx context.Context, userID uint, tag, icon string) (*models.UserTag, error) {
	tag = strings.TrimSpace(tag)

	count, err := s.tagRepo.CountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if count >= MaxTagsPerUser {
		return nil, apperrors.ErrTagLimitReached{Limit: MaxTagsPerUser, Count: int(count)}
	}

	exists, err := s.tagRepo.ExistsForUser(ctx, userID, tag)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.ErrDuplicateTag
	}

	rec := &models.UserTag{
		UserID: userID,
		Tag:    tag,
		Icon:   normalizeIcon(icon),
	}
	if err := s.tagRepo.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// UpdateTag renames a tag or changes its icon. A rename colliding with an
// existing tag, case-insensitively, is rejected.
func (s *UserService) UpdateTag(ctx context.Context, userID, id uint, tag, icon *string) (*models.UserTag, error) {
	rec, err := s.tagRepo.FindForUser(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if tag != nil {
		next := strings.TrimSpace(*tag)
		if !strings.EqualFold(next, rec.Tag) {
			exists, err := s.tagRepo.ExistsForUser(ctx, userID, next)
			if err != nil {
				return nil, err
			}
			if exists {
				return nil, apperrors.ErrDuplicateTag
			}
		}
		rec.Tag = next
	}
	if icon != nil {
		rec.Icon = normalizeIcon(*icon)
	}

	if err := s.tagRepo.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// DeleteTag removes a tag owned by the user.
func (s *UserService) DeleteTag(ctx context.Context, userID, id uint) error {
	return s.tagRepo.Delete(ctx, userID, id)
}

// normalizeIcon applies the default icon and caps stored length. Truncation
// is by rune so a multi-byte emoji is never split.
func normalizeIcon(icon string) string {
	icon = strings.TrimSpace(icon)
	if icon == "" {
		return models.DefaultTagIcon
	}
	runes := []rune(icon)
	if len(runes) > maxIconLen {
		runes = runes[:maxIconLen]
	}
	return string(runes)
}

// LastActivityTime converts a session's unix stamp for display.
func LastActivityTime(s *models.Session) time.Time {
	return time.Unix(s.LastActivity, 0)
}
