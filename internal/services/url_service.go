// Package services contains the business logic layer: URL ownership and
// cache consistency, the OTP credential flows, and account/tag management.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/urlmg/urlkeeper/internal/cache"
	apperrors "github.com/urlmg/urlkeeper/internal/errors"
	"github.com/urlmg/urlkeeper/internal/logger"
	"github.com/urlmg/urlkeeper/internal/models"
	"github.com/urlmg/urlkeeper/internal/repository"
	"github.com/urlmg/urlkeeper/internal/scope"
)

// URLService owns every URL operation. All reads and writes are scoped to an
// ownership key; every mutation invalidates that key's unfiltered listing
// cache entry so the next list reflects the write. Filtered entries age out
// by TTL.
type URLService struct {
	urlRepo    repository.URLRepository
	cache      cache.Cache
	listingTTL time.Duration
	log        logger.Logger
}

// NewURLService returns a URLService with the given listing cache TTL.
func NewURLService(urlRepo repository.URLRepository, c cache.Cache, listingTTL time.Duration, log logger.Logger) *URLService {
	return &URLService{
		urlRepo:    urlRepo,
		cache:      c,
		listingTTL: listingTTL,
		log:        log,
	}
}

// CreateInput carries the client fields for a new URL record. Tags is kept
// raw because clients send either an array or an encoded string.
type CreateInput struct {
	Title       string          `json:"title"`
	Target      string          `json:"url"`
	Description string          `json:"description"`
	Tags        json.RawMessage `json:"tags"`
	Status      string          `json:"status"`
	ReminderAt  *time.Time      `json:"reminder_at"`
}

// UpdateInput carries optional edits; nil fields stay untouched.
type UpdateInput struct {
	Title       *string         `json:"title"`
	Target      *string         `json:"url"`
	Description *string         `json:"description"`
	Tags        json.RawMessage `json:"tags"`
	Status      *string         `json:"status"`
	ReminderAt  *time.Time      `json:"reminder_at"`
}

// Create validates and persists a new record scoped to key.
func (s *URLService) Create(ctx context.Context, key scope.Key, in CreateInput) (*models.URL, error) {
	if key.IsZero() {
		return nil, apperrors.ErrSessionRequired
	}
	if err := validateTarget(in.Target); err != nil {
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = models.StatusActive
	}
	if !models.ValidStatus(status) {
		return nil, apperrors.ErrInvalidStatus
	}

	tags, err := models.ParseTags(in.Tags)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidTags, err)
	}
	if tags == nil {
		tags = models.TagList{}
	}

	rec := &models.URL{
		Title:       in.Title,
		Target:      in.Target,
		Description: in.Description,
		Tags:        tags,
		Status:      status,
		ReminderAt:  in.ReminderAt,
	}
	if id, ok := key.UserID(); ok {
		rec.UserID = &id
	} else if sid, ok := key.SessionID(); ok {
		rec.SessionID = &sid
	}

	if err := s.urlRepo.Create(ctx, rec); err != nil {
		return nil, err
	}
	s.invalidateListing(ctx, key)
	return rec, nil
}

// Update edits a record constrained to id and key; a record outside the
// caller's scope is indistinguishable from a missing one.
func (s *URLService) Update(ctx context.Context, key scope.Key, id uint, in UpdateInput) (*models.URL, error) {
	rec, err := s.urlRepo.FindInScope(ctx, key, id)
	if err != nil {
		return nil, err
	}

	if in.Target != nil {
		if err := validateTarget(*in.Target); err != nil {
			return nil, err
		}
		rec.Target = *in.Target
	}
	if in.Status != nil {
		if !models.ValidStatus(*in.Status) {
			return nil, apperrors.ErrInvalidStatus
		}
		rec.Status = *in.Status
	}
	if in.Title != nil {
		rec.Title = *in.Title
	}
	if in.Description != nil {
		rec.Description = *in.Description
	}
	if in.ReminderAt != nil {
		rec.ReminderAt = in.ReminderAt
	}
	if len(in.Tags) > 0 {
		tags, err := models.ParseTags(in.Tags)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidTags, err)
		}
		if tags == nil {
			tags = models.TagList{}
		}
		rec.Tags = tags
	}

	if err := s.urlRepo.Update(ctx, rec); err != nil {
		return nil, err
	}
	s.invalidateListing(ctx, key)
	return rec, nil
}

// List returns the caller's records, newest first, optionally filtered by
// status and tag membership. The result passes through the read-through
// cache keyed by (scope, status, tag).
func (s *URLService) List(ctx context.Context, key scope.Key, status, tag string) ([]models.URL, error) {
	if key.IsZero() {
		return nil, apperrors.ErrSessionRequired
	}
	if status != "" && !models.ValidStatus(status) {
		return nil, apperrors.ErrInvalidStatus
	}

	cacheKey := cache.ListingKey(key.String(), status, tag)
	snapshot, err := s.cache.GetOrCompute(ctx, cacheKey, s.listingTTL, func() (string, error) {
		urls, err := s.urlRepo.ListByScope(ctx, key, status)
		if err != nil {
			return "", err
		}
		if tag != "" {
			filtered := make([]models.URL, 0, len(urls))
			for _, u := range urls {
				if u.Tags.Contains(tag) {
					filtered = append(filtered, u)
				}
			}
			urls = filtered
		}
		out, err := json.Marshal(urls)
		if err != nil {
			return "", fmt.Errorf("encoding listing snapshot: %w", err)
		}
		return string(out), nil
	})
	if err != nil {
		return nil, err
	}

	var urls []models.URL
	if err := json.Unmarshal([]byte(snapshot), &urls); err != nil {
		return nil, fmt.Errorf("decoding listing snapshot: %w", err)
	}
	if urls == nil {
		urls = []models.URL{}
	}
	return urls, nil
}

// Get fetches one record inside the caller's scope.
func (s *URLService) Get(ctx context.Context, key scope.Key, id uint) (*models.URL, error) {
	if key.IsZero() {
		return nil, apperrors.ErrSessionRequired
	}
	return s.urlRepo.FindInScope(ctx, key, id)
}

// GetAny fetches one record with no scope check. Public guest read only;
// never use it behind an ownership boundary.
func (s *URLService) GetAny(ctx context.Context, id uint) (*models.URL, error) {
	return s.urlRepo.FindAny(ctx, id)
}

// Delete removes a scoped record. Deleting an id that is already gone
// reports not-found rather than an internal error.
func (s *URLService) Delete(ctx context.Context, key scope.Key, id uint) error {
	if key.IsZero() {
		return apperrors.ErrSessionRequired
	}
	if err := s.urlRepo.Delete(ctx, key, id); err != nil {
		return err
	}
	s.invalidateListing(ctx, key)
	return nil
}

// IncrementClicks atomically bumps the click counter and returns the new
// value.
func (s *URLService) IncrementClicks(ctx context.Context, key scope.Key, id uint) (uint64, error) {
	if key.IsZero() {
		return 0, apperrors.ErrSessionRequired
	}
	clicks, err := s.urlRepo.IncrementClicks(ctx, key, id)
	if err != nil {
		return 0, err
	}
	s.invalidateListing(ctx, key)
	return clicks, nil
}

// RemoveDuplicates deletes every record in scope sharing the reference
// record's target URL, keeping the reference itself. When id does not
// resolve inside the scope nothing is deleted.
func (s *URLService) RemoveDuplicates(ctx context.Context, key scope.Key, id uint) (int64, error) {
	if key.IsZero() {
		return 0, apperrors.ErrSessionRequired
	}
	ref, err := s.urlRepo.FindInScope(ctx, key, id)
	if err != nil {
		return 0, err
	}
	deleted, err := s.urlRepo.DeleteDuplicates(ctx, key, ref.Target, ref.ID)
	if err != nil {
		return 0, err
	}
	s.invalidateListing(ctx, key)
	return deleted, nil
}

// ToggleFavourite flips the reserved favourite marker in the record's tag
// set. Marker present after the call means favorited; the returned bool
// reports that post-toggle state. Authenticated callers only.
func (s *URLService) ToggleFavourite(ctx context.Context, userID, id uint) (*models.URL, bool, error) {
	key := scope.ForUser(userID)
	rec, err := s.urlRepo.FindInScope(ctx, key, id)
	if err != nil {
		return nil, false, err
	}

	favourited := !rec.Tags.Contains(models.FavouriteTag)
	if favourited {
		rec.Tags = append(rec.Tags, models.FavouriteTag)
	} else {
		rec.Tags = rec.Tags.Without(models.FavouriteTag)
	}

	if err := s.urlRepo.Update(ctx, rec); err != nil {
		return nil, false, err
	}
	s.invalidateListing(ctx, key)
	return rec, favourited, nil
}

// TransferOwnership re-keys all records of a guest session to a user and
// invalidates both scopes' listing caches so neither side serves stale data.
func (s *URLService) TransferOwnership(ctx context.Context, sessionID string, userID uint) (int64, error) {
	migrated, err := s.urlRepo.TransferOwnership(ctx, sessionID, userID)
	if err != nil {
		return 0, err
	}
	s.invalidateListing(ctx, scope.ForSession(sessionID))
	s.invalidateListing(ctx, scope.ForUser(userID))
	return migrated, nil
}

// invalidateListing drops the unfiltered listing entry for key. Filtered
// variants are left to expire; their TTL is the staleness bound.
func (s *URLService) invalidateListing(ctx context.Context, key scope.Key) {
	if err := s.cache.Invalidate(ctx, cache.ListingKey(key.String(), "", "")); err != nil {
		s.log.Warn("listing cache invalidation failed",
			logger.String("scope", key.String()),
			logger.Error(err))
	}
}

// validateTarget requires an absolute http(s) URL with a host.
func validateTarget(target string) error {
	if target == "" {
		return apperrors.ErrInvalidURL
	}
	u, err := url.ParseRequestURI(target)
	if err != nil {
		return apperrors.ErrInvalidURL
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperrors.ErrInvalidURL
	}
	return nil
}
