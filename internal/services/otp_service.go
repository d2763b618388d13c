package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/urlmg/urlkeeper/internal/cache"
	apperrors "github.com/urlmg/urlkeeper/internal/errors"
	"github.com/urlmg/urlkeeper/internal/logger"
	"github.com/urlmg/urlkeeper/internal/mail"
	"github.com/urlmg/urlkeeper/internal/models"
	"github.com/urlmg/urlkeeper/internal/password"
	"github.com/urlmg/urlkeeper/internal/repository"
)

const (
	otpKeyPrefix   = "otp:"
	resetKeyPrefix = "password_reset_token:"

	otpTokenLen   = 40
	resetGrantLen = 60

	purposeSignup = "signup"
	purposeReset  = "password_reset"
)

// otpChallenge is the state stored under otp:<token> while a code is
// outstanding. For signup it carries everything needed to create the account
// later, so no user row exists until the code is verified.
type otpChallenge struct {
	Purpose      string `json:"purpose"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	PasswordHash string `json:"password_hash"`
	Code         string `json:"code"`
	Attempts     int    `json:"attempts"`
}

// OTPConfig holds the challenge lifetimes and the attempt ceiling.
type OTPConfig struct {
	TTL           time.Duration
	MaxAttempts   int
	ResetGrantTTL time.Duration
}

// OTPService runs the email verification flows: OTP signup with guest
// ownership transfer, and the two-step password reset.
type OTPService struct {
	userRepo    repository.UserRepository
	tagRepo     repository.TagRepository
	sessionRepo repository.SessionRepository
	urlSvc      *URLService
	tokens      cache.TokenStore
	mailer      mail.Mailer
	cfg         OTPConfig
	log         logger.Logger
}

// NewOTPService wires the OTP flows.
func NewOTPService(
	userRepo repository.UserRepository,
	tagRepo repository.TagRepository,
	sessionRepo repository.SessionRepository,
	urlSvc *URLService,
	tokens cache.TokenStore,
	mailer mail.Mailer,
	cfg OTPConfig,
	log logger.Logger,
) *OTPService {
	return &OTPService{
		userRepo:    userRepo,
		tagRepo:     tagRepo,
		sessionRepo: sessionRepo,
		urlSvc:      urlSvc,
		tokens:      tokens,
		mailer:      mailer,
		cfg:         cfg,
		log:         log,
	}
}

// IssueSignup starts a signup challenge for a new account. The password is
// hashed immediately and only the hash is held in the challenge. Mail
// delivery failure does not void the challenge; the client may retry
// verification or request a fresh code.
func (s *OTPService) IssueSignup(ctx context.Context, email, name, plainPassword string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := s.userRepo.FindByEmail(ctx, email); err == nil {
		return "", apperrors.ErrUserExists
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return "", err
	}

	hash, err := password.Hash(plainPassword)
	if err != nil {
		return "", fmt.Errorf("hashing signup password: %w", err)
	}

	token, code, err := s.storeChallenge(ctx, otpChallenge{
		Purpose:      purposeSignup,
		Email:        email,
		Name:         name,
		PasswordHash: hash,
	})
	if err != nil {
		return "", err
	}

	if err := s.mailer.SendSignupOTP(ctx, email, name, code); err != nil {
		s.log.Warn("signup OTP mail delivery failed",
			logger.String("email", email),
			logger.Error(err))
	}
	return token, nil
}

// IssueReset starts a password-reset challenge for an existing account.
// Here mail delivery is the whole point of the operation, so a send failure
// fails the request.
func (s *OTPService) IssueReset(ctx context.Context, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := s.userRepo.FindByEmail(ctx, email); err != nil {
		return "", err
	}

	token, code, err := s.storeChallenge(ctx, otpChallenge{
		Purpose: purposeReset,
		Email:   email,
	})
	if err != nil {
		return "", err
	}

	if err := s.mailer.SendPasswordResetOTP(ctx, email, code); err != nil {
		if delErr := s.tokens.Delete(ctx, otpKeyPrefix+token); delErr != nil {
			s.log.Warn("failed to discard reset challenge after mail failure", logger.Error(delErr))
		}
		return "", apperrors.ErrMailDelivery{To: email, Reason: err.Error()}
	}
	return token, nil
}

// SignupResult is returned on successful signup verification.
type SignupResult struct {
	User         *models.User
	Session      *models.Session
	MigratedURLs int64
}

// VerifySignup checks the code for a signup challenge and, on success,
// creates the account, seeds the default tags, opens an authenticated
// session and migrates the guest session's URLs into the new account.
func (s *OTPService) VerifySignup(ctx context.Context, token, code, guestSessionID, ip, userAgent string) (*SignupResult, error) {
	ch, err := s.checkChallenge(ctx, token, code, purposeSignup)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByEmail(ctx, ch.Email)
	switch {
	case err == nil:
		// Account appeared between issue and verify; refresh its
		// credentials with the challenge's values. A challenge without a
		// name keeps the existing one.
		if ch.Name != "" {
			user.Name = ch.Name
		}
		user.Password = ch.PasswordHash
	case errors.Is(err, apperrors.ErrNotFound):
		user = &models.User{
			Name:     ch.Name,
			Email:    ch.Email,
			Password: ch.PasswordHash,
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	repository.MarkEmailVerified(user)
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	if err := seedDefaultTags(ctx, s.tagRepo, user.ID); err != nil {
		s.log.Warn("failed to seed default tags",
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
			s.log.Error("guest URL migration failed",
				logger.String("session_id", guestSessionID),
				logger.Uint("user_id", user.ID),
				logger.Error(err))
			return nil, err
		}
	}

	s.log.Info("signup verified",
		logger.Uint("user_id", user.ID),
		logger.Int64("migrated_urls", migrated))
	return &SignupResult{User: user, Session: session, MigratedURLs: migrated}, nil
}

// VerifyReset checks the code for a reset challenge and returns a short-lived
// reset grant. The grant, not the OTP, authorizes the password change. It is
// keyed to the account id, so an email edit between verify and reset cannot
// redirect it.
func (s *OTPService) VerifyReset(ctx context.Context, token, code string) (string, error) {
	ch, err := s.checkChallenge(ctx, token, code, purposeReset)
	if err != nil {
		return "", err
	}

	user, err := s.userRepo.FindByEmail(ctx, ch.Email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", apperrors.ErrOTPInvalid
		}
		return "", err
	}

	grant, err := randomToken(resetGrantLen)
	if err != nil {
		return "", err
	}
	value := strconv.FormatUint(uint64(user.ID), 10)
	if err := s.tokens.Put(ctx, resetKeyPrefix+grant, value, s.cfg.ResetGrantTTL); err != nil {
		return "", fmt.Errorf("storing reset grant: %w", err)
	}
	return grant, nil
}

// ResetPassword consumes a reset grant, replaces the account password and
// revokes every session of the account. The grant is destroyed before the
// password is written; a failure to destroy it fails the whole operation so
// a grant can never outlive a successful reset.
func (s *OTPService) ResetPassword(ctx context.Context, grant, plainPassword string) error {
	value, ok, err := s.tokens.Get(ctx, resetKeyPrefix+grant)
	if err != nil {
		return fmt.Errorf("reading reset grant: %w", err)
	}
	if !ok {
		return apperrors.ErrResetTokenInvalid
	}
	userID, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return apperrors.ErrResetTokenInvalid
	}

	user, err := s.userRepo.FindByID(ctx, uint(userID))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.ErrResetTokenInvalid
		}
		return err
	}

	hash, err := password.Hash(plainPassword)
	if err != nil {
		return fmt.Errorf("hashing new password: %w", err)
	}

	if err := s.tokens.Delete(ctx, resetKeyPrefix+grant); err != nil {
		return fmt.Errorf("consuming reset grant: %w", err)
	}

	user.Password = hash
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}

	if err := s.sessionRepo.DeleteByUser(ctx, user.ID); err != nil {
		s.log.Warn("failed to revoke sessions after password reset",
			logger.Uint("user_id", user.ID),
			logger.Error(err))
	}

	s.log.Info("password reset completed", logger.Uint("user_id", user.ID))
	return nil
}

// storeChallenge fills in a fresh code, stores the challenge under a new
// token and returns both for the caller to mail out.
func (s *OTPService) storeChallenge(ctx context.Context, ch otpChallenge) (token, code string, err error) {
	token, err = randomToken(otpTokenLen)
	if err != nil {
		return "", "", err
	}
	code, err = randomCode()
	if err != nil {
		return "", "", err
	}
	ch.Code = code

	raw, err := json.Marshal(ch)
	if err != nil {
		return "", "", fmt.Errorf("encoding OTP challenge: %w", err)
	}
	if err := s.tokens.Put(ctx, otpKeyPrefix+token, string(raw), s.cfg.TTL); err != nil {
		return "", "", fmt.Errorf("storing OTP challenge: %w", err)
	}
	return token, code, nil
}

// checkChallenge validates one verification attempt. The attempt ceiling is
// enforced at lookup: once the allowed wrong codes are spent, the next
// attempt is refused and the challenge deleted, even when it carries the
// right code. A wrong code below the ceiling burns one attempt and re-stores
// the challenge without extending its expiry. A correct code consumes the
// challenge.
func (s *OTPService) checkChallenge(ctx context.Context, token, code, purpose string) (*otpChallenge, error) {
	key := otpKeyPrefix + token
	raw, ok, err := s.tokens.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("reading OTP challenge: %w", err)
	}
	if !ok {
		return nil, apperrors.ErrOTPInvalid
	}

	var ch otpChallenge
	if err := json.Unmarshal([]byte(raw), &ch); err != nil {
		return nil, fmt.Errorf("decoding OTP challenge: %w", err)
	}
	if ch.Purpose != purpose {
		return nil, apperrors.ErrOTPInvalid
	}
	if ch.Attempts >= s.cfg.MaxAttempts {
		if err := s.tokens.Delete(ctx, key); err != nil {
			s.log.Warn("failed to delete exhausted OTP challenge", logger.Error(err))
		}
		return nil, apperrors.ErrOTPAttemptsExhausted
	}

	if subtle.ConstantTimeCompare([]byte(ch.Code), []byte(code)) != 1 {
		ch.Attempts++
		remaining, alive, err := s.tokens.TTL(ctx, key)
		if err != nil || !alive {
			return nil, apperrors.ErrOTPInvalid
		}
		updated, err := json.Marshal(ch)
		if err != nil {
			return nil, fmt.Errorf("encoding OTP challenge: %w", err)
		}
		if err := s.tokens.Put(ctx, key, string(updated), remaining); err != nil {
			return nil, fmt.Errorf("storing OTP challenge: %w", err)
		}
		return nil, apperrors.ErrOTPCodeMismatch
	}

	if err := s.tokens.Delete(ctx, key); err != nil {
		s.log.Warn("failed to delete consumed OTP challenge", logger.Error(err))
	}
	return &ch, nil
}

// seedDefaultTags inserts the starter tag set. An already-seeded user is a
// no-op.
func seedDefaultTags(ctx context.Context, tagRepo repository.TagRepository, userID uint) error {
	count, err := tagRepo.CountByUser(ctx, userID)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	tags := make([]models.UserTag, 0, len(models.DefaultTags))
	for _, t := range models.DefaultTags {
		tags = append(tags, models.UserTag{
			UserID: userID,
			Tag:    t,
			Icon:   models.DefaultTagIcon,
		})
	}
	if err := tagRepo.CreateBatch(ctx, tags); err != nil && !errors.Is(err, apperrors.ErrDuplicateTag) {
		return err
	}
	return nil
}

// openSession creates a fresh authenticated session row.
func openSession(ctx context.Context, sessionRepo repository.SessionRepository, userID uint, ip, userAgent string) (*models.Session, error) {
	id, err := randomToken(otpTokenLen)
	if err != nil {
		return nil, err
	}
	session := &models.Session{
		ID:        id,
		UserID:    &userID,
		IPAddress: ip,
		UserAgent: userAgent,
	}
	if err := sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// randomToken returns a crypto-random alphanumeric string of length n.
func randomToken(n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(tokenAlphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generating token: %w", err)
		}
		out[i] = tokenAlphabet[idx.Int64()]
	}
	return string(out), nil
}

// randomCode returns a 6-digit code in [100000, 999999].
func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generating OTP code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
