package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urlmg/urlkeeper/internal/cache"
	apperrors "github.com/urlmg/urlkeeper/internal/errors"
	"github.com/urlmg/urlkeeper/internal/logger"
	"github.com/urlmg/urlkeeper/internal/models"
	"github.com/urlmg/urlkeeper/internal/password"
	"github.com/urlmg/urlkeeper/internal/scope"
)

func TestSignupFlow(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	// Guest saves a URL before signing up.
	_, err := env.urls.Create(ctx, scope.ForSession("guest-abc"), CreateInput{Target: "https://example.com/mine"})
	require.NoError(t, err)
	require.NoError(t, env.sessionRepo.Create(ctx, &models.Session{ID: "guest-abc"}))

	token, err := env.otp.IssueSignup(ctx, "New@Example.com", "New User", "password123")
	require.NoError(t, err)
	assert.Len(t, token, 40)
	code := env.mailer.code()
	require.Len(t, code, 6)

	// No account exists until the code is verified.
	_, err = env.userRepo.FindByEmail(ctx, "new@example.com")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	result, err := env.otp.VerifySignup(ctx, token, code, "guest-abc", "127.0.0.1", "agent")
	require.NoError(t, err)

	user := result.User
	assert.Equal(t, "new@example.com", user.Email)
	assert.NotNil(t, user.EmailVerifiedAt)
	ok, err := password.Verify("password123", user.Password)
	require.NoError(t, err)
	assert.True(t, ok)

	// A fresh authenticated session was opened.
	require.NotNil(t, result.Session)
	sess, err := env.sessionRepo.Find(ctx, result.Session.ID)
	require.NoError(t, err)
	require.NotNil(t, sess.UserID)
	assert.Equal(t, user.ID, *sess.UserID)

	// Default tags were seeded.
	tags, err := env.tagRepo.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, tags, len(models.DefaultTags))

	// The guest URL now belongs to the account.
	assert.Equal(t, int64(1), result.MigratedURLs)
	urls, err := env.urls.List(ctx, scope.ForUser(user.ID), "", "")
	require.NoError(t, err)
	require.Len(t, urls, 1)
	assert.Equal(t, "https://example.com/mine", urls[0].Target)

	urls, err = env.urls.List(ctx, scope.ForSession("guest-abc"), "", "")
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestSignupOTPIsSingleUse(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	token, err := env.otp.IssueSignup(ctx, "once@example.com", "", "password123")
	require.NoError(t, err)
	code := env.mailer.code()

	_, err = env.otp.VerifySignup(ctx, token, code, "", "", "")
	require.NoError(t, err)

	_, err = env.otp.VerifySignup(ctx, token, code, "", "", "")
	assert.ErrorIs(t, err, apperrors.ErrOTPInvalid)
}

func TestSignupVerifyKeepsExistingName(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	// Challenge issued without a display name.
	token, err := env.otp.IssueSignup(ctx, "racer@example.com", "", "password123")
	require.NoError(t, err)

	// The account appears before the code is verified.
	hash, err := password.Hash("otherpassword")
	require.NoError(t, err)
	require.NoError(t, env.userRepo.Create(ctx, &models.User{
		Name:     "Settled Name",
		Email:    "racer@example.com",
		Password: hash,
	}))

	result, err := env.otp.VerifySignup(ctx, token, env.mailer.code(), "", "", "")
	require.NoError(t, err)
	assert.Equal(t, "Settled Name", result.User.Name)

	// The challenge's password still wins.
	ok, err := password.Verify("password123", result.User.Password)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSignupRejectsExistingEmail(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	mustSignup(t, env, "taken@example.com", "")

	_, err := env.otp.IssueSignup(ctx, "taken@example.com", "", "password123")
	assert.ErrorIs(t, err, apperrors.ErrUserExists)
}

func TestWrongCodeBurnsAttempt(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	token, err := env.otp.IssueSignup(ctx, "a@example.com", "", "password123")
	require.NoError(t, err)

	_, err = env.otp.VerifySignup(ctx, token, "000000", "", "", "")
	assert.ErrorIs(t, err, apperrors.ErrOTPCodeMismatch)

	// The challenge survives a wrong code; the right one still works.
	_, err = env.otp.VerifySignup(ctx, token, env.mailer.code(), "", "", "")
	assert.NoError(t, err)
}

func TestAttemptCeilingInvalidatesChallenge(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	token, err := env.otp.IssueSignup(ctx, "a@example.com", "", "password123")
	require.NoError(t, err)
	code := env.mailer.code()
	wrong := "000000"
	if code == wrong {
		wrong = "000001"
	}

	// Every allowed wrong code reads as a plain mismatch.
	for i := 0; i < 5; i++ {
		_, err = env.otp.VerifySignup(ctx, token, wrong, "", "", "")
		assert.ErrorIs(t, err, apperrors.ErrOTPCodeMismatch)
	}

	// The next attempt is refused and invalidates the challenge, correct
	// code or not.
	_, err = env.otp.VerifySignup(ctx, token, code, "", "", "")
	assert.ErrorIs(t, err, apperrors.ErrOTPAttemptsExhausted)

	_, err = env.otp.VerifySignup(ctx, token, code, "", "", "")
	assert.ErrorIs(t, err, apperrors.ErrOTPInvalid)
}

func TestResetFlow(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := mustSignup(t, env, "reset@example.com", "")

	uid := user.ID
	require.NoError(t, env.sessionRepo.Create(ctx, &models.Session{ID: "old-session", UserID: &uid}))

	_, err := env.otp.IssueReset(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	token, err := env.otp.IssueReset(ctx, "reset@example.com")
	require.NoError(t, err)

	grant, err := env.otp.VerifyReset(ctx, token, env.mailer.code())
	require.NoError(t, err)
	assert.Len(t, grant, 60)

	require.NoError(t, env.otp.ResetPassword(ctx, grant, "brand-new-password"))

	refreshed, err := env.userRepo.FindByEmail(ctx, "reset@example.com")
	require.NoError(t, err)
	ok, err := password.Verify("brand-new-password", refreshed.Password)
	require.NoError(t, err)
	assert.True(t, ok)

	// Every session of the account was revoked.
	_, err = env.sessionRepo.Find(ctx, "old-session")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	// The grant is single-use.
	err = env.otp.ResetPassword(ctx, grant, "another-password")
	assert.ErrorIs(t, err, apperrors.ErrResetTokenInvalid)
}

func TestResetGrantFollowsAccountNotEmail(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := mustSignup(t, env, "reset@example.com", "")

	token, err := env.otp.IssueReset(ctx, "reset@example.com")
	require.NoError(t, err)
	grant, err := env.otp.VerifyReset(ctx, token, env.mailer.code())
	require.NoError(t, err)

	// The address changes between verify and reset; the grant still resets
	// the same account.
	user.Email = "moved@example.com"
	require.NoError(t, env.userRepo.Update(ctx, user))

	require.NoError(t, env.otp.ResetPassword(ctx, grant, "brand-new-password"))

	refreshed, err := env.userRepo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	ok, err := password.Verify("brand-new-password", refreshed.Password)
	require.NoError(t, err)
	assert.True(t, ok)
}

// brokenDeleteStore fails deletes of reset grants while passing everything
// else through.
type brokenDeleteStore struct {
	*cache.MemoryStore
}

func (s *brokenDeleteStore) Delete(ctx context.Context, key string) error {
	if strings.HasPrefix(key, "password_reset_token:") {
		return errors.New("store down")
	}
	return s.MemoryStore.Delete(ctx, key)
}

func TestResetFailsWhenGrantCannotBeConsumed(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := mustSignup(t, env, "reset@example.com", "")

	otp := NewOTPService(env.userRepo, env.tagRepo, env.sessionRepo, env.urls,
		&brokenDeleteStore{MemoryStore: env.store}, env.mailer, OTPConfig{
			TTL:           10 * time.Minute,
			MaxAttempts:   5,
			ResetGrantTTL: 15 * time.Minute,
		}, logger.NewNop())

	token, err := otp.IssueReset(ctx, "reset@example.com")
	require.NoError(t, err)
	grant, err := otp.VerifyReset(ctx, token, env.mailer.code())
	require.NoError(t, err)

	// The grant cannot be destroyed, so the reset must not go through.
	err = otp.ResetPassword(ctx, grant, "brand-new-password")
	require.Error(t, err)

	refreshed, err := env.userRepo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	ok, err := password.Verify("password123", refreshed.Password)
	require.NoError(t, err)
	assert.True(t, ok, "password must be unchanged while the grant is live")
}

func TestResetGrantRequiresVerifiedOTP(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	mustSignup(t, env, "reset@example.com", "")

	err := env.otp.ResetPassword(ctx, "forged-grant", "whatever123")
	assert.ErrorIs(t, err, apperrors.ErrResetTokenInvalid)
}

func TestResetMailFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	mustSignup(t, env, "reset@example.com", "")

	env.mailer.setFailure(errors.New("smtp down"))
	_, err := env.otp.IssueReset(ctx, "reset@example.com")

	var mailErr apperrors.ErrMailDelivery
	assert.ErrorAs(t, err, &mailErr)
}

func TestSignupMailFailureKeepsChallenge(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.mailer.setFailure(errors.New("smtp down"))
	token, err := env.otp.IssueSignup(ctx, "a@example.com", "", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestOTPTokensAreDistinctPerPurpose(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	mustSignup(t, env, "a@example.com", "")

	// A reset token cannot be replayed through the signup verifier.
	token, err := env.otp.IssueReset(ctx, "a@example.com")
	require.NoError(t, err)

	_, err = env.otp.VerifySignup(ctx, token, env.mailer.code(), "", "", "")
	assert.ErrorIs(t, err, apperrors.ErrOTPInvalid)
}
