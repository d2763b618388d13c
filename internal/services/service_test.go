package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"github.com/urlmg/urlkeeper/internal/cache"
	"github.com/urlmg/urlkeeper/internal/logger"
	"github.com/urlmg/urlkeeper/internal/models"
	"github.com/urlmg/urlkeeper/internal/repository"
	"gorm.io/gorm"
)

type testEnv struct {
	db          *gorm.DB
	store       *cache.MemoryStore
	urlRepo     repository.URLRepository
	userRepo    repository.UserRepository
	tagRepo     repository.TagRepository
	sessionRepo repository.SessionRepository
	urls        *URLService
	users       *UserService
	otp         *OTPService
	mailer      *recordingMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.URL{}, &models.User{}, &models.Session{},
		&models.UserTag{}, &models.Background{}, &models.Notification{},
	))

	store := cache.NewMemoryStore()
	log := logger.NewNop()

	urlRepo := repository.NewURLRepository(db)
	userRepo := repository.NewUserRepository(db)
	tagRepo := repository.NewTagRepository(db)
	sessionRepo := repository.NewSessionRepository(db)

	urls := NewURLService(urlRepo, store, 5*time.Minute, log)
	users := NewUserService(userRepo, tagRepo, sessionRepo, urls, log)
	mailer := &recordingMailer{}
	otp := NewOTPService(userRepo, tagRepo, sessionRepo, urls, store, mailer, OTPConfig{
		TTL:           10 * time.Minute,
		MaxAttempts:   5,
		ResetGrantTTL: 15 * time.Minute,
	}, log)

	return &testEnv{
		db:          db,
		store:       store,
		urlRepo:     urlRepo,
		userRepo:    userRepo,
		tagRepo:     tagRepo,
		sessionRepo: sessionRepo,
		urls:        urls,
		users:       users,
		otp:         otp,
		mailer:      mailer,
	}
}

// mustSignup runs the whole signup flow for a fresh account and returns the
// created user. guestSessionID may be empty when there is nothing to migrate.
func mustSignup(t *testing.T, env *testEnv, email, guestSessionID string) *models.User {
	t.Helper()
	ctx := context.Background()

	token, err := env.otp.IssueSignup(ctx, email, "Tester", "password123")
	require.NoError(t, err)

	result, err := env.otp.VerifySignup(ctx, token, env.mailer.code(), guestSessionID, "127.0.0.1", "test-agent")
	require.NoError(t, err)
	return result.User
}

// recordingMailer captures outbound OTP codes instead of sending them.
type recordingMailer struct {
	mu         sync.Mutex
	lastTo     string
	lastCode   string
	signupSent int
	resetSent  int
	fail       error
}

func (m *recordingMailer) SendSignupOTP(_ context.Context, to, _ string, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.lastTo, m.lastCode = to, code
	m.signupSent++
	return nil
}

func (m *recordingMailer) SendPasswordResetOTP(_ context.Context, to, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.lastTo, m.lastCode = to, code
	m.resetSent++
	return nil
}

func (m *recordingMailer) code() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastCode
}

func (m *recordingMailer) setFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}
