package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"github.com/urlmg/urlkeeper/internal/models"
	"gorm.io/gorm"
)

// newTestDB opens a throwaway sqlite database. busy_timeout keeps concurrent
// writers queued instead of failing with SQLITE_BUSY; TranslateError gives
// the repositories the gorm sentinels they translate.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.URL{}, &models.User{}, &models.Session{},
		&models.UserTag{}, &models.Background{}, &models.Notification{},
	))
	return db
}

func createUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := &models.User{Name: "Test", Email: email, Password: "x"}
	require.NoError(t, NewUserRepository(db).Create(context.Background(), user))
	return user
}

func guestURL(sessionID, target string) *models.URL {
	sid := sessionID
	return &models.URL{SessionID: &sid, Target: target, Status: models.StatusActive}
}

func userURL(userID uint, target string) *models.URL {
	uid := userID
	return &models.URL{UserID: &uid, Target: target, Status: models.StatusActive}
}
