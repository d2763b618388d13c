package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/urlmg/urlkeeper/internal/errors"
	"github.com/urlmg/urlkeeper/internal/models"
	"github.com/urlmg/urlkeeper/internal/scope"
)

func TestScopeIsolation(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewURLRepository(db)
	user := createUser(t, db, "a@example.com")

	mine := userURL(user.ID, "https://example.com/mine")
	require.NoError(t, repo.Create(ctx, mine))
	theirs := guestURL("other-session", "https://example.com/theirs")
	require.NoError(t, repo.Create(ctx, theirs))

	// A record owned by another scope is reported missing, not forbidden.
	_, err := repo.FindInScope(ctx, scope.ForUser(user.ID), theirs.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = repo.FindInScope(ctx, scope.ForSession("other-session"), mine.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	got, err := repo.FindInScope(ctx, scope.ForUser(user.ID), mine.ID)
	require.NoError(t, err)
	assert.Equal(t, mine.ID, got.ID)

	urls, err := repo.ListByScope(ctx, scope.ForUser(user.ID), "")
	require.NoError(t, err)
	require.Len(t, urls, 1)
	assert.Equal(t, mine.ID, urls[0].ID)
}

func TestListByScopeStatusFilter(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewURLRepository(db)

	active := guestURL("s1", "https://example.com/a")
	require.NoError(t, repo.Create(ctx, active))
	archived := guestURL("s1", "https://example.com/b")
	archived.Status = models.StatusArchived
	require.NoError(t, repo.Create(ctx, archived))

	urls, err := repo.ListByScope(ctx, scope.ForSession("s1"), models.StatusArchived)
	require.NoError(t, err)
	require.Len(t, urls, 1)
	assert.Equal(t, archived.ID, urls[0].ID)

	urls, err = repo.ListByScope(ctx, scope.ForSession("s1"), "")
	require.NoError(t, err)
	assert.Len(t, urls, 2)
}

func TestDeleteOutOfScope(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewURLRepository(db)

	rec := guestURL("s1", "https://example.com")
	require.NoError(t, repo.Create(ctx, rec))

	err := repo.Delete(ctx, scope.ForSession("s2"), rec.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, repo.Delete(ctx, scope.ForSession("s1"), rec.ID))
	err = repo.Delete(ctx, scope.ForSession("s1"), rec.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestIncrementClicksConcurrent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewURLRepository(db)

	rec := guestURL("s1", "https://example.com")
	require.NoError(t, repo.Create(ctx, rec))
	key := scope.ForSession("s1")

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.IncrementClicks(ctx, key, rec.ID); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent increment failed: %v", err)
	}

	got, err := repo.FindInScope(ctx, key, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(n), got.URLClicks)
}

func TestIncrementClicksOutOfScope(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewURLRepository(db)

	rec := guestURL("s1", "https://example.com")
	require.NoError(t, repo.Create(ctx, rec))

	_, err := repo.IncrementClicks(ctx, scope.ForSession("s2"), rec.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDeleteDuplicates(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewURLRepository(db)

	keep := guestURL("s1", "https://example.com/dup")
	require.NoError(t, repo.Create(ctx, keep))
	dup1 := guestURL("s1", "https://example.com/dup")
	require.NoError(t, repo.Create(ctx, dup1))
	dup2 := guestURL("s1", "https://example.com/dup")
	require.NoError(t, repo.Create(ctx, dup2))
	other := guestURL("s1", "https://example.com/other")
	require.NoError(t, repo.Create(ctx, other))
	// Same target, different scope: must survive.
	foreign := guestURL("s2", "https://example.com/dup")
	require.NoError(t, repo.Create(ctx, foreign))

	deleted, err := repo.DeleteDuplicates(ctx, scope.ForSession("s1"), keep.Target, keep.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	_, err = repo.FindInScope(ctx, scope.ForSession("s1"), keep.ID)
	assert.NoError(t, err)
	_, err = repo.FindInScope(ctx, scope.ForSession("s1"), other.ID)
	assert.NoError(t, err)
	_, err = repo.FindInScope(ctx, scope.ForSession("s2"), foreign.ID)
	assert.NoError(t, err)
	_, err = repo.FindInScope(ctx, scope.ForSession("s1"), dup1.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestTransferOwnership(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewURLRepository(db)
	sessions := NewSessionRepository(db)
	user := createUser(t, db, "a@example.com")

	require.NoError(t, sessions.Create(ctx, &models.Session{ID: "guest-1"}))
	u1 := guestURL("guest-1", "https://example.com/1")
	require.NoError(t, repo.Create(ctx, u1))
	u2 := guestURL("guest-1", "https://example.com/2")
	require.NoError(t, repo.Create(ctx, u2))
	foreign := guestURL("guest-2", "https://example.com/3")
	require.NoError(t, repo.Create(ctx, foreign))

	migrated, err := repo.TransferOwnership(ctx, "guest-1", user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), migrated)

	// Re-keyed records carry the user id and nothing else.
	for _, id := range []uint{u1.ID, u2.ID} {
		got, err := repo.FindInScope(ctx, scope.ForUser(user.ID), id)
		require.NoError(t, err)
		require.NotNil(t, got.UserID)
		assert.Equal(t, user.ID, *got.UserID)
		assert.Nil(t, got.SessionID)
	}

	// The guest scope no longer sees them.
	urls, err := repo.ListByScope(ctx, scope.ForSession("guest-1"), "")
	require.NoError(t, err)
	assert.Empty(t, urls)

	// Other guests are untouched.
	_, err = repo.FindInScope(ctx, scope.ForSession("guest-2"), foreign.ID)
	assert.NoError(t, err)

	// The superseded guest session row is gone.
	_, err = sessions.Find(ctx, "guest-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestTransferOwnershipRollsBack(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewURLRepository(db)
	user := createUser(t, db, "a@example.com")

	rec := guestURL("guest-1", "https://example.com/1")
	require.NoError(t, repo.Create(ctx, rec))

	// Force the second statement of the transaction to fail.
	require.NoError(t, db.Migrator().DropTable(&models.Session{}))

	_, err := repo.TransferOwnership(ctx, "guest-1", user.ID)
	require.Error(t, err)

	// The re-keying must have rolled back with it.
	got, err := repo.FindInScope(ctx, scope.ForSession("guest-1"), rec.ID)
	require.NoError(t, err)
	assert.Nil(t, got.UserID)
	require.NotNil(t, got.SessionID)
	assert.Equal(t, "guest-1", *got.SessionID)
}

func TestFindAnyIgnoresScope(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewURLRepository(db)

	rec := guestURL("s1", "https://example.com")
	require.NoError(t, repo.Create(ctx, rec))

	got, err := repo.FindAny(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	_, err = repo.FindAny(ctx, 9999)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
