package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListingKey(t *testing.T) {
	assert.Equal(t, "urls:user:1:all:all", ListingKey("user:1", "", ""))
	assert.Equal(t, "urls:session:abc:active:all", ListingKey("session:abc", "active", ""))
	assert.Equal(t, "urls:user:1:archived:work", ListingKey("user:1", "archived", "work"))
}

func TestMemoryGetOrCompute(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	calls := 0
	compute := func() (string, error) {
		calls++
		return "value", nil
	}

	val, err := s.GetOrCompute(ctx, "k", time.Minute, compute)
	require.NoError(t, err)
	assert.Equal(t, "value", val)
	assert.Equal(t, 1, calls)

	// Second read is served from cache.
	val, err = s.GetOrCompute(ctx, "k", time.Minute, compute)
	require.NoError(t, err)
	assert.Equal(t, "value", val)
	assert.Equal(t, 1, calls)
}

func TestMemoryGetOrComputeError(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	boom := errors.New("boom")
	_, err := s.GetOrCompute(ctx, "k", time.Minute, func() (string, error) {
		return "", boom
	})
	assert.ErrorIs(t, err, boom)

	// The failed compute must not have cached anything.
	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryInvalidate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.GetOrCompute(ctx, "k", time.Minute, func() (string, error) { return "v1", nil })
	require.NoError(t, err)
	require.NoError(t, s.Invalidate(ctx, "k"))

	val, err := s.GetOrCompute(ctx, "k", time.Minute, func() (string, error) { return "v2", nil })
	require.NoError(t, err)
	assert.Equal(t, "v2", val)

	// Invalidating a missing key is not an error.
	assert.NoError(t, s.Invalidate(ctx, "missing"))
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	now := time.Now()
	s.SetClock(func() time.Time { return now })

	require.NoError(t, s.Put(ctx, "token", "payload", 10*time.Minute))

	val, ok, err := s.Get(ctx, "token")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "payload", val)

	ttl, ok, err := s.TTL(ctx, "token")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 10*time.Minute, ttl)

	// Jump past expiry.
	now = now.Add(11 * time.Minute)
	_, ok, err = s.Get(ctx, "token")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.TTL(ctx, "token")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryPutReplaces(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, "k", "old", time.Minute))
	require.NoError(t, s.Put(ctx, "k", "new", time.Minute))

	val, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "new", val)
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, "k", "v", time.Minute))
	require.NoError(t, s.Delete(ctx, "k"))

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, s.Delete(ctx, "k"))
}
