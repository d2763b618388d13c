package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/urlmg/urlkeeper/internal/errors"
)

func TestKeyVariants(t *testing.T) {
	user := ForUser(42)
	assert.True(t, user.IsUser())
	assert.False(t, user.IsZero())
	id, ok := user.UserID()
	require.True(t, ok)
	assert.Equal(t, uint(42), id)
	_, ok = user.SessionID()
	assert.False(t, ok)
	assert.Equal(t, "user:42", user.String())

	sess := ForSession("abc123")
	assert.False(t, sess.IsUser())
	assert.False(t, sess.IsZero())
	sid, ok := sess.SessionID()
	require.True(t, ok)
	assert.Equal(t, "abc123", sid)
	assert.Equal(t, "session:abc123", sess.String())

	var zero Key
	assert.True(t, zero.IsZero())
	assert.Equal(t, "none", zero.String())
}

func TestResolvePrincipalWins(t *testing.T) {
	id := uint(7)
	key, err := Resolve(&id, "body-session", "header-session", "cookie-session")
	require.NoError(t, err)
	assert.Equal(t, ForUser(7), key)
}

func TestResolveSessionPrecedence(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		header string
		cookie string
		want   Key
	}{
		{"body first", "b", "h", "c", ForSession("b")},
		{"header when no body", "", "h", "c", ForSession("h")},
		{"cookie last", "", "", "c", ForSession("c")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := Resolve(nil, tt.body, tt.header, tt.cookie)
			require.NoError(t, err)
			assert.Equal(t, tt.want, key)
		})
	}
}

func TestResolveNoSource(t *testing.T) {
	_, err := Resolve(nil, "", "", "")
	assert.ErrorIs(t, err, apperrors.ErrSessionRequired)
}
