// Package scope defines the ownership key that partitions every URL record
// and cache entry: a record belongs to an authenticated user or to an
// anonymous session, never both.
package scope

import (
	"fmt"

	apperrors "github.com/urlmg/urlkeeper/internal/errors"
)

type kind int

const (
	kindNone kind = iota
	kindUser
	kindSession
)

// Key is a two-variant ownership key: User(id) or Session(token).
// The zero value is invalid for any URL operation. All ownership comparisons
// go through this type rather than raw nullable columns.
type Key struct {
	kind      kind
	userID    uint
	sessionID string
}

// ForUser returns a user-scoped key.
func ForUser(id uint) Key {
	return Key{kind: kindUser, userID: id}
}

// ForSession returns a session-scoped key.
func ForSession(token string) Key {
	return Key{kind: kindSession, sessionID: token}
}

// IsZero reports whether the key carries no identity at all.
func (k Key) IsZero() bool { return k.kind == kindNone }

// IsUser reports whether the key identifies an authenticated user.
func (k Key) IsUser() bool { return k.kind == kindUser }

// UserID returns the user id when the key is user-scoped.
func (k Key) UserID() (uint, bool) {
	return k.userID, k.kind == kindUser
}

// SessionID returns the session token when the key is session-scoped.
func (k Key) SessionID() (string, bool) {
	return k.sessionID, k.kind == kindSession
}

// String renders the key for cache composition and logging:
// "user:42" or "session:<token>".
func (k Key) String() string {
	switch k.kind {
	case kindUser:
		return fmt.Sprintf("user:%d", k.userID)
	case kindSession:
		return "session:" + k.sessionID
	default:
		return "none"
	}
}

// Resolve derives the ownership key from request state. It is a pure
// function: an authenticated principal wins outright; otherwise the session
// token is taken from the body/query field, then the X-Session-Id header,
// then the session cookie, in that order. With no source present the
// request cannot be scoped and ErrSessionRequired is returned.
func Resolve(principalID *uint, bodySessionID, headerSessionID, cookieSessionID string) (Key, error) {
	if principalID != nil {
		return ForUser(*principalID), nil
	}
	for _, sid := range []string{bodySessionID, headerSessionID, cookieSessionID} {
		if sid != "" {
			return ForSession(sid), nil
		}
	}
	return Key{}, apperrors.ErrSessionRequired
}
