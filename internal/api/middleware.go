package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/urlmg/urlkeeper/internal/logger"
	"github.com/urlmg/urlkeeper/internal/scope"
)

// Context keys set by the identify middleware.
const (
	ctxUserID    = "auth.user_id"
	ctxSessionID = "auth.session_id"
	ctxRequestID = "request_id"
)

// requestID tags every request with a correlation id, echoed in the
// X-Request-Id response header.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}

// identify resolves the caller's identity from the session token, when one
// is presented. A token whose session row carries a user id authenticates
// the request; the row's last activity is refreshed as a side effect.
// Requests without a token pass through anonymously.
func (s *Server) identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := s.sessionToken(c)
		if token != "" {
			if sess, err := s.users.SessionInfo(c.Request.Context(), token); err == nil {
				c.Set(ctxSessionID, sess.ID)
				if sess.UserID != nil {
					c.Set(ctxUserID, *sess.UserID)
				}
				if err := s.users.TouchSession(c.Request.Context(), sess.ID); err != nil {
					s.log.Debug("session touch failed",
						logger.String("session_id", sess.ID),
						logger.Error(err))
				}
			}
		}
		c.Next()
	}
}

// requireAuth rejects requests that did not authenticate via identify.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := currentUserID(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Unauthenticated",
			})
			return
		}
		c.Next()
	}
}

// sessionToken extracts the presented session token: Authorization bearer,
// then the X-Session-Id header, then the session cookie.
func (s *Server) sessionToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")); token != "" {
			return token
		}
	}
	if token := c.GetHeader("X-Session-Id"); token != "" {
		return token
	}
	cookie, err := c.Cookie(s.cookieName)
	if err != nil {
		return ""
	}
	return cookie
}

// currentUserID returns the authenticated principal, when there is one.
func currentUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

// requestScope derives the ownership key for the request. bodySessionID is
// the session_id carried in the request body or query string, which takes
// precedence over the header and cookie sources for guests.
func (s *Server) requestScope(c *gin.Context, bodySessionID string) (scope.Key, error) {
	var principal *uint
	if id, ok := currentUserID(c); ok {
		principal = &id
	}
	cookie, _ := c.Cookie(s.cookieName)
	return scope.Resolve(principal, bodySessionID, c.GetHeader("X-Session-Id"), cookie)
}

// guestSessionID returns the session token a credential flow should migrate
// URLs from: the explicit body value when present, else whatever token the
// request carried.
func (s *Server) guestSessionID(c *gin.Context, bodySessionID string) string {
	if bodySessionID != "" {
		return bodySessionID
	}
	return s.sessionToken(c)
}

// setSessionCookie installs the authenticated session cookie.
func (s *Server) setSessionCookie(c *gin.Context, sessionID string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.cookieName, sessionID, int(s.sessionTTL.Seconds()), "/", "", false, true)
}

// clearSessionCookie removes the session cookie on logout.
func (s *Server) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.cookieName, "", -1, "/", "", false, true)
}
