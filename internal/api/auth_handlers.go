package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type sendSignupOTPRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// sendSignupOTP starts the signup flow. No account exists until the code is
// verified; the returned token references the pending challenge.
func (s *Server) sendSignupOTP(c *gin.Context) {
	var req sendSignupOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	token, err := s.otp.IssueSignup(c.Request.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "OTP sent to your email",
		"token":   token,
	})
}

type verifySignupOTPRequest struct {
	Token     string `json:"token" binding:"required"`
	OTP       string `json:"otp" binding:"required"`
	SessionID string `json:"session_id"`
}

// verifySignupOTP completes signup: account creation, default tags, a fresh
// authenticated session and migration of the guest session's URLs.
func (s *Server) verifySignupOTP(c *gin.Context) {
	var req verifySignupOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	guestSession := s.guestSessionID(c, req.SessionID)
	result, err := s.otp.VerifySignup(c.Request.Context(),
		req.Token, req.OTP, guestSession, c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		s.renderError(c, err)
		return
	}

	s.setSessionCookie(c, result.Session.ID)
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"message":       "Account verified successfully",
		"user":          result.User,
		"session_id":    result.Session.ID,
		"migrated_urls": result.MigratedURLs,
	})
}

type sendResetOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func (s *Server) sendResetOTP(c *gin.Context) {
	var req sendResetOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	token, err := s.otp.IssueReset(c.Request.Context(), req.Email)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "OTP sent to your email",
		"token":   token,
	})
}

type verifyResetOTPRequest struct {
	Token string `json:"token" binding:"required"`
	OTP   string `json:"otp" binding:"required"`
}

// verifyResetOTP exchanges a correct reset code for a short-lived grant; the
// grant alone authorizes the subsequent password change.
func (s *Server) verifyResetOTP(c *gin.Context) {
	var req verifyResetOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	grant, err := s.otp.VerifyReset(c.Request.Context(), req.Token, req.OTP)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     "OTP verified",
		"reset_token": grant,
	})
}

type resetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

func (s *Server) resetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	if err := s.otp.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Password updated successfully, please log in again",
	})
}

type loginRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required"`
	SessionID string `json:"session_id"`
}

// login authenticates and opens a fresh session. Any guest URLs under the
// presented session token move into the account.
func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	guestSession := s.guestSessionID(c, req.SessionID)
	result, err := s.users.Login(c.Request.Context(),
		req.Email, req.Password, guestSession, c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		s.renderError(c, err)
		return
	}

	s.setSessionCookie(c, result.Session.ID)
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"message":       "Logged in successfully",
		"user":          result.User,
		"session_id":    result.Session.ID,
		"migrated_urls": result.MigratedURLs,
	})
}

// logout tears down the presented session. Logging out without one still
// succeeds; there is nothing to reveal.
func (s *Server) logout(c *gin.Context) {
	if token := s.sessionToken(c); token != "" {
		if err := s.users.Logout(c.Request.Context(), token); err != nil {
			s.renderError(c, err)
			return
		}
	}
	s.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Logged out successfully",
	})
}
