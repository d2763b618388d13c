package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/urlmg/urlkeeper/internal/errors"
	"github.com/urlmg/urlkeeper/internal/logger"
)

// renderError maps a service error onto the response taxonomy. Unknown
// errors become a generic 500 with details kept in the log.
func (s *Server) renderError(c *gin.Context, err error) {
	var (
		limitErr apperrors.ErrTagLimitReached
		mailErr  apperrors.ErrMailDelivery
		inErr    apperrors.ErrIndexNowSubmit
	)

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		s.fail(c, http.StatusNotFound, "Record not found")
	case errors.Is(err, apperrors.ErrSessionRequired),
		errors.Is(err, apperrors.ErrInvalidURL),
		errors.Is(err, apperrors.ErrInvalidStatus),
		errors.Is(err, apperrors.ErrInvalidTags),
		errors.Is(err, apperrors.ErrOTPInvalid),
		errors.Is(err, apperrors.ErrOTPCodeMismatch),
		errors.Is(err, apperrors.ErrResetTokenInvalid):
		s.fail(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, apperrors.ErrUserExists),
		errors.Is(err, apperrors.ErrDuplicateTag):
		s.fail(c, http.StatusConflict, err.Error())
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		s.fail(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, apperrors.ErrOTPAttemptsExhausted):
		s.fail(c, http.StatusTooManyRequests, err.Error())
	case errors.As(err, &limitErr):
		s.fail(c, http.StatusUnprocessableEntity, limitErr.Error())
	case errors.As(err, &mailErr):
		s.log.Error("mail delivery failed", logger.Error(err))
		s.fail(c, http.StatusInternalServerError, "Failed to send OTP email")
	case errors.As(err, &inErr):
		s.log.Error("indexnow call failed", logger.Error(err))
		s.fail(c, http.StatusBadGateway, "IndexNow submission failed")
	default:
		s.log.Error("unhandled request error",
			logger.String("path", c.FullPath()),
			logger.Error(err))
		s.fail(c, http.StatusInternalServerError, "Internal server error")
	}
}

func (s *Server) fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

// badRequest reports a body that did not bind.
func (s *Server) badRequest(c *gin.Context, err error) {
	s.fail(c, http.StatusUnprocessableEntity, "Invalid request body: "+err.Error())
}
