package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across services and handlers.

// ErrNotFound is returned when a record is absent or owned by a different
// scope. The two cases are deliberately indistinguishable.
var ErrNotFound = errors.New("record not found")

// ErrInvalidURL is returned when the provided target URL is not a valid absolute URL.
var ErrInvalidURL = errors.New("invalid URL format")

// ErrInvalidStatus is returned when a status value is outside active/archived/deleted.
var ErrInvalidStatus = errors.New("invalid status value")

// ErrInvalidTags is returned when the tags field cannot be interpreted as a
// set of strings.
var ErrInvalidTags = errors.New("tags must be an array of strings or a string")

// ErrSessionRequired is returned when an unauthenticated request carries no
// session identifier in any of the accepted sources.
var ErrSessionRequired = errors.New("session_id is required when unauthenticated")

// ErrUserExists is returned when signup is attempted for an already registered email.
var ErrUserExists = errors.New("user already exists with this email")

// ErrInvalidCredentials is returned on login with a wrong email/password pair.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrOTPInvalid is returned when an OTP token is unknown or expired.
var ErrOTPInvalid = errors.New("invalid or expired OTP token")

// ErrOTPCodeMismatch is returned on a wrong code for a live challenge.
var ErrOTPCodeMismatch = errors.New("invalid OTP")

// ErrOTPAttemptsExhausted is returned once the attempt ceiling is reached;
// the challenge is invalidated at that point.
var ErrOTPAttemptsExhausted = errors.New("too many attempts, OTP invalidated")

// ErrResetTokenInvalid is returned for an unknown or expired password-reset grant.
var ErrResetTokenInvalid = errors.New("invalid or expired reset token")

// ErrDuplicateTag is returned when a tag already exists for the user,
// compared case-insensitively. Also covers the constraint-race path.
var ErrDuplicateTag = errors.New("tag already exists")

// ErrTagLimitReached is returned when the per-user tag ceiling is hit.
type ErrTagLimitReached struct {
	Limit int
	Count int
}

func (e ErrTagLimitReached) Error() string {
	return fmt.Sprintf("tag limit reached: you already have %d of %d tags", e.Count, e.Limit)
}

// ErrIndexNowSubmit is returned when an IndexNow submission fails.
type ErrIndexNowSubmit struct {
	Status int
	Reason string
}

func (e ErrIndexNowSubmit) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("indexnow submission failed with status %d: %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("indexnow submission failed: %s", e.Reason)
}

// ErrMailDelivery is returned when the mail collaborator fails; the OTP flow
// decides whether this is fatal for the request.
type ErrMailDelivery struct {
	To     string
	Reason string
}

func (e ErrMailDelivery) Error() string {
	return fmt.Sprintf("failed to deliver mail to %s: %s", e.To, e.Reason)
}
