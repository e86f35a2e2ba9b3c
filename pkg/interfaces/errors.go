package interfaces

import "errors"

// Errors shared across interface boundaries.
var (
	ErrInvalidToken    = errors.New("invalid or expired token")
	ErrUserDisabled    = errors.New("user account is disabled")
	ErrUserNotFound    = errors.New("user not found")
	ErrMessageNotFound = errors.New("message not found")
)
