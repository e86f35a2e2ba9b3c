package types

import "errors"

// Content-rule violations. Each maps to an error frame sent to the sender
// only; nothing is persisted or broadcast.
var (
	ErrMessageTooLong  = errors.New("message exceeds maximum length")
	ErrBlockedWord     = errors.New("message contains a blocked word")
	ErrLinkNotAllowed  = errors.New("links are not allowed")
	ErrImageNotAllowed = errors.New("image links are not allowed")
)
