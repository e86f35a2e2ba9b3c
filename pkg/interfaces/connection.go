package interfaces

import "chathub/pkg/types"

// Connection is a live client connection as seen by the hub and registry.
// Implementations must serialize writes internally; WriteJSON is safe to
// call from any goroutine.
type Connection interface {
	// ID returns the stable identifier assigned at accept time. Presence
	// is keyed by this ID, not by the transport object.
	ID() string

	// WriteJSON sends a JSON frame to the client (thread-safe).
	WriteJSON(v interface{}) error

	// Close tears the connection down. Idempotent.
	Close() error

	// Identity returns the authenticated identity, or nil before the
	// connection has authenticated.
	Identity() *types.UserIdentity

	// SetIdentity marks the connection authenticated.
	SetIdentity(identity *types.UserIdentity)

	// IsAuthenticated reports whether an identity has been set.
	IsAuthenticated() bool
}
