package interfaces

import (
	"context"

	"chathub/pkg/types"
)

// UserDirectory resolves bearer tokens and user IDs to account identities.
// A resolution failure is terminal for that authentication attempt; the hub
// never retries.
type UserDirectory interface {
	// ResolveToken maps a session token to the identity behind it. Returns
	// ErrInvalidToken for empty, unknown or expired tokens and for missing
	// users, ErrUserDisabled for disabled accounts.
	ResolveToken(ctx context.Context, token string) (*types.UserIdentity, error)

	// User looks up an account by ID, used to snapshot nickname/username
	// onto mute records for admin listings.
	User(ctx context.Context, userID string) (*types.UserIdentity, error)
}
