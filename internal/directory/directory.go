package directory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"chathub/internal/database"
	"chathub/pkg/interfaces"
	"chathub/pkg/types"
)

// Directory resolves bearer tokens against the users and user_sessions
// tables. A failed resolution is terminal for that authentication attempt;
// callers never retry.
type Directory struct {
	db  *database.Manager
	now func() time.Time
}

// NewDirectory creates the SQLite-backed user directory.
func NewDirectory(db *database.Manager) *Directory {
	return &Directory{db: db, now: time.Now}
}

// ResolveToken maps a session token to the identity behind it. Empty,
// unknown and expired tokens, and sessions pointing at missing users, all
// fail with ErrInvalidToken; disabled accounts fail with ErrUserDisabled.
func (d *Directory) ResolveToken(ctx context.Context, token string) (*types.UserIdentity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, interfaces.ErrInvalidToken
	}

	row := d.db.DB().QueryRowContext(ctx, `
		SELECT user_id, expires_at
		FROM user_sessions
		WHERE token = ?
	`, token)

	var userID string
	var expiresAt int64
	if err := row.Scan(&userID, &expiresAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, interfaces.ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	if expiresAt <= d.now().UnixMilli() {
		return nil, interfaces.ErrInvalidToken
	}

	user, err := d.User(ctx, userID)
	if err != nil {
		if err == interfaces.ErrUserNotFound {
			return nil, interfaces.ErrInvalidToken
		}
		return nil, err
	}
	if user.Disabled {
		return nil, interfaces.ErrUserDisabled
	}

	return user, nil
}

// User looks up an account by ID.
func (d *Directory) User(ctx context.Context, userID string) (*types.UserIdentity, error) {
	row := d.db.DB().QueryRowContext(ctx, `
		SELECT id, username, nickname, avatar, role, disabled
		FROM users
		WHERE id = ?
	`, userID)

	var user types.UserIdentity
	if err := row.Scan(&user.UserID, &user.Username, &user.Nickname, &user.Avatar, &user.Role, &user.Disabled); err != nil {
		if err == sql.ErrNoRows {
			return nil, interfaces.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	if user.Role == "" {
		user.Role = types.RoleUser
	}

	return &user, nil
}
