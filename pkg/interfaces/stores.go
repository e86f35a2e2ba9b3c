package interfaces

import (
	"context"
	"time"

	"chathub/pkg/types"
)

// MessageStore is the bounded, time-windowed message history. Every read and
// write path purges the retention window first, so no message older than the
// retention window is ever returned.
type MessageStore interface {
	// Append persists a message and returns its server-assigned ID.
	Append(ctx context.Context, msg *types.ChatMessage) (string, error)

	// ListRecent returns at most limit messages, oldest first.
	ListRecent(ctx context.Context, limit int) ([]*types.ChatMessage, error)

	// SoftDelete marks a message deleted without removing it. Returns
	// ErrMessageNotFound when no such message exists.
	SoftDelete(ctx context.Context, id, deletedBy string) error

	// PurgeOlderThan removes messages older than the retention window,
	// deleted or not, and reports how many were removed.
	PurgeOlderThan(ctx context.Context, retention time.Duration) (int64, error)
}

// ModerationStore holds the global mute document, per-user mute records,
// content rules and the announcement. It performs no authorization; admin
// checks happen upstream in the hub.
type ModerationStore interface {
	// GlobalMute returns the stored mute document (manual flag plus
	// optional window). Effective state is derived by the caller.
	GlobalMute(ctx context.Context) (*types.GlobalMuteState, error)

	// SetGlobalMute toggles the manual flag, preserving any window.
	SetGlobalMute(ctx context.Context, enabled bool) error

	// SetGlobalMuteRange replaces the scheduled window, preserving the
	// manual flag. Nil bounds clear the window.
	SetGlobalMuteRange(ctx context.Context, startAt, endAt *int64) error

	// MuteInfo returns the active mute for a user, or nil. Records whose
	// expiry has passed are treated as absent (lazy expiry).
	MuteInfo(ctx context.Context, userID string) (*types.MuteRecord, error)

	// Mute upserts a mute expiring in the given number of minutes,
	// snapshotting the target's nickname and username. Minutes <= 0
	// clears the mute and returns nil.
	Mute(ctx context.Context, userID string, minutes int, nickname, username string) (*types.MuteRecord, error)

	// Unmute clears a user's mute. Idempotent.
	Unmute(ctx context.Context, userID string) error

	// ListMutes returns active mutes, soonest-expiring first, indefinite
	// mutes last.
	ListMutes(ctx context.Context) ([]*types.MuteRecord, error)

	// Rules returns the stored rule set, or the permissive defaults.
	Rules(ctx context.Context) (*types.ChatRules, error)

	// SetRules replaces the rule set, clamping numeric fields to >= 0,
	// and returns the normalized result.
	SetRules(ctx context.Context, rules *types.ChatRules) (*types.ChatRules, error)

	// Announcement returns the current announcement, or nil when none.
	Announcement(ctx context.Context) (*types.Announcement, error)

	// SetAnnouncement updates the announcement. Empty text deletes the
	// record and returns nil.
	SetAnnouncement(ctx context.Context, text string) (*types.Announcement, error)
}
