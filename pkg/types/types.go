package types

import (
	"fmt"
	"time"
)

// Roles recognized by the hub. Moderation rules never apply to admins.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Limits inherited from the chat service this hub fronts.
const (
	MaxHistory       = 200 // messages replayed on entry
	MaxMessageLength = 500 // hard ceiling, applied before any rule check
	RetentionDays    = 30  // messages older than this are purged
)

// Settings document keys in the chat_settings table.
const (
	SettingGlobalMute   = "global_mute"
	SettingAnnouncement = "chat_announcement"
	SettingRules        = "chat_rules"
)

// UserIdentity is the resolved account behind an authenticated connection.
type UserIdentity struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
	Role     string `json:"role"`
	Disabled bool   `json:"-"`
}

func (u *UserIdentity) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// DisplayName prefers the nickname and falls back to the account username.
func (u *UserIdentity) DisplayName() string {
	if u.Nickname != "" {
		return u.Nickname
	}
	return u.Username
}

// ChatMessage is a persisted chat message. Timestamps are epoch milliseconds.
// Deleted messages are retained (soft delete) and suppressed client-side;
// only the retention purge removes them physically.
type ChatMessage struct {
	ID        string `json:"id"`
	Text      string `json:"message"`
	Nickname  string `json:"nickname"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Avatar    string `json:"avatar"`
	CreatedAt int64  `json:"createdAt"`
	Deleted   bool   `json:"deleted"`
	DeletedAt int64  `json:"deletedAt,omitempty"`
	DeletedBy string `json:"deletedBy,omitempty"`
}

// MuteRecord is a per-user mute. A nil ExpiresAt means indefinite until
// explicitly cleared. A record whose ExpiresAt is in the past is semantically
// absent and must be treated as such by every read path.
type MuteRecord struct {
	UserID    string `json:"userId"`
	Nickname  string `json:"nickname"`
	Username  string `json:"username"`
	ExpiresAt *int64 `json:"expiresAt"`
}

// ExpiredAt reports whether the record has lapsed as of now.
func (m *MuteRecord) ExpiredAt(now time.Time) bool {
	return m.ExpiresAt != nil && *m.ExpiresAt <= now.UnixMilli()
}

// GlobalMuteState is the stored server-wide mute document. Enabled is the
// manual switch; StartAt/EndAt describe an optional scheduled window.
type GlobalMuteState struct {
	Enabled bool   `json:"enabled"`
	StartAt *int64 `json:"startAt"`
	EndAt   *int64 `json:"endAt"`
}

// InWindowAt reports whether now falls inside the scheduled window.
func (g *GlobalMuteState) InWindowAt(now time.Time) bool {
	if g.StartAt == nil || g.EndAt == nil {
		return false
	}
	ms := now.UnixMilli()
	return ms >= *g.StartAt && ms <= *g.EndAt
}

// EffectiveAt is the externally observable mute state: the manual switch OR
// an active scheduled window.
func (g *GlobalMuteState) EffectiveAt(now time.Time) bool {
	return g.Enabled || g.InWindowAt(now)
}

// WindowExpiredAt reports whether the scheduled window has fully passed and
// should be cleared from storage on the next evaluation.
func (g *GlobalMuteState) WindowExpiredAt(now time.Time) bool {
	return g.EndAt != nil && now.UnixMilli() > *g.EndAt
}

// SnapshotAt renders the observable state for change detection. Broadcasts
// are deduplicated by comparing consecutive snapshots.
func (g *GlobalMuteState) SnapshotAt(now time.Time) string {
	return fmt.Sprintf("%t|%s|%s", g.EffectiveAt(now), msString(g.StartAt), msString(g.EndAt))
}

func msString(v *int64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

// ReplacePair is a literal from -> to substitution applied in list order.
type ReplacePair struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ChatRules is the process-wide content rule set. Rules never apply to admin
// senders. A zero MaxLength means unlimited.
type ChatRules struct {
	RateLimitSec int           `json:"rateLimitSec"`
	MaxLength    int           `json:"maxLength"`
	AllowImage   bool          `json:"allowImage"`
	AllowLink    bool          `json:"allowLink"`
	Blocked      []string      `json:"blocked"`
	Replace      []ReplacePair `json:"replace"`
}

// DefaultRules returns the permissive rule set used when none is stored.
func DefaultRules() *ChatRules {
	return &ChatRules{
		AllowImage: true,
		AllowLink:  true,
		Blocked:    []string{},
		Replace:    []ReplacePair{},
	}
}

// Normalize clamps numeric fields to >= 0 and replaces nil slices so the
// stored document always round-trips to the same JSON shape.
func (r *ChatRules) Normalize() {
	if r.RateLimitSec < 0 {
		r.RateLimitSec = 0
	}
	if r.MaxLength < 0 {
		r.MaxLength = 0
	}
	if r.Blocked == nil {
		r.Blocked = []string{}
	}
	if r.Replace == nil {
		r.Replace = []ReplacePair{}
	}
}

// Announcement is the singleton announcement text. Absence means none.
type Announcement struct {
	Text      string `json:"text"`
	UpdatedAt int64  `json:"updatedAt"`
}

// OnlineUserEntry is one live authenticated connection in the presence
// snapshot. A user with several sessions appears once per connection.
type OnlineUserEntry struct {
	UserID   string `json:"userId"`
	Nickname string `json:"nickname"`
	Username string `json:"username"`
}
