package hub

import "chathub/pkg/types"

// Inbound frame types. Everything except auth requires an authenticated
// connection; frames with any other type, or that fail to parse, are
// silently ignored.
const (
	FrameAuth               = "auth"
	FrameMessage            = "message"
	FrameDelete             = "delete"
	FrameSoftDelete         = "soft_delete"
	FrameMute               = "mute"
	FrameUnmute             = "unmute"
	FrameListMutes          = "list_mutes"
	FrameListOnline         = "list_online"
	FrameSetGlobalMute      = "set_global_mute"
	FrameSetGlobalMuteRange = "set_global_mute_range"
	FrameSetAnnouncement    = "set_announcement"
	FrameSetRules           = "set_rules"
)

// Outbound frame types.
const (
	FrameProfile      = "profile"
	FrameGlobalMute   = "global_mute"
	FrameUserMute     = "user_mute"
	FrameAnnouncement = "announcement"
	FrameRules        = "rules"
	FrameHistory      = "history"
	FrameUpdate       = "update"
	FrameMutes        = "mutes"
	FrameOnlineUsers  = "online_users"
	FrameError        = "error"
)

// Frame is the superset of all inbound frame payloads. Fields irrelevant to
// a given type are ignored.
type Frame struct {
	Type     string           `json:"type"`
	Token    string           `json:"token,omitempty"`
	Message  string           `json:"message,omitempty"`
	Nickname string           `json:"nickname,omitempty"`
	ID       string           `json:"id,omitempty"`
	UserID   string           `json:"userId,omitempty"`
	Minutes  int              `json:"minutes,omitempty"`
	Enabled  bool             `json:"enabled,omitempty"`
	StartAt  *int64           `json:"startAt,omitempty"`
	EndAt    *int64           `json:"endAt,omitempty"`
	Text     string           `json:"text,omitempty"`
	Rules    *types.ChatRules `json:"rules,omitempty"`
}

// dataFrame is the generic outbound envelope: profile, announcement, rules,
// history, message, update, mutes, online_users.
type dataFrame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// errorFrame is sent to the offending sender only.
type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// globalMuteFrame always carries the effective state and both window bounds
// so clients can render the schedule; nil bounds serialize as null.
type globalMuteFrame struct {
	Type    string `json:"type"`
	Enabled bool   `json:"enabled"`
	StartAt *int64 `json:"startAt"`
	EndAt   *int64 `json:"endAt"`
}

// userMuteFrame is the targeted mute-state frame for one user.
type userMuteFrame struct {
	Type  string            `json:"type"`
	Data  *types.MuteRecord `json:"data"`
	Muted bool              `json:"muted"`
}

// profileData is pushed first on authenticated entry.
type profileData struct {
	Role     string `json:"role"`
	UserID   string `json:"userId"`
	Nickname string `json:"nickname"`
}

// muteEvent is broadcast to everyone when an admin mutes or unmutes.
type muteEvent struct {
	UserID    string `json:"userId"`
	Minutes   int    `json:"minutes"`
	ExpiresAt *int64 `json:"expiresAt"`
}

// updateEvent is broadcast when a message is soft-deleted.
type updateEvent struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

func newErrorFrame(message string) errorFrame {
	return errorFrame{Type: FrameError, Message: message}
}

func newDataFrame(frameType string, data interface{}) dataFrame {
	return dataFrame{Type: frameType, Data: data}
}
