package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"chathub/internal/database"
	"chathub/pkg/types"
)

// Moderation is the SQLite-backed moderation state: the global-mute settings
// document, per-user mute records with lazy expiry, content rules and the
// announcement. It performs no authorization; the hub checks roles upstream.
type Moderation struct {
	db  *database.Manager
	now func() time.Time
}

// NewModeration creates the moderation store.
func NewModeration(db *database.Manager) *Moderation {
	return &Moderation{db: db, now: time.Now}
}

// globalMuteDoc is the stored shape of the global_mute settings document.
type globalMuteDoc struct {
	Enabled   bool   `json:"enabled"`
	StartAt   *int64 `json:"startAt"`
	EndAt     *int64 `json:"endAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// GlobalMute returns the stored mute document. Missing document means all
// zero values: manual switch off, no window.
func (s *Moderation) GlobalMute(ctx context.Context) (*types.GlobalMuteState, error) {
	var doc globalMuteDoc
	if _, err := s.getSetting(ctx, types.SettingGlobalMute, &doc); err != nil {
		return nil, err
	}
	return &types.GlobalMuteState{
		Enabled: doc.Enabled,
		StartAt: doc.StartAt,
		EndAt:   doc.EndAt,
	}, nil
}

// SetGlobalMute toggles the manual flag, preserving any scheduled window.
func (s *Moderation) SetGlobalMute(ctx context.Context, enabled bool) error {
	var doc globalMuteDoc
	if _, err := s.getSetting(ctx, types.SettingGlobalMute, &doc); err != nil {
		return err
	}
	doc.Enabled = enabled
	doc.UpdatedAt = s.now().UnixMilli()
	return s.putSetting(ctx, types.SettingGlobalMute, &doc)
}

// SetGlobalMuteRange replaces the scheduled window, preserving the manual
// flag. Nil bounds clear the window.
func (s *Moderation) SetGlobalMuteRange(ctx context.Context, startAt, endAt *int64) error {
	var doc globalMuteDoc
	if _, err := s.getSetting(ctx, types.SettingGlobalMute, &doc); err != nil {
		return err
	}
	doc.StartAt = startAt
	doc.EndAt = endAt
	doc.UpdatedAt = s.now().UnixMilli()
	return s.putSetting(ctx, types.SettingGlobalMute, &doc)
}

// MuteInfo returns the active mute for a user, or nil. A record whose expiry
// has passed is treated as absent even though this call does not delete it.
func (s *Moderation) MuteInfo(ctx context.Context, userID string) (*types.MuteRecord, error) {
	row := s.db.DB().QueryRowContext(ctx, `
		SELECT user_id, nickname, username, expires_at
		FROM chat_mutes
		WHERE user_id = ?
	`, userID)

	rec, err := scanMute(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query mute record: %w", err)
	}

	if rec.ExpiredAt(s.now()) {
		return nil, nil
	}
	return rec, nil
}

// Mute upserts a mute expiring minutes from now, snapshotting the target's
// nickname and username for admin listings. Minutes <= 0 clears the mute and
// returns nil (idempotent clear).
func (s *Moderation) Mute(ctx context.Context, userID string, minutes int, nickname, username string) (*types.MuteRecord, error) {
	if minutes <= 0 {
		return nil, s.Unmute(ctx, userID)
	}

	expiresAt := s.now().Add(time.Duration(minutes) * time.Minute).UnixMilli()
	rec := &types.MuteRecord{
		UserID:    userID,
		Nickname:  nickname,
		Username:  username,
		ExpiresAt: &expiresAt,
	}

	err := s.db.ExecWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO chat_mutes (user_id, nickname, username, expires_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				nickname = excluded.nickname,
				username = excluded.username,
				expires_at = excluded.expires_at
		`, rec.UserID, rec.Nickname, rec.Username, *rec.ExpiresAt)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert mute record: %w", err)
	}

	return rec, nil
}

// Unmute clears a user's mute. Idempotent.
func (s *Moderation) Unmute(ctx context.Context, userID string) error {
	err := s.db.ExecWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, "DELETE FROM chat_mutes WHERE user_id = ?", userID)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete mute record: %w", err)
	}
	return nil
}

// ListMutes returns active mutes, soonest-expiring first, indefinite mutes
// last. Lapsed records are filtered out here; physical cleanup is left to
// upserts.
func (s *Moderation) ListMutes(ctx context.Context) ([]*types.MuteRecord, error) {
	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT user_id, nickname, username, expires_at
		FROM chat_mutes
		WHERE expires_at IS NULL OR expires_at > ?
		ORDER BY expires_at IS NULL, expires_at ASC
	`, s.now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query mute records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var mutes []*types.MuteRecord
	for rows.Next() {
		rec, err := scanMute(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mute row: %w", err)
		}
		mutes = append(mutes, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mute rows: %w", err)
	}

	return mutes, nil
}

// Rules returns the stored rule set, or the permissive defaults when none is
// stored.
func (s *Moderation) Rules(ctx context.Context) (*types.ChatRules, error) {
	rules := types.DefaultRules()
	found, err := s.getSetting(ctx, types.SettingRules, rules)
	if err != nil {
		return nil, err
	}
	if !found {
		return types.DefaultRules(), nil
	}
	rules.Normalize()
	return rules, nil
}

// SetRules replaces the rule set, clamping numeric fields to >= 0, and
// returns the normalized result.
func (s *Moderation) SetRules(ctx context.Context, rules *types.ChatRules) (*types.ChatRules, error) {
	if rules == nil {
		rules = types.DefaultRules()
	}
	rules.Normalize()
	if err := s.putSetting(ctx, types.SettingRules, rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// Announcement returns the current announcement, or nil when none is stored
// or the stored text is empty.
func (s *Moderation) Announcement(ctx context.Context) (*types.Announcement, error) {
	var ann types.Announcement
	found, err := s.getSetting(ctx, types.SettingAnnouncement, &ann)
	if err != nil {
		return nil, err
	}
	if !found || strings.TrimSpace(ann.Text) == "" {
		return nil, nil
	}
	ann.Text = strings.TrimSpace(ann.Text)
	return &ann, nil
}

// SetAnnouncement updates the announcement. Empty text deletes the record
// and returns nil.
func (s *Moderation) SetAnnouncement(ctx context.Context, text string) (*types.Announcement, error) {
	clean := strings.TrimSpace(text)
	if clean == "" {
		if err := s.deleteSetting(ctx, types.SettingAnnouncement); err != nil {
			return nil, err
		}
		return nil, nil
	}

	ann := &types.Announcement{Text: clean, UpdatedAt: s.now().UnixMilli()}
	if err := s.putSetting(ctx, types.SettingAnnouncement, ann); err != nil {
		return nil, err
	}
	return ann, nil
}

// muteScanner covers both *sql.Row and *sql.Rows.
type muteScanner interface {
	Scan(dest ...interface{}) error
}

func scanMute(row muteScanner) (*types.MuteRecord, error) {
	var rec types.MuteRecord
	var expiresAt sql.NullInt64
	if err := row.Scan(&rec.UserID, &rec.Nickname, &rec.Username, &expiresAt); err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		rec.ExpiresAt = &expiresAt.Int64
	}
	return &rec, nil
}

// getSetting unmarshals the settings document for key into v. Returns false
// when no document is stored.
func (s *Moderation) getSetting(ctx context.Context, key string, v interface{}) (bool, error) {
	row := s.db.DB().QueryRowContext(ctx, "SELECT value FROM chat_settings WHERE key = ?", key)

	var value string
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("failed to query setting %s: %w", key, err)
	}

	if err := json.Unmarshal([]byte(value), v); err != nil {
		return false, fmt.Errorf("failed to unmarshal setting %s: %w", key, err)
	}
	return true, nil
}

// putSetting upserts the settings document for key.
func (s *Moderation) putSetting(ctx context.Context, key string, v interface{}) error {
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal setting %s: %w", key, err)
	}

	err = s.db.ExecWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO chat_settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, key, string(value))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to upsert setting %s: %w", key, err)
	}
	return nil
}

func (s *Moderation) deleteSetting(ctx context.Context, key string) error {
	err := s.db.ExecWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, "DELETE FROM chat_settings WHERE key = ?", key)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}
