package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"chathub/internal/database"
	"chathub/pkg/interfaces"
	"chathub/pkg/types"
)

// Messages is the SQLite-backed message history. Every read and write purges
// the retention window first, so no message older than RetentionDays is ever
// returned regardless of its deleted flag.
type Messages struct {
	db        *database.Manager
	retention time.Duration
	now       func() time.Time
}

// NewMessages creates the message store.
func NewMessages(db *database.Manager) *Messages {
	return &Messages{
		db:        db,
		retention: types.RetentionDays * 24 * time.Hour,
		now:       time.Now,
	}
}

// SetRetention overrides the retention window. Call before first use.
func (s *Messages) SetRetention(d time.Duration) {
	if d > 0 {
		s.retention = d
	}
}

// Append persists a message and returns its server-assigned ID.
func (s *Messages) Append(ctx context.Context, msg *types.ChatMessage) (string, error) {
	s.purge(ctx)

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt == 0 {
		msg.CreatedAt = s.now().UnixMilli()
	}

	err := s.db.ExecWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO chat_messages (id, message, nickname, user_id, username, avatar, created_at, deleted)
			VALUES (?, ?, ?, ?, ?, ?, ?, 0)
		`, msg.ID, msg.Text, msg.Nickname, msg.UserID, msg.Username, msg.Avatar, msg.CreatedAt)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to insert message: %w", err)
	}

	return msg.ID, nil
}

// ListRecent returns at most limit messages, oldest first. The most recent
// limit rows are fetched by created_at descending, then reversed into
// delivery order.
func (s *Messages) ListRecent(ctx context.Context, limit int) ([]*types.ChatMessage, error) {
	s.purge(ctx)

	if limit <= 0 {
		limit = types.MaxHistory
	}

	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT id, message, nickname, user_id, username, avatar, created_at, deleted, deleted_at, deleted_by
		FROM chat_messages
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []*types.ChatMessage
	for rows.Next() {
		var msg types.ChatMessage
		var deletedAt sql.NullInt64
		var deletedBy sql.NullString

		err := rows.Scan(
			&msg.ID,
			&msg.Text,
			&msg.Nickname,
			&msg.UserID,
			&msg.Username,
			&msg.Avatar,
			&msg.CreatedAt,
			&msg.Deleted,
			&deletedAt,
			&deletedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}

		if deletedAt.Valid {
			msg.DeletedAt = deletedAt.Int64
		}
		if deletedBy.Valid {
			msg.DeletedBy = deletedBy.String
		}

		messages = append(messages, &msg)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}

	// Reverse into oldest-first delivery order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// SoftDelete marks a message deleted without removing it.
func (s *Messages) SoftDelete(ctx context.Context, id, deletedBy string) error {
	s.purge(ctx)

	var affected int64
	err := s.db.ExecWrite(func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, `
			UPDATE chat_messages
			SET deleted = 1, deleted_at = ?, deleted_by = ?
			WHERE id = ?
		`, s.now().UnixMilli(), deletedBy, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to soft-delete message: %w", err)
	}
	if affected == 0 {
		return interfaces.ErrMessageNotFound
	}

	return nil
}

// PurgeOlderThan removes messages older than the retention window, deleted
// or not, and reports how many were removed.
func (s *Messages) PurgeOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.now().Add(-retention).UnixMilli()

	var removed int64
	err := s.db.ExecWrite(func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, "DELETE FROM chat_messages WHERE created_at < ?", cutoff)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to purge messages: %w", err)
	}

	return removed, nil
}

// purge enforces the retention window ahead of a read or write. A purge
// failure is bookkeeping, not a reason to fail the caller's operation.
func (s *Messages) purge(ctx context.Context) {
	if _, err := s.PurgeOlderThan(ctx, s.retention); err != nil {
		log.Printf("Message retention purge failed: %v", err)
	}
}
