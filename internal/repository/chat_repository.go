package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/creatia-api/internal/models"
)

const chatMessageSelect = `SELECT m.id, m.sender_id, m.recipient_id, m.body, m.created_at,
u.username AS sender_username, u.full_name AS sender_full_name
FROM chat_messages m
JOIN users u ON u.id = m.sender_id`

// ChatRepository persists chat messages and per-channel read cursors.
type ChatRepository struct {
	db *sqlx.DB
}

// NewChatRepository constructs a ChatRepository.
func NewChatRepository(db *sqlx.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

func (r *ChatRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts msg and fills id and created_at.
func (r *ChatRepository) Create(ctx context.Context, msg *models.ChatMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO chat_messages (sender_id, recipient_id, body, created_at) VALUES ($1, $2, $3, $4) RETURNING id`
	if err := r.db.GetContext(ctx, &msg.ID, query, msg.SenderID, msg.RecipientID, msg.Body, msg.CreatedAt); err != nil {
		return fmt.Errorf("create chat message: %w", err)
	}
	return nil
}

// FindByID loads a single message.
func (r *ChatRepository) FindByID(ctx context.Context, id int64) (*models.ChatMessageRow, error) {
	query := chatMessageSelect + ` WHERE m.id = $1`
	var row models.ChatMessageRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find chat message: %w", err)
	}
	return &row, nil
}

// ListGroup returns group messages with id > afterID in ascending order.
func (r *ChatRepository) ListGroup(ctx context.Context, afterID int64, limit int) ([]models.ChatMessageRow, error) {
	query := chatMessageSelect + ` WHERE m.recipient_id IS NULL AND m.id > $1 ORDER BY m.id ASC LIMIT $2`
	var rows []models.ChatMessageRow
	if err := r.db.SelectContext(ctx, &rows, query, afterID, limit); err != nil {
		return nil, fmt.Errorf("list group messages: %w", err)
	}
	return rows, nil
}

// ListPrivate returns the conversation between userID and peerID in ascending order.
func (r *ChatRepository) ListPrivate(ctx context.Context, userID, peerID, afterID int64, limit int) ([]models.ChatMessageRow, error) {
	query := chatMessageSelect + `
WHERE ((m.sender_id = $1 AND m.recipient_id = $2) OR (m.sender_id = $2 AND m.recipient_id = $1))
AND m.id > $3 ORDER BY m.id ASC LIMIT $4`
	var rows []models.ChatMessageRow
	if err := r.db.SelectContext(ctx, &rows, query, userID, peerID, afterID, limit); err != nil {
		return nil, fmt.Errorf("list private messages: %w", err)
	}
	return rows, nil
}

// AdvanceCursor records lastID as read on the channel, never moving the cursor backwards.
func (r *ChatRepository) AdvanceCursor(ctx context.Context, userID int64, peerID *int64, lastID int64) error {
	const query = `INSERT INTO chat_read_state (user_id, peer_id, last_read_id) VALUES ($1, $2, $3)
ON CONFLICT (user_id, (COALESCE(peer_id, 0)))
DO UPDATE SET last_read_id = GREATEST(chat_read_state.last_read_id, EXCLUDED.last_read_id)`
	if _, err := r.db.ExecContext(ctx, query, userID, peerID, lastID); err != nil {
		return fmt.Errorf("advance chat cursor: %w", err)
	}
	return nil
}

// Cursor returns the user's read cursor on a channel, zero when none is stored.
func (r *ChatRepository) Cursor(ctx context.Context, userID int64, peerID *int64) (int64, error) {
	const query = `SELECT COALESCE(MAX(last_read_id), 0) FROM chat_read_state
WHERE user_id = $1 AND COALESCE(peer_id, 0) = COALESCE($2::BIGINT, 0)`
	var cursor int64
	if err := r.db.GetContext(ctx, &cursor, query, userID, peerID); err != nil {
		return 0, fmt.Errorf("chat cursor: %w", err)
	}
	return cursor, nil
}

// MaxGroupCursor returns the furthest group cursor among users other than excludeUserID.
func (r *ChatRepository) MaxGroupCursor(ctx context.Context, excludeUserID int64) (int64, error) {
	const query = `SELECT COALESCE(MAX(last_read_id), 0) FROM chat_read_state WHERE peer_id IS NULL AND user_id <> $1`
	var cursor int64
	if err := r.db.GetContext(ctx, &cursor, query, excludeUserID); err != nil {
		return 0, fmt.Errorf("group read cursor: %w", err)
	}
	return cursor, nil
}

// CountGroupUnread counts group messages from others past the user's group cursor.
func (r *ChatRepository) CountGroupUnread(ctx context.Context, userID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM chat_messages m
WHERE m.recipient_id IS NULL AND m.sender_id <> $1
AND m.id > COALESCE((SELECT last_read_id FROM chat_read_state WHERE user_id = $1 AND peer_id IS NULL), 0)`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("count group unread: %w", err)
	}
	return count, nil
}

// CountPrivateUnread counts, per sender, private messages to the user past the matching cursor.
func (r *ChatRepository) CountPrivateUnread(ctx context.Context, userID int64) ([]models.PrivateUnread, error) {
	const query = `SELECT m.sender_id, COUNT(*) AS count
FROM chat_messages m
LEFT JOIN chat_read_state s ON s.user_id = $1 AND s.peer_id = m.sender_id
WHERE m.recipient_id = $1 AND m.id > COALESCE(s.last_read_id, 0)
GROUP BY m.sender_id
ORDER BY m.sender_id`
	var rows []models.PrivateUnread
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("count private unread: %w", err)
	}
	return rows, nil
}

// Delete removes a single message.
func (r *ChatRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete chat message: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteByUser removes every message and cursor that references userID.
func (r *ChatRepository) DeleteByUser(ctx context.Context, exec sqlx.ExtContext, userID int64) error {
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, `DELETE FROM chat_read_state WHERE user_id = $1 OR peer_id = $1`, userID); err != nil {
		return fmt.Errorf("delete chat cursors: %w", err)
	}
	if _, err := target.ExecContext(ctx, `DELETE FROM chat_messages WHERE sender_id = $1 OR recipient_id = $1`, userID); err != nil {
		return fmt.Errorf("delete chat messages: %w", err)
	}
	return nil
}
