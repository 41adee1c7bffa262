package models

import "time"

// ChatMessage is a group (nil RecipientID) or private message.
type ChatMessage struct {
	ID          int64     `db:"id" json:"id"`
	SenderID    int64     `db:"sender_id" json:"sender_id"`
	RecipientID *int64    `db:"recipient_id" json:"recipient_id"`
	Body        string    `db:"body" json:"body"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// IsGroup reports whether the message was sent to the group channel.
func (m *ChatMessage) IsGroup() bool {
	return m.RecipientID == nil
}

// ChatMessageRow is a message joined with the sender's display fields.
type ChatMessageRow struct {
	ChatMessage
	SenderUsername string  `db:"sender_username"`
	SenderFullName *string `db:"sender_full_name"`
}

// SenderName prefers the full name.
func (r *ChatMessageRow) SenderName() string {
	if r.SenderFullName != nil && *r.SenderFullName != "" {
		return *r.SenderFullName
	}
	return r.SenderUsername
}

// ChatReadState is a user's read cursor on a channel. A nil PeerID is the group channel.
type ChatReadState struct {
	ID         int64  `db:"id"`
	UserID     int64  `db:"user_id"`
	PeerID     *int64 `db:"peer_id"`
	LastReadID int64  `db:"last_read_id"`
}

// PrivateUnread counts unread private messages from one sender.
type PrivateUnread struct {
	SenderID int64 `db:"sender_id"`
	Count    int   `db:"count"`
}
