package dto

import "time"

// ChatListQuery holds GET /chat/messages parameters.
type ChatListQuery struct {
	Target   ChatTarget
	AfterID  int64
	MarkRead bool
}

// PostChatMessageRequest is the payload of POST /chat/messages.
type PostChatMessageRequest struct {
	Body   string     `json:"body"`
	Target ChatTarget `json:"target" swaggertype:"string"`
}

// ChatReadRequest is the payload of POST /chat/read.
type ChatReadRequest struct {
	Target ChatTarget `json:"target" swaggertype:"string"`
	LastID int64      `json:"last_id"`
}

// ChatMessageResponse is the message payload.
type ChatMessageResponse struct {
	ID          int64     `json:"id"`
	Body        string    `json:"body"`
	SenderID    int64     `json:"sender_id"`
	SenderName  string    `json:"sender_name"`
	RecipientID *int64    `json:"recipient_id"`
	CreatedAt   time.Time `json:"created_at"`
	IsMine      bool      `json:"is_mine"`
	CanDelete   bool      `json:"can_delete"`
}

// ChatUnreadResponse reports unread counts per channel. Privates is keyed by sender id.
type ChatUnreadResponse struct {
	Group    int           `json:"group"`
	Privates map[int64]int `json:"privates"`
}
