package dto

import "time"

// SendMailRequest is the payload of POST /mails.
type SendMailRequest struct {
	Subject     string     `json:"subject"`
	Body        string     `json:"body"`
	RecipientID OptionalID `json:"recipient_id" swaggertype:"integer"`
	IsDraft     Flag       `json:"is_draft" swaggertype:"boolean"`
}

// MailBulkRequest is the payload of POST /mails/bulk.
type MailBulkRequest struct {
	IDs    []int64 `json:"ids"`
	Action string  `json:"action"`
	Target string  `json:"target"`
}

// MailResponse is the mail payload.
type MailResponse struct {
	ID          int64      `json:"id"`
	Subject     string     `json:"subject"`
	Body        string     `json:"body"`
	Sender      string     `json:"sender"`
	SenderID    *int64     `json:"sender_id"`
	RecipientID int64      `json:"recipient_id"`
	IsRead      bool       `json:"is_read"`
	IsDraft     bool       `json:"is_draft"`
	IsSaved     bool       `json:"is_saved"`
	DeletedAt   *time.Time `json:"deleted_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// MailBulkResult reports how many rows an action touched.
type MailBulkResult struct {
	OK       bool  `json:"ok"`
	Affected int64 `json:"affected"`
}

// UnreadCountResponse is returned by GET /mails/unread_count.
type UnreadCountResponse struct {
	Count int `json:"count"`
}
