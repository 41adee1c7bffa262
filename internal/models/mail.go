package models

import "time"

// MailFolder is a computed mailbox view.
type MailFolder string

const (
	MailFolderInbox MailFolder = "inbox"
	MailFolderSent  MailFolder = "sent"
	MailFolderDraft MailFolder = "draft"
	MailFolderSaved MailFolder = "saved"
	MailFolderTrash MailFolder = "trash"
)

// Valid reports whether f is a known folder.
func (f MailFolder) Valid() bool {
	switch f {
	case MailFolderInbox, MailFolderSent, MailFolderDraft, MailFolderSaved, MailFolderTrash:
		return true
	}
	return false
}

// MailBulkAction is an operation applied to a set of mails.
type MailBulkAction string

const (
	MailActionRead    MailBulkAction = "read"
	MailActionDelete  MailBulkAction = "delete"
	MailActionRestore MailBulkAction = "restore"
	MailActionPurge   MailBulkAction = "purge"
	MailActionMove    MailBulkAction = "move"
)

// Valid reports whether a is a known bulk action.
func (a MailBulkAction) Valid() bool {
	switch a {
	case MailActionRead, MailActionDelete, MailActionRestore, MailActionPurge, MailActionMove:
		return true
	}
	return false
}

// Mail is a mailbox message. A nil SenderID marks a system message.
type Mail struct {
	ID          int64      `db:"id" json:"id"`
	Subject     string     `db:"subject" json:"subject"`
	Body        string     `db:"body" json:"body"`
	SenderID    *int64     `db:"sender_id" json:"sender_id"`
	RecipientID int64      `db:"recipient_id" json:"recipient_id"`
	IsRead      bool       `db:"is_read" json:"is_read"`
	IsDraft     bool       `db:"is_draft" json:"is_draft"`
	IsSaved     bool       `db:"is_saved" json:"is_saved"`
	DeletedAt   *time.Time `db:"deleted_at" json:"deleted_at"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// MailRow is a mail joined with the sender's username.
type MailRow struct {
	Mail
	SenderUsername *string `db:"sender_username"`
}

// InvolvesUser reports whether userID sent or received the mail.
func (m *Mail) InvolvesUser(userID int64) bool {
	return m.RecipientID == userID || (m.SenderID != nil && *m.SenderID == userID)
}
