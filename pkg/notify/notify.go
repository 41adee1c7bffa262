// Package notify delivers outbound email and SMS notifications.
package notify

import (
	"context"
	"errors"
)

// ErrNotConfigured signals that a channel lacks credentials. Callers treat it as a skip.
var ErrNotConfigured = errors.New("notification channel not configured")

// Recipient is the addressee of a notification.
type Recipient struct {
	Name  string
	Email string
	Phone string
}

// Message is rendered notification content. SMSBody falls back to Subject when empty.
type Message struct {
	Subject    string
	Body       string
	SMSBody    string
	SenderName string
}

// Sender delivers a single message on one channel.
type Sender interface {
	SendEmail(ctx context.Context, to, subject, body, senderName string) error
	SendSMS(ctx context.Context, to, body string) error
}
