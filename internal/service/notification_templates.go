package service

import (
	"fmt"
	"strings"

	"github.com/noah-isme/creatia-api/internal/models"
	"github.com/noah-isme/creatia-api/pkg/notify"
)

// notifier is satisfied by *notify.Dispatcher. Notify must never block on delivery.
type notifier interface {
	Notify(recipient notify.Recipient, msg notify.Message)
}

type noopNotifier struct{}

func (noopNotifier) Notify(notify.Recipient, notify.Message) {}

func recipientOf(user *models.User) notify.Recipient {
	return notify.Recipient{Name: user.DisplayName(), Email: user.Email, Phone: user.Phone()}
}

func link(baseURL, path string) string {
	return strings.TrimRight(baseURL, "/") + path
}

func taskAssignedMessage(task *models.Task, assignee *models.User, assigner string, baseURL string) notify.Message {
	description := "No description provided."
	if d := stringValue(task.Description); strings.TrimSpace(d) != "" {
		description = d
	}
	due := task.DueDate.Format(dateLayout)
	body := fmt.Sprintf("Hi %s,\n\n%s assigned you a new task.\nTitle: %s\nDue: %s\nDetails: %s\n\nOpen your dashboard: %s",
		assignee.DisplayName(), assigner, task.Title, due, description, link(baseURL, "/dashboard"))
	return notify.Message{
		Subject:    "New task: " + task.Title,
		Body:       body,
		SMSBody:    fmt.Sprintf("New task from %s: %s (due %s)", assigner, task.Title, due),
		SenderName: assigner,
	}
}

func mailReceivedMessage(mail *models.Mail, recipient *models.User, sender string, baseURL string) notify.Message {
	body := fmt.Sprintf("Hi %s,\n\nYou received a new inbox message from %s.\nSubject: %s\n\nRead it here: %s",
		recipient.DisplayName(), sender, mail.Subject, link(baseURL, "/mailbox"))
	return notify.Message{
		Subject:    "New message from " + sender,
		Body:       body,
		SMSBody:    fmt.Sprintf("New inbox message from %s: %s", sender, mail.Subject),
		SenderName: sender,
	}
}
