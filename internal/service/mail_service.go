package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/creatia-api/internal/dto"
	"github.com/noah-isme/creatia-api/internal/models"
	appErrors "github.com/noah-isme/creatia-api/pkg/errors"
)

// DefaultTrashRetention is how long soft deleted mail survives before purge.
const DefaultTrashRetention = 20 * 24 * time.Hour

const systemSenderName = "System"

type mailRepository interface {
	Create(ctx context.Context, mail *models.Mail) error
	FindRow(ctx context.Context, id int64) (*models.MailRow, error)
	MarkRead(ctx context.Context, id int64) error
	ListFolder(ctx context.Context, userID int64, folder models.MailFolder) ([]models.MailRow, error)
	Bulk(ctx context.Context, userID int64, ids []int64, action models.MailBulkAction, target models.MailFolder, now time.Time) (int64, error)
	PurgeTrash(ctx context.Context, cutoff time.Time) (int64, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
}

type mailUserRepository interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

// MailService implements the mailbox folders and bulk actions.
type MailService struct {
	mails     mailRepository
	users     mailUserRepository
	notifier  notifier
	metrics   *MetricsService
	logger    *zap.Logger
	retention time.Duration
	baseURL   string
	now       func() time.Time
}

// NewMailService constructs a MailService. A non-positive retention uses DefaultTrashRetention.
func NewMailService(mails mailRepository, users mailUserRepository, n notifier, metrics *MetricsService, retention time.Duration, baseURL string, logger *zap.Logger) *MailService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if n == nil {
		n = noopNotifier{}
	}
	if retention <= 0 {
		retention = DefaultTrashRetention
	}
	return &MailService{
		mails:     mails,
		users:     users,
		notifier:  n,
		metrics:   metrics,
		logger:    logger,
		retention: retention,
		baseURL:   baseURL,
		now:       time.Now,
	}
}

// Send stores a mail from actor. Drafts without a recipient are addressed to
// the sender and start out read.
func (s *MailService) Send(ctx context.Context, actor *models.JWTClaims, req dto.SendMailRequest) (*dto.MailResponse, error) {
	if req.RecipientID.Invalid {
		return nil, appErrors.Validation("Invalid recipient id.")
	}
	isDraft := bool(req.IsDraft)
	recipientID := req.RecipientID.Ptr()
	if recipientID == nil || *recipientID == 0 {
		if !isDraft {
			return nil, appErrors.Validation("Recipient required")
		}
		self := actor.UserID
		recipientID = &self
	}

	recipient, err := s.users.FindByID(ctx, *recipientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Recipient not found")
		}
		return nil, appErrors.Internal(err, "failed to load recipient")
	}

	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = "No subject"
	}
	senderID := actor.UserID
	mail := &models.Mail{
		Subject:     subject,
		Body:        strings.TrimSpace(req.Body),
		SenderID:    &senderID,
		RecipientID: recipient.ID,
		IsDraft:     isDraft,
		IsRead:      isDraft,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.mails.Create(ctx, mail); err != nil {
		return nil, appErrors.Internal(err, "failed to send mail")
	}

	sender := actor.Username
	if u, err := s.users.FindByID(ctx, actor.UserID); err == nil {
		sender = u.DisplayName()
	}
	if !isDraft {
		s.notifier.Notify(recipientOf(recipient), mailReceivedMessage(mail, recipient, sender, s.baseURL))
	}

	username := actor.Username
	return mailResponse(models.MailRow{Mail: *mail, SenderUsername: &username}), nil
}

// List returns one folder of actor's mailbox, newest first. An empty folder
// name selects the inbox.
func (s *MailService) List(ctx context.Context, actor *models.JWTClaims, folder string) ([]dto.MailResponse, error) {
	f := models.MailFolder(strings.TrimSpace(folder))
	if f == "" {
		f = models.MailFolderInbox
	}
	if !f.Valid() {
		return nil, appErrors.Validation("Invalid folder")
	}
	rows, err := s.mails.ListFolder(ctx, actor.UserID, f)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list mails")
	}
	out := make([]dto.MailResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, *mailResponse(row))
	}
	return out, nil
}

// MarkRead flags a mail as read. Only its sender or recipient may do so.
func (s *MailService) MarkRead(ctx context.Context, actor *models.JWTClaims, id int64) error {
	row, err := s.mails.FindRow(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "Mail not found")
		}
		return appErrors.Internal(err, "failed to load mail")
	}
	if !row.InvolvesUser(actor.UserID) {
		return appErrors.Clone(appErrors.ErrForbidden, "Not allowed")
	}
	if err := s.mails.MarkRead(ctx, id); err != nil {
		return appErrors.Internal(err, "failed to mark mail read")
	}
	return nil
}

// Bulk applies one action to the listed mails actor sent or received.
// Mails owned by other users are skipped silently.
func (s *MailService) Bulk(ctx context.Context, actor *models.JWTClaims, req dto.MailBulkRequest) (*dto.MailBulkResult, error) {
	action := models.MailBulkAction(strings.TrimSpace(req.Action))
	if len(req.IDs) == 0 || !action.Valid() {
		return nil, appErrors.Validation("Invalid request")
	}
	var target models.MailFolder
	if action == models.MailActionMove {
		target = models.MailFolder(strings.TrimSpace(req.Target))
		switch target {
		case models.MailFolderTrash, models.MailFolderInbox, models.MailFolderSaved:
		default:
			return nil, appErrors.Validation("Invalid move target")
		}
	}

	affected, err := s.mails.Bulk(ctx, actor.UserID, req.IDs, action, target, s.now().UTC())
	if err != nil {
		return nil, appErrors.Internal(err, "failed to apply mail action")
	}
	s.logger.Debug("mail bulk action",
		zap.Int64("user_id", actor.UserID),
		zap.String("action", string(action)),
		zap.Int64("affected", affected),
	)
	return &dto.MailBulkResult{OK: true, Affected: affected}, nil
}

// UnreadCount purges trash older than the retention window, then counts the
// unread mail actor received.
func (s *MailService) UnreadCount(ctx context.Context, actor *models.JWTClaims) (*dto.UnreadCountResponse, error) {
	cutoff := s.now().UTC().Add(-s.retention)
	purged, err := s.mails.PurgeTrash(ctx, cutoff)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to purge mail trash")
	}
	if purged > 0 {
		s.metrics.RecordMailPurge(purged)
		s.logger.Info("purged trashed mail", zap.Int64("count", purged), zap.Time("cutoff", cutoff))
	}

	count, err := s.mails.CountUnread(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to count unread mail")
	}
	return &dto.UnreadCountResponse{Count: count}, nil
}

func mailResponse(row models.MailRow) *dto.MailResponse {
	sender := systemSenderName
	if row.SenderID != nil {
		sender = stringValue(row.SenderUsername)
	}
	return &dto.MailResponse{
		ID:          row.ID,
		Subject:     row.Subject,
		Body:        row.Body,
		Sender:      sender,
		SenderID:    row.SenderID,
		RecipientID: row.RecipientID,
		IsRead:      row.IsRead,
		IsDraft:     row.IsDraft,
		IsSaved:     row.IsSaved,
		DeletedAt:   row.DeletedAt,
		CreatedAt:   row.CreatedAt,
	}
}
