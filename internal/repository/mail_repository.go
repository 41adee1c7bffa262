package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/creatia-api/internal/models"
)

const mailColumns = `m.id, m.subject, m.body, m.sender_id, m.recipient_id, m.is_read, m.is_draft, m.is_saved, m.deleted_at, m.created_at`

// Folder predicates over the mails table aliased as m. $1 is always the viewer.
var mailFolderPredicates = map[models.MailFolder]string{
	models.MailFolderInbox: `m.recipient_id = $1 AND m.is_draft = FALSE AND m.is_saved = FALSE AND m.deleted_at IS NULL`,
	models.MailFolderSent:  `m.sender_id = $1 AND m.is_draft = FALSE AND m.deleted_at IS NULL`,
	models.MailFolderDraft: `m.sender_id = $1 AND m.is_draft = TRUE AND m.deleted_at IS NULL`,
	models.MailFolderSaved: `m.recipient_id = $1 AND m.is_draft = FALSE AND m.is_saved = TRUE AND m.deleted_at IS NULL`,
	models.MailFolderTrash: `m.deleted_at IS NOT NULL AND (m.recipient_id = $1 OR m.sender_id = $1)`,
}

// Bulk action updates. $1 is the owner, $2 the id list, $3 the timestamp when used.
var mailBulkStatements = map[string]string{
	"read":       `UPDATE mails SET is_read = TRUE WHERE id = ANY($2) AND (sender_id = $1 OR recipient_id = $1)`,
	"delete":     `UPDATE mails SET deleted_at = $3 WHERE id = ANY($2) AND (sender_id = $1 OR recipient_id = $1)`,
	"restore":    `UPDATE mails SET deleted_at = NULL WHERE id = ANY($2) AND (sender_id = $1 OR recipient_id = $1)`,
	"purge":      `DELETE FROM mails WHERE id = ANY($2) AND (sender_id = $1 OR recipient_id = $1)`,
	"move:trash": `UPDATE mails SET deleted_at = $3, is_saved = FALSE WHERE id = ANY($2) AND (sender_id = $1 OR recipient_id = $1)`,
	"move:inbox": `UPDATE mails SET deleted_at = NULL, is_saved = FALSE WHERE id = ANY($2) AND (sender_id = $1 OR recipient_id = $1)`,
	"move:saved": `UPDATE mails SET deleted_at = NULL, is_saved = TRUE WHERE id = ANY($2) AND (sender_id = $1 OR recipient_id = $1)`,
}

// MailRepository persists mailbox messages.
type MailRepository struct {
	db *sqlx.DB
}

// NewMailRepository constructs a MailRepository.
func NewMailRepository(db *sqlx.DB) *MailRepository {
	return &MailRepository{db: db}
}

func (r *MailRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts mail and fills id and created_at.
func (r *MailRepository) Create(ctx context.Context, mail *models.Mail) error {
	if mail.CreatedAt.IsZero() {
		mail.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO mails (subject, body, sender_id, recipient_id, is_read, is_draft, is_saved, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	err := r.db.GetContext(ctx, &mail.ID, query,
		mail.Subject, mail.Body, mail.SenderID, mail.RecipientID, mail.IsRead, mail.IsDraft, mail.IsSaved, mail.CreatedAt)
	if err != nil {
		return fmt.Errorf("create mail: %w", err)
	}
	return nil
}

// FindRow loads a mail with its sender username.
func (r *MailRepository) FindRow(ctx context.Context, id int64) (*models.MailRow, error) {
	query := `SELECT ` + mailColumns + `, u.username AS sender_username
FROM mails m LEFT JOIN users u ON u.id = m.sender_id WHERE m.id = $1`
	var row models.MailRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find mail: %w", err)
	}
	return &row, nil
}

// MarkRead flags one mail as read.
func (r *MailRepository) MarkRead(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE mails SET is_read = TRUE WHERE id = $1`, id); err != nil {
		return fmt.Errorf("mark mail read: %w", err)
	}
	return nil
}

// ListFolder returns the folder view of userID, newest first.
func (r *MailRepository) ListFolder(ctx context.Context, userID int64, folder models.MailFolder) ([]models.MailRow, error) {
	predicate, ok := mailFolderPredicates[folder]
	if !ok {
		return nil, fmt.Errorf("unknown mail folder %q", folder)
	}
	query := `SELECT ` + mailColumns + `, u.username AS sender_username
FROM mails m LEFT JOIN users u ON u.id = m.sender_id
WHERE ` + predicate + `
ORDER BY m.created_at DESC, m.id DESC`
	var rows []models.MailRow
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("list mail folder: %w", err)
	}
	return rows, nil
}

// Bulk applies action to ids owned by userID. For move, target selects the
// destination folder. It returns the number of rows touched.
func (r *MailRepository) Bulk(ctx context.Context, userID int64, ids []int64, action models.MailBulkAction, target models.MailFolder, now time.Time) (int64, error) {
	key := string(action)
	if action == models.MailActionMove {
		key += ":" + string(target)
	}
	stmt, ok := mailBulkStatements[key]
	if !ok {
		return 0, fmt.Errorf("unsupported mail bulk action %q", key)
	}
	args := []interface{}{userID, pq.Array(ids)}
	if key == "delete" || key == "move:trash" {
		args = append(args, now)
	}
	res, err := r.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("mail bulk %s: %w", key, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mail bulk %s rows: %w", key, err)
	}
	return affected, nil
}

// PurgeTrash hard deletes every mail soft deleted before cutoff.
func (r *MailRepository) PurgeTrash(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM mails WHERE deleted_at IS NOT NULL AND deleted_at < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge mail trash: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

// CountUnread counts unread, received, non draft, non deleted mail.
func (r *MailRepository) CountUnread(ctx context.Context, userID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM mails WHERE recipient_id = $1 AND is_read = FALSE AND is_draft = FALSE AND deleted_at IS NULL`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("count unread mail: %w", err)
	}
	return count, nil
}

// DeleteByUser removes every mail the user sent or received.
func (r *MailRepository) DeleteByUser(ctx context.Context, exec sqlx.ExtContext, userID int64) error {
	const query = `DELETE FROM mails WHERE sender_id = $1 OR recipient_id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("delete user mail: %w", err)
	}
	return nil
}
