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

const taskColumns = `t.id, t.title, t.description, t.due_date, t.status, t.view_status, t.viewed_at, t.admin_locked,
t.recurrence_type, t.recurrence_group_id, t.created_at, t.updated_at, t.approved_at, t.submitted_at,
t.assigned_to_id, t.created_by_id`

const taskRecordSelect = `SELECT ` + taskColumns + `,
a.username AS assignee_username, a.role AS assignee_role,
c.username AS creator_username, c.role AS creator_role
FROM tasks t
JOIN users a ON a.id = t.assigned_to_id
LEFT JOIN users c ON c.id = t.created_by_id`

// TaskRepository persists tasks and their attachments.
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository constructs a TaskRepository.
func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID loads a bare task row.
func (r *TaskRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.id = $1`
	var task models.Task
	if err := sqlx.GetContext(ctx, r.exec(exec), &task, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find task: %w", err)
	}
	return &task, nil
}

// FindRecord loads a task joined with its assignee and creator.
func (r *TaskRepository) FindRecord(ctx context.Context, id int64) (*models.TaskRecord, error) {
	query := taskRecordSelect + ` WHERE t.id = $1`
	var rec models.TaskRecord
	if err := r.db.GetContext(ctx, &rec, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find task record: %w", err)
	}
	return &rec, nil
}

// List returns the tasks visible under filter ordered by due date then id.
func (r *TaskRepository) List(ctx context.Context, filter models.TaskFilter) ([]models.TaskRecord, error) {
	var (
		where string
		args  []interface{}
	)
	switch filter.Scope {
	case models.TaskScopeAll:
		where = `WHERE NOT (t.created_by_id IS NOT NULL AND t.created_by_id = t.assigned_to_id AND a.role = $1)`
		args = append(args, models.RoleUser)
	case models.TaskScopeAssigned:
		where = `WHERE t.assigned_to_id = $1`
		args = append(args, filter.ViewerID)
	default:
		where = `WHERE t.assigned_to_id = $1 AND a.role <> $2`
		args = append(args, filter.ViewerID, models.RoleSupervisor)
	}

	query := taskRecordSelect + "\n" + where + ` ORDER BY t.due_date ASC, t.id ASC`
	var records []models.TaskRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return records, nil
}

// Create inserts task and fills id and timestamps.
func (r *TaskRepository) Create(ctx context.Context, exec sqlx.ExtContext, task *models.Task) error {
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = task.CreatedAt

	const query = `INSERT INTO tasks (title, description, due_date, status, view_status, admin_locked, recurrence_type,
recurrence_group_id, created_at, updated_at, assigned_to_id, created_by_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`
	err := sqlx.GetContext(ctx, r.exec(exec), &task.ID, query,
		task.Title, task.Description, task.DueDate, task.Status, task.ViewStatus, task.AdminLocked, task.RecurrenceType,
		task.RecurrenceGroupID, task.CreatedAt, task.UpdatedAt, task.AssignedToID, task.CreatedByID,
	)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// Update writes the mutable columns of task and bumps updated_at.
func (r *TaskRepository) Update(ctx context.Context, exec sqlx.ExtContext, task *models.Task) error {
	task.UpdatedAt = time.Now().UTC()
	const query = `UPDATE tasks SET title = :title, description = :description, due_date = :due_date, status = :status,
view_status = :view_status, viewed_at = :viewed_at, approved_at = :approved_at, submitted_at = :submitted_at,
updated_at = :updated_at
WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, task); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// ListGroupIDs returns the ids of every task in a recurrence group.
func (r *TaskRepository) ListGroupIDs(ctx context.Context, exec sqlx.ExtContext, groupID string) ([]int64, error) {
	const query = `SELECT id FROM tasks WHERE recurrence_group_id = $1 ORDER BY id`
	var ids []int64
	if err := sqlx.SelectContext(ctx, r.exec(exec), &ids, query, groupID); err != nil {
		return nil, fmt.Errorf("list recurrence group: %w", err)
	}
	return ids, nil
}

// ListIDsByUser returns tasks the user is assigned to or created.
func (r *TaskRepository) ListIDsByUser(ctx context.Context, exec sqlx.ExtContext, userID int64) ([]int64, error) {
	const query = `SELECT id FROM tasks WHERE assigned_to_id = $1 OR created_by_id = $1 ORDER BY id`
	var ids []int64
	if err := sqlx.SelectContext(ctx, r.exec(exec), &ids, query, userID); err != nil {
		return nil, fmt.Errorf("list user tasks: %w", err)
	}
	return ids, nil
}

// Delete removes tasks and their attachments, attachments first, and returns
// the storage keys of the removed attachments.
func (r *TaskRepository) Delete(ctx context.Context, exec sqlx.ExtContext, ids []int64) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	target := r.exec(exec)

	const attachmentsQuery = `DELETE FROM task_attachments WHERE task_id = ANY($1) RETURNING stored_path`
	var paths []string
	if err := sqlx.SelectContext(ctx, target, &paths, attachmentsQuery, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("delete task attachments: %w", err)
	}

	const tasksQuery = `DELETE FROM tasks WHERE id = ANY($1)`
	if _, err := target.ExecContext(ctx, tasksQuery, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("delete tasks: %w", err)
	}
	return paths, nil
}

// ListAttachments returns attachments of the given tasks ordered by id.
func (r *TaskRepository) ListAttachments(ctx context.Context, taskIDs []int64) ([]models.TaskAttachment, error) {
	if len(taskIDs) == 0 {
		return []models.TaskAttachment{}, nil
	}
	const query = `SELECT id, task_id, filename, stored_path, uploaded_by_id, created_at
FROM task_attachments WHERE task_id = ANY($1) ORDER BY id`
	var items []models.TaskAttachment
	if err := r.db.SelectContext(ctx, &items, query, pq.Array(taskIDs)); err != nil {
		return nil, fmt.Errorf("list task attachments: %w", err)
	}
	return items, nil
}

// CreateAttachment inserts att and fills its id.
func (r *TaskRepository) CreateAttachment(ctx context.Context, att *models.TaskAttachment) error {
	if att.CreatedAt.IsZero() {
		att.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO task_attachments (task_id, filename, stored_path, uploaded_by_id, created_at)
VALUES ($1, $2, $3, $4, $5) RETURNING id`
	if err := r.db.GetContext(ctx, &att.ID, query, att.TaskID, att.Filename, att.StoredPath, att.UploadedByID, att.CreatedAt); err != nil {
		return fmt.Errorf("create task attachment: %w", err)
	}
	return nil
}

// StatsByAssignee aggregates task outcomes per assignee as of today.
func (r *TaskRepository) StatsByAssignee(ctx context.Context, today time.Time) ([]models.UserTaskStats, error) {
	const query = `SELECT assigned_to_id AS user_id,
COUNT(*) AS assigned,
COUNT(*) FILTER (WHERE status = 'done') AS completed,
COUNT(*) FILTER (WHERE status <> 'done' AND due_date < $1) AS overdue
FROM tasks GROUP BY assigned_to_id`
	var stats []models.UserTaskStats
	if err := r.db.SelectContext(ctx, &stats, query, today); err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	return stats, nil
}

// StatsForAssignee aggregates task outcomes of a single assignee as of today.
func (r *TaskRepository) StatsForAssignee(ctx context.Context, userID int64, today time.Time) (*models.UserTaskStats, error) {
	const query = `SELECT $1::bigint AS user_id,
COUNT(*) AS assigned,
COUNT(*) FILTER (WHERE status = 'done') AS completed,
COUNT(*) FILTER (WHERE status <> 'done' AND due_date < $2) AS overdue
FROM tasks WHERE assigned_to_id = $1`
	var stats models.UserTaskStats
	if err := r.db.GetContext(ctx, &stats, query, userID, today); err != nil {
		return nil, fmt.Errorf("task stats for user: %w", err)
	}
	return &stats, nil
}
