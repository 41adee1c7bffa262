package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/creatia-api/internal/dto"
	"github.com/noah-isme/creatia-api/internal/models"
	appErrors "github.com/noah-isme/creatia-api/pkg/errors"
	"github.com/noah-isme/creatia-api/pkg/storage"
)

type taskRepository interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Task, error)
	FindRecord(ctx context.Context, id int64) (*models.TaskRecord, error)
	List(ctx context.Context, filter models.TaskFilter) ([]models.TaskRecord, error)
	Create(ctx context.Context, exec sqlx.ExtContext, task *models.Task) error
	Update(ctx context.Context, exec sqlx.ExtContext, task *models.Task) error
	ListGroupIDs(ctx context.Context, exec sqlx.ExtContext, groupID string) ([]int64, error)
	Delete(ctx context.Context, exec sqlx.ExtContext, ids []int64) ([]string, error)
	ListAttachments(ctx context.Context, taskIDs []int64) ([]models.TaskAttachment, error)
	CreateAttachment(ctx context.Context, att *models.TaskAttachment) error
}

type taskUserRepository interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
	ListActiveByRole(ctx context.Context, role models.UserRole) ([]models.User, error)
}

type fileStore interface {
	Link(subject, key string) string
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, keys ...string)
}

// TaskService implements task creation, listing and the status workflow.
type TaskService struct {
	tasks    taskRepository
	users    taskUserRepository
	db       txProvider
	files    fileStore
	notifier notifier
	logger   *zap.Logger
	baseURL  string
	now      func() time.Time
}

// NewTaskService constructs a TaskService. baseURL prefixes links in notifications.
func NewTaskService(tasks taskRepository, users taskUserRepository, db txProvider, files fileStore, n notifier, baseURL string, logger *zap.Logger) *TaskService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if n == nil {
		n = noopNotifier{}
	}
	return &TaskService{
		tasks:    tasks,
		users:    users,
		db:       db,
		files:    files,
		notifier: n,
		logger:   logger,
		baseURL:  baseURL,
		now:      time.Now,
	}
}

// List returns the tasks visible to actor, one row per recurrence group.
func (s *TaskService) List(ctx context.Context, actor *models.JWTClaims, all bool) ([]dto.TaskResponse, error) {
	filter := models.TaskFilter{ViewerID: actor.UserID}
	switch {
	case actor.IsAdmin() && all:
		filter.Scope = models.TaskScopeAll
	case actor.Role == models.RoleSupervisor:
		filter.Scope = models.TaskScopeAssigned
	default:
		filter.Scope = models.TaskScopeAssignedNonSupervisor
	}

	records, err := s.tasks.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list tasks")
	}
	today := dateOnly(s.now())
	picked := pickOccurrences(records, today)

	ids := make([]int64, 0, len(picked))
	for _, rec := range picked {
		ids = append(ids, rec.ID)
	}
	attachments, err := s.tasks.ListAttachments(ctx, ids)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list task attachments")
	}
	byTask := make(map[int64][]models.TaskAttachment, len(picked))
	for _, att := range attachments {
		byTask[att.TaskID] = append(byTask[att.TaskID], att)
	}

	out := make([]dto.TaskResponse, 0, len(picked))
	for _, rec := range picked {
		out = append(out, s.toResponse(rec, byTask[rec.ID], today))
	}
	return out, nil
}

// Create validates req and inserts one task per resolved assignee. The first
// created task is returned.
func (s *TaskService) Create(ctx context.Context, actor *models.JWTClaims, req dto.CreateTaskRequest) (*dto.TaskResponse, error) {
	if req.AssignedToID.Invalid {
		return nil, appErrors.Validation("Invalid assignee id.")
	}
	title := strings.TrimSpace(req.Title)
	dueRaw := strings.TrimSpace(req.DueDate)
	if title == "" || dueRaw == "" {
		return nil, appErrors.Validation("Title and due date are required.")
	}

	var assignee *models.User
	if !req.AssignedToID.AllResearchers {
		id := req.AssignedToID.ID
		if req.AssignedToID.IsSelf() {
			id = actor.UserID
		}
		user, err := s.users.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "Assignee not found.")
			}
			return nil, appErrors.Internal(err, "failed to load assignee")
		}
		assignee = user
	}

	var assignees []models.User
	if actor.IsAdmin() {
		if req.AssignedToID.AllResearchers {
			researchers, err := s.users.ListActiveByRole(ctx, models.RoleResearcher)
			if err != nil {
				return nil, appErrors.Internal(err, "failed to list researchers")
			}
			if len(researchers) == 0 {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "No researchers found.")
			}
			assignees = researchers
		} else {
			if !assignee.Role.IsPrivileged() {
				return nil, appErrors.Clone(appErrors.ErrForbidden, "Admins may assign only to admins, supervisors, or researchers.")
			}
			assignees = []models.User{*assignee}
		}
	} else {
		if req.AssignedToID.AllResearchers {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "Only admins can assign to all researchers.")
		}
		if assignee.ID != actor.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "You can only assign tasks to yourself.")
		}
		assignees = []models.User{*assignee}
	}

	due, ok := parseDate(dueRaw)
	if !ok {
		return nil, appErrors.Validation("Invalid due date format. Use YYYY-MM-DD.")
	}
	recurrence := models.RecurrenceType(strings.TrimSpace(req.RecurrenceType))
	if recurrence == "" {
		recurrence = models.RecurrenceOneTime
	}
	if !recurrence.Valid() {
		return nil, appErrors.Validation("Invalid recurrence type.")
	}

	creatorID := actor.UserID
	created := make([]*models.Task, 0, len(assignees))
	err := runInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		for _, user := range assignees {
			task := &models.Task{
				Title:          title,
				Description:    trimmedOrNil(req.Description),
				DueDate:        due,
				Status:         models.TaskStatusPending,
				ViewStatus:     models.ViewStatusSend,
				AdminLocked:    actor.IsAdmin(),
				RecurrenceType: recurrence,
				AssignedToID:   user.ID,
				CreatedByID:    &creatorID,
			}
			if recurrence.IsRecurring() {
				group := uuid.NewString()
				task.RecurrenceGroupID = &group
			}
			if err := s.tasks.Create(ctx, tx, task); err != nil {
				return appErrors.Internal(err, "failed to create task")
			}
			created = append(created, task)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	assigner := s.displayName(ctx, actor)
	for i, task := range created {
		s.notifier.Notify(recipientOf(&assignees[i]), taskAssignedMessage(task, &assignees[i], assigner, s.baseURL))
	}
	s.logger.Info("tasks created", zap.Int64("creator_id", actor.UserID), zap.Int("count", len(created)))

	return s.get(ctx, created[0].ID)
}

// SetStatus runs the status workflow on a task inside a transaction.
func (s *TaskService) SetStatus(ctx context.Context, actor *models.JWTClaims, id int64, status string) (*dto.TaskResponse, error) {
	var removed []string
	err := runInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		task, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		outcome, err := applyStatus(task, actor, strings.TrimSpace(status), s.now())
		if err != nil {
			return err
		}
		if outcome.Advanced && task.RecurrenceGroupID != nil {
			groupIDs, err := s.tasks.ListGroupIDs(ctx, tx, *task.RecurrenceGroupID)
			if err != nil {
				return appErrors.Internal(err, "failed to load recurrence group")
			}
			siblings := make([]int64, 0, len(groupIDs))
			for _, gid := range groupIDs {
				if gid != task.ID {
					siblings = append(siblings, gid)
				}
			}
			if removed, err = s.tasks.Delete(ctx, tx, siblings); err != nil {
				return appErrors.Internal(err, "failed to remove recurrence siblings")
			}
		}
		if err := s.tasks.Update(ctx, tx, task); err != nil {
			return appErrors.Internal(err, "failed to update task")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.files.Remove(ctx, removed...)
	return s.get(ctx, id)
}

// Delete removes a task. Admins deleting a recurring task remove the whole group.
func (s *TaskService) Delete(ctx context.Context, actor *models.JWTClaims, id int64) error {
	var removed []string
	err := runInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		task, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && !task.SelfManagedBy(actor.UserID) {
			return appErrors.Clone(appErrors.ErrForbidden, "Not allowed to delete this task.")
		}

		targets := []int64{task.ID}
		if actor.IsAdmin() && task.RecurrenceGroupID != nil && *task.RecurrenceGroupID != "" {
			groupIDs, err := s.tasks.ListGroupIDs(ctx, tx, *task.RecurrenceGroupID)
			if err != nil {
				return appErrors.Internal(err, "failed to load recurrence group")
			}
			if len(groupIDs) > 0 {
				targets = groupIDs
			}
		}
		if removed, err = s.tasks.Delete(ctx, tx, targets); err != nil {
			return appErrors.Internal(err, "failed to delete task")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.files.Remove(ctx, removed...)
	return nil
}

// UpdateDue moves the due date of a self-managed task.
func (s *TaskService) UpdateDue(ctx context.Context, actor *models.JWTClaims, id int64, raw string) (*dto.TaskResponse, error) {
	task, err := s.load(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, appErrors.Validation("New due date is required.")
	}
	if !task.SelfManagedBy(actor.UserID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "Not allowed to change this due date.")
	}
	due, ok := parseDate(raw)
	if !ok {
		return nil, appErrors.Validation("Invalid due date format. Use YYYY-MM-DD.")
	}
	task.DueDate = due
	if err := s.tasks.Update(ctx, nil, task); err != nil {
		return nil, appErrors.Internal(err, "failed to update task")
	}
	return s.get(ctx, id)
}

// Edit rewrites title, description and optionally the due date.
func (s *TaskService) Edit(ctx context.Context, actor *models.JWTClaims, id int64, req dto.EditTaskRequest) (*dto.TaskResponse, error) {
	task, err := s.load(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !task.SelfManagedBy(actor.UserID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "Not allowed to edit this task.")
	}

	if raw := strings.TrimSpace(req.DueDate); raw != "" {
		due, ok := parseDate(raw)
		if !ok {
			return nil, appErrors.Validation("Invalid due date format. Use YYYY-MM-DD.")
		}
		task.DueDate = due
	}
	if title := strings.TrimSpace(req.Title); title != "" {
		task.Title = title
	}
	task.Description = trimmedOrNil(req.Description)

	if err := s.tasks.Update(ctx, nil, task); err != nil {
		return nil, appErrors.Internal(err, "failed to update task")
	}
	return s.get(ctx, id)
}

// MarkSeen records that the assignee opened the task.
func (s *TaskService) MarkSeen(ctx context.Context, actor *models.JWTClaims, id int64) (*dto.TaskResponse, error) {
	task, err := s.load(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if task.AssignedToID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "Only the assignee can mark this task as seen.")
	}
	stamp := s.now().UTC()
	task.ViewStatus = models.ViewStatusSeen
	task.ViewedAt = &stamp
	if err := s.tasks.Update(ctx, nil, task); err != nil {
		return nil, appErrors.Internal(err, "failed to update task")
	}
	return s.get(ctx, id)
}

// Attach stores an uploaded file against a task. A nil upload means the
// request carried no file part.
func (s *TaskService) Attach(ctx context.Context, actor *models.JWTClaims, id int64, upload *dto.TaskUpload, body io.Reader) (*dto.TaskResponse, error) {
	task, err := s.load(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if task.AssignedToID != actor.UserID && !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "Not allowed.")
	}
	if upload == nil || body == nil {
		return nil, appErrors.Validation("No file uploaded.")
	}
	name := storage.SecureFilename(upload.Filename)
	if name == "" {
		return nil, appErrors.Validation("Invalid file.")
	}

	key := fmt.Sprintf("%d_%d_%s", task.ID, s.now().Unix(), name)
	if err := s.files.Save(ctx, key, body, upload.Size, upload.ContentType); err != nil {
		return nil, err
	}
	uploader := actor.UserID
	att := &models.TaskAttachment{TaskID: task.ID, Filename: name, StoredPath: key, UploadedByID: &uploader}
	if err := s.tasks.CreateAttachment(ctx, att); err != nil {
		s.files.Remove(ctx, key)
		return nil, appErrors.Internal(err, "failed to record attachment")
	}
	return s.get(ctx, id)
}

func (s *TaskService) load(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Task, error) {
	task, err := s.tasks.FindByID(ctx, exec, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Task not found.")
		}
		return nil, appErrors.Internal(err, "failed to load task")
	}
	return task, nil
}

func (s *TaskService) get(ctx context.Context, id int64) (*dto.TaskResponse, error) {
	rec, err := s.tasks.FindRecord(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Task not found.")
		}
		return nil, appErrors.Internal(err, "failed to load task")
	}
	attachments, err := s.tasks.ListAttachments(ctx, []int64{id})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list task attachments")
	}
	resp := s.toResponse(*rec, attachments, dateOnly(s.now()))
	return &resp, nil
}

func (s *TaskService) displayName(ctx context.Context, actor *models.JWTClaims) string {
	user, err := s.users.FindByID(ctx, actor.UserID)
	if err != nil {
		return actor.Username
	}
	return user.DisplayName()
}

func (s *TaskService) toResponse(rec models.TaskRecord, attachments []models.TaskAttachment, today time.Time) dto.TaskResponse {
	resp := dto.TaskResponse{
		ID:                rec.ID,
		Title:             rec.Title,
		Description:       rec.Description,
		DueDate:           rec.DueDate.Format(dateLayout),
		Status:            string(rec.Status),
		ViewStatus:        string(rec.ViewStatus),
		ViewedAt:          rec.ViewedAt,
		AdminLocked:       rec.AdminLocked,
		ApprovedAt:        rec.ApprovedAt,
		SubmittedAt:       rec.SubmittedAt,
		CreatedAt:         rec.CreatedAt,
		UpdatedAt:         rec.UpdatedAt,
		RecurrenceType:    string(rec.RecurrenceType),
		RecurrenceGroupID: rec.RecurrenceGroupID,
		AssignedTo:        dto.TaskUserRef{ID: rec.AssignedToID, Username: rec.AssigneeUsername, Role: string(rec.AssigneeRole)},
		Overdue:           rec.IsOverdue(today),
		ApprovalPending:   rec.ViewStatus == models.ViewStatusAwaitingAdmin,
		Attachments:       make([]dto.TaskAttachmentResponse, 0, len(attachments)),
	}
	if rec.CreatedByID != nil && rec.CreatorUsername != nil {
		ref := dto.TaskUserRef{ID: *rec.CreatedByID, Username: *rec.CreatorUsername}
		if rec.CreatorRole != nil {
			ref.Role = string(*rec.CreatorRole)
			resp.CreatedByAdmin = *rec.CreatorRole == models.RoleAdmin
		}
		resp.CreatedBy = &ref
	}
	for _, att := range attachments {
		resp.Attachments = append(resp.Attachments, dto.TaskAttachmentResponse{
			ID:           att.ID,
			Filename:     att.Filename,
			StoredPath:   att.StoredPath,
			UploadedByID: att.UploadedByID,
			CreatedAt:    att.CreatedAt,
			URL:          s.files.Link("attachment:"+formatID(att.ID), att.StoredPath),
		})
	}
	return resp
}
