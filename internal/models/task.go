package models

import "time"

// TaskStatus is the completion state of a task.
type TaskStatus string

const (
	TaskStatusPending     TaskStatus = "pending"
	TaskStatusDone        TaskStatus = "done"
	TaskStatusDoneOverdue TaskStatus = "done-overdue"
)

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusDone, TaskStatusDoneOverdue:
		return true
	}
	return false
}

// IsDone reports whether s is either completion status.
func (s TaskStatus) IsDone() bool {
	return s == TaskStatusDone || s == TaskStatusDoneOverdue
}

// ViewStatus is the assignee-facing review state of a task.
type ViewStatus string

const (
	ViewStatusSend          ViewStatus = "send"
	ViewStatusSeen          ViewStatus = "seen"
	ViewStatusAwaitingAdmin ViewStatus = "awaiting_admin"
	ViewStatusApproved      ViewStatus = "approved"
)

// RecurrenceType controls how a completed occurrence advances.
type RecurrenceType string

const (
	RecurrenceOneTime RecurrenceType = "one_time"
	RecurrenceDaily   RecurrenceType = "daily"
	RecurrenceWeekly  RecurrenceType = "weekly"
	RecurrenceMonthly RecurrenceType = "monthly"
	RecurrenceYearly  RecurrenceType = "yearly"
)

// Valid reports whether r is a known recurrence type.
func (r RecurrenceType) Valid() bool {
	switch r {
	case RecurrenceOneTime, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly, RecurrenceYearly:
		return true
	}
	return false
}

// IsRecurring reports whether r repeats.
func (r RecurrenceType) IsRecurring() bool {
	return r != "" && r != RecurrenceOneTime
}

// Task is a row of the tasks table. DueDate carries a date at UTC midnight.
type Task struct {
	ID                int64          `db:"id" json:"id"`
	Title             string         `db:"title" json:"title"`
	Description       *string        `db:"description" json:"description"`
	DueDate           time.Time      `db:"due_date" json:"due_date"`
	Status            TaskStatus     `db:"status" json:"status"`
	ViewStatus        ViewStatus     `db:"view_status" json:"view_status"`
	ViewedAt          *time.Time     `db:"viewed_at" json:"viewed_at"`
	AdminLocked       bool           `db:"admin_locked" json:"admin_locked"`
	RecurrenceType    RecurrenceType `db:"recurrence_type" json:"recurrence_type"`
	RecurrenceGroupID *string        `db:"recurrence_group_id" json:"recurrence_group_id"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
	ApprovedAt        *time.Time     `db:"approved_at" json:"approved_at"`
	SubmittedAt       *time.Time     `db:"submitted_at" json:"submitted_at"`
	AssignedToID      int64          `db:"assigned_to_id" json:"assigned_to_id"`
	CreatedByID       *int64         `db:"created_by_id" json:"created_by_id"`
}

// IsRecurring reports whether the task belongs to a recurrence group.
func (t *Task) IsRecurring() bool {
	return t.RecurrenceType.IsRecurring() && t.RecurrenceGroupID != nil && *t.RecurrenceGroupID != ""
}

// IsOverdue reports whether the task is past due on today and not completed.
func (t *Task) IsOverdue(today time.Time) bool {
	return t.Status != TaskStatusDone && t.DueDate.Before(today)
}

// SelfManagedBy reports whether userID both created and is assigned the task.
func (t *Task) SelfManagedBy(userID int64) bool {
	return t.CreatedByID != nil && *t.CreatedByID == t.AssignedToID && t.AssignedToID == userID
}

// TaskRecord is a task joined with its assignee and creator identities.
type TaskRecord struct {
	Task
	AssigneeUsername string    `db:"assignee_username"`
	AssigneeRole     UserRole  `db:"assignee_role"`
	CreatorUsername  *string   `db:"creator_username"`
	CreatorRole      *UserRole `db:"creator_role"`
}

// TaskAttachment is a file uploaded against a task.
type TaskAttachment struct {
	ID           int64     `db:"id" json:"id"`
	TaskID       int64     `db:"task_id" json:"task_id"`
	Filename     string    `db:"filename" json:"filename"`
	StoredPath   string    `db:"stored_path" json:"stored_path"`
	UploadedByID *int64    `db:"uploaded_by_id" json:"uploaded_by_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// TaskScope selects which tasks a viewer may list.
type TaskScope string

const (
	// TaskScopeAll lists every task except self-managed tasks of generic users.
	TaskScopeAll TaskScope = "all"
	// TaskScopeAssigned lists tasks assigned to the viewer.
	TaskScopeAssigned TaskScope = "assigned"
	// TaskScopeAssignedNonSupervisor lists tasks assigned to the viewer whose assignee is not a supervisor.
	TaskScopeAssignedNonSupervisor TaskScope = "assigned_non_supervisor"
)

// TaskFilter drives TaskRepository.List.
type TaskFilter struct {
	Scope    TaskScope
	ViewerID int64
}
