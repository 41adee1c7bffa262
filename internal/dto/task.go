package dto

import "time"

// CreateTaskRequest is the payload of POST /tasks.
type CreateTaskRequest struct {
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	DueDate        string      `json:"due_date"`
	AssignedToID   AssigneeRef `json:"assigned_to_id" swaggertype:"string"`
	RecurrenceType string      `json:"recurrence_type"`
}

// SetTaskStatusRequest is the payload of POST /tasks/{id}/status.
type SetTaskStatusRequest struct {
	Status string `json:"status"`
}

// UpdateTaskDueRequest is the payload of POST /tasks/{id}/due.
type UpdateTaskDueRequest struct {
	DueDate string `json:"due_date"`
}

// EditTaskRequest is the payload of POST /tasks/{id}/edit.
type EditTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"due_date"`
}

// TaskUserRef identifies the assignee or creator of a task.
type TaskUserRef struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// TaskAttachmentResponse describes an attachment with its signed download url.
type TaskAttachmentResponse struct {
	ID           int64     `json:"id"`
	Filename     string    `json:"filename"`
	StoredPath   string    `json:"stored_path"`
	UploadedByID *int64    `json:"uploaded_by_id"`
	CreatedAt    time.Time `json:"created_at"`
	URL          string    `json:"url"`
}

// TaskResponse is the task payload returned by every task endpoint.
type TaskResponse struct {
	ID                int64                    `json:"id"`
	Title             string                   `json:"title"`
	Description       *string                  `json:"description"`
	DueDate           string                   `json:"due_date"`
	Status            string                   `json:"status"`
	ViewStatus        string                   `json:"view_status"`
	ViewedAt          *time.Time               `json:"viewed_at"`
	AdminLocked       bool                     `json:"admin_locked"`
	ApprovedAt        *time.Time               `json:"approved_at"`
	SubmittedAt       *time.Time               `json:"submitted_at"`
	CreatedAt         time.Time                `json:"created_at"`
	UpdatedAt         time.Time                `json:"updated_at"`
	RecurrenceType    string                   `json:"recurrence_type"`
	RecurrenceGroupID *string                  `json:"recurrence_group_id"`
	AssignedTo        TaskUserRef              `json:"assigned_to"`
	CreatedBy         *TaskUserRef             `json:"created_by"`
	Overdue           bool                     `json:"overdue"`
	Attachments       []TaskAttachmentResponse `json:"attachments"`
	ApprovalPending   bool                     `json:"approval_pending"`
	CreatedByAdmin    bool                     `json:"created_by_admin"`
}

// TaskUpload is a file received by POST /tasks/{id}/attach.
type TaskUpload struct {
	Filename    string
	Size        int64
	ContentType string
}
