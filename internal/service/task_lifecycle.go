package service

import (
	"time"

	"github.com/noah-isme/creatia-api/internal/models"
	appErrors "github.com/noah-isme/creatia-api/pkg/errors"
)

// statusOutcome reports side effects of a status transition that the caller
// must persist beyond the task row itself.
type statusOutcome struct {
	// Advanced is set when a recurring occurrence was completed and the task
	// moved to its next due date. Siblings of the group must be removed.
	Advanced bool
}

// applyStatus runs the status state machine on task in place.
func applyStatus(task *models.Task, actor *models.JWTClaims, raw string, now time.Time) (statusOutcome, error) {
	isAdmin := actor.IsAdmin()
	if task.AssignedToID != actor.UserID && !isAdmin {
		return statusOutcome{}, appErrors.Clone(appErrors.ErrForbidden, "Not allowed.")
	}

	next := models.TaskStatus(raw)
	if !next.Valid() {
		return statusOutcome{}, appErrors.Validation("Invalid status.")
	}

	overdue := task.DueDate.Before(dateOnly(now))
	if next == models.TaskStatusDone && overdue && task.Status != models.TaskStatusDone {
		return statusOutcome{}, appErrors.Validation("This task is overdue. Use done-overdue instead.")
	}
	if next == models.TaskStatusDoneOverdue && !overdue {
		return statusOutcome{}, appErrors.Validation("done-overdue is only valid for overdue tasks.")
	}

	requiresApproval := task.AdminLocked && !isAdmin
	stamp := now.UTC()

	switch {
	case next == models.TaskStatusPending && requiresApproval && task.ViewStatus == models.ViewStatusAwaitingAdmin:
		task.ViewStatus = models.ViewStatusSeen
		task.Status = models.TaskStatusPending
		task.SubmittedAt = nil
		return statusOutcome{}, nil

	case next.IsDone() && requiresApproval:
		task.ViewStatus = models.ViewStatusAwaitingAdmin
		task.Status = models.TaskStatusPending
		task.SubmittedAt = &stamp
		return statusOutcome{}, nil

	case next.IsDone() && task.RecurrenceType.IsRecurring():
		task.DueDate = NextOccurrence(task.DueDate, task.RecurrenceType)
		task.Status = models.TaskStatusPending
		task.ViewStatus = models.ViewStatusSend
		task.ApprovedAt = nil
		return statusOutcome{Advanced: true}, nil
	}

	task.Status = next
	if next.IsDone() {
		if isAdmin {
			task.ViewStatus = models.ViewStatusApproved
			task.ApprovedAt = &stamp
			if task.SubmittedAt == nil {
				task.SubmittedAt = &stamp
			}
		}
	} else {
		task.ViewStatus = models.ViewStatusSeen
		task.SubmittedAt = nil
	}
	if task.ViewStatus != models.ViewStatusSeen && task.AssignedToID == actor.UserID {
		task.ViewStatus = models.ViewStatusSeen
		task.ViewedAt = &stamp
	}
	return statusOutcome{}, nil
}

// pickOccurrences keeps one task per recurrence group, preserving the order in
// which groups first appear. Within a group the nearest due date on or after
// today wins; when every occurrence is past, the earliest wins.
func pickOccurrences(records []models.TaskRecord, today time.Time) []models.TaskRecord {
	order := make([]string, 0, len(records))
	chosen := make(map[string]models.TaskRecord, len(records))

	better := func(a, b models.TaskRecord) bool {
		aPast, bPast := a.DueDate.Before(today), b.DueDate.Before(today)
		if aPast != bPast {
			return !aPast
		}
		return a.DueDate.Before(b.DueDate)
	}

	for _, rec := range records {
		key := occurrenceKey(rec.Task)
		if existing, ok := chosen[key]; ok {
			if better(rec, existing) {
				chosen[key] = rec
			}
			continue
		}
		chosen[key] = rec
		order = append(order, key)
	}

	out := make([]models.TaskRecord, 0, len(order))
	for _, key := range order {
		out = append(out, chosen[key])
	}
	return out
}

func occurrenceKey(task models.Task) string {
	if task.RecurrenceGroupID != nil && *task.RecurrenceGroupID != "" {
		return *task.RecurrenceGroupID
	}
	return "single-" + formatID(task.ID)
}
