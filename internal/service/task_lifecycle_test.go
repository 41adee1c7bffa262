package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/creatia-api/internal/models"
	appErrors "github.com/noah-isme/creatia-api/pkg/errors"
)

var (
	adminActor      = &models.JWTClaims{UserID: 1, Username: "admin", Role: models.RoleAdmin}
	researcherActor = &models.JWTClaims{UserID: 2, Username: "rita", Role: models.RoleResearcher}
	strangerActor   = &models.JWTClaims{UserID: 9, Username: "sam", Role: models.RoleUser}
)

func lockedTask(due string) *models.Task {
	creator := adminActor.UserID
	return &models.Task{
		ID:             10,
		Title:          "Quarterly report",
		DueDate:        day(due),
		Status:         models.TaskStatusPending,
		ViewStatus:     models.ViewStatusSend,
		AdminLocked:    true,
		RecurrenceType: models.RecurrenceOneTime,
		AssignedToID:   researcherActor.UserID,
		CreatedByID:    &creator,
	}
}

func TestApplyStatusValidation(t *testing.T) {
	now := day("2024-01-15").Add(9 * time.Hour)

	_, err := applyStatus(lockedTask("2024-01-20"), strangerActor, "done", now)
	assert.Equal(t, "Not allowed.", appErrors.FromError(err).Message)
	assert.Equal(t, appErrors.ErrForbidden.Status, appErrors.FromError(err).Status)

	_, err = applyStatus(lockedTask("2024-01-20"), researcherActor, "finished", now)
	assert.Equal(t, "Invalid status.", appErrors.FromError(err).Message)

	_, err = applyStatus(lockedTask("2024-01-10"), researcherActor, "done", now)
	assert.Equal(t, "This task is overdue. Use done-overdue instead.", appErrors.FromError(err).Message)

	_, err = applyStatus(lockedTask("2024-01-20"), researcherActor, "done-overdue", now)
	assert.Equal(t, "done-overdue is only valid for overdue tasks.", appErrors.FromError(err).Message)

	due := lockedTask("2024-01-15")
	_, err = applyStatus(due, researcherActor, "done", now)
	assert.NoError(t, err, "a task due today is not overdue")
}

func TestApplyStatusDoneAllowedWhenAlreadyDone(t *testing.T) {
	now := day("2024-02-01")
	task := lockedTask("2024-01-10")
	task.Status = models.TaskStatusDone

	_, err := applyStatus(task, adminActor, "done", now)
	require.NoError(t, err)
	assert.Equal(t, models.ViewStatusApproved, task.ViewStatus)
}

func TestApplyStatusApprovalScenario(t *testing.T) {
	task := lockedTask("2024-01-10")
	submittedAt := day("2024-01-12").Add(8 * time.Hour)

	outcome, err := applyStatus(task, researcherActor, "done-overdue", submittedAt)
	require.NoError(t, err)
	assert.False(t, outcome.Advanced)
	assert.Equal(t, models.ViewStatusAwaitingAdmin, task.ViewStatus)
	assert.Equal(t, models.TaskStatusPending, task.Status)
	require.NotNil(t, task.SubmittedAt)
	assert.Equal(t, submittedAt.UTC(), *task.SubmittedAt)

	approvedAt := day("2024-01-13").Add(10 * time.Hour)
	_, err = applyStatus(task, adminActor, "done-overdue", approvedAt)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusDoneOverdue, task.Status)
	assert.Equal(t, models.ViewStatusApproved, task.ViewStatus)
	require.NotNil(t, task.ApprovedAt)
	assert.Equal(t, approvedAt.UTC(), *task.ApprovedAt)
	assert.Equal(t, submittedAt.UTC(), *task.SubmittedAt, "submission time is kept")
}

func TestApplyStatusRetractSubmission(t *testing.T) {
	now := day("2024-01-05")
	task := lockedTask("2024-01-10")
	_, err := applyStatus(task, researcherActor, "done", now)
	require.NoError(t, err)
	require.Equal(t, models.ViewStatusAwaitingAdmin, task.ViewStatus)

	_, err = applyStatus(task, researcherActor, "pending", now)
	require.NoError(t, err)
	assert.Equal(t, models.ViewStatusSeen, task.ViewStatus)
	assert.Equal(t, models.TaskStatusPending, task.Status)
	assert.Nil(t, task.SubmittedAt)
}

func TestApplyStatusRecurringAdvances(t *testing.T) {
	group := "grp-1"
	approved := day("2024-01-01")
	task := &models.Task{
		DueDate:           day("2024-01-31"),
		Status:            models.TaskStatusPending,
		ViewStatus:        models.ViewStatusSeen,
		RecurrenceType:    models.RecurrenceMonthly,
		RecurrenceGroupID: &group,
		AssignedToID:      researcherActor.UserID,
		ApprovedAt:        &approved,
	}

	outcome, err := applyStatus(task, researcherActor, "done", day("2024-01-20"))
	require.NoError(t, err)
	assert.True(t, outcome.Advanced)
	assert.Equal(t, "2024-02-28", task.DueDate.Format(dateLayout))
	assert.Equal(t, models.TaskStatusPending, task.Status)
	assert.Equal(t, models.ViewStatusSend, task.ViewStatus)
	assert.Nil(t, task.ApprovedAt)
}

func TestApplyStatusAssigneeMarksSeen(t *testing.T) {
	now := day("2024-01-05").Add(time.Hour)
	task := &models.Task{
		DueDate:        day("2024-01-10"),
		Status:         models.TaskStatusPending,
		ViewStatus:     models.ViewStatusSend,
		RecurrenceType: models.RecurrenceOneTime,
		AssignedToID:   researcherActor.UserID,
	}

	_, err := applyStatus(task, researcherActor, "done", now)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusDone, task.Status)
	assert.Equal(t, models.ViewStatusSeen, task.ViewStatus)
	require.NotNil(t, task.ViewedAt)
	assert.Nil(t, task.ApprovedAt)
}

func TestApplyStatusAdminOnOwnTaskEndsSeen(t *testing.T) {
	now := day("2024-01-05")
	task := &models.Task{
		DueDate:        day("2024-01-10"),
		Status:         models.TaskStatusPending,
		ViewStatus:     models.ViewStatusSend,
		AdminLocked:    true,
		RecurrenceType: models.RecurrenceOneTime,
		AssignedToID:   adminActor.UserID,
	}

	_, err := applyStatus(task, adminActor, "done", now)
	require.NoError(t, err)
	assert.NotNil(t, task.ApprovedAt)
	assert.Equal(t, models.ViewStatusSeen, task.ViewStatus)
}

func TestPickOccurrences(t *testing.T) {
	today := day("2024-03-10")
	g1, g2 := "g1", "g2"
	rec := func(id int64, due string, group *string) models.TaskRecord {
		return models.TaskRecord{Task: models.Task{ID: id, DueDate: day(due), RecurrenceGroupID: group}}
	}
	records := []models.TaskRecord{
		rec(1, "2024-03-01", &g1),
		rec(2, "2024-03-02", nil),
		rec(3, "2024-03-05", &g2),
		rec(4, "2024-03-08", &g2),
		rec(5, "2024-03-12", &g1),
		rec(6, "2024-03-20", &g1),
	}

	got := pickOccurrences(records, today)
	ids := make([]int64, 0, len(got))
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []int64{5, 2, 3}, ids)
}
