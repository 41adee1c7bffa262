package repository

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/creatia-api/internal/models"
)

var taskRecordColumns = []string{
	"id", "title", "description", "due_date", "status", "view_status", "viewed_at", "admin_locked",
	"recurrence_type", "recurrence_group_id", "created_at", "updated_at", "approved_at", "submitted_at",
	"assigned_to_id", "created_by_id", "assignee_username", "assignee_role", "creator_username", "creator_role",
}

func TestTaskListScopes(t *testing.T) {
	cases := []struct {
		name   string
		filter models.TaskFilter
		where  string
		args   []driver.Value
	}{
		{
			name:   "all",
			filter: models.TaskFilter{Scope: models.TaskScopeAll, ViewerID: 1},
			where:  "WHERE NOT (t.created_by_id IS NOT NULL AND t.created_by_id = t.assigned_to_id AND a.role = $1)",
			args:   []driver.Value{models.RoleUser},
		},
		{
			name:   "assigned",
			filter: models.TaskFilter{Scope: models.TaskScopeAssigned, ViewerID: 4},
			where:  "WHERE t.assigned_to_id = $1",
			args:   []driver.Value{int64(4)},
		},
		{
			name:   "assigned non supervisor",
			filter: models.TaskFilter{Scope: models.TaskScopeAssignedNonSupervisor, ViewerID: 4},
			where:  "WHERE t.assigned_to_id = $1 AND a.role <> $2",
			args:   []driver.Value{int64(4), models.RoleSupervisor},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock, cleanup := newMock(t)
			defer cleanup()
			repo := NewTaskRepository(db)

			now := time.Now()
			rows := sqlmock.NewRows(taskRecordColumns).
				AddRow(1, "Write", nil, now, "pending", "send", nil, false, "one_time", nil, now, now, nil, nil, 4, 1, "rita", "researcher", "admin", "admin")
			mock.ExpectQuery(regexp.QuoteMeta(tc.where + " ORDER BY t.due_date ASC, t.id ASC")).
				WithArgs(tc.args...).
				WillReturnRows(rows)

			records, err := repo.List(context.Background(), tc.filter)
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Equal(t, "rita", records[0].AssigneeUsername)
			assert.Equal(t, models.TaskStatusPending, records[0].Status)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTaskDeleteRemovesAttachmentsFirst(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM task_attachments WHERE task_id = ANY($1) RETURNING stored_path")).
		WillReturnRows(sqlmock.NewRows([]string{"stored_path"}).AddRow("1_170000_a.pdf").AddRow("2_170000_b.png"))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tasks WHERE id = ANY($1)")).
		WillReturnResult(sqlmock.NewResult(0, 2))

	paths, err := repo.Delete(context.Background(), nil, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"1_170000_a.pdf", "2_170000_b.png"}, paths)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskDeleteNoIDs(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)

	paths, err := repo.Delete(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, paths)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskCreateReturnsID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)

	mock.ExpectQuery("INSERT INTO tasks").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	task := &models.Task{
		Title:          "Report",
		DueDate:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Status:         models.TaskStatusPending,
		ViewStatus:     models.ViewStatusSend,
		RecurrenceType: models.RecurrenceOneTime,
		AssignedToID:   3,
	}
	require.NoError(t, repo.Create(context.Background(), nil, task))
	assert.Equal(t, int64(42), task.ID)
	assert.Equal(t, task.CreatedAt, task.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskStatsByAssignee(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)

	today := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM tasks GROUP BY assigned_to_id").
		WithArgs(today).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "assigned", "completed", "overdue"}).AddRow(3, 5, 2, 1))

	stats, err := repo.StatsByAssignee(context.Background(), today)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 5, stats[0].Assigned)
	assert.Equal(t, 1, stats[0].Overdue)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskStatsForAssignee(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)

	today := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM tasks WHERE assigned_to_id = \\$1").
		WithArgs(int64(3), today).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "assigned", "completed", "overdue"}).AddRow(3, 0, 0, 0))

	stats, err := repo.StatsForAssignee(context.Background(), 3, today)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.UserID)
	assert.Zero(t, stats.Assigned)
	assert.NoError(t, mock.ExpectationsWereMet())
}
