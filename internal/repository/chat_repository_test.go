package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatAdvanceCursorIsMonotonic(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewChatRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("GREATEST(chat_read_state.last_read_id, EXCLUDED.last_read_id)")).
		WithArgs(int64(1), nil, int64(40)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.AdvanceCursor(context.Background(), 1, nil, 40))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChatCountPrivateUnread(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewChatRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY m.sender_id")).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"sender_id", "count"}).AddRow(5, 3).AddRow(9, 1))

	rows, err := repo.CountPrivateUnread(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(5), rows[0].SenderID)
	assert.Equal(t, 3, rows[0].Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChatMaxGroupCursorExcludesSender(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewChatRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE peer_id IS NULL AND user_id <> $1")).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(17))

	cursor, err := repo.MaxGroupCursor(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, int64(17), cursor)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChatDeleteMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewChatRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM chat_messages WHERE id = $1")).
		WithArgs(int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), 8)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
