package database

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaStatementsSplit(t *testing.T) {
	stmts := schemaStatements()
	require.NotEmpty(t, stmts)
	assert.Contains(t, stmts[0], "CREATE TABLE IF NOT EXISTS users")
	for _, stmt := range stmts {
		assert.NotContains(t, stmt, ";")
	}
}

func TestEnsureSchemaExecutesEveryStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	stmts := schemaStatements()
	for range stmts {
		mock.ExpectExec(".*").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, EnsureSchema(context.Background(), sqlx.NewDb(db, "sqlmock")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchemaStopsOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(".*").WillReturnError(errors.New("permission denied"))

	err = EnsureSchema(context.Background(), sqlx.NewDb(db, "sqlmock"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CREATE TABLE IF NOT EXISTS users")
}
