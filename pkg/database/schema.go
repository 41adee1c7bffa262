package database

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates missing tables and indexes. Every statement is idempotent.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schemaStatements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func schemaStatements() []string {
	parts := strings.Split(schemaSQL, ";")
	stmts := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			stmts = append(stmts, trimmed)
		}
	}
	return stmts
}

func firstLine(stmt string) string {
	if idx := strings.IndexByte(stmt, '\n'); idx >= 0 {
		return stmt[:idx]
	}
	return stmt
}
