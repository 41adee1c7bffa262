package service

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	appErrors "github.com/noah-isme/creatia-api/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// runInTx executes fn inside a transaction, committing when fn succeeds and
// rolling back otherwise. Errors returned by fn are passed through untouched.
func runInTx(ctx context.Context, provider txProvider, fn func(tx *sqlx.Tx) error) (err error) {
	if provider == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := provider.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Internal(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Internal(err, "failed to commit transaction")
	}
	return nil
}
