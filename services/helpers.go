package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/courtsidehq/league-engine/repositories"
)

// runInTx executes fn inside a database transaction when a handle is
// available. Services constructed without a handle (tests with in-memory
// repositories) run fn directly; repositories then fall back to their own
// executors.
func runInTx(ctx context.Context, db *sql.DB, fn func(exec repositories.SQLExecutor) error) error {
	if db == nil {
		return fn(nil)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
