package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/courtsidehq/league-engine/models"
)

var ErrSeasonLockNotFound = errors.New("season lock record not found")

type SeasonLockRepository interface {
	Get(ctx context.Context, exec SQLExecutor, seasonID int) (*models.SeasonLock, error)
	// GetForUpdate takes a row lock on the season's lock record so concurrent
	// lock attempts serialize; call inside a transaction. A missing row is
	// created unlocked first, so there is always something to lock.
	GetForUpdate(ctx context.Context, exec SQLExecutor, seasonID int) (*models.SeasonLock, error)
	Upsert(ctx context.Context, exec SQLExecutor, lock *models.SeasonLock) error
}

type postgresSeasonLockRepository struct {
	db *sql.DB
}

func NewPostgresSeasonLockRepository(db *sql.DB) SeasonLockRepository {
	return &postgresSeasonLockRepository{db: db}
}

func (r *postgresSeasonLockRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresSeasonLockRepository) scanLock(rowScanner interface{ Scan(...interface{}) error }) (*models.SeasonLock, error) {
	var l models.SeasonLock
	err := rowScanner.Scan(&l.SeasonID, &l.IsLocked, &l.LockedAt, &l.LockedBy, &l.Notes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSeasonLockNotFound
		}
		return nil, err
	}
	return &l, nil
}

func (r *postgresSeasonLockRepository) Get(ctx context.Context, exec SQLExecutor, seasonID int) (*models.SeasonLock, error) {
	executor := r.getExecutor(exec)
	query := `SELECT season_id, is_locked, locked_at, locked_by, notes
		FROM season_locks WHERE season_id = $1`
	lock, err := r.scanLock(executor.QueryRowContext(ctx, query, seasonID))
	if errors.Is(err, ErrSeasonLockNotFound) {
		// Absence of a record means the season has never been locked.
		return &models.SeasonLock{SeasonID: seasonID}, nil
	}
	return lock, err
}

func (r *postgresSeasonLockRepository) GetForUpdate(ctx context.Context, exec SQLExecutor, seasonID int) (*models.SeasonLock, error) {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx,
		`INSERT INTO season_locks (season_id, is_locked) VALUES ($1, FALSE)
		 ON CONFLICT (season_id) DO NOTHING`,
		seasonID,
	)
	if err != nil {
		return nil, err
	}
	query := `SELECT season_id, is_locked, locked_at, locked_by, notes
		FROM season_locks WHERE season_id = $1 FOR UPDATE`
	return r.scanLock(executor.QueryRowContext(ctx, query, seasonID))
}

func (r *postgresSeasonLockRepository) Upsert(ctx context.Context, exec SQLExecutor, lock *models.SeasonLock) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO season_locks (season_id, is_locked, locked_at, locked_by, notes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (season_id) DO UPDATE SET
			is_locked = EXCLUDED.is_locked,
			locked_at = EXCLUDED.locked_at,
			locked_by = EXCLUDED.locked_by,
			notes = EXCLUDED.notes`
	_, err := executor.ExecContext(ctx, query,
		lock.SeasonID, lock.IsLocked, lock.LockedAt, lock.LockedBy, lock.Notes,
	)
	return err
}
