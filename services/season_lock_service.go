package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/courtsidehq/league-engine/models"
	"github.com/courtsidehq/league-engine/repositories"
)

// SeasonLockService is the sole cross-operation mutual exclusion for a
// season's rating data. Lock and Unlock run as read-check-write transactions
// over a row lock, so two admins racing each other cannot double-lock.
type SeasonLockService interface {
	Lock(ctx context.Context, seasonID, adminID int, notes string) (*models.SeasonLock, error)
	Unlock(ctx context.Context, seasonID, adminID int) (*models.SeasonLock, error)
	Status(ctx context.Context, seasonID int) (*models.SeasonLock, error)
}

type seasonLockService struct {
	db        *sql.DB
	lockRepo  repositories.SeasonLockRepository
	matchRepo repositories.MatchRepository
}

func NewSeasonLockService(
	db *sql.DB,
	lockRepo repositories.SeasonLockRepository,
	matchRepo repositories.MatchRepository,
) SeasonLockService {
	return &seasonLockService{
		db:        db,
		lockRepo:  lockRepo,
		matchRepo: matchRepo,
	}
}

func (s *seasonLockService) Lock(ctx context.Context, seasonID, adminID int, notes string) (*models.SeasonLock, error) {
	var locked *models.SeasonLock

	err := runInTx(ctx, s.db, func(exec repositories.SQLExecutor) error {
		lock, err := s.lockRepo.GetForUpdate(ctx, exec, seasonID)
		if err != nil {
			return fmt.Errorf("failed to load season lock: %w", err)
		}
		if lock.IsLocked {
			return ErrSeasonLocked
		}

		// A season can only be locked once every match has reached a
		// terminal status.
		pending, err := s.matchRepo.CountPendingBySeason(ctx, exec, seasonID)
		if err != nil {
			return fmt.Errorf("failed to count pending matches: %w", err)
		}
		if pending > 0 {
			return fmt.Errorf("%w: %d pending", ErrSeasonHasPendingMatches, pending)
		}

		now := time.Now()
		lock.IsLocked = true
		lock.LockedAt = &now
		lock.LockedBy = &adminID
		if notes != "" {
			lock.Notes = &notes
		}
		if err := s.lockRepo.Upsert(ctx, exec, lock); err != nil {
			return fmt.Errorf("failed to persist season lock: %w", err)
		}
		locked = lock
		return nil
	})
	if err != nil {
		return nil, err
	}
	return locked, nil
}

func (s *seasonLockService) Unlock(ctx context.Context, seasonID, adminID int) (*models.SeasonLock, error) {
	var unlocked *models.SeasonLock

	err := runInTx(ctx, s.db, func(exec repositories.SQLExecutor) error {
		lock, err := s.lockRepo.GetForUpdate(ctx, exec, seasonID)
		if err != nil {
			return fmt.Errorf("failed to load season lock: %w", err)
		}
		if !lock.IsLocked {
			return ErrSeasonNotLocked
		}

		lock.IsLocked = false
		lock.LockedAt = nil
		lock.LockedBy = nil
		lock.Notes = nil
		if err := s.lockRepo.Upsert(ctx, exec, lock); err != nil {
			return fmt.Errorf("failed to persist season unlock: %w", err)
		}
		unlocked = lock
		return nil
	})
	if err != nil {
		return nil, err
	}
	return unlocked, nil
}

func (s *seasonLockService) Status(ctx context.Context, seasonID int) (*models.SeasonLock, error) {
	return s.lockRepo.Get(ctx, nil, seasonID)
}
