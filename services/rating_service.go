package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/courtsidehq/league-engine/models"
	"github.com/courtsidehq/league-engine/rating"
	"github.com/courtsidehq/league-engine/repositories"
)

type EnsureInitialRatingInput struct {
	UserID        int             `json:"user_id"`
	SeasonID      int             `json:"season_id"`
	DivisionID    *int            `json:"division_id,omitempty"`
	GameType      models.GameType `json:"game_type"`
	SkillEstimate float64         `json:"skill_estimate"`
}

type AdjustRatingInput struct {
	UserID    int             `json:"user_id"`
	SeasonID  int             `json:"season_id"`
	GameType  models.GameType `json:"game_type"`
	NewRating float64         `json:"new_rating"`
	Notes     string          `json:"notes"`
	AdminID   int             `json:"-"`
}

// AppliedRatingChange reports one player's transition after a match or an
// adjustment was applied.
type AppliedRatingChange struct {
	UserID       int     `json:"user_id"`
	RatingBefore float64 `json:"rating_before"`
	RatingAfter  float64 `json:"rating_after"`
	Delta        float64 `json:"delta"`
}

type RatingService interface {
	// EnsureInitialRating creates the rating row for (user, season, game type)
	// from a questionnaire estimate. Calling it again for an existing row is a
	// no-op returning the stored rating.
	EnsureInitialRating(ctx context.Context, input EnsureInitialRatingInput) (*models.PlayerRating, error)
	// ApplyMatchResult computes and persists the rating updates for one
	// completed match. Both sides must already have rating rows.
	ApplyMatchResult(ctx context.Context, matchID int) ([]AppliedRatingChange, error)
	// AdjustRating sets a player's rating manually, recording a
	// MANUAL_ADJUSTMENT ledger entry with the admin's notes.
	AdjustRating(ctx context.Context, input AdjustRatingInput) (*models.PlayerRating, error)
	GetRating(ctx context.Context, userID, seasonID int, gameType models.GameType) (*models.PlayerRating, error)
	GetHistory(ctx context.Context, userID, seasonID int, gameType models.GameType) ([]*models.RatingHistory, error)
}

type ratingService struct {
	db          *sql.DB
	engine      *rating.Engine
	ratingRepo  repositories.PlayerRatingRepository
	historyRepo repositories.RatingHistoryRepository
	matchRepo   repositories.MatchRepository
	lockRepo    repositories.SeasonLockRepository
	config      RatingConfigService
	notifier    NotificationSink
	logger      *slog.Logger
}

func NewRatingService(
	db *sql.DB,
	engine *rating.Engine,
	ratingRepo repositories.PlayerRatingRepository,
	historyRepo repositories.RatingHistoryRepository,
	matchRepo repositories.MatchRepository,
	lockRepo repositories.SeasonLockRepository,
	config RatingConfigService,
	notifier NotificationSink,
	logger *slog.Logger,
) RatingService {
	return &ratingService{
		db:          db,
		engine:      engine,
		ratingRepo:  ratingRepo,
		historyRepo: historyRepo,
		matchRepo:   matchRepo,
		lockRepo:    lockRepo,
		config:      config,
		notifier:    notifier,
		logger:      logger,
	}
}

func (s *ratingService) EnsureInitialRating(ctx context.Context, input EnsureInitialRatingInput) (*models.PlayerRating, error) {
	if !input.GameType.Valid() {
		return nil, fmt.Errorf("%w: unknown game type %q", ErrValidationFailed, input.GameType)
	}

	if err := s.guardSeasonUnlocked(ctx, nil, input.SeasonID); err != nil {
		return nil, err
	}

	existing, err := s.ratingRepo.GetByPlayer(ctx, nil, input.UserID, input.SeasonID, input.GameType)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repositories.ErrPlayerRatingNotFound) {
		return nil, fmt.Errorf("failed to look up rating for user %d: %w", input.UserID, err)
	}

	params, err := s.config.GetActiveParameters(ctx, input.SeasonID)
	if err != nil {
		return nil, err
	}
	placement := s.engine.InitialPlacement(input.SkillEstimate, *params)

	created := &models.PlayerRating{
		UserID:          input.UserID,
		SeasonID:        input.SeasonID,
		DivisionID:      input.DivisionID,
		GameType:        input.GameType,
		CurrentRating:   placement.Rating,
		RatingDeviation: placement.RD,
		IsProvisional:   true,
		PeakRating:      placement.Rating,
		LowestRating:    placement.Rating,
	}

	err = runInTx(ctx, s.db, func(exec repositories.SQLExecutor) error {
		if err := s.ratingRepo.Create(ctx, exec, created); err != nil {
			return fmt.Errorf("failed to create rating for user %d: %w", input.UserID, err)
		}
		// The ledger baseline is the configured default rating, so the chain
		// of entries sums to CurrentRating-InitialRating from the start.
		entry := &models.RatingHistory{
			PlayerRatingID: created.ID,
			RatingBefore:   params.InitialRating,
			RatingAfter:    placement.Rating,
			Delta:          placement.Rating - params.InitialRating,
			RDBefore:       params.InitialRD,
			RDAfter:        placement.RD,
			Reason:         models.ReasonInitialPlacement,
		}
		if err := s.historyRepo.Create(ctx, exec, entry); err != nil {
			return fmt.Errorf("failed to record initial placement: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *ratingService) ApplyMatchResult(ctx context.Context, matchID int) ([]AppliedRatingChange, error) {
	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to load match %d: %w", matchID, err)
	}
	if match.Status != models.MatchStatusCompleted {
		return nil, fmt.Errorf("%w: match %d is %s", ErrMatchNotCompleted, matchID, match.Status)
	}

	params, err := s.config.GetActiveParameters(ctx, match.SeasonID)
	if err != nil {
		return nil, err
	}

	var changes []AppliedRatingChange
	err = runInTx(ctx, s.db, func(exec repositories.SQLExecutor) error {
		if err := s.guardSeasonUnlocked(ctx, exec, match.SeasonID); err != nil {
			return err
		}

		side1, err := s.loadSideForUpdate(ctx, exec, match.Side1, match.SeasonID, match.GameType)
		if err != nil {
			return err
		}
		side2, err := s.loadSideForUpdate(ctx, exec, match.Side2, match.SeasonID, match.GameType)
		if err != nil {
			return err
		}

		update, err := s.engine.ComputeMatchUpdate(rating.OutcomeFromMatch(match), side1, side2, *params)
		if err != nil {
			if errors.Is(err, rating.ErrInvalidOutcome) {
				return fmt.Errorf("%w: match %d", ErrInvalidOutcome, matchID)
			}
			return err
		}

		applied, err := s.persistMatchUpdate(ctx, exec, update, matchID)
		if err != nil {
			return err
		}
		changes = applied
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}

// persistMatchUpdate writes every player transition of a computed match
// update plus the matching ledger entries. Shared with the replay
// coordinator.
func (s *ratingService) persistMatchUpdate(ctx context.Context, exec repositories.SQLExecutor, update *rating.MatchUpdate, matchID int) ([]AppliedRatingChange, error) {
	now := time.Now()
	changes := make([]AppliedRatingChange, 0, len(update.Updates))

	for _, u := range update.Updates {
		after := u.After
		if u.NewPeak {
			after.PeakRatingDate = &now
		}
		if err := s.ratingRepo.Update(ctx, exec, &after); err != nil {
			return nil, fmt.Errorf("failed to update rating for user %d: %w", after.UserID, err)
		}

		mID := matchID
		entry := &models.RatingHistory{
			PlayerRatingID: after.ID,
			RatingBefore:   u.Before.CurrentRating,
			RatingAfter:    after.CurrentRating,
			Delta:          u.Delta,
			RDBefore:       u.Before.RatingDeviation,
			RDAfter:        after.RatingDeviation,
			Reason:         u.Reason,
			MatchID:        &mID,
		}
		if err := s.historyRepo.Create(ctx, exec, entry); err != nil {
			return nil, fmt.Errorf("failed to record history for user %d: %w", after.UserID, err)
		}

		changes = append(changes, AppliedRatingChange{
			UserID:       after.UserID,
			RatingBefore: u.Before.CurrentRating,
			RatingAfter:  after.CurrentRating,
			Delta:        u.Delta,
		})
	}
	return changes, nil
}

func (s *ratingService) AdjustRating(ctx context.Context, input AdjustRatingInput) (*models.PlayerRating, error) {
	var adjusted *models.PlayerRating

	err := runInTx(ctx, s.db, func(exec repositories.SQLExecutor) error {
		if err := s.guardSeasonUnlocked(ctx, exec, input.SeasonID); err != nil {
			return err
		}

		current, err := s.ratingRepo.GetByPlayerForUpdate(ctx, exec, input.UserID, input.SeasonID, input.GameType)
		if err != nil {
			if errors.Is(err, repositories.ErrPlayerRatingNotFound) {
				return ErrRatingNotFound
			}
			return fmt.Errorf("failed to load rating for user %d: %w", input.UserID, err)
		}

		before := *current
		now := time.Now()
		current.CurrentRating = input.NewRating
		if current.CurrentRating > current.PeakRating {
			current.PeakRating = current.CurrentRating
			current.PeakRatingDate = &now
		}
		if current.CurrentRating < current.LowestRating {
			current.LowestRating = current.CurrentRating
		}
		if err := s.ratingRepo.Update(ctx, exec, current); err != nil {
			return fmt.Errorf("failed to persist adjustment for user %d: %w", input.UserID, err)
		}

		var notes *string
		if input.Notes != "" {
			notes = &input.Notes
		}
		entry := &models.RatingHistory{
			PlayerRatingID: current.ID,
			RatingBefore:   before.CurrentRating,
			RatingAfter:    current.CurrentRating,
			Delta:          current.CurrentRating - before.CurrentRating,
			RDBefore:       before.RatingDeviation,
			RDAfter:        current.RatingDeviation,
			Reason:         models.ReasonManualAdjustment,
			Notes:          notes,
		}
		if err := s.historyRepo.Create(ctx, exec, entry); err != nil {
			return fmt.Errorf("failed to record manual adjustment: %w", err)
		}
		adjusted = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Delivery failures never roll back the adjustment.
	if err := s.notifier.Notify(ctx, []int{input.UserID}, "Your rating was adjusted by an administrator."); err != nil {
		s.logger.Warn("failed to notify player about rating adjustment",
			slog.Int("user_id", input.UserID), slog.Any("error", err))
	}

	return adjusted, nil
}

func (s *ratingService) GetRating(ctx context.Context, userID, seasonID int, gameType models.GameType) (*models.PlayerRating, error) {
	r, err := s.ratingRepo.GetByPlayer(ctx, nil, userID, seasonID, gameType)
	if err != nil {
		if errors.Is(err, repositories.ErrPlayerRatingNotFound) {
			return nil, ErrRatingNotFound
		}
		return nil, err
	}
	return r, nil
}

func (s *ratingService) GetHistory(ctx context.Context, userID, seasonID int, gameType models.GameType) ([]*models.RatingHistory, error) {
	r, err := s.GetRating(ctx, userID, seasonID, gameType)
	if err != nil {
		return nil, err
	}
	return s.historyRepo.ListByPlayerRating(ctx, nil, r.ID)
}

func (s *ratingService) loadSideForUpdate(ctx context.Context, exec repositories.SQLExecutor, userIDs []int, seasonID int, gameType models.GameType) ([]models.PlayerRating, error) {
	side := make([]models.PlayerRating, 0, len(userIDs))
	for _, userID := range userIDs {
		r, err := s.ratingRepo.GetByPlayerForUpdate(ctx, exec, userID, seasonID, gameType)
		if err != nil {
			if errors.Is(err, repositories.ErrPlayerRatingNotFound) {
				return nil, fmt.Errorf("%w: user %d, season %d, %s", ErrRatingNotFound, userID, seasonID, gameType)
			}
			return nil, fmt.Errorf("failed to load rating for user %d: %w", userID, err)
		}
		side = append(side, *r)
	}
	return side, nil
}

func (s *ratingService) guardSeasonUnlocked(ctx context.Context, exec repositories.SQLExecutor, seasonID int) error {
	lock, err := s.lockRepo.Get(ctx, exec, seasonID)
	if err != nil {
		return fmt.Errorf("failed to check season lock: %w", err)
	}
	if lock.IsLocked {
		return ErrSeasonLocked
	}
	return nil
}
