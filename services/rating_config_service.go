package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/courtsidehq/league-engine/models"
	"github.com/courtsidehq/league-engine/repositories"
)

// ParametersResult is returned by SetParameters. Warning is non-fatal: the
// update succeeded, but the caller should surface the message to the admin.
type ParametersResult struct {
	Parameters models.RatingParameters `json:"parameters"`
	Warning    string                  `json:"warning,omitempty"`
}

type RatingConfigService interface {
	// GetActiveParameters returns the active version for the season, or the
	// process-wide defaults if the season has none stored.
	GetActiveParameters(ctx context.Context, seasonID int) (*models.RatingParameters, error)
	// GetParametersAt returns the version that was active at the given
	// instant, for replay against historical parameters.
	GetParametersAt(ctx context.Context, seasonID int, at time.Time) (*models.RatingParameters, error)
	ListParameterVersions(ctx context.Context, seasonID int) ([]*models.RatingParameters, error)
	// SetParameters creates a new parameter version from a partial update.
	// The previous version is deactivated, never overwritten.
	SetParameters(ctx context.Context, seasonID int, update models.RatingParametersUpdate) (*ParametersResult, error)
}

type ratingConfigService struct {
	db         *sql.DB
	paramsRepo repositories.RatingParametersRepository
	lockRepo   repositories.SeasonLockRepository
	matchRepo  repositories.MatchRepository
}

func NewRatingConfigService(
	db *sql.DB,
	paramsRepo repositories.RatingParametersRepository,
	lockRepo repositories.SeasonLockRepository,
	matchRepo repositories.MatchRepository,
) RatingConfigService {
	return &ratingConfigService{
		db:         db,
		paramsRepo: paramsRepo,
		lockRepo:   lockRepo,
		matchRepo:  matchRepo,
	}
}

func (s *ratingConfigService) GetActiveParameters(ctx context.Context, seasonID int) (*models.RatingParameters, error) {
	params, err := s.paramsRepo.GetActiveBySeason(ctx, nil, seasonID)
	if err != nil {
		if errors.Is(err, repositories.ErrRatingParametersNotFound) {
			defaults := models.DefaultRatingParameters(seasonID)
			return &defaults, nil
		}
		return nil, fmt.Errorf("failed to load active parameters for season %d: %w", seasonID, err)
	}
	return params, nil
}

func (s *ratingConfigService) GetParametersAt(ctx context.Context, seasonID int, at time.Time) (*models.RatingParameters, error) {
	params, err := s.paramsRepo.GetBySeasonAt(ctx, nil, seasonID, at)
	if err != nil {
		if errors.Is(err, repositories.ErrRatingParametersNotFound) {
			defaults := models.DefaultRatingParameters(seasonID)
			return &defaults, nil
		}
		return nil, fmt.Errorf("failed to load parameters for season %d at %s: %w", seasonID, at, err)
	}
	return params, nil
}

func (s *ratingConfigService) ListParameterVersions(ctx context.Context, seasonID int) ([]*models.RatingParameters, error) {
	return s.paramsRepo.ListBySeason(ctx, nil, seasonID)
}

func (s *ratingConfigService) SetParameters(ctx context.Context, seasonID int, update models.RatingParametersUpdate) (*ParametersResult, error) {
	var result ParametersResult

	err := runInTx(ctx, s.db, func(exec repositories.SQLExecutor) error {
		lock, err := s.lockRepo.Get(ctx, exec, seasonID)
		if err != nil {
			return fmt.Errorf("failed to check season lock: %w", err)
		}
		if lock.IsLocked {
			return ErrSeasonLocked
		}

		base, err := s.paramsRepo.GetActiveBySeason(ctx, exec, seasonID)
		if errors.Is(err, repositories.ErrRatingParametersNotFound) {
			defaults := models.DefaultRatingParameters(seasonID)
			base = &defaults
		} else if err != nil {
			return fmt.Errorf("failed to load active parameters: %w", err)
		}

		next := applyParametersUpdate(*base, update)
		if err := validateParameters(next); err != nil {
			return err
		}
		next.ID = 0
		next.Version = base.Version + 1
		next.IsActive = true

		if err := s.paramsRepo.DeactivateActive(ctx, exec, seasonID); err != nil {
			return fmt.Errorf("failed to deactivate previous parameter version: %w", err)
		}
		if err := s.paramsRepo.Create(ctx, exec, &next); err != nil {
			return fmt.Errorf("failed to create parameter version %d: %w", next.Version, err)
		}
		result.Parameters = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Changing parameters after play began desynchronizes historical and
	// future ratings until a recalculation runs. A warning, not an error.
	completed, err := s.matchRepo.CountCompletedBySeason(ctx, nil, seasonID)
	if err == nil && completed > 0 {
		result.Warning = fmt.Sprintf(
			"season %d already has %d completed matches; run a recalculation to keep historical ratings consistent",
			seasonID, completed,
		)
	}

	return &result, nil
}

func applyParametersUpdate(base models.RatingParameters, update models.RatingParametersUpdate) models.RatingParameters {
	if update.InitialRating != nil {
		base.InitialRating = *update.InitialRating
	}
	if update.InitialRD != nil {
		base.InitialRD = *update.InitialRD
	}
	if update.KFactorNew != nil {
		base.KFactorNew = *update.KFactorNew
	}
	if update.KFactorEstablished != nil {
		base.KFactorEstablished = *update.KFactorEstablished
	}
	if update.KFactorThreshold != nil {
		base.KFactorThreshold = *update.KFactorThreshold
	}
	if update.SinglesWeight != nil {
		base.SinglesWeight = *update.SinglesWeight
	}
	if update.DoublesWeight != nil {
		base.DoublesWeight = *update.DoublesWeight
	}
	if update.OneSetMatchWeight != nil {
		base.OneSetMatchWeight = *update.OneSetMatchWeight
	}
	if update.WalkoverWinImpact != nil {
		base.WalkoverWinImpact = *update.WalkoverWinImpact
	}
	if update.WalkoverLossImpact != nil {
		base.WalkoverLossImpact = *update.WalkoverLossImpact
	}
	if update.ProvisionalThreshold != nil {
		base.ProvisionalThreshold = *update.ProvisionalThreshold
	}
	if update.RDFloor != nil {
		base.RDFloor = *update.RDFloor
	}
	return base
}

func validateParameters(p models.RatingParameters) error {
	switch {
	case p.InitialRating <= 0:
		return fmt.Errorf("%w: initial rating must be positive", ErrValidationFailed)
	case p.InitialRD <= 0:
		return fmt.Errorf("%w: initial RD must be positive", ErrValidationFailed)
	case p.KFactorNew <= 0 || p.KFactorEstablished <= 0:
		return fmt.Errorf("%w: K-factors must be positive", ErrValidationFailed)
	case p.KFactorThreshold < 0 || p.ProvisionalThreshold < 0:
		return fmt.Errorf("%w: thresholds must not be negative", ErrValidationFailed)
	case p.SinglesWeight <= 0 || p.DoublesWeight <= 0 || p.OneSetMatchWeight <= 0:
		return fmt.Errorf("%w: weights must be positive", ErrValidationFailed)
	case p.RDFloor <= 0 || p.RDFloor > p.InitialRD:
		return fmt.Errorf("%w: RD floor must be positive and below the initial RD", ErrValidationFailed)
	}
	return nil
}
