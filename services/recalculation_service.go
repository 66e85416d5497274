package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/courtsidehq/league-engine/models"
	"github.com/courtsidehq/league-engine/rating"
	"github.com/courtsidehq/league-engine/repositories"
)

type RecalculationScope string

const (
	ScopeSeason   RecalculationScope = "SEASON"
	ScopeDivision RecalculationScope = "DIVISION"
	ScopePlayer   RecalculationScope = "PLAYER"
	ScopeMatch    RecalculationScope = "MATCH"
)

type RecalculationInput struct {
	Scope      RecalculationScope `json:"scope"`
	SeasonID   int                `json:"season_id"`
	DivisionID int                `json:"division_id,omitempty"`
	UserID     int                `json:"user_id,omitempty"`
	MatchID    int                `json:"match_id,omitempty"`
}

type MatchFailure struct {
	MatchID int    `json:"match_id"`
	Error   string `json:"error"`
}

// RecalculationResult distinguishes "fully succeeded" (MatchesFailed == 0)
// from "succeeded with N skipped"; a failed run returns an error instead.
type RecalculationResult struct {
	Scope            RecalculationScope `json:"scope"`
	RatingsReset     int                `json:"ratings_reset"`
	MatchesProcessed int                `json:"matches_processed"`
	MatchesFailed    int                `json:"matches_failed"`
	RatingsUpdated   int                `json:"ratings_updated"`
	Failures         []MatchFailure     `json:"failures,omitempty"`
}

// PreviewPlayer deliberately exposes the player's current rating, not a
// recomputed projection: the preview does not run the engine.
type PreviewPlayer struct {
	UserID        int             `json:"user_id"`
	GameType      models.GameType `json:"game_type"`
	CurrentRating float64         `json:"current_rating"`
}

type PreviewResult struct {
	Scope       RecalculationScope `json:"scope"`
	MatchCount  int                `json:"match_count"`
	PlayerCount int                `json:"player_count"`
	Players     []PreviewPlayer    `json:"players"`
}

// RecalculationService replays completed matches through the rating engine
// after resetting the affected ratings to their initial values. Matches are
// processed one transaction at a time so a single malformed historical match
// cannot block the rest of the season; the flip side is that a crash
// mid-replay leaves an inconsistent intermediate state, repaired by running
// the whole reset+replay again.
type RecalculationService interface {
	Recalculate(ctx context.Context, input RecalculationInput) (*RecalculationResult, error)
	// PreviewRecalculation reports what a recalculation would touch without
	// mutating anything.
	PreviewRecalculation(ctx context.Context, input RecalculationInput) (*PreviewResult, error)
}

type recalculationService struct {
	db          *sql.DB
	engine      *rating.Engine
	ratingRepo  repositories.PlayerRatingRepository
	historyRepo repositories.RatingHistoryRepository
	matchRepo   repositories.MatchRepository
	lockRepo    repositories.SeasonLockRepository
	config      RatingConfigService
	logger      *slog.Logger
}

func NewRecalculationService(
	db *sql.DB,
	engine *rating.Engine,
	ratingRepo repositories.PlayerRatingRepository,
	historyRepo repositories.RatingHistoryRepository,
	matchRepo repositories.MatchRepository,
	lockRepo repositories.SeasonLockRepository,
	config RatingConfigService,
	logger *slog.Logger,
) RecalculationService {
	return &recalculationService{
		db:          db,
		engine:      engine,
		ratingRepo:  ratingRepo,
		historyRepo: historyRepo,
		matchRepo:   matchRepo,
		lockRepo:    lockRepo,
		config:      config,
		logger:      logger,
	}
}

func (s *recalculationService) Recalculate(ctx context.Context, input RecalculationInput) (*RecalculationResult, error) {
	matches, affected, err := s.resolveScope(ctx, input)
	if err != nil {
		return nil, err
	}

	lock, err := s.lockRepo.Get(ctx, nil, input.SeasonID)
	if err != nil {
		return nil, fmt.Errorf("failed to check season lock: %w", err)
	}
	if lock.IsLocked {
		return nil, ErrSeasonLocked
	}

	// The repository orders by completed_at, but chronological order is
	// load-bearing (K-factor and provisional status depend on cumulative
	// matches played), so it is enforced here as well.
	sort.SliceStable(matches, func(i, j int) bool {
		if !matches[i].CompletedAt.Equal(matches[j].CompletedAt) {
			return matches[i].CompletedAt.Before(matches[j].CompletedAt)
		}
		return matches[i].ID < matches[j].ID
	})

	params, err := s.config.GetActiveParameters(ctx, input.SeasonID)
	if err != nil {
		return nil, err
	}

	result := &RecalculationResult{Scope: input.Scope}

	// Phase 1: reset every affected rating to its initial state, recording
	// the pre-reset value so the reset itself stays auditable.
	affectedKeys := make(map[ratingKey]bool, len(affected))
	for _, target := range affected {
		affectedKeys[ratingKey{target.UserID, target.GameType}] = true
		if err := s.resetRating(ctx, target, *params); err != nil {
			return nil, fmt.Errorf("failed to reset rating for user %d: %w", target.UserID, err)
		}
		result.RatingsReset++
	}

	// Phase 2: replay the match set in order, one transaction per match.
	for _, match := range matches {
		updated, err := s.replayMatch(ctx, match, affectedKeys)
		if err != nil {
			result.MatchesFailed++
			result.Failures = append(result.Failures, MatchFailure{MatchID: match.ID, Error: err.Error()})
			s.logger.Warn("recalculation skipped match",
				slog.Int("match_id", match.ID),
				slog.String("scope", string(input.Scope)),
				slog.Any("error", err),
			)
			continue
		}
		result.MatchesProcessed++
		result.RatingsUpdated += updated
	}

	s.logger.Info("recalculation finished",
		slog.String("scope", string(input.Scope)),
		slog.Int("season_id", input.SeasonID),
		slog.Int("processed", result.MatchesProcessed),
		slog.Int("failed", result.MatchesFailed),
		slog.Int("ratings_updated", result.RatingsUpdated),
	)
	return result, nil
}

func (s *recalculationService) PreviewRecalculation(ctx context.Context, input RecalculationInput) (*PreviewResult, error) {
	matches, affected, err := s.resolveScope(ctx, input)
	if err != nil {
		return nil, err
	}

	preview := &PreviewResult{
		Scope:       input.Scope,
		MatchCount:  len(matches),
		PlayerCount: len(affected),
		Players:     make([]PreviewPlayer, 0, len(affected)),
	}
	for _, r := range affected {
		preview.Players = append(preview.Players, PreviewPlayer{
			UserID:        r.UserID,
			GameType:      r.GameType,
			CurrentRating: r.CurrentRating,
		})
	}
	return preview, nil
}

type ratingKey struct {
	userID   int
	gameType models.GameType
}

// resolveScope loads the match set and the affected rating rows for the
// requested scope. Narrow scopes reset only their own ratings; opponents
// outside the scope are read during replay but never written.
func (s *recalculationService) resolveScope(ctx context.Context, input RecalculationInput) ([]*models.CompletedMatch, []*models.PlayerRating, error) {
	switch input.Scope {
	case ScopeSeason:
		matches, err := s.matchRepo.ListCompletedBySeason(ctx, nil, input.SeasonID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list season matches: %w", err)
		}
		ratings, err := s.ratingRepo.ListBySeason(ctx, nil, input.SeasonID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list season ratings: %w", err)
		}
		return matches, ratings, nil

	case ScopeDivision:
		if input.DivisionID == 0 {
			return nil, nil, fmt.Errorf("%w: division scope requires a division id", ErrValidationFailed)
		}
		matches, err := s.matchRepo.ListCompletedByDivision(ctx, nil, input.SeasonID, input.DivisionID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list division matches: %w", err)
		}
		ratings, err := s.ratingRepo.ListByDivision(ctx, nil, input.SeasonID, input.DivisionID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list division ratings: %w", err)
		}
		return matches, ratings, nil

	case ScopePlayer:
		if input.UserID == 0 {
			return nil, nil, fmt.Errorf("%w: player scope requires a user id", ErrValidationFailed)
		}
		matches, err := s.matchRepo.ListCompletedByPlayer(ctx, nil, input.SeasonID, input.UserID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list player matches: %w", err)
		}
		var ratings []*models.PlayerRating
		for _, gameType := range []models.GameType{models.GameTypeSingles, models.GameTypeDoubles} {
			r, err := s.ratingRepo.GetByPlayer(ctx, nil, input.UserID, input.SeasonID, gameType)
			if errors.Is(err, repositories.ErrPlayerRatingNotFound) {
				continue
			}
			if err != nil {
				return nil, nil, fmt.Errorf("failed to load rating for user %d: %w", input.UserID, err)
			}
			ratings = append(ratings, r)
		}
		if len(ratings) == 0 {
			return nil, nil, ErrRatingNotFound
		}
		return matches, ratings, nil

	case ScopeMatch:
		if input.MatchID == 0 {
			return nil, nil, fmt.Errorf("%w: match scope requires a match id", ErrValidationFailed)
		}
		match, err := s.matchRepo.GetByID(ctx, nil, input.MatchID)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				return nil, nil, ErrMatchNotFound
			}
			return nil, nil, fmt.Errorf("failed to load match %d: %w", input.MatchID, err)
		}
		if match.Status != models.MatchStatusCompleted {
			return nil, nil, ErrMatchNotCompleted
		}
		var ratings []*models.PlayerRating
		for _, userID := range match.Players() {
			r, err := s.ratingRepo.GetByPlayer(ctx, nil, userID, match.SeasonID, match.GameType)
			if err != nil {
				if errors.Is(err, repositories.ErrPlayerRatingNotFound) {
					return nil, nil, fmt.Errorf("%w: user %d", ErrRatingNotFound, userID)
				}
				return nil, nil, fmt.Errorf("failed to load rating for user %d: %w", userID, err)
			}
			ratings = append(ratings, r)
		}
		return []*models.CompletedMatch{match}, ratings, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidRecalculationScope, input.Scope)
	}
}

func (s *recalculationService) resetRating(ctx context.Context, target *models.PlayerRating, params models.RatingParameters) error {
	return runInTx(ctx, s.db, func(exec repositories.SQLExecutor) error {
		before := *target
		target.CurrentRating = params.InitialRating
		target.RatingDeviation = params.InitialRD
		target.MatchesPlayed = 0
		target.IsProvisional = true
		target.PeakRating = params.InitialRating
		target.PeakRatingDate = nil
		target.LowestRating = params.InitialRating
		if err := s.ratingRepo.Update(ctx, exec, target); err != nil {
			return err
		}

		entry := &models.RatingHistory{
			PlayerRatingID: target.ID,
			RatingBefore:   before.CurrentRating,
			RatingAfter:    target.CurrentRating,
			Delta:          target.CurrentRating - before.CurrentRating,
			RDBefore:       before.RatingDeviation,
			RDAfter:        target.RatingDeviation,
			Reason:         models.ReasonRecalculation,
		}
		return s.historyRepo.Create(ctx, exec, entry)
	})
}

// replayMatch applies one historical match, persisting only the transitions
// of ratings inside the recalculation scope. Returns the number of ratings
// written.
func (s *recalculationService) replayMatch(ctx context.Context, match *models.CompletedMatch, affected map[ratingKey]bool) (int, error) {
	params, err := s.config.GetParametersAt(ctx, match.SeasonID, match.CompletedAt)
	if err != nil {
		return 0, err
	}

	updated := 0
	err = runInTx(ctx, s.db, func(exec repositories.SQLExecutor) error {
		side1, err := s.loadSide(ctx, exec, match.Side1, match.SeasonID, match.GameType)
		if err != nil {
			return err
		}
		side2, err := s.loadSide(ctx, exec, match.Side2, match.SeasonID, match.GameType)
		if err != nil {
			return err
		}

		update, err := s.engine.ComputeMatchUpdate(rating.OutcomeFromMatch(match), side1, side2, *params)
		if err != nil {
			return err
		}

		for _, u := range update.Updates {
			if !affected[ratingKey{u.After.UserID, u.After.GameType}] {
				continue
			}
			after := u.After
			if u.NewPeak {
				completedAt := match.CompletedAt
				after.PeakRatingDate = &completedAt
			}
			if err := s.ratingRepo.Update(ctx, exec, &after); err != nil {
				return fmt.Errorf("failed to update rating for user %d: %w", after.UserID, err)
			}
			matchID := match.ID
			entry := &models.RatingHistory{
				PlayerRatingID: after.ID,
				RatingBefore:   u.Before.CurrentRating,
				RatingAfter:    after.CurrentRating,
				Delta:          u.Delta,
				RDBefore:       u.Before.RatingDeviation,
				RDAfter:        after.RatingDeviation,
				Reason:         u.Reason,
				MatchID:        &matchID,
			}
			if err := s.historyRepo.Create(ctx, exec, entry); err != nil {
				return fmt.Errorf("failed to record history for user %d: %w", after.UserID, err)
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

func (s *recalculationService) loadSide(ctx context.Context, exec repositories.SQLExecutor, userIDs []int, seasonID int, gameType models.GameType) ([]models.PlayerRating, error) {
	side := make([]models.PlayerRating, 0, len(userIDs))
	for _, userID := range userIDs {
		r, err := s.ratingRepo.GetByPlayer(ctx, exec, userID, seasonID, gameType)
		if err != nil {
			if errors.Is(err, repositories.ErrPlayerRatingNotFound) {
				return nil, fmt.Errorf("%w: user %d", ErrRatingNotFound, userID)
			}
			return nil, err
		}
		side = append(side, *r)
	}
	return side, nil
}
