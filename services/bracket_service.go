package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/courtsidehq/league-engine/brackets"
	"github.com/courtsidehq/league-engine/models"
	"github.com/courtsidehq/league-engine/repositories"
)

type CreateBracketInput struct {
	SeasonID   int `json:"season_id"`
	DivisionID int `json:"division_id"`
}

type ManualSeed struct {
	Seed     int `json:"seed"`
	PlayerID int `json:"player_id"`
}

type SeedBracketInput struct {
	BracketID   int                  `json:"bracket_id"`
	Source      models.SeedingSource `json:"source"`
	ManualSeeds []ManualSeed         `json:"manual_seeds,omitempty"`
}

type RecordBracketResultInput struct {
	BracketMatchID int  `json:"bracket_match_id"`
	WinnerID       int  `json:"winner_id"`
	MatchID        *int `json:"match_id,omitempty"`
}

// BracketService drives the draw through its lifecycle:
// DRAFT -> SEEDED -> PUBLISHED -> IN_PROGRESS -> COMPLETED.
// Reseeding is allowed any number of times before publication; publishing
// locks the draw for good.
type BracketService interface {
	CreateBracket(ctx context.Context, input CreateBracketInput) (*models.Bracket, error)
	SeedBracket(ctx context.Context, input SeedBracketInput) (*models.Bracket, error)
	PublishBracket(ctx context.Context, bracketID, adminID int) (*models.Bracket, error)
	RecordMatchResult(ctx context.Context, input RecordBracketResultInput) (*models.BracketMatch, error)
	GetFullBracket(ctx context.Context, bracketID int) (*models.Bracket, error)
}

type bracketService struct {
	db           *sql.DB
	bracketRepo  repositories.BracketRepository
	standingRepo repositories.StandingRepository
	ratingRepo   repositories.PlayerRatingRepository
	notifier     NotificationSink
	logger       *slog.Logger
}

func NewBracketService(
	db *sql.DB,
	bracketRepo repositories.BracketRepository,
	standingRepo repositories.StandingRepository,
	ratingRepo repositories.PlayerRatingRepository,
	notifier NotificationSink,
	logger *slog.Logger,
) BracketService {
	return &bracketService{
		db:           db,
		bracketRepo:  bracketRepo,
		standingRepo: standingRepo,
		ratingRepo:   ratingRepo,
		notifier:     notifier,
		logger:       logger,
	}
}

func (s *bracketService) CreateBracket(ctx context.Context, input CreateBracketInput) (*models.Bracket, error) {
	if input.SeasonID == 0 || input.DivisionID == 0 {
		return nil, fmt.Errorf("%w: season and division are required", ErrValidationFailed)
	}

	_, err := s.bracketRepo.GetBySeasonDivision(ctx, nil, input.SeasonID, input.DivisionID)
	if err == nil {
		return nil, ErrBracketExists
	}
	if !errors.Is(err, repositories.ErrBracketNotFound) {
		return nil, fmt.Errorf("failed to check for existing bracket: %w", err)
	}

	bracket := &models.Bracket{
		SeasonID:    input.SeasonID,
		DivisionID:  input.DivisionID,
		BracketType: models.BracketTypeSingleElimination,
		Status:      models.BracketStatusDraft,
	}
	if err := s.bracketRepo.Create(ctx, nil, bracket); err != nil {
		return nil, fmt.Errorf("failed to create bracket: %w", err)
	}

	s.logger.Info("bracket created",
		slog.Int("bracket_id", bracket.ID),
		slog.Int("season_id", input.SeasonID),
		slog.Int("division_id", input.DivisionID),
	)
	return bracket, nil
}

func (s *bracketService) SeedBracket(ctx context.Context, input SeedBracketInput) (*models.Bracket, error) {
	if !input.Source.Valid() {
		return nil, fmt.Errorf("%w: unknown seeding source %q", ErrValidationFailed, input.Source)
	}

	var bracket *models.Bracket
	err := runInTx(ctx, s.db, func(exec repositories.SQLExecutor) error {
		var err error
		bracket, err = s.bracketRepo.GetByIDForUpdate(ctx, exec, input.BracketID)
		if err != nil {
			if errors.Is(err, repositories.ErrBracketNotFound) {
				return ErrBracketNotFound
			}
			return fmt.Errorf("failed to load bracket: %w", err)
		}
		if bracket.IsLocked {
			return ErrBracketLocked
		}
		if bracket.Status != models.BracketStatusDraft && bracket.Status != models.BracketStatusSeeded {
			return fmt.Errorf("%w: cannot seed a %s bracket", ErrBracketInvalidStatus, bracket.Status)
		}

		seeds, err := s.resolveSeeds(ctx, exec, bracket, input)
		if err != nil {
			return err
		}

		skeleton, err := brackets.BuildSingleElimination(seeds)
		if err != nil {
			if errors.Is(err, brackets.ErrInsufficientPlayers) {
				return ErrInsufficientPlayers
			}
			return fmt.Errorf("failed to build bracket structure: %w", err)
		}

		// Reseeding replaces the previous structure wholesale.
		if err := s.bracketRepo.DeleteMatchesByBracket(ctx, exec, bracket.ID); err != nil {
			return fmt.Errorf("failed to clear bracket matches: %w", err)
		}
		if err := s.bracketRepo.DeleteRoundsByBracket(ctx, exec, bracket.ID); err != nil {
			return fmt.Errorf("failed to clear bracket rounds: %w", err)
		}

		for _, round := range skeleton.Rounds {
			dbRound := &models.BracketRound{
				BracketID:   bracket.ID,
				RoundNumber: round.RoundNumber,
				Name:        round.Name,
			}
			if err := s.bracketRepo.CreateRound(ctx, exec, dbRound); err != nil {
				return fmt.Errorf("failed to create round %d: %w", round.RoundNumber, err)
			}
			for _, match := range round.Matches {
				dbMatch := &models.BracketMatch{
					RoundID:     dbRound.ID,
					MatchNumber: match.MatchNumber,
					Seed1:       match.Seed1,
					Seed2:       match.Seed2,
					Player1ID:   match.Player1ID,
					Player2ID:   match.Player2ID,
					Status:      match.Status,
				}
				if err := s.bracketRepo.CreateMatch(ctx, exec, dbMatch); err != nil {
					return fmt.Errorf("failed to create match %d of round %d: %w",
						match.MatchNumber, round.RoundNumber, err)
				}
			}
		}

		source := input.Source
		bracket.SeedingSource = &source
		bracket.NumPlayers = len(seeds)
		bracket.Status = models.BracketStatusSeeded
		if err := s.bracketRepo.Update(ctx, exec, bracket); err != nil {
			return fmt.Errorf("failed to update bracket: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("bracket seeded",
		slog.Int("bracket_id", bracket.ID),
		slog.String("source", string(input.Source)),
		slog.Int("num_players", bracket.NumPlayers),
	)
	return bracket, nil
}

func (s *bracketService) resolveSeeds(ctx context.Context, exec repositories.SQLExecutor, bracket *models.Bracket, input SeedBracketInput) ([]brackets.Seed, error) {
	switch input.Source {
	case models.SeedingSourceStandings:
		standings, err := s.standingRepo.ListByDivision(ctx, exec, bracket.SeasonID, bracket.DivisionID)
		if err != nil {
			return nil, fmt.Errorf("failed to load standings: %w", err)
		}
		seeds := make([]brackets.Seed, 0, len(standings))
		for i, st := range standings {
			seeds = append(seeds, brackets.Seed{Seed: i + 1, PlayerID: st.UserID})
		}
		return seeds, nil

	case models.SeedingSourceRating:
		ratings, err := s.ratingRepo.ListByDivision(ctx, exec, bracket.SeasonID, bracket.DivisionID)
		if err != nil {
			return nil, fmt.Errorf("failed to load ratings: %w", err)
		}
		seeds := make([]brackets.Seed, 0, len(ratings))
		for i, r := range ratings {
			seeds = append(seeds, brackets.Seed{Seed: i + 1, PlayerID: r.UserID})
		}
		return seeds, nil

	case models.SeedingSourceManual:
		seenSeeds := make(map[int]bool, len(input.ManualSeeds))
		seenPlayers := make(map[int]bool, len(input.ManualSeeds))
		seeds := make([]brackets.Seed, 0, len(input.ManualSeeds))
		for _, ms := range input.ManualSeeds {
			if ms.Seed < 1 || ms.Seed > len(input.ManualSeeds) {
				return nil, fmt.Errorf("%w: seed %d out of range 1..%d",
					ErrValidationFailed, ms.Seed, len(input.ManualSeeds))
			}
			if seenSeeds[ms.Seed] {
				return nil, fmt.Errorf("%w: seed %d", ErrDuplicateManualSeed, ms.Seed)
			}
			if seenPlayers[ms.PlayerID] {
				return nil, fmt.Errorf("%w: player %d", ErrDuplicateManualSeed, ms.PlayerID)
			}
			seenSeeds[ms.Seed] = true
			seenPlayers[ms.PlayerID] = true
			seeds = append(seeds, brackets.Seed{Seed: ms.Seed, PlayerID: ms.PlayerID})
		}
		return seeds, nil

	default:
		return nil, fmt.Errorf("%w: unknown seeding source %q", ErrValidationFailed, input.Source)
	}
}

func (s *bracketService) PublishBracket(ctx context.Context, bracketID, adminID int) (*models.Bracket, error) {
	var bracket *models.Bracket
	var participants []int

	err := runInTx(ctx, s.db, func(exec repositories.SQLExecutor) error {
		var err error
		bracket, err = s.bracketRepo.GetByIDForUpdate(ctx, exec, bracketID)
		if err != nil {
			if errors.Is(err, repositories.ErrBracketNotFound) {
				return ErrBracketNotFound
			}
			return fmt.Errorf("failed to load bracket: %w", err)
		}
		if bracket.Status != models.BracketStatusSeeded {
			return fmt.Errorf("%w: cannot publish a %s bracket", ErrBracketInvalidStatus, bracket.Status)
		}

		matches, err := s.bracketRepo.ListMatchesByBracket(ctx, exec, bracketID)
		if err != nil {
			return fmt.Errorf("failed to load bracket matches: %w", err)
		}
		for _, m := range matches {
			if m.Player1ID != nil {
				participants = append(participants, *m.Player1ID)
			}
			if m.Player2ID != nil {
				participants = append(participants, *m.Player2ID)
			}
		}
		if len(participants) == 0 {
			return ErrBracketNotSeeded
		}

		now := time.Now()
		bracket.Status = models.BracketStatusPublished
		bracket.IsLocked = true
		bracket.PublishedAt = &now
		bracket.PublishedBy = &adminID
		if err := s.bracketRepo.Update(ctx, exec, bracket); err != nil {
			return fmt.Errorf("failed to update bracket: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		message := fmt.Sprintf("The playoff bracket for your division has been published (%d players).", bracket.NumPlayers)
		if err := s.notifier.Notify(ctx, participants, message); err != nil {
			s.logger.Warn("failed to notify bracket participants",
				slog.Int("bracket_id", bracket.ID), slog.Any("error", err))
		}
	}

	s.logger.Info("bracket published",
		slog.Int("bracket_id", bracket.ID), slog.Int("admin_id", adminID))
	return bracket, nil
}

func (s *bracketService) RecordMatchResult(ctx context.Context, input RecordBracketResultInput) (*models.BracketMatch, error) {
	var match *models.BracketMatch
	err := runInTx(ctx, s.db, func(exec repositories.SQLExecutor) error {
		var err error
		match, err = s.bracketRepo.GetMatchByID(ctx, exec, input.BracketMatchID)
		if err != nil {
			if errors.Is(err, repositories.ErrBracketMatchNotFound) {
				return ErrBracketMatchNotFound
			}
			return fmt.Errorf("failed to load bracket match: %w", err)
		}

		round, err := s.bracketRepo.GetRoundByID(ctx, exec, match.RoundID)
		if err != nil {
			return fmt.Errorf("failed to load bracket round: %w", err)
		}
		bracket, err := s.bracketRepo.GetByIDForUpdate(ctx, exec, round.BracketID)
		if err != nil {
			return fmt.Errorf("failed to load bracket: %w", err)
		}
		if bracket.Status != models.BracketStatusPublished && bracket.Status != models.BracketStatusInProgress {
			return fmt.Errorf("%w: cannot record results on a %s bracket", ErrBracketInvalidStatus, bracket.Status)
		}
		if match.Status == models.BracketMatchCompleted {
			return ErrMatchAlreadyDecided
		}
		if !match.HasPlayer(input.WinnerID) {
			return fmt.Errorf("%w: player %d is not in this match", ErrInvalidWinner, input.WinnerID)
		}

		winnerID := input.WinnerID
		match.WinnerID = &winnerID
		match.Status = models.BracketMatchCompleted
		match.MatchID = input.MatchID
		if err := s.bracketRepo.UpdateMatch(ctx, exec, match); err != nil {
			return fmt.Errorf("failed to update bracket match: %w", err)
		}

		rounds, err := s.bracketRepo.ListRounds(ctx, exec, bracket.ID)
		if err != nil {
			return fmt.Errorf("failed to load rounds: %w", err)
		}

		if round.RoundNumber < len(rounds) {
			if err := s.advanceWinner(ctx, exec, match, round, rounds); err != nil {
				return err
			}
		}

		switch {
		case round.RoundNumber == len(rounds):
			bracket.Status = models.BracketStatusCompleted
		case bracket.Status == models.BracketStatusPublished:
			bracket.Status = models.BracketStatusInProgress
		}
		if err := s.bracketRepo.Update(ctx, exec, bracket); err != nil {
			return fmt.Errorf("failed to update bracket: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("bracket match decided",
		slog.Int("bracket_match_id", match.ID),
		slog.Int("winner_id", input.WinnerID),
	)
	return match, nil
}

// advanceWinner copies the winner (and their seed) into the successor slot of
// the next round.
func (s *bracketService) advanceWinner(ctx context.Context, exec repositories.SQLExecutor, match *models.BracketMatch, round *models.BracketRound, rounds []*models.BracketRound) error {
	var nextRound *models.BracketRound
	for _, r := range rounds {
		if r.RoundNumber == round.RoundNumber+1 {
			nextRound = r
			break
		}
	}
	if nextRound == nil {
		return fmt.Errorf("%w: round %d has no successor", repositories.ErrBracketRoundNotFound, round.RoundNumber)
	}

	nextMatchNumber, slot := brackets.SuccessorSlot(match.MatchNumber)
	successor, err := s.bracketRepo.GetMatchByRoundNumber(ctx, exec, nextRound.ID, nextMatchNumber)
	if err != nil {
		return fmt.Errorf("failed to load successor match: %w", err)
	}

	winnerSeed := match.Seed2
	if match.Player1ID != nil && *match.Player1ID == *match.WinnerID {
		winnerSeed = match.Seed1
	}

	if slot == 1 {
		successor.Player1ID = match.WinnerID
		successor.Seed1 = winnerSeed
	} else {
		successor.Player2ID = match.WinnerID
		successor.Seed2 = winnerSeed
	}
	if err := s.bracketRepo.UpdateMatch(ctx, exec, successor); err != nil {
		return fmt.Errorf("failed to update successor match: %w", err)
	}
	return nil
}

func (s *bracketService) GetFullBracket(ctx context.Context, bracketID int) (*models.Bracket, error) {
	bracket, err := s.bracketRepo.GetByID(ctx, nil, bracketID)
	if err != nil {
		if errors.Is(err, repositories.ErrBracketNotFound) {
			return nil, ErrBracketNotFound
		}
		return nil, fmt.Errorf("failed to load bracket: %w", err)
	}

	var (
		rounds  []*models.BracketRound
		matches []*models.BracketMatch
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rounds, err = s.bracketRepo.ListRounds(gCtx, nil, bracketID)
		return err
	})
	g.Go(func() error {
		var err error
		matches, err = s.bracketRepo.ListMatchesByBracket(gCtx, nil, bracketID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load bracket structure: %w", err)
	}

	matchesByRound := make(map[int][]models.BracketMatch, len(rounds))
	for _, m := range matches {
		matchesByRound[m.RoundID] = append(matchesByRound[m.RoundID], *m)
	}

	bracket.Rounds = make([]models.BracketRound, 0, len(rounds))
	for _, r := range rounds {
		round := *r
		round.Matches = matchesByRound[r.ID]
		bracket.Rounds = append(bracket.Rounds, round)
	}
	return bracket, nil
}
