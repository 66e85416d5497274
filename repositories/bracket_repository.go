package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/courtsidehq/league-engine/models"
)

var (
	ErrBracketNotFound      = errors.New("bracket not found")
	ErrBracketRoundNotFound = errors.New("bracket round not found")
	ErrBracketMatchNotFound = errors.New("bracket match not found")
)

type BracketRepository interface {
	Create(ctx context.Context, exec SQLExecutor, bracket *models.Bracket) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Bracket, error)
	// GetByIDForUpdate row-locks the bracket so seeding/publishing/result
	// recording serialize; call inside a transaction.
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Bracket, error)
	GetBySeasonDivision(ctx context.Context, exec SQLExecutor, seasonID, divisionID int) (*models.Bracket, error)
	Update(ctx context.Context, exec SQLExecutor, bracket *models.Bracket) error

	CreateRound(ctx context.Context, exec SQLExecutor, round *models.BracketRound) error
	GetRoundByID(ctx context.Context, exec SQLExecutor, id int) (*models.BracketRound, error)
	ListRounds(ctx context.Context, exec SQLExecutor, bracketID int) ([]*models.BracketRound, error)

	CreateMatch(ctx context.Context, exec SQLExecutor, match *models.BracketMatch) error
	GetMatchByID(ctx context.Context, exec SQLExecutor, id int) (*models.BracketMatch, error)
	GetMatchByRoundNumber(ctx context.Context, exec SQLExecutor, roundID, matchNumber int) (*models.BracketMatch, error)
	UpdateMatch(ctx context.Context, exec SQLExecutor, match *models.BracketMatch) error
	ListMatchesByRound(ctx context.Context, exec SQLExecutor, roundID int) ([]*models.BracketMatch, error)
	ListMatchesByBracket(ctx context.Context, exec SQLExecutor, bracketID int) ([]*models.BracketMatch, error)
	// DeleteMatchesByBracket clears every match of the bracket, used when
	// reseeding before publication so no orphaned rows survive.
	DeleteMatchesByBracket(ctx context.Context, exec SQLExecutor, bracketID int) error
	DeleteRoundsByBracket(ctx context.Context, exec SQLExecutor, bracketID int) error
}

type postgresBracketRepository struct {
	db *sql.DB
}

func NewPostgresBracketRepository(db *sql.DB) BracketRepository {
	return &postgresBracketRepository{db: db}
}

func (r *postgresBracketRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const bracketColumns = `
	id, season_id, division_id, bracket_type, seeding_source, num_players,
	status, is_locked, published_at, published_by, created_at, updated_at`

func (r *postgresBracketRepository) Create(ctx context.Context, exec SQLExecutor, bracket *models.Bracket) error {
	executor := r.getExecutor(exec)
	now := time.Now()
	bracket.CreatedAt = now
	bracket.UpdatedAt = now
	query := `
		INSERT INTO brackets
			(season_id, division_id, bracket_type, seeding_source, num_players,
			 status, is_locked, published_at, published_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	return executor.QueryRowContext(ctx, query,
		bracket.SeasonID, bracket.DivisionID, bracket.BracketType, bracket.SeedingSource,
		bracket.NumPlayers, bracket.Status, bracket.IsLocked, bracket.PublishedAt,
		bracket.PublishedBy, bracket.CreatedAt, bracket.UpdatedAt,
	).Scan(&bracket.ID)
}

func (r *postgresBracketRepository) scanBracket(rowScanner interface{ Scan(...interface{}) error }) (*models.Bracket, error) {
	var b models.Bracket
	err := rowScanner.Scan(
		&b.ID, &b.SeasonID, &b.DivisionID, &b.BracketType, &b.SeedingSource,
		&b.NumPlayers, &b.Status, &b.IsLocked, &b.PublishedAt, &b.PublishedBy,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBracketNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *postgresBracketRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Bracket, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + bracketColumns + ` FROM brackets WHERE id = $1`
	return r.scanBracket(executor.QueryRowContext(ctx, query, id))
}

func (r *postgresBracketRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Bracket, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + bracketColumns + ` FROM brackets WHERE id = $1 FOR UPDATE`
	return r.scanBracket(executor.QueryRowContext(ctx, query, id))
}

func (r *postgresBracketRepository) GetBySeasonDivision(ctx context.Context, exec SQLExecutor, seasonID, divisionID int) (*models.Bracket, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + bracketColumns + ` FROM brackets WHERE season_id = $1 AND division_id = $2`
	return r.scanBracket(executor.QueryRowContext(ctx, query, seasonID, divisionID))
}

func (r *postgresBracketRepository) Update(ctx context.Context, exec SQLExecutor, bracket *models.Bracket) error {
	executor := r.getExecutor(exec)
	bracket.UpdatedAt = time.Now()
	query := `
		UPDATE brackets SET
			seeding_source = $1, num_players = $2, status = $3, is_locked = $4,
			published_at = $5, published_by = $6, updated_at = $7
		WHERE id = $8`
	result, err := executor.ExecContext(ctx, query,
		bracket.SeedingSource, bracket.NumPlayers, bracket.Status, bracket.IsLocked,
		bracket.PublishedAt, bracket.PublishedBy, bracket.UpdatedAt, bracket.ID,
	)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrBracketNotFound)
}

func (r *postgresBracketRepository) CreateRound(ctx context.Context, exec SQLExecutor, round *models.BracketRound) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO bracket_rounds (bracket_id, round_number, name)
		VALUES ($1, $2, $3)
		RETURNING id`
	return executor.QueryRowContext(ctx, query,
		round.BracketID, round.RoundNumber, round.Name,
	).Scan(&round.ID)
}

func (r *postgresBracketRepository) GetRoundByID(ctx context.Context, exec SQLExecutor, id int) (*models.BracketRound, error) {
	executor := r.getExecutor(exec)
	var round models.BracketRound
	err := executor.QueryRowContext(ctx,
		`SELECT id, bracket_id, round_number, name FROM bracket_rounds WHERE id = $1`, id,
	).Scan(&round.ID, &round.BracketID, &round.RoundNumber, &round.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBracketRoundNotFound
		}
		return nil, err
	}
	return &round, nil
}

func (r *postgresBracketRepository) ListRounds(ctx context.Context, exec SQLExecutor, bracketID int) ([]*models.BracketRound, error) {
	executor := r.getExecutor(exec)
	rows, err := executor.QueryContext(ctx,
		`SELECT id, bracket_id, round_number, name
		 FROM bracket_rounds WHERE bracket_id = $1 ORDER BY round_number ASC`,
		bracketID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rounds []*models.BracketRound
	for rows.Next() {
		var round models.BracketRound
		if err := rows.Scan(&round.ID, &round.BracketID, &round.RoundNumber, &round.Name); err != nil {
			return nil, err
		}
		rounds = append(rounds, &round)
	}
	return rounds, rows.Err()
}

const bracketMatchColumns = `
	id, round_id, match_number, seed1, seed2, player1_id, player2_id,
	status, winner_id, match_id, updated_at`

func (r *postgresBracketRepository) CreateMatch(ctx context.Context, exec SQLExecutor, match *models.BracketMatch) error {
	executor := r.getExecutor(exec)
	match.UpdatedAt = time.Now()
	query := `
		INSERT INTO bracket_matches
			(round_id, match_number, seed1, seed2, player1_id, player2_id,
			 status, winner_id, match_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	return executor.QueryRowContext(ctx, query,
		match.RoundID, match.MatchNumber, match.Seed1, match.Seed2,
		match.Player1ID, match.Player2ID, match.Status, match.WinnerID,
		match.MatchID, match.UpdatedAt,
	).Scan(&match.ID)
}

func (r *postgresBracketRepository) scanBracketMatch(rowScanner interface{ Scan(...interface{}) error }) (*models.BracketMatch, error) {
	var m models.BracketMatch
	err := rowScanner.Scan(
		&m.ID, &m.RoundID, &m.MatchNumber, &m.Seed1, &m.Seed2,
		&m.Player1ID, &m.Player2ID, &m.Status, &m.WinnerID, &m.MatchID, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBracketMatchNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *postgresBracketRepository) GetMatchByID(ctx context.Context, exec SQLExecutor, id int) (*models.BracketMatch, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + bracketMatchColumns + ` FROM bracket_matches WHERE id = $1`
	return r.scanBracketMatch(executor.QueryRowContext(ctx, query, id))
}

func (r *postgresBracketRepository) GetMatchByRoundNumber(ctx context.Context, exec SQLExecutor, roundID, matchNumber int) (*models.BracketMatch, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + bracketMatchColumns + `
		FROM bracket_matches WHERE round_id = $1 AND match_number = $2`
	return r.scanBracketMatch(executor.QueryRowContext(ctx, query, roundID, matchNumber))
}

func (r *postgresBracketRepository) UpdateMatch(ctx context.Context, exec SQLExecutor, match *models.BracketMatch) error {
	executor := r.getExecutor(exec)
	match.UpdatedAt = time.Now()
	query := `
		UPDATE bracket_matches SET
			seed1 = $1, seed2 = $2, player1_id = $3, player2_id = $4,
			status = $5, winner_id = $6, match_id = $7, updated_at = $8
		WHERE id = $9`
	result, err := executor.ExecContext(ctx, query,
		match.Seed1, match.Seed2, match.Player1ID, match.Player2ID,
		match.Status, match.WinnerID, match.MatchID, match.UpdatedAt, match.ID,
	)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrBracketMatchNotFound)
}

func (r *postgresBracketRepository) listMatches(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) ([]*models.BracketMatch, error) {
	executor := r.getExecutor(exec)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []*models.BracketMatch
	for rows.Next() {
		match, err := r.scanBracketMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, match)
	}
	return matches, rows.Err()
}

func (r *postgresBracketRepository) ListMatchesByRound(ctx context.Context, exec SQLExecutor, roundID int) ([]*models.BracketMatch, error) {
	query := `SELECT` + bracketMatchColumns + `
		FROM bracket_matches WHERE round_id = $1 ORDER BY match_number ASC`
	return r.listMatches(ctx, exec, query, roundID)
}

func (r *postgresBracketRepository) ListMatchesByBracket(ctx context.Context, exec SQLExecutor, bracketID int) ([]*models.BracketMatch, error) {
	query := `
		SELECT m.id, m.round_id, m.match_number, m.seed1, m.seed2, m.player1_id,
		       m.player2_id, m.status, m.winner_id, m.match_id, m.updated_at
		FROM bracket_matches m
		JOIN bracket_rounds r ON r.id = m.round_id
		WHERE r.bracket_id = $1
		ORDER BY r.round_number ASC, m.match_number ASC`
	return r.listMatches(ctx, exec, query, bracketID)
}

func (r *postgresBracketRepository) DeleteMatchesByBracket(ctx context.Context, exec SQLExecutor, bracketID int) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx,
		`DELETE FROM bracket_matches
		 WHERE round_id IN (SELECT id FROM bracket_rounds WHERE bracket_id = $1)`,
		bracketID,
	)
	return err
}

func (r *postgresBracketRepository) DeleteRoundsByBracket(ctx context.Context, exec SQLExecutor, bracketID int) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx,
		`DELETE FROM bracket_rounds WHERE bracket_id = $1`, bracketID)
	return err
}
