package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/courtsidehq/league-engine/models"
)

var ErrPlayerRatingNotFound = errors.New("player rating not found")

type PlayerRatingRepository interface {
	Create(ctx context.Context, exec SQLExecutor, rating *models.PlayerRating) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.PlayerRating, error)
	GetByPlayer(ctx context.Context, exec SQLExecutor, userID, seasonID int, gameType models.GameType) (*models.PlayerRating, error)
	// GetByPlayerForUpdate takes a row lock; call inside a transaction.
	GetByPlayerForUpdate(ctx context.Context, exec SQLExecutor, userID, seasonID int, gameType models.GameType) (*models.PlayerRating, error)
	ListBySeason(ctx context.Context, exec SQLExecutor, seasonID int) ([]*models.PlayerRating, error)
	ListByDivision(ctx context.Context, exec SQLExecutor, seasonID, divisionID int) ([]*models.PlayerRating, error)
	// ListBySeasonWithUsers joins user identity onto each rating row, for
	// season exports.
	ListBySeasonWithUsers(ctx context.Context, exec SQLExecutor, seasonID int) ([]*models.PlayerRatingWithUser, error)
	Update(ctx context.Context, exec SQLExecutor, rating *models.PlayerRating) error
}

type postgresPlayerRatingRepository struct {
	db *sql.DB
}

func NewPostgresPlayerRatingRepository(db *sql.DB) PlayerRatingRepository {
	return &postgresPlayerRatingRepository{db: db}
}

func (r *postgresPlayerRatingRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const playerRatingColumns = `
	id, user_id, season_id, division_id, game_type, current_rating, rating_deviation,
	matches_played, is_provisional, peak_rating, peak_rating_date, lowest_rating,
	created_at, updated_at`

func (r *postgresPlayerRatingRepository) Create(ctx context.Context, exec SQLExecutor, rating *models.PlayerRating) error {
	executor := r.getExecutor(exec)
	now := time.Now()
	if rating.CreatedAt.IsZero() {
		rating.CreatedAt = now
	}
	rating.UpdatedAt = now

	// ON CONFLICT keeps creation idempotent: one row per (user, season, game type).
	query := `
		INSERT INTO player_ratings
			(user_id, season_id, division_id, game_type, current_rating, rating_deviation,
			 matches_played, is_provisional, peak_rating, peak_rating_date, lowest_rating,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (user_id, season_id, game_type) DO NOTHING
		RETURNING id`
	err := executor.QueryRowContext(ctx, query,
		rating.UserID, rating.SeasonID, rating.DivisionID, rating.GameType,
		rating.CurrentRating, rating.RatingDeviation, rating.MatchesPlayed,
		rating.IsProvisional, rating.PeakRating, rating.PeakRatingDate,
		rating.LowestRating, rating.CreatedAt, rating.UpdatedAt,
	).Scan(&rating.ID)
	if errors.Is(err, sql.ErrNoRows) {
		// Row already existed; load it so the caller sees the stored state.
		existing, getErr := r.GetByPlayer(ctx, exec, rating.UserID, rating.SeasonID, rating.GameType)
		if getErr != nil {
			return getErr
		}
		*rating = *existing
		return nil
	}
	return err
}

func (r *postgresPlayerRatingRepository) scanRating(rowScanner interface{ Scan(...interface{}) error }) (*models.PlayerRating, error) {
	var p models.PlayerRating
	err := rowScanner.Scan(
		&p.ID, &p.UserID, &p.SeasonID, &p.DivisionID, &p.GameType,
		&p.CurrentRating, &p.RatingDeviation, &p.MatchesPlayed, &p.IsProvisional,
		&p.PeakRating, &p.PeakRatingDate, &p.LowestRating, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerRatingNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *postgresPlayerRatingRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.PlayerRating, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + playerRatingColumns + ` FROM player_ratings WHERE id = $1`
	return r.scanRating(executor.QueryRowContext(ctx, query, id))
}

func (r *postgresPlayerRatingRepository) GetByPlayer(ctx context.Context, exec SQLExecutor, userID, seasonID int, gameType models.GameType) (*models.PlayerRating, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + playerRatingColumns + `
		FROM player_ratings WHERE user_id = $1 AND season_id = $2 AND game_type = $3`
	return r.scanRating(executor.QueryRowContext(ctx, query, userID, seasonID, gameType))
}

func (r *postgresPlayerRatingRepository) GetByPlayerForUpdate(ctx context.Context, exec SQLExecutor, userID, seasonID int, gameType models.GameType) (*models.PlayerRating, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + playerRatingColumns + `
		FROM player_ratings WHERE user_id = $1 AND season_id = $2 AND game_type = $3
		FOR UPDATE`
	return r.scanRating(executor.QueryRowContext(ctx, query, userID, seasonID, gameType))
}

func (r *postgresPlayerRatingRepository) listByQuery(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) ([]*models.PlayerRating, error) {
	executor := r.getExecutor(exec)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ratings []*models.PlayerRating
	for rows.Next() {
		rating, err := r.scanRating(rows)
		if err != nil {
			return nil, err
		}
		ratings = append(ratings, rating)
	}
	return ratings, rows.Err()
}

func (r *postgresPlayerRatingRepository) ListBySeason(ctx context.Context, exec SQLExecutor, seasonID int) ([]*models.PlayerRating, error) {
	query := `SELECT` + playerRatingColumns + `
		FROM player_ratings WHERE season_id = $1
		ORDER BY current_rating DESC, id ASC`
	return r.listByQuery(ctx, exec, query, seasonID)
}

func (r *postgresPlayerRatingRepository) ListByDivision(ctx context.Context, exec SQLExecutor, seasonID, divisionID int) ([]*models.PlayerRating, error) {
	query := `SELECT` + playerRatingColumns + `
		FROM player_ratings WHERE season_id = $1 AND division_id = $2
		ORDER BY current_rating DESC, id ASC`
	return r.listByQuery(ctx, exec, query, seasonID, divisionID)
}

func (r *postgresPlayerRatingRepository) ListBySeasonWithUsers(ctx context.Context, exec SQLExecutor, seasonID int) ([]*models.PlayerRatingWithUser, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT p.id, p.user_id, p.season_id, p.division_id, p.game_type,
		       p.current_rating, p.rating_deviation, p.matches_played, p.is_provisional,
		       p.peak_rating, p.peak_rating_date, p.lowest_rating, p.created_at,
		       p.updated_at, u.name, u.email
		FROM player_ratings p
		JOIN users u ON u.id = p.user_id
		WHERE p.season_id = $1
		ORDER BY p.division_id ASC NULLS LAST, p.game_type ASC, p.current_rating DESC, p.id ASC`
	rows, err := executor.QueryContext(ctx, query, seasonID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ratings []*models.PlayerRatingWithUser
	for rows.Next() {
		var p models.PlayerRatingWithUser
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.SeasonID, &p.DivisionID, &p.GameType,
			&p.CurrentRating, &p.RatingDeviation, &p.MatchesPlayed, &p.IsProvisional,
			&p.PeakRating, &p.PeakRatingDate, &p.LowestRating, &p.CreatedAt,
			&p.UpdatedAt, &p.UserName, &p.Email,
		); err != nil {
			return nil, err
		}
		ratings = append(ratings, &p)
	}
	return ratings, rows.Err()
}

func (r *postgresPlayerRatingRepository) Update(ctx context.Context, exec SQLExecutor, rating *models.PlayerRating) error {
	executor := r.getExecutor(exec)
	rating.UpdatedAt = time.Now()
	query := `
		UPDATE player_ratings SET
			division_id = $1, current_rating = $2, rating_deviation = $3,
			matches_played = $4, is_provisional = $5, peak_rating = $6,
			peak_rating_date = $7, lowest_rating = $8, updated_at = $9
		WHERE id = $10`
	result, err := executor.ExecContext(ctx, query,
		rating.DivisionID, rating.CurrentRating, rating.RatingDeviation,
		rating.MatchesPlayed, rating.IsProvisional, rating.PeakRating,
		rating.PeakRatingDate, rating.LowestRating, rating.UpdatedAt, rating.ID,
	)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPlayerRatingNotFound)
}
