package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/courtsidehq/league-engine/models"
)

var ErrRatingParametersNotFound = errors.New("rating parameters not found")

// RatingParametersRepository stores the versioned parameter sets. Versions are
// append-only; superseding a version deactivates it but never rewrites it.
type RatingParametersRepository interface {
	Create(ctx context.Context, exec SQLExecutor, params *models.RatingParameters) error
	GetActiveBySeason(ctx context.Context, exec SQLExecutor, seasonID int) (*models.RatingParameters, error)
	// GetBySeasonAt returns the version that was active at the given instant,
	// for point-in-time replay against historical parameters.
	GetBySeasonAt(ctx context.Context, exec SQLExecutor, seasonID int, at time.Time) (*models.RatingParameters, error)
	ListBySeason(ctx context.Context, exec SQLExecutor, seasonID int) ([]*models.RatingParameters, error)
	DeactivateActive(ctx context.Context, exec SQLExecutor, seasonID int) error
}

type postgresRatingParametersRepository struct {
	db *sql.DB
}

func NewPostgresRatingParametersRepository(db *sql.DB) RatingParametersRepository {
	return &postgresRatingParametersRepository{db: db}
}

func (r *postgresRatingParametersRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const ratingParametersColumns = `
	id, season_id, version, is_active, initial_rating, initial_rd, k_factor_new,
	k_factor_established, k_factor_threshold, singles_weight, doubles_weight,
	one_set_match_weight, walkover_win_impact, walkover_loss_impact,
	provisional_threshold, rd_floor, created_at`

func (r *postgresRatingParametersRepository) Create(ctx context.Context, exec SQLExecutor, params *models.RatingParameters) error {
	executor := r.getExecutor(exec)
	if params.CreatedAt.IsZero() {
		params.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO rating_parameters
			(season_id, version, is_active, initial_rating, initial_rd, k_factor_new,
			 k_factor_established, k_factor_threshold, singles_weight, doubles_weight,
			 one_set_match_weight, walkover_win_impact, walkover_loss_impact,
			 provisional_threshold, rd_floor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id`
	return executor.QueryRowContext(ctx, query,
		params.SeasonID, params.Version, params.IsActive, params.InitialRating,
		params.InitialRD, params.KFactorNew, params.KFactorEstablished,
		params.KFactorThreshold, params.SinglesWeight, params.DoublesWeight,
		params.OneSetMatchWeight, params.WalkoverWinImpact, params.WalkoverLossImpact,
		params.ProvisionalThreshold, params.RDFloor, params.CreatedAt,
	).Scan(&params.ID)
}

func (r *postgresRatingParametersRepository) scanParams(rowScanner interface{ Scan(...interface{}) error }) (*models.RatingParameters, error) {
	var p models.RatingParameters
	err := rowScanner.Scan(
		&p.ID, &p.SeasonID, &p.Version, &p.IsActive, &p.InitialRating, &p.InitialRD,
		&p.KFactorNew, &p.KFactorEstablished, &p.KFactorThreshold, &p.SinglesWeight,
		&p.DoublesWeight, &p.OneSetMatchWeight, &p.WalkoverWinImpact,
		&p.WalkoverLossImpact, &p.ProvisionalThreshold, &p.RDFloor, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRatingParametersNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *postgresRatingParametersRepository) GetActiveBySeason(ctx context.Context, exec SQLExecutor, seasonID int) (*models.RatingParameters, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + ratingParametersColumns + `
		FROM rating_parameters WHERE season_id = $1 AND is_active = TRUE`
	return r.scanParams(executor.QueryRowContext(ctx, query, seasonID))
}

func (r *postgresRatingParametersRepository) GetBySeasonAt(ctx context.Context, exec SQLExecutor, seasonID int, at time.Time) (*models.RatingParameters, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + ratingParametersColumns + `
		FROM rating_parameters
		WHERE season_id = $1 AND created_at <= $2
		ORDER BY version DESC
		LIMIT 1`
	return r.scanParams(executor.QueryRowContext(ctx, query, seasonID, at))
}

func (r *postgresRatingParametersRepository) ListBySeason(ctx context.Context, exec SQLExecutor, seasonID int) ([]*models.RatingParameters, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + ratingParametersColumns + `
		FROM rating_parameters WHERE season_id = $1 ORDER BY version ASC`
	rows, err := executor.QueryContext(ctx, query, seasonID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []*models.RatingParameters
	for rows.Next() {
		params, err := r.scanParams(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, params)
	}
	return versions, rows.Err()
}

func (r *postgresRatingParametersRepository) DeactivateActive(ctx context.Context, exec SQLExecutor, seasonID int) error {
	executor := r.getExecutor(exec)
	// No affected-rows check: a season without an active version is fine here.
	_, err := executor.ExecContext(ctx,
		`UPDATE rating_parameters SET is_active = FALSE WHERE season_id = $1 AND is_active = TRUE`,
		seasonID,
	)
	return err
}
