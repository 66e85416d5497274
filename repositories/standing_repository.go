package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/courtsidehq/league-engine/models"
)

var ErrStandingNotFound = errors.New("division standing not found")

// StandingRepository reads the per-division standings view, used for bracket
// seeding (best rank first) and season exports.
type StandingRepository interface {
	ListByDivision(ctx context.Context, exec SQLExecutor, seasonID, divisionID int) ([]*models.DivisionStanding, error)
	ListBySeason(ctx context.Context, exec SQLExecutor, seasonID int) ([]*models.DivisionStanding, error)
}

type postgresStandingRepository struct {
	db *sql.DB
}

func NewPostgresStandingRepository(db *sql.DB) StandingRepository {
	return &postgresStandingRepository{db: db}
}

func (r *postgresStandingRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const standingColumns = `
	s.id, s.season_id, s.division_id, s.user_id, u.name, u.email, s.rank,
	s.wins, s.losses, s.total_points, s.sets_won, s.sets_lost, s.updated_at`

func (r *postgresStandingRepository) list(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) ([]*models.DivisionStanding, error) {
	executor := r.getExecutor(exec)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var standings []*models.DivisionStanding
	for rows.Next() {
		var s models.DivisionStanding
		if err := rows.Scan(
			&s.ID, &s.SeasonID, &s.DivisionID, &s.UserID, &s.UserName, &s.Email,
			&s.Rank, &s.Wins, &s.Losses, &s.TotalPoints, &s.SetsWon, &s.SetsLost,
			&s.UpdatedAt,
		); err != nil {
			return nil, err
		}
		standings = append(standings, &s)
	}
	return standings, rows.Err()
}

func (r *postgresStandingRepository) ListByDivision(ctx context.Context, exec SQLExecutor, seasonID, divisionID int) ([]*models.DivisionStanding, error) {
	query := `SELECT` + standingColumns + `
		FROM division_standings s
		JOIN users u ON u.id = s.user_id
		WHERE s.season_id = $1 AND s.division_id = $2
		ORDER BY s.rank ASC`
	return r.list(ctx, exec, query, seasonID, divisionID)
}

func (r *postgresStandingRepository) ListBySeason(ctx context.Context, exec SQLExecutor, seasonID int) ([]*models.DivisionStanding, error) {
	query := `SELECT` + standingColumns + `
		FROM division_standings s
		JOIN users u ON u.id = s.user_id
		WHERE s.season_id = $1
		ORDER BY s.division_id ASC, s.rank ASC`
	return r.list(ctx, exec, query, seasonID)
}
