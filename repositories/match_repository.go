package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/courtsidehq/league-engine/models"
)

var ErrMatchNotFound = errors.New("match not found")

// MatchRepository is the read-only match source. Every listing of completed
// matches is ordered by completed_at ascending: replaying out of order
// produces different ratings, so the ordering is a correctness requirement,
// not a presentation choice.
type MatchRepository interface {
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.CompletedMatch, error)
	ListCompletedBySeason(ctx context.Context, exec SQLExecutor, seasonID int) ([]*models.CompletedMatch, error)
	ListCompletedByDivision(ctx context.Context, exec SQLExecutor, seasonID, divisionID int) ([]*models.CompletedMatch, error)
	ListCompletedByPlayer(ctx context.Context, exec SQLExecutor, seasonID, userID int) ([]*models.CompletedMatch, error)
	CountPendingBySeason(ctx context.Context, exec SQLExecutor, seasonID int) (int, error)
	CountCompletedBySeason(ctx context.Context, exec SQLExecutor, seasonID int) (int, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `
	id, season_id, division_id, game_type, side1_player1, side1_player2,
	side2_player1, side2_player2, winner_side, is_walkover, is_one_set,
	score, status, completed_at`

func (r *postgresMatchRepository) scanMatch(rowScanner interface{ Scan(...interface{}) error }) (*models.CompletedMatch, error) {
	var (
		m                models.CompletedMatch
		side1p1, side2p1 int
		side1p2, side2p2 *int
		winnerSide       sql.NullInt64
	)
	err := rowScanner.Scan(
		&m.ID, &m.SeasonID, &m.DivisionID, &m.GameType,
		&side1p1, &side1p2, &side2p1, &side2p2,
		&winnerSide, &m.IsWalkover, &m.IsOneSet, &m.Score, &m.Status, &m.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}

	m.Side1 = []int{side1p1}
	if side1p2 != nil {
		m.Side1 = append(m.Side1, *side1p2)
	}
	m.Side2 = []int{side2p1}
	if side2p2 != nil {
		m.Side2 = append(m.Side2, *side2p2)
	}
	if winnerSide.Valid {
		m.WinnerSide = int(winnerSide.Int64)
	}
	return &m, nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.CompletedMatch, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + matchColumns + ` FROM matches WHERE id = $1`
	return r.scanMatch(executor.QueryRowContext(ctx, query, id))
}

func (r *postgresMatchRepository) listCompleted(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) ([]*models.CompletedMatch, error) {
	executor := r.getExecutor(exec)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []*models.CompletedMatch
	for rows.Next() {
		match, err := r.scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, match)
	}
	return matches, rows.Err()
}

func (r *postgresMatchRepository) ListCompletedBySeason(ctx context.Context, exec SQLExecutor, seasonID int) ([]*models.CompletedMatch, error) {
	query := `SELECT` + matchColumns + `
		FROM matches
		WHERE season_id = $1 AND status = 'COMPLETED'
		ORDER BY completed_at ASC, id ASC`
	return r.listCompleted(ctx, exec, query, seasonID)
}

func (r *postgresMatchRepository) ListCompletedByDivision(ctx context.Context, exec SQLExecutor, seasonID, divisionID int) ([]*models.CompletedMatch, error) {
	query := `SELECT` + matchColumns + `
		FROM matches
		WHERE season_id = $1 AND division_id = $2 AND status = 'COMPLETED'
		ORDER BY completed_at ASC, id ASC`
	return r.listCompleted(ctx, exec, query, seasonID, divisionID)
}

func (r *postgresMatchRepository) ListCompletedByPlayer(ctx context.Context, exec SQLExecutor, seasonID, userID int) ([]*models.CompletedMatch, error) {
	query := `SELECT` + matchColumns + `
		FROM matches
		WHERE season_id = $1 AND status = 'COMPLETED'
		  AND $2 IN (side1_player1, side1_player2, side2_player1, side2_player2)
		ORDER BY completed_at ASC, id ASC`
	return r.listCompleted(ctx, exec, query, seasonID, userID)
}

func (r *postgresMatchRepository) CountPendingBySeason(ctx context.Context, exec SQLExecutor, seasonID int) (int, error) {
	executor := r.getExecutor(exec)
	var count int
	err := executor.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM matches
		 WHERE season_id = $1 AND status NOT IN ('COMPLETED', 'CANCELLED', 'VOID')`,
		seasonID,
	).Scan(&count)
	return count, err
}

func (r *postgresMatchRepository) CountCompletedBySeason(ctx context.Context, exec SQLExecutor, seasonID int) (int, error) {
	executor := r.getExecutor(exec)
	var count int
	err := executor.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM matches WHERE season_id = $1 AND status = 'COMPLETED'`,
		seasonID,
	).Scan(&count)
	return count, err
}
