package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/courtsidehq/league-engine/models"
)

var ErrRatingHistoryNotFound = errors.New("rating history entry not found")

// RatingHistoryRepository is append-only: entries are never updated or
// deleted, so the ledger stays auditable.
type RatingHistoryRepository interface {
	Create(ctx context.Context, exec SQLExecutor, entry *models.RatingHistory) error
	ListByPlayerRating(ctx context.Context, exec SQLExecutor, playerRatingID int) ([]*models.RatingHistory, error)
	ListBySeason(ctx context.Context, exec SQLExecutor, seasonID int) ([]*models.RatingHistory, error)
}

type postgresRatingHistoryRepository struct {
	db *sql.DB
}

func NewPostgresRatingHistoryRepository(db *sql.DB) RatingHistoryRepository {
	return &postgresRatingHistoryRepository{db: db}
}

func (r *postgresRatingHistoryRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresRatingHistoryRepository) Create(ctx context.Context, exec SQLExecutor, entry *models.RatingHistory) error {
	executor := r.getExecutor(exec)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO rating_history
			(player_rating_id, rating_before, rating_after, delta, rd_before, rd_after,
			 reason, match_id, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	return executor.QueryRowContext(ctx, query,
		entry.PlayerRatingID, entry.RatingBefore, entry.RatingAfter, entry.Delta,
		entry.RDBefore, entry.RDAfter, entry.Reason, entry.MatchID, entry.Notes,
		entry.CreatedAt,
	).Scan(&entry.ID)
}

func (r *postgresRatingHistoryRepository) list(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) ([]*models.RatingHistory, error) {
	executor := r.getExecutor(exec)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.RatingHistory
	for rows.Next() {
		var e models.RatingHistory
		if err := rows.Scan(
			&e.ID, &e.PlayerRatingID, &e.RatingBefore, &e.RatingAfter, &e.Delta,
			&e.RDBefore, &e.RDAfter, &e.Reason, &e.MatchID, &e.Notes, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (r *postgresRatingHistoryRepository) ListByPlayerRating(ctx context.Context, exec SQLExecutor, playerRatingID int) ([]*models.RatingHistory, error) {
	query := `
		SELECT id, player_rating_id, rating_before, rating_after, delta, rd_before, rd_after,
		       reason, match_id, notes, created_at
		FROM rating_history
		WHERE player_rating_id = $1
		ORDER BY created_at ASC, id ASC`
	return r.list(ctx, exec, query, playerRatingID)
}

func (r *postgresRatingHistoryRepository) ListBySeason(ctx context.Context, exec SQLExecutor, seasonID int) ([]*models.RatingHistory, error) {
	query := `
		SELECT h.id, h.player_rating_id, h.rating_before, h.rating_after, h.delta,
		       h.rd_before, h.rd_after, h.reason, h.match_id, h.notes, h.created_at
		FROM rating_history h
		JOIN player_ratings p ON p.id = h.player_rating_id
		WHERE p.season_id = $1
		ORDER BY h.created_at ASC, h.id ASC`
	return r.list(ctx, exec, query, seasonID)
}
