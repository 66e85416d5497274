package models

import "time"

type GameType string

const (
	GameTypeSingles GameType = "SINGLES"
	GameTypeDoubles GameType = "DOUBLES"
)

func (g GameType) Valid() bool {
	return g == GameTypeSingles || g == GameTypeDoubles
}

// PlayerRating is the single rating row per (user, season, game type).
type PlayerRating struct {
	ID              int        `json:"id"`
	UserID          int        `json:"user_id"`
	SeasonID        int        `json:"season_id"`
	DivisionID      *int       `json:"division_id,omitempty"`
	GameType        GameType   `json:"game_type"`
	CurrentRating   float64    `json:"current_rating"`
	RatingDeviation float64    `json:"rating_deviation"`
	MatchesPlayed   int        `json:"matches_played"`
	IsProvisional   bool       `json:"is_provisional"`
	PeakRating      float64    `json:"peak_rating"`
	PeakRatingDate  *time.Time `json:"peak_rating_date,omitempty"`
	LowestRating    float64    `json:"lowest_rating"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// PlayerRatingWithUser joins user identity onto a rating row for exports.
type PlayerRatingWithUser struct {
	PlayerRating
	UserName string `json:"user_name"`
	Email    string `json:"email"`
}

type RatingHistoryReason string

const (
	ReasonInitialPlacement RatingHistoryReason = "INITIAL_PLACEMENT"
	ReasonMatchWin         RatingHistoryReason = "MATCH_WIN"
	ReasonMatchLoss        RatingHistoryReason = "MATCH_LOSS"
	ReasonManualAdjustment RatingHistoryReason = "MANUAL_ADJUSTMENT"
	ReasonRecalculation    RatingHistoryReason = "RECALCULATION"
	ReasonAdminReset       RatingHistoryReason = "ADMIN_RESET"
)

func (r RatingHistoryReason) Valid() bool {
	switch r {
	case ReasonInitialPlacement, ReasonMatchWin, ReasonMatchLoss,
		ReasonManualAdjustment, ReasonRecalculation, ReasonAdminReset:
		return true
	}
	return false
}

// RatingHistory is an append-only ledger entry. RatingAfter-RatingBefore must
// equal Delta exactly; the chain for a rating sums to CurrentRating-InitialRating.
type RatingHistory struct {
	ID             int                 `json:"id"`
	PlayerRatingID int                 `json:"player_rating_id"`
	RatingBefore   float64             `json:"rating_before"`
	RatingAfter    float64             `json:"rating_after"`
	Delta          float64             `json:"delta"`
	RDBefore       float64             `json:"rd_before"`
	RDAfter        float64             `json:"rd_after"`
	Reason         RatingHistoryReason `json:"reason"`
	MatchID        *int                `json:"match_id,omitempty"`
	Notes          *string             `json:"notes,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
}
