package models

import "time"

type BracketStatus string

const (
	BracketStatusDraft      BracketStatus = "DRAFT"
	BracketStatusSeeded     BracketStatus = "SEEDED"
	BracketStatusPublished  BracketStatus = "PUBLISHED"
	BracketStatusInProgress BracketStatus = "IN_PROGRESS"
	BracketStatusCompleted  BracketStatus = "COMPLETED"
)

type SeedingSource string

const (
	SeedingSourceStandings SeedingSource = "STANDINGS"
	SeedingSourceRating    SeedingSource = "RATING"
	SeedingSourceManual    SeedingSource = "MANUAL"
)

func (s SeedingSource) Valid() bool {
	return s == SeedingSourceStandings || s == SeedingSourceRating || s == SeedingSourceManual
}

type BracketType string

const BracketTypeSingleElimination BracketType = "SINGLE_ELIMINATION"

// Bracket is the per (season, division) tournament draw. At most one exists
// for a given pair.
type Bracket struct {
	ID            int            `json:"id"`
	SeasonID      int            `json:"season_id"`
	DivisionID    int            `json:"division_id"`
	BracketType   BracketType    `json:"bracket_type"`
	SeedingSource *SeedingSource `json:"seeding_source,omitempty"`
	NumPlayers    int            `json:"num_players"`
	Status        BracketStatus  `json:"status"`
	IsLocked      bool           `json:"is_locked"`
	PublishedAt   *time.Time     `json:"published_at,omitempty"`
	PublishedBy   *int           `json:"published_by,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`

	// Populated by the service for full reads, not stored on the bracket row.
	Rounds []BracketRound `json:"rounds,omitempty"`
}

// BracketRound is one of the ordered rounds 1..N. Name derives from the
// distance to the final ("Quarter-Finals", "Finals", ...).
type BracketRound struct {
	ID          int    `json:"id"`
	BracketID   int    `json:"bracket_id"`
	RoundNumber int    `json:"round_number"`
	Name        string `json:"name"`

	Matches []BracketMatch `json:"matches,omitempty"`
}

type BracketMatchStatus string

const (
	BracketMatchPending   BracketMatchStatus = "PENDING"
	BracketMatchBye       BracketMatchStatus = "BYE"
	BracketMatchCompleted BracketMatchStatus = "COMPLETED"
)

// BracketMatch belongs to exactly one round. A completed match's winner fills
// one slot of match ceil(MatchNumber/2) in the next round, slot 1 for odd
// MatchNumber and slot 2 for even.
type BracketMatch struct {
	ID          int                `json:"id"`
	RoundID     int                `json:"round_id"`
	MatchNumber int                `json:"match_number"`
	Seed1       *int               `json:"seed1,omitempty"`
	Seed2       *int               `json:"seed2,omitempty"`
	Player1ID   *int               `json:"player1_id,omitempty"`
	Player2ID   *int               `json:"player2_id,omitempty"`
	Status      BracketMatchStatus `json:"status"`
	WinnerID    *int               `json:"winner_id,omitempty"`
	MatchID     *int               `json:"match_id,omitempty"` // optional link to the played match record
	UpdatedAt   time.Time          `json:"updated_at"`
}

// HasPlayer reports whether the given player occupies one of the two slots.
func (m *BracketMatch) HasPlayer(playerID int) bool {
	return (m.Player1ID != nil && *m.Player1ID == playerID) ||
		(m.Player2ID != nil && *m.Player2ID == playerID)
}
