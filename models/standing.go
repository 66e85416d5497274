package models

import "time"

// DivisionStanding is a read model over played league matches, used for
// bracket seeding (best rank first) and season exports.
type DivisionStanding struct {
	ID          int       `json:"id"`
	SeasonID    int       `json:"season_id"`
	DivisionID  int       `json:"division_id"`
	UserID      int       `json:"user_id"`
	UserName    string    `json:"user_name"`
	Email       string    `json:"email"`
	Rank        int       `json:"rank"`
	Wins        int       `json:"wins"`
	Losses      int       `json:"losses"`
	TotalPoints int       `json:"total_points"`
	SetsWon     int       `json:"sets_won"`
	SetsLost    int       `json:"sets_lost"`
	UpdatedAt   time.Time `json:"updated_at"`
}
