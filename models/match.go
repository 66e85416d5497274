package models

import "time"

type MatchStatus string

const (
	MatchStatusScheduled MatchStatus = "SCHEDULED"
	MatchStatusCompleted MatchStatus = "COMPLETED"
	MatchStatusCancelled MatchStatus = "CANCELLED"
	MatchStatusVoid      MatchStatus = "VOID"
)

// CompletedMatch is the read model exposed by the match source. Side1 and
// Side2 hold one player ID for singles, two for doubles. CompletedAt ordering
// is a correctness requirement for replay.
type CompletedMatch struct {
	ID          int         `json:"id"`
	SeasonID    int         `json:"season_id"`
	DivisionID  *int        `json:"division_id,omitempty"`
	GameType    GameType    `json:"game_type"`
	Side1       []int       `json:"side1"`
	Side2       []int       `json:"side2"`
	WinnerSide  int         `json:"winner_side"` // 1 or 2, 0 when unknown
	IsWalkover  bool        `json:"is_walkover"`
	IsOneSet    bool        `json:"is_one_set"`
	Score       *string     `json:"score,omitempty"`
	Status      MatchStatus `json:"status"`
	CompletedAt time.Time   `json:"completed_at"`
}

// Players returns every player ID that took part in the match.
func (m *CompletedMatch) Players() []int {
	out := make([]int, 0, len(m.Side1)+len(m.Side2))
	out = append(out, m.Side1...)
	out = append(out, m.Side2...)
	return out
}
