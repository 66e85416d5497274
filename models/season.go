package models

import "time"

// SeasonLock gates all rating and parameter mutations for a season. Locking
// requires the season to have no pending matches.
type SeasonLock struct {
	SeasonID int        `json:"season_id"`
	IsLocked bool       `json:"is_locked"`
	LockedAt *time.Time `json:"locked_at,omitempty"`
	LockedBy *int       `json:"locked_by,omitempty"`
	Notes    *string    `json:"notes,omitempty"`
}
