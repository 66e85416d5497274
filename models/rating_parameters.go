package models

import "time"

// RatingParameters is a season-scoped, versioned parameter set. At most one
// version is active per season; superseded versions are never mutated so that
// replay can reconstruct parameters as they existed.
type RatingParameters struct {
	ID                   int       `json:"id"`
	SeasonID             int       `json:"season_id"`
	Version              int       `json:"version"`
	IsActive             bool      `json:"is_active"`
	InitialRating        float64   `json:"initial_rating"`
	InitialRD            float64   `json:"initial_rd"`
	KFactorNew           float64   `json:"k_factor_new"`
	KFactorEstablished   float64   `json:"k_factor_established"`
	KFactorThreshold     int       `json:"k_factor_threshold"`
	SinglesWeight        float64   `json:"singles_weight"`
	DoublesWeight        float64   `json:"doubles_weight"`
	OneSetMatchWeight    float64   `json:"one_set_match_weight"`
	WalkoverWinImpact    float64   `json:"walkover_win_impact"`
	WalkoverLossImpact   float64   `json:"walkover_loss_impact"`
	ProvisionalThreshold int       `json:"provisional_threshold"`
	RDFloor              float64   `json:"rd_floor"`
	CreatedAt            time.Time `json:"created_at"`
}

// DefaultRatingParameters returns the process-wide defaults used when a season
// has no stored parameter version yet.
func DefaultRatingParameters(seasonID int) RatingParameters {
	return RatingParameters{
		SeasonID:             seasonID,
		Version:              0,
		IsActive:             true,
		InitialRating:        1500,
		InitialRD:            350,
		KFactorNew:           40,
		KFactorEstablished:   20,
		KFactorThreshold:     10,
		SinglesWeight:        1.0,
		DoublesWeight:        0.8,
		OneSetMatchWeight:    0.5,
		WalkoverWinImpact:    15,
		WalkoverLossImpact:   -10,
		ProvisionalThreshold: 5,
		RDFloor:              50,
	}
}

// RatingParametersUpdate carries a partial update; nil fields keep the value
// from the currently active version.
type RatingParametersUpdate struct {
	InitialRating        *float64 `json:"initial_rating,omitempty"`
	InitialRD            *float64 `json:"initial_rd,omitempty"`
	KFactorNew           *float64 `json:"k_factor_new,omitempty"`
	KFactorEstablished   *float64 `json:"k_factor_established,omitempty"`
	KFactorThreshold     *int     `json:"k_factor_threshold,omitempty"`
	SinglesWeight        *float64 `json:"singles_weight,omitempty"`
	DoublesWeight        *float64 `json:"doubles_weight,omitempty"`
	OneSetMatchWeight    *float64 `json:"one_set_match_weight,omitempty"`
	WalkoverWinImpact    *float64 `json:"walkover_win_impact,omitempty"`
	WalkoverLossImpact   *float64 `json:"walkover_loss_impact,omitempty"`
	ProvisionalThreshold *int     `json:"provisional_threshold,omitempty"`
	RDFloor              *float64 `json:"rd_floor,omitempty"`
}
