// Package rating implements the skill rating computation: initial placement
// from a questionnaire estimate and per-match rating updates.
//
// The expected score is the standard Elo logistic (divisor 400) attenuated by
// the Glicko-1 g() function of both sides' rating deviations, with
// q = ln(10)/400. The exact curve of the historical system is not recoverable,
// so the standard Glicko-1 constants are used and documented here.
package rating

import (
	"errors"
	"math"

	"github.com/courtsidehq/league-engine/models"
)

var (
	// ErrInvalidOutcome indicates an ambiguous or malformed match outcome:
	// no winner recorded, a winner side outside 1..2, or an empty side.
	ErrInvalidOutcome = errors.New("match outcome is ambiguous or malformed")
)

const (
	q = math.Ln10 / 400

	// Initial placement maps the 1..10 questionnaire estimate onto the
	// rating scale around the configured anchor.
	placementMidpoint  = 5.0
	placementStep      = 50.0
	placementMaxOffset = 4 * placementStep
)

// Engine computes rating changes. It is a pure calculator: no I/O, no clock,
// no randomness. Persisting the results is the caller's job.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Placement is the starting rating produced from a questionnaire estimate.
type Placement struct {
	Rating float64 `json:"rating"`
	RD     float64 `json:"rd"`
}

// InitialPlacement maps a subjective self-assessment (1..10 scale) to a
// starting rating anchored at params.InitialRating. The offset is clamped so
// a questionnaire alone can never place a player more than four steps from
// the anchor.
func (e *Engine) InitialPlacement(skillEstimate float64, params models.RatingParameters) Placement {
	offset := (skillEstimate - placementMidpoint) * placementStep
	if offset > placementMaxOffset {
		offset = placementMaxOffset
	}
	if offset < -placementMaxOffset {
		offset = -placementMaxOffset
	}
	return Placement{
		Rating: params.InitialRating + offset,
		RD:     params.InitialRD,
	}
}

// Outcome describes a completed match for rating purposes.
type Outcome struct {
	MatchID    int
	GameType   models.GameType
	WinnerSide int // 1 or 2
	IsWalkover bool
	IsOneSet   bool
}

// OutcomeFromMatch builds an Outcome from a match source row.
func OutcomeFromMatch(m *models.CompletedMatch) Outcome {
	return Outcome{
		MatchID:    m.ID,
		GameType:   m.GameType,
		WinnerSide: m.WinnerSide,
		IsWalkover: m.IsWalkover,
		IsOneSet:   m.IsOneSet,
	}
}

// PlayerUpdate is one player's rating transition, ready to persist together
// with a history entry.
type PlayerUpdate struct {
	Before  models.PlayerRating
	After   models.PlayerRating
	Delta   float64
	Reason  models.RatingHistoryReason
	NewPeak bool // caller stamps PeakRatingDate when true
}

// MatchUpdate holds the two (singles) or four (doubles) player transitions
// produced by one match.
type MatchUpdate struct {
	Updates []PlayerUpdate
}

// ComputeMatchUpdate computes post-match ratings for every player on both
// sides. Doubles sides are treated as a composite with the mean rating and
// deviation of the pair; the delta is applied per player with that player's
// own K-factor.
func (e *Engine) ComputeMatchUpdate(outcome Outcome, side1, side2 []models.PlayerRating, params models.RatingParameters) (*MatchUpdate, error) {
	if outcome.WinnerSide != 1 && outcome.WinnerSide != 2 {
		return nil, ErrInvalidOutcome
	}
	if len(side1) == 0 || len(side2) == 0 || len(side1) > 2 || len(side2) > 2 {
		return nil, ErrInvalidOutcome
	}

	r1, rd1 := sideMeans(side1)
	r2, rd2 := sideMeans(side2)

	gBoth := glickoG(math.Sqrt(rd1*rd1 + rd2*rd2))
	expected1 := 1.0 / (1.0 + math.Pow(10, -gBoth*(r1-r2)/400.0))
	expected2 := 1.0 - expected1

	gameWeight := params.SinglesWeight
	if outcome.GameType == models.GameTypeDoubles {
		gameWeight = params.DoublesWeight
	}
	formatWeight := 1.0
	if outcome.IsOneSet {
		formatWeight = params.OneSetMatchWeight
	}
	weight := gameWeight * formatWeight

	update := &MatchUpdate{Updates: make([]PlayerUpdate, 0, len(side1)+len(side2))}

	apply := func(players []models.PlayerRating, won bool, expected, opponentRD float64) {
		score := 0.0
		if won {
			score = 1.0
		}
		for _, p := range players {
			var delta float64
			if outcome.IsWalkover {
				// No rally was played, so the skill signal is too weak
				// for the probabilistic formula.
				if won {
					delta = params.WalkoverWinImpact
				} else {
					delta = params.WalkoverLossImpact
				}
			} else {
				k := params.KFactorEstablished
				if p.MatchesPlayed < params.KFactorThreshold {
					k = params.KFactorNew
				}
				delta = weight * k * (score - expected)
			}
			update.Updates = append(update.Updates, transition(p, delta, won, expected, opponentRD, outcome.MatchID, params))
		}
	}

	apply(side1, outcome.WinnerSide == 1, expected1, rd2)
	apply(side2, outcome.WinnerSide == 2, expected2, rd1)

	return update, nil
}

// transition builds the post-match rating row for a single player.
func transition(p models.PlayerRating, delta float64, won bool, expected, opponentRD float64, matchID int, params models.RatingParameters) PlayerUpdate {
	after := p
	after.CurrentRating = p.CurrentRating + delta
	after.RatingDeviation = nextDeviation(p.RatingDeviation, opponentRD, expected, params.RDFloor)
	after.MatchesPlayed = p.MatchesPlayed + 1
	after.IsProvisional = after.MatchesPlayed < params.ProvisionalThreshold

	reason := models.ReasonMatchLoss
	if won {
		reason = models.ReasonMatchWin
	}

	newPeak := false
	if after.CurrentRating > p.PeakRating {
		after.PeakRating = after.CurrentRating
		newPeak = true
	}
	if p.LowestRating == 0 || after.CurrentRating < p.LowestRating {
		after.LowestRating = after.CurrentRating
	}

	return PlayerUpdate{
		Before:  p,
		After:   after,
		Delta:   delta,
		Reason:  reason,
		NewPeak: newPeak,
	}
}

// nextDeviation shrinks the rating deviation after a match using the Glicko-1
// update against the opponent side's deviation. The result is strictly below
// the previous value and floored at params.RDFloor.
func nextDeviation(rd, opponentRD, expected, floor float64) float64 {
	if rd <= floor {
		return floor
	}
	g := glickoG(opponentRD)
	dSquaredInv := q * q * g * g * expected * (1 - expected)
	next := 1.0 / math.Sqrt(1.0/(rd*rd)+dSquaredInv)
	if next < floor {
		return floor
	}
	return next
}

// glickoG is the Glicko-1 attenuation of a rating difference by deviation.
func glickoG(rd float64) float64 {
	return 1.0 / math.Sqrt(1.0+3.0*q*q*rd*rd/(math.Pi*math.Pi))
}

func sideMeans(players []models.PlayerRating) (rating, rd float64) {
	for _, p := range players {
		rating += p.CurrentRating
		rd += p.RatingDeviation
	}
	n := float64(len(players))
	return rating / n, rd / n
}
