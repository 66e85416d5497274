package rating

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtsidehq/league-engine/models"
)

func testParams() models.RatingParameters {
	return models.DefaultRatingParameters(1)
}

func playerAt(id int, rating, rd float64, matchesPlayed int) models.PlayerRating {
	return models.PlayerRating{
		ID:              id,
		UserID:          id,
		SeasonID:        1,
		GameType:        models.GameTypeSingles,
		CurrentRating:   rating,
		RatingDeviation: rd,
		MatchesPlayed:   matchesPlayed,
		IsProvisional:   true,
		PeakRating:      rating,
		LowestRating:    rating,
	}
}

func singlesOutcome(winnerSide int) Outcome {
	return Outcome{MatchID: 100, GameType: models.GameTypeSingles, WinnerSide: winnerSide}
}

func TestInitialPlacement(t *testing.T) {
	engine := NewEngine()
	params := testParams()

	t.Run("midpoint estimate lands on the anchor", func(t *testing.T) {
		p := engine.InitialPlacement(5, params)
		assert.Equal(t, params.InitialRating, p.Rating)
		assert.Equal(t, params.InitialRD, p.RD)
	})

	t.Run("estimate offsets scale linearly", func(t *testing.T) {
		p := engine.InitialPlacement(7, params)
		assert.Equal(t, params.InitialRating+100, p.Rating)
	})

	t.Run("offset is clamped", func(t *testing.T) {
		high := engine.InitialPlacement(10, params)
		assert.Equal(t, params.InitialRating+200, high.Rating)

		absurd := engine.InitialPlacement(50, params)
		assert.Equal(t, high.Rating, absurd.Rating)
	})
}

func TestComputeMatchUpdateConservation(t *testing.T) {
	engine := NewEngine()
	params := testParams()

	a := playerAt(1, 1550, 300, 3)
	b := playerAt(2, 1450, 280, 7)

	update, err := engine.ComputeMatchUpdate(singlesOutcome(1), []models.PlayerRating{a}, []models.PlayerRating{b}, params)
	require.NoError(t, err)
	require.Len(t, update.Updates, 2)

	for _, u := range update.Updates {
		assert.Equal(t, u.Delta, u.After.CurrentRating-u.Before.CurrentRating,
			"rating after minus before must equal delta exactly")
	}

	winner, loser := update.Updates[0], update.Updates[1]
	assert.Equal(t, models.ReasonMatchWin, winner.Reason)
	assert.Equal(t, models.ReasonMatchLoss, loser.Reason)
	assert.Greater(t, winner.Delta, 0.0)
	assert.Less(t, loser.Delta, 0.0)
}

func TestComputeMatchUpdateDeterminism(t *testing.T) {
	engine := NewEngine()
	params := testParams()

	a := playerAt(1, 1520, 310, 4)
	b := playerAt(2, 1480, 250, 12)

	first, err := engine.ComputeMatchUpdate(singlesOutcome(2), []models.PlayerRating{a}, []models.PlayerRating{b}, params)
	require.NoError(t, err)
	second, err := engine.ComputeMatchUpdate(singlesOutcome(2), []models.PlayerRating{a}, []models.PlayerRating{b}, params)
	require.NoError(t, err)

	assert.Equal(t, first, second, "pure function: identical inputs must yield identical outputs")
}

func TestKFactorBoundary(t *testing.T) {
	engine := NewEngine()
	params := testParams()

	opponent := playerAt(2, 1500, 280, 20)

	newPlayer := playerAt(1, 1500, 280, params.KFactorThreshold-1)
	established := playerAt(1, 1500, 280, params.KFactorThreshold)

	newUpdate, err := engine.ComputeMatchUpdate(singlesOutcome(1), []models.PlayerRating{newPlayer}, []models.PlayerRating{opponent}, params)
	require.NoError(t, err)
	establishedUpdate, err := engine.ComputeMatchUpdate(singlesOutcome(1), []models.PlayerRating{established}, []models.PlayerRating{opponent}, params)
	require.NoError(t, err)

	assert.Greater(t, math.Abs(newUpdate.Updates[0].Delta), math.Abs(establishedUpdate.Updates[0].Delta),
		"a player below the K-factor threshold must swing harder than an established one")
}

func TestWalkoverUsesFixedImpacts(t *testing.T) {
	engine := NewEngine()
	params := testParams()

	a := playerAt(1, 1700, 200, 30)
	b := playerAt(2, 1300, 340, 1)

	outcome := singlesOutcome(1)
	outcome.IsWalkover = true

	update, err := engine.ComputeMatchUpdate(outcome, []models.PlayerRating{a}, []models.PlayerRating{b}, params)
	require.NoError(t, err)

	assert.Equal(t, params.WalkoverWinImpact, update.Updates[0].Delta)
	assert.Equal(t, params.WalkoverLossImpact, update.Updates[1].Delta)
}

func TestOneSetMatchWeight(t *testing.T) {
	engine := NewEngine()
	params := testParams()

	a := playerAt(1, 1500, 280, 3)
	b := playerAt(2, 1500, 280, 3)

	full, err := engine.ComputeMatchUpdate(singlesOutcome(1), []models.PlayerRating{a}, []models.PlayerRating{b}, params)
	require.NoError(t, err)

	oneSet := singlesOutcome(1)
	oneSet.IsOneSet = true
	short, err := engine.ComputeMatchUpdate(oneSet, []models.PlayerRating{a}, []models.PlayerRating{b}, params)
	require.NoError(t, err)

	assert.InDelta(t, full.Updates[0].Delta*params.OneSetMatchWeight, short.Updates[0].Delta, 1e-9)
}

func TestProvisionalTransition(t *testing.T) {
	engine := NewEngine()
	params := testParams()

	player := playerAt(1, 1500, 350, 0)
	opponent := playerAt(2, 1500, 350, 50)

	for i := 0; i < params.ProvisionalThreshold+3; i++ {
		update, err := engine.ComputeMatchUpdate(singlesOutcome(1), []models.PlayerRating{player}, []models.PlayerRating{opponent}, params)
		require.NoError(t, err)

		after := update.Updates[0].After
		if after.MatchesPlayed < params.ProvisionalThreshold {
			assert.True(t, after.IsProvisional, "match %d: still below threshold", after.MatchesPlayed)
		} else {
			assert.False(t, after.IsProvisional, "match %d: threshold crossed, never flips back", after.MatchesPlayed)
		}
		player = after
	}
}

func TestDeviationShrinksMonotonicallyToFloor(t *testing.T) {
	engine := NewEngine()
	params := testParams()
	params.RDFloor = 200 // raise the floor so the test reaches it quickly

	player := playerAt(1, 1500, 350, 0)
	opponent := playerAt(2, 1500, 350, 0)

	prevRD := player.RatingDeviation
	for i := 0; i < 60; i++ {
		update, err := engine.ComputeMatchUpdate(singlesOutcome(1), []models.PlayerRating{player}, []models.PlayerRating{opponent}, params)
		require.NoError(t, err)
		after := update.Updates[0].After

		assert.LessOrEqual(t, after.RatingDeviation, prevRD)
		assert.GreaterOrEqual(t, after.RatingDeviation, params.RDFloor)
		prevRD = after.RatingDeviation
		player = after
	}
	assert.Equal(t, params.RDFloor, player.RatingDeviation)
}

// Replaying the same two matches in different orders produces different final
// ratings, because the K-factor depends on cumulative matches played. This is
// why the replay coordinator requires strict chronological order.
func TestReplayOrderIsLoadBearing(t *testing.T) {
	engine := NewEngine()
	params := testParams()
	params.KFactorThreshold = 1 // the first match is the boundary

	opponentWeak := playerAt(2, 1300, 280, 40)
	opponentStrong := playerAt(3, 1700, 280, 40)

	replay := func(opponents []models.PlayerRating) float64 {
		player := playerAt(1, 1500, 300, 0)
		for _, opp := range opponents {
			update, err := engine.ComputeMatchUpdate(singlesOutcome(1), []models.PlayerRating{player}, []models.PlayerRating{opp}, params)
			require.NoError(t, err)
			player = update.Updates[0].After
		}
		return player.CurrentRating
	}

	weakFirst := replay([]models.PlayerRating{opponentWeak, opponentStrong})
	strongFirst := replay([]models.PlayerRating{opponentStrong, opponentWeak})

	assert.NotEqual(t, weakFirst, strongFirst)
}

func TestDoublesUpdatesAllFourPlayers(t *testing.T) {
	engine := NewEngine()
	params := testParams()

	side1 := []models.PlayerRating{playerAt(1, 1520, 300, 2), playerAt(2, 1480, 260, 9)}
	side2 := []models.PlayerRating{playerAt(3, 1510, 280, 15), playerAt(4, 1490, 320, 1)}

	outcome := Outcome{MatchID: 7, GameType: models.GameTypeDoubles, WinnerSide: 2}
	update, err := engine.ComputeMatchUpdate(outcome, side1, side2, params)
	require.NoError(t, err)
	require.Len(t, update.Updates, 4)

	for i, u := range update.Updates {
		if i < 2 {
			assert.Less(t, u.Delta, 0.0)
		} else {
			assert.Greater(t, u.Delta, 0.0)
		}
		assert.Equal(t, u.Delta, u.After.CurrentRating-u.Before.CurrentRating)
	}
}

func TestPeakAndLowestTracking(t *testing.T) {
	engine := NewEngine()
	params := testParams()

	a := playerAt(1, 1500, 300, 3)
	b := playerAt(2, 1500, 300, 3)

	win, err := engine.ComputeMatchUpdate(singlesOutcome(1), []models.PlayerRating{a}, []models.PlayerRating{b}, params)
	require.NoError(t, err)

	winner := win.Updates[0]
	assert.True(t, winner.NewPeak)
	assert.Equal(t, winner.After.CurrentRating, winner.After.PeakRating)

	loser := win.Updates[1]
	assert.False(t, loser.NewPeak)
	assert.Equal(t, loser.After.CurrentRating, loser.After.LowestRating)
	assert.Equal(t, 1500.0, loser.After.PeakRating)
}

func TestComputeMatchUpdateValidation(t *testing.T) {
	engine := NewEngine()
	params := testParams()
	a := []models.PlayerRating{playerAt(1, 1500, 300, 0)}
	b := []models.PlayerRating{playerAt(2, 1500, 300, 0)}

	cases := []struct {
		name    string
		outcome Outcome
		side1   []models.PlayerRating
		side2   []models.PlayerRating
	}{
		{"no winner recorded", singlesOutcome(0), a, b},
		{"winner side out of range", singlesOutcome(3), a, b},
		{"empty side", singlesOutcome(1), nil, b},
		{"oversized side", singlesOutcome(1), []models.PlayerRating{a[0], a[0], a[0]}, b},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.ComputeMatchUpdate(tc.outcome, tc.side1, tc.side2, params)
			assert.ErrorIs(t, err, ErrInvalidOutcome)
		})
	}
}
