package brackets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtsidehq/league-engine/models"
)

func makeSeeds(n int) []Seed {
	seeds := make([]Seed, 0, n)
	for i := 1; i <= n; i++ {
		seeds = append(seeds, Seed{Seed: i, PlayerID: 100 + i})
	}
	return seeds
}

func TestBuildSingleEliminationFullField(t *testing.T) {
	skeleton, err := BuildSingleElimination(makeSeeds(8))
	require.NoError(t, err)

	assert.Equal(t, 8, skeleton.Size)
	require.Len(t, skeleton.Rounds, 3)

	first := skeleton.Rounds[0]
	assert.Equal(t, "Quarter-Finals", first.Name)
	require.Len(t, first.Matches, 4)

	// Standard order 1-8, 4-5, 2-7, 3-6.
	wantPairs := [][2]int{{1, 8}, {4, 5}, {2, 7}, {3, 6}}
	for i, match := range first.Matches {
		require.NotNil(t, match.Seed1)
		require.NotNil(t, match.Seed2)
		assert.Equal(t, wantPairs[i][0], *match.Seed1)
		assert.Equal(t, wantPairs[i][1], *match.Seed2)
		assert.Equal(t, models.BracketMatchPending, match.Status)
		assert.Equal(t, 100+wantPairs[i][0], *match.Player1ID)
		assert.Equal(t, 100+wantPairs[i][1], *match.Player2ID)
	}

	assert.Equal(t, "Semi-Finals", skeleton.Rounds[1].Name)
	require.Len(t, skeleton.Rounds[1].Matches, 2)
	assert.Equal(t, "Finals", skeleton.Rounds[2].Name)
	require.Len(t, skeleton.Rounds[2].Matches, 1)

	for _, round := range skeleton.Rounds[1:] {
		for _, match := range round.Matches {
			assert.Nil(t, match.Player1ID)
			assert.Nil(t, match.Player2ID)
			assert.Equal(t, models.BracketMatchPending, match.Status)
		}
	}
}

func TestBuildSingleEliminationWithByes(t *testing.T) {
	// 5 players pad to 8: seeds 6, 7, 8 are byes.
	skeleton, err := BuildSingleElimination(makeSeeds(5))
	require.NoError(t, err)

	assert.Equal(t, 8, skeleton.Size)
	first := skeleton.Rounds[0]
	require.Len(t, first.Matches, 4)

	byes, pending := 0, 0
	for _, match := range first.Matches {
		switch match.Status {
		case models.BracketMatchBye:
			byes++
			// Exactly one populated slot.
			assert.NotEqual(t, match.Player1ID == nil, match.Player2ID == nil)
		case models.BracketMatchPending:
			pending++
			assert.NotNil(t, match.Player1ID)
			assert.NotNil(t, match.Player2ID)
		}
	}
	assert.Equal(t, 3, byes)
	assert.Equal(t, 1, pending)

	// The 4-5 pairing is the only real first-round match.
	match2 := first.Matches[1]
	assert.Equal(t, models.BracketMatchPending, match2.Status)
	assert.Equal(t, 4, *match2.Seed1)
	assert.Equal(t, 5, *match2.Seed2)
}

func TestBuildSingleEliminationTwoPlayers(t *testing.T) {
	skeleton, err := BuildSingleElimination(makeSeeds(2))
	require.NoError(t, err)

	require.Len(t, skeleton.Rounds, 1)
	assert.Equal(t, "Finals", skeleton.Rounds[0].Name)
	require.Len(t, skeleton.Rounds[0].Matches, 1)
}

func TestBuildSingleEliminationRejectsTooFew(t *testing.T) {
	_, err := BuildSingleElimination(makeSeeds(1))
	assert.ErrorIs(t, err, ErrInsufficientPlayers)

	_, err = BuildSingleElimination(nil)
	assert.ErrorIs(t, err, ErrInsufficientPlayers)
}
