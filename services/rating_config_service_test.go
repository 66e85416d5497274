package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtsidehq/league-engine/models"
)

func floatPtr(v float64) *float64 { return &v }

func TestGetActiveParametersFallsBackToDefaults(t *testing.T) {
	env := newTestEnv()

	params, err := env.config.GetActiveParameters(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, params.Version)
	assert.InDelta(t, 1500, params.InitialRating, 1e-9)
	assert.InDelta(t, 40, params.KFactorNew, 1e-9)
}

func TestSetParametersCreatesNewVersion(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	first, err := env.config.SetParameters(ctx, 10, models.RatingParametersUpdate{
		KFactorNew: floatPtr(50),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Parameters.Version)
	assert.InDelta(t, 50, first.Parameters.KFactorNew, 1e-9)
	assert.Empty(t, first.Warning)

	second, err := env.config.SetParameters(ctx, 10, models.RatingParametersUpdate{
		SinglesWeight: floatPtr(0.9),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Parameters.Version)
	// unchanged fields carry over from the previous version
	assert.InDelta(t, 50, second.Parameters.KFactorNew, 1e-9)
	assert.InDelta(t, 0.9, second.Parameters.SinglesWeight, 1e-9)

	versions, err := env.config.ListParameterVersions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, versions, 2)

	active, err := env.config.GetActiveParameters(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, active.Version)
}

func TestSetParametersWarnsWhenSeasonHasPlay(t *testing.T) {
	env := newTestEnv()
	env.matches.matches = append(env.matches.matches, models.CompletedMatch{
		ID: 1, SeasonID: 10, GameType: models.GameTypeSingles,
		Side1: []int{1}, Side2: []int{2}, WinnerSide: 1,
		Status: models.MatchStatusCompleted, CompletedAt: time.Now(),
	})

	result, err := env.config.SetParameters(context.Background(), 10, models.RatingParametersUpdate{
		KFactorNew: floatPtr(30),
	})
	require.NoError(t, err)
	assert.Contains(t, result.Warning, "recalculation")
}

func TestSetParametersValidation(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, err := env.config.SetParameters(ctx, 10, models.RatingParametersUpdate{
		KFactorNew: floatPtr(-5),
	})
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = env.config.SetParameters(ctx, 10, models.RatingParametersUpdate{
		RDFloor: floatPtr(500), // above the initial RD
	})
	assert.ErrorIs(t, err, ErrValidationFailed)

	// failed updates never leave a version behind
	versions, listErr := env.config.ListParameterVersions(ctx, 10)
	require.NoError(t, listErr)
	assert.Empty(t, versions)
}

func TestGetParametersAtPicksHistoricalVersion(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, err := env.config.SetParameters(ctx, 10, models.RatingParametersUpdate{
		KFactorNew: floatPtr(50),
	})
	require.NoError(t, err)

	// Backdate version 1 so a later version can be distinguished from it.
	env.params.versions[0].CreatedAt = time.Now().Add(-48 * time.Hour)
	cutoff := time.Now().Add(-24 * time.Hour)

	_, err = env.config.SetParameters(ctx, 10, models.RatingParametersUpdate{
		KFactorNew: floatPtr(60),
	})
	require.NoError(t, err)

	at, err := env.config.GetParametersAt(ctx, 10, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, at.Version)
	assert.InDelta(t, 50, at.KFactorNew, 1e-9)

	now, err := env.config.GetParametersAt(ctx, 10, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, now.Version)
}

func TestGetParametersAtBeforeAnyVersionReturnsDefaults(t *testing.T) {
	env := newTestEnv()

	params, err := env.config.GetParametersAt(context.Background(), 10, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, params.Version)
	assert.InDelta(t, 1500, params.InitialRating, 1e-9)
}
