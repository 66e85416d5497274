package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtsidehq/league-engine/models"
)

func TestLockAndUnlockSeason(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	lock, err := env.lockSvc.Lock(ctx, 10, 99, "end of season")
	require.NoError(t, err)
	assert.True(t, lock.IsLocked)
	require.NotNil(t, lock.LockedBy)
	assert.Equal(t, 99, *lock.LockedBy)
	require.NotNil(t, lock.Notes)
	assert.Equal(t, "end of season", *lock.Notes)

	status, err := env.lockSvc.Status(ctx, 10)
	require.NoError(t, err)
	assert.True(t, status.IsLocked)

	unlocked, err := env.lockSvc.Unlock(ctx, 10, 99)
	require.NoError(t, err)
	assert.False(t, unlocked.IsLocked)
	assert.Nil(t, unlocked.LockedAt)
}

func TestLockTwiceFails(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, err := env.lockSvc.Lock(ctx, 10, 99, "")
	require.NoError(t, err)

	_, err = env.lockSvc.Lock(ctx, 10, 100, "")
	assert.ErrorIs(t, err, ErrSeasonLocked)
}

func TestUnlockUnlockedSeasonFails(t *testing.T) {
	env := newTestEnv()

	_, err := env.lockSvc.Unlock(context.Background(), 10, 99)
	assert.ErrorIs(t, err, ErrSeasonNotLocked)
}

func TestLockRejectedWithPendingMatches(t *testing.T) {
	env := newTestEnv()
	env.matches.pending[10] = 3

	_, err := env.lockSvc.Lock(context.Background(), 10, 99, "")
	assert.ErrorIs(t, err, ErrSeasonHasPendingMatches)

	status, statusErr := env.lockSvc.Status(context.Background(), 10)
	require.NoError(t, statusErr)
	assert.False(t, status.IsLocked)
}

// A locked season must be completely frozen: every mutation path fails and
// the stored ratings are byte-for-byte what they were at lock time.
func TestLockedSeasonFreezesAllRatingMutations(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.seedRating(1, 10, nil, models.GameTypeSingles, 1520)
	env.seedRating(2, 10, nil, models.GameTypeSingles, 1480)
	env.matches.matches = append(env.matches.matches, models.CompletedMatch{
		ID: 100, SeasonID: 10, GameType: models.GameTypeSingles,
		Side1: []int{1}, Side2: []int{2}, WinnerSide: 1,
		Status: models.MatchStatusCompleted, CompletedAt: time.Now(),
	})

	_, err := env.lockSvc.Lock(ctx, 10, 99, "")
	require.NoError(t, err)

	snapshot := make(map[int]models.PlayerRating, len(env.ratings.ratings))
	for id, r := range env.ratings.ratings {
		snapshot[id] = r
	}

	_, err = env.ratingSvc.ApplyMatchResult(ctx, 100)
	assert.ErrorIs(t, err, ErrSeasonLocked)

	_, err = env.ratingSvc.AdjustRating(ctx, AdjustRatingInput{
		UserID: 1, SeasonID: 10, GameType: models.GameTypeSingles, NewRating: 2000,
	})
	assert.ErrorIs(t, err, ErrSeasonLocked)

	_, err = env.ratingSvc.EnsureInitialRating(ctx, EnsureInitialRatingInput{
		UserID: 3, SeasonID: 10, GameType: models.GameTypeSingles, SkillEstimate: 5,
	})
	assert.ErrorIs(t, err, ErrSeasonLocked)

	_, err = env.config.SetParameters(ctx, 10, models.RatingParametersUpdate{})
	assert.ErrorIs(t, err, ErrSeasonLocked)

	_, err = env.recalcSvc.Recalculate(ctx, RecalculationInput{Scope: ScopeSeason, SeasonID: 10})
	assert.ErrorIs(t, err, ErrSeasonLocked)

	assert.Equal(t, snapshot, env.ratings.ratings)
	assert.Empty(t, env.history.entries)
}

// Reads stay available while a season is locked.
func TestLockedSeasonStillServesReads(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.seedRating(1, 10, nil, models.GameTypeSingles, 1520)
	_, err := env.lockSvc.Lock(ctx, 10, 99, "")
	require.NoError(t, err)

	r, err := env.ratingSvc.GetRating(ctx, 1, 10, models.GameTypeSingles)
	require.NoError(t, err)
	assert.InDelta(t, 1520, r.CurrentRating, 1e-9)

	_, err = env.exportSvc.GenerateSeasonExport(ctx, 10, ExportFormatJSON)
	assert.NoError(t, err)
}
