package brackets

import (
	"github.com/courtsidehq/league-engine/models"
)

// Seed pairs a seed number (1 = top seed) with the player holding it.
type Seed struct {
	Seed     int
	PlayerID int
}

// SkeletonMatch is one match of a freshly built bracket, before persistence.
type SkeletonMatch struct {
	MatchNumber int
	Seed1       *int
	Seed2       *int
	Player1ID   *int
	Player2ID   *int
	Status      models.BracketMatchStatus
}

// SkeletonRound holds the ordered matches of one round.
type SkeletonRound struct {
	RoundNumber int
	Name        string
	Matches     []SkeletonMatch
}

// Skeleton is a complete single-elimination structure: a first round paired
// by the standard seed order and empty pending matches for every later round.
type Skeleton struct {
	Size   int // padded bracket size, a power of two
	Rounds []SkeletonRound
}

// BuildSingleElimination builds the bracket skeleton for the given seed list.
// The list is padded to the next power of two; unmatched slots become byes.
// A first-round match with only one real player gets status BYE, everything
// else starts PENDING. Later rounds are created empty, to be filled as
// results are recorded.
func BuildSingleElimination(seeds []Seed) (*Skeleton, error) {
	if len(seeds) < 2 {
		return nil, ErrInsufficientPlayers
	}

	size := NextPowerOfTwo(len(seeds))
	order, err := SeedOrder(size)
	if err != nil {
		return nil, err
	}

	playerBySeed := make(map[int]int, len(seeds))
	for _, s := range seeds {
		playerBySeed[s.Seed] = s.PlayerID
	}

	numRounds := NumRounds(size)
	skeleton := &Skeleton{Size: size, Rounds: make([]SkeletonRound, 0, numRounds)}

	firstRound := SkeletonRound{
		RoundNumber: 1,
		Name:        RoundName(numRounds),
		Matches:     make([]SkeletonMatch, 0, size/2),
	}
	for i := 0; i < size; i += 2 {
		match := SkeletonMatch{MatchNumber: i/2 + 1, Status: models.BracketMatchPending}

		if playerID, ok := playerBySeed[order[i]]; ok {
			seed := order[i]
			pid := playerID
			match.Seed1, match.Player1ID = &seed, &pid
		}
		if playerID, ok := playerBySeed[order[i+1]]; ok {
			seed := order[i+1]
			pid := playerID
			match.Seed2, match.Player2ID = &seed, &pid
		}

		if (match.Player1ID == nil) != (match.Player2ID == nil) {
			match.Status = models.BracketMatchBye
		}
		firstRound.Matches = append(firstRound.Matches, match)
	}
	skeleton.Rounds = append(skeleton.Rounds, firstRound)

	for r := 2; r <= numRounds; r++ {
		round := SkeletonRound{
			RoundNumber: r,
			Name:        RoundName(numRounds - r + 1),
			Matches:     make([]SkeletonMatch, 0, size>>uint(r)),
		}
		for m := 1; m <= size>>uint(r); m++ {
			round.Matches = append(round.Matches, SkeletonMatch{
				MatchNumber: m,
				Status:      models.BracketMatchPending,
			})
		}
		skeleton.Rounds = append(skeleton.Rounds, round)
	}

	return skeleton, nil
}
