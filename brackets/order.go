// Package brackets contains the pure single-elimination math: seeding order,
// round naming, and skeleton construction. Nothing here touches the database;
// persistence and state transitions live in the bracket service.
package brackets

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInsufficientPlayers = errors.New("at least 2 seeded players are required")
	ErrInvalidBracketSize  = errors.New("bracket size must be a power of two, at least 2")
)

// SeedOrder returns the standard tournament first-round slot order for a
// bracket of the given size (a power of two). The order for 2 slots is [1,2];
// for N slots the (N/2)-order is interleaved with its complement (N+1-seed),
// so 8 slots yield [1,8,4,5,2,7,3,6]. Consecutive pairs form the first-round
// matches, which keeps top seeds apart until the latest possible round.
func SeedOrder(size int) ([]int, error) {
	if size < 2 || size&(size-1) != 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBracketSize, size)
	}

	order := []int{1, 2}
	for len(order) < size {
		next := make([]int, 0, len(order)*2)
		complement := len(order)*2 + 1
		for _, seed := range order {
			next = append(next, seed, complement-seed)
		}
		order = next
	}
	return order, nil
}

// NextPowerOfTwo returns the smallest power of two >= n.
func NextPowerOfTwo(n int) int {
	size := 1
	for size < n {
		size <<= 1
	}
	return size
}

// NumRounds returns ceil(log2(numPlayers)), the round count of a
// single-elimination bracket.
func NumRounds(numPlayers int) int {
	if numPlayers < 2 {
		return 0
	}
	return int(math.Ceil(math.Log2(float64(numPlayers))))
}

// RoundName names a round by its distance from the final: 1 is the final
// itself, 2 the semi-finals, and so on.
func RoundName(roundsFromFinal int) string {
	switch roundsFromFinal {
	case 1:
		return "Finals"
	case 2:
		return "Semi-Finals"
	case 3:
		return "Quarter-Finals"
	default:
		return fmt.Sprintf("Round of %d", 1<<roundsFromFinal)
	}
}

// SuccessorSlot maps a match number within a round to the successor match in
// the next round and the slot the winner occupies there: ceil(m/2), with odd
// match numbers feeding slot 1 and even ones slot 2.
func SuccessorSlot(matchNumber int) (nextMatchNumber, slot int) {
	nextMatchNumber = (matchNumber + 1) / 2
	slot = 2
	if matchNumber%2 == 1 {
		slot = 1
	}
	return nextMatchNumber, slot
}
