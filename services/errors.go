package services

import "errors"

// Business-rule errors shared across services and the HTTP error mapping.
var (
	// Not found
	ErrNotFound             = errors.New("requested resource not found")
	ErrRatingNotFound       = errors.New("player rating not found for this season and game type")
	ErrParametersNotFound   = errors.New("rating parameters not found")
	ErrMatchNotFound        = errors.New("match not found")
	ErrBracketNotFound      = errors.New("bracket not found")
	ErrBracketMatchNotFound = errors.New("bracket match not found")
	ErrStandingsNotFound    = errors.New("no standings available for this division")

	// Preconditions
	ErrSeasonLocked              = errors.New("season is locked; ratings and parameters cannot be mutated")
	ErrSeasonNotLocked           = errors.New("season is not locked")
	ErrSeasonHasPendingMatches   = errors.New("season has pending matches and cannot be locked")
	ErrBracketExists             = errors.New("a bracket already exists for this season and division")
	ErrBracketLocked             = errors.New("bracket is locked")
	ErrBracketInvalidStatus      = errors.New("bracket is not in a status that allows this operation")
	ErrBracketNotSeeded          = errors.New("bracket has no seeded first-round matches")
	ErrInsufficientPlayers       = errors.New("at least 2 seeded players are required")
	ErrMatchNotCompleted         = errors.New("match is not completed")
	ErrValidationFailed          = errors.New("validation failed")
	ErrInvalidRecalculationScope = errors.New("invalid recalculation scope")

	// Invariant violations
	ErrInvalidWinner       = errors.New("winner is not a participant of this match")
	ErrInvalidOutcome      = errors.New("match outcome is ambiguous")
	ErrMatchAlreadyDecided = errors.New("bracket match already has a recorded winner")
	ErrDuplicateManualSeed = errors.New("manual seeding contains a duplicate seed or player")
)
