package game

import "errors"

// Rejection errors for illegal actions. The session state is untouched
// when any of these is returned.
var (
	ErrGameNotStarted     = errors.New("game has not started")
	ErrGameInProgress     = errors.New("game already in progress")
	ErrGameOver           = errors.New("game is over")
	ErrUnknownPlayer      = errors.New("unknown player")
	ErrNotYourTurn        = errors.New("not your turn")
	ErrEmptyPlay          = errors.New("must play at least one card")
	ErrCardsNotInHand     = errors.New("cards not in hand")
	ErrClaimCountMismatch = errors.New("claimed count must match cards played")
	ErrNothingToCall      = errors.New("no claim to challenge")
	ErrTooFewPlayers      = errors.New("at least 2 players required")
	ErrSessionPoisoned    = errors.New("session aborted after invariant violation")
)

// ErrInvariantViolated marks a broken conservation or ordering rule.
// Unlike rejection errors it is fatal: the session refuses all further
// actions once it has been observed.
var ErrInvariantViolated = errors.New("invariant violated")
