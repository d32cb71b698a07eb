package game

import (
	"context"

	"github.com/lox/bluffbots/internal/deck"
)

// Action identifies the kind of move an agent chose
type Action string

const (
	// ActionPlayCards plays cards from hand under the forced claim
	ActionPlayCards Action = "play_cards"
	// ActionCallBS challenges the most recent claim
	ActionCallBS Action = "call_bs"
)

// Decision is an agent's chosen move for one turn. CardIndices index
// into the hand the agent was shown and are only meaningful for
// ActionPlayCards. Reasoning and Reaction are opaque annotations
// attached to the emitted event; the engine never parses them.
type Decision struct {
	Action      Action
	CardIndices []int
	Reasoning   string
	Reaction    string
}

// ClaimSummary is the public view of one unresolved claim: what was
// announced, never the actual cards.
type ClaimSummary struct {
	PlayerID   string
	PlayerName string
	Rank       deck.Rank
	Count      int
	TurnNumber int
}

// ObservableState is the game as one player may see it: their own hand
// in full, everyone else reduced to counts, and the pile reduced to
// its announced claim history.
type ObservableState struct {
	PlayerID     string
	PlayerName   string
	Hand         []deck.Card
	Players      []PlayerSummary
	ExpectedRank deck.Rank
	PileCount    int
	Claims       []ClaimSummary
	TurnNumber   int
	LastAction   string
	CanChallenge bool
}

// Agent is a pluggable decision source. Decide is called once per turn
// with the acting player's view and must respect ctx cancellation; the
// driver applies a default action when it returns late or errors.
// Agents receive immutable state and return decisions - no state
// mutation allowed.
type Agent interface {
	Decide(ctx context.Context, view ObservableState) (Decision, error)
}

// DefaultDecision is the move applied when an agent times out or
// fails: play the single lowest card under the forced claim. It is
// legal for any non-empty hand and never resolves a challenge.
func DefaultDecision(view ObservableState) Decision {
	lowest := 0
	for i, c := range view.Hand {
		if c.Rank < view.Hand[lowest].Rank {
			lowest = i
		}
	}
	return Decision{
		Action:      ActionPlayCards,
		CardIndices: []int{lowest},
	}
}
