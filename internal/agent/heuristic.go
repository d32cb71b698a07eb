package agent

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/rs/zerolog"

	"github.com/lox/bluffbots/internal/deck"
	"github.com/lox/bluffbots/internal/game"
)

// Suspicion weights for challenging a claim that cannot be disproven
// outright: bigger claims and held copies of the claimed rank both
// raise the odds.
const (
	suspicionPerClaimed = 0.06
	suspicionPerHeld    = 0.15
)

// Heuristic plays honestly whenever it can, bluffs with a single
// surplus card when it can't, and challenges claims its own hand
// makes unlikely.
type Heuristic struct {
	rng    *rand.Rand
	logger zerolog.Logger
}

// NewHeuristic creates a heuristic agent using rng for suspicion rolls
func NewHeuristic(rng *rand.Rand, logger zerolog.Logger) *Heuristic {
	if rng == nil {
		panic("agent: rng is required")
	}
	return &Heuristic{rng: rng, logger: logger}
}

func (h *Heuristic) Decide(_ context.Context, view game.ObservableState) (game.Decision, error) {
	if view.CanChallenge && len(view.Claims) > 0 {
		top := view.Claims[len(view.Claims)-1]
		held := countRank(view.Hand, top.Rank)

		if top.Count+held > deck.CardsPerRank {
			return game.Decision{
				Action: game.ActionCallBS,
				Reasoning: fmt.Sprintf("%s claimed %s but I'm holding %d of them, so that's impossible",
					top.PlayerName, deck.ClaimString(top.Count, top.Rank), held),
			}, nil
		}

		suspicion := suspicionPerClaimed*float64(top.Count) + suspicionPerHeld*float64(held)
		if h.rng.Float64() < suspicion {
			return game.Decision{
				Action: game.ActionCallBS,
				Reasoning: fmt.Sprintf("%s feels like too many, calling it",
					deck.ClaimString(top.Count, top.Rank)),
			}, nil
		}
	}

	if indices := indicesOfRank(view.Hand, view.ExpectedRank); len(indices) > 0 {
		return game.Decision{
			Action:      game.ActionPlayCards,
			CardIndices: indices,
			Reasoning:   fmt.Sprintf("Playing my %s honestly", deck.ClaimString(len(indices), view.ExpectedRank)),
		}, nil
	}

	idx := surplusCardIndex(view.Hand)
	return game.Decision{
		Action:      game.ActionPlayCards,
		CardIndices: []int{idx},
		Reasoning: fmt.Sprintf("No %ss in hand, slipping in a %s and hoping nobody asks",
			view.ExpectedRank.Name(), view.Hand[idx].Rank.Name()),
	}, nil
}

// countRank counts how many cards of the rank the hand holds
func countRank(hand []deck.Card, rank deck.Rank) int {
	n := 0
	for _, c := range hand {
		if c.Rank == rank {
			n++
		}
	}
	return n
}

// indicesOfRank returns the hand positions holding the rank
func indicesOfRank(hand []deck.Card, rank deck.Rank) []int {
	var indices []int
	for i, c := range hand {
		if c.Rank == rank {
			indices = append(indices, i)
		}
	}
	return indices
}

// surplusCardIndex picks the bluff card: the rank held in the most
// copies loses one copy the cheapest, lowest rank breaking ties.
func surplusCardIndex(hand []deck.Card) int {
	counts := deck.CountByRank(hand)
	best := 0
	for i, c := range hand {
		switch {
		case counts[c.Rank] > counts[hand[best].Rank]:
			best = i
		case counts[c.Rank] == counts[hand[best].Rank] && c.Rank < hand[best].Rank:
			best = i
		}
	}
	return best
}
