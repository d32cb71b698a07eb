package agent

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/rs/zerolog"

	"github.com/lox/bluffbots/internal/game"
)

// challengeOdds is how often the random agent challenges when it can
const challengeOdds = 0.2

// maxRandomPlay caps how many cards a random play puts down at once
const maxRandomPlay = 3

// Random picks uniformly among legal moves. Useful as a baseline
// opponent and for soak-testing the engine.
type Random struct {
	rng    *rand.Rand
	logger zerolog.Logger
}

// NewRandom creates a random agent driven by rng
func NewRandom(rng *rand.Rand, logger zerolog.Logger) *Random {
	if rng == nil {
		panic("agent: rng is required")
	}
	return &Random{rng: rng, logger: logger}
}

func (r *Random) Decide(_ context.Context, view game.ObservableState) (game.Decision, error) {
	if view.CanChallenge && r.rng.Float64() < challengeOdds {
		return game.Decision{
			Action:    game.ActionCallBS,
			Reasoning: "Calling it on a hunch",
		}, nil
	}

	limit := min(maxRandomPlay, len(view.Hand))
	count := 1 + r.rng.IntN(limit)

	perm := r.rng.Perm(len(view.Hand))
	indices := perm[:count]

	return game.Decision{
		Action:      game.ActionPlayCards,
		CardIndices: indices,
		Reasoning:   fmt.Sprintf("Tossing in %d at random", count),
	}, nil
}
