// Package agent provides the built-in decision strategies a game can
// bind to its seats: a card-counting heuristic, a uniform random
// player, and a Lua-scripted agent for custom behavior.
package agent

import (
	"fmt"
	"math/rand/v2"

	"github.com/rs/zerolog"

	"github.com/lox/bluffbots/internal/game"
)

// Strategy names accepted by New and by player config blocks.
const (
	StrategyHeuristic = "heuristic"
	StrategyRandom    = "random"
	StrategyScripted  = "scripted"
)

// New creates an agent of the named strategy. scriptPath is only used
// by the scripted strategy. An empty strategy defaults to heuristic.
func New(strategy, scriptPath string, rng *rand.Rand, logger zerolog.Logger) (game.Agent, error) {
	switch strategy {
	case StrategyHeuristic, "":
		return NewHeuristic(rng, logger), nil
	case StrategyRandom:
		return NewRandom(rng, logger), nil
	case StrategyScripted:
		return NewScripted(scriptPath, logger)
	default:
		return nil, fmt.Errorf("unknown agent strategy %q", strategy)
	}
}
