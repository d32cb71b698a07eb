// Package reaction supplies table-talk lines for challenge outcomes.
// Agents may speak for themselves; this fills the silence for the ones
// that don't.
package reaction

import "math/rand/v2"

// Scenario identifies which challenge outcome a line is for
type Scenario string

const (
	// CorrectCall is the caller's scenario after catching a bluff
	CorrectCall Scenario = "correct_bs_call"
	// IncorrectCall is the caller's scenario after challenging a truthful play
	IncorrectCall Scenario = "incorrect_bs_call"
	// CaughtBluffing is the claimant's scenario after being caught
	CaughtBluffing Scenario = "caught_bluffing"
)

func (s Scenario) String() string {
	return string(s)
}

var lines = map[Scenario][]string{
	CorrectCall: {
		"I knew you were lying!",
		"Ha! Caught you red-handed!",
		"Your poker face needs work.",
		"Gotcha! Enjoy the pile.",
		"I saw right through that one.",
		"Never try to fool me twice.",
		"Busted! I love being right.",
		"My gut is never wrong.",
		"Take those cards back where they came from.",
		"That was the easiest call of my life.",
	},
	IncorrectCall: {
		"Ugh, I was so sure...",
		"Well, that backfired spectacularly.",
		"Why did I do that?",
		"Fine, fine, hand them over.",
		"I'm never living this down.",
		"Note to self: stop guessing.",
		"You actually told the truth? Rude.",
		"That one's on me.",
		"My instincts have betrayed me.",
		"I clearly can't read you at all.",
	},
	CaughtBluffing: {
		"Okay, okay, you got me.",
		"I thought I was being smooth!",
		"How do you keep seeing through me?",
		"I'm a terrible liar, apparently.",
		"Walked right into that one.",
		"Nice catch. I hate it.",
		"Remind me never to play poker with you.",
		"I had you fooled for a second, admit it.",
		"Fair enough, these are mine now.",
		"I'll get you next round.",
	},
}

// fallback covers a scenario the table doesn't know
const fallback = "Well, that just happened."

// Generator picks lines with an injected random source so games replay
// identically from a seed.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator creates a generator backed by rng
func NewGenerator(rng *rand.Rand) *Generator {
	if rng == nil {
		panic("reaction: rng is required")
	}
	return &Generator{rng: rng}
}

// Line returns a line for the scenario
func (g *Generator) Line(s Scenario) string {
	pool, ok := lines[s]
	if !ok {
		return fallback
	}
	return pool[g.rng.IntN(len(pool))]
}
