package game

import (
	"github.com/lox/bluffbots/internal/deck"
)

// Claim records a single announced play: what the player said they put
// down and what they actually put down. ActualCards are ground truth;
// the announcement may be false.
type Claim struct {
	PlayerID     string
	PlayerName   string
	ClaimedRank  deck.Rank
	ClaimedCount int
	ActualCards  []deck.Card
	TurnNumber   int
}

// WasBluff reports whether any actual card differs from the claimed rank
func (c Claim) WasBluff() bool {
	for _, card := range c.ActualCards {
		if card.Rank != c.ClaimedRank {
			return true
		}
	}
	return false
}

// CenterPile accumulates the unresolved claims between challenges.
// Fresh plays stack on top; a challenge inspects only the top claim
// but the loser takes every card underneath it too.
type CenterPile struct {
	claims []Claim
}

// Add stacks a claim on top of the pile
func (p *CenterPile) Add(c Claim) {
	p.claims = append(p.claims, c)
}

// Top returns the most recent unresolved claim
func (p *CenterPile) Top() (Claim, bool) {
	if len(p.claims) == 0 {
		return Claim{}, false
	}
	return p.claims[len(p.claims)-1], true
}

// Cards returns every card in the pile, oldest claim first
func (p *CenterPile) Cards() []deck.Card {
	var cards []deck.Card
	for _, c := range p.claims {
		cards = append(cards, c.ActualCards...)
	}
	return cards
}

// CardCount returns the total number of cards in the pile
func (p *CenterPile) CardCount() int {
	n := 0
	for _, c := range p.claims {
		n += len(c.ActualCards)
	}
	return n
}

// ClaimCount returns the number of unresolved claims
func (p *CenterPile) ClaimCount() int {
	return len(p.claims)
}

// Take empties the pile and returns all of its cards. Clearing and
// collection happen as one step so a resolved pile can never be
// challenged again.
func (p *CenterPile) Take() []deck.Card {
	cards := p.Cards()
	p.claims = p.claims[:0]
	return cards
}

// Claims returns a copy of the unresolved claims, oldest first
func (p *CenterPile) Claims() []Claim {
	out := make([]Claim, len(p.claims))
	copy(out, p.claims)
	return out
}
