package deck

import (
	rand "math/rand/v2"
)

// Size is the number of cards in a full deck.
const Size = 52

// CardsPerRank is how many copies of each rank the deck holds, one
// per suit.
const CardsPerRank = 4

// Deck represents a deck of 52 unique playing cards
type Deck struct {
	cards []Card
	rng   *rand.Rand
}

// New creates a full deck in deterministic order using the provided
// random source for shuffling
func New(rng *rand.Rand) *Deck {
	d := &Deck{
		cards: make([]Card, 0, Size),
		rng:   rng,
	}
	d.Reset()
	return d
}

// Reset restores the deck to its full, ordered state
func (d *Deck) Reset() {
	d.cards = d.cards[:0]
	for suit := Hearts; suit <= Spades; suit++ {
		for rank := Ace; rank <= King; rank++ {
			d.cards = append(d.cards, NewCard(suit, rank))
		}
	}
}

// Shuffle randomizes the deck order using Fisher-Yates
func (d *Deck) Shuffle() {
	for i := len(d.cards) - 1; i > 0; i-- {
		j := d.rng.IntN(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// CardsRemaining returns the number of cards left in the deck
func (d *Deck) CardsRemaining() int {
	return len(d.cards)
}

// Cards returns the deck's current contents in order
func (d *Deck) Cards() []Card {
	out := make([]Card, len(d.cards))
	copy(out, d.cards)
	return out
}

// DealRoundRobin deals the entire deck one card at a time across n
// hands starting from hand 0. When the deck does not divide evenly the
// earlier hands end up one card larger, so hand sizes never differ by
// more than one.
func (d *Deck) DealRoundRobin(n int) [][]Card {
	hands := make([][]Card, n)
	for i := range hands {
		hands[i] = make([]Card, 0, (len(d.cards)+n-1)/n)
	}
	for i, c := range d.cards {
		hands[i%n] = append(hands[i%n], c)
	}
	d.cards = d.cards[:0]
	return hands
}
