package game

import (
	"fmt"

	"github.com/lox/bluffbots/internal/deck"
)

// Player represents a seat in the game
type Player struct {
	ID   string
	Name string
	Hand []deck.Card
}

// HandSize returns the number of cards the player holds
func (p *Player) HandSize() int {
	return len(p.Hand)
}

// HasCards reports whether the player's hand contains every card in
// cards, counting duplicates. Hands are multisets so two requests for
// the same card need two copies in hand.
func (p *Player) HasCards(cards []deck.Card) bool {
	held := make(map[deck.Card]int, len(p.Hand))
	for _, c := range p.Hand {
		held[c]++
	}
	for _, c := range cards {
		held[c]--
		if held[c] < 0 {
			return false
		}
	}
	return true
}

// RemoveCards removes the given cards from the hand, one copy per
// request. It fails without modifying the hand if any card is missing.
func (p *Player) RemoveCards(cards []deck.Card) error {
	if !p.HasCards(cards) {
		return fmt.Errorf("%w: %s", ErrCardsNotInHand, deck.FormatCards(cards))
	}
	remove := make(map[deck.Card]int, len(cards))
	for _, c := range cards {
		remove[c]++
	}
	kept := p.Hand[:0]
	for _, c := range p.Hand {
		if remove[c] > 0 {
			remove[c]--
			continue
		}
		kept = append(kept, c)
	}
	p.Hand = kept
	return nil
}

// AddCards appends cards to the hand
func (p *Player) AddCards(cards []deck.Card) {
	p.Hand = append(p.Hand, cards...)
}

// HoldsCard reports whether at least one copy of c is in hand
func (p *Player) HoldsCard(c deck.Card) bool {
	for _, held := range p.Hand {
		if held == c {
			return true
		}
	}
	return false
}

// CardsAt resolves hand indices to cards, rejecting out-of-range or
// repeated indices. Indices refer to the hand's current order.
func (p *Player) CardsAt(indices []int) ([]deck.Card, error) {
	if len(indices) == 0 {
		return nil, ErrEmptyPlay
	}
	seen := make(map[int]bool, len(indices))
	cards := make([]deck.Card, 0, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(p.Hand) {
			return nil, fmt.Errorf("%w: index %d out of range", ErrCardsNotInHand, i)
		}
		if seen[i] {
			return nil, fmt.Errorf("%w: index %d repeated", ErrCardsNotInHand, i)
		}
		seen[i] = true
		cards = append(cards, p.Hand[i])
	}
	return cards, nil
}
