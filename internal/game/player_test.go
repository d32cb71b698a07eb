package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/bluffbots/internal/deck"
)

func TestHasCardsCountsDuplicates(t *testing.T) {
	p := &Player{ID: "p1", Hand: []deck.Card{
		deck.NewCard(deck.Spades, deck.Ace),
		deck.NewCard(deck.Hearts, deck.Seven),
	}}

	assert.True(t, p.HasCards([]deck.Card{deck.NewCard(deck.Spades, deck.Ace)}))
	assert.False(t, p.HasCards([]deck.Card{deck.NewCard(deck.Clubs, deck.Ace)}), "different suit is a different card")
	assert.False(t, p.HasCards([]deck.Card{
		deck.NewCard(deck.Spades, deck.Ace),
		deck.NewCard(deck.Spades, deck.Ace),
	}), "two requests for one copy must fail")
}

func TestRemoveCardsIsAtomic(t *testing.T) {
	hand := []deck.Card{
		deck.NewCard(deck.Spades, deck.Ace),
		deck.NewCard(deck.Hearts, deck.Seven),
		deck.NewCard(deck.Clubs, deck.Seven),
	}
	p := &Player{ID: "p1", Hand: append([]deck.Card{}, hand...)}

	err := p.RemoveCards([]deck.Card{
		deck.NewCard(deck.Hearts, deck.Seven),
		deck.NewCard(deck.Diamonds, deck.Queen),
	})
	require.ErrorIs(t, err, ErrCardsNotInHand)
	assert.Equal(t, hand, p.Hand, "failed removal must not touch the hand")

	err = p.RemoveCards([]deck.Card{deck.NewCard(deck.Hearts, deck.Seven)})
	require.NoError(t, err)
	assert.Equal(t, 2, p.HandSize())
	assert.True(t, p.HoldsCard(deck.NewCard(deck.Clubs, deck.Seven)), "only the requested copy is removed")
}

func TestCardsAtValidatesIndices(t *testing.T) {
	p := &Player{ID: "p1", Hand: []deck.Card{
		deck.NewCard(deck.Spades, deck.Ace),
		deck.NewCard(deck.Hearts, deck.Seven),
	}}

	cards, err := p.CardsAt([]int{1, 0})
	require.NoError(t, err)
	assert.Equal(t, []deck.Card{
		deck.NewCard(deck.Hearts, deck.Seven),
		deck.NewCard(deck.Spades, deck.Ace),
	}, cards)

	_, err = p.CardsAt(nil)
	assert.ErrorIs(t, err, ErrEmptyPlay)

	_, err = p.CardsAt([]int{2})
	assert.ErrorIs(t, err, ErrCardsNotInHand)

	_, err = p.CardsAt([]int{-1})
	assert.ErrorIs(t, err, ErrCardsNotInHand)

	_, err = p.CardsAt([]int{0, 0})
	assert.ErrorIs(t, err, ErrCardsNotInHand, "repeated index would play one card twice")
}
