package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/bluffbots/internal/deck"
)

func TestObserveShowsOwnHandAndOthersAsCounts(t *testing.T) {
	aceS := deck.NewCard(deck.Spades, deck.Ace)
	kingC := deck.NewCard(deck.Clubs, deck.King)
	s := testSession(t, [][]deck.Card{{aceS, kingC}, nil})

	view, err := s.Observe("p1")
	require.NoError(t, err)

	assert.Equal(t, "p1", view.PlayerID)
	assert.Equal(t, []deck.Card{aceS, kingC}, view.Hand)
	assert.Equal(t, deck.Ace, view.ExpectedRank)
	assert.False(t, view.CanChallenge, "nothing to challenge before the first play")

	require.Len(t, view.Players, 2)
	assert.Equal(t, 2, view.Players[0].HandCount)
	assert.Equal(t, 50, view.Players[1].HandCount, "other players appear as counts only")

	_, err = s.Observe("ghost")
	assert.ErrorIs(t, err, ErrUnknownPlayer)
}

func TestObserveExposesClaimHistoryWithoutActualCards(t *testing.T) {
	kingS := deck.NewCard(deck.Spades, deck.King)
	twoH := deck.NewCard(deck.Hearts, deck.Two)
	s := testSession(t, [][]deck.Card{{kingS, twoH}, nil})

	require.NoError(t, s.PlayCards("p1", []deck.Card{kingS}, 1))

	view, err := s.Observe("p2")
	require.NoError(t, err)

	assert.True(t, view.CanChallenge)
	assert.Equal(t, 1, view.PileCount)
	require.Len(t, view.Claims, 1)
	claim := view.Claims[0]
	assert.Equal(t, "p1", claim.PlayerID)
	assert.Equal(t, deck.Ace, claim.Rank, "only the announcement is visible")
	assert.Equal(t, 1, claim.Count)
}

func TestObserveHandIsACopy(t *testing.T) {
	aceS := deck.NewCard(deck.Spades, deck.Ace)
	twoH := deck.NewCard(deck.Hearts, deck.Two)
	s := testSession(t, [][]deck.Card{{aceS, twoH}, nil})

	view, err := s.Observe("p1")
	require.NoError(t, err)
	view.Hand[0] = deck.NewCard(deck.Clubs, deck.Nine)

	assert.True(t, s.players[0].HoldsCard(aceS), "mutating the view must not touch the hand")
}

func TestSnapshotRedactsByViewer(t *testing.T) {
	aceS := deck.NewCard(deck.Spades, deck.Ace)
	twoH := deck.NewCard(deck.Hearts, deck.Two)
	s := testSession(t, [][]deck.Card{{aceS, twoH}, nil}, WithID("game-1"))

	require.NoError(t, s.PlayCards("p1", []deck.Card{aceS}, 1))

	spectator := s.Snapshot("")
	assert.Equal(t, "game-1", spectator.GameID)
	assert.Equal(t, PhasePlaying, spectator.Phase)
	assert.Nil(t, spectator.Hand, "spectators see no hand")
	assert.Equal(t, 1, spectator.PileCount, "the pile is a count, not cards")
	assert.Equal(t, "p2", spectator.CurrentPlayer)
	assert.Equal(t, "2", spectator.ExpectedRank)
	assert.Equal(t, 2, spectator.TurnNumber)

	own := s.Snapshot("p1")
	assert.Equal(t, []deck.Card{twoH}, own.Hand, "a player sees their own remaining hand")

	unknown := s.Snapshot("ghost")
	assert.Nil(t, unknown.Hand)
}

func TestSnapshotReportsWinner(t *testing.T) {
	aceS := deck.NewCard(deck.Spades, deck.Ace)
	s := testSession(t, [][]deck.Card{{aceS}, nil})

	require.NoError(t, s.PlayCards("p1", []deck.Card{aceS}, 1))

	snap := s.Snapshot("")
	assert.Equal(t, PhaseGameOver, snap.Phase)
	assert.Equal(t, "p1", snap.Winner)
	assert.Empty(t, snap.CurrentPlayer, "no one is to act after game over")
}

func TestDefaultDecisionPlaysSingleLowestCard(t *testing.T) {
	view := ObservableState{
		Hand: []deck.Card{
			deck.NewCard(deck.Spades, deck.King),
			deck.NewCard(deck.Hearts, deck.Three),
			deck.NewCard(deck.Clubs, deck.Jack),
		},
	}

	d := DefaultDecision(view)
	assert.Equal(t, ActionPlayCards, d.Action)
	assert.Equal(t, []int{1}, d.CardIndices, "lowest rank wins the tiebreak")
}
