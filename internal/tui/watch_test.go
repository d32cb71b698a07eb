package tui

import (
	"encoding/json"
	"io"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/bluffbots/internal/deck"
	"github.com/lox/bluffbots/internal/game"
	"github.com/lox/bluffbots/internal/server"
	"github.com/lox/bluffbots/internal/stream"
)

func TestMain(m *testing.M) {
	// Renders must be byte-stable regardless of the test terminal
	lipgloss.SetColorProfile(termenv.Ascii)
	m.Run()
}

func testModel() *Model {
	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
	return NewModel("game-1", make(chan Record), logger)
}

// recordFrom runs an event through the real wire encoder so the model
// sees exactly what a spectator socket delivers.
func recordFrom(t *testing.T, e stream.Event) Record {
	t.Helper()
	data, err := server.EncodeEvent(e)
	require.NoError(t, err)
	var record Record
	require.NoError(t, json.Unmarshal(data, &record))
	return record
}

func gameStartRecord(t *testing.T) Record {
	return recordFrom(t, stream.Event{
		Sequence:  1,
		Type:      game.EventTypeGameStart.String(),
		Timestamp: time.Now(),
		Payload: game.GameStartData{
			GameID: "game-1",
			Players: []game.PlayerSummary{
				{ID: "alice", Name: "alice", HandCount: 18},
				{ID: "bob", Name: "bob", HandCount: 17},
				{ID: "carol", Name: "carol", HandCount: 17},
			},
			StartingPlayer: "alice",
			ExpectedRank:   "Ace",
		},
	})
}

func TestRecordUnwrap(t *testing.T) {
	t.Run("action envelope", func(t *testing.T) {
		record := recordFrom(t, stream.Event{
			Sequence: 3,
			Type:     game.EventTypeCardPlay.String(),
			Payload:  game.CardPlayData{PlayerID: "alice", ClaimedRank: "Ace"},
		})

		assert.Equal(t, "game_action", record.Kind())
		assert.Equal(t, uint64(3), record.Sequence())

		kind, data := record.Unwrap()
		assert.Equal(t, "card_play", kind)
		assert.Equal(t, "alice", data["player_id"])
	})

	t.Run("flat lifecycle record", func(t *testing.T) {
		record := recordFrom(t, stream.Event{
			Sequence: 9,
			Type:     game.EventTypeGameOver.String(),
			Payload:  game.GameOverData{WinnerID: "bob", WinnerName: "bob"},
		})

		kind, data := record.Unwrap()
		assert.Equal(t, "game_over", kind)
		assert.Equal(t, "bob", data["winner_id"])
	})
}

func TestModelTracksScoreboard(t *testing.T) {
	m := testModel()
	m.apply(gameStartRecord(t))

	require.Len(t, m.players, 3)
	assert.Equal(t, 1, m.turn)
	assert.Equal(t, "Ace", m.expected)
	assert.Equal(t, "alice", m.current)
	assert.Equal(t, 18, m.players[0].Cards)

	m.apply(recordFrom(t, stream.Event{
		Sequence: 2,
		Type:     game.EventTypeCardPlay.String(),
		Payload: game.CardPlayData{
			PlayerID:     "alice",
			PlayerName:   "alice",
			ClaimedRank:  "Ace",
			ClaimedCount: 2,
			ActualCards: []deck.Card{
				{Suit: deck.Spades, Rank: deck.Ace},
				{Suit: deck.Hearts, Rank: deck.Two},
			},
			WasTruthful:   false,
			HandRemaining: 16,
			PileCount:     2,
			NextPlayer:    "bob",
			NextRank:      "2",
			TurnNumber:    1,
		},
	}))

	assert.Equal(t, 16, m.players[0].Cards)
	assert.Equal(t, 2, m.pile)
	assert.Equal(t, "2", m.expected)
	assert.Equal(t, "bob", m.current)
	assert.Equal(t, 2, m.turn)

	// Caught bluff: the pile lands on the target and they act next
	m.apply(recordFrom(t, stream.Event{
		Sequence: 3,
		Type:     game.EventTypeBSCall.String(),
		Payload: game.BSCallData{
			CallerID:     "bob",
			CallerName:   "bob",
			TargetID:     "alice",
			TargetName:   "alice",
			ClaimedRank:  "Ace",
			ClaimedCount: 2,
			WasBluff:     true,
			PenaltyCards: 2,
			PileReceiver: "alice",
			NextPlayer:   "alice",
			TurnNumber:   2,
		},
	}))

	assert.Equal(t, 18, m.players[0].Cards)
	assert.Equal(t, 0, m.pile)
	assert.Equal(t, "alice", m.current)
	assert.Equal(t, 3, m.turn)
	assert.Equal(t, "2", m.expected, "a challenge never moves the rank")

	m.apply(recordFrom(t, stream.Event{
		Sequence: 4,
		Type:     game.EventTypeGameOver.String(),
		Payload:  game.GameOverData{WinnerID: "bob", WinnerName: "bob", TurnNumber: 41},
	}))

	assert.Equal(t, "bob", m.winner)
}

func TestModelFeedLines(t *testing.T) {
	m := testModel()
	m.apply(gameStartRecord(t))
	m.apply(recordFrom(t, stream.Event{
		Sequence: 2,
		Type:     game.EventTypeBSCall.String(),
		Payload: game.BSCallData{
			CallerName:   "carol",
			TargetName:   "alice",
			WasBluff:     true,
			PenaltyCards: 4,
			PileReceiver: "alice",
			NextPlayer:   "alice",
			TurnNumber:   5,
		},
	}))
	m.apply(recordFrom(t, stream.Event{
		Sequence: 3,
		Type:     game.EventTypePlayerReaction.String(),
		Payload:  game.PlayerReactionData{PlayerName: "alice", Reaction: "unlucky"},
	}))

	require.Len(t, m.lines, 3)
	assert.Contains(t, m.lines[0], "Game on: alice, bob, carol")
	assert.Contains(t, m.lines[1], "carol calls out alice")
	assert.Contains(t, m.lines[1], "caught bluffing")
	assert.Contains(t, m.lines[2], `"unlucky"`)
}

func TestModelSnapshotResume(t *testing.T) {
	snap := game.Snapshot{
		GameID: "game-1",
		Phase:  game.PhasePlaying,
		Players: []game.PlayerSummary{
			{ID: "alice", Name: "alice", HandCount: 9},
			{ID: "bob", Name: "bob", HandCount: 12},
		},
		CurrentPlayer: "bob",
		ExpectedRank:  "Queen",
		PileCount:     31,
		TurnNumber:    27,
	}
	data, err := server.EncodeSnapshot(snap, 60)
	require.NoError(t, err)
	var record Record
	require.NoError(t, json.Unmarshal(data, &record))

	m := testModel()
	m.apply(record)

	require.Len(t, m.players, 2)
	assert.Equal(t, 27, m.turn)
	assert.Equal(t, "Queen", m.expected)
	assert.Equal(t, 31, m.pile)
	assert.Equal(t, "bob", m.current)
	assert.Contains(t, m.lines[0], "resumed from snapshot at turn 27")
}

func TestModelView(t *testing.T) {
	m := testModel()

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = updated.(*Model)
	m.apply(gameStartRecord(t))

	view := m.View()
	assert.Contains(t, view, "bluffbots")
	assert.Contains(t, view, "alice")
	assert.Contains(t, view, "turn 1")
}

func TestModelQuitKeys(t *testing.T) {
	m := testModel()

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.True(t, updated.(*Model).quitting)
	assert.Empty(t, updated.(*Model).View())
}

func TestModelStreamEnd(t *testing.T) {
	records := make(chan Record)
	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
	m := NewModel("game-1", records, logger)

	close(records)
	msg := m.nextRecord()()
	require.IsType(t, streamEndMsg{}, msg)

	updated, _ := m.Update(msg)
	m = updated.(*Model)
	assert.True(t, m.ended)
	assert.Contains(t, m.lines[len(m.lines)-1], "stream closed")
}
