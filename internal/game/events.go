package game

import (
	"github.com/lox/bluffbots/internal/deck"
)

// EventSink receives the payload of every event a session emits as
// transitions apply. The stream package's Log satisfies this. Sessions
// publish while holding their own mutex; sinks must not call back into
// the session.
type EventSink interface {
	Publish(eventType string, payload any)
}

// NopSink drops events, for sessions and drivers run without a stream
// attached.
var NopSink EventSink = nopSink{}

type nopSink struct{}

func (nopSink) Publish(string, any) {}

// PlayerSummary is the public view of a seat: identity and hand count,
// never cards.
type PlayerSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	HandCount int    `json:"hand_count"`
}

// GameStartData announces the deal
type GameStartData struct {
	GameID         string          `json:"game_id"`
	Players        []PlayerSummary `json:"players"`
	StartingPlayer string          `json:"starting_player"`
	ExpectedRank   string          `json:"expected_rank"`
}

// TurnStartData announces whose decision is pending
type TurnStartData struct {
	PlayerID     string `json:"player_id"`
	PlayerName   string `json:"player_name"`
	ExpectedRank string `json:"expected_rank"`
	TurnNumber   int    `json:"turn_number"`
	HandCount    int    `json:"hand_count"`
	PileCount    int    `json:"pile_count"`
}

// CardPlayData records an accepted play. ActualCards are the ground
// truth and are visible to stream observers; hiding them from other
// players' decision logic happens at the ObservableState boundary.
type CardPlayData struct {
	PlayerID      string      `json:"player_id"`
	PlayerName    string      `json:"player_name"`
	ClaimedRank   string      `json:"claimed_rank"`
	ClaimedCount  int         `json:"claimed_count"`
	ActualCards   []deck.Card `json:"actual_cards"`
	WasTruthful   bool        `json:"was_truthful"`
	HandRemaining int         `json:"hand_remaining"`
	PileCount     int         `json:"pile_count"`
	NextPlayer    string      `json:"next_player"`
	NextRank      string      `json:"next_expected_rank"`
	TurnNumber    int         `json:"turn_number"`
	Reasoning     string      `json:"reasoning,omitempty"`
}

// BSCallData records a resolved challenge. The full pile is revealed
// so observers who never saw the private plays can verify the outcome.
type BSCallData struct {
	CallerID      string      `json:"caller_id"`
	CallerName    string      `json:"caller_name"`
	TargetID      string      `json:"target_id"`
	TargetName    string      `json:"target_name"`
	ClaimedRank   string      `json:"claimed_rank"`
	ClaimedCount  int         `json:"claimed_count"`
	WasBluff      bool        `json:"was_bluff"`
	RevealedCards []deck.Card `json:"revealed_cards"`
	PenaltyCards  int         `json:"penalty_cards"`
	PileReceiver  string      `json:"pile_receiver"`
	NextPlayer    string      `json:"next_player"`
	TurnNumber    int         `json:"turn_number"`
	Reasoning     string      `json:"reasoning,omitempty"`
}

// PlayerReactionData carries a free-text reaction to a challenge
// outcome. The text is opaque: nothing downstream parses it.
type PlayerReactionData struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Reaction   string `json:"reaction"`
	Scenario   string `json:"scenario"`
}

// GameOverData announces the winner
type GameOverData struct {
	GameID     string `json:"game_id"`
	WinnerID   string `json:"winner_id"`
	WinnerName string `json:"winner_name"`
	TurnNumber int    `json:"turn_number"`
}

// AgentTimeoutData reports a decision that had to be made for a player
type AgentTimeoutData struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	TurnNumber int    `json:"turn_number"`
	Reason     string `json:"reason"`
}
