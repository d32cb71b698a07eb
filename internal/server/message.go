package server

import (
	"encoding/json"
	"time"

	"github.com/lox/bluffbots/internal/game"
	"github.com/lox/bluffbots/internal/stream"
)

// Record type names that appear on the wire in addition to the game's
// own event types.
const (
	recordTypeAction   = "game_action"
	recordTypeSnapshot = "snapshot"
)

// actionTypes are the per-turn event types that ride the game_action
// envelope. Lifecycle events (game_start, game_over, agent_timeout)
// go out as top-level records instead.
var actionTypes = map[string]bool{
	game.EventTypeTurnStart.String():      true,
	game.EventTypeCardPlay.String():       true,
	game.EventTypeBSCall.String():         true,
	game.EventTypePlayerReaction.String(): true,
}

// ActionRecord is the envelope for per-turn game actions
type ActionRecord struct {
	Type      string     `json:"type"`
	Timestamp time.Time  `json:"timestamp"`
	Sequence  uint64     `json:"sequence"`
	Action    ActionBody `json:"action"`
}

// ActionBody nests the concrete action and its payload
type ActionBody struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// EncodeEvent renders a stream event as a self-describing wire record
func EncodeEvent(e stream.Event) ([]byte, error) {
	if actionTypes[e.Type] {
		return json.Marshal(ActionRecord{
			Type:      recordTypeAction,
			Timestamp: e.Timestamp,
			Sequence:  e.Sequence,
			Action:    ActionBody{Type: e.Type, Data: e.Payload},
		})
	}
	return encodeTopLevel(e.Type, e.Timestamp, e.Sequence, e.Payload)
}

// EncodeSnapshot renders a state snapshot as the priming record sent
// to clients resuming from beyond the retention window. The sequence
// tells the client where the live stream picks up.
func EncodeSnapshot(snap game.Snapshot, seq uint64) ([]byte, error) {
	return encodeTopLevel(recordTypeSnapshot, time.Now(), seq, snap)
}

// encodeTopLevel inlines the payload's fields next to the record
// header so lifecycle records stay flat on the wire.
func encodeTopLevel(recordType string, ts time.Time, seq uint64, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	record := make(map[string]any)
	if len(body) > 0 && body[0] == '{' {
		if err := json.Unmarshal(body, &record); err != nil {
			return nil, err
		}
	}
	record["type"] = recordType
	record["timestamp"] = ts
	record["sequence"] = seq
	return json.Marshal(record)
}

// CommandResult is the uniform response body for command endpoints
type CommandResult struct {
	Success bool          `json:"success"`
	Data    any           `json:"data,omitempty"`
	Error   *CommandError `json:"error,omitempty"`
}

// CommandError describes a refused or failed command
type CommandError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func resultOK(data any) CommandResult {
	return CommandResult{Success: true, Data: data}
}

func resultErr(code, message string) CommandResult {
	return CommandResult{Success: false, Error: &CommandError{Code: code, Message: message}}
}

// CreateGameRequest starts a game. ID is optional; the server
// generates one when absent. Seed overrides the configured seed for
// this game. Auto defaults to true; pass false to step the game by
// hand through the advance endpoint.
type CreateGameRequest struct {
	ID   string `json:"id,omitempty"`
	Seed *int64 `json:"seed,omitempty"`
	Auto *bool  `json:"auto,omitempty"`
}

// CreateGameResponse announces a hosted game
type CreateGameResponse struct {
	GameID  string               `json:"game_id"`
	Players []game.PlayerSummary `json:"players"`
	Auto    bool                 `json:"auto"`
}

// AdvanceResponse reports the session after one driver step
type AdvanceResponse struct {
	GameID     string     `json:"game_id"`
	Phase      game.Phase `json:"phase"`
	TurnNumber int        `json:"turn_number"`
	Winner     string     `json:"winner,omitempty"`
}
