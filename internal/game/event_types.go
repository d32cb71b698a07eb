package game

// EventType represents a game event type with type safety
type EventType string

// EventType constants for game domain events. Every accepted state
// transition emits exactly one of these; turn_start and
// player_reaction are driver-level annotations around transitions.
const (
	EventTypeGameStart      EventType = "game_start"
	EventTypeTurnStart      EventType = "turn_start"
	EventTypeCardPlay       EventType = "card_play"
	EventTypeBSCall         EventType = "bs_call"
	EventTypePlayerReaction EventType = "player_reaction"
	EventTypeGameOver       EventType = "game_over"
	EventTypeAgentTimeout   EventType = "agent_timeout"
)

// String returns the string representation of the event type
func (et EventType) String() string {
	return string(et)
}
