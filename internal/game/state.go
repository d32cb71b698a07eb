package game

import (
	"github.com/lox/bluffbots/internal/deck"
)

// Snapshot is a point-in-time view of a session for one viewer, used
// for initial sync and catch-up; the event stream remains the source
// of truth. Other players appear as hand counts and the pile as a card
// count. Only the viewer's own hand is included.
type Snapshot struct {
	GameID        string          `json:"game_id"`
	Phase         Phase           `json:"game_phase"`
	Players       []PlayerSummary `json:"players"`
	CurrentPlayer string          `json:"current_player,omitempty"`
	ExpectedRank  string          `json:"current_expected_rank"`
	PileCount     int             `json:"center_pile_count"`
	TurnNumber    int             `json:"turn_number"`
	LastAction    string          `json:"last_action"`
	Winner        string          `json:"winner,omitempty"`
	Hand          []deck.Card     `json:"hand,omitempty"`
}

// Snapshot returns the session reduced to what viewerID may see. An
// empty or unknown viewer gets the spectator view with no hand.
func (s *Session) Snapshot(viewerID string) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		GameID:       s.id,
		Phase:        s.phase,
		Players:      s.playerSummariesLocked(),
		ExpectedRank: s.expectedRank.Name(),
		PileCount:    s.pile.CardCount(),
		TurnNumber:   s.turnNumber,
		LastAction:   s.lastAction,
	}
	if s.phase == PhasePlaying {
		snap.CurrentPlayer = s.players[s.currentIdx].ID
	}
	if s.winner != nil {
		snap.Winner = s.winner.ID
	}
	if viewerID != "" {
		if p, err := s.playerByIDLocked(viewerID); err == nil {
			hand := make([]deck.Card, len(p.Hand))
			copy(hand, p.Hand)
			snap.Hand = hand
		}
	}
	return snap
}

// Observe builds the decision-time view for playerID: their own hand
// in full with stable indices, other players as counts, and the pile
// as its announced claim history without actual cards.
func (s *Session) Observe(playerID string) (ObservableState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, err := s.playerByIDLocked(playerID)
	if err != nil {
		return ObservableState{}, err
	}

	hand := make([]deck.Card, len(p.Hand))
	copy(hand, p.Hand)

	claims := make([]ClaimSummary, 0, s.pile.ClaimCount())
	for _, c := range s.pile.Claims() {
		claims = append(claims, ClaimSummary{
			PlayerID:   c.PlayerID,
			PlayerName: c.PlayerName,
			Rank:       c.ClaimedRank,
			Count:      c.ClaimedCount,
			TurnNumber: c.TurnNumber,
		})
	}

	return ObservableState{
		PlayerID:     p.ID,
		PlayerName:   p.Name,
		Hand:         hand,
		Players:      s.playerSummariesLocked(),
		ExpectedRank: s.expectedRank,
		PileCount:    s.pile.CardCount(),
		Claims:       claims,
		TurnNumber:   s.turnNumber,
		LastAction:   s.lastAction,
		CanChallenge: s.pile.ClaimCount() > 0,
	}, nil
}
