package game

import (
	"fmt"
	rand "math/rand/v2"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lox/bluffbots/internal/deck"
)

// Phase identifies where a session is in its lifecycle
type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhaseSetup    Phase = "setup"
	PhasePlaying  Phase = "playing"
	PhaseGameOver Phase = "game_over"
)

// Seat names a player joining a session
type Seat struct {
	ID   string
	Name string
}

// Session runs a single game. Every mutation of the game state and the
// center pile is serialized behind one mutex; agent decision-making
// never happens under it. Events publish inside the lock so sequence
// order always matches transition order.
type Session struct {
	mu sync.RWMutex

	id           string
	players      []*Player
	currentIdx   int
	expectedRank deck.Rank
	turnNumber   int
	pile         CenterPile
	phase        Phase
	winner       *Player
	lastAction   string
	poisoned     error

	rng    *rand.Rand
	events EventSink
	logger zerolog.Logger
}

// SessionOption configures a Session during creation
type SessionOption func(*Session)

// WithID overrides the generated game ID
func WithID(id string) SessionOption {
	return func(s *Session) { s.id = id }
}

// WithEventSink attaches the sink that receives emitted events
func WithEventSink(sink EventSink) SessionOption {
	return func(s *Session) { s.events = sink }
}

// WithLogger attaches a structured logger
func WithLogger(logger zerolog.Logger) SessionOption {
	return func(s *Session) { s.logger = logger }
}

// NewSession creates a session in the waiting phase. The RNG is
// required to make shuffles explicit and testing deterministic.
func NewSession(rng *rand.Rand, seats []Seat, opts ...SessionOption) (*Session, error) {
	if rng == nil {
		panic("rng is required for session creation")
	}
	if len(seats) < 2 {
		return nil, ErrTooFewPlayers
	}

	s := &Session{
		id:     uuid.NewString(),
		phase:  PhaseWaiting,
		rng:    rng,
		events: NopSink,
		logger: zerolog.Nop(),
	}

	ids := make(map[string]bool, len(seats))
	for _, seat := range seats {
		if seat.ID == "" {
			return nil, fmt.Errorf("player id must not be empty")
		}
		if ids[seat.ID] {
			return nil, fmt.Errorf("duplicate player id %q", seat.ID)
		}
		ids[seat.ID] = true
		name := seat.Name
		if name == "" {
			name = seat.ID
		}
		s.players = append(s.players, &Player{ID: seat.ID, Name: name})
	}

	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("game_id", s.id).Logger()
	return s, nil
}

// ID returns the session's game ID
func (s *Session) ID() string {
	return s.id
}

// Phase returns the current lifecycle phase
func (s *Session) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// TurnNumber returns the current turn counter
func (s *Session) TurnNumber() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.turnNumber
}

// CurrentPlayerID returns the player whose decision is pending, or ""
// outside the playing phase.
func (s *Session) CurrentPlayerID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.phase != PhasePlaying {
		return ""
	}
	return s.players[s.currentIdx].ID
}

// Winner returns the winning player once the game is over
func (s *Session) Winner() (PlayerSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.winner == nil {
		return PlayerSummary{}, false
	}
	return PlayerSummary{ID: s.winner.ID, Name: s.winner.Name, HandCount: s.winner.HandSize()}, true
}

// Err reports the invariant violation that poisoned the session, if any
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.poisoned
}

// Start shuffles, deals round-robin, and opens play. The holder of the
// Ace of Spades acts first. Starting a session that is already playing
// is refused rather than resetting it.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.poisoned != nil {
		return ErrSessionPoisoned
	}
	switch s.phase {
	case PhasePlaying, PhaseSetup:
		return ErrGameInProgress
	case PhaseGameOver:
		return ErrGameOver
	}

	s.phase = PhaseSetup
	d := deck.New(s.rng)
	d.Shuffle()
	hands := d.DealRoundRobin(len(s.players))
	for i, p := range s.players {
		p.Hand = hands[i]
	}

	s.currentIdx = 0
	for i, p := range s.players {
		if p.HoldsCard(deck.AceOfSpades) {
			s.currentIdx = i
			break
		}
	}

	s.expectedRank = deck.Ace
	s.turnNumber = 1
	s.winner = nil
	s.lastAction = "Game started"
	s.phase = PhasePlaying

	if err := s.checkConservationLocked(); err != nil {
		return err
	}

	starter := s.players[s.currentIdx]
	s.events.Publish(EventTypeGameStart.String(), GameStartData{
		GameID:         s.id,
		Players:        s.playerSummariesLocked(),
		StartingPlayer: starter.ID,
		ExpectedRank:   s.expectedRank.Name(),
	})
	s.logger.Info().
		Int("players", len(s.players)).
		Str("starting_player", starter.ID).
		Msg("Game started")
	return nil
}

// PlayCards plays cards from the acting player's hand under the claim
// the rotation demands. See PlayCardsAnnotated.
func (s *Session) PlayCards(playerID string, cards []deck.Card, claimedCount int) error {
	return s.PlayCardsAnnotated(playerID, cards, claimedCount, "")
}

// PlayCardsAnnotated applies one play. The claimed rank is always the
// current expected rank; players never choose it, only how many cards
// they pretend are that rank. On success the cards move to the pile,
// the expected rank and turn advance, and play passes left. A hand
// emptied by the play wins immediately, before the turn advances.
// Rejected plays leave all state untouched.
func (s *Session) PlayCardsAnnotated(playerID string, cards []deck.Card, claimedCount int, reasoning string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.poisoned != nil {
		return ErrSessionPoisoned
	}
	if err := s.requirePlayingLocked(); err != nil {
		return err
	}
	p, err := s.playerByIDLocked(playerID)
	if err != nil {
		return err
	}
	if s.players[s.currentIdx] != p {
		return fmt.Errorf("%w: %s is to act", ErrNotYourTurn, s.players[s.currentIdx].ID)
	}
	if len(cards) == 0 {
		return ErrEmptyPlay
	}
	if claimedCount != len(cards) {
		return fmt.Errorf("%w: claimed %d, played %d", ErrClaimCountMismatch, claimedCount, len(cards))
	}
	if err := p.RemoveCards(cards); err != nil {
		return err
	}

	actual := make([]deck.Card, len(cards))
	copy(actual, cards)
	claim := Claim{
		PlayerID:     p.ID,
		PlayerName:   p.Name,
		ClaimedRank:  s.expectedRank,
		ClaimedCount: claimedCount,
		ActualCards:  actual,
		TurnNumber:   s.turnNumber,
	}
	s.pile.Add(claim)

	claimedRank := claim.ClaimedRank
	turn := s.turnNumber
	s.expectedRank = s.expectedRank.Next()
	s.turnNumber++
	s.lastAction = fmt.Sprintf("%s played %s", p.Name, deck.ClaimString(claimedCount, claimedRank))

	won := p.HandSize() == 0
	if !won {
		s.currentIdx = (s.currentIdx + 1) % len(s.players)
	}

	if err := s.checkConservationLocked(); err != nil {
		return err
	}

	s.events.Publish(EventTypeCardPlay.String(), CardPlayData{
		PlayerID:      p.ID,
		PlayerName:    p.Name,
		ClaimedRank:   claimedRank.Name(),
		ClaimedCount:  claimedCount,
		ActualCards:   actual,
		WasTruthful:   !claim.WasBluff(),
		HandRemaining: p.HandSize(),
		PileCount:     s.pile.CardCount(),
		NextPlayer:    s.players[s.currentIdx].ID,
		NextRank:      s.expectedRank.Name(),
		TurnNumber:    turn,
		Reasoning:     reasoning,
	})
	s.logger.Debug().
		Str("player", p.ID).
		Str("claimed", deck.ClaimString(claimedCount, claimedRank)).
		Bool("truthful", !claim.WasBluff()).
		Int("turn", turn).
		Msg("Cards played")

	if won {
		s.declareWinnerLocked(p)
	}
	return nil
}

// ChallengeOutcome reports how a resolved challenge went
type ChallengeOutcome struct {
	CallerID   string
	CallerName string
	TargetID   string
	TargetName string
	WasBluff   bool
	PileSize   int
}

// CallBS challenges the most recent claim. See CallBSAnnotated.
func (s *Session) CallBS(callerID string) error {
	_, err := s.CallBSAnnotated(callerID, "")
	return err
}

// CallBSAnnotated resolves a challenge against the top claim. Only the
// current player may challenge, which also makes challenging your own
// claim impossible: playing advances the turn away from you. A bluff
// sends the whole pile to the claim's owner; a truthful claim sends it
// to the caller. Either way the pile's recipient acts next and the
// expected rank stays where the last play left it.
func (s *Session) CallBSAnnotated(callerID string, reasoning string) (ChallengeOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.poisoned != nil {
		return ChallengeOutcome{}, ErrSessionPoisoned
	}
	if err := s.requirePlayingLocked(); err != nil {
		return ChallengeOutcome{}, err
	}
	caller, err := s.playerByIDLocked(callerID)
	if err != nil {
		return ChallengeOutcome{}, err
	}
	if s.players[s.currentIdx] != caller {
		return ChallengeOutcome{}, fmt.Errorf("%w: %s is to act", ErrNotYourTurn, s.players[s.currentIdx].ID)
	}
	top, ok := s.pile.Top()
	if !ok {
		return ChallengeOutcome{}, ErrNothingToCall
	}
	target, err := s.playerByIDLocked(top.PlayerID)
	if err != nil {
		return ChallengeOutcome{}, err
	}

	wasBluff := top.WasBluff()
	penalty := s.pile.CardCount()
	revealed := s.pile.Take()

	receiver := caller
	if wasBluff {
		receiver = target
	}
	receiver.AddCards(revealed)
	s.currentIdx = s.indexOfLocked(receiver)

	turn := s.turnNumber
	s.turnNumber++
	if wasBluff {
		s.lastAction = fmt.Sprintf("%s correctly called BS on %s", caller.Name, target.Name)
	} else {
		s.lastAction = fmt.Sprintf("%s incorrectly called BS on %s", caller.Name, target.Name)
	}

	if err := s.checkConservationLocked(); err != nil {
		return ChallengeOutcome{}, err
	}

	s.events.Publish(EventTypeBSCall.String(), BSCallData{
		CallerID:      caller.ID,
		CallerName:    caller.Name,
		TargetID:      target.ID,
		TargetName:    target.Name,
		ClaimedRank:   top.ClaimedRank.Name(),
		ClaimedCount:  top.ClaimedCount,
		WasBluff:      wasBluff,
		RevealedCards: revealed,
		PenaltyCards:  penalty,
		PileReceiver:  receiver.ID,
		NextPlayer:    receiver.ID,
		TurnNumber:    turn,
		Reasoning:     reasoning,
	})
	s.logger.Debug().
		Str("caller", caller.ID).
		Str("target", target.ID).
		Bool("was_bluff", wasBluff).
		Int("penalty_cards", penalty).
		Int("turn", turn).
		Msg("BS called")

	// Receiving cards can never empty a hand; this is the audit that
	// proves it rather than an expected branch.
	for _, p := range s.players {
		if p.HandSize() == 0 {
			s.declareWinnerLocked(p)
			break
		}
	}
	return ChallengeOutcome{
		CallerID:   caller.ID,
		CallerName: caller.Name,
		TargetID:   target.ID,
		TargetName: target.Name,
		WasBluff:   wasBluff,
		PileSize:   penalty,
	}, nil
}

func (s *Session) declareWinnerLocked(p *Player) {
	s.winner = p
	s.phase = PhaseGameOver
	s.lastAction = fmt.Sprintf("%s wins!", p.Name)
	s.events.Publish(EventTypeGameOver.String(), GameOverData{
		GameID:     s.id,
		WinnerID:   p.ID,
		WinnerName: p.Name,
		TurnNumber: s.turnNumber,
	})
	s.logger.Info().
		Str("winner", p.ID).
		Int("turns", s.turnNumber).
		Msg("Game over")
}

func (s *Session) requirePlayingLocked() error {
	switch s.phase {
	case PhaseWaiting, PhaseSetup:
		return ErrGameNotStarted
	case PhaseGameOver:
		return ErrGameOver
	}
	return nil
}

func (s *Session) playerByIDLocked(id string) (*Player, error) {
	for _, p := range s.players {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPlayer, id)
}

func (s *Session) indexOfLocked(target *Player) int {
	for i, p := range s.players {
		if p == target {
			return i
		}
	}
	return 0
}

func (s *Session) playerSummariesLocked() []PlayerSummary {
	out := make([]PlayerSummary, len(s.players))
	for i, p := range s.players {
		out[i] = PlayerSummary{ID: p.ID, Name: p.Name, HandCount: p.HandSize()}
	}
	return out
}

// checkConservationLocked verifies that every card dealt is still in a
// hand or the pile. Failure poisons the session: the single-writer
// discipline was broken somewhere and continuing would corrupt the
// stream, so the game aborts rather than playing on.
func (s *Session) checkConservationLocked() error {
	total := s.pile.CardCount()
	for _, p := range s.players {
		total += p.HandSize()
	}
	if total != deck.Size {
		s.poisoned = fmt.Errorf("%w: %d cards in play, want %d", ErrInvariantViolated, total, deck.Size)
		s.phase = PhaseGameOver
		s.logger.Error().
			Int("cards", total).
			Msg("Card conservation violated, aborting game")
		return s.poisoned
	}
	return nil
}
