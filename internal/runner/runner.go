// Package runner drives a game session: it asks the current player's
// agent for a decision and applies exactly one transition per step.
// Agents decide outside the session's lock and under a deadline, so a
// stuck agent can never wedge the game.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/lox/bluffbots/internal/deck"
	"github.com/lox/bluffbots/internal/game"
	"github.com/lox/bluffbots/internal/reaction"
)

const (
	// DefaultAgentTimeout bounds how long one decision may take
	DefaultAgentTimeout = 30 * time.Second
	// DefaultMaxTurns stops a game nobody is winning
	DefaultMaxTurns = 1000
)

var (
	// ErrNoAgent means a seat has no decision source bound
	ErrNoAgent = errors.New("no agent bound for player")
	// ErrMaxTurns means the safety valve ended the game
	ErrMaxTurns = errors.New("max turns reached without a winner")

	errDecisionTimeout = errors.New("decision timed out")
	errUnknownAction   = errors.New("unknown action")
)

// Runner steps one session with one agent per seat
type Runner struct {
	session   *game.Session
	agents    map[string]game.Agent
	events    game.EventSink
	reactions *reaction.Generator
	clock     quartz.Clock
	timeout   time.Duration
	turnDelay time.Duration
	maxTurns  int
	logger    zerolog.Logger
}

// Option configures a Runner during creation
type Option func(*Runner)

// WithEventSink publishes driver events (turn starts, reactions,
// agent failures) to sink. Use the same sink the session publishes to
// so the stream stays in transition order.
func WithEventSink(sink game.EventSink) Option {
	return func(r *Runner) { r.events = sink }
}

// WithReactions adds table talk after challenge resolutions
func WithReactions(g *reaction.Generator) Option {
	return func(r *Runner) { r.reactions = g }
}

// WithClock injects the clock used for agent deadlines and turn
// pacing. Tests pass a quartz mock.
func WithClock(clock quartz.Clock) Option {
	return func(r *Runner) { r.clock = clock }
}

// WithAgentTimeout bounds each agent decision
func WithAgentTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithTurnDelay paces Run for spectators
func WithTurnDelay(d time.Duration) Option {
	return func(r *Runner) { r.turnDelay = d }
}

// WithMaxTurns caps how many transitions Run applies
func WithMaxTurns(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxTurns = n
		}
	}
}

// WithLogger attaches a structured logger
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// NewRunner binds agents to the session's seats. Every seat needs an
// agent before the first Advance.
func NewRunner(session *game.Session, agents map[string]game.Agent, opts ...Option) (*Runner, error) {
	if session == nil {
		panic("runner: session is required")
	}
	r := &Runner{
		session:  session,
		agents:   agents,
		events:   game.NopSink,
		clock:    quartz.NewReal(),
		timeout:  DefaultAgentTimeout,
		maxTurns: DefaultMaxTurns,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, p := range session.Snapshot("").Players {
		if _, ok := agents[p.ID]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoAgent, p.ID)
		}
	}
	return r, nil
}

// Advance performs one driver step: announce the turn, collect one
// decision, apply one transition. An agent that times out, errors, or
// returns an illegal move costs its player the default play, never the
// game's liveness.
func (r *Runner) Advance(ctx context.Context) error {
	if err := r.session.Err(); err != nil {
		return err
	}
	if r.session.Phase() == game.PhaseGameOver {
		return game.ErrGameOver
	}

	currentID := r.session.CurrentPlayerID()
	if currentID == "" {
		return game.ErrGameNotStarted
	}
	view, err := r.session.Observe(currentID)
	if err != nil {
		return err
	}

	r.events.Publish(game.EventTypeTurnStart.String(), game.TurnStartData{
		PlayerID:     view.PlayerID,
		PlayerName:   view.PlayerName,
		ExpectedRank: view.ExpectedRank.Name(),
		TurnNumber:   view.TurnNumber,
		HandCount:    len(view.Hand),
		PileCount:    view.PileCount,
	})

	ag, ok := r.agents[currentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoAgent, currentID)
	}

	decision, err := r.decide(ctx, ag, view)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		decision = r.fallback(view, err.Error())
	}

	if err := r.apply(currentID, view, decision); err != nil {
		if isRejection(err) {
			decision = r.fallback(view, fmt.Sprintf("illegal decision: %v", err))
			return r.apply(currentID, view, decision)
		}
		return err
	}
	return nil
}

// Run steps the game to completion and returns the winner. The
// session is started first if nobody has yet.
func (r *Runner) Run(ctx context.Context) (game.PlayerSummary, error) {
	if r.session.Phase() == game.PhaseWaiting {
		if err := r.session.Start(); err != nil {
			return game.PlayerSummary{}, err
		}
	}

	for {
		if winner, ok := r.session.Winner(); ok {
			return winner, nil
		}
		if r.session.TurnNumber() > r.maxTurns {
			return game.PlayerSummary{}, fmt.Errorf("%w: %d", ErrMaxTurns, r.maxTurns)
		}
		if err := r.Advance(ctx); err != nil {
			return game.PlayerSummary{}, err
		}
		if r.turnDelay > 0 {
			if err := r.pause(ctx, r.turnDelay); err != nil {
				return game.PlayerSummary{}, err
			}
		}
	}
}

// Session returns the session this runner drives
func (r *Runner) Session() *game.Session {
	return r.session
}

type decideResult struct {
	decision game.Decision
	err      error
}

// decide collects one decision under the agent deadline. The timer is
// armed before the agent goroutine starts so a mocked clock always
// sees it.
func (r *Runner) decide(ctx context.Context, ag game.Agent, view game.ObservableState) (game.Decision, error) {
	timedOut := make(chan struct{})
	timer := r.clock.AfterFunc(r.timeout, func() {
		close(timedOut)
	})
	defer timer.Stop()

	dctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan decideResult, 1)
	go func() {
		d, err := ag.Decide(dctx, view)
		results <- decideResult{decision: d, err: err}
	}()

	select {
	case res := <-results:
		if res.err != nil {
			return game.Decision{}, fmt.Errorf("agent: %w", res.err)
		}
		return res.decision, nil
	case <-timedOut:
		return game.Decision{}, errDecisionTimeout
	case <-ctx.Done():
		return game.Decision{}, ctx.Err()
	}
}

// fallback reports the agent failure and substitutes the default play
func (r *Runner) fallback(view game.ObservableState, reason string) game.Decision {
	r.logger.Warn().
		Str("player", view.PlayerID).
		Int("turn", view.TurnNumber).
		Str("reason", reason).
		Msg("Agent failed, applying default action")
	r.events.Publish(game.EventTypeAgentTimeout.String(), game.AgentTimeoutData{
		PlayerID:   view.PlayerID,
		PlayerName: view.PlayerName,
		TurnNumber: view.TurnNumber,
		Reason:     reason,
	})
	return game.DefaultDecision(view)
}

// apply turns a decision into a session transition
func (r *Runner) apply(playerID string, view game.ObservableState, decision game.Decision) error {
	switch decision.Action {
	case game.ActionPlayCards:
		cards, err := cardsAt(view.Hand, decision.CardIndices)
		if err != nil {
			return err
		}
		return r.session.PlayCardsAnnotated(playerID, cards, len(cards), decision.Reasoning)

	case game.ActionCallBS:
		outcome, err := r.session.CallBSAnnotated(playerID, decision.Reasoning)
		if err != nil {
			return err
		}
		r.publishReactions(outcome, decision.Reaction)
		return nil

	default:
		return fmt.Errorf("%w %q", errUnknownAction, decision.Action)
	}
}

// publishReactions emits table talk for a resolved challenge: the
// caller always reacts, and a caught bluffer reacts too.
func (r *Runner) publishReactions(outcome game.ChallengeOutcome, callerReaction string) {
	scenario := reaction.IncorrectCall
	if outcome.WasBluff {
		scenario = reaction.CorrectCall
	}
	if callerReaction == "" && r.reactions != nil {
		callerReaction = r.reactions.Line(scenario)
	}
	if callerReaction != "" {
		r.events.Publish(game.EventTypePlayerReaction.String(), game.PlayerReactionData{
			PlayerID:   outcome.CallerID,
			PlayerName: outcome.CallerName,
			Reaction:   callerReaction,
			Scenario:   scenario.String(),
		})
	}

	if outcome.WasBluff && r.reactions != nil {
		r.events.Publish(game.EventTypePlayerReaction.String(), game.PlayerReactionData{
			PlayerID:   outcome.TargetID,
			PlayerName: outcome.TargetName,
			Reaction:   r.reactions.Line(reaction.CaughtBluffing),
			Scenario:   reaction.CaughtBluffing.String(),
		})
	}
}

// pause waits out the turn delay on the runner's clock
func (r *Runner) pause(ctx context.Context, d time.Duration) error {
	fired := make(chan struct{})
	timer := r.clock.AfterFunc(d, func() {
		close(fired)
	})
	defer timer.Stop()

	select {
	case <-fired:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cardsAt maps decision indices into the hand the agent was shown
func cardsAt(hand []deck.Card, indices []int) ([]deck.Card, error) {
	if len(indices) == 0 {
		return nil, game.ErrEmptyPlay
	}
	cards := make([]deck.Card, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(hand) {
			return nil, fmt.Errorf("%w: index %d out of range", game.ErrCardsNotInHand, idx)
		}
		cards = append(cards, hand[idx])
	}
	return cards, nil
}

// isRejection reports whether err is an illegal decision rather than
// an engine failure. Rejections leave the session untouched, so the
// default play can still be applied.
func isRejection(err error) bool {
	for _, rejection := range []error{
		game.ErrEmptyPlay,
		game.ErrCardsNotInHand,
		game.ErrClaimCountMismatch,
		game.ErrNothingToCall,
		errUnknownAction,
	} {
		if errors.Is(err, rejection) {
			return true
		}
	}
	return false
}
