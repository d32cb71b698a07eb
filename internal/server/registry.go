package server

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lox/bluffbots/internal/agent"
	"github.com/lox/bluffbots/internal/game"
	"github.com/lox/bluffbots/internal/randutil"
	"github.com/lox/bluffbots/internal/reaction"
	"github.com/lox/bluffbots/internal/runner"
	"github.com/lox/bluffbots/internal/stream"
)

// GameInstance bundles one hosted game: its session, the event log
// clients subscribe to, and the runner stepping it.
type GameInstance struct {
	ID      string
	Session *game.Session
	Log     *stream.Log
	Runner  *runner.Runner

	auto       bool
	cancelAuto func()
}

// Auto reports whether a pacing goroutine drives this game
func (gi *GameInstance) Auto() bool {
	return gi.auto
}

// GameSummary holds lightweight game metadata for clients
type GameSummary struct {
	ID           string `json:"id"`
	Phase        string `json:"phase"`
	Players      int    `json:"players"`
	TurnNumber   int    `json:"turn_number"`
	LastSequence uint64 `json:"last_sequence"`
	Auto         bool   `json:"auto"`
	Winner       string `json:"winner,omitempty"`
}

// newGameInstance composes a game from the configured seats: a fresh
// event log, a seeded session publishing into it, one agent per seat
// on its own derived rng stream, and a runner with table-talk wired.
func newGameInstance(cfg *Config, id string, seed int64, logger zerolog.Logger) (*GameInstance, error) {
	logger = logger.With().Str("game_id", id).Logger()
	log := stream.NewLog(
		stream.WithLogger(logger),
		stream.WithRetention(cfg.Game.StreamRetention),
	)

	seats := make([]game.Seat, len(cfg.Players))
	for i, p := range cfg.Players {
		seats[i] = game.Seat{ID: p.Name, Name: p.Name}
	}

	session, err := game.NewSession(randutil.New(seed), seats,
		game.WithID(id),
		game.WithEventSink(log),
		game.WithLogger(logger),
	)
	if err != nil {
		log.Close()
		return nil, err
	}

	agents := make(map[string]game.Agent, len(cfg.Players))
	for i, p := range cfg.Players {
		a, err := agent.New(p.Strategy, p.Script, randutil.Derive(seed, i+1), logger.With().Str("player", p.Name).Logger())
		if err != nil {
			log.Close()
			return nil, fmt.Errorf("player %s: %w", p.Name, err)
		}
		agents[p.Name] = a
	}

	run, err := runner.NewRunner(session, agents,
		runner.WithEventSink(log),
		runner.WithReactions(reaction.NewGenerator(randutil.Derive(seed, len(cfg.Players)+1))),
		runner.WithAgentTimeout(cfg.Game.AgentTimeout()),
		runner.WithTurnDelay(cfg.Game.TurnDelay()),
		runner.WithMaxTurns(cfg.Game.MaxTurns),
		runner.WithLogger(logger),
	)
	if err != nil {
		log.Close()
		return nil, err
	}

	return &GameInstance{ID: id, Session: session, Log: log, Runner: run}, nil
}

// Registry tracks hosted games
type Registry struct {
	logger zerolog.Logger
	mu     sync.RWMutex
	games  map[string]*GameInstance
}

// NewRegistry constructs an empty game registry
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		logger: logger.With().Str("component", "registry").Logger(),
		games:  make(map[string]*GameInstance),
	}
}

// Register adds a game. Registering an ID that is already hosted is
// refused so two games never share a stream.
func (reg *Registry) Register(instance *GameInstance) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, exists := reg.games[instance.ID]; exists {
		return fmt.Errorf("game %s already exists", instance.ID)
	}
	reg.games[instance.ID] = instance
	return nil
}

// Get retrieves a game by ID
func (reg *Registry) Get(id string) (*GameInstance, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	instance, ok := reg.games[id]
	return instance, ok
}

// Remove unregisters a game and returns it
func (reg *Registry) Remove(id string) (*GameInstance, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	instance, ok := reg.games[id]
	if !ok {
		return nil, false
	}
	delete(reg.games, id)
	return instance, true
}

// List returns a snapshot of hosted games
func (reg *Registry) List() []GameSummary {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	summaries := make([]GameSummary, 0, len(reg.games))
	for _, instance := range reg.games {
		snap := instance.Session.Snapshot("")
		summary := GameSummary{
			ID:           instance.ID,
			Phase:        string(snap.Phase),
			Players:      len(snap.Players),
			TurnNumber:   snap.TurnNumber,
			LastSequence: instance.Log.LastSequence(),
			Auto:         instance.auto,
			Winner:       snap.Winner,
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

// CloseAll stops every auto-runner and closes every stream
func (reg *Registry) CloseAll() {
	reg.mu.Lock()
	games := reg.games
	reg.games = make(map[string]*GameInstance)
	reg.mu.Unlock()

	for _, instance := range games {
		if instance.cancelAuto != nil {
			instance.cancelAuto()
		}
		instance.Log.Close()
	}
}
