package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lox/bluffbots/cmd/bluffbots/shared"
	"github.com/lox/bluffbots/internal/agent"
	"github.com/lox/bluffbots/internal/game"
	"github.com/lox/bluffbots/internal/history"
	"github.com/lox/bluffbots/internal/randutil"
	"github.com/lox/bluffbots/internal/reaction"
	"github.com/lox/bluffbots/internal/runner"
	"github.com/lox/bluffbots/internal/server"
	"github.com/lox/bluffbots/internal/stream"
)

// PlayCmd runs games locally without a server and prints standings
type PlayCmd struct {
	Games       int    `kong:"default='1',help='Number of games to play'"`
	Seed        int64  `kong:"default='0',help='RNG seed (0 for random)'"`
	Config      string `kong:"short='c',default='bluffbots.hcl',help='Path to HCL configuration file'"`
	Parallelism int    `kong:"default='4',help='Games run concurrently'"`
	Export      string `kong:"help='Directory to write game records to'"`
	Debug       bool   `kong:"help='Enable debug logging'"`
}

func (c *PlayCmd) Run() error {
	cfg, err := server.LoadConfig(c.Config)
	if err != nil {
		return err
	}
	// Batch games run flat out
	cfg.Game.TurnDelayMs = 0
	if err := cfg.Validate(); err != nil {
		return err
	}
	if c.Games < 1 {
		return fmt.Errorf("games must be at least 1, got %d", c.Games)
	}
	if c.Parallelism < 1 {
		return fmt.Errorf("parallelism must be at least 1, got %d", c.Parallelism)
	}

	level := "warn"
	if c.Debug {
		level = "debug"
	}
	logger := shared.SetupLogger(level, cfg.Server.LogFormat)

	seed := c.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	// Master RNG hands each game an independent seed so results are
	// reproducible regardless of scheduling order.
	masterRng := randutil.New(seed)
	seeds := make([]int64, c.Games)
	for i := range seeds {
		seeds[i] = masterRng.Int64()
	}

	var manager *history.Manager
	if c.Export != "" {
		manager = history.NewManager(logger, history.ManagerConfig{Dir: c.Export})
	}

	fmt.Printf("Playing %d games of %d players (seed: %d)\n", c.Games, len(cfg.Players), seed)

	stats := newStandings()
	start := time.Now()

	ctx := shared.SetupSignalHandler()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.Parallelism)
	for i := 0; i < c.Games; i++ {
		id := fmt.Sprintf("local-%04d", i+1)
		gameSeed := seeds[i]
		g.Go(func() error {
			result, err := playOne(ctx, cfg, id, gameSeed, manager, logger)
			if err != nil {
				return fmt.Errorf("game %s (seed %d): %w", id, gameSeed, err)
			}
			stats.Add(result)
			return nil
		})
	}
	err = g.Wait()
	if manager != nil {
		manager.Shutdown()
	}
	if err != nil {
		return err
	}

	printStandings(stats, cfg.Players, time.Since(start))
	if manager != nil {
		fmt.Printf("\nRecords written to %s\n", c.Export)
	}
	return nil
}

// playOne assembles and runs a single game. A game that hits the turn
// limit counts as unfinished rather than failing the batch.
func playOne(ctx context.Context, cfg *server.Config, id string, seed int64, manager *history.Manager, logger zerolog.Logger) (gameResult, error) {
	logger = logger.With().Str("game_id", id).Logger()

	var sink game.EventSink = game.NopSink
	if manager != nil {
		log := stream.NewLog(stream.WithLogger(logger))
		defer log.Close()
		if _, err := manager.Attach(id, log); err != nil {
			return gameResult{}, err
		}
		sink = log
	}

	seats := make([]game.Seat, len(cfg.Players))
	for i, p := range cfg.Players {
		seats[i] = game.Seat{ID: p.Name, Name: p.Name}
	}

	session, err := game.NewSession(randutil.New(seed), seats,
		game.WithID(id),
		game.WithEventSink(sink),
		game.WithLogger(logger),
	)
	if err != nil {
		return gameResult{}, err
	}

	agents := make(map[string]game.Agent, len(cfg.Players))
	for i, p := range cfg.Players {
		a, err := agent.New(p.Strategy, p.Script, randutil.Derive(seed, i+1), logger.With().Str("player", p.Name).Logger())
		if err != nil {
			return gameResult{}, fmt.Errorf("player %s: %w", p.Name, err)
		}
		agents[p.Name] = a
	}

	run, err := runner.NewRunner(session, agents,
		runner.WithEventSink(sink),
		runner.WithReactions(reaction.NewGenerator(randutil.Derive(seed, len(cfg.Players)+1))),
		runner.WithAgentTimeout(cfg.Game.AgentTimeout()),
		runner.WithMaxTurns(cfg.Game.MaxTurns),
		runner.WithLogger(logger),
	)
	if err != nil {
		return gameResult{}, err
	}

	winner, err := run.Run(ctx)
	result := gameResult{Seed: seed, Turns: session.TurnNumber()}
	switch {
	case err == nil:
		result.Winner = winner.Name
	case errors.Is(err, runner.ErrMaxTurns):
		result.Unfinished = true
	default:
		return gameResult{}, err
	}
	return result, nil
}

type gameResult struct {
	Seed       int64
	Winner     string
	Turns      int
	Unfinished bool
}

type standings struct {
	mu         sync.Mutex
	games      int
	sumTurns   int
	minTurns   int
	maxTurns   int
	unfinished int
	wins       map[string]int
}

func newStandings() *standings {
	return &standings{wins: make(map[string]int)}
}

func (s *standings) Add(result gameResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.games++
	s.sumTurns += result.Turns
	if s.minTurns == 0 || result.Turns < s.minTurns {
		s.minTurns = result.Turns
	}
	if result.Turns > s.maxTurns {
		s.maxTurns = result.Turns
	}
	if result.Unfinished {
		s.unfinished++
		return
	}
	s.wins[result.Winner]++
}

func (s *standings) MeanTurns() float64 {
	if s.games == 0 {
		return 0
	}
	return float64(s.sumTurns) / float64(s.games)
}

func printStandings(stats *standings, players []server.PlayerConfig, duration time.Duration) {
	type row struct {
		name string
		wins int
	}
	rows := make([]row, 0, len(players))
	for _, p := range players {
		rows = append(rows, row{p.Name, stats.wins[p.Name]})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].wins != rows[j].wins {
			return rows[i].wins > rows[j].wins
		}
		return rows[i].name < rows[j].name
	})

	fmt.Printf("\n=== STANDINGS ===\n")
	for _, r := range rows {
		pct := 0.0
		if stats.games > 0 {
			pct = float64(r.wins) / float64(stats.games) * 100
		}
		fmt.Printf("%-12s %4d wins (%.1f%%)\n", r.name, r.wins, pct)
	}

	fmt.Printf("\n=== SUMMARY ===\n")
	fmt.Printf("Games played: %d\n", stats.games)
	if stats.unfinished > 0 {
		fmt.Printf("Hit turn limit: %d\n", stats.unfinished)
	}
	fmt.Printf("Turns: mean %.1f, min %d, max %d\n", stats.MeanTurns(), stats.minTurns, stats.maxTurns)
	fmt.Printf("Total time: %v (%.1f games/sec)\n",
		duration.Round(time.Millisecond),
		float64(stats.games)/duration.Seconds())
}
