package server

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/bluffbots/internal/agent"
)

// Config represents the complete server configuration
type Config struct {
	Server  ServerSettings `hcl:"server,block"`
	Game    GameSettings   `hcl:"game,block"`
	Players []PlayerConfig `hcl:"player,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address   string `hcl:"address,optional"`
	Port      int    `hcl:"port,optional"`
	LogLevel  string `hcl:"log_level,optional"`
	LogFormat string `hcl:"log_format,optional"`
}

// GameSettings controls how hosted games run
type GameSettings struct {
	Seed            int64  `hcl:"seed,optional"`
	MaxTurns        int    `hcl:"max_turns,optional"`
	TurnDelayMs     int    `hcl:"turn_delay_ms,optional"`
	AgentTimeoutMs  int    `hcl:"agent_timeout_ms,optional"`
	HistoryDir      string `hcl:"history_dir,optional"`
	StreamRetention int    `hcl:"stream_retention,optional"`
}

// PlayerConfig defines one seat dealt into every hosted game
type PlayerConfig struct {
	Name     string `hcl:"name,label"`
	Strategy string `hcl:"strategy,optional"`
	Script   string `hcl:"script,optional"`
}

// DefaultConfig returns the configuration used when no file exists:
// four heuristic players on localhost.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerSettings{
			Address:   "localhost",
			Port:      8080,
			LogLevel:  "info",
			LogFormat: "console",
		},
		Game: GameSettings{
			MaxTurns:        1000,
			TurnDelayMs:     500,
			AgentTimeoutMs:  30000,
			HistoryDir:      "games",
			StreamRetention: 1024,
		},
		Players: []PlayerConfig{
			{Name: "alice", Strategy: agent.StrategyHeuristic},
			{Name: "bob", Strategy: agent.StrategyHeuristic},
			{Name: "carol", Strategy: agent.StrategyHeuristic},
			{Name: "dave", Strategy: agent.StrategyHeuristic},
		},
	}
}

// LoadConfig loads server configuration from an HCL file, falling back
// to defaults when the file does not exist. Environment variables
// (BLUFFBOTS_ADDRESS, BLUFFBOTS_PORT, BLUFFBOTS_LOG_LEVEL,
// BLUFFBOTS_HISTORY_DIR) override file values either way.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		config := DefaultConfig()
		config.applyEnvOverrides()
		return config, nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	// Apply defaults for missing values
	if config.Server.Address == "" {
		config.Server.Address = "localhost"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = "info"
	}
	if config.Server.LogFormat == "" {
		config.Server.LogFormat = "console"
	}
	if config.Game.MaxTurns == 0 {
		config.Game.MaxTurns = 1000
	}
	if config.Game.TurnDelayMs == 0 {
		config.Game.TurnDelayMs = 500
	}
	if config.Game.AgentTimeoutMs == 0 {
		config.Game.AgentTimeoutMs = 30000
	}
	if config.Game.HistoryDir == "" {
		config.Game.HistoryDir = "games"
	}
	if config.Game.StreamRetention == 0 {
		config.Game.StreamRetention = 1024
	}

	// Apply defaults to players
	for i := range config.Players {
		if config.Players[i].Strategy == "" {
			config.Players[i].Strategy = agent.StrategyHeuristic
		}
	}
	if len(config.Players) == 0 {
		config.Players = DefaultConfig().Players
	}

	config.applyEnvOverrides()
	return &config, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("BLUFFBOTS_ADDRESS"); v != "" {
		c.Server.Address = v
	}
	if v := os.Getenv("BLUFFBOTS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("BLUFFBOTS_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("BLUFFBOTS_HISTORY_DIR"); v != "" {
		c.Game.HistoryDir = v
	}
}

// Validate validates the server configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if len(c.Players) < 2 {
		return fmt.Errorf("at least two players must be configured")
	}

	validStrategies := map[string]bool{
		agent.StrategyHeuristic: true,
		agent.StrategyRandom:    true,
		agent.StrategyScripted:  true,
	}

	seen := make(map[string]bool, len(c.Players))
	for _, player := range c.Players {
		if seen[player.Name] {
			return fmt.Errorf("player %s: duplicate name", player.Name)
		}
		seen[player.Name] = true

		if !validStrategies[player.Strategy] {
			return fmt.Errorf("player %s: invalid strategy %s", player.Name, player.Strategy)
		}
		if player.Strategy == agent.StrategyScripted && player.Script == "" {
			return fmt.Errorf("player %s: scripted strategy requires a script path", player.Name)
		}
	}

	if c.Game.MaxTurns < 1 {
		return fmt.Errorf("max_turns must be positive: %d", c.Game.MaxTurns)
	}
	if c.Game.TurnDelayMs < 0 {
		return fmt.Errorf("turn_delay_ms must not be negative: %d", c.Game.TurnDelayMs)
	}
	if c.Game.AgentTimeoutMs < 1 {
		return fmt.Errorf("agent_timeout_ms must be positive: %d", c.Game.AgentTimeoutMs)
	}
	if c.Game.StreamRetention < 1 {
		return fmt.Errorf("stream_retention must be positive: %d", c.Game.StreamRetention)
	}

	return nil
}

// ListenAddr returns the full listen address
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// TurnDelay returns the pacing delay between auto-run turns
func (g GameSettings) TurnDelay() time.Duration {
	return time.Duration(g.TurnDelayMs) * time.Millisecond
}

// AgentTimeout returns how long one agent decision may take
func (g GameSettings) AgentTimeout() time.Duration {
	return time.Duration(g.AgentTimeoutMs) * time.Millisecond
}
