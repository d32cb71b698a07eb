package main

import (
	"errors"
	"net/http"

	"github.com/joho/godotenv"

	"github.com/lox/bluffbots/cmd/bluffbots/shared"
	"github.com/lox/bluffbots/internal/server"
)

// ServeCmd runs the HTTP game server
type ServeCmd struct {
	Config  string `kong:"short='c',default='bluffbots.hcl',help='Path to HCL configuration file'"`
	Address string `kong:"help='Bind address (overrides config)'"`
	Port    int    `kong:"help='Listen port (overrides config)'"`
	Debug   bool   `kong:"help='Enable debug logging'"`
}

func (c *ServeCmd) Run() error {
	_ = godotenv.Load()

	cfg, err := server.LoadConfig(c.Config)
	if err != nil {
		return err
	}
	if c.Address != "" {
		cfg.Server.Address = c.Address
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if c.Debug {
		cfg.Server.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := shared.SetupLogger(cfg.Server.LogLevel, cfg.Server.LogFormat)

	logger.Info().
		Str("address", cfg.ListenAddr()).
		Int("players", len(cfg.Players)).
		Int("max_turns", cfg.Game.MaxTurns).
		Dur("turn_delay", cfg.Game.TurnDelay()).
		Dur("agent_timeout", cfg.Game.AgentTimeout()).
		Str("history_dir", cfg.Game.HistoryDir).
		Msg("Starting bluffbots server")

	ctx := shared.SetupSignalHandlerWithLogger(logger)

	srv := server.NewServer(cfg, logger)
	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
