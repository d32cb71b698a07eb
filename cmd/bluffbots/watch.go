package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/lox/bluffbots/internal/server"
	"github.com/lox/bluffbots/internal/tui"
)

// WatchCmd spectates a hosted game over its WebSocket stream
type WatchCmd struct {
	Server  string `kong:"short='s',default='http://localhost:8080',help='Server URL'"`
	Game    string `kong:"help='Game ID to watch (picked automatically when the server hosts exactly one)'"`
	Since   uint64 `kong:"help='Resume the stream after this sequence number'"`
	LogFile string `kong:"help='Debug log file (the TUI owns the terminal)'"`
}

func (c *WatchCmd) Run() error {
	// Logs go to a file or nowhere; stderr would fight the TUI
	logWriter := io.Discard
	if c.LogFile != "" {
		f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer func() { _ = f.Close() }()
		logWriter = f
	}
	logger := log.NewWithOptions(logWriter, log.Options{Level: log.DebugLevel})

	serverURL := strings.TrimRight(c.Server, "/")
	gameID := c.Game
	if gameID == "" {
		id, err := pickGame(serverURL)
		if err != nil {
			return err
		}
		gameID = id
	}

	wsURL := fmt.Sprintf("%s/ws?game=%s&since=%d",
		strings.Replace(serverURL, "http", "ws", 1),
		url.QueryEscape(gameID),
		c.Since)

	logger.Info("Connecting", "game", gameID, "url", wsURL)

	stream, err := tui.Dial(wsURL, logger)
	if err != nil {
		return err
	}
	defer func() { _ = stream.Close() }()

	p := tea.NewProgram(tui.NewModel(gameID, stream.Records(), logger), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

// pickGame asks the server for its game list and picks the only one
func pickGame(serverURL string) (string, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(serverURL + "/api/games")
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("list games: %s", resp.Status)
	}

	var result struct {
		Success bool                 `json:"success"`
		Data    []server.GameSummary `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	switch len(result.Data) {
	case 0:
		return "", errors.New("no games hosted; create one first or pass --game")
	case 1:
		return result.Data[0].ID, nil
	default:
		ids := make([]string, 0, len(result.Data))
		for _, g := range result.Data {
			ids = append(ids, fmt.Sprintf("%s (%s)", g.ID, g.Phase))
		}
		return "", fmt.Errorf("multiple games hosted, pass --game: %s", strings.Join(ids, ", "))
	}
}
