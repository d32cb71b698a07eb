// Package history persists completed games as JSON Lines records. A
// recorder drinks from a game's event stream, assembles one record per
// finished game, and flushes through a manager that batches disk
// writes on a ticker.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lox/bluffbots/internal/game"
	"github.com/lox/bluffbots/internal/stream"
)

// failureLimit is how many consecutive flush failures disable a
// recorder rather than stall the server.
const failureLimit = 3

// Record is one completed game, ready for analysis tooling.
type Record struct {
	GameID     string               `json:"game_id"`
	StartedAt  time.Time            `json:"started_at"`
	EndedAt    time.Time            `json:"ended_at"`
	Players    []game.PlayerSummary `json:"players"`
	WinnerID   string               `json:"winner_id"`
	WinnerName string               `json:"winner_name"`
	Turns      int                  `json:"turns"`
	BSCalls    int                  `json:"bs_calls"`
	Events     []stream.Event       `json:"events"`
}

// Recorder assembles and buffers the record for one game. It is fed
// events in stream order via Observe and writes them out on Flush.
type Recorder struct {
	gameID  string
	outPath string
	logger  zerolog.Logger

	mu                  sync.Mutex
	flushMu             sync.Mutex
	events              []stream.Event
	players             []game.PlayerSummary
	bsCalls             int
	finished            bool
	pending             []Record
	flushNotifier       func()
	consecutiveFailures int
	disabled            bool
}

// NewRecorder creates a recorder writing to <dir>/<game-id>.jsonl
func NewRecorder(gameID, dir string, logger zerolog.Logger) (*Recorder, error) {
	if gameID == "" {
		return nil, errors.New("history: gameID is required")
	}
	if dir == "" {
		return nil, errors.New("history: dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("history: create dir: %w", err)
	}
	return &Recorder{
		gameID:  gameID,
		outPath: filepath.Join(dir, fmt.Sprintf("%s.jsonl", gameID)),
		logger:  logger,
	}, nil
}

// SetFlushNotifier registers a callback invoked when a completed
// record is ready for an async flush.
func (r *Recorder) SetFlushNotifier(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushNotifier = fn
}

// Observe feeds the recorder one event. It returns true once the game
// is complete and no further events are wanted.
func (r *Recorder) Observe(e stream.Event) bool {
	var notify func()

	r.mu.Lock()
	if r.disabled || r.finished {
		done := r.finished
		r.mu.Unlock()
		return done
	}

	r.events = append(r.events, e)
	switch e.Type {
	case game.EventTypeGameStart.String():
		if data, ok := e.Payload.(game.GameStartData); ok {
			r.players = data.Players
		}
	case game.EventTypeBSCall.String():
		r.bsCalls++
	case game.EventTypeGameOver.String():
		r.finalizeLocked(e)
		notify = r.flushNotifier
	}
	done := r.finished
	r.mu.Unlock()

	if notify != nil {
		notify()
	}
	return done
}

// finalizeLocked turns the accumulated events into a pending record
func (r *Recorder) finalizeLocked(last stream.Event) {
	record := Record{
		GameID:    r.gameID,
		StartedAt: r.events[0].Timestamp,
		EndedAt:   last.Timestamp,
		Players:   r.players,
		BSCalls:   r.bsCalls,
		Events:    r.events,
	}
	if data, ok := last.Payload.(game.GameOverData); ok {
		record.WinnerID = data.WinnerID
		record.WinnerName = data.WinnerName
		record.Turns = data.TurnNumber
	}
	r.pending = append(r.pending, record)
	r.events = nil
	r.finished = true
}

// Flush writes pending records to disk, keeping whatever a partial
// write could not get out.
func (r *Recorder) Flush() error {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	r.mu.Lock()
	if r.disabled || len(r.pending) == 0 {
		r.mu.Unlock()
		return nil
	}
	records := append([]Record(nil), r.pending...)
	r.mu.Unlock()

	file, err := os.OpenFile(r.outPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	written := 0
	for _, record := range records {
		if err := enc.Encode(record); err != nil {
			r.completeFlush(written)
			return err
		}
		written++
	}
	r.completeFlush(written)
	return nil
}

func (r *Recorder) completeFlush(written int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = r.pending[written:]
}

// HandleFlushResult updates failure tracking after a flush attempt and
// reports whether the recorder disabled itself, with how many records
// it dropped.
func (r *Recorder) HandleFlushResult(err error) (disabled bool, dropped int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		r.consecutiveFailures++
		if r.consecutiveFailures >= failureLimit {
			dropped = len(r.pending)
			r.pending = nil
			r.disabled = true
			return true, dropped
		}
		return false, 0
	}

	r.consecutiveFailures = 0
	return false, 0
}

// IsDisabled reports whether the recorder gave up after repeated
// flush failures.
func (r *Recorder) IsDisabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disabled
}

// Path returns where this recorder writes
func (r *Recorder) Path() string {
	return r.outPath
}

// Close flushes remaining records
func (r *Recorder) Close() error {
	return r.Flush()
}
