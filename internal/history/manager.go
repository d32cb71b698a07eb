package history

import (
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/lox/bluffbots/internal/stream"
)

// ManagerConfig configures the server-wide record manager. Clock
// defaults to the real clock; tests pass a quartz mock to drive the
// flush ticker.
type ManagerConfig struct {
	Dir           string
	FlushInterval time.Duration
	Clock         quartz.Clock
}

// Manager coordinates flushing for every game being recorded
type Manager struct {
	cfg    ManagerConfig
	logger zerolog.Logger

	mu        sync.RWMutex
	recorders map[string]*Recorder
	flushReq  chan struct{}
	stop      chan struct{}
	wg        sync.WaitGroup
}

// NewManager creates and starts a record manager
func NewManager(logger zerolog.Logger, cfg ManagerConfig) *Manager {
	if cfg.Dir == "" {
		cfg.Dir = "games"
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 10 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = quartz.NewReal()
	}

	m := &Manager{
		cfg:       cfg,
		logger:    logger,
		recorders: make(map[string]*Recorder),
		flushReq:  make(chan struct{}, 1),
		stop:      make(chan struct{}),
	}
	m.wg.Add(1)
	go m.run()
	return m
}

// Attach starts recording a game from its event log. The subscription
// begins at the oldest retained event so a recorder attached right
// after game creation sees everything.
func (m *Manager) Attach(gameID string, log *stream.Log) (*Recorder, error) {
	m.mu.Lock()
	if _, exists := m.recorders[gameID]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("history: recorder for %s already exists", gameID)
	}
	m.mu.Unlock()

	recorder, err := NewRecorder(gameID, m.cfg.Dir, m.logger.With().Str("game_id", gameID).Logger())
	if err != nil {
		return nil, err
	}
	recorder.SetFlushNotifier(func() { m.requestFlush() })

	sub, err := log.Subscribe(0)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.recorders[gameID] = recorder
	m.mu.Unlock()

	m.wg.Add(1)
	go m.watch(recorder, log, sub)
	return recorder, nil
}

// watch feeds a recorder until its game completes or the subscription
// drops
func (m *Manager) watch(recorder *Recorder, log *stream.Log, sub *stream.Subscriber) {
	defer m.wg.Done()

	for {
		select {
		case e, ok := <-sub.Events():
			if !ok {
				if err := sub.Err(); err != nil {
					m.logger.Warn().Err(err).Str("game_id", recorder.gameID).
						Msg("Recorder lost its event stream before game end")
				}
				return
			}
			if recorder.Observe(e) {
				log.Unsubscribe(sub)
				m.requestFlush()
				return
			}
		case <-m.stop:
			log.Unsubscribe(sub)
			return
		}
	}
}

// Remove flushes and unregisters the recorder for a game
func (m *Manager) Remove(gameID string) {
	m.mu.Lock()
	recorder, ok := m.recorders[gameID]
	if ok {
		delete(m.recorders, gameID)
	}
	m.mu.Unlock()

	if ok {
		if err := recorder.Close(); err != nil {
			m.logger.Error().Err(err).Str("game_id", gameID).Msg("Record flush on remove failed")
		}
	}
}

// Shutdown stops the ticker, detaches every watcher, and flushes
func (m *Manager) Shutdown() {
	close(m.stop)
	m.wg.Wait()

	m.mu.Lock()
	recorders := m.recorders
	m.recorders = make(map[string]*Recorder)
	m.mu.Unlock()

	for gameID, recorder := range recorders {
		if err := recorder.Close(); err != nil {
			m.logger.Error().Err(err).Str("game_id", gameID).Msg("Record flush on shutdown failed")
		}
	}
}

func (m *Manager) run() {
	defer m.wg.Done()
	ticker := m.cfg.Clock.NewTicker(m.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.flushAll()
		case <-m.flushReq:
			m.flushAll()
		case <-m.stop:
			return
		}
	}
}

func (m *Manager) requestFlush() {
	select {
	case m.flushReq <- struct{}{}:
	default:
	}
}

func (m *Manager) flushAll() {
	m.mu.RLock()
	snapshot := make(map[string]*Recorder, len(m.recorders))
	for k, v := range m.recorders {
		snapshot[k] = v
	}
	m.mu.RUnlock()

	for gameID, recorder := range snapshot {
		err := recorder.Flush()
		if err != nil {
			m.logger.Error().Err(err).Str("game_id", gameID).Msg("Record flush failed")
		}
		disabled, dropped := recorder.HandleFlushResult(err)
		if disabled {
			m.logger.Error().Str("game_id", gameID).Int("dropped_records", dropped).
				Msg("Recording disabled after repeated failures")
			m.Remove(gameID)
		}
	}
}
