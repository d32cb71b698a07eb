package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lox/bluffbots/internal/game"
	"github.com/lox/bluffbots/internal/gameid"
	"github.com/lox/bluffbots/internal/history"
	"github.com/lox/bluffbots/internal/runner"
	"github.com/lox/bluffbots/internal/stream"
)

// Server hosts games over HTTP: commands under /api, live event
// streams over SSE and WebSocket. Every hosted game gets its own
// event log; clients resume with ?since= and fall back to a snapshot
// when the log no longer retains their position.
type Server struct {
	cfg      *Config
	logger   zerolog.Logger
	registry *Registry
	history  *history.Manager
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// NewServer creates a server from validated configuration
func NewServer(cfg *Config, logger zerolog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		cfg:    cfg,
		logger: logger.With().Str("component", "server").Logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		registry: NewRegistry(logger),
		history:  history.NewManager(logger, history.ManagerConfig{Dir: cfg.Game.HistoryDir}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Routes builds the HTTP handler
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWebSocket)
	r.Route("/api/games", func(r chi.Router) {
		r.Get("/", s.handleListGames)
		r.Post("/", s.handleCreateGame)
		r.Route("/{gameID}", func(r chi.Router) {
			r.Delete("/", s.handleDeleteGame)
			r.Post("/advance", s.handleAdvance)
			r.Get("/state", s.handleState)
			r.Get("/events", s.handleEvents)
		})
	})
	return r
}

// ListenAndServe runs the server until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:    s.cfg.ListenAddr(),
		Handler: s.Routes(),
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()
	s.logger.Info().Str("addr", s.cfg.ListenAddr()).Msg("Server listening")

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := httpSrv.Shutdown(shutCtx)
		s.Close()
		return err
	}
}

// Close stops auto-runners, drops every stream subscriber, and
// flushes game records.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.registry.CloseAll()
		s.wg.Wait()
		s.history.Shutdown()
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("Request handled")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	writeResult(w, http.StatusOK, resultOK(s.registry.List()))
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req CreateGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeResult(w, http.StatusBadRequest, resultErr("invalid_request", err.Error()))
		return
	}

	id := req.ID
	if id == "" {
		id = gameid.Generate()
	} else if err := gameid.Validate(id); err != nil {
		writeResult(w, http.StatusBadRequest, resultErr("invalid_game_id", err.Error()))
		return
	}
	seed := s.cfg.Game.Seed
	if req.Seed != nil {
		seed = *req.Seed
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	auto := true
	if req.Auto != nil {
		auto = *req.Auto
	}

	instance, err := newGameInstance(s.cfg, id, seed, s.logger)
	if err != nil {
		writeResult(w, http.StatusInternalServerError, resultErr("create_failed", err.Error()))
		return
	}
	if err := s.registry.Register(instance); err != nil {
		instance.Log.Close()
		writeResult(w, http.StatusConflict, resultErr("game_exists", err.Error()))
		return
	}

	if _, err := s.history.Attach(id, instance.Log); err != nil {
		s.logger.Warn().Err(err).Str("game_id", id).Msg("Game will not be recorded")
	}

	if err := instance.Session.Start(); err != nil {
		s.registry.Remove(id)
		instance.Log.Close()
		writeResult(w, http.StatusInternalServerError, resultErr("create_failed", err.Error()))
		return
	}
	if auto {
		s.startAuto(instance)
	}

	s.logger.Info().Str("game_id", id).Int64("seed", seed).Bool("auto", auto).Msg("Game created")
	writeResult(w, http.StatusCreated, resultOK(CreateGameResponse{
		GameID:  id,
		Players: instance.Session.Snapshot("").Players,
		Auto:    auto,
	}))
}

// startAuto drives the game to completion at the configured pace
func (s *Server) startAuto(instance *GameInstance) {
	ctx, cancel := context.WithCancel(s.ctx)
	instance.auto = true
	instance.cancelAuto = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		winner, err := instance.Runner.Run(ctx)
		switch {
		case err == nil:
			s.logger.Info().Str("game_id", instance.ID).Str("winner", winner.Name).Msg("Game complete")
		case errors.Is(err, context.Canceled):
			s.logger.Debug().Str("game_id", instance.ID).Msg("Game stopped")
		case errors.Is(err, runner.ErrMaxTurns):
			s.logger.Warn().Str("game_id", instance.ID).Err(err).Msg("Game hit the turn limit")
		default:
			s.logger.Error().Str("game_id", instance.ID).Err(err).Msg("Game failed")
		}
	}()
}

func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "gameID")
	instance, ok := s.registry.Remove(id)
	if !ok {
		writeResult(w, http.StatusNotFound, resultErr("game_not_found", fmt.Sprintf("no game %s", id)))
		return
	}

	if instance.cancelAuto != nil {
		instance.cancelAuto()
	}
	s.history.Remove(id)
	instance.Log.Close()

	writeResult(w, http.StatusOK, resultOK(map[string]string{"game_id": id}))
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "gameID")
	instance, ok := s.registry.Get(id)
	if !ok {
		writeResult(w, http.StatusNotFound, resultErr("game_not_found", fmt.Sprintf("no game %s", id)))
		return
	}
	if instance.Auto() {
		writeResult(w, http.StatusConflict, resultErr("game_auto", "game advances itself"))
		return
	}

	if err := instance.Runner.Advance(r.Context()); err != nil {
		switch {
		case errors.Is(err, game.ErrGameOver):
			writeResult(w, http.StatusConflict, resultErr("game_over", err.Error()))
		case errors.Is(err, game.ErrSessionPoisoned), errors.Is(err, game.ErrInvariantViolated):
			writeResult(w, http.StatusInternalServerError, resultErr("integrity_failure", err.Error()))
		default:
			writeResult(w, http.StatusInternalServerError, resultErr("advance_failed", err.Error()))
		}
		return
	}

	snap := instance.Session.Snapshot("")
	writeResult(w, http.StatusOK, resultOK(AdvanceResponse{
		GameID:     id,
		Phase:      snap.Phase,
		TurnNumber: snap.TurnNumber,
		Winner:     snap.Winner,
	}))
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "gameID")
	instance, ok := s.registry.Get(id)
	if !ok {
		writeResult(w, http.StatusNotFound, resultErr("game_not_found", fmt.Sprintf("no game %s", id)))
		return
	}

	viewer := r.URL.Query().Get("player")
	writeResult(w, http.StatusOK, resultOK(instance.Session.Snapshot(viewer)))
}

// handleEvents streams wire records over SSE. ?since= resumes after a
// sequence number; without it the stream tails live events only.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "gameID")
	instance, ok := s.registry.Get(id)
	if !ok {
		writeResult(w, http.StatusNotFound, resultErr("game_not_found", fmt.Sprintf("no game %s", id)))
		return
	}

	since, err := sinceParam(r, instance)
	if err != nil {
		writeResult(w, http.StatusBadRequest, resultErr("invalid_since", err.Error()))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeResult(w, http.StatusInternalServerError, resultErr("stream_unsupported", "response writer cannot stream"))
		return
	}

	sub, priming, err := s.subscribeWithCatchUp(instance, since)
	if err != nil {
		writeResult(w, http.StatusInternalServerError, resultErr("subscribe_failed", err.Error()))
		return
	}
	defer instance.Log.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if priming != nil {
		fmt.Fprintf(w, "data: %s\n\n", priming)
		flusher.Flush()
	}

	for {
		select {
		case e, open := <-sub.Events():
			if !open {
				return
			}
			data, err := EncodeEvent(e)
			if err != nil {
				s.logger.Error().Err(err).Str("game_id", id).Uint64("sequence", e.Sequence).Msg("Failed to encode record")
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// handleWebSocket streams the same wire records over a WebSocket.
// ?game= names the game; ?since= works as for SSE.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("game")
	if id == "" {
		writeResult(w, http.StatusBadRequest, resultErr("missing_game", "game query parameter required"))
		return
	}
	instance, ok := s.registry.Get(id)
	if !ok {
		writeResult(w, http.StatusNotFound, resultErr("game_not_found", fmt.Sprintf("no game %s", id)))
		return
	}

	since, err := sinceParam(r, instance)
	if err != nil {
		writeResult(w, http.StatusBadRequest, resultErr("invalid_since", err.Error()))
		return
	}

	sub, priming, err := s.subscribeWithCatchUp(instance, since)
	if err != nil {
		writeResult(w, http.StatusInternalServerError, resultErr("subscribe_failed", err.Error()))
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		instance.Log.Unsubscribe(sub)
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	conn := NewConnection(ws, s.logger)
	conn.Start()
	s.logger.Debug().Str("game_id", id).Str("conn_id", conn.id).Msg("Spectator connected")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { _ = conn.Close() }()
		defer instance.Log.Unsubscribe(sub)

		if priming != nil {
			if err := conn.Send(priming); err != nil {
				return
			}
		}
		for {
			select {
			case e, open := <-sub.Events():
				if !open {
					return
				}
				data, err := EncodeEvent(e)
				if err != nil {
					s.logger.Error().Err(err).Str("game_id", id).Uint64("sequence", e.Sequence).Msg("Failed to encode record")
					continue
				}
				if err := conn.Send(data); err != nil {
					return
				}
			case <-conn.Done():
				return
			}
		}
	}()
}

// sinceParam reads ?since= as the last sequence the client saw.
// Absent means tail live events only.
func sinceParam(r *http.Request, instance *GameInstance) (uint64, error) {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return instance.Log.LastSequence(), nil
	}
	since, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("since must be a sequence number: %w", err)
	}
	return since, nil
}

// subscribeWithCatchUp subscribes at since. When since falls outside
// the retained window it returns a snapshot priming record and a
// live-tail subscription instead.
func (s *Server) subscribeWithCatchUp(instance *GameInstance, since uint64) (*stream.Subscriber, []byte, error) {
	sub, err := instance.Log.Subscribe(since)
	if err == nil {
		return sub, nil, nil
	}
	if !errors.Is(err, stream.ErrSequenceTrimmed) && !errors.Is(err, stream.ErrSequenceAhead) {
		return nil, nil, err
	}

	last := instance.Log.LastSequence()
	priming, encErr := EncodeSnapshot(instance.Session.Snapshot(""), last)
	if encErr != nil {
		return nil, nil, encErr
	}
	sub, err = instance.Log.Subscribe(last)
	if err != nil {
		return nil, nil, err
	}
	return sub, priming, nil
}

func writeResult(w http.ResponseWriter, status int, result CommandResult) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(result) // Connection gone, nothing left to do
}
