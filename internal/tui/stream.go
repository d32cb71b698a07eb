package tui

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

// Record is one decoded wire record from a game's event stream.
type Record map[string]any

// Kind returns the record's top-level type.
func (r Record) Kind() string {
	kind, _ := r["type"].(string)
	return kind
}

// Sequence returns the record's position in the stream.
func (r Record) Sequence() uint64 {
	seq, _ := r["sequence"].(float64)
	return uint64(seq)
}

// Unwrap returns the concrete record kind and its payload: the nested
// action for game_action envelopes, the record itself for flat
// lifecycle and snapshot records.
func (r Record) Unwrap() (string, map[string]any) {
	if r.Kind() != "game_action" {
		return r.Kind(), r
	}
	action, ok := r["action"].(map[string]any)
	if !ok {
		return r.Kind(), nil
	}
	kind, _ := action["type"].(string)
	data, _ := action["data"].(map[string]any)
	return kind, data
}

// Stream consumes a spectator WebSocket and decodes wire records.
type Stream struct {
	conn      *websocket.Conn
	records   chan Record
	logger    *log.Logger
	closeOnce sync.Once
}

// Dial connects to a server's spectator socket. The records channel
// closes when the socket does.
func Dial(url string, logger *log.Logger) (*Stream, error) {
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s", url, resp.Status)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	s := &Stream{
		conn:    conn,
		records: make(chan Record, 32),
		logger:  logger.WithPrefix("stream"),
	}
	go s.readLoop()
	return s, nil
}

// Records returns the decoded record feed
func (s *Stream) Records() <-chan Record {
	return s.records
}

func (s *Stream) readLoop() {
	defer close(s.records)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("Stream closed", "err", err)
			}
			return
		}
		var record Record
		if err := json.Unmarshal(data, &record); err != nil {
			s.logger.Warn("Dropping undecodable record", "err", err)
			continue
		}
		s.records <- record
	}
}

// Close shuts the socket. The record feed drains and closes once the
// read loop notices.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}
