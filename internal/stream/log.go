// Package stream provides the ordered event log at the heart of a
// game: monotonic sequence assignment, a bounded replay window, and
// non-blocking fan-out to subscribers. Publishing never waits on a
// consumer; a subscriber that cannot keep up is dropped so one slow
// reader can never stall the engine or its peers.
package stream

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrSequenceTrimmed reports a resume point older than the
	// retained window. The caller recovers by syncing from a snapshot
	// and subscribing live.
	ErrSequenceTrimmed = errors.New("sequence no longer retained")
	// ErrSequenceAhead reports a resume point beyond the latest
	// published sequence.
	ErrSequenceAhead = errors.New("sequence not yet published")
	// ErrLogClosed reports a subscribe against a closed log.
	ErrLogClosed = errors.New("event log closed")
	// ErrSlowConsumer is the drop reason for a subscriber whose buffer
	// overflowed.
	ErrSlowConsumer = errors.New("subscriber buffer full")
)

const (
	// DefaultRetention is how many events the replay window holds.
	DefaultRetention = 1024
	// DefaultBufferSize is each subscriber's live-delivery buffer.
	DefaultBufferSize = 64
)

// Event is one immutable record in the log. Sequence numbers are
// assigned at publish time, strictly increase, and are never reused.
type Event struct {
	Sequence  uint64    `json:"sequence"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Log is an append-only event log with multi-subscriber fan-out.
// Publish assigns the next sequence number under the log's lock, so
// sequence order always matches publish order.
type Log struct {
	mu        sync.Mutex
	seq       uint64
	events    []Event
	subs      map[*Subscriber]struct{}
	retention int
	bufSize   int
	closed    bool
	logger    zerolog.Logger
}

// Option configures a Log during creation
type Option func(*Log)

// WithRetention sets how many recent events stay replayable
func WithRetention(n int) Option {
	return func(l *Log) {
		if n > 0 {
			l.retention = n
		}
	}
}

// WithBufferSize sets the per-subscriber live buffer
func WithBufferSize(n int) Option {
	return func(l *Log) {
		if n > 0 {
			l.bufSize = n
		}
	}
}

// WithLogger attaches a structured logger
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

// NewLog creates an empty log
func NewLog(opts ...Option) *Log {
	l := &Log{
		subs:      make(map[*Subscriber]struct{}),
		retention: DefaultRetention,
		bufSize:   DefaultBufferSize,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Publish appends an event and fans it out. It never blocks: any
// subscriber whose buffer is full is dropped on the spot. Publishing
// to a closed log is a no-op.
func (l *Log) Publish(eventType string, payload any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	l.seq++
	e := Event{
		Sequence:  l.seq,
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   payload,
	}
	l.events = append(l.events, e)
	if len(l.events) > l.retention {
		l.events = l.events[len(l.events)-l.retention:]
	}

	for sub := range l.subs {
		select {
		case sub.ch <- e:
		default:
			delete(l.subs, sub)
			sub.closeWith(ErrSlowConsumer)
			l.logger.Warn().
				Str("subscriber", sub.id).
				Uint64("sequence", e.Sequence).
				Msg("Subscriber buffer full, dropping subscriber")
		}
	}
}

// LastSequence returns the most recently assigned sequence number
func (l *Log) LastSequence() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq
}

// Subscribe attaches a subscriber. fromSeq is the last sequence the
// caller has already seen (0 for none): retained events after it are
// replayed in order before live delivery begins. Callers that only
// want the live tail pass LastSequence(). A fromSeq outside the
// retained window fails with ErrSequenceTrimmed or ErrSequenceAhead
// and the caller falls back to a snapshot.
func (l *Log) Subscribe(fromSeq uint64) (*Subscriber, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrLogClosed
	}
	if fromSeq > l.seq {
		return nil, fmt.Errorf("%w: from %d, latest %d", ErrSequenceAhead, fromSeq, l.seq)
	}

	var replay []Event
	if fromSeq < l.seq {
		oldest := l.events[0].Sequence
		if fromSeq+1 < oldest {
			return nil, fmt.Errorf("%w: from %d, window starts at %d", ErrSequenceTrimmed, fromSeq, oldest)
		}
		for _, e := range l.events {
			if e.Sequence > fromSeq {
				replay = append(replay, e)
			}
		}
	}

	// The channel must absorb the whole replay up front so replayed
	// and live events share one ordered stream.
	sub := &Subscriber{
		id:   newSubscriberID(),
		ch:   make(chan Event, len(replay)+l.bufSize),
		done: make(chan struct{}),
	}
	for _, e := range replay {
		sub.ch <- e
	}
	l.subs[sub] = struct{}{}
	return sub, nil
}

// Unsubscribe detaches a subscriber cleanly; its channel is closed
// with no error recorded.
func (l *Log) Unsubscribe(sub *Subscriber) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.subs[sub]; ok {
		delete(l.subs, sub)
		sub.closeWith(nil)
	}
}

// SubscriberCount returns how many subscribers are attached
func (l *Log) SubscriberCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}

// Close drops every subscriber and stops accepting events
func (l *Log) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	for sub := range l.subs {
		delete(l.subs, sub)
		sub.closeWith(ErrLogClosed)
	}
}
