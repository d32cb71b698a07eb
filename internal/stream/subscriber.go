package stream

import (
	"sync"

	"github.com/google/uuid"
)

// Subscriber is one consumer's view of a Log. Events arrive on Events()
// in sequence order; the channel closes when the subscriber is
// detached, after which Err reports why (nil for a clean Unsubscribe).
type Subscriber struct {
	id   string
	ch   chan Event
	done chan struct{}

	once sync.Once
	mu   sync.Mutex
	err  error
}

func newSubscriberID() string {
	return uuid.NewString()
}

// ID returns the subscriber's unique identifier
func (s *Subscriber) ID() string {
	return s.id
}

// Events returns the ordered event channel. It is closed when the
// subscriber is dropped or unsubscribed.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Done is closed when the subscriber is detached
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// Err reports why the subscriber was detached. It is nil before Done
// is closed and after a clean Unsubscribe; a dropped subscriber sees
// ErrSlowConsumer or ErrLogClosed.
func (s *Subscriber) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// closeWith records the detach reason and closes the channels. Only
// the owning Log calls this, always while holding the log lock, so no
// publish can race the channel close.
func (s *Subscriber) closeWith(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.ch)
		close(s.done)
	})
}
