package broadcast

import (
	"context"
	"sync"
)

// Filter selects which messages a subscriber receives. A nil filter accepts everything.
type Filter[T any] func(T) bool

// Subscriber receives messages from a Broadcaster.
type Subscriber[T any] interface {
	// Receive returns the delivery channel. It is closed when the subscriber
	// is closed, its context ends or the broadcaster shuts down.
	Receive() <-chan T

	// Close releases the subscription. It is idempotent.
	Close() error
}

// Broadcaster fans messages out to subscribers without blocking on slow ones.
type Broadcaster[T any] interface {
	Subscribe(ctx context.Context, filter Filter[T]) Subscriber[T]
	// Broadcast delivers msg to every matching subscriber and returns how many
	// subscribers missed it because their buffer was full.
	Broadcast(ctx context.Context, msg T) (dropped int, err error)
	Close() error
}

type subscriber[T any] struct {
	mu     sync.RWMutex
	ch     chan T
	filter Filter[T]
	closed bool
	detach func()
}

func (s *subscriber[T]) Receive() <-chan T {
	return s.ch
}

func (s *subscriber[T]) Close() error {
	if s.detach != nil {
		s.detach()
	}
	s.shut()
	return nil
}

func (s *subscriber[T]) shut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		close(s.ch)
		s.closed = true
	}
}

// deliver reports false when the message was dropped.
func (s *subscriber[T]) deliver(msg T) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return true
	}
	if s.filter != nil && !s.filter(msg) {
		return true
	}
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}
