// Package pubsub fans persisted records out to live subscriptions.
package pubsub

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Broker delivers every published value to all current subscribers, in
// publish order. Subscriptions start empty (no history replay) and end when
// the subscriber's context is cancelled or the broker shuts down.
//
// Each subscription buffers pending values in memory, so a slow reader
// never stalls Publish and never loses a value. The buffer drains through
// a per-subscription goroutine.
type Broker[T any] struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]*subscriber[T]
	done chan struct{}
}

func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{
		subs: make(map[uuid.UUID]*subscriber[T]),
		done: make(chan struct{}),
	}
}

// Subscribe registers a new subscription. The returned channel is closed
// when ctx is cancelled or the broker shuts down; other subscribers are
// unaffected either way. On shutdown any values already published to the
// subscription are delivered before the close.
func (b *Broker[T]) Subscribe(ctx context.Context) <-chan T {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		ch := make(chan T)
		close(ch)
		return ch
	default:
	}

	id := uuid.New()
	sub := &subscriber[T]{
		out:  make(chan T),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	b.subs[id] = sub
	go sub.forward()

	go func() {
		select {
		case <-ctx.Done():
		case <-b.done:
			return
		}

		b.mu.Lock()
		defer b.mu.Unlock()
		select {
		case <-b.done:
			return
		default:
		}
		delete(b.subs, id)
		sub.abort()
	}()

	return sub.out
}

// Publish delivers v to every subscriber. It never blocks on a slow reader.
func (b *Broker[T]) Publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	select {
	case <-b.done:
		return
	default:
	}

	for _, sub := range b.subs {
		sub.push(v)
	}
}

// SubscriberCount reports the number of open subscriptions.
func (b *Broker[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Shutdown ends every subscription. Pending values still drain to readers
// before their channel closes as the end-of-sequence signal. It is
// idempotent and safe to call concurrently with Publish and Subscribe.
func (b *Broker[T]) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		return
	default:
		close(b.done)
	}

	for id, sub := range b.subs {
		delete(b.subs, id)
		sub.finish()
	}
}

// subscriber owns one subscription's pending queue. push appends under the
// lock and nudges the forwarder, which drains in FIFO order onto out.
type subscriber[T any] struct {
	mu        sync.Mutex
	pending   []T
	finishing bool
	aborted   bool

	out  chan T
	wake chan struct{}
	done chan struct{}
}

func (s *subscriber[T]) push(v T) {
	s.mu.Lock()
	if s.finishing || s.aborted {
		s.mu.Unlock()
		return
	}
	s.pending = append(s.pending, v)
	s.mu.Unlock()
	s.nudge()
}

// finish stops admission and lets the forwarder drain what remains before
// closing out.
func (s *subscriber[T]) finish() {
	s.mu.Lock()
	s.finishing = true
	s.mu.Unlock()
	s.nudge()
}

// abort stops delivery immediately. Used when the subscriber's own context
// is cancelled and nobody is reading anymore.
func (s *subscriber[T]) abort() {
	s.mu.Lock()
	if s.aborted {
		s.mu.Unlock()
		return
	}
	s.aborted = true
	s.mu.Unlock()
	close(s.done)
}

func (s *subscriber[T]) nudge() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber[T]) forward() {
	defer close(s.out)
	for {
		select {
		case <-s.wake:
		case <-s.done:
			return
		}
		for {
			s.mu.Lock()
			if len(s.pending) == 0 {
				finishing := s.finishing
				s.mu.Unlock()
				if finishing {
					return
				}
				break
			}
			v := s.pending[0]
			s.pending = s.pending[1:]
			s.mu.Unlock()

			select {
			case s.out <- v:
			case <-s.done:
				return
			}
		}
	}
}
