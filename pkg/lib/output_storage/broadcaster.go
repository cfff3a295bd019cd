package output_storage

import (
	"errors"
	"sync"
)

// ErrBroadcasterStopped is returned by Subscribe after Stop.
var ErrBroadcasterStopped = errors.New("broadcaster is stopped")

// Broadcaster fans values out to every subscriber. Each subscriber channel
// holds one value; a subscriber that falls behind sees only the latest.
// Publish never blocks.
type Broadcaster[T any] struct {
	mu          sync.Mutex
	subscribers map[<-chan T]chan T
	stopped     bool
}

func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{subscribers: make(map[<-chan T]chan T)}
}

func (broadcaster *Broadcaster[T]) Subscribe() (<-chan T, error) {
	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()

	if broadcaster.stopped {
		return nil, ErrBroadcasterStopped
	}
	ch := make(chan T, 1)
	broadcaster.subscribers[ch] = ch
	logger.Debug("new subscriber", "subscribers", len(broadcaster.subscribers))
	return ch, nil
}

// Unsubscribe removes and closes the subscriber's channel. Unknown channels
// are ignored.
func (broadcaster *Broadcaster[T]) Unsubscribe(subscriber <-chan T) {
	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()

	ch, ok := broadcaster.subscribers[subscriber]
	if !ok {
		return
	}
	delete(broadcaster.subscribers, subscriber)
	close(ch)
}

func (broadcaster *Broadcaster[T]) Publish(msg T) {
	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()

	for _, ch := range broadcaster.subscribers {
		select {
		case ch <- msg:
			continue
		default:
		}
		// full: drop the stale value so the latest one fits
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- msg:
		default:
		}
	}
}

// Stop closes every subscriber channel. It is safe to call more than once.
func (broadcaster *Broadcaster[T]) Stop() {
	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()

	if broadcaster.stopped {
		return
	}
	broadcaster.stopped = true
	for key, ch := range broadcaster.subscribers {
		close(ch)
		delete(broadcaster.subscribers, key)
	}
	logger.Debug("broadcaster stopped")
}
