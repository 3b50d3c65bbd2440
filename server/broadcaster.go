package server

import "sync"

// Broadcaster fans published values out to subscribers.  Subscribers that
// are not keeping up miss values instead of blocking the publisher.
type Broadcaster[T any] struct {
	mu   sync.Mutex
	subs map[chan T]struct{}
	size int
}

// NewBroadcaster creates an empty broadcaster whose subscriber channels
// buffer size values
func NewBroadcaster[T any](size int) *Broadcaster[T] {
	return &Broadcaster[T]{
		subs: make(map[chan T]struct{}),
		size: size,
	}
}

// Subscribe registers a new subscriber and returns its channel
func (b *Broadcaster[T]) Subscribe() chan T {
	ch := make(chan T, b.size)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel
func (b *Broadcaster[T]) Unsubscribe(ch chan T) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish delivers v to all subscribers
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	for ch := range b.subs {
		select {
		case ch <- v:
		default:
			// dropped for a lagging subscriber
		}
	}
	b.mu.Unlock()
}

// Len returns the number of subscribers
func (b *Broadcaster[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.subs)
}
