// Package events fans pipeline outcomes out to live subscribers such as
// the status server's websocket stream.
package events

import (
	"sync"

	"github.com/tinoosan/modsync/internal/data"
)

// Reporter publishes outcomes.
type Reporter interface {
	Report(data.Outcome)
}

// Bus delivers every reported outcome to all current subscribers. Slow
// subscribers miss outcomes instead of blocking the reporter.
type Bus struct {
	mu      sync.Mutex
	subs    map[int]chan data.Outcome
	next    int
	dropped int
}

func NewBus() *Bus { return &Bus{subs: make(map[int]chan data.Outcome)} }

// Subscribe registers a subscriber with the given buffer size. The
// returned cancel func unregisters it and closes the channel.
func (b *Bus) Subscribe(buf int) (<-chan data.Outcome, func()) {
	ch := make(chan data.Outcome, buf)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *Bus) Report(o data.Outcome) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- o:
		default:
			b.dropped++
		}
	}
}

// Dropped returns how many deliveries were skipped because a subscriber's
// buffer was full.
func (b *Bus) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Subscribers returns the number of registered subscribers.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
