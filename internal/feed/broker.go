// Package feed streams quote snapshots to gRPC subscribers. The server keeps
// the latest snapshot in a Broker and fans each new one out to every open
// stream.
package feed

import (
	"sync"

	"stockticker/internal/domain"
)

// Broker holds the latest snapshot and notifies subscribers of new ones.
type Broker struct {
	mu     sync.RWMutex
	latest domain.Snapshot
	have   bool

	subsMu    sync.Mutex
	nextSubID int
	subs      map[int]chan domain.Snapshot
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[int]chan domain.Snapshot)}
}

// Publish records snap as the latest snapshot and notifies subscribers. A
// subscriber whose buffer is full misses this snapshot.
func (b *Broker) Publish(snap domain.Snapshot) {
	b.mu.Lock()
	b.latest = snap
	b.have = true
	b.mu.Unlock()

	b.subsMu.Lock()
	for _, ch := range b.subs {
		select {
		case ch <- snap:
		default:
			// Slow subscriber, drop snapshot.
		}
	}
	b.subsMu.Unlock()
}

// Latest returns the most recent snapshot, if any.
func (b *Broker) Latest() (domain.Snapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.latest, b.have
}

// Subscribe creates a new subscription channel for published snapshots.
func (b *Broker) Subscribe(bufSize int) (id int, ch <-chan domain.Snapshot) {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()
	id = b.nextSubID
	b.nextSubID++
	c := make(chan domain.Snapshot, bufSize)
	b.subs[id] = c
	return id, c
}

// Unsubscribe removes and closes a subscription.
func (b *Broker) Unsubscribe(id int) {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()
	if ch, ok := b.subs[id]; ok {
		close(ch)
		delete(b.subs, id)
	}
}

// Subscribers returns the number of open subscriptions.
func (b *Broker) Subscribers() int {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()
	return len(b.subs)
}
