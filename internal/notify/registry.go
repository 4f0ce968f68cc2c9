package notify

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Registry hands out one Sink per portal session.
type Registry struct {
	ttl       time.Duration
	clock     clockwork.Clock
	publisher Publisher

	mu       sync.Mutex
	sinks    map[string]*Sink
	lastUsed map[string]time.Time
}

func NewRegistry(ttl time.Duration, clock clockwork.Clock, publisher Publisher) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Registry{
		ttl:       ttl,
		clock:     clock,
		publisher: publisher,
		sinks:     make(map[string]*Sink),
		lastUsed:  make(map[string]time.Time),
	}
}

func (r *Registry) For(sessionID string) *Sink {
	r.mu.Lock()
	defer r.mu.Unlock()
	sink, ok := r.sinks[sessionID]
	if !ok {
		sink = NewSink(sessionID, WithTTL(r.ttl), WithClock(r.clock), WithPublisher(r.publisher))
		r.sinks[sessionID] = sink
	}
	r.lastUsed[sessionID] = r.clock.Now()
	return sink
}

// Drop closes and forgets the sink of a session that logged out.
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	sink, ok := r.sinks[sessionID]
	delete(r.sinks, sessionID)
	delete(r.lastUsed, sessionID)
	r.mu.Unlock()
	if ok {
		sink.Close()
	}
}

// Sweep closes the sinks of sessions not seen for idle and returns how many
// were dropped.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := r.clock.Now().Add(-idle)
	var stale []*Sink
	r.mu.Lock()
	for id, seen := range r.lastUsed {
		if seen.Before(cutoff) {
			stale = append(stale, r.sinks[id])
			delete(r.sinks, id)
			delete(r.lastUsed, id)
		}
	}
	r.mu.Unlock()
	for _, sink := range stale {
		sink.Close()
	}
	return len(stale)
}
