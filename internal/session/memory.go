package session

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type MemoryStore struct {
	mu       sync.RWMutex
	ttl      time.Duration
	clock    clockwork.Clock
	sessions map[string]memoryEntry
}

type memoryEntry struct {
	session   Session
	expiresAt time.Time
}

func NewMemoryStore(ttl time.Duration, clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{
		ttl:      ttl,
		clock:    clock,
		sessions: make(map[string]memoryEntry),
	}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	entry, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if m.ttl > 0 && !m.clock.Now().Before(entry.expiresAt) {
		_ = m.Delete(context.Background(), id)
		return nil, ErrNotFound
	}
	sess := entry.session
	return &sess, nil
}

func (m *MemoryStore) Put(_ context.Context, sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = memoryEntry{session: *sess, expiresAt: m.clock.Now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}
