// Package notify holds the transient messages shown to one portal session.
// Each notification carries its own dismissal timer; later notifications
// never shorten or cancel earlier ones.
package notify

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const DefaultTTL = 5000 * time.Millisecond

type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

// ParseKind maps free-form kinds onto the known set; unknown kinds are info.
func ParseKind(raw string) Kind {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindSuccess:
		return KindSuccess
	case KindError:
		return KindError
	default:
		return KindInfo
	}
}

type Notification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Publisher receives every notification as it is raised, e.g. to push it
// to open browser tabs. Publish must not block for long.
type Publisher interface {
	Publish(sessionID string, n Notification)
}

// Notifier is what binders and dispatchers depend on.
type Notifier interface {
	Notify(message string, kind Kind) Notification
}

type Sink struct {
	sessionID string
	ttl       time.Duration
	clock     clockwork.Clock
	publisher Publisher

	mu     sync.Mutex
	items  []Notification
	timers map[string]clockwork.Timer
}

type Option func(*Sink)

func WithTTL(ttl time.Duration) Option {
	return func(s *Sink) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(s *Sink) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithPublisher(p Publisher) Option {
	return func(s *Sink) { s.publisher = p }
}

func NewSink(sessionID string, opts ...Option) *Sink {
	s := &Sink{
		sessionID: sessionID,
		ttl:       DefaultTTL,
		clock:     clockwork.NewRealClock(),
		timers:    make(map[string]clockwork.Timer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sink) Notify(message string, kind Kind) Notification {
	now := s.clock.Now()
	n := Notification{
		ID:        uuid.NewString(),
		Message:   message,
		Kind:      ParseKind(string(kind)),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	s.items = append(s.items, n)
	id := n.ID
	s.timers[id] = s.clock.AfterFunc(s.ttl, func() { s.expire(id) })
	s.mu.Unlock()

	if s.publisher != nil {
		s.publisher.Publish(s.sessionID, n)
	}
	return n
}

// Dismiss removes a notification before its timer fires. It reports whether
// the notification was still active.
func (s *Sink) Dismiss(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
	}
	return s.removeLocked(id)
}

func (s *Sink) expire(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(id)
}

func (s *Sink) removeLocked(id string) bool {
	delete(s.timers, id)
	for i, n := range s.items {
		if n.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

// Active returns the visible stack, oldest first.
func (s *Sink) Active() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, len(s.items))
	copy(out, s.items)
	return out
}

// Close stops every pending timer and clears the stack.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.items = nil
}
