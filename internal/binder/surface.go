package binder

import (
	"html/template"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type State string

const (
	StateIdle     State = "idle"
	StateLoading  State = "loading"
	StateRendered State = "rendered"
	StateEmpty    State = "empty"
	StateFailed   State = "failed"
)

// View is what a surface shows for one target.
type View struct {
	Markup    template.HTML
	Summary   map[string]string
	State     State
	Seq       uint64
	UpdatedAt time.Time
}

// Surface is the display region bindings write into. Begin hands out a
// monotonically increasing sequence number per target; Commit and Fail only
// take effect for a sequence number newer than the last one applied, so the
// latest request wins regardless of completion order.
type Surface interface {
	Begin(target string) uint64
	Commit(target string, seq uint64, markup template.HTML, summary map[string]string, state State) bool
	Fail(target string, seq uint64) bool
	Get(target string) (View, bool)
	State(target string) State
}

type slot struct {
	issued  uint64
	applied uint64
	view    View
}

// MemorySurface keeps one session's rendered views in memory.
type MemorySurface struct {
	clock clockwork.Clock

	mu    sync.Mutex
	slots map[string]*slot
}

func NewMemorySurface(clock clockwork.Clock) *MemorySurface {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemorySurface{clock: clock, slots: make(map[string]*slot)}
}

func (s *MemorySurface) slotLocked(target string) *slot {
	sl, ok := s.slots[target]
	if !ok {
		sl = &slot{view: View{State: StateIdle}}
		s.slots[target] = sl
	}
	return sl
}

func (s *MemorySurface) Begin(target string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := s.slotLocked(target)
	sl.issued++
	sl.view.State = StateLoading
	return sl.issued
}

func (s *MemorySurface) Commit(target string, seq uint64, markup template.HTML, summary map[string]string, state State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := s.slotLocked(target)
	if seq <= sl.applied {
		return false
	}
	sl.applied = seq
	sl.view.Markup = markup
	sl.view.Seq = seq
	sl.view.UpdatedAt = s.clock.Now()
	sl.view.Summary = summary
	if seq == sl.issued {
		sl.view.State = state
	}
	return true
}

// Fail records a failed completion. The previous markup stays in place.
func (s *MemorySurface) Fail(target string, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := s.slotLocked(target)
	if seq <= sl.applied {
		return false
	}
	sl.applied = seq
	if seq == sl.issued {
		sl.view.State = StateFailed
	}
	return true
}

func (s *MemorySurface) Get(target string) (View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[target]
	if !ok {
		return View{State: StateIdle}, false
	}
	view := sl.view
	if view.Summary != nil {
		summary := make(map[string]string, len(view.Summary))
		for k, v := range view.Summary {
			summary[k] = v
		}
		view.Summary = summary
	}
	return view, view.Seq > 0
}

func (s *MemorySurface) State(target string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sl, ok := s.slots[target]; ok {
		return sl.view.State
	}
	return StateIdle
}

// Surfaces hands out one MemorySurface per portal session.
type Surfaces struct {
	clock clockwork.Clock

	mu       sync.Mutex
	surfaces map[string]*MemorySurface
	lastUsed map[string]time.Time
}

func NewSurfaces(clock clockwork.Clock) *Surfaces {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Surfaces{clock: clock, surfaces: make(map[string]*MemorySurface), lastUsed: make(map[string]time.Time)}
}

func (s *Surfaces) For(sessionID string) *MemorySurface {
	s.mu.Lock()
	defer s.mu.Unlock()
	surface, ok := s.surfaces[sessionID]
	if !ok {
		surface = NewMemorySurface(s.clock)
		s.surfaces[sessionID] = surface
	}
	s.lastUsed[sessionID] = s.clock.Now()
	return surface
}

func (s *Surfaces) Drop(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.surfaces, sessionID)
	delete(s.lastUsed, sessionID)
}

// Sweep forgets surfaces not used for idle and returns how many went.
func (s *Surfaces) Sweep(idle time.Duration) int {
	cutoff := s.clock.Now().Add(-idle)
	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := 0
	for id, seen := range s.lastUsed {
		if seen.Before(cutoff) {
			delete(s.surfaces, id)
			delete(s.lastUsed, id)
			dropped++
		}
	}
	return dropped
}
