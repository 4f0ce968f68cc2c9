package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu   sync.Mutex
	seen []Notification
}

func (p *recordingPublisher) Publish(_ string, n Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, n)
}

func messages(items []Notification) []string {
	out := make([]string, 0, len(items))
	for _, n := range items {
		out = append(out, n.Message)
	}
	return out
}

func TestNotifyStacksInOrder(t *testing.T) {
	sink := NewSink("s1", WithClock(clockwork.NewFakeClock()))
	sink.Notify("first", KindSuccess)
	sink.Notify("second", KindError)

	active := sink.Active()
	require.Equal(t, []string{"first", "second"}, messages(active))
	require.Equal(t, KindSuccess, active[0].Kind)
	require.Equal(t, KindError, active[1].Kind)
}

func TestUnknownKindIsInfo(t *testing.T) {
	sink := NewSink("s1", WithClock(clockwork.NewFakeClock()))
	n := sink.Notify("hello", Kind("warning"))
	require.Equal(t, KindInfo, n.Kind)
	require.Equal(t, KindInfo, ParseKind(""))
	require.Equal(t, KindError, ParseKind(" ERROR "))
}

func TestEachNotificationHasItsOwnTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sink := NewSink("s1", WithClock(clock))

	sink.Notify("A", KindInfo)
	clock.Advance(1000 * time.Millisecond)
	sink.Notify("B", KindInfo)

	clock.Advance(4000 * time.Millisecond)
	require.Eventually(t, func() bool {
		return len(sink.Active()) == 1
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"B"}, messages(sink.Active()))

	clock.Advance(1000 * time.Millisecond)
	require.Eventually(t, func() bool {
		return len(sink.Active()) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestStillVisibleBeforeTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sink := NewSink("s1", WithClock(clock), WithTTL(2*time.Second))
	sink.Notify("A", KindInfo)

	clock.Advance(1999 * time.Millisecond)
	require.Len(t, sink.Active(), 1)
}

func TestDismissRemovesEarly(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sink := NewSink("s1", WithClock(clock))
	a := sink.Notify("A", KindInfo)
	sink.Notify("B", KindInfo)

	require.True(t, sink.Dismiss(a.ID))
	require.False(t, sink.Dismiss(a.ID))
	require.Equal(t, []string{"B"}, messages(sink.Active()))
}

func TestPublisherSeesEveryNotification(t *testing.T) {
	pub := &recordingPublisher{}
	sink := NewSink("s1", WithClock(clockwork.NewFakeClock()), WithPublisher(pub))
	sink.Notify("A", KindSuccess)
	sink.Notify("B", KindError)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Equal(t, []string{"A", "B"}, messages(pub.seen))
}

func TestRegistryPerSession(t *testing.T) {
	reg := NewRegistry(time.Second, clockwork.NewFakeClock(), nil)
	a := reg.For("a")
	require.Same(t, a, reg.For("a"))
	require.NotSame(t, a, reg.For("b"))

	a.Notify("x", KindInfo)
	reg.Drop("a")
	require.Empty(t, a.Active())
	require.NotSame(t, a, reg.For("a"))
}

func TestRegistrySweepClosesIdleSinks(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reg := NewRegistry(time.Hour, clock, nil)
	idle := reg.For("idle")
	idle.Notify("left behind", KindInfo)
	clock.Advance(2 * time.Hour)
	active := reg.For("active")

	require.Equal(t, 1, reg.Sweep(time.Hour))
	require.Empty(t, idle.Active())
	require.Same(t, active, reg.For("active"))
	require.NotSame(t, idle, reg.For("idle"))
}
