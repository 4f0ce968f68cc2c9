package binder

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/phillip-england/hrms/internal/apiclient"
	"github.com/phillip-england/hrms/internal/logging"
	"github.com/phillip-england/hrms/internal/notify"
	"github.com/phillip-england/hrms/internal/session"
	"github.com/phillip-england/hrms/internal/table"
)

type reply struct {
	env  apiclient.Envelope
	err  error
	gate chan struct{}
}

type fakeFetcher struct {
	mu      sync.Mutex
	replies map[string][]reply
	calls   []string
}

func (f *fakeFetcher) queue(path string, r reply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replies == nil {
		f.replies = map[string][]reply{}
	}
	f.replies[path] = append(f.replies[path], r)
}

func (f *fakeFetcher) Call(ctx context.Context, _ *session.Session, method, path string, _ any) (apiclient.Envelope, error) {
	f.mu.Lock()
	f.calls = append(f.calls, method+" "+path)
	queue := f.replies[path]
	if len(queue) == 0 {
		f.mu.Unlock()
		return apiclient.Envelope{}, &apiclient.TransportError{Method: method, Path: path, Err: context.DeadlineExceeded}
	}
	r := queue[0]
	f.replies[path] = queue[1:]
	f.mu.Unlock()
	if r.gate != nil {
		<-r.gate
	}
	return r.env, r.err
}

type captureNotifier struct {
	mu    sync.Mutex
	items []notify.Notification
}

func (c *captureNotifier) Notify(message string, kind notify.Kind) notify.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := notify.Notification{Message: message, Kind: kind}
	c.items = append(c.items, n)
	return n
}

func ok(data string) apiclient.Envelope {
	return apiclient.Envelope{Success: true, Data: json.RawMessage(data)}
}

var attendance = Binding{
	Name:     "attendance",
	Label:    "attendance",
	Endpoint: "/api/attendance",
	Columns: table.Columns{
		{Header: "Date", Accessor: table.Date("date")},
		{Header: "Check In", Accessor: table.Clock("check_in_time")},
		{Header: "Check Out", Accessor: table.Clock("check_out_time")},
		{Header: "Status", Accessor: table.Status("status")},
	},
	EmptyMessage: "No attendance records found",
	OnLoaded: func(_ *session.Session, records []table.Record) map[string]string {
		return map[string]string{"recent": "1 recent record(s)"}
	},
}

func cellsOf(t *testing.T, view View) []string {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(view.Markup)))
	require.NoError(t, err)
	var cells []string
	doc.Find("tbody td").Each(func(_ int, s *goquery.Selection) {
		cells = append(cells, strings.TrimSpace(s.Text()))
	})
	return cells
}

func newBinder(f Fetcher) *Binder {
	return New(f, logging.Discard())
}

func TestBindRendersRows(t *testing.T) {
	fetcher := &fakeFetcher{}
	fetcher.queue("/api/attendance", reply{env: ok(`[{"date":"2025-01-02","check_in_time":"09:01","check_out_time":"18:03","status":"present"}]`)})
	surface := NewMemorySurface(clockwork.NewFakeClock())
	sink := &captureNotifier{}

	out := newBinder(fetcher).Bind(context.Background(), &session.Session{ID: "s"}, attendance, surface, sink)
	require.NoError(t, out.Err)
	require.Equal(t, StateRendered, out.State)
	require.Equal(t, StateRendered, surface.State("attendance"))

	view, written := surface.Get("attendance")
	require.True(t, written)
	require.Equal(t, []string{"2025-01-02", "09:01", "18:03", "present"}, cellsOf(t, view))
	require.Equal(t, "1 recent record(s)", view.Summary["recent"])
	require.Empty(t, sink.items)
	require.Equal(t, []string{http.MethodGet + " /api/attendance"}, fetcher.calls)
}

func TestBindEmptyShowsPlaceholder(t *testing.T) {
	fetcher := &fakeFetcher{}
	fetcher.queue("/api/attendance", reply{env: ok(`[]`)})
	surface := NewMemorySurface(nil)

	out := newBinder(fetcher).Bind(context.Background(), nil, attendance, surface, &captureNotifier{})
	require.Equal(t, StateEmpty, out.State)

	view, _ := surface.Get("attendance")
	require.Equal(t, []string{"No attendance records found"}, cellsOf(t, view))
	require.Equal(t, "1 recent record(s)", view.Summary["recent"])
}

func TestEmptyRebindResetsSummary(t *testing.T) {
	counted := Binding{
		Name:         "leave-requests",
		Label:        "leave requests",
		Endpoint:     "/api/leave-requests",
		Columns:      table.Columns{{Header: "Status", Accessor: table.Status("status")}},
		EmptyMessage: "No leave requests found",
		OnLoaded: func(_ *session.Session, records []table.Record) map[string]string {
			pending := 0
			for _, r := range records {
				if r.Text("status") == "pending" {
					pending++
				}
			}
			return map[string]string{"pending": strconv.Itoa(pending)}
		},
	}
	fetcher := &fakeFetcher{}
	fetcher.queue("/api/leave-requests", reply{env: ok(`[{"status":"pending"}]`)})
	fetcher.queue("/api/leave-requests", reply{env: ok(`[]`)})
	surface := NewMemorySurface(nil)
	b := newBinder(fetcher)

	b.Bind(context.Background(), nil, counted, surface, &captureNotifier{})
	view, _ := surface.Get("leave-requests")
	require.Equal(t, "1", view.Summary["pending"])

	out := b.Bind(context.Background(), nil, counted, surface, &captureNotifier{})
	require.Equal(t, StateEmpty, out.State)
	view, _ = surface.Get("leave-requests")
	require.Equal(t, "0", view.Summary["pending"])

	plain := counted
	plain.OnLoaded = nil
	fetcher.queue("/api/leave-requests", reply{env: ok(`[]`)})
	b.Bind(context.Background(), nil, plain, surface, &captureNotifier{})
	view, _ = surface.Get("leave-requests")
	require.Nil(t, view.Summary)
}

func TestBindFailureKeepsSurfaceAndNotifiesOnce(t *testing.T) {
	fetcher := &fakeFetcher{}
	fetcher.queue("/api/attendance", reply{env: ok(`[{"date":"2025-01-02","status":"present"}]`)})
	fetcher.queue("/api/attendance", reply{err: &apiclient.ApplicationError{Status: 500, Message: "database offline"}})
	surface := NewMemorySurface(nil)
	sink := &captureNotifier{}
	b := newBinder(fetcher)

	b.Bind(context.Background(), nil, attendance, surface, sink)
	before, _ := surface.Get("attendance")

	out := b.Bind(context.Background(), nil, attendance, surface, sink)
	require.Error(t, out.Err)
	require.Equal(t, StateFailed, surface.State("attendance"))

	after, _ := surface.Get("attendance")
	require.Equal(t, before.Markup, after.Markup)
	require.Len(t, sink.items, 1)
	require.Equal(t, "Failed to load attendance: database offline", sink.items[0].Message)
	require.Equal(t, notify.KindError, sink.items[0].Kind)
}

func TestBindTransportFailure(t *testing.T) {
	surface := NewMemorySurface(nil)
	sink := &captureNotifier{}

	out := newBinder(&fakeFetcher{}).Bind(context.Background(), nil, attendance, surface, sink)
	require.True(t, apiclient.IsTransport(out.Err))
	_, written := surface.Get("attendance")
	require.False(t, written)
	require.Len(t, sink.items, 1)
	require.Equal(t, "Failed to load attendance: service unavailable", sink.items[0].Message)
}

func TestBindNonListDataFails(t *testing.T) {
	fetcher := &fakeFetcher{}
	fetcher.queue("/api/attendance", reply{env: ok(`{"not":"a list"}`)})
	sink := &captureNotifier{}

	out := newBinder(fetcher).Bind(context.Background(), nil, attendance, NewMemorySurface(nil), sink)
	require.Equal(t, StateFailed, out.State)
	require.Len(t, sink.items, 1)
}

func TestLatestRequestWins(t *testing.T) {
	slow := make(chan struct{})
	fetcher := &fakeFetcher{}
	fetcher.queue("/api/attendance", reply{env: ok(`[{"date":"2025-01-01"}]`), gate: slow})
	fetcher.queue("/api/attendance", reply{env: ok(`[{"date":"2025-01-09"}]`)})
	surface := NewMemorySurface(nil)
	b := newBinder(fetcher)

	first := make(chan Outcome, 1)
	go func() {
		first <- b.Bind(context.Background(), nil, attendance, surface, &captureNotifier{})
	}()
	require.Eventually(t, func() bool {
		fetcher.mu.Lock()
		defer fetcher.mu.Unlock()
		return len(fetcher.calls) == 1
	}, time.Second, 5*time.Millisecond)

	second := b.Bind(context.Background(), nil, attendance, surface, &captureNotifier{})
	require.False(t, second.Stale)
	close(slow)
	stale := <-first
	require.True(t, stale.Stale)
	require.NoError(t, stale.Err)
	require.Len(t, stale.Records, 1)

	view, _ := surface.Get("attendance")
	require.Equal(t, "2025-01-09", cellsOf(t, view)[0])
	require.Equal(t, StateRendered, surface.State("attendance"))
}

func TestBindAllIndependent(t *testing.T) {
	fetcher := &fakeFetcher{}
	fetcher.queue("/api/attendance", reply{env: ok(`[{"date":"2025-01-02"}]`)})
	leave := Binding{Name: "leave-requests", Label: "leave requests", Endpoint: "/api/leave-requests", Columns: table.Columns{{Header: "Type", Accessor: table.Field("leave_type")}}, EmptyMessage: "No leave requests found"}
	surface := NewMemorySurface(nil)
	sink := &captureNotifier{}

	outcomes := newBinder(fetcher).BindAll(context.Background(), nil, []Binding{attendance, leave}, surface, sink)
	require.Len(t, outcomes, 2)
	require.Equal(t, StateRendered, outcomes[0].State)
	require.Equal(t, StateFailed, outcomes[1].State)
	require.Equal(t, StateRendered, surface.State("attendance"))
	require.Equal(t, StateFailed, surface.State("leave-requests"))
	require.Len(t, sink.items, 1)
	require.Equal(t, "Failed to load leave requests: service unavailable", sink.items[0].Message)
}

func TestBindSingleRecord(t *testing.T) {
	profile := Binding{
		Name:         "profile",
		Label:        "profile",
		Endpoint:     "/api/profile",
		Single:       true,
		Columns:      table.Columns{{Header: "Name", Accessor: table.Field("full_name")}},
		EmptyMessage: "Profile not available",
	}
	fetcher := &fakeFetcher{}
	fetcher.queue("/api/profile", reply{env: ok(`{"full_name":"Aisyah Rahman"}`)})
	fetcher.queue("/api/profile", reply{env: ok(`null`)})
	fetcher.queue("/api/profile", reply{env: ok(`[1,2]`)})
	surface := NewMemorySurface(nil)
	b := newBinder(fetcher)

	out := b.Bind(context.Background(), nil, profile, surface, &captureNotifier{})
	require.Equal(t, StateRendered, out.State)
	require.Len(t, out.Records, 1)
	view, _ := surface.Get("profile")
	require.Equal(t, []string{"Aisyah Rahman"}, cellsOf(t, view))

	out = b.Bind(context.Background(), nil, profile, surface, &captureNotifier{})
	require.Equal(t, StateEmpty, out.State)

	sink := &captureNotifier{}
	out = b.Bind(context.Background(), nil, profile, surface, sink)
	require.Equal(t, StateFailed, out.State)
	require.Len(t, sink.items, 1)
}

func TestBindKeyedEndpoint(t *testing.T) {
	history := Binding{
		Name:         "salary-history",
		Label:        "salary history",
		Endpoint:     "/api/admin/salary-history/{key}",
		Columns:      table.Columns{{Header: "New", Accessor: table.Field("new_salary")}},
		EmptyMessage: "No salary changes recorded",
	}
	fetcher := &fakeFetcher{}
	fetcher.queue("/api/admin/salary-history/a%2Fb", reply{env: ok(`[{"new_salary":"7000"}]`)})
	surface := NewMemorySurface(nil)
	b := newBinder(fetcher)

	sink := &captureNotifier{}
	out := b.Bind(context.Background(), nil, history, surface, sink)
	require.ErrorIs(t, out.Err, errUnresolvedKey)
	require.Empty(t, fetcher.calls)
	require.Len(t, sink.items, 1)

	out = b.Bind(context.Background(), nil, history.WithKey("a/b"), surface, &captureNotifier{})
	require.NoError(t, out.Err)
	require.Equal(t, []string{http.MethodGet + " /api/admin/salary-history/a%2Fb"}, fetcher.calls)
	view, _ := surface.Get("salary-history")
	require.Equal(t, []string{"7000"}, cellsOf(t, view))
}
