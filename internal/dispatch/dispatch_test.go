package dispatch

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/phillip-england/hrms/internal/apiclient"
	"github.com/phillip-england/hrms/internal/logging"
	"github.com/phillip-england/hrms/internal/notify"
	"github.com/phillip-england/hrms/internal/session"
)

type stubFetcher struct {
	calls atomic.Int32
	gate  chan struct{}
	env   apiclient.Envelope
	err   error
}

func (s *stubFetcher) Call(ctx context.Context, _ *session.Session, _, _ string, _ any) (apiclient.Envelope, error) {
	s.calls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	return s.env, s.err
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

func (c *captureNotifier) snapshot() []notify.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]notify.Notification(nil), c.items...)
}

var approve = Action{
	Name:   "approve-leave",
	Label:  "approve leave request",
	Method: http.MethodPost,
	Path:   "/api/admin/leave-requests/7/approve",
}

func TestDispatchSuccessRefreshesThenNotifies(t *testing.T) {
	fetcher := &stubFetcher{env: apiclient.Envelope{Success: true, Message: "Leave request approved"}}
	sink := &captureNotifier{}
	var order []string
	refresh := func(context.Context) {
		order = append(order, "refresh")
		require.Empty(t, sink.snapshot())
	}

	res := New(fetcher, logging.Discard()).Dispatch(context.Background(), &session.Session{ID: "s"}, approve, sink, refresh)
	require.NoError(t, res.Err)
	require.True(t, res.Refreshed)
	require.False(t, res.Shared)
	require.Equal(t, []string{"refresh"}, order)

	items := sink.snapshot()
	require.Len(t, items, 1)
	require.Equal(t, "Leave request approved", items[0].Message)
	require.Equal(t, notify.KindSuccess, items[0].Kind)
}

func TestDispatchSuccessFallbackMessage(t *testing.T) {
	fetcher := &stubFetcher{env: apiclient.Envelope{Success: true}}
	sink := &captureNotifier{}

	New(fetcher, logging.Discard()).Dispatch(context.Background(), nil, approve, sink, nil)
	require.Equal(t, "Approve leave request succeeded", sink.snapshot()[0].Message)
}

func TestDispatchFailureSkipsRefresh(t *testing.T) {
	fetcher := &stubFetcher{err: &apiclient.ApplicationError{Status: http.StatusConflict, Message: "already processed"}}
	sink := &captureNotifier{}
	refreshed := false

	res := New(fetcher, logging.Discard()).Dispatch(context.Background(), nil, approve, sink, func(context.Context) { refreshed = true })
	require.Error(t, res.Err)
	require.False(t, refreshed)
	require.False(t, res.Refreshed)

	items := sink.snapshot()
	require.Len(t, items, 1)
	require.Equal(t, "Failed to approve leave request: already processed", items[0].Message)
	require.Equal(t, notify.KindError, items[0].Kind)
}

func TestDispatchFailureWithoutMessage(t *testing.T) {
	fetcher := &stubFetcher{err: &apiclient.ApplicationError{Status: http.StatusBadRequest}}
	sink := &captureNotifier{}

	New(fetcher, logging.Discard()).Dispatch(context.Background(), nil, approve, sink, nil)
	require.Equal(t, "Failed to approve leave request: request failed", sink.snapshot()[0].Message)
}

func TestDuplicateSubmissionIsCoalesced(t *testing.T) {
	fetcher := &stubFetcher{gate: make(chan struct{}), env: apiclient.Envelope{Success: true, Message: "Checked in"}}
	sink := &captureNotifier{}
	var refreshes atomic.Int32
	d := New(fetcher, logging.Discard())
	sess := &session.Session{ID: "s"}
	checkIn := Action{Name: "check-in", Label: "check in", Method: http.MethodPost, Path: "/api/attendance/check-in"}

	results := make(chan Result, 2)
	for i := 0; i < 2; i++ {
		go func() {
			results <- d.Dispatch(context.Background(), sess, checkIn, sink, func(context.Context) { refreshes.Add(1) })
		}()
	}
	require.Eventually(t, func() bool { return fetcher.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(fetcher.gate)

	first, second := <-results, <-results
	require.EqualValues(t, 1, fetcher.calls.Load())
	require.EqualValues(t, 1, refreshes.Load())
	require.Len(t, sink.snapshot(), 1)
	require.True(t, first.Shared || second.Shared)
}

func TestDifferentSessionsAreNotCoalesced(t *testing.T) {
	fetcher := &stubFetcher{env: apiclient.Envelope{Success: true}}
	d := New(fetcher, logging.Discard())

	d.Dispatch(context.Background(), &session.Session{ID: "a"}, approve, nil, nil)
	d.Dispatch(context.Background(), &session.Session{ID: "b"}, approve, nil, nil)
	require.EqualValues(t, 2, fetcher.calls.Load())
}

type leaveForm struct {
	LeaveType string `json:"leave_type" validate:"required,oneof=annual sick emergency unpaid"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

func TestInvalidPayloadSendsNothing(t *testing.T) {
	fetcher := &stubFetcher{env: apiclient.Envelope{Success: true}}
	sink := &captureNotifier{}
	submit := Action{Name: "submit-leave", Label: "submit leave request", Method: http.MethodPost, Path: "/api/leave-requests/submit", Body: &leaveForm{LeaveType: "annual", StartDate: "2025-02-01"}}

	res := New(fetcher, logging.Discard()).Dispatch(context.Background(), nil, submit, sink, nil)
	var invalid *InvalidError
	require.ErrorAs(t, res.Err, &invalid)
	require.Equal(t, "end_date", invalid.Field)
	require.Zero(t, fetcher.calls.Load())
	require.Equal(t, "Failed to submit leave request: end_date is required", sink.snapshot()[0].Message)
}
