// Package binder connects backend list endpoints to display surfaces: fetch,
// render through the table package, write the surface, and report failures
// through the session's notifier.
package binder

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/phillip-england/hrms/internal/apiclient"
	"github.com/phillip-england/hrms/internal/notify"
	"github.com/phillip-england/hrms/internal/session"
	"github.com/phillip-england/hrms/internal/table"
)

// Fetcher is the slice of the API client a binder needs.
type Fetcher interface {
	Call(ctx context.Context, sess *session.Session, method, path string, body any) (apiclient.Envelope, error)
}

// Binding describes one view. Bindings are built once at startup and never
// mutated afterwards; WithKey returns a copy.
type Binding struct {
	Name     string
	Label    string
	Endpoint string
	Target   string
	// Single marks an endpoint that answers with one object. It renders as a
	// one-row table, or the empty state when the object is null.
	Single       bool
	Columns      table.Columns
	Actions      []table.RowAction
	EmptyMessage string
	AdminOnly    bool
	OnLoaded     func(sess *session.Session, records []table.Record) map[string]string
}

// NeedsKey reports whether Endpoint has a "{key}" placeholder that must be
// filled with WithKey before binding.
func (b Binding) NeedsKey() bool {
	return strings.Contains(b.Endpoint, keyPlaceholder)
}

// WithKey returns a copy whose endpoint carries the escaped key.
func (b Binding) WithKey(key string) Binding {
	b.Endpoint = strings.ReplaceAll(b.Endpoint, keyPlaceholder, url.PathEscape(key))
	return b
}

func (b Binding) table() table.Table {
	return table.Table{Columns: b.Columns, Actions: b.Actions, EmptyMessage: b.EmptyMessage}
}

func (b Binding) label() string {
	if b.Label != "" {
		return b.Label
	}
	return b.Name
}

func (b Binding) target() string {
	if b.Target != "" {
		return b.Target
	}
	return b.Name
}

const keyPlaceholder = "{key}"

var errUnresolvedKey = errors.New("endpoint key not set")

type Outcome struct {
	Binding string
	State   State
	Records []table.Record
	Stale   bool
	Err     error
}

type Binder struct {
	fetcher Fetcher
	logger  *logrus.Logger
}

func New(fetcher Fetcher, logger *logrus.Logger) *Binder {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Binder{fetcher: fetcher, logger: logger}
}

// Bind fetches the binding's endpoint and updates surface. Failures leave the
// surface content as it was and raise exactly one error notification.
func (b *Binder) Bind(ctx context.Context, sess *session.Session, binding Binding, surface Surface, sink notify.Notifier) Outcome {
	start := time.Now()
	target := binding.target()
	seq := surface.Begin(target)
	log := b.logger.WithFields(logrus.Fields{
		"binding":  binding.Name,
		"endpoint": binding.Endpoint,
		"seq":      seq,
	})
	if sess != nil {
		log = log.WithField("session", sess.ID)
	}

	records, err := b.fetch(ctx, sess, binding)
	if err != nil {
		log.WithError(err).Error("bind failed")
		bindTotal.WithLabelValues(binding.Name, string(StateFailed)).Inc()
		if !surface.Fail(target, seq) {
			staleDropped.WithLabelValues(binding.Name).Inc()
		}
		if sink != nil {
			sink.Notify(fmt.Sprintf("Failed to load %s: %s", binding.label(), apiclient.UserMessage(err)), notify.KindError)
		}
		return Outcome{Binding: binding.Name, State: StateFailed, Err: err}
	}

	csrf := ""
	if sess != nil {
		csrf = sess.CSRF
	}
	markup, err := binding.table().Render(records, csrf)
	if err != nil {
		log.WithError(err).Error("render failed")
		bindTotal.WithLabelValues(binding.Name, string(StateFailed)).Inc()
		surface.Fail(target, seq)
		if sink != nil {
			sink.Notify(fmt.Sprintf("Failed to load %s: %s", binding.label(), "could not render"), notify.KindError)
		}
		return Outcome{Binding: binding.Name, State: StateFailed, Err: err}
	}

	state := StateRendered
	if len(records) == 0 {
		state = StateEmpty
	}
	// Summaries run on empty lists too so counters drop to zero.
	var summary map[string]string
	if binding.OnLoaded != nil {
		summary = binding.OnLoaded(sess, records)
	}

	out := Outcome{Binding: binding.Name, State: state, Records: records}
	if !surface.Commit(target, seq, markup, summary, state) {
		log.Debug("stale completion dropped")
		staleDropped.WithLabelValues(binding.Name).Inc()
		out.Stale = true
	}
	bindTotal.WithLabelValues(binding.Name, string(state)).Inc()
	bindLatency.WithLabelValues(binding.Name).Observe(time.Since(start).Seconds())
	log.WithField("rows", len(records)).Debug("bound")
	return out
}

func (b *Binder) fetch(ctx context.Context, sess *session.Session, binding Binding) ([]table.Record, error) {
	if binding.NeedsKey() {
		return nil, errors.Wrap(errUnresolvedKey, binding.Name)
	}
	env, err := b.fetcher.Call(ctx, sess, http.MethodGet, binding.Endpoint, nil)
	if err != nil {
		return nil, err
	}
	if binding.Single {
		record, err := apiclient.DecodeRecord(env)
		if err != nil {
			return nil, &apiclient.TransportError{Method: http.MethodGet, Path: binding.Endpoint, Err: errors.Wrap(err, "unexpected data")}
		}
		if len(record) == 0 {
			return []table.Record{}, nil
		}
		return []table.Record{record}, nil
	}
	records, err := apiclient.DecodeList(env)
	if err != nil {
		return nil, &apiclient.TransportError{Method: http.MethodGet, Path: binding.Endpoint, Err: errors.Wrap(err, "unexpected data")}
	}
	return records, nil
}

// BindAll runs every binding concurrently. One binding failing does not stop
// the others; outcomes come back in binding order.
func (b *Binder) BindAll(ctx context.Context, sess *session.Session, bindings []Binding, surface Surface, sink notify.Notifier) []Outcome {
	outcomes := make([]Outcome, len(bindings))
	var g errgroup.Group
	for i, binding := range bindings {
		i, binding := i, binding
		g.Go(func() error {
			outcomes[i] = b.Bind(ctx, sess, binding, surface, sink)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}
