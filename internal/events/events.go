// Package events maps user-interface event names to handlers. A Table is
// built once during startup and only read afterwards, so handlers can be
// exercised in tests without a browser.
package events

import (
	"context"
	"net/url"
	"sort"

	"github.com/go-faster/errors"

	"github.com/phillip-england/hrms/internal/session"
)

var ErrUnknownEvent = errors.New("unknown event")

// Event is one user gesture: a button press or form submit.
type Event struct {
	Name    string
	Key     string
	Session *session.Session
	Form    url.Values
}

type Handler func(ctx context.Context, ev Event) error

type Table struct {
	handlers map[string]Handler
}

// NewTable copies entries; later changes to the map are not seen.
func NewTable(entries map[string]Handler) *Table {
	handlers := make(map[string]Handler, len(entries))
	for name, h := range entries {
		if name == "" || h == nil {
			continue
		}
		handlers[name] = h
	}
	return &Table{handlers: handlers}
}

func (t *Table) Lookup(name string) (Handler, error) {
	h, ok := t.handlers[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownEvent, "%q", name)
	}
	return h, nil
}

// Fire looks up ev.Name and runs its handler.
func (t *Table) Fire(ctx context.Context, ev Event) error {
	h, err := t.Lookup(ev.Name)
	if err != nil {
		return err
	}
	return h(ctx, ev)
}

func (t *Table) Names() []string {
	names := make([]string, 0, len(t.handlers))
	for name := range t.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
