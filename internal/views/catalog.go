// Package views is the HRMS catalog: which endpoints feed which tables, the
// columns each table shows, and the actions a user can take on them.
package views

import (
	"net/url"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/phillip-england/hrms/internal/binder"
)

// ActionSpec describes one mutating gesture. Path may contain "{key}", which
// is replaced by the escaped row key.
type ActionSpec struct {
	Name      string
	Label     string
	Method    string
	Path      string
	NeedsKey  bool
	AdminOnly bool
	// NewForm returns a fresh pointer the submitted form decodes into, or nil
	// when the action carries no body.
	NewForm func() any
	// Refresh lists the bindings re-bound after success.
	Refresh []string
}

// ResolvePath fills in the row key.
func (a ActionSpec) ResolvePath(key string) string {
	return strings.ReplaceAll(a.Path, "{key}", url.PathEscape(key))
}

type Catalog struct {
	clock    clockwork.Clock
	bindings map[string]binder.Binding
	employee []string
	admin    []string
	actions  map[string]ActionSpec
}

func New(clock clockwork.Clock) *Catalog {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	c := &Catalog{
		clock:    clock,
		bindings: make(map[string]binder.Binding),
		actions:  make(map[string]ActionSpec),
	}
	for _, b := range c.employeeBindings() {
		c.bindings[b.Name] = b
		c.employee = append(c.employee, b.Name)
	}
	for _, b := range c.adminBindings() {
		b.AdminOnly = true
		c.bindings[b.Name] = b
		c.admin = append(c.admin, b.Name)
	}
	for _, a := range actionSpecs() {
		c.actions[a.Name] = a
	}
	return c
}

func (c *Catalog) Binding(name string) (binder.Binding, bool) {
	b, ok := c.bindings[name]
	return b, ok
}

// Employee returns the dashboard bindings in page order.
func (c *Catalog) Employee() []binder.Binding {
	return c.pick(c.employee)
}

// Admin returns the admin page bindings in page order.
func (c *Catalog) Admin() []binder.Binding {
	return c.pick(c.admin)
}

func (c *Catalog) pick(names []string) []binder.Binding {
	out := make([]binder.Binding, 0, len(names))
	for _, name := range names {
		out = append(out, c.bindings[name])
	}
	return out
}

func (c *Catalog) Action(name string) (ActionSpec, bool) {
	a, ok := c.actions[name]
	return a, ok
}

func (c *Catalog) Actions() []ActionSpec {
	out := make([]ActionSpec, 0, len(c.actions))
	for _, a := range actionSpecs() {
		out = append(out, c.actions[a.Name])
	}
	return out
}

// RefreshBindings resolves an action's refresh list. Bindings that need a
// key are left out.
func (c *Catalog) RefreshBindings(action ActionSpec) []binder.Binding {
	out := make([]binder.Binding, 0, len(action.Refresh))
	for _, name := range action.Refresh {
		if b, ok := c.bindings[name]; ok && !b.NeedsKey() {
			out = append(out, b)
		}
	}
	return out
}
