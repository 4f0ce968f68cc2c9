package clientapp

import (
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/gorilla/mux"

	"github.com/phillip-england/hrms/internal/binder"
	"github.com/phillip-england/hrms/internal/notify"
	"github.com/phillip-england/hrms/internal/security"
	"github.com/phillip-england/hrms/internal/session"
	"github.com/phillip-england/hrms/internal/views"
)

// csvResources are the bindings the backend can export as CSV.
var csvResources = map[string]bool{
	views.Attendance:    true,
	views.LeaveRequests: true,
	views.Payroll:       true,
	views.Training:      true,
	views.Trips:         true,
}

var templateFuncs = template.FuncMap{
	"title": titleCase,
	"clock": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Format("15:04:05")
	},
	"summary": func(p panelView, key string) string {
		if v := p.Summary[key]; v != "" {
			return v
		}
		return "-"
	},
}

type panelView struct {
	Name       string
	Title      string
	Key        string
	State      binder.State
	Markup     template.HTML
	Summary    map[string]string
	UpdatedAt  time.Time
	RefreshURL string
	ExportURL  string
	CSVURL     string
	CSRF       string
}

type pageData struct {
	Title         string
	Session       *session.Session
	CSRF          string
	Panels        []panelView
	Notifications []notify.Notification
	Today         string
	// Keys holds the record keys of keyed panels, such as the employee whose
	// salary history is shown.
	Keys map[string]string
}

// Panel finds a bound panel by binding name for templates that lay panels
// out individually.
func (p pageData) Panel(name string) panelView {
	for _, panel := range p.Panels {
		if panel.Name == name {
			return panel
		}
	}
	return panelView{Name: name, State: binder.StateIdle}
}

type noticesData struct {
	CSRF          string
	Notifications []notify.Notification
}

func titleCase(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func bindingTarget(b binder.Binding) string {
	if b.Target != "" {
		return b.Target
	}
	return b.Name
}

func (s *server) panelFor(sess *session.Session, surface binder.Surface, b binder.Binding, key string) panelView {
	label := b.Label
	if label == "" {
		label = b.Name
	}
	panel := panelView{
		Name:  b.Name,
		Title: titleCase(label),
		Key:   key,
		State: binder.StateIdle,
		CSRF:  sess.CSRF,
	}
	if b.NeedsKey() && key == "" {
		return panel
	}
	view, _ := surface.Get(bindingTarget(b))
	panel.State = view.State
	panel.Markup = view.Markup
	panel.Summary = view.Summary
	panel.UpdatedAt = view.UpdatedAt

	query := ""
	if key != "" {
		query = "?" + url.Values{"key": {key}}.Encode()
	}
	panel.RefreshURL = "/views/" + b.Name + query
	panel.ExportURL = "/views/" + b.Name + "/export.xlsx" + query
	if csvResources[b.Name] {
		panel.CSVURL = "/downloads/" + b.Name + "/csv"
	}
	return panel
}

// bindPage runs every binding of a page and collects the resulting panels.
// A binding that needs a key is bound only when keys names one. It reports
// false when the response has already been written.
func (s *server) bindPage(w http.ResponseWriter, r *http.Request, title string, bindings []binder.Binding, keys map[string]string) (pageData, bool) {
	sess := sessionFromContext(r.Context())
	surface := s.surfaces.For(sess.ID)
	sink := s.notices.For(sess.ID)

	bound := make([]binder.Binding, 0, len(bindings))
	for _, b := range bindings {
		if !b.NeedsKey() {
			bound = append(bound, b)
		} else if key := keys[b.Name]; key != "" {
			bound = append(bound, b.WithKey(key))
		}
	}
	outcomes := s.binder.BindAll(r.Context(), sess, bound, surface, sink)
	for _, out := range outcomes {
		if s.expireIfUnauthorized(w, r, out.Err) {
			return pageData{}, false
		}
	}

	data := pageData{
		Title:         title,
		Session:       sess,
		CSRF:          sess.CSRF,
		Panels:        make([]panelView, 0, len(bindings)),
		Notifications: sink.Active(),
		Today:         s.clock.Now().Format("Monday, 2 January 2006"),
		Keys:          keys,
	}
	for _, b := range bindings {
		data.Panels = append(data.Panels, s.panelFor(sess, surface, b, keys[b.Name]))
	}
	return data, true
}

// resolveBinding finds the binding a /views request names, checks access and
// fills in the ?key= parameter when the binding needs one.
func (s *server) resolveBinding(w http.ResponseWriter, r *http.Request) (binder.Binding, string, bool) {
	sess := sessionFromContext(r.Context())
	b, ok := s.catalog.Binding(mux.Vars(r)["name"])
	if !ok {
		http.NotFound(w, r)
		return binder.Binding{}, "", false
	}
	if b.AdminOnly && !sess.IsAdmin() {
		http.Error(w, "admin access required", http.StatusForbidden)
		return binder.Binding{}, "", false
	}
	if !b.NeedsKey() {
		return b, "", true
	}
	key := strings.TrimSpace(r.URL.Query().Get("key"))
	if key == "" {
		http.Error(w, errMissingKey.Error(), http.StatusBadRequest)
		return binder.Binding{}, "", false
	}
	return b.WithKey(key), key, true
}

func (s *server) dashboardPage(w http.ResponseWriter, r *http.Request) {
	data, ok := s.bindPage(w, r, "Dashboard", s.catalog.Employee(), nil)
	if !ok {
		return
	}
	s.render(w, r, s.dashboardTmpl, data)
}

func (s *server) adminPage(w http.ResponseWriter, r *http.Request) {
	keys := map[string]string{}
	if employee := strings.TrimSpace(r.URL.Query().Get("history")); employee != "" {
		keys[views.AdminSalaryHistory] = employee
	}
	data, ok := s.bindPage(w, r, "Admin", s.catalog.Admin(), keys)
	if !ok {
		return
	}
	s.render(w, r, s.adminTmpl, data)
}

// viewFragment re-binds one view and returns just its panel.
func (s *server) viewFragment(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	b, key, ok := s.resolveBinding(w, r)
	if !ok {
		return
	}
	surface := s.surfaces.For(sess.ID)
	out := s.binder.Bind(r.Context(), sess, b, surface, s.notices.For(sess.ID))
	if s.expireIfUnauthorized(w, r, out.Err) {
		return
	}
	s.render(w, r, s.panelTmpl, s.panelFor(sess, surface, b, key))
}

func (s *server) notificationsFragment(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	s.render(w, r, s.noticesTmpl, noticesData{
		CSRF:          sess.CSRF,
		Notifications: s.notices.For(sess.ID).Active(),
	})
}

func (s *server) dismissNotification(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	if err := r.ParseForm(); err != nil || !security.TokensEqual(r.PostFormValue(csrfFieldName), sess.CSRF) {
		http.Error(w, "csrf validation failed", http.StatusForbidden)
		return
	}
	s.notices.For(sess.ID).Dismiss(mux.Vars(r)["id"])
	if wantsFragment(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, returnPath(r, sess), http.StatusSeeOther)
}

func (s *server) websocket(w http.ResponseWriter, r *http.Request) {
	s.hub.Serve(w, r, sessionFromContext(r.Context()).ID)
}

// wantsFragment is true for requests made by the page script rather than a
// plain form post.
func wantsFragment(r *http.Request) bool {
	return r.Header.Get("X-Requested-With") == "fetch"
}

func returnPath(r *http.Request, sess *session.Session) string {
	if target := strings.TrimSpace(r.FormValue("return_to")); isLocalPath(target) {
		return target
	}
	return homeFor(sess)
}
