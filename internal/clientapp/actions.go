package clientapp

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/gorilla/mux"

	"github.com/phillip-england/hrms/internal/dispatch"
	"github.com/phillip-england/hrms/internal/events"
	"github.com/phillip-england/hrms/internal/middleware"
	"github.com/phillip-england/hrms/internal/notify"
	"github.com/phillip-england/hrms/internal/security"
	"github.com/phillip-england/hrms/internal/session"
	"github.com/phillip-england/hrms/internal/views"
)

var (
	errForbidden  = errors.New("admin access required")
	errMissingKey = errors.New("missing record key")
	errBadForm    = errors.New("invalid form submission")
)

// eventTable registers one handler per catalog action.
func (s *server) eventTable() *events.Table {
	entries := make(map[string]events.Handler)
	for _, def := range s.catalog.Actions() {
		entries[def.Name] = s.actionHandler(def)
	}
	return events.NewTable(entries)
}

func (s *server) actionHandler(def views.ActionSpec) events.Handler {
	return func(ctx context.Context, ev events.Event) error {
		sess := ev.Session
		if def.AdminOnly && !sess.IsAdmin() {
			return errForbidden
		}
		key := strings.TrimSpace(ev.Key)
		if def.NeedsKey && key == "" {
			return errMissingKey
		}

		var body any
		if def.NewForm != nil {
			body = def.NewForm()
			if err := s.forms.Decode(body, ev.Form); err != nil {
				return errors.Wrap(errBadForm, err.Error())
			}
		}

		res := s.dispatch.Dispatch(ctx, sess, dispatch.Action{
			Name:   def.Name,
			Label:  def.Label,
			Method: def.Method,
			Path:   def.ResolvePath(key),
			Body:   body,
		}, s.notices.For(sess.ID), s.refresher(sess, def))
		return res.Err
	}
}

// refresher re-binds the views an action affects once it has succeeded.
func (s *server) refresher(sess *session.Session, def views.ActionSpec) dispatch.RefreshFunc {
	bindings := s.catalog.RefreshBindings(def)
	return func(ctx context.Context) {
		if len(bindings) == 0 {
			return
		}
		s.binder.BindAll(ctx, sess, bindings, s.surfaces.For(sess.ID), s.notices.For(sess.ID))
	}
}

// action turns a posted form into an event. Backend failures have already
// been reported as notifications, so they still redirect back to the page.
func (s *server) action(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form submission", http.StatusBadRequest)
		return
	}
	if !security.TokensEqual(r.PostFormValue(csrfFieldName), sess.CSRF) {
		http.Error(w, "csrf validation failed", http.StatusForbidden)
		return
	}

	vars := mux.Vars(r)
	key := vars["key"]
	if key == "" {
		key = r.PostFormValue("key")
	}
	err := s.events.Fire(r.Context(), events.Event{
		Name:    vars["event"],
		Key:     key,
		Session: sess,
		Form:    r.PostForm,
	})
	switch {
	case err == nil:
	case errors.Is(err, events.ErrUnknownEvent):
		http.NotFound(w, r)
		return
	case errors.Is(err, errForbidden):
		http.Error(w, errForbidden.Error(), http.StatusForbidden)
		return
	case errors.Is(err, errMissingKey):
		s.notices.For(sess.ID).Notify("Unable to process request: "+errMissingKey.Error(), notify.KindError)
	case errors.Is(err, errBadForm):
		middleware.Logger(r.Context()).WithError(err).Info("action rejected")
		s.notices.For(sess.ID).Notify("Unable to process request: "+errBadForm.Error(), notify.KindError)
	default:
		if s.expireIfUnauthorized(w, r, err) {
			return
		}
	}

	if wantsFragment(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, returnPath(r, sess), http.StatusSeeOther)
}
