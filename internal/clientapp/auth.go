package clientapp

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-faster/errors"

	"github.com/phillip-england/hrms/internal/apiclient"
	"github.com/phillip-england/hrms/internal/middleware"
	"github.com/phillip-england/hrms/internal/security"
	"github.com/phillip-england/hrms/internal/session"
)

type contextKey string

const sessionContextKey contextKey = "session"

type loginForm struct {
	Username string `form:"username"`
	Password string `form:"password"`
}

type loginPageData struct {
	Title    string
	Error    string
	Message  string
	Username string
}

func sessionFromContext(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(sessionContextKey).(*session.Session)
	return sess
}

func (s *server) rootRoute(w http.ResponseWriter, r *http.Request) {
	if sess := s.lookupSession(r); sess != nil {
		http.Redirect(w, r, homeFor(sess), http.StatusFound)
		return
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

func homeFor(sess *session.Session) string {
	if sess.IsAdmin() {
		return "/admin"
	}
	return "/dashboard"
}

func (s *server) loginPage(w http.ResponseWriter, r *http.Request) {
	if sess := s.lookupSession(r); sess != nil {
		http.Redirect(w, r, homeFor(sess), http.StatusFound)
		return
	}
	s.render(w, r, s.loginTmpl, loginPageData{
		Title:   "Sign in",
		Error:   r.URL.Query().Get("error"),
		Message: r.URL.Query().Get("message"),
	})
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/login?error=Invalid+form+submission", http.StatusFound)
		return
	}
	var in loginForm
	if err := s.forms.Decode(&in, r.PostForm); err != nil {
		http.Redirect(w, r, "/login?error=Invalid+form+submission", http.StatusFound)
		return
	}
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" || in.Password == "" {
		http.Redirect(w, r, "/login?error="+url.QueryEscape("Please enter both username and password"), http.StatusFound)
		return
	}

	result, err := s.api.Login(r.Context(), in.Username, in.Password)
	if err != nil {
		middleware.Logger(r.Context()).WithError(err).Info("login rejected")
		message := apiclient.UserMessage(err)
		if apiclient.IsTransport(err) {
			message = "Authentication service unavailable"
		}
		http.Redirect(w, r, "/login?error="+url.QueryEscape(message), http.StatusFound)
		return
	}

	sess, err := s.startSession(r.Context(), result)
	if err != nil {
		middleware.Logger(r.Context()).WithError(err).Error("start session")
		http.Redirect(w, r, "/login?error=Unable+to+start+session", http.StatusFound)
		return
	}
	http.SetCookie(w, s.sessionCookie(sess.ID, int(s.cfg.SessionTTL.Seconds())))

	target := result.Redirect
	if !isLocalPath(target) {
		target = homeFor(sess)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *server) startSession(ctx context.Context, result *apiclient.LoginResult) (*session.Session, error) {
	id, err := security.NewToken(32)
	if err != nil {
		return nil, err
	}
	csrf, err := security.NewToken(32)
	if err != nil {
		return nil, err
	}
	role := strings.ToLower(strings.TrimSpace(result.Role))
	if role == "" {
		role = session.RoleEmployee
		if strings.HasPrefix(result.Redirect, "/admin") {
			role = session.RoleAdmin
		}
	}
	sess := &session.Session{
		ID:            id,
		Email:         result.Email,
		Role:          role,
		FullName:      result.FullName,
		BackendCookie: result.Cookie,
		CSRF:          csrf,
		CreatedAt:     s.clock.Now().UTC(),
	}
	if err := s.sessions.Put(ctx, sess); err != nil {
		return nil, errors.Wrap(err, "store session")
	}
	return sess, nil
}

func (s *server) logout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	if err := r.ParseForm(); err != nil || !security.TokensEqual(r.PostFormValue(csrfFieldName), sess.CSRF) {
		http.Error(w, "csrf validation failed", http.StatusForbidden)
		return
	}
	if _, err := s.api.Call(r.Context(), sess, http.MethodPost, "/logout", nil); err != nil {
		middleware.Logger(r.Context()).WithError(err).Warn("backend logout failed")
	}
	s.endSession(r.Context(), sess.ID)
	http.SetCookie(w, s.sessionCookie("", -1))
	http.Redirect(w, r, "/login?message=Signed+out", http.StatusFound)
}

func (s *server) endSession(ctx context.Context, id string) {
	_ = s.sessions.Delete(ctx, id)
	s.forgetSession(id)
}

// forgetSession releases the per-session surface and notifications.
func (s *server) forgetSession(id string) {
	s.surfaces.Drop(id)
	s.notices.Drop(id)
}

func (s *server) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     session.CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
}

func (s *server) lookupSession(r *http.Request) *session.Session {
	cookie, err := r.Cookie(session.CookieName)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		return nil
	}
	sess, err := s.sessions.Get(r.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			s.forgetSession(cookie.Value)
		} else {
			middleware.Logger(r.Context()).WithError(err).Warn("session lookup failed")
		}
		return nil
	}
	return sess
}

func (s *server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := s.lookupSession(r)
		if sess == nil {
			http.SetCookie(w, s.sessionCookie("", -1))
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		ctx := context.WithValue(r.Context(), sessionContextKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !sessionFromContext(r.Context()).IsAdmin() {
			http.Error(w, "admin access required", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

// expireIfUnauthorized ends the portal session when the backend no longer
// accepts its cookie. It reports whether the caller should stop.
func (s *server) expireIfUnauthorized(w http.ResponseWriter, r *http.Request, err error) bool {
	if !apiclient.IsUnauthorized(err) {
		return false
	}
	sess := sessionFromContext(r.Context())
	s.endSession(r.Context(), sess.ID)
	http.SetCookie(w, s.sessionCookie("", -1))
	http.Redirect(w, r, "/login?error=Session+expired", http.StatusFound)
	return true
}

func isLocalPath(path string) bool {
	return strings.HasPrefix(path, "/") && !strings.HasPrefix(path, "//") && !strings.HasPrefix(path, "/\\")
}
