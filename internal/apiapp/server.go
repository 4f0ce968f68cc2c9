// Package apiapp is an in-memory HRMS backend that speaks the same JSON
// envelope API as the production service. It backs `hrms run api` for local
// work and the portal's end-to-end tests.
package apiapp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-faster/errors"
	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/phillip-england/hrms/internal/middleware"
	"github.com/phillip-england/hrms/internal/security"
)

const sessionCookieName = "hrms_api_session"

type contextKey string

const userContextKey contextKey = "user"

type Config struct {
	Addr          string        `env:"API_ADDR" envDefault:":8080"`
	AdminUsername string        `env:"ADMIN_USERNAME"`
	AdminPassword string        `env:"ADMIN_PASSWORD"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"12h"`
	SeedDemo      bool          `env:"API_SEED_DEMO" envDefault:"true"`
	DemoUsername  string        `env:"DEMO_USERNAME" envDefault:"employee@hrms.local"`
	DemoPassword  string        `env:"DEMO_PASSWORD" envDefault:"employee123"`
}

type envelope struct {
	Success  bool   `json:"success"`
	Data     any    `json:"data,omitempty"`
	Message  string `json:"message,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type server struct {
	store      *memoryStore
	sessionTTL time.Duration
	logger     *logrus.Logger
}

func DefaultConfigFromEnv() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, errors.Wrap(err, "parse api config")
	}
	cfg.AdminUsername = strings.TrimSpace(cfg.AdminUsername)
	return cfg, nil
}

// NewHandler builds the routed backend. clock may be nil.
func NewHandler(cfg Config, logger *logrus.Logger, clock clockwork.Clock) (http.Handler, error) {
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		return nil, errors.New("ADMIN_USERNAME and ADMIN_PASSWORD are required")
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 12 * time.Hour
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	s := &server{
		store:      newMemoryStore(clock),
		sessionTTL: cfg.SessionTTL,
		logger:     logger,
	}
	if err := s.ensureAdminUser(cfg.AdminUsername, cfg.AdminPassword); err != nil {
		return nil, errors.Wrap(err, "ensure admin user")
	}
	if cfg.SeedDemo && cfg.DemoUsername != "" {
		if err := s.seedDemo(cfg.DemoUsername, cfg.DemoPassword); err != nil {
			return nil, errors.Wrap(err, "seed demo data")
		}
	}
	return middleware.Chain(
		s.routes(),
		middleware.RequestLogger(logger),
		middleware.SecurityHeaders(middleware.SecurityHeadersConfig{ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'"}),
	), nil
}

func (s *server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/login", s.login).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.logout).Methods(http.MethodGet, http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.requireUser)
	api.HandleFunc("/profile", s.profile).Methods(http.MethodGet)
	api.HandleFunc("/attendance", s.listAttendance).Methods(http.MethodGet)
	api.HandleFunc("/attendance/check-in", s.checkIn).Methods(http.MethodPost)
	api.HandleFunc("/attendance/check-out", s.checkOut).Methods(http.MethodPost)
	api.HandleFunc("/leave-balance", s.leaveBalance).Methods(http.MethodGet)
	api.HandleFunc("/leave-requests", s.listLeave).Methods(http.MethodGet)
	api.HandleFunc("/leave-requests/submit", s.submitLeave).Methods(http.MethodPost)
	api.HandleFunc("/leave-requests/{id:[0-9]+}", s.cancelLeave).Methods(http.MethodDelete)
	api.HandleFunc("/payroll", s.listPayroll).Methods(http.MethodGet)
	api.HandleFunc("/payroll/payslip/{id:[0-9]+}/download", s.downloadPayslip).Methods(http.MethodGet)
	api.HandleFunc("/training", s.listTraining).Methods(http.MethodGet)
	api.HandleFunc("/trips", s.listTrips).Methods(http.MethodGet)
	api.HandleFunc("/{resource}/export/csv", s.exportCSV).Methods(http.MethodGet)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(s.requireAdmin)
	admin.HandleFunc("/employees", s.listEmployees).Methods(http.MethodGet)
	admin.HandleFunc("/employees/add", s.addEmployee).Methods(http.MethodPost)
	admin.HandleFunc("/employees/{key}", s.updateEmployee).Methods(http.MethodPut)
	admin.HandleFunc("/salary-history/{key}", s.salaryHistory).Methods(http.MethodGet)
	admin.HandleFunc("/attendance", s.adminAttendance).Methods(http.MethodGet)
	admin.HandleFunc("/leave-requests", s.adminLeave).Methods(http.MethodGet)
	admin.HandleFunc("/leave-requests/{id:[0-9]+}/approve", s.decideLeave(statusApproved)).Methods(http.MethodPost)
	admin.HandleFunc("/leave-requests/{id:[0-9]+}/reject", s.decideLeave(statusRejected)).Methods(http.MethodPost)
	admin.HandleFunc("/payroll-runs", s.payrollRuns).Methods(http.MethodGet)
	admin.HandleFunc("/bonus", s.listBonus).Methods(http.MethodGet)
	admin.HandleFunc("/bonus/add", s.addBonus).Methods(http.MethodPost)
	admin.HandleFunc("/training", s.adminTraining).Methods(http.MethodGet)
	admin.HandleFunc("/training/add", s.addTraining).Methods(http.MethodPost)
	admin.HandleFunc("/trips", s.adminTrips).Methods(http.MethodGet)
	admin.HandleFunc("/trips/add", s.addTrip).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func Run(ctx context.Context, cfg Config, logger *logrus.Logger) error {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	handler, err := NewHandler(cfg, logger, nil)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.Addr).Info("api listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, map[string]string{"status": "ok"}, "")
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Username = normalizeEmail(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Please enter both username and password")
		return
	}

	u, err := s.store.authenticate(req.Username, func(hash string) bool {
		return security.VerifyPassword(req.Password, hash)
	})
	var locked *lockedError
	switch {
	case errors.As(err, &locked):
		writeError(w, http.StatusForbidden, "Account is locked until "+locked.Until.Format("2006-01-02 15:04")+". Please try again later.")
		return
	case err != nil:
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	sessionID, err := security.NewToken(32)
	if err != nil {
		middleware.Logger(r.Context()).WithError(err).Error("create session id")
		writeError(w, http.StatusInternalServerError, "authentication failed")
		return
	}
	sess := s.store.createSession(sessionID, u.Email, s.sessionTTL)

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(s.sessionTTL.Seconds()),
		Expires:  sess.ExpiresAt,
	})
	redirect := "/dashboard"
	if u.Role == roleAdmin {
		redirect = "/admin"
	}
	writeJSON(w, http.StatusOK, envelope{
		Success:  true,
		Data:     map[string]string{"email": u.Email, "role": u.Role, "full_name": u.FullName},
		Redirect: redirect,
	})
}

func (s *server) logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		s.store.deleteSession(cookie.Value)
	}
	expireSessionCookie(w)
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Signed out", Redirect: "/login"})
}

func (s *server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || strings.TrimSpace(cookie.Value) == "" {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		_, u, err := s.store.lookupSession(cookie.Value)
		if err != nil {
			expireSessionCookie(w)
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := userFromContext(r.Context())
		if !ok || u.Role != roleAdmin {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userFromContext(ctx context.Context) (user, bool) {
	u, ok := ctx.Value(userContextKey).(user)
	return u, ok
}

// currentUser is only called behind requireUser.
func currentUser(r *http.Request) user {
	u, _ := userFromContext(r.Context())
	return u
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil && id > 0
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func decodeBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := decoder.Decode(dst); err != nil {
		return errors.Wrap(err, "decode body")
	}
	return nil
}

func expireSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
}

func writeOK(w http.ResponseWriter, data any, message string) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data, Message: message})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
