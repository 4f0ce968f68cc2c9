// Package clientapp is the HRMS portal: a server-rendered web tier that owns
// the browser session, binds backend resources into tables and turns button
// presses into backend actions.
package clientapp

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-faster/errors"
	"github.com/go-playground/form"
	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/phillip-england/hrms/internal/apiclient"
	"github.com/phillip-england/hrms/internal/binder"
	"github.com/phillip-england/hrms/internal/dispatch"
	"github.com/phillip-england/hrms/internal/events"
	"github.com/phillip-england/hrms/internal/middleware"
	"github.com/phillip-england/hrms/internal/notify"
	"github.com/phillip-england/hrms/internal/realtime"
	"github.com/phillip-england/hrms/internal/session"
	"github.com/phillip-england/hrms/internal/views"
)

const (
	csrfFieldName = "csrf"
	maxUploadSize = 20 << 20
	sweepInterval = 10 * time.Minute
)

type Config struct {
	Addr          string        `env:"CLIENT_ADDR" envDefault:":3000"`
	APIBaseURL    string        `env:"API_BASE_URL" envDefault:"http://localhost:8080"`
	APITimeout    time.Duration `env:"API_TIMEOUT" envDefault:"8s"`
	NotifyTTL     time.Duration `env:"NOTIFY_TTL" envDefault:"5s"`
	SessionStore  string        `env:"SESSION_STORE" envDefault:"memory"`
	RedisURL      string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"12h"`
	SecureCookies bool          `env:"SECURE_COOKIES" envDefault:"false"`
	ReadTimeout   time.Duration `env:"CLIENT_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout  time.Duration `env:"CLIENT_WRITE_TIMEOUT" envDefault:"30s"`
}

// Options carries collaborators tests replace. Zero values mean "build the
// real one from Config".
type Options struct {
	Logger    *logrus.Logger
	Store     session.Store
	Clock     clockwork.Clock
	Transport http.RoundTripper
}

//go:embed templates/*.html assets/app.css assets/app.js
var templatesFS embed.FS

type server struct {
	cfg      Config
	logger   *logrus.Logger
	clock    clockwork.Clock
	api      *apiclient.Client
	sessions session.Store
	catalog  *views.Catalog
	binder   *binder.Binder
	dispatch *dispatch.Dispatcher
	surfaces *binder.Surfaces
	notices  *notify.Registry
	hub      *realtime.Hub
	events   *events.Table
	forms    *form.Decoder

	loginTmpl     *template.Template
	dashboardTmpl *template.Template
	adminTmpl     *template.Template
	panelTmpl     *template.Template
	noticesTmpl   *template.Template
}

func DefaultConfigFromEnv() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, errors.Wrap(err, "parse client config")
	}
	return cfg, nil
}

func parsePage(names ...string) *template.Template {
	files := make([]string, 0, len(names)+1)
	files = append(files, "templates/layout.html")
	for _, name := range names {
		files = append(files, "templates/"+name)
	}
	return template.Must(template.New("layout.html").Funcs(templateFuncs).ParseFS(templatesFS, files...))
}

func newServer(cfg Config, opts Options) *server {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	store := opts.Store
	if store == nil {
		store = session.NewMemoryStore(cfg.SessionTTL, clock)
	}

	api := apiclient.New(apiclient.Config{
		BaseURL:   cfg.APIBaseURL,
		Timeout:   cfg.APITimeout,
		Transport: opts.Transport,
		Logger:    logger,
	})
	hub := realtime.New(logger)

	s := &server{
		cfg:      cfg,
		logger:   logger,
		clock:    clock,
		api:      api,
		sessions: store,
		catalog:  views.New(clock),
		binder:   binder.New(api, logger),
		dispatch: dispatch.New(api, logger),
		surfaces: binder.NewSurfaces(clock),
		notices:  notify.NewRegistry(cfg.NotifyTTL, clock, hub),
		hub:      hub,
		forms:    form.NewDecoder(),

		loginTmpl:     parsePage("login.html"),
		dashboardTmpl: parsePage("dashboard.html", "panel.html", "notifications.html"),
		adminTmpl:     parsePage("admin.html", "panel.html", "notifications.html"),
		panelTmpl:     template.Must(template.New("panel.html").Funcs(templateFuncs).ParseFS(templatesFS, "templates/panel.html")),
		noticesTmpl:   template.Must(template.New("notifications.html").Funcs(templateFuncs).ParseFS(templatesFS, "templates/notifications.html")),
	}
	s.events = s.eventTable()
	return s
}

// NewHandler builds the routed portal.
func NewHandler(cfg Config, opts Options) http.Handler {
	return newServer(cfg, opts).handler()
}

func (s *server) handler() http.Handler {
	return otelhttp.NewHandler(middleware.Chain(
		s.routes(),
		middleware.RequestLogger(s.logger),
		middleware.SecurityHeaders(middleware.SecurityHeadersConfig{
			ContentSecurityPolicy: middleware.DefaultContentSecurityPolicy,
			StrictTransport:       s.cfg.SecureCookies,
		}),
	), "hrms-portal")
}

func (s *server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics)

	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/assets/{file:app\\.(?:css|js)}", s.assetFile).Methods(http.MethodGet)
	r.HandleFunc("/", s.rootRoute).Methods(http.MethodGet)
	r.HandleFunc("/login", s.loginPage).Methods(http.MethodGet)
	r.HandleFunc("/login", s.login).Methods(http.MethodPost)

	authed := r.NewRoute().Subrouter()
	authed.Use(s.requireSession, middleware.NoStore)
	authed.HandleFunc("/logout", s.logout).Methods(http.MethodPost)
	authed.HandleFunc("/dashboard", s.dashboardPage).Methods(http.MethodGet)
	authed.HandleFunc("/admin", s.requireAdmin(s.adminPage)).Methods(http.MethodGet)
	authed.HandleFunc("/views/{name}", s.viewFragment).Methods(http.MethodGet)
	authed.HandleFunc("/views/{name}/export.xlsx", s.exportView).Methods(http.MethodGet)
	authed.HandleFunc("/actions/{event}", s.action).Methods(http.MethodPost)
	authed.HandleFunc("/actions/{event}/{key}", s.action).Methods(http.MethodPost)
	authed.HandleFunc("/notifications", s.notificationsFragment).Methods(http.MethodGet)
	authed.HandleFunc("/notifications/{id}/dismiss", s.dismissNotification).Methods(http.MethodPost)
	authed.HandleFunc("/downloads/payslips/{id:[0-9]+}", s.downloadPayslip).Methods(http.MethodGet)
	authed.HandleFunc("/downloads/{resource}/csv", s.downloadCSV).Methods(http.MethodGet)
	authed.HandleFunc("/admin/employees/import", s.requireAdmin(s.importEmployees)).Methods(http.MethodPost)
	authed.HandleFunc("/ws", s.websocket).Methods(http.MethodGet)
	return r
}

func newSessionStore(cfg Config, clock clockwork.Clock) (session.Store, func() error, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.SessionStore)) {
	case "", "memory":
		return session.NewMemoryStore(cfg.SessionTTL, clock), func() error { return nil }, nil
	case "redis":
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "parse REDIS_URL")
		}
		client := redis.NewClient(redisOpts)
		return session.NewRedisStore(client, cfg.SessionTTL), client.Close, nil
	default:
		return nil, nil, errors.Errorf("unknown SESSION_STORE %q", cfg.SessionStore)
	}
}

func Run(ctx context.Context, cfg Config, logger *logrus.Logger) error {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	store, closeStore, err := newSessionStore(cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	s := newServer(cfg, Options{Logger: logger, Store: store})
	go s.sweepIdle(ctx, sweepInterval)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.handler(),
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":    cfg.Addr,
			"api":     cfg.APIBaseURL,
			"session": cfg.SessionStore,
		}).Info("client listening")
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

// sweepIdle periodically forgets the surfaces and notifications of sessions
// that expired without logging out.
func (s *server) sweepIdle(ctx context.Context, every time.Duration) {
	ticker := s.clock.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.sweep()
		}
	}
}

func (s *server) sweep() {
	idle := s.cfg.SessionTTL
	if idle <= 0 {
		idle = 12 * time.Hour
	}
	surfaces := s.surfaces.Sweep(idle)
	sinks := s.notices.Sweep(idle)
	if surfaces+sinks > 0 {
		s.logger.WithFields(logrus.Fields{"surfaces": surfaces, "sinks": sinks}).Debug("swept idle sessions")
	}
}

func (s *server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *server) assetFile(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["file"]
	data, err := templatesFS.ReadFile("assets/" + name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	contentType := "text/css; charset=utf-8"
	if strings.HasSuffix(name, ".js") {
		contentType = "text/javascript; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write(data)
}

func renderHTMLTemplate(w http.ResponseWriter, tmpl *template.Template, data any) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := w.Write(buf.Bytes())
	return err
}

func (s *server) render(w http.ResponseWriter, r *http.Request, tmpl *template.Template, data any) {
	if err := renderHTMLTemplate(w, tmpl, data); err != nil {
		middleware.Logger(r.Context()).WithError(err).Error("template render failed")
		http.Error(w, "template render failed", http.StatusInternalServerError)
	}
}
