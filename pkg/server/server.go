package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/tumorscope/internal/inference"
	"github.com/vango-dev/tumorscope/pkg/classify"
	"github.com/vango-dev/tumorscope/pkg/controller"
	"github.com/vango-dev/tumorscope/pkg/middleware"
	"github.com/vango-dev/tumorscope/pkg/render"
	"github.com/vango-dev/tumorscope/pkg/upload"
)

// Engine classifies raw image bytes.
type Engine interface {
	Classify(ctx context.Context, data []byte) (*inference.Result, error)
	DemoMode() bool
	Catalog() []inference.ModelSpec
}

// Deps are the collaborators a Server is built from.
type Deps struct {
	// Engine serves POST /classify. Required.
	Engine Engine

	// Temp holds uploads between the upload request and the session
	// claiming them. Required.
	Temp upload.Store

	// Archive keeps every file accepted by /classify and serves it back
	// under /uploads/{id}. Required.
	Archive upload.Store

	// Classifier is what session controllers submit to. Defaults to the
	// Engine, called in-process.
	Classifier controller.Classifier

	// Metrics is optional.
	Metrics *middleware.Metrics

	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer when
	// Metrics is set.
	Gatherer prometheus.Gatherer
}

// Server serves the upload page, its live sessions and the classification
// backend.
type Server struct {
	config   *ServerConfig
	deps     Deps
	router   chi.Router
	sessions *SessionManager
	renderer *render.Renderer
	upgrader websocket.Upgrader
	limiter  *middleware.RateLimiter

	httpServer *http.Server
	done       chan struct{}
	stopOnce   sync.Once

	now    func() time.Time
	logger *slog.Logger
}

// New creates a Server. A nil config uses DefaultServerConfig.
func New(config *ServerConfig, deps Deps) (*Server, error) {
	if config == nil {
		config = DefaultServerConfig()
	}
	if err := config.ValidateConfig(); err != nil {
		return nil, err
	}
	if deps.Engine == nil {
		return nil, ErrMissingEngine
	}
	if deps.Temp == nil || deps.Archive == nil {
		return nil, ErrMissingStore
	}
	if config.CheckOrigin == nil {
		config.CheckOrigin = SameOriginCheck
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Metrics != nil && deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		config:   config,
		deps:     deps,
		renderer: render.NewRenderer(render.RendererConfig{Pretty: config.DevMode}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     config.CheckOrigin,
		},
		limiter: middleware.NewRateLimiter(config.RateLimit, config.RateBurst),
		done:    make(chan struct{}),
		now:     time.Now,
		logger:  logger.With("component", "server"),
	}
	if s.deps.Classifier == nil {
		s.deps.Classifier = localClassifier{s: s}
	}

	s.sessions = newSessionManager(sessionDeps{
		config:     config.Session,
		classifier: s.deps.Classifier,
		temp:       deps.Temp,
		renderer:   s.renderer,
		metrics:    deps.Metrics,
		maxSize:    config.MaxFileSize,
	}, config.MaxSessions, logger)

	s.router = s.routes()
	go s.cleanupLoop()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(middleware.OpenTelemetry(
		middleware.WithTracerName("tumorscope/server"),
		middleware.WithRequestFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health" && r.URL.Path != "/metrics"
		}),
	))
	if s.deps.Metrics != nil {
		r.Use(s.deps.Metrics.Handler)
	}
	r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	r.Use(middleware.Recoverer(s.logger))

	r.Get("/", s.handlePage)
	r.Get("/health", s.handleHealth)
	r.Get("/uploads/{id}", s.handleArchived)

	r.Route("/_app", func(r chi.Router) {
		r.Get("/ws", s.HandleWebSocket)
		r.Method(http.MethodGet, "/client.js", http.HandlerFunc(s.serveThinClient))
		r.Method(http.MethodHead, "/client.js", http.HandlerFunc(s.serveThinClient))
		r.With(s.limiter.Handler).Post("/upload", upload.HandlerWithConfig(s.deps.Temp, &upload.Config{
			MaxFileSize: s.config.MaxFileSize,
			Validate:    true,
			TempExpiry:  s.config.TempExpiry,
			Logger:      s.logger,
		}).ServeHTTP)
	})

	r.With(s.limiter.Handler).Post(classify.Path, s.handleClassify)

	if s.deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

// handlePage renders the page in its initial state. Sessions start from
// the same state, so their first patches are real changes.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	vm := controller.New(controller.Config{MaxFileSize: s.config.MaxFileSize}).View()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	err := s.renderer.RenderPage(w, render.PageData{
		Body:        controller.Render(s.page(), vm),
		Title:       s.config.Title,
		StyleSheets: s.config.StyleSheets,
		Styles:      []string{pageCSS},
		Scripts:     []render.ScriptTag{{Src: "/_app/client.js", Defer: true}},
	})
	if err != nil {
		s.logger.Error("page render failed", "error", err)
	}
}

func (s *Server) page() controller.Page {
	catalog := s.deps.Engine.Catalog()
	models := make([]controller.ModelInfo, len(catalog))
	for i, spec := range catalog {
		models[i] = controller.ModelInfo{
			Name:        spec.Name,
			Icon:        spec.Icon,
			Description: spec.Description,
			Parameters:  spec.Parameters,
			Accuracy:    spec.Accuracy,
		}
	}
	return controller.Page{
		Title:    s.config.Title,
		Models:   models,
		DemoMode: s.deps.Engine.DemoMode(),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"demo_mode": s.deps.Engine.DemoMode(),
		"sessions":  s.sessions.Count(),
	})
}

// HandleWebSocket upgrades the request and starts a session.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	session, err := s.sessions.Create(conn, clientIP(r))
	if err != nil {
		s.logger.Warn("session rejected", "error", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server busy"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}
	session.Start()
}

// cleanupLoop removes expired temp uploads and idle rate limiter entries.
func (s *Server) cleanupLoop() {
	interval := s.config.CleanupInterval
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup(context.Background())
		case <-s.done:
			return
		}
	}
}

func (s *Server) cleanup(ctx context.Context) {
	if err := s.deps.Temp.Cleanup(ctx, s.config.TempExpiry); err != nil {
		s.logger.Warn("temp cleanup failed", "error", err)
	}
	if n := s.limiter.Prune(s.config.CleanupInterval); n > 0 {
		s.logger.Debug("pruned rate limiter entries", "count", n)
	}
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run listens on the configured address until ctx is cancelled or the
// process receives SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.config.Address,
		Handler:           s,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			"address", s.config.Address,
			"url", localURL(s.config.Address),
			"demo_mode", s.deps.Engine.DemoMode())
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.stop()
		if err != http.ErrServerClosed {
			return err
		}
		return nil

	case <-ctx.Done():
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown closes every session, then stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.stop()
	s.sessions.Shutdown()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	s.logger.Info("server shutdown complete")
	return nil
}

func (s *Server) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// Sessions returns the session manager.
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Config returns the server configuration.
func (s *Server) Config() *ServerConfig {
	return s.config
}

// clientIP returns the request's remote host. RealIP has already applied
// forwarding headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// localURL turns a listen address into a URL this process can dial.
func localURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
