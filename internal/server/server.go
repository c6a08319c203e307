// ABOUTME: HTTP server orchestrator for guestdesk
// ABOUTME: Wires store, rate limiter, pages and notifier, and manages listener lifecycle

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"tailscale.com/tsnet"

	"github.com/2389/guestdesk/internal/assets"
	"github.com/2389/guestdesk/internal/config"
	"github.com/2389/guestdesk/internal/notify"
	"github.com/2389/guestdesk/internal/pages"
	"github.com/2389/guestdesk/internal/ratelimit"
	"github.com/2389/guestdesk/internal/store"
)

// maxBodyBytes caps JSON request bodies on the POST endpoints.
const maxBodyBytes = 16 << 10

// Server serves the guestdesk HTTP API and the static front end.
type Server struct {
	config      *config.Config
	store       store.Store
	limiter     *ratelimit.Limiter
	pages       *pages.Library
	dispatcher  *notify.Dispatcher
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	handler     http.Handler
	logger      *slog.Logger

	// ownsStore is false when the store came from WithStore.
	ownsStore bool
}

// Option customizes a Server at construction time.
type Option func(*options)

type options struct {
	store    store.Store
	notifier notify.Notifier
	clock    func() time.Time
}

// WithStore uses s instead of opening the configured backend.
func WithStore(s store.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithNotifier overrides the configured notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithClock overrides the time source for stored timestamps and rate-limit windows.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.clock = now
	}
}

// OpenStore opens the backend selected by cfg and wraps it in a store.Service.
func OpenStore(cfg *config.Config, logger *slog.Logger, opts ...store.Option) (*store.Service, error) {
	var (
		backend store.Backend
		err     error
	)
	switch cfg.Storage.Backend {
	case "sqlite":
		backend, err = store.NewSQLiteBackend(cfg.Storage.Path)
	case "json", "":
		backend, err = store.NewJSONFileBackend(cfg.Storage.Path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	base := []store.Option{
		store.WithLogger(logger.With("component", "store")),
		store.WithLocation(cfg.Site.Location()),
	}
	return store.New(backend, append(base, opts...)...), nil
}

// New creates a Server for cfg. The configured backend is opened unless
// WithStore is given.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{
		config: cfg,
		store:  o.store,
		logger: logger.With("component", "server"),
	}

	if s.store == nil {
		var storeOpts []store.Option
		if o.clock != nil {
			storeOpts = append(storeOpts, store.WithClock(o.clock))
		}
		svc, err := OpenStore(cfg, logger, storeOpts...)
		if err != nil {
			return nil, err
		}
		s.store = svc
		s.ownsStore = true
		logger.Info("store opened", "backend", cfg.Storage.Backend, "path", cfg.Storage.Path)
	}

	if cfg.RateLimit.IsEnabled() {
		limitOpts := []ratelimit.Option{
			ratelimit.WithLogger(logger.With("component", "ratelimit")),
		}
		if o.clock != nil {
			limitOpts = append(limitOpts, ratelimit.WithClock(o.clock))
		}
		s.limiter = ratelimit.New(cfg.RateLimit.Requests, cfg.RateLimit.Window, limitOpts...)
	} else {
		logger.Warn("rate limiting disabled")
	}

	lib, err := pages.Open(cfg.Site.ContentDir, logger.With("component", "pages"))
	if err != nil {
		s.releasePartial()
		return nil, fmt.Errorf("opening content dir: %w", err)
	}
	s.pages = lib

	notifier := o.notifier
	if notifier == nil {
		notifier, err = notify.FromConfig(cfg.Notify)
		if err != nil {
			s.releasePartial()
			return nil, fmt.Errorf("creating notifier: %w", err)
		}
	}
	s.dispatcher = notify.NewDispatcher(notifier, logger.With("component", "notify"))

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.handler = chain(mux,
		requestIDMiddleware,
		loggingMiddleware(logger.With("component", "http")),
		recoveryMiddleware(logger.With("component", "http")),
		corsMiddleware(cfg.Server.CORSOrigins),
	)

	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// registerRoutes mounts the API, health checks and static files on mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/ready", s.handleReady)

	mux.HandleFunc("/api/visitors", s.handleVisitors)
	mux.Handle("/api/shoutbox", s.limitPosts(http.HandlerFunc(s.handleShoutbox)))
	mux.Handle("/api/guestbook", s.limitPosts(http.HandlerFunc(s.handleGuestbook)))
	mux.HandleFunc("/api/pages", s.handleListPages)
	mux.HandleFunc("/api/pages/", s.handleGetPage)

	if dir := s.config.Server.StaticDir; dir != "" {
		mux.Handle("/", assets.DirServer(dir))
		s.logger.Info("serving static files", "dir", dir)
	} else {
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			sendJSONError(w, http.StatusNotFound, "not found")
		})
	}
}

// limitPosts applies the shared per-client limiter to POST requests only.
func (s *Server) limitPosts(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	limited := s.limiter.Middleware(ratelimit.ClientKey(s.config.Server.TrustProxy))(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			limited.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Store returns the store the server writes to.
func (s *Server) Store() store.Store {
	return s.store
}

// setupTCPListener creates the plain TCP listener.
func (s *Server) setupTCPListener() (net.Listener, error) {
	s.logger.Info("starting guestdesk", "http_addr", s.config.Server.HTTPAddr)
	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// setupListener creates the listener based on configuration (Tailscale or TCP).
func (s *Server) setupListener(ctx context.Context) (net.Listener, error) {
	if s.config.Tailscale.Enabled {
		if s.config.Server.HTTPAddr != "" {
			s.logger.Warn("server.http_addr is ignored when tailscale is enabled", "http_addr", s.config.Server.HTTPAddr)
		}
		return s.setupTailscaleListener(ctx)
	}
	return s.setupTCPListener()
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown (context canceled), or an error if the server fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.setupListener(ctx)
	if err != nil {
		s.closeComponents()
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := s.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the run context is already canceled.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// closeComponents releases everything except the HTTP server and tsnet node.
func (s *Server) closeComponents() []error {
	var errs []error
	if s.dispatcher != nil {
		s.dispatcher.Close()
	}
	if s.pages != nil {
		errs = appendCloseError(errs, "pages close", s.pages.Close())
	}
	if s.limiter != nil {
		errs = appendCloseError(errs, "rate limiter close", s.limiter.Close())
	}
	if s.store != nil {
		errs = appendCloseError(errs, "store close", s.store.Close())
	}
	return errs
}

// releasePartial undoes a failed New. A store passed in with WithStore
// belongs to the caller and stays open.
func (s *Server) releasePartial() {
	if !s.ownsStore {
		s.store = nil
	}
	_ = s.closeComponents()
}

// Shutdown stops accepting requests, waits for queued writes and pending
// notifications, and releases resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down guestdesk")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", s.httpServer.Shutdown(ctx))

	if s.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", s.tsnetServer.Close())
	}

	errs = append(errs, s.closeComponents()...)

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}
