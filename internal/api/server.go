package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/gridlink/internal/auth"
	"github.com/mattjoyce/gridlink/internal/command"
	"github.com/mattjoyce/gridlink/internal/events"
	"github.com/mattjoyce/gridlink/internal/inspect"
	"github.com/mattjoyce/gridlink/internal/metrics"
	"github.com/mattjoyce/gridlink/internal/store"
)

// Grid is the part of a grid instance the API drives. Row data travels as
// raw JSON.
type Grid interface {
	Snapshot() store.Snapshot[json.RawMessage]
	Insert(spaceID string, data json.RawMessage, pos command.Position) (string, error)
	UpdateRow(rowID string, data json.RawMessage) error
	DestroyRow(rowID string) error
	PopulateRow(rowID string, n int) ([]string, error)
	ClearSegment(spaceID string) error
	Dispatch(cmd command.Command) command.Outcome
	Plugins() []string
}

// Config holds API server configuration
type Config struct {
	Listen string
	// APIKey is the admin bearer token (scope "*").
	APIKey string
	// Tokens is an optional list of scoped bearer tokens.
	Tokens []auth.TokenConfig
	// Columns is the number of cells created for an inserted row when the
	// request does not say.
	Columns int
	// MaxColumns caps the cells one insert may ask for. Zero means
	// DefaultMaxColumns.
	MaxColumns int
}

const (
	DefaultMaxColumns = 64
	// maxRequestBody bounds every JSON request body.
	maxRequestBody = 1 << 20
)

// Server represents the HTTP API server
type Server struct {
	config    Config
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
	keys      *auth.Keyring

	// mu serialises grid access; a grid is single-threaded.
	mu      sync.Mutex
	grid    Grid
	history inspect.History
	events  *events.Hub
	metrics *metrics.Metrics
}

// New creates a new API server instance. history and m may be nil.
func New(config Config, g Grid, history inspect.History, hub *events.Hub, m *metrics.Metrics, logger *slog.Logger) *Server {
	if hub == nil {
		hub = events.NewHub(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.MaxColumns <= 0 {
		config.MaxColumns = DefaultMaxColumns
	}
	return &Server{
		config:    config,
		logger:    logger,
		startedAt: time.Now(),
		keys:      auth.NewKeyring(config.APIKey, config.Tokens),
		grid:      g,
		history:   history,
		events:    hub,
		metrics:   m,
	}
}

// Dispatch runs cmd against the grid under the server's lock. Other
// front ends, such as the webhook server, share the grid through it.
func (s *Server) Dispatch(cmd command.Command) command.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grid.Dispatch(cmd)
}

// Start starts the HTTP server (blocking)
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:        s.config.Listen,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// no WriteTimeout: /events streams for as long as the client stays
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// setupRoutes configures the HTTP router
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated ops endpoints.
	r.Get("/healthz", s.handleHealthz)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.With(s.requireScopes(auth.ScopeGridRead)).Get("/grid", s.handleGetGrid)
		r.With(s.requireScopes(auth.ScopeGridRead)).Get("/grid/fingerprint", s.handleFingerprint)
		r.With(s.requireScopes(auth.ScopeGridRead)).Get("/grid/doctor", s.handleDoctor)
		r.With(s.requireScopes(auth.ScopeGridRead)).Get("/rows/{rowID}", s.handleGetRow)
		r.With(s.requireScopes(auth.ScopeGridRead)).Get("/cells/{cellID}", s.handleGetCell)

		r.With(s.requireScopes(auth.ScopeGridWrite)).Post("/segments/{spaceID}/rows", s.handleInsertRow)
		r.With(s.requireScopes(auth.ScopeGridWrite)).Delete("/segments/{spaceID}/rows", s.handleClearSegment)
		r.With(s.requireScopes(auth.ScopeGridWrite)).Put("/rows/{rowID}", s.handleUpdateRow)
		r.With(s.requireScopes(auth.ScopeGridWrite)).Delete("/rows/{rowID}", s.handleDestroyRow)
		r.With(s.requireScopes(auth.ScopeGridWrite)).Post("/commands", s.handleDispatch)

		r.With(s.requireScopes(auth.ScopeJournal)).Get("/journal", s.handleJournal)
		r.With(s.requireScopes(auth.ScopeEvents)).Get("/events", s.handleEvents)
	})

	return r
}

// loggingMiddleware logs HTTP requests and feeds the request metrics.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", elapsed.Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
		if s.metrics != nil {
			s.metrics.ObserveRequest(r.Method, routePattern(r), ww.Status(), elapsed)
		}
	})
}

// routePattern keeps metric labels bounded to the registered routes.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
