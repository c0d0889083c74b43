package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/mattjoyce/gridlink/internal/command"
)

const shutdownGrace = 5 * time.Second

// Server accepts signed hooks and turns each into one grid command.
type Server struct {
	listen     string
	dispatcher Dispatcher
	logger     *slog.Logger
	byPath     map[string]*EndpointConfig
	httpServer *http.Server
}

// New indexes the endpoints by path. Endpoints without a body limit get
// DefaultMaxBodySize.
func New(cfg Config, d Dispatcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		listen:     cfg.Listen,
		dispatcher: d,
		logger:     logger,
		byPath:     make(map[string]*EndpointConfig, len(cfg.Endpoints)),
	}
	for i := range cfg.Endpoints {
		ep := cfg.Endpoints[i]
		if ep.MaxBodySize <= 0 {
			ep.MaxBodySize = DefaultMaxBodySize
		}
		s.byPath[ep.Path] = &ep
	}
	return s
}

// Start listens until ctx is done, then drains in-flight hooks. It returns
// ctx.Err() after a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.listen,
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.logger.Info("webhook listener starting", "listen", s.listen, "endpoints", len(s.byPath))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("webhook listener: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()
		if err := s.httpServer.Shutdown(drainCtx); err != nil {
			return fmt.Errorf("webhook shutdown: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	s.logger.Info("webhook listener stopped")
	return ctx.Err()
}

func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, s.logRequests, middleware.Recoverer)
	for path := range s.byPath {
		r.Post(path, s.handleWebhook)
	}
	return r
}

// logRequests records one line per hook. Bodies are never logged because
// they are signed by a shared secret.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		began := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		level := slog.LevelInfo
		if ww.Status() >= http.StatusBadRequest {
			level = slog.LevelWarn
		}
		s.logger.Log(r.Context(), level, "webhook",
			"path", r.URL.Path,
			"status", ww.Status(),
			"took", time.Since(began),
			"request_id", middleware.GetReqID(r.Context()),
			"remote", r.RemoteAddr,
		)
	})
}

// hookError is a request failure with the status it maps to.
type hookError struct {
	status int
	msg    string
}

func (e *hookError) Error() string { return e.msg }

func fail(status int, msg string) *hookError { return &hookError{status: status, msg: msg} }

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ep, ok := s.byPath[r.URL.Path]
	if !ok {
		s.respondError(w, fail(http.StatusNotFound, "endpoint not found"))
		return
	}

	body, herr := s.readVerified(r, ep)
	if herr != nil {
		s.respondError(w, herr)
		return
	}
	cmd, herr := buildCommand(ep, r, body)
	if herr != nil {
		s.respondError(w, herr)
		return
	}

	outcome := s.dispatcher.Dispatch(cmd)
	s.logger.Debug("hook dispatched", "path", ep.Path, "command", cmd.String(), "outcome", outcome)
	s.respondJSON(w, http.StatusOK, TriggerResponse{
		Command: string(cmd.Kind) + "/" + string(cmd.Name),
		Target:  cmd.TargetID,
		Outcome: outcome,
	})
}

// readVerified reads at most MaxBodySize bytes and checks the body against
// the endpoint's signature header. Signature failures all answer a bare
// 403; the reason only goes to the log.
func (s *Server) readVerified(r *http.Request, ep *EndpointConfig) ([]byte, *hookError) {
	body, err := io.ReadAll(io.LimitReader(r.Body, ep.MaxBodySize+1))
	if err != nil {
		return nil, fail(http.StatusInternalServerError, "failed to read request body")
	}
	if int64(len(body)) > ep.MaxBodySize {
		return nil, fail(http.StatusRequestEntityTooLarge, "payload too large")
	}

	sig := r.Header.Get(ep.SignatureHeader)
	if sig == "" {
		err = fmt.Errorf("%w: %s header missing", errVerification, ep.SignatureHeader)
	} else {
		err = verifyHMACSignature(body, sig, ep.Secret)
	}
	if err != nil {
		s.logger.Warn("hook signature rejected", "path", ep.Path, "error", err)
		return nil, fail(http.StatusForbidden, "forbidden")
	}
	return body, nil
}

// buildCommand addresses the endpoint's command at its fixed target, or at
// ?target= when the endpoint leaves it open. The command has no origin, so
// plugins see it as host issued.
func buildCommand(ep *EndpointConfig, r *http.Request, body []byte) (command.Command, *hookError) {
	target := ep.Target
	if target == "" {
		target = r.URL.Query().Get("target")
	}
	if target == "" {
		return command.Command{}, fail(http.StatusBadRequest, "target is required")
	}

	var payload any
	if len(body) > 0 {
		if !json.Valid(body) {
			return command.Command{}, fail(http.StatusBadRequest, "body must be JSON")
		}
		payload = json.RawMessage(body)
	}
	cmd, err := command.New(ep.Kind, ep.Name, target, payload)
	if err != nil {
		return command.Command{}, fail(http.StatusInternalServerError, err.Error())
	}
	return cmd, nil
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug("write webhook response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, e *hookError) {
	s.respondJSON(w, e.status, ErrorResponse{Error: e.msg})
}
