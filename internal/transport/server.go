// Package transport serves the spectator HTTP surface: JSON event polling,
// SSE streaming, and WebSocket streaming over the room registry, plus the
// MCP streamable HTTP endpoint and health checks.
package transport

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/kibitz-games/kibitz/internal/event"
	"github.com/kibitz-games/kibitz/internal/platform/log"
	"github.com/kibitz-games/kibitz/internal/room"
)

// Config carries the dependencies of the HTTP server.
type Config struct {
	Addr   string
	Rooms  *room.Registry
	Buffer *event.Buffer
	// MCP, when set, is mounted at /mcp for agents that prefer HTTP over a
	// stdio pipe.
	MCP http.Handler
}

// Server is the spectator-facing HTTP server.
type Server struct {
	cfg    Config
	logger zerolog.Logger
	http   *http.Server
}

// New creates the HTTP server with all routes registered.
func New(cfg Config) *Server {
	s := &Server{
		cfg:    cfg,
		logger: log.WithComponent("http"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))

	r.Get("/healthz", s.handleHealthz)
	r.Route("/rooms/{sessionID}", func(r chi.Router) {
		r.Get("/events", s.handleEvents)
		r.Get("/stream", s.handleStream)
		r.Get("/ws", s.handleWS)
	})
	if cfg.MCP != nil {
		r.Handle("/mcp", cfg.MCP)
	}

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run serves until the context ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(started)).
				Msg("request")
		})
	}
}
