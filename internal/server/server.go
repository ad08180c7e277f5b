// Package server exposes the engine's control surface over HTTP and streams
// pipeline events over a WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"autopilot/internal/domain"
	"autopilot/internal/engine"
)

// Controller is the engine surface the routes drive.
type Controller interface {
	Start(ctx context.Context, patch domain.ConfigPatch) error
	Stop() error
	Stats() engine.Stats
	Opportunities() []domain.Opportunity
	Tasks() []domain.Task
	ExecuteTask(ctx context.Context, id string) (domain.Task, error)
}

type Config struct {
	Addr string
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

func New(cfg Config, ctl Controller, hub *Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "server")

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      NewRouter(ctl, hub, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return &Server{httpServer: srv, logger: logger}
}

// NewRouter registers every route on a chi router.
func NewRouter(ctl Controller, hub *Hub, logger *slog.Logger) http.Handler {
	h := &handlers{ctl: ctl, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/api/health", h.health)
	r.Route("/api/engine", func(r chi.Router) {
		r.Get("/stats", h.stats)
		r.Post("/start", h.start)
		r.Post("/stop", h.stop)
		r.Get("/opportunities", h.opportunities)
		r.Get("/tasks", h.tasks)
		r.Post("/tasks/{id}/execute", h.executeTask)
	})
	if hub != nil {
		r.Get("/ws", hub.HandleWS)
	}
	return r
}

// Start listens until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
