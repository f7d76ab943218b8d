// Package api exposes the orchestrator over a local HTTP interface.
//
// Short operations (probe, trim, thumbnail, audio) run inside the request.
// Exports are submitted to the SessionManager and observed through
// GET /exports/{id} or the server-sent event stream at
// GET /exports/{id}/events.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"splicer/internal/logging"
	"splicer/orchestrator"
)

type Server struct {
	httpServer *http.Server
	logger     zerolog.Logger
}

type ServerConfig struct {
	Addr         string
	Orchestrator *orchestrator.Orchestrator
	Sessions     *orchestrator.SessionManager
	Logger       zerolog.Logger
	StartTime    time.Time
	Version      string
}

func NewServer(cfg ServerConfig) *Server {
	cfg.Logger = logging.WithComponent(cfg.Logger, "api")
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      0, // Event streams and trims outlive any fixed timeout
			IdleTimeout:       60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("Starting HTTP server")
	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
