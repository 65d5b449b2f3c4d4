// Package api exposes agents, NFTs and negotiations over a JSON REST API.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/teleagent/teleagent/internal/bargain"
	"github.com/teleagent/teleagent/internal/config"
	"github.com/teleagent/teleagent/internal/database"
	"github.com/teleagent/teleagent/internal/logger"
)

const shutdownTimeout = 10 * time.Second

// Server serves the REST API.
type Server struct {
	cfg        config.HTTPConfig
	store      database.Store
	negotiator *bargain.Negotiator
	log        *slog.Logger
	engine     *gin.Engine
}

// NewServer builds the gin engine with every route registered.
func NewServer(cfg config.HTTPConfig, store database.Store, negotiator *bargain.Negotiator, log *slog.Logger) *Server {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	s := &Server{
		cfg:        cfg,
		store:      store,
		negotiator: negotiator,
		log:        log.With("component", "api"),
	}

	r := gin.New()
	r.Use(gin.Recovery(), logger.GinMiddleware(log))
	s.routes(r)
	s.engine = r
	return s
}

// Handler returns the HTTP handler of the API.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run listens on the configured address until ctx is done, then shuts the
// server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP API listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("Shutting down HTTP API...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	return nil
}
