// Package apiserver exposes the thin, read-only HTTP view over the
// incident store: health, per-service summaries, and incident lookup.
package apiserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adityaviki/sentinelops/internal/incident"
	"github.com/adityaviki/sentinelops/internal/logging"
)

// Server serves the dashboard-facing read API over incident.Store.
type Server struct {
	port   int
	store  *incident.Store
	router *gin.Engine
	server *http.Server
	logger *logging.Logger
}

// New creates a Server bound to store. It does not start listening until
// Start is called.
func New(port int, store *incident.Store) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		port:   port,
		store:  store,
		router: gin.New(),
		logger: logging.GetLogger("apiserver"),
	}

	s.router.Use(gin.Recovery(), requestIDMiddleware(), corsMiddleware())
	s.registerRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Name implements lifecycle.Component.
func (s *Server) Name() string { return "apiserver" }

// Start implements lifecycle.Component. It begins listening in a
// background goroutine and returns immediately.
func (s *Server) Start(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.logger.InfoWithFields("starting read api", logging.Field("port", s.port))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.ErrorWithFields("read api server error", logging.Field("error", err.Error()))
		}
	}()
	return nil
}

// Stop implements lifecycle.Component. It gracefully shuts the server down,
// bounded by a 5-second internal deadline raced against ctx.
func (s *Server) Stop(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done <- s.server.Shutdown(shutdownCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			s.logger.ErrorWithFields("read api shutdown error", logging.Field("error", err.Error()))
			return err
		}
		s.logger.Info("read api stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("read api shutdown timed out")
		return ctx.Err()
	}
}

// Handler returns the underlying router, exposed for httptest-based route
// tests that don't need a listening socket.
func (s *Server) Handler() http.Handler { return s.router }
