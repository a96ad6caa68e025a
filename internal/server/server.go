package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spacesedan/sentibot/internal/ratelimit"
)

const (
	defaultReadTimeout     = 30 * time.Second
	defaultWriteTimeout    = 60 * time.Second
	defaultIdleTimeout     = 120 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

type ServerConfig struct {
	Addr     string
	Debug    bool
	Limiter  ratelimit.Limiter
	Gatherer prometheus.Gatherer
}

type Server struct {
	Handler    *Handler
	Router     *gin.Engine
	httpServer *http.Server
}

func NewServer(handler *Handler, cfg ServerConfig) *Server {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(recovery(), requestLogger())
	SetupRoutes(router, handler, cfg.Limiter, cfg.Gatherer)

	return &Server{
		Handler: handler,
		Router:  router,
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      router,
			ReadTimeout:  defaultReadTimeout,
			WriteTimeout: defaultWriteTimeout,
			IdleTimeout:  defaultIdleTimeout,
		},
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("[Server] Listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("[Server] listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("[Server] Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("[Server] shutdown: %w", err)
	}
	slog.Info("[Server] Stopped")
	return nil
}
