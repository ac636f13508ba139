package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/redhat-data-and-ai/userpool/internal/httpapi/handlers"
	"github.com/redhat-data-and-ai/userpool/internal/httpapi/middleware"
	"github.com/redhat-data-and-ai/userpool/pkg/config"
	"github.com/redhat-data-and-ai/userpool/pkg/userpool"
)

const shutdownTimeout = 10 * time.Second

type APIServer struct {
	config   *config.AppConfig
	router   *gin.Engine
	server   *http.Server
	handlers *handlers.Handlers
}

func NewAPIServer(cfg *config.AppConfig, pool userpool.UserPool) *APIServer {
	if cfg.App.Environment == "local" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLogger())
	router.Use(gin.Recovery())

	s := &APIServer{
		config:   cfg,
		router:   router,
		handlers: handlers.NewHandlers(cfg, pool),
	}

	router.Use(middleware.CORS(&s.config.APIServer))

	s.setupRoutes()
	return s
}

func (s *APIServer) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	v1.Use(middleware.Auth(s.config))

	v1.GET("/status", s.handlers.Status)

	users := v1.Group("/users")
	users.GET("", s.handlers.ListUsers)
	users.POST("", s.handlers.CreateUser)
	users.GET("/:username", s.handlers.GetUser)
	users.PUT("/:username", s.handlers.PutUser)
	users.DELETE("/:username", s.handlers.DeleteUser)
}

// Handler exposes the router, mainly for tests
func (s *APIServer) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts the server down gracefully
func (s *APIServer) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              net.JoinHostPort(s.config.APIServer.Host, fmt.Sprint(s.config.APIServer.Port)),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("address", s.server.Addr).Info("starting http API server")
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to start http API server: %w", err)
	case <-ctx.Done():
	}

	logrus.Info("turning down http API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("error during http API server shutdown")
		return err
	}
	logrus.Info("http API server stopped")
	return nil
}
