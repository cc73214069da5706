// Package server exposes the inference service as a JSON API over gin.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/YuminosukeSato/winequality/inference"
	"github.com/YuminosukeSato/winequality/pkg/errors"
	"github.com/YuminosukeSato/winequality/pkg/log"
	"github.com/YuminosukeSato/winequality/wine"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

const shutdownTimeout = 5 * time.Second

// Server routes API requests to an inference.Service.
type Server struct {
	svc         *inference.Service
	datasetPath string
	addr        string
	logger      log.Logger
	engine      *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithLogger overrides the logger.
func WithLogger(l log.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithDatasetPath sets the dataset cache served by /api/dataset.
func WithDatasetPath(path string) Option {
	return func(s *Server) {
		s.datasetPath = path
	}
}

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

// New builds the router around svc.
func New(svc *inference.Service, opts ...Option) *Server {
	s := &Server{
		svc:         svc,
		datasetPath: wine.DefaultCachePath,
		addr:        DefaultAddr,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.GetLoggerWithName("server")
	}
	s.engine = s.setupRouter()
	return s
}

func (s *Server) setupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	api := router.Group("/api")
	{
		api.GET("/health", s.healthHandler)
		api.GET("/metrics", s.metricsHandler)
		api.GET("/importance", s.importanceHandler)
		api.GET("/importance/chart.png", s.chartHandler)
		api.POST("/predict", s.predictHandler)
		api.GET("/dataset", s.datasetHandler)
	}
	return router
}

// requestLogger logs one line per request through the package logger.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("Request",
			log.HTTPMethodKey, c.Request.Method,
			log.HTTPPathKey, c.Request.URL.Path,
			log.HTTPStatusKey, c.Writer.Status(),
			log.HTTPClientKey, c.ClientIP(),
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("Serving API", log.HTTPAddrKey, s.addr, "ready", s.svc.Ready())

	select {
	case err := <-errCh:
		return errors.Wrapf(err, "failed to serve on %s", s.addr)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "failed to shut down server")
	}
	s.logger.Info("Server stopped", log.HTTPAddrKey, s.addr)
	return nil
}
