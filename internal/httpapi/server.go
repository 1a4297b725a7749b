// Package httpapi provides the HTTP API for lexrag.
package httpapi

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/lexgrove/lexrag/internal/docstore"
	"github.com/lexgrove/lexrag/internal/rag"
)

// ownerHeader carries the caller identity. Authentication proper sits in
// front of this service; the header is trusted as-is.
const ownerHeader = "X-Owner-ID"

// Config holds HTTP server configuration.
type Config struct {
	// Addr is the listen address, e.g. ":8420".
	Addr string

	// MaxUploadBytes caps accepted document upload size.
	MaxUploadBytes int64

	// MaxQuestionChars caps accepted question length.
	MaxQuestionChars int

	// QueryTimeout bounds a single query request, generation included.
	QueryTimeout time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = ":8420"
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 25 * 1024 * 1024
	}
	if c.MaxQuestionChars <= 0 {
		c.MaxQuestionChars = 2000
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 60 * time.Second
	}
}

// Server exposes the ingestion and query pipeline over HTTP.
type Server struct {
	echo     *echo.Echo
	pipeline *rag.Pipeline
	store    docstore.Store
	logger   *zap.Logger
	config   Config
}

// NewServer creates the HTTP server and registers its routes.
func NewServer(pipeline *rag.Pipeline, store docstore.Store, logger *zap.Logger, config Config) (*Server, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	config.ApplyDefaults()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:     e,
		pipeline: pipeline,
		store:    store,
		logger:   logger,
		config:   config,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)

	v1 := s.echo.Group("/v1")
	v1.POST("/documents", s.handleUpload)
	v1.GET("/documents", s.handleListDocuments)
	v1.GET("/documents/:id", s.handleGetDocument)
	v1.DELETE("/documents/:id", s.handleDeleteDocument)
	v1.POST("/query", s.handleQuery)
	v1.GET("/queries", s.handleListQueries)
	v1.POST("/queries/:id/feedback", s.handleQueryFeedback)
}

// Handler returns the underlying handler for tests.
func (s *Server) Handler() *echo.Echo {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.config.Addr))
	return s.echo.Start(s.config.Addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
