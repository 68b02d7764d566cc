// Package http provides the docrag HTTP API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/errs"
	"github.com/fyrsmithlabs/docrag/internal/services"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

const (
	defaultLimit = 5
	maxLimit     = 100
)

// Server provides HTTP endpoints for docrag.
type Server struct {
	echo     *echo.Echo
	registry services.Registry
	logger   *zap.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host    string
	Port    int
	Version string
}

// NewServer creates a new HTTP server.
func NewServer(registry services.Registry, logger *zap.Logger, cfg *Config) (*Server, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9090,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return nil
		}
	})

	s := &Server{
		echo:     e,
		registry: registry,
		logger:   logger,
		config:   cfg,
	}
	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/status", s.handleStatus)
	v1.GET("/collections", s.handleCollections)
	v1.GET("/collections/:name/documents", s.handleDocuments)
	v1.POST("/search", s.handleSearch)
	v1.POST("/ask", s.handleAsk)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleStatus(c echo.Context) error {
	collections, documents := CountDocuments(c.Request().Context(), s.registry.VectorStore())
	status := "ok"
	if collections < 0 {
		status = "degraded"
	}
	return c.JSON(http.StatusOK, StatusResponse{
		Status:      status,
		Version:     s.config.Version,
		Collections: collections,
		Documents:   documents,
	})
}

func (s *Server) handleCollections(c echo.Context) error {
	infos, err := s.registry.VectorStore().ListCollections(c.Request().Context())
	if err != nil {
		return err
	}
	if infos == nil {
		infos = []vectorstore.CollectionInfo{}
	}
	return c.JSON(http.StatusOK, infos)
}

func (s *Server) handleDocuments(c echo.Context) error {
	limit, err := parseLimit(c.QueryParam("limit"), 0)
	if err != nil {
		return err
	}
	records, err := s.registry.VectorStore().Peek(c.Request().Context(), c.Param("name"), limit)
	if err != nil {
		return err
	}
	docs := make([]DocumentView, len(records))
	for i, r := range records {
		docs[i] = DocumentView{
			ID:         r.ID,
			Content:    r.Content,
			FilePath:   r.Metadata.File.Path,
			CreatedAt:  r.Metadata.File.CreatedAt,
			UpdatedAt:  r.Metadata.File.UpdatedAt,
			ChunkIndex: r.Metadata.Chunk.Index,
		}
	}
	return c.JSON(http.StatusOK, DocumentsResponse{Collection: c.Param("name"), Documents: docs})
}

func (s *Server) handleSearch(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid search request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}
	limit, err := clampLimit(req.Limit)
	if err != nil {
		return err
	}

	passages, err := s.registry.Answers().Search(c.Request().Context(), req.Query, req.Collections, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SearchResponse{Passages: passages})
}

func (s *Server) handleAsk(c echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid ask request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question field is required")
	}
	limit, err := clampLimit(req.Limit)
	if err != nil {
		return err
	}

	ans, err := s.registry.Answers().Ask(c.Request().Context(), req.Question, req.Collections, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, AskResponse{
		Answer:   ans.Answer,
		Refused:  ans.Refused,
		Passages: ans.Passages,
	})
}

func parseLimit(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
	}
	return n, nil
}

func clampLimit(n int) (int, error) {
	switch {
	case n < 0:
		return 0, echo.NewHTTPError(http.StatusBadRequest, "limit must not be negative")
	case n == 0:
		return defaultLimit, nil
	case n > maxLimit:
		return maxLimit, nil
	default:
		return n, nil
	}
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, vectorstore.ErrCollectionNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrInvalidConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrGenerationService), errors.Is(err, errs.ErrEmbeddingService):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func errorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg := fmt.Sprint(he.Message)
			_ = c.JSON(he.Code, ErrorResponse{Error: msg})
			return
		}

		code := statusFor(err)
		if code >= http.StatusInternalServerError {
			logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
		}
		_ = c.JSON(code, ErrorResponse{Error: err.Error()})
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
