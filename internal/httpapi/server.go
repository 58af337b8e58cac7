// Package httpapi exposes the document pipeline over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vaultd/internal/pipeline"
)

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Server is the HTTP front end of the pipeline.
type Server struct {
	echo         *echo.Echo
	orchestrator *pipeline.Orchestrator
	logger       *zap.Logger
	config       Config
}

// NewServer creates the HTTP server.
func NewServer(orchestrator *pipeline.Orchestrator, logger *zap.Logger, config Config) (*Server, error) {
	if orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if config.Host == "" {
		config.Host = "localhost"
	}
	if config.Port == 0 {
		config.Port = 8080
	}

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
		echo:         e,
		orchestrator: orchestrator,
		logger:       logger,
		config:       config,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/ingest", s.handleIngest)
	v1.POST("/query", s.handleQuery)
	v1.GET("/tenants", s.handleTenants)
}

// IngestRequest is the request body for POST /api/v1/ingest.
type IngestRequest struct {
	TenantID string `json:"tenant_id"`
	Text     string `json:"text"`
}

// IngestResponse is the response body for POST /api/v1/ingest.
type IngestResponse struct {
	RecordID        string `json:"record_id"`
	StoragePointer  string `json:"storage_pointer"`
	ScrubbedPreview string `json:"scrubbed_preview"`
}

// QueryRequest is the request body for POST /api/v1/query.
type QueryRequest struct {
	TenantID string `json:"tenant_id"`
	Query    string `json:"query"`
}

// QueryResponse is the response body for POST /api/v1/query.
type QueryResponse struct {
	Documents []pipeline.Document `json:"documents"`
	Answer    string              `json:"generated_answer"`
	Flagged   bool                `json:"anomaly_flagged"`
	Matches   int                 `json:"matches"`
}

// TenantsResponse is the response body for GET /api/v1/tenants.
type TenantsResponse struct {
	Tenants []pipeline.TenantInfo `json:"tenants"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleIngest(c echo.Context) error {
	var req IngestRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid ingest request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "bad_request",
			Message: "invalid request body",
		})
	}

	result, err := s.orchestrator.Ingest(c.Request().Context(), req.TenantID, req.Text)
	if err != nil {
		return s.pipelineError(c, err)
	}

	return c.JSON(http.StatusOK, IngestResponse{
		RecordID:        result.RecordID,
		StoragePointer:  result.StoragePointer,
		ScrubbedPreview: result.ScrubbedPreview,
	})
}

func (s *Server) handleQuery(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid query request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "bad_request",
			Message: "invalid request body",
		})
	}

	result, err := s.orchestrator.Query(c.Request().Context(), req.TenantID, req.Query)
	if err != nil {
		return s.pipelineError(c, err)
	}

	documents := result.Documents
	if documents == nil {
		documents = []pipeline.Document{}
	}
	return c.JSON(http.StatusOK, QueryResponse{
		Documents: documents,
		Answer:    result.Answer,
		Flagged:   result.Flagged,
		Matches:   result.Matches,
	})
}

func (s *Server) handleTenants(c echo.Context) error {
	infos, err := s.orchestrator.Tenants(c.Request().Context())
	if err != nil {
		return s.pipelineError(c, err)
	}
	if infos == nil {
		infos = []pipeline.TenantInfo{}
	}
	return c.JSON(http.StatusOK, TenantsResponse{Tenants: infos})
}

// pipelineError maps pipeline failures to HTTP statuses. Error bodies carry
// the failing stage but never payload content or key material.
func (s *Server) pipelineError(c echo.Context, err error) error {
	stage := ""
	var ingestErr *pipeline.IngestError
	var queryErr *pipeline.QueryError
	switch {
	case errors.As(err, &ingestErr):
		stage = ingestErr.Stage
	case errors.As(err, &queryErr):
		stage = queryErr.Stage
	}

	status := http.StatusInternalServerError
	kind := "internal_error"
	switch {
	case errors.Is(err, pipeline.ErrInvalidInput):
		status = http.StatusBadRequest
		kind = "bad_request"
	case errors.Is(err, pipeline.ErrModelUnavailable):
		status = http.StatusBadGateway
		kind = "model_unavailable"
	}

	s.logger.Error("pipeline request failed",
		zap.String("stage", stage),
		zap.Int("status", status),
		zap.Error(err),
	)
	return c.JSON(status, ErrorResponse{
		Error:   kind,
		Stage:   stage,
		Message: err.Error(),
	})
}

// Start starts the HTTP server and blocks until shutdown.
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
