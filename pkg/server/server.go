package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/soundprediction/docgraph"
	"github.com/soundprediction/docgraph/pkg/config"
	"github.com/soundprediction/docgraph/pkg/server/handlers"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

type contextKey string

// ContextKeyRequestID is the request context key holding the request id.
const ContextKeyRequestID contextKey = "request_id"

// Server represents the HTTP server
type Server struct {
	config *config.Config
	router *gin.Engine
	client docgraph.DocGraph
	server *http.Server
	logger *slog.Logger
}

// New creates a new server instance
func New(cfg *config.Config, client docgraph.DocGraph, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config: cfg,
		client: client,
		logger: logger,
	}
}

// Setup sets up the server routes and middleware
func (s *Server) Setup() {
	gin.SetMode(s.config.Server.Mode)

	s.router = gin.New()

	s.router.Use(gin.Logger())
	s.router.Use(gin.Recovery())
	s.router.Use(corsMiddleware())
	s.router.Use(requestIDMiddleware())

	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
}

// Router returns the configured router; nil before Setup.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// setupRoutes sets up all the routes
func (s *Server) setupRoutes() {
	maxDocuments := s.config.Server.MaxDocuments
	healthHandler := handlers.NewHealthHandler(s.client)
	analysisHandler := handlers.NewAnalysisHandler(s.client, maxDocuments)
	graphHandler := handlers.NewGraphHandler(s.client, maxDocuments)

	// Health endpoints
	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)
	s.router.GET("/live", healthHandler.LivenessCheck)
	s.router.GET("/health/detailed", healthHandler.DetailedHealthCheck)

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/analyze", analysisHandler.Analyze)
		v1.POST("/relationships", analysisHandler.Relationships)
		v1.POST("/clusters", analysisHandler.Clusters)
		v1.POST("/conflicts", analysisHandler.Conflicts)

		g := v1.Group("/graph")
		{
			g.POST("/related", graphHandler.Related)
			g.POST("/export", graphHandler.Export)
			g.POST("/stats", graphHandler.Stats)
		}
	}
}

// Start starts the server
func (s *Server) Start() error {
	s.logger.Info("Starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Stop stops the server gracefully
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping server")
	return s.server.Shutdown(ctx)
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// requestIDMiddleware propagates the caller's X-Request-ID or assigns a new
// one, echoing it in the response.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set(handlers.RequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)
		ctx := context.WithValue(c.Request.Context(), ContextKeyRequestID, requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
