package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prism-gateway/llm-router/internal/config"
	"github.com/prism-gateway/llm-router/internal/core/ports"
	"github.com/prism-gateway/llm-router/internal/endpoint"
	"github.com/prism-gateway/llm-router/internal/registry"
	"github.com/prism-gateway/llm-router/internal/server/middleware"
	"go.uber.org/zap"
)

// Server owns the Gin engine and every collaborator routes.go needs to
// bind a handler for each registered endpoint descriptor.
type Server struct {
	router      *gin.Engine
	config      *config.Config
	logger      *zap.Logger
	engine      *endpoint.Engine
	listing     *ListingHandler
	rateLimiter *middleware.RateLimiter

	// manifest and strategyOverrides apply the declarative registration
	// manifest at bind time: manifest gates which descriptors are bound
	// at all, strategyOverrides supplies the Chooser for any descriptor
	// the manifest pins to a non-default strategy.
	manifest          *registry.Manifest
	strategyOverrides map[string]ports.Chooser
}

// New builds a Server. manifest may be nil (every registered endpoint
// enabled, default strategy). strategyOverrides maps a strategy name
// from the manifest to the already-constructed Chooser to use for any
// endpoint pinned to it; it may be nil when the manifest names none.
func New(cfg *config.Config, logger *zap.Logger, eng *endpoint.Engine, listing *ListingHandler, manifest *registry.Manifest, strategyOverrides map[string]ports.Chooser) *Server {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	if cfg.Tracing.Enabled {
		router.Use(middleware.Tracing(cfg.Tracing.ServiceName))
	}
	router.Use(middleware.Logger(logger))

	s := &Server{
		router:            router,
		config:            cfg,
		logger:            logger,
		engine:            eng,
		listing:           listing,
		manifest:          manifest,
		strategyOverrides: strategyOverrides,
	}

	if cfg.RateLimit.Enabled {
		s.rateLimiter = middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, logger)
	}

	s.setupRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}
