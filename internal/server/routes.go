package server

import (
	"strings"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/prism-gateway/llm-router/internal/registry"
	"github.com/prism-gateway/llm-router/internal/server/middleware"
	"go.uber.org/zap"
)

func (s *Server) setupRoutes() {
	s.router.Use(middleware.CORS())
	if s.rateLimiter != nil {
		s.router.Use(s.rateLimiter.Middleware())
	}
	s.router.Use(middleware.ErrorHandler(s.logger))

	// The listing/health routes get gin-contrib/zap's access logger and
	// panic recovery on top of the gateway-wide hand-rolled equivalents:
	// these are the routes uptime checks hit hardest, and ginzap's
	// structured request/latency fields are what the dashboards built
	// around it expect for that traffic.
	health := s.router.Group("/")
	health.Use(ginzap.Ginzap(s.logger, time.RFC3339, true))
	health.Use(ginzap.RecoveryWithZap(s.logger, true))
	health.GET("/ping", s.listing.Ping)
	health.GET("/", s.listing.OllamaHome)
	health.GET("/tags", s.listing.OllamaTags)
	health.GET("/models", s.listing.OpenAIModels)
	health.GET("/v1/models", s.listing.OpenAIModels)
	health.GET("/api/v0/models", s.listing.LMStudioModels)

	prefix := strings.TrimRight(s.config.Server.Prefix, "/")

	for _, d := range registry.All() {
		if s.manifest != nil && !s.manifest.Enabled(d.Method, d.Path) {
			s.logger.Info("registration manifest disabled endpoint", zap.String("method", d.Method), zap.String("path", d.Path))
			continue
		}
		if name := s.manifest.StrategyFor(d.Method, d.Path); name != "" {
			if chooser, ok := s.strategyOverrides[name]; ok {
				d.Chooser = chooser
			} else {
				s.logger.Warn("registration manifest names an unbuilt strategy override",
					zap.String("method", d.Method), zap.String("path", d.Path), zap.String("strategy", name))
			}
		}

		path := d.Path
		if !d.DontAddAPIPrefix {
			path = prefix + d.Path
		}
		s.router.Handle(d.Method, path, s.engine.Handler(d))
	}
}
