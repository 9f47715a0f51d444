package server

import (
	"github.com/gin-gonic/gin"
	"github.com/nulzo/content-gateway/internal/gateway"
	"github.com/nulzo/content-gateway/internal/server/middleware"
	v1 "github.com/nulzo/content-gateway/internal/server/v1"
)

func (s *Server) SetupRoutes() {
	// CORS before anything that can reject a request
	s.router.Use(middleware.CORS())
	s.router.Use(middleware.ErrorHandler(s.logger))

	healthHandler := v1.NewHealthHandler(s.deps.Version)
	s.router.GET("/health", healthHandler.Health)

	var limit []gin.HandlerFunc
	if s.deps.Limiter != nil {
		limit = append(limit, middleware.RateLimit(s.deps.Limiter, s.logger))
	}

	// preflights are never limited; keyless POSTs get 401 before spending budget
	agent := s.router.Group("/api/ai-agent")
	register := func(path string, credential, handler gin.HandlerFunc) {
		chain := append([]gin.HandlerFunc{credential}, limit...)
		agent.POST(path, append(chain, handler)...)
		agent.OPTIONS(path, v1.Preflight)
	}
	{
		generate := v1.NewGenerateHandler(s.deps.Service, s.validator)
		requireKey := middleware.Credential(nil)

		register("/chatbot", requireKey, generate.Text(gateway.RouteChat))
		register("/content-generator", requireKey, generate.Text(gateway.RouteContent))
		register("/image-generator", middleware.Credential(s.deps.Service.ImageServerKey), generate.Image)
	}

	if len(s.config.Server.AdminKeys) == 0 || s.deps.Analytics == nil {
		s.logger.Info("Admin endpoints disabled (needs server.admin_keys and database.enabled)")
		return
	}

	admin := s.router.Group("/v1")
	admin.Use(middleware.AdminAuth(s.config.Server.AdminKeys))
	{
		generations := v1.NewGenerationHandler(s.deps.Analytics)
		admin.GET("/generations", generations.GetGeneration)

		usage := v1.NewAnalyticsHandler(s.deps.Analytics, s.validator)
		admin.GET("/analytics/usage", usage.GetUsage)

		cfg := v1.NewConfigHandler(s.config)
		admin.GET("/config", cfg.Get)
	}
}
