package server

import (
	"net/http"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/nulzo/content-gateway/internal/analytics"
	"github.com/nulzo/content-gateway/internal/config"
	"github.com/nulzo/content-gateway/internal/gateway"
	"github.com/nulzo/content-gateway/internal/server/middleware"
	"github.com/nulzo/content-gateway/internal/server/validator"
	"go.uber.org/zap"
)

// Deps are the collaborators the HTTP layer needs. Analytics and Limiter
// may be nil, which disables the admin endpoints and rate limiting.
type Deps struct {
	Service   gateway.Service
	Analytics analytics.Service
	Limiter   middleware.Limiter
	Version   string
}

type Server struct {
	router    *gin.Engine
	config    *config.Config
	logger    *zap.Logger
	deps      Deps
	validator *validator.Validator
}

func New(cfg *config.Config, logger *zap.Logger, deps Deps) (*Server, error) {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	v, err := validator.New()
	if err != nil {
		return nil, err
	}

	engine := gin.New()

	if cfg.Tracing.Enabled {
		engine.Use(middleware.Tracing(cfg.Tracing.ServiceName))
	}
	engine.Use(ginzap.RecoveryWithZap(logger, true))
	engine.Use(middleware.Logger(logger))

	s := &Server{
		router:    engine,
		config:    cfg,
		logger:    logger,
		deps:      deps,
		validator: v,
	}

	s.SetupRoutes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}
