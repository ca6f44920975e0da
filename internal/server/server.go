package server

import (
	"net/http"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/puku-sh/gateway/internal/config"
	"github.com/puku-sh/gateway/internal/gateway"
	"github.com/puku-sh/gateway/internal/server/middleware"
	"github.com/puku-sh/gateway/internal/server/validator"
	"github.com/puku-sh/gateway/internal/token"
	"github.com/puku-sh/gateway/internal/usage"
)

type Server struct {
	router  *gin.Engine
	config  *config.Config
	logger  *zap.Logger
	service gateway.Service
	tokens  *token.Store
	quotas  *usage.Service
}

func New(cfg *config.Config, logger *zap.Logger, service gateway.Service, tokens *token.Store, quotas *usage.Service) *Server {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	validator.Init()

	engine := gin.New()

	engine.Use(ginzap.RecoveryWithZap(logger, true))
	engine.Use(middleware.Logger(logger))
	if cfg.Tracing.Enabled {
		engine.Use(middleware.Tracing("puku-gateway"))
	}

	s := &Server{
		router:  engine,
		config:  cfg,
		logger:  logger,
		service: service,
		tokens:  tokens,
		quotas:  quotas,
	}

	s.setupRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}
