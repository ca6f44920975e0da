package server

import (
	"time"

	"github.com/puku-sh/gateway/internal/server/admin"
	"github.com/puku-sh/gateway/internal/server/local"
	"github.com/puku-sh/gateway/internal/server/middleware"
	"github.com/puku-sh/gateway/internal/server/puku"
	v1 "github.com/puku-sh/gateway/internal/server/v1"
)

func (s *Server) setupRoutes() {
	s.router.Use(middleware.CORS())
	s.router.Use(middleware.ErrorHandler(s.logger))

	optionalAuth := middleware.Auth(s.tokens, false)
	requiredAuth := middleware.Auth(s.tokens, true)

	// Local-inference-compatible surface. Unauthenticated: these routes
	// emulate a runner on the loopback interface.
	localHandler := local.NewHandler(s.service)
	s.router.GET("/health", localHandler.Health)
	s.router.GET("/api/version", localHandler.Version)
	s.router.GET("/api/tags", localHandler.Tags)
	s.router.POST("/api/show", localHandler.Show)
	s.router.POST("/api/pull", localHandler.Pull)

	// OpenAI-compatible surface.
	chatHandler := v1.NewChatHandler(s.service, s.logger)
	completionHandler := v1.NewCompletionHandler(s.service, s.logger, s.config.Puku.FIMModel)
	embeddingsHandler := v1.NewEmbeddingsHandler(s.service)

	openai := s.router.Group("/v1")
	openai.Use(optionalAuth)
	if s.config.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(
			s.config.RateLimit.RequestsPerSecond,
			s.config.RateLimit.Burst,
			s.logger,
		)
		openai.Use(limiter.Middleware())
	}
	{
		openai.POST("/chat/completions", chatHandler.CreateChatCompletion)
		openai.POST("/completions", completionHandler.CreateCompletion)
		openai.POST("/embeddings", embeddingsHandler.CreateEmbeddings)
	}

	// Token management surface.
	tokenHandler := admin.NewTokenHandler(s.tokens)
	tokens := s.router.Group("/api/tokens")
	{
		tokens.POST("/issue", tokenHandler.Issue)
		tokens.POST("/register", tokenHandler.Register)
		tokens.GET("", requiredAuth, tokenHandler.List)
		tokens.GET("/validate", requiredAuth, tokenHandler.Validate)
		tokens.DELETE("/:token", requiredAuth, tokenHandler.Revoke)
	}

	// Product surface.
	pukuHandler := puku.NewHandler(s.service, s.tokens, s.quotas, puku.Options{
		EmbeddingsModel: s.config.Puku.EmbeddingsModel,
		SessionTTL:      time.Duration(s.config.Auth.SessionTokenTTLMinutes) * time.Minute,
		AuthEnforced:    s.config.Auth.Enforce,
	})
	product := s.router.Group("/puku/v1")
	{
		product.GET("/models", pukuHandler.Models)
		product.GET("/token", pukuHandler.Token)
		product.POST("/embeddings", pukuHandler.Embeddings)
		product.GET("/status", pukuHandler.Status)
		product.GET("/usage", requiredAuth, pukuHandler.Usage)
	}
}
