package main

import (
	"chatserver/internal/config"
	"chatserver/internal/middleware"
	"chatserver/pkg/logger"
	"github.com/gin-gonic/gin"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, cfg *config.Config, svc *appServices) {
	// Middleware
	r.Use(middleware.RequestID())
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS())

	// Rate limiter for credential endpoints
	authLimiter := middleware.NewRateLimiter(cfg.Server.AuthRateRPS, cfg.Server.AuthRateBurst)

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "chatserver"})
	})

	// Websocket endpoint; authenticates its own handshake
	r.GET("/ws", svc.socket.HandleWS)

	// API routes
	api := r.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth", authLimiter.Middleware())
		{
			auth.POST("/register", svc.authHandler.Register)
			auth.POST("/login", svc.authHandler.Login)
			auth.POST("/refresh", svc.authHandler.Refresh)
		}

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthRequired(svc.revocations, svc.users))
		{
			// Auth
			protected.GET("/auth/me", svc.authHandler.Me)
			protected.POST("/auth/logout", svc.authHandler.Logout)

			// Users
			protected.GET("/users", svc.userHandler.List)
			protected.PUT("/users/me", svc.userHandler.Update)
			protected.GET("/users/online", svc.userHandler.Online)
			protected.GET("/users/online/count", svc.userHandler.OnlineCount)
			protected.GET("/users/:id/online", svc.userHandler.IsOnline)

			// Conversations
			protected.GET("/conversations", svc.conversationHandler.List)
			protected.GET("/conversations/:id", svc.conversationHandler.Get)
			protected.POST("/conversations", svc.conversationHandler.Create)
			protected.POST("/conversations/:id/leave", svc.conversationHandler.Leave)
		}
	}
}
