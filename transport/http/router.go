package http

import (
	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletbridge/service"
	"github.com/rs/zerolog"
)

// SetupRouter sets up the Gin router
func SetupRouter(bridge *service.BridgeService, sessions *service.SessionService, logger zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger))

	handlers := NewAuthHandlers(bridge, sessions, logger)

	auth := router.Group("/auth")
	{
		auth.POST("/nonce", handlers.Nonce)
		auth.POST("/sign-in-with-wallet", handlers.SignInWithWallet)
		auth.POST("/session", handlers.Session)
		auth.POST("/refresh", handlers.Refresh)
		auth.POST("/logout", handlers.Logout)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(AuthMiddleware(sessions))
	{
		api.GET("/me", handlers.Me)
		api.GET("/authorize", handlers.Authorize)
	}

	return router
}
