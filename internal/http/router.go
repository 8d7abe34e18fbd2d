package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/pulsemetrics/insights-auth/internal/config"
	"github.com/pulsemetrics/insights-auth/internal/http/handler"
	httpmiddleware "github.com/pulsemetrics/insights-auth/internal/http/middleware"
	"github.com/pulsemetrics/insights-auth/internal/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, authHandler *handler.AuthHandler, authMiddleware *httpmiddleware.Auth, rateLimiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	r.GET("/healthz", authHandler.Healthz)

	authGroup := r.Group("/api/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)
		authGroup.GET("/me", authMiddleware.ValidateJWT, authHandler.Me)

		authGroup.GET("/google", authMiddleware.ValidateJWT, authHandler.GoogleConnect)
		// Public: Google redirects here, the state parameter carries identity.
		authGroup.GET("/google/callback", authHandler.GoogleCallback)
		authGroup.GET("/google/status", authMiddleware.ValidateJWT, authHandler.GoogleStatus)
		authGroup.POST("/disconnect-google", authMiddleware.ValidateJWT, authHandler.GoogleDisconnect)
	}

	return r
}
