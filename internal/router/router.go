// Package router registers the HTTP routes of the API.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/account-auth/internal/config"
	"github.com/iliyamo/account-auth/internal/handler"
	"github.com/iliyamo/account-auth/internal/logging"
	"github.com/iliyamo/account-auth/internal/middleware"
)

// New builds the echo instance with the global middleware stack.
func New(log logging.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.BodyLimit("64K"))
	RegisterRoutes(e)
	return e
}

// RegisterRoutes registers routes that need no dependencies.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the /auth routes. Every route shares the rate
// limiter; /auth/me and /auth/password also require a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, codec middleware.AccessDecoder,
	rl config.RateLimitConfig, rdb *redis.Client, log logging.Logger) {
	g := e.Group("/auth", middleware.RateLimit(rl, rdb, log))

	g.POST("/register", a.Register)
	g.POST("/authenticate", a.Authenticate)
	g.GET("/activate-account", a.ActivateAccount)
	g.POST("/refresh-token", a.RefreshToken)
	g.POST("/resend-activation", a.ResendActivation)
	g.POST("/logout", a.Logout)

	g.GET("/me", a.Me, middleware.JWTAuth(codec))
	g.PUT("/password", a.ChangePassword, middleware.JWTAuth(codec))
}
