package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goodtune/folio/internal/auth"
	"github.com/goodtune/folio/internal/session"
	"github.com/rs/zerolog"
)

// Deps holds dependencies needed for admin routes.
type Deps struct {
	Auth   *auth.Service
	Guard  *session.Guard
	Logger zerolog.Logger
}

// SetupRoutes registers all admin routes with the Gin engine.
func SetupRoutes(r *gin.Engine, cfg Config, deps Deps) {
	r.Use(LoggingMiddleware(deps.Logger))

	if len(cfg.AllowedOrigins) > 0 {
		r.Use(CORSMiddleware(cfg.AllowedOrigins))
	}

	loginLimiter := NewRateLimiter(cfg.LoginRateLimit, cfg.LoginBurst)

	authViews := NewAuthViews(deps.Auth, deps.Guard, cfg.SecureCookies, deps.Logger)
	sessionViews := NewSessionViews(deps.Guard, deps.Logger)

	// Health check (public)
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Authentication endpoints (public)
	public := r.Group("/api/auth")
	{
		public.POST("/login", RateLimitMiddleware(loginLimiter), authViews.Login)
		public.GET("/logout-reason", authViews.LogoutReason)
	}

	// Protected API routes
	api := r.Group("/api")
	api.Use(AuthMiddleware(deps.Auth, deps.Guard, deps.Logger))
	{
		api.POST("/auth/logout", authViews.Logout)
		api.GET("/auth/me", authViews.Me)
		api.POST("/auth/change-password", authViews.ChangePassword)

		api.GET("/session", sessionViews.Info)
		api.POST("/session/check", sessionViews.Check)
	}
}
