package admin

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goodtune/folio/internal/auth"
	"github.com/goodtune/folio/internal/metrics"
	"github.com/goodtune/folio/internal/session"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	tokenCookie = "admin_token"
	userKey     = "user"
)

// AuthMiddleware authenticates requests by bearer token or admin_token
// cookie. The token must belong to the currently signed-in user, and an
// expired session is enforced on the spot rather than at the next tick.
func AuthMiddleware(authService *auth.Service, guard *session.Guard, logger zerolog.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, ok := extractToken(ctx)
		if !ok {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "unauthorized",
				Message: "Missing authentication token",
			})
			return
		}

		user, err := authService.Authenticate(ctx.Request.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrNotSignedIn) {
				ctx.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "unauthorized",
					Message: "Invalid or expired token",
				})
				return
			}
			logger.Error().Err(err).Msg("Authentication error")
			ctx.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "server_error",
				Message: "Authentication failed",
			})
			return
		}

		if info := guard.SessionInfo(ctx.Request.Context()); info != nil && info.Expired {
			outcome := guard.CheckSession(ctx.Request.Context())
			logger.Debug().Str("outcome", string(outcome)).Msg("Enforced expired session on request")
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "session_expired",
				Message: session.ReasonAbsoluteTimeout.Message(),
				Reason:  string(session.ReasonAbsoluteTimeout),
			})
			return
		}

		guard.RecordActivity(ctx.Request.Context())

		ctx.Set(userKey, user)
		ctx.Next()
	}
}

func extractToken(ctx *gin.Context) (string, bool) {
	if header := ctx.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}

	cookie, err := ctx.Cookie(tokenCookie)
	if err != nil || cookie == "" {
		return "", false
	}
	return cookie, true
}

func currentUser(ctx *gin.Context) (*auth.User, bool) {
	value, exists := ctx.Get(userKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*auth.User)
	return user, ok && user != nil
}

// LoggingMiddleware logs each request and records its duration.
func LoggingMiddleware(logger zerolog.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		ctx.Next()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := ctx.Writer.Status()
		duration := time.Since(start)

		metrics.AdminRequestDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(duration.Seconds())

		logger.Info().
			Str("method", ctx.Request.Method).
			Str("path", ctx.Request.URL.Path).
			Str("remote_addr", ctx.ClientIP()).
			Int("status", status).
			Int("size", ctx.Writer.Size()).
			Dur("duration", duration).
			Msg("Admin request")
	}
}

// RateLimiter hands out a token bucket per client. Idle buckets age out of
// a bounded cache.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	clients *expirable.LRU[string, *rate.Limiter]
}

// NewRateLimiter allows perSecond events per client with the given burst.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		clients: expirable.NewLRU[string, *rate.Limiter](4096, nil, 30*time.Minute),
	}
}

// Allow reports whether the client may proceed now.
func (rl *RateLimiter) Allow(identifier string) bool {
	limiter, ok := rl.clients.Get(identifier)
	if !ok {
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		rl.clients.Add(identifier, limiter)
	}
	return limiter.Allow()
}

// RateLimitMiddleware rejects clients that exceed the limiter.
func RateLimitMiddleware(limiter *RateLimiter) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !limiter.Allow(ctx.ClientIP()) {
			metrics.LoginAttemptsTotal.WithLabelValues("rate_limited").Inc()
			ctx.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error:   "rate_limit_exceeded",
				Message: "Too many requests, please try again later",
			})
			return
		}
		ctx.Next()
	}
}

// CORSMiddleware creates Gin middleware for CORS support.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		origin := ctx.GetHeader("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed && origin != "" {
			ctx.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			ctx.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			ctx.Writer.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			ctx.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			ctx.Writer.Header().Add("Vary", "Origin")
		}

		// Handle preflight requests
		if ctx.Request.Method == http.MethodOptions {
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}

		ctx.Next()
	}
}
