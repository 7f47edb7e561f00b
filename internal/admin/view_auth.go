package admin

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goodtune/folio/internal/auth"
	"github.com/goodtune/folio/internal/metrics"
	"github.com/goodtune/folio/internal/session"
	"github.com/rs/zerolog"
)

// AuthViews handles authentication-related endpoints.
type AuthViews struct {
	auth          *auth.Service
	guard         *session.Guard
	secureCookies bool
	logger        zerolog.Logger
}

// NewAuthViews creates a new AuthViews instance.
func NewAuthViews(authService *auth.Service, guard *session.Guard, secureCookies bool, logger zerolog.Logger) *AuthViews {
	return &AuthViews{
		auth:          authService,
		guard:         guard,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

// Login signs the admin in and starts the absolute session clock.
func (v *AuthViews) Login(ctx *gin.Context) {
	var req LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request body",
		})
		return
	}

	if req.Username == "" || req.Password == "" {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "bad_request",
			Message: "Username and password are required",
		})
		return
	}

	var (
		user  *auth.User
		token string
	)
	err := v.guard.BeginSession(ctx.Request.Context(), func(c context.Context) error {
		var err error
		user, token, err = v.auth.SignIn(c, req.Username, req.Password)
		return err
	})
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			metrics.LoginAttemptsTotal.WithLabelValues("invalid").Inc()
			ctx.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "unauthorized",
				Message: "Invalid username or password",
			})
			return
		}
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		v.logger.Error().Err(err).Msg("Login error")
		ctx.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "server_error",
			Message: "Login failed",
		})
		return
	}
	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()

	deadline := user.SignedInAt.Add(v.guard.Config().AbsoluteTimeout)
	if info := v.guard.SessionInfo(ctx.Request.Context()); info != nil {
		deadline = info.Deadline
	}

	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(tokenCookie, token, int(user.ExpiresAt.Sub(user.SignedInAt).Seconds()), "/", "", v.secureCookies, true)

	ctx.JSON(http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: user.ExpiresAt.UTC(),
		User: UserInfo{
			ID:       user.ID,
			Username: user.Username,
		},
		SessionDeadline: deadline.UTC(),
	})
}

// Logout signs the admin out at their request.
func (v *AuthViews) Logout(ctx *gin.Context) {
	user, _ := currentUser(ctx)

	ctx.SetCookie(tokenCookie, "", -1, "/", "", v.secureCookies, true)

	if err := v.guard.Logout(ctx.Request.Context()); err != nil {
		v.logger.Error().Err(err).Msg("Logout error")
		ctx.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "server_error",
			Message: "Logout failed",
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": session.ReasonManual.Message(),
	})

	if user != nil {
		v.logger.Info().Str("username", user.Username).Msg("User logged out")
	}
}

// Me returns the current user information.
func (v *AuthViews) Me(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "User not authenticated",
		})
		return
	}

	ctx.JSON(http.StatusOK, UserInfo{
		ID:       user.ID,
		Username: user.Username,
	})
}

// ChangePassword handles password change requests.
func (v *AuthViews) ChangePassword(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "User not authenticated",
		})
		return
	}

	var req ChangePasswordRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request body",
		})
		return
	}

	if req.OldPassword == "" || req.NewPassword == "" {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "bad_request",
			Message: "Old and new passwords are required",
		})
		return
	}

	if len(req.NewPassword) < 8 {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "bad_request",
			Message: "New password must be at least 8 characters",
		})
		return
	}

	if err := v.auth.ChangePassword(ctx.Request.Context(), user.Username, req.OldPassword, req.NewPassword); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			ctx.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "unauthorized",
				Message: "Invalid current password",
			})
			return
		}
		v.logger.Error().Err(err).Str("username", user.Username).Msg("Password change error")
		ctx.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "server_error",
			Message: "Failed to change password",
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Password changed successfully",
	})

	v.logger.Info().Str("username", user.Username).Msg("User changed password")
}

// LogoutReason hands the pending logout reason to the login page once.
// There is a single reason slot per process, not one per browser tab, and
// it is readable without authentication. That fits the one-admin model:
// whichever login page asks first gets the reason.
func (v *AuthViews) LogoutReason(ctx *gin.Context) {
	reason, ok := v.guard.ConsumeLogoutReason(ctx.Request.Context())
	if !ok {
		ctx.Status(http.StatusNoContent)
		return
	}

	ctx.JSON(http.StatusOK, LogoutReasonResponse{
		Reason:  reason,
		Message: reason.Message(),
	})
}
