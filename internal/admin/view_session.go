package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goodtune/folio/internal/session"
	"github.com/rs/zerolog"
)

// SessionViews exposes the session guard.
type SessionViews struct {
	guard  *session.Guard
	logger zerolog.Logger
}

// NewSessionViews creates a new SessionViews instance.
func NewSessionViews(guard *session.Guard, logger zerolog.Logger) *SessionViews {
	return &SessionViews{
		guard:  guard,
		logger: logger,
	}
}

// Info returns the session countdown, or 204 when there is no record.
func (v *SessionViews) Info(ctx *gin.Context) {
	info := v.guard.SessionInfo(ctx.Request.Context())
	if info == nil {
		ctx.Status(http.StatusNoContent)
		return
	}
	ctx.JSON(http.StatusOK, newSessionResponse(info))
}

// Check runs a validation pass immediately.
func (v *SessionViews) Check(ctx *gin.Context) {
	outcome := v.guard.CheckSession(ctx.Request.Context())

	v.logger.Debug().Str("outcome", string(outcome)).Msg("On-demand session check")

	ctx.JSON(http.StatusOK, CheckResponse{
		Outcome: outcome,
		Session: newSessionResponse(v.guard.SessionInfo(ctx.Request.Context())),
	})
}
