package admin

import (
	"time"

	"github.com/goodtune/folio/internal/session"
)

// LoginRequest represents a login request from the user.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents the response after a successful login.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      UserInfo  `json:"user"`
	// SessionDeadline is when the absolute session timeout signs the user
	// out, regardless of token lifetime.
	SessionDeadline time.Time `json:"session_deadline"`
}

// UserInfo represents basic user information.
type UserInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// ChangePasswordRequest represents a password change request.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// LogoutReasonResponse carries the explanation shown on the login page.
type LogoutReasonResponse struct {
	Reason  session.LogoutReason `json:"reason"`
	Message string               `json:"message"`
}

// SessionResponse is the wire form of session.Info.
type SessionResponse struct {
	StartedAt        time.Time  `json:"started_at"`
	LastActivity     *time.Time `json:"last_activity,omitempty"`
	Deadline         time.Time  `json:"deadline"`
	ElapsedSeconds   int64      `json:"elapsed_seconds"`
	RemainingSeconds int64      `json:"remaining_seconds"`
	Expired          bool       `json:"expired"`
}

// CheckResponse reports the result of an on-demand session check.
type CheckResponse struct {
	Outcome session.Outcome  `json:"outcome"`
	Session *SessionResponse `json:"session,omitempty"`
}

// Config holds the admin server configuration.
type Config struct {
	ListenAddr     string
	AllowedOrigins []string
	LoginRateLimit float64 // login attempts per second per client
	LoginBurst     int
	SecureCookies  bool
}

func newSessionResponse(info *session.Info) *SessionResponse {
	if info == nil {
		return nil
	}
	resp := &SessionResponse{
		StartedAt:        info.StartedAt.UTC(),
		Deadline:         info.Deadline.UTC(),
		ElapsedSeconds:   int64(info.Elapsed / time.Second),
		RemainingSeconds: int64(info.Remaining / time.Second),
		Expired:          info.Expired,
	}
	if !info.LastActivity.IsZero() {
		last := info.LastActivity.UTC()
		resp.LastActivity = &last
	}
	return resp
}
