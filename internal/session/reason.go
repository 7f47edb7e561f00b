package session

// Storage keys. The persistent keys hold stringified millisecond
// timestamps; the ephemeral key holds a LogoutReason.
const (
	KeyStartTime    = "admin_session_start_time"
	KeyLastActivity = "admin_last_activity_time"
	KeyLogoutReason = "logoutReason"
)

// LogoutReason explains why the admin was signed out.
type LogoutReason string

const (
	ReasonInactivity      LogoutReason = "inactivity"
	ReasonAbsoluteTimeout LogoutReason = "absolute-timeout"
	ReasonManual          LogoutReason = "manual"
	ReasonSecurity        LogoutReason = "security"
)

// ParseLogoutReason returns the reason for s, or false if s is not one.
func ParseLogoutReason(s string) (LogoutReason, bool) {
	switch r := LogoutReason(s); r {
	case ReasonInactivity, ReasonAbsoluteTimeout, ReasonManual, ReasonSecurity:
		return r, true
	}
	return "", false
}

// Message is the text shown on the login page after a redirect.
func (r LogoutReason) Message() string {
	switch r {
	case ReasonInactivity:
		return "You were signed out after a period of inactivity. Please sign in again."
	case ReasonAbsoluteTimeout:
		return "Your session has expired. Please sign in again."
	case ReasonManual:
		return "You have been signed out."
	case ReasonSecurity:
		return "You were signed out for security reasons. Please sign in again."
	default:
		return ""
	}
}
