package session

import (
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultAbsoluteTimeout is the session lifetime measured from login.
	DefaultAbsoluteTimeout = 2 * time.Hour

	// DefaultCheckInterval is how often the guard re-validates the session.
	DefaultCheckInterval = 60 * time.Second

	// DefaultActivityThrottle is the minimum gap between activity writes.
	DefaultActivityThrottle = 30 * time.Second

	// DefaultSignOutTimeout bounds a single forced sign-out call.
	DefaultSignOutTimeout = 10 * time.Second
)

// ErrInvalidConfig is returned by NewGuard for unusable settings.
var ErrInvalidConfig = errors.New("session: invalid config")

// Config controls session lifetime enforcement. Zero values take defaults,
// except InactivityTimeout, where zero disables inactivity tracking.
type Config struct {
	AbsoluteTimeout   time.Duration
	InactivityTimeout time.Duration
	CheckInterval     time.Duration
	ActivityThrottle  time.Duration
	SignOutTimeout    time.Duration
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{
		AbsoluteTimeout:  DefaultAbsoluteTimeout,
		CheckInterval:    DefaultCheckInterval,
		ActivityThrottle: DefaultActivityThrottle,
		SignOutTimeout:   DefaultSignOutTimeout,
	}
}

func (c Config) withDefaults() Config {
	if c.AbsoluteTimeout == 0 {
		c.AbsoluteTimeout = DefaultAbsoluteTimeout
	}
	if c.CheckInterval == 0 {
		c.CheckInterval = DefaultCheckInterval
	}
	if c.ActivityThrottle == 0 {
		c.ActivityThrottle = DefaultActivityThrottle
	}
	if c.SignOutTimeout == 0 {
		c.SignOutTimeout = DefaultSignOutTimeout
	}
	return c
}

// Validate reports whether the settings can be enforced.
func (c Config) Validate() error {
	switch {
	case c.AbsoluteTimeout <= 0:
		return fmt.Errorf("%w: absolute timeout must be positive, got %v", ErrInvalidConfig, c.AbsoluteTimeout)
	case c.CheckInterval <= 0:
		return fmt.Errorf("%w: check interval must be positive, got %v", ErrInvalidConfig, c.CheckInterval)
	case c.InactivityTimeout < 0:
		return fmt.Errorf("%w: inactivity timeout cannot be negative, got %v", ErrInvalidConfig, c.InactivityTimeout)
	case c.ActivityThrottle < 0:
		return fmt.Errorf("%w: activity throttle cannot be negative, got %v", ErrInvalidConfig, c.ActivityThrottle)
	case c.SignOutTimeout < 0:
		return fmt.Errorf("%w: sign-out timeout cannot be negative, got %v", ErrInvalidConfig, c.SignOutTimeout)
	case c.CheckInterval > c.AbsoluteTimeout:
		return fmt.Errorf("%w: check interval %v exceeds absolute timeout %v", ErrInvalidConfig, c.CheckInterval, c.AbsoluteTimeout)
	}
	return nil
}

// InactivityEnabled reports whether inactivity tracking is switched on.
func (c Config) InactivityEnabled() bool {
	return c.InactivityTimeout > 0
}
