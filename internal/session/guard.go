// Package session enforces an absolute lifetime on the admin login.
//
// The session record is two timestamps in the persistent store: when the
// login was first observed and when it was last validated. A Guard re-reads
// that record on a fixed interval and signs the admin out once the record
// is older than the absolute timeout, leaving a logout reason in the
// ephemeral store for the login page to show.
package session

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/goodtune/folio/internal/auth"
	"github.com/goodtune/folio/internal/clock"
	"github.com/goodtune/folio/internal/metrics"
	"github.com/goodtune/folio/internal/storage"
	"github.com/rs/zerolog"
)

// AuthProvider supplies the signed-in identity and a way to end it.
type AuthProvider interface {
	// CurrentUser returns nil when nobody is signed in.
	CurrentUser(ctx context.Context) (*auth.User, error)
	SignOut(ctx context.Context) error
}

// Outcome is the result of a single CheckSession pass.
type Outcome string

const (
	OutcomeNoUser      Outcome = "no_user"
	OutcomeInitialized Outcome = "initialized"
	OutcomeActive      Outcome = "active"
	OutcomeExpired     Outcome = "expired"
	OutcomeInactive    Outcome = "inactive"
	OutcomeError       Outcome = "error"
)

// Info is a read-only snapshot of the session record.
type Info struct {
	StartedAt    time.Time     `json:"started_at"`
	LastActivity time.Time     `json:"last_activity,omitempty"`
	Deadline     time.Time     `json:"deadline"`
	Elapsed      time.Duration `json:"elapsed"`
	Remaining    time.Duration `json:"remaining"`
	Expired      bool          `json:"expired"`
}

// Guard tracks the admin session and forces a sign-out when it expires.
type Guard struct {
	cfg       Config
	auth      AuthProvider
	local     storage.KV
	ephemeral storage.KV
	clock     clock.Clock
	logger    zerolog.Logger
	task      *Task

	// mu serializes passes that read and rewrite the record.
	mu           sync.Mutex
	lastRecorded time.Time

	lifecycle sync.Mutex
}

// NewGuard validates cfg and creates a stopped guard. local holds the
// session record; ephemeral holds the one-shot logout reason.
func NewGuard(cfg Config, provider AuthProvider, local, ephemeral storage.KV, clk clock.Clock, logger zerolog.Logger) (*Guard, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if provider == nil || local == nil || ephemeral == nil {
		return nil, errors.New("session: auth provider and stores are required")
	}
	if clk == nil {
		clk = clock.Real{}
	}

	g := &Guard{
		cfg:       cfg,
		auth:      provider,
		local:     local,
		ephemeral: ephemeral,
		clock:     clk,
		logger:    logger.With().Str("component", "session").Logger(),
	}
	g.task = NewTask(clk, cfg.CheckInterval, func(ctx context.Context) {
		g.CheckSession(ctx)
	})
	return g, nil
}

// Config returns the effective settings.
func (g *Guard) Config() Config {
	return g.cfg
}

// Start runs one check immediately and then every CheckInterval until Stop
// is called or ctx is cancelled. It returns false if the guard is already
// running.
func (g *Guard) Start(ctx context.Context) bool {
	g.lifecycle.Lock()
	defer g.lifecycle.Unlock()

	if g.task.Running() {
		return false
	}

	g.CheckSession(ctx)
	g.task.Start(ctx)

	g.logger.Info().
		Dur("absolute_timeout", g.cfg.AbsoluteTimeout).
		Dur("check_interval", g.cfg.CheckInterval).
		Bool("inactivity_tracking", g.cfg.InactivityEnabled()).
		Msg("Session guard started")
	return true
}

// Stop cancels the periodic check and waits for an in-flight pass.
func (g *Guard) Stop() {
	g.lifecycle.Lock()
	defer g.lifecycle.Unlock()

	if !g.task.Running() {
		return
	}
	g.task.Stop()
	g.logger.Info().Msg("Session guard stopped")
}

// Running reports whether the periodic check is active.
func (g *Guard) Running() bool {
	return g.task.Running()
}

// InitializeSession starts a new record at the current time, overwriting
// any existing one. Call it once right after a successful login.
func (g *Guard) InitializeSession(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.initialize(ctx)
}

// BeginSession runs signIn and starts a new record in one pass, so a
// periodic check cannot judge the new login against a stale record. When
// signIn fails the existing record is left alone. signIn must not call
// back into the guard.
func (g *Guard) BeginSession(ctx context.Context, signIn func(ctx context.Context) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := signIn(ctx); err != nil {
		return err
	}
	if err := g.initialize(ctx); err != nil {
		// The next check re-creates the record.
		g.logger.Warn().Err(err).Msg("Failed to initialize session record")
	}
	return nil
}

func (g *Guard) initialize(ctx context.Context) error {
	now := g.clock.Now()
	stamp := formatMillis(now)

	if err := g.local.Set(ctx, KeyStartTime, stamp); err != nil {
		metrics.SessionStorageErrors.WithLabelValues("write").Inc()
		return err
	}
	if err := g.local.Set(ctx, KeyLastActivity, stamp); err != nil {
		metrics.SessionStorageErrors.WithLabelValues("write").Inc()
		return err
	}
	g.lastRecorded = now
	metrics.SessionRemainingSeconds.Set(g.cfg.AbsoluteTimeout.Seconds())

	g.logger.Debug().Time("started_at", now).Msg("Session initialized")
	return nil
}

// CheckSession validates the record against the signed-in user and the
// configured timeouts. Failures are logged and absorbed; the returned
// outcome says what the pass did.
func (g *Guard) CheckSession(ctx context.Context) Outcome {
	g.mu.Lock()
	defer g.mu.Unlock()

	outcome := g.check(ctx)
	metrics.SessionChecksTotal.WithLabelValues(string(outcome)).Inc()
	return outcome
}

func (g *Guard) check(ctx context.Context) Outcome {
	user, err := g.auth.CurrentUser(ctx)
	if err != nil {
		g.logger.Error().Err(err).Msg("Failed to read current user")
		return OutcomeError
	}

	if user == nil {
		if err := g.clear(ctx); err != nil {
			g.logger.Warn().Err(err).Msg("Failed to remove stale session record")
		}
		metrics.SessionRemainingSeconds.Set(0)
		return OutcomeNoUser
	}

	start, err := g.readTime(ctx, KeyStartTime)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			g.logger.Warn().Err(err).Msg("Unreadable session start time, starting a new session")
		}
		if err := g.initialize(ctx); err != nil {
			g.logger.Error().Err(err).Msg("Failed to initialize session")
		}
		return OutcomeInitialized
	}

	now := g.clock.Now()
	elapsed := now.Sub(start)
	if elapsed >= g.cfg.AbsoluteTimeout {
		g.logger.Info().
			Str("username", user.Username).
			Dur("elapsed", elapsed).
			Msg("Session reached absolute timeout, signing out")
		g.forceLogout(ctx, start, ReasonAbsoluteTimeout)
		return OutcomeExpired
	}

	if g.cfg.InactivityEnabled() {
		last, err := g.readTime(ctx, KeyLastActivity)
		if err != nil {
			// Missing bookkeeping restarts the inactivity window.
			last = now
			g.writeActivity(ctx, now)
		}
		if idle := now.Sub(last); idle >= g.cfg.InactivityTimeout {
			g.logger.Info().
				Str("username", user.Username).
				Dur("idle", idle).
				Msg("Session inactive, signing out")
			g.forceLogout(ctx, start, ReasonInactivity)
			return OutcomeInactive
		}
	} else {
		g.writeActivity(ctx, now)
	}

	metrics.SessionRemainingSeconds.Set((g.cfg.AbsoluteTimeout - elapsed).Seconds())
	return OutcomeActive
}

// forceLogout removes the record and signs the user out. If the sign-out
// fails the start time is written back so the next pass sees the session
// as expired again instead of starting a fresh one.
func (g *Guard) forceLogout(ctx context.Context, start time.Time, reason LogoutReason) {
	if err := g.clear(ctx); err != nil {
		g.logger.Warn().Err(err).Msg("Failed to clear expired session record")
	}
	g.setReason(ctx, reason)
	metrics.ForcedLogoutsTotal.WithLabelValues(string(reason)).Inc()
	metrics.SessionRemainingSeconds.Set(0)

	signOutCtx, cancel := context.WithTimeout(ctx, g.cfg.SignOutTimeout)
	defer cancel()

	if err := g.auth.SignOut(signOutCtx); err != nil {
		metrics.SignOutFailures.Inc()
		g.logger.Error().Err(err).Str("reason", string(reason)).Msg("Forced sign-out failed, will retry on next check")

		if err := g.local.Set(ctx, KeyStartTime, formatMillis(start)); err != nil {
			metrics.SessionStorageErrors.WithLabelValues("write").Inc()
			g.logger.Error().Err(err).Msg("Failed to restore session start time")
		}
		if err := g.ephemeral.Delete(ctx, KeyLogoutReason); err != nil {
			g.logger.Warn().Err(err).Msg("Failed to withdraw logout reason")
		}
	}
}

// ClearSession deletes the session record. Manual logout calls it before
// signing out so a stale record cannot outlive the login.
func (g *Guard) ClearSession(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.clear(ctx)
}

func (g *Guard) clear(ctx context.Context) error {
	g.lastRecorded = time.Time{}
	if err := g.local.Delete(ctx, KeyStartTime, KeyLastActivity); err != nil {
		metrics.SessionStorageErrors.WithLabelValues("delete").Inc()
		return err
	}
	return nil
}

// Logout ends the session at the admin's request.
func (g *Guard) Logout(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.clear(ctx); err != nil {
		g.logger.Warn().Err(err).Msg("Failed to clear session record on logout")
	}
	g.setReason(ctx, ReasonManual)
	metrics.SessionRemainingSeconds.Set(0)

	return g.auth.SignOut(ctx)
}

// SessionInfo returns a snapshot of the record, or nil when there is none.
// It never modifies storage.
func (g *Guard) SessionInfo(ctx context.Context) *Info {
	start, err := g.readTime(ctx, KeyStartTime)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			g.logger.Debug().Err(err).Msg("Session info unavailable")
		}
		return nil
	}

	now := g.clock.Now()
	elapsed := now.Sub(start)
	remaining := g.cfg.AbsoluteTimeout - elapsed
	if remaining < 0 {
		remaining = 0
	}

	info := &Info{
		StartedAt: start,
		Deadline:  start.Add(g.cfg.AbsoluteTimeout),
		Elapsed:   elapsed,
		Remaining: remaining,
		Expired:   elapsed >= g.cfg.AbsoluteTimeout,
	}
	if last, err := g.readTime(ctx, KeyLastActivity); err == nil {
		info.LastActivity = last
	}
	return info
}

// RecordActivity notes user interaction. Writes closer together than
// ActivityThrottle are skipped, as are writes with no session record.
// It reports whether the timestamp was written.
func (g *Guard) RecordActivity(ctx context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	if !g.lastRecorded.IsZero() && now.Sub(g.lastRecorded) < g.cfg.ActivityThrottle {
		return false
	}
	if _, err := g.local.Get(ctx, KeyStartTime); err != nil {
		return false
	}
	return g.writeActivity(ctx, now)
}

func (g *Guard) writeActivity(ctx context.Context, now time.Time) bool {
	if err := g.local.Set(ctx, KeyLastActivity, formatMillis(now)); err != nil {
		metrics.SessionStorageErrors.WithLabelValues("write").Inc()
		g.logger.Warn().Err(err).Msg("Failed to record session activity")
		return false
	}
	g.lastRecorded = now
	return true
}

// ConsumeLogoutReason returns the pending logout reason and removes it.
func (g *Guard) ConsumeLogoutReason(ctx context.Context) (LogoutReason, bool) {
	value, err := g.ephemeral.Get(ctx, KeyLogoutReason)
	if err != nil {
		return "", false
	}
	if err := g.ephemeral.Delete(ctx, KeyLogoutReason); err != nil {
		g.logger.Warn().Err(err).Msg("Failed to remove logout reason")
	}
	return ParseLogoutReason(value)
}

func (g *Guard) setReason(ctx context.Context, reason LogoutReason) {
	if err := g.ephemeral.Set(ctx, KeyLogoutReason, string(reason)); err != nil {
		g.logger.Warn().Err(err).Str("reason", string(reason)).Msg("Failed to record logout reason")
	}
}

func (g *Guard) readTime(ctx context.Context, key string) (time.Time, error) {
	value, err := g.local.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			metrics.SessionStorageErrors.WithLabelValues("read").Inc()
		}
		return time.Time{}, err
	}
	return parseMillis(value)
}

func formatMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseMillis(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}
