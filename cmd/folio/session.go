package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/folio/internal/clock"
	"github.com/goodtune/folio/internal/config"
	"github.com/goodtune/folio/internal/session"
	"github.com/goodtune/folio/internal/storage"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect or act on the admin session",
	Long: `Inspect or act on the admin session record. With bolt storage the
server holds the database lock, so stop it first; redis storage can be
inspected while the server runs.`,
}

var sessionInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the session countdown",
	Args:  cobra.NoArgs,
	RunE:  runSessionInfo,
}

var sessionCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one validation pass, signing the admin out if expired",
	Long: `Run one validation pass, signing the admin out if expired.

The logout reason of a forced sign-out is printed here. It lives only in
this command's memory, so the login page served by a running folio
process does not see it.`,
	Args: cobra.NoArgs,
	RunE:  runSessionCheck,
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the session record",
	Long:  `Delete the session record. A signed-in admin gets a fresh session on the next check.`,
	Args:  cobra.NoArgs,
	RunE:  runSessionClear,
}

func init() {
	sessionCmd.AddCommand(sessionInfoCmd)
	sessionCmd.AddCommand(sessionCheckCmd)
	sessionCmd.AddCommand(sessionClearCmd)
	rootCmd.AddCommand(sessionCmd)
}

// withGuard opens storage and builds a guard for a one-shot command.
func withGuard(fn func(ctx context.Context, guard *session.Guard) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Create a quiet logger for CLI mode
	logger := zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func(store storage.Store) { _ = store.Close() }(store)

	_, guard, err := newServices(cfg, store, clock.Real{}, logger)
	if err != nil {
		return err
	}

	return fn(context.Background(), guard)
}

func runSessionInfo(cmd *cobra.Command, args []string) error {
	return withGuard(func(ctx context.Context, guard *session.Guard) error {
		printSessionInfo(os.Stdout, guard.SessionInfo(ctx))
		return nil
	})
}

func runSessionCheck(cmd *cobra.Command, args []string) error {
	return withGuard(func(ctx context.Context, guard *session.Guard) error {
		outcome := checkSession(ctx, guard, os.Stdout)
		if outcome == session.OutcomeError {
			return fmt.Errorf("session check failed")
		}
		return nil
	})
}

// checkSession runs one pass and reports it on w. A logout reason left by
// the pass is consumed and printed, since no login page will collect it.
func checkSession(ctx context.Context, guard *session.Guard, w io.Writer) session.Outcome {
	outcome := guard.CheckSession(ctx)

	c := color.New(color.FgGreen, color.Bold)
	switch outcome {
	case session.OutcomeExpired, session.OutcomeInactive:
		c = color.New(color.FgRed, color.Bold)
	case session.OutcomeError:
		c = color.New(color.FgYellow, color.Bold)
	}
	_, _ = c.Fprintf(w, "Outcome: %s\n", outcome)

	if reason, ok := guard.ConsumeLogoutReason(ctx); ok {
		_, _ = fmt.Fprintf(w, "Logout reason: %s (%s)\n", reason, reason.Message())
	}

	if outcome == session.OutcomeActive || outcome == session.OutcomeInitialized {
		printSessionInfo(w, guard.SessionInfo(ctx))
	}
	return outcome
}

func runSessionClear(cmd *cobra.Command, args []string) error {
	return withGuard(func(ctx context.Context, guard *session.Guard) error {
		if err := guard.ClearSession(ctx); err != nil {
			return fmt.Errorf("failed to clear session: %w", err)
		}
		fmt.Println("✅ Session record cleared")
		return nil
	})
}

func printSessionInfo(w io.Writer, info *session.Info) {
	if info == nil {
		_, _ = color.New(color.FgYellow).Fprintln(w, "No active session")
		return
	}

	cyan := color.New(color.FgCyan, color.Bold)
	_, _ = cyan.Fprintln(w, "Admin session")
	fmt.Fprintf(w, "  Started:       %s\n", info.StartedAt.Format(time.RFC3339))
	if !info.LastActivity.IsZero() {
		fmt.Fprintf(w, "  Last activity: %s\n", info.LastActivity.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "  Deadline:      %s\n", info.Deadline.Format(time.RFC3339))
	fmt.Fprintf(w, "  Elapsed:       %s\n", info.Elapsed.Truncate(time.Second))

	if info.Expired {
		_, _ = color.New(color.FgRed, color.Bold).Fprintln(w, "  Status:        EXPIRED")
		return
	}
	_, _ = color.New(color.FgGreen).Fprintf(w, "  Remaining:     %s\n", info.Remaining.Truncate(time.Second))
}
