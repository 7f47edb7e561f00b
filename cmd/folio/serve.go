package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodtune/folio/internal/admin"
	"github.com/goodtune/folio/internal/auth"
	"github.com/goodtune/folio/internal/clock"
	"github.com/goodtune/folio/internal/config"
	"github.com/goodtune/folio/internal/metrics"
	"github.com/goodtune/folio/internal/session"
	"github.com/goodtune/folio/internal/storage"
	"github.com/goodtune/folio/internal/storage/bolt"
	"github.com/goodtune/folio/internal/storage/memory"
	"github.com/goodtune/folio/internal/storage/redis"
	"github.com/goodtune/folio/internal/systemd"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the folio admin server",
	Long:  `Start the admin API, the session guard and the metrics endpoint.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting folio")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	// Initialize storage
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().Str("type", cfg.Storage.Type).Msg("Storage initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := auth.EnsureInitialUser(ctx, store.AdminUsers(), cfg.Admin.InitialUsername, cfg.Admin.InitialPassword, logger); err != nil {
		return fmt.Errorf("failed to create initial admin user: %w", err)
	}

	authService, guard, err := newServices(cfg, store, clock.Real{}, logger)
	if err != nil {
		return err
	}

	// Guard runs for the lifetime of the admin area
	guard.Start(ctx)

	// Initialize Admin Server
	adminAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.AdminPort)
	adminServer := admin.NewServer(admin.Config{
		ListenAddr:     adminAddr,
		AllowedOrigins: cfg.Admin.AllowedOrigins,
		LoginRateLimit: cfg.Admin.LoginRateLimit,
		LoginBurst:     cfg.Admin.LoginBurst,
		SecureCookies:  cfg.Admin.SecureCookies,
	}, admin.Deps{
		Auth:  authService,
		Guard: guard,
	}, logger)

	if sdListeners.Admin != nil {
		adminServer.SetListener(sdListeners.Admin)
	}

	if err := adminServer.Start(); err != nil {
		guard.Stop()
		return fmt.Errorf("failed to start Admin Server: %w", err)
	}

	// Initialize Metrics Server
	var metricsServer *metrics.Server
	if cfg.Server.MetricsPort > 0 || sdListeners.Metrics != nil {
		metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort)
		metricsServer = metrics.NewServer(metricsAddr, logger)

		if sdListeners.Metrics != nil {
			metricsServer.SetListener(sdListeners.Metrics)
		}

		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start Metrics Server: %w", err)
		}
	}

	logger.Info().Msg("folio startup complete")

	// Notify systemd that we're ready to serve requests
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	} else {
		logger.Debug().Msg("Sent systemd ready notification")
	}

	// Wait for signals (shutdown or immediate check)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	for sig := range sigChan {
		if sig == syscall.SIGHUP {
			outcome := guard.CheckSession(ctx)
			logger.Info().Str("outcome", string(outcome)).Msg("SIGHUP received, session checked")
			continue
		}
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received, gracefully stopping...")
		break
	}

	// Notify systemd that we're stopping
	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	if err := adminServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping Admin Server")
	}

	guard.Stop()

	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping Metrics Server")
		}
	}

	logger.Info().Msg("folio stopped")

	return nil
}

// newServices builds the auth provider and the session guard over store.
func newServices(cfg *config.Config, store storage.Store, clk clock.Clock, logger zerolog.Logger) (*auth.Service, *session.Guard, error) {
	authService, err := auth.NewService(store.AdminUsers(), store.Local(), auth.Config{
		JWTSecret:       cfg.Admin.JWTSecret,
		TokenExpiration: config.Duration(cfg.Admin.TokenExpiration, auth.DefaultTokenExpiration),
	}, clk, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize auth service: %w", err)
	}

	ephemeral := memory.NewEphemeral(cfg.Ephemeral.Capacity, config.Duration(cfg.Ephemeral.TTL, 10*time.Minute))

	guard, err := session.NewGuard(sessionConfig(cfg.Session), authService, store.Local(), ephemeral, clk, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize session guard: %w", err)
	}

	return authService, guard, nil
}

func sessionConfig(cfg config.SessionConfig) session.Config {
	return session.Config{
		AbsoluteTimeout:   config.Duration(cfg.AbsoluteTimeout, session.DefaultAbsoluteTimeout),
		InactivityTimeout: config.Duration(cfg.InactivityTimeout, 0),
		CheckInterval:     config.Duration(cfg.CheckInterval, session.DefaultCheckInterval),
		ActivityThrottle:  config.Duration(cfg.ActivityThrottle, session.DefaultActivityThrottle),
	}
}

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "", "bolt":
		return bolt.Open(cfg.Path)
	case "redis":
		return redis.Open(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).Level(level).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
}
