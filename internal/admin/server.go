// Package admin serves the dashboard's JSON API: login and logout, the
// signed-in user, and the session countdown.
package admin

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Server represents the admin HTTP server.
type Server struct {
	config   Config
	router   *gin.Engine
	server   *http.Server
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
	logger   zerolog.Logger
}

// NewServer creates a new admin server.
func NewServer(cfg Config, deps Deps, logger zerolog.Logger) *Server {
	if logger.GetLevel() == zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	logger = logger.With().Str("component", "admin").Logger()
	deps.Logger = logger

	// No default middleware; requests are logged as JSON by LoggingMiddleware.
	router := gin.New()
	router.Use(gin.Recovery())

	SetupRoutes(router, cfg, deps)

	s := &Server{
		config: cfg,
		router: router,
		logger: logger,
	}

	s.server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the admin server.
func (s *Server) Start() error {
	ln := s.listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", s.config.ListenAddr)
		if err != nil {
			return err
		}
	} else {
		s.logger.Debug().Msg("Using systemd socket-activated admin listener")
	}

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Starting admin server")
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Admin server failed")
		}
	}()
	return nil
}

// Stop gracefully stops the admin server.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info().Msg("Stopping admin server")
	return s.server.Shutdown(ctx)
}
