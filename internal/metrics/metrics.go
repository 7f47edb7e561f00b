package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Session guard metrics
	SessionChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_session_checks_total",
			Help: "Session validation passes by outcome",
		},
		[]string{"outcome"},
	)

	ForcedLogoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_forced_logouts_total",
			Help: "Sign-outs initiated by the session guard",
		},
		[]string{"reason"},
	)

	SignOutFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "folio_signout_failures_total",
			Help: "Sign-out calls that returned an error",
		},
	)

	SessionStorageErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_session_storage_errors_total",
			Help: "Session record storage failures",
		},
		[]string{"op"},
	)

	SessionRemainingSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "folio_session_remaining_seconds",
			Help: "Seconds until the current admin session reaches its absolute timeout",
		},
	)

	// Admin metrics
	LoginAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_admin_login_attempts_total",
			Help: "Admin login attempts by result",
		},
		[]string{"result"},
	)

	AdminRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "folio_admin_request_duration_seconds",
			Help:    "Admin API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "status"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		SessionChecksTotal,
		ForcedLogoutsTotal,
		SignOutFailures,
		SessionStorageErrors,
		SessionRemainingSeconds,
		LoginAttemptsTotal,
		AdminRequestDuration,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
