package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/sniper/service/metrics"
	"github.com/brojonat/sniper/service/pipeline"
	"github.com/brojonat/sniper/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config holds the HTTP settings for the server.
type Config struct {
	Addr string
	// WriteTimeout must cover a full pipeline run; if zero, 15s is used.
	WriteTimeout time.Duration
	// APIToken guards every /api/v1 route as a bearer token.
	APIToken string
	// AllowedOrigins lists the browser origins CORS answers. Empty allows none.
	AllowedOrigins []string
}

// TransactionLookup finds a landed transaction by signature.
type TransactionLookup interface {
	LookupTransaction(ctx context.Context, signature solanago.Signature) (*solana.Transaction, error)
}

// Server represents the HTTP server for the sniper service.
type Server struct {
	cfg        Config
	dispatcher *pipeline.Dispatcher
	lookup     TransactionLookup
	metrics    *metrics.Metrics
	logger     *slog.Logger
	server     *http.Server
}

// New creates a new HTTP server with the given dependencies.
// lookup is optional; without it the transaction status route is not served.
// The metrics is optional - if nil, metrics endpoints won't be available.
func New(cfg Config, dispatcher *pipeline.Dispatcher, lookup TransactionLookup, m *metrics.Metrics, logger *slog.Logger) *Server {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	return &Server{
		cfg:        cfg,
		dispatcher: dispatcher,
		lookup:     lookup,
		metrics:    m,
		logger:     logger,
	}
}

// Handler builds the routes served by the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	auth := requireToken(s.cfg.APIToken, s.logger)

	// Pipeline routes
	mux.Handle("POST /api/v1/events", auth(handleSubmitEvent(s.dispatcher, s.logger)))
	mux.Handle("POST /api/v1/intents/preview", auth(handlePreviewIntent(s.dispatcher.Pipeline(), s.logger)))
	if s.lookup != nil {
		mux.Handle("GET /api/v1/transactions/{signature}", auth(handleGetTransaction(s.lookup, s.logger)))
	}

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return corsMiddleware(s.cfg.AllowedOrigins, metrics.Middleware(s.metrics)(mux))
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.cfg.Addr, "metrics", s.metrics != nil, "cors_origins", len(s.cfg.AllowedOrigins))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
