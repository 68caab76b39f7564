package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/sniper/service/config"
	"github.com/brojonat/sniper/service/metrics"
	natspkg "github.com/brojonat/sniper/service/nats"
	"github.com/brojonat/sniper/service/pipeline"
	"github.com/brojonat/sniper/service/server"
	"github.com/brojonat/sniper/service/solana"
	"github.com/brojonat/sniper/service/wallet"
	"github.com/gagliardetto/solana-go/rpc"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"log_level", cfg.LogLevel,
		"config", cfg.String(),
	)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load the signing credential once; it is never reloaded
	cred := wallet.MustLoad(cfg.Credential())
	logger.Info("loaded credential", "credential", cred)

	m := metrics.NewMetrics(nil)

	// Initialize Solana RPC client and execution engine
	// Note: For premium RPC endpoints, include API key in the URL
	solanaRPC := solana.NewRPCClient(cred.Endpoint())
	solanaClient := solana.NewClient(solanaRPC, cred.EndpointHost(), m, logger)
	engine := solana.NewEngine(solanaClient, solana.EngineConfig{
		Commitment:    rpc.CommitmentType(cfg.Commitment),
		SkipPreflight: cfg.SkipPreflight,
	}, m, logger)
	logger.Info("initialized solana RPC client", "endpoint", cred.EndpointHost(), "commitment", cfg.Commitment)

	p := pipeline.New(engine, cred, cfg.Priority)

	// Result events go to JetStream when NATS is enabled
	var publisher pipeline.ResultPublisher
	var subscriber *natspkg.Subscriber
	if cfg.NATSEnabled {
		jsPublisher, err := natspkg.NewPublisher(cfg.NATSURL, m, logger)
		if err != nil {
			logger.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer jsPublisher.Close()
		publisher = jsPublisher

		decoder, err := natspkg.NewTextDecoder(cfg.EventTextJQ)
		if err != nil {
			logger.Error("invalid event text expression", "error", err)
			os.Exit(1)
		}
		subscriber, err = natspkg.NewSubscriber(natspkg.SubscriberConfig{
			URL:          cfg.NATSURL,
			Subject:      cfg.EventSubject,
			ConsumerName: cfg.ConsumerName,
		}, decoder, m, logger)
		if err != nil {
			logger.Error("failed to create post subscriber", "error", err)
			os.Exit(1)
		}
		defer subscriber.Close()
		logger.Info("connected to NATS", "url", cfg.NATSURL, "subject", cfg.EventSubject)
	}

	dispatcher := pipeline.NewDispatcher(p, publisher, cfg.SubmitTimeout, m, logger)

	// The write timeout must outlast one full pipeline run
	httpServer := server.New(server.Config{
		Addr:           cfg.ServerAddr,
		WriteTimeout:   cfg.SubmitTimeout + 15*time.Second,
		APIToken:       cfg.APIToken,
		AllowedOrigins: cfg.AllowedOrigins,
	}, dispatcher, solanaClient, m, logger)

	logger.Info("server initialized, all dependencies ready",
		"from", cred.PublicKey().String(),
		"nats_enabled", cfg.NATSEnabled,
	)

	// Start HTTP server and post consumer in background
	serverErrors := make(chan error, 2)
	go func() {
		serverErrors <- httpServer.Start()
	}()
	if subscriber != nil {
		go func() {
			if err := subscriber.Run(ctx, dispatcher.HandlePost); err != nil && !errors.Is(err, context.Canceled) {
				serverErrors <- err
			}
		}()
	}

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Stop consuming posts before draining HTTP requests
		cancel()

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
