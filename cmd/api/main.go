// Package main provides the entrypoint for the TMB transit gateway.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/tmbmaps/tmbmaps/internal/api"
	"github.com/tmbmaps/tmbmaps/internal/api/middleware"
	"github.com/tmbmaps/tmbmaps/internal/config"
	"github.com/tmbmaps/tmbmaps/internal/logging"
	"github.com/tmbmaps/tmbmaps/internal/provider/resilience"
	"github.com/tmbmaps/tmbmaps/internal/telemetry"
	"github.com/tmbmaps/tmbmaps/internal/transit/tmb"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "tmb-gateway"

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		stderrLog := zerolog.New(os.Stderr)
		stderrLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log, logCloser, err := logging.New(logging.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		File:    cfg.LogFile,
		Service: serviceName,
		Version: Version,
	})
	if err != nil {
		stderrLog := zerolog.New(os.Stderr)
		stderrLog.Fatal().Err(err).Msg("failed to initialize logging")
	}
	defer logCloser.Close()

	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("gateway stopped with error")
		os.Exit(1) //nolint:gocritic // intentional exit, log file flush is best-effort
	}
}

func run(cfg config.Config, log zerolog.Logger) error {
	log.Info().
		Str("build_time", BuildTime).
		Str("environment", cfg.Environment).
		Msg("starting TMB gateway")

	if err := cfg.Validate(); err != nil {
		// Without credentials every upstream call fails and the gateway
		// serves 502s; start anyway so ops endpoints stay reachable.
		log.Warn().Err(err).Msg("TMB configuration incomplete")
	}

	ctx := context.Background()
	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTelEnabled,
		SampleRatio:    cfg.OTelSampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.OTelEnabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Float64("sample_ratio", cfg.OTelSampleRatio).
			Msg("OpenTelemetry initialized")
	}

	httpMetrics, err := middleware.NewMetrics(tp.Meter)
	if err != nil {
		return err
	}
	providerMetrics, err := telemetry.NewProviderMetrics(tp.Meter)
	if err != nil {
		return err
	}

	registry := resilience.NewRegistry()

	transportCfg := resilience.DefaultClientConfig(tmb.ProviderName)
	transportCfg.Timeout = cfg.TMBTimeout
	transportCfg.MaxRetries = cfg.TMBMaxRetries
	transportCfg.CircuitBreaker.OnStateChange = resilience.LogStateChanges(log)
	transportCfg.Registry = registry
	transportCfg.Logger = log

	client := tmb.NewClient(tmb.ClientConfig{
		AppID:      cfg.TMBAppID,
		AppKey:     cfg.TMBAppKey,
		BaseURL:    cfg.TMBBaseURL,
		HTTPClient: resilience.NewClient(transportCfg),
		Logger:     log,
		Metrics:    providerMetrics,
		Registry:   registry,
	})

	log.Info().
		Str("base_url", cfg.TMBBaseURL).
		Dur("timeout", cfg.TMBTimeout).
		Uint64("max_retries", cfg.TMBMaxRetries).
		Msg("TMB client initialized")

	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		Metrics:     httpMetrics,
		Transit:     client,
		Registry:    registry,
		CORSOrigins: cfg.CORSAllowedOrigins,
		RequireTLS:  cfg.RequireTLS,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Upstream timeout plus headroom for encoding the full stop list
		WriteTimeout: cfg.TMBTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return err
	case <-quit:
	}

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info().Msg("server stopped")
	return nil
}
