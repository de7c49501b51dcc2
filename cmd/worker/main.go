// Package main provides the entrypoint for the TMB probe worker.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/tmbmaps/tmbmaps/internal/api/handler"
	"github.com/tmbmaps/tmbmaps/internal/api/middleware"
	"github.com/tmbmaps/tmbmaps/internal/api/response"
	"github.com/tmbmaps/tmbmaps/internal/config"
	"github.com/tmbmaps/tmbmaps/internal/logging"
	"github.com/tmbmaps/tmbmaps/internal/provider/resilience"
	"github.com/tmbmaps/tmbmaps/internal/telemetry"
	"github.com/tmbmaps/tmbmaps/internal/transit/tmb"
	"github.com/tmbmaps/tmbmaps/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "tmb-worker"

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
		log.Error().Err(err).Msg("worker stopped with error")
		os.Exit(1) //nolint:gocritic // intentional exit, log file flush is best-effort
	}
}

func run(cfg config.Config, log zerolog.Logger) error {
	log.Info().
		Str("build_time", BuildTime).
		Str("environment", cfg.Environment).
		Msg("starting TMB worker")

	if err := cfg.Validate(); err != nil {
		log.Warn().Err(err).Msg("TMB configuration incomplete")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

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

	probeCfg := worker.DefaultProbeConfig()
	probeCfg.Timeout = cfg.TMBTimeout
	probeJob := worker.NewProbeJob(worker.ProbeJobConfig{
		Config:  probeCfg,
		Logger:  log,
		Transit: client,
	})

	interval := cfg.ProbeInterval
	if interval <= 0 {
		log.Warn().Dur("probe_interval", interval).Msg("invalid probe interval, using 1m")
		interval = time.Minute
	}

	go probeJob.RunEvery(ctx, interval)
	log.Info().Dur("interval", interval).Msg("probe loop started")

	if cfg.PubSubEnabled() {
		pubsubHandler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSubProjectID,
			SubscriptionName: cfg.PubSubSubscription,
			ProbeJob:         probeJob,
			Logger:           log,
		})
		if err != nil {
			return err
		}
		defer pubsubHandler.Close()

		go func() {
			if err := pubsubHandler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newHealthRouter(log, registry, probeJob),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")

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

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info().Msg("worker stopped")
	return nil
}

// newHealthRouter serves the ops endpoints Cloud Run polls, plus probe
// statistics.
func newHealthRouter(log zerolog.Logger, registry *resilience.Registry, job *worker.ProbeJob) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(middleware.NoStore)

	ops := handler.NewOpsHandler(Version, BuildTime, registry)
	r.Route("/v1/ops", func(r chi.Router) {
		r.Get("/health", ops.HealthCheck)
		r.Get("/ready", ops.ReadinessCheck)
		r.Get("/status", ops.SystemStatus)
		r.Get("/probes", func(w http.ResponseWriter, r *http.Request) {
			response.JSON(w, r, http.StatusOK, job.MetricsSnapshot())
		})
	})

	return r
}
