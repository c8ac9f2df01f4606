// Package main provides the entrypoint for the admin dashboard server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/classroomapp/adminconsole/internal/api"
	"github.com/classroomapp/adminconsole/internal/api/middleware"
	"github.com/classroomapp/adminconsole/internal/app"
	"github.com/classroomapp/adminconsole/internal/config"
	"github.com/classroomapp/adminconsole/internal/dashboard"
	"github.com/classroomapp/adminconsole/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "admin-dashboard"
	opts := app.Options{ServiceName: serviceName, Version: Version}

	cfg, err := config.Load("")
	if err == nil {
		err = cfg.Validate()
	}
	if err == nil {
		err = cfg.ValidateCredentials()
	}
	// Setup structured logging
	log := app.NewLogger(os.Stdout, cfg, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	log.Info().
		Str("build_time", BuildTime).
		Str("backend", cfg.Backend.BaseURL).
		Msg("starting admin dashboard")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := app.BuildContainer(ctx, cfg, log, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize services")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := container.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	poller, err := container.NewPoller()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize poller")
		os.Exit(1)
	}
	task := poller.Start(ctx)
	defer task.Stop()

	gatherer := prometheus.NewRegistry()
	gatherer.MustRegister(
		dashboard.NewCollector(poller.Store()),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Optional trigger listener
	if cfg.PubSub.Enabled() {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSub.ProjectID,
			SubscriptionName: cfg.PubSub.Subscription,
			Jobs:             poller,
			Logger:           log,
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to create pubsub handler")
			os.Exit(1)
		}
		defer handler.Close() //nolint:errcheck // best effort on exit

		go func() {
			if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	}

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     metrics,
		Dashboard:   poller,
		Registry:    container.Registry,
		Location:    container.Location,
		Gatherer:    gatherer,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Dur("poll_interval", poller.Interval()).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
