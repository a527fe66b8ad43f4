package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/i474232898/weather-observatory/internal/api/http"
	"github.com/i474232898/weather-observatory/internal/analytics"
	"github.com/i474232898/weather-observatory/internal/config"
	"github.com/i474232898/weather-observatory/internal/geocode"
	"github.com/i474232898/weather-observatory/internal/scheduler"
	"github.com/i474232898/weather-observatory/internal/store"
	"github.com/i474232898/weather-observatory/internal/weather"
	"github.com/i474232898/weather-observatory/internal/weather/providers"
)

const appName = "weather-observatory"

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	backoff := providers.DefaultBackoff
	backoff.MaxRetries = cfg.ProviderMaxRetries

	obsStore, err := store.Open(cfg.StoreDriver, cfg.StoreDSN, logger)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := obsStore.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	var backend geocode.Geocoder = providers.NewOpenMeteoGeocoder(httpClient, cfg.GeocoderBaseURL, backoff, logger)
	if cfg.GoogleGeocoderAPIKey != "" {
		backend = providers.NewGoogleGeocoder(cfg.GoogleGeocoderAPIKey, cfg.HTTPTimeout)
	}
	resolver := geocode.NewResolver(backend, logger)

	// Providers in priority order: the first usable result is the primary.
	provs := []weather.Provider{
		providers.NewFMIProvider(httpClient, cfg.FMIBaseURL, cfg.FMIWindow, backoff, logger),
		providers.NewYrProvider(httpClient, cfg.YrBaseURL, cfg.YrUserAgent, backoff, logger),
	}
	if cfg.ForecaEnabled() {
		provs = append(provs, providers.NewForecaProvider(
			httpClient, cfg.ForecaBaseURL, cfg.ForecaUser, cfg.ForecaPassword, cfg.ForecaLocationID, backoff, logger,
		))
	} else {
		logger.Info("Foreca credentials not set; provider disabled")
	}

	// Core service orchestrating providers and store.
	service := weather.NewService(obsStore, resolver, provs, logger)
	engine := analytics.NewEngine(obsStore)

	// Scheduler that periodically collects the tracked places.
	sched := scheduler.New(cfg.Places, cfg.FetchInterval, service, logger)
	if err := sched.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	app := httpapi.NewApp(httpapi.AppOptions{
		Name:        appName,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
		AccessLog:   true,
	})
	httpapi.RegisterRoutes(app, service, engine)

	// Frontend, if one was built next to the binary.
	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	go func() {
		logger.Info("listening", "port", cfg.Port, "providers", len(provs), "store", cfg.StoreDriver)
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("fiber server stopped", "error", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", "error", err)
	}
}
