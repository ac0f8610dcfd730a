/*
Copyright (C) 2026 Nooku Contributors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/megumew/nooku/internal/config"
	"github.com/megumew/nooku/internal/events"
	"github.com/megumew/nooku/internal/logging"
	"github.com/megumew/nooku/internal/media"
	"github.com/megumew/nooku/internal/notify"
	"github.com/megumew/nooku/internal/playback"
	"github.com/megumew/nooku/internal/rotation"
	"github.com/megumew/nooku/internal/server"
	"github.com/megumew/nooku/internal/telemetry"
	"github.com/megumew/nooku/internal/transcode"
	"github.com/megumew/nooku/internal/weather"
)

var (
	logger zerolog.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "nooku",
	Short: "Nooku - weather-aware background audio rotation",
	Long:  "Nooku rotates looping background audio per room, keyed by the hour of day and live weather conditions.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Nooku server",
	Long:  "Start the rotation engine and the HTTP API for room management",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() error {
	// Optional .env for local development.
	_ = godotenv.Load()

	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = logging.Setup(cfg.Environment)
	return nil
}

func buildSource(ctx context.Context) (media.Source, error) {
	switch cfg.CatalogBackend {
	case config.CatalogFilesystem:
		return media.NewFSSource(cfg.SongsDir, logger), nil
	case config.CatalogS3:
		return media.NewS3Source(ctx, media.S3Config{
			Bucket:       cfg.S3Bucket,
			Prefix:       cfg.S3Prefix,
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			UsePathStyle: cfg.S3UsePathStyle,
		}, logger)
	case config.CatalogManifest:
		return media.NewManifestSource(cfg.ManifestPath, logger), nil
	default:
		return nil, fmt.Errorf("unknown catalog backend %q", cfg.CatalogBackend)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	logger.Info().Msg("Nooku starting")

	tracerProvider, err := telemetry.InitTracer(context.Background(), telemetry.TracerConfig{
		ServiceName:    "nooku",
		ServiceVersion: "0.1.0",
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown tracer provider")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source, err := buildSource(ctx)
	if err != nil {
		return fmt.Errorf("build catalog source: %w", err)
	}
	catalog, err := rotation.BuildCatalog(ctx, source, logger)
	if err != nil {
		return fmt.Errorf("build catalog: %w", err)
	}
	if catalog.Len() == 0 {
		logger.Warn().Msg("catalog is empty, rooms cannot be created until tracks exist")
	}

	announcer, err := notify.NewAnnouncer(cfg.NotifyURLs, logger)
	if err != nil {
		return fmt.Errorf("build announcer: %w", err)
	}

	bus := events.NewBus()
	engine := rotation.NewEngine(rotation.Options{
		Fetcher:  weather.NewClient(weather.DefaultClientConfig(cfg.WeatherBaseURL, cfg.WeatherAPIKey), logger),
		Location: weather.Location{Latitude: cfg.Latitude, Longitude: cfg.Longitude},
		Cooldown: cfg.WeatherCooldown,
		Catalog:  catalog,
		Decoder:  transcode.NewGstDecoder(cfg.GStreamerBin, cfg.DecodeCacheDir, logger),
		Bus:      bus,
		Notifier: announcer,
		Volume:   cfg.DefaultVolume,
		SinkFactory: func(roomID string) playback.Sink {
			return playback.NewGstSink(cfg.GStreamerBin, roomID, bus, logger)
		},
	}, logger)

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		if err := engine.Run(ctx); err != nil && err != context.Canceled {
			logger.Error().Err(err).Msg("rotation engine exited")
		}
	}()

	srv := server.New(cfg, engine, logger)
	httpServer := srv.HTTPServer()
	metricsServer := srv.MetricsServer()

	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()
	go func() {
		logger.Info().Str("addr", metricsServer.Addr).Msg("metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down gracefully...")

	timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer timeoutCancel()

	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := metricsServer.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("metrics shutdown failed")
	}

	// Stops all rooms and their playback processes.
	cancel()
	select {
	case <-engineDone:
	case <-timeoutCtx.Done():
		logger.Warn().Msg("rotation engine did not stop in time")
	}

	logger.Info().Msg("Nooku stopped")
	return nil
}
