package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/quake-map-etl/internal/adapter/feed"
	httpadapter "github.com/couchcryptid/quake-map-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/quake-map-etl/internal/adapter/kafka"
	"github.com/couchcryptid/quake-map-etl/internal/adapter/mapbox"
	"github.com/couchcryptid/quake-map-etl/internal/adapter/memory"
	redisadapter "github.com/couchcryptid/quake-map-etl/internal/adapter/redis"
	"github.com/couchcryptid/quake-map-etl/internal/config"
	"github.com/couchcryptid/quake-map-etl/internal/domain"
	"github.com/couchcryptid/quake-map-etl/internal/observability"
	"github.com/couchcryptid/quake-map-etl/internal/pipeline"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger, metrics)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	sources := []pipeline.Source{feed.NewJMAClient(cfg.JMAFeedURL, cfg.FetchTimeout, logger)}
	if cfg.USGSEnabled {
		sources = append(sources, feed.NewUSGSClient(cfg.USGSFeedURL, cfg.FetchTimeout, logger))
	}

	store := memory.NewStore()
	loaders := []pipeline.SnapshotLoader{store}

	var redisStore *redisadapter.Store
	if cfg.RedisEnabled() {
		redisStore, err = redisadapter.NewStore(ctx, cfg, logger)
		if err != nil {
			logger.Warn("redis unavailable, snapshots will not persist", "error", err)
		} else {
			loaders = append(loaders, redisStore)
		}
	}

	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		loaders = append(loaders, writer)
		logger.Info("kafka sink enabled", "topic", cfg.KafkaSinkTopic, "brokers", cfg.KafkaBrokers)
	}

	transformer := pipeline.NewTransformer(geocoder, logger)
	p := pipeline.New(sources, transformer, loaders, clockwork.NewRealClock(), cfg.PollInterval, logger, metrics)

	if redisStore != nil {
		if err := p.Seed(ctx, redisStore, store); err != nil {
			logger.Info("no persisted snapshot to seed from", "error", err)
		}
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, store, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start poller.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if redisStore != nil {
		if err := redisStore.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
