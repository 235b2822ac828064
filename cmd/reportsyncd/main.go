package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	httpadapter "github.com/roadmedic/reportsync/internal/adapter/http"
	"github.com/roadmedic/reportsync/internal/adapter/imagehost"
	kafkaadapter "github.com/roadmedic/reportsync/internal/adapter/kafka"
	"github.com/roadmedic/reportsync/internal/adapter/localasset"
	"github.com/roadmedic/reportsync/internal/adapter/mapbox"
	mongoadapter "github.com/roadmedic/reportsync/internal/adapter/mongo"
	s3adapter "github.com/roadmedic/reportsync/internal/adapter/s3"
	"github.com/roadmedic/reportsync/internal/adapter/sqlite"
	"github.com/roadmedic/reportsync/internal/config"
	"github.com/roadmedic/reportsync/internal/domain"
	"github.com/roadmedic/reportsync/internal/observability"
	"github.com/roadmedic/reportsync/internal/proximity"
	syncengine "github.com/roadmedic/reportsync/internal/sync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Authoritative store.
	client, err := mongoadapter.Connect(ctx, cfg.MongoURI, logger)
	if err != nil {
		logger.Error("document store connection failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.Error("document store disconnect error", "error", err)
		}
	}()

	repo := mongoadapter.NewRepository(client, cfg.MongoDB, logger)
	if err := repo.EnsureIndexes(ctx); err != nil {
		logger.Warn("index creation failed, continuing", "error", err)
	}

	// Local cache mirror, best effort: a broken cache file must not keep
	// the service down.
	var store syncengine.Store
	cache, err := sqlite.Open(cfg.LocalCachePath, logger)
	if err != nil {
		logger.Warn("local cache unavailable, mirroring disabled", "error", err)
	} else {
		store = cache
		defer cache.Close()
	}

	uploader, err := buildUploader(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Error("upload pipeline init failed", "error", err)
		os.Exit(1)
	}

	geocoder := buildGeocoder(cfg, logger, metrics)

	engine := syncengine.New(repo, store, uploader, geocoder, logger, metrics)

	fixReader := kafkaadapter.NewFixReader(cfg, logger)
	defer fixReader.Close()

	tracker := proximity.NewTracker(fixReader, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.MultiChecker{
		{Name: "store", Checker: repo},
		{Name: "tracker", Checker: tracker},
	}, logger)

	metrics.EngineRunning.Set(1)
	defer metrics.EngineRunning.Set(0)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := tracker.Run(ctx); err != nil {
			logger.Error("tracker error", "error", err)
		}
	}()

	go refreshReports(ctx, engine, tracker, cfg.RefreshInterval, logger)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

// refreshReports keeps the proximity tracker's report set in sync with the
// remote store on a fixed interval. The first load happens immediately.
func refreshReports(ctx context.Context, engine *syncengine.Engine, tracker *proximity.Tracker, interval time.Duration, logger *slog.Logger) {
	load := func() {
		reports, err := engine.LoadAllReports(ctx)
		if err != nil {
			logger.Warn("report refresh failed", "error", err)
			return
		}
		tracker.SetReports(reports)
	}

	load()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			load()
		}
	}
}

// buildUploader selects the configured upload pipeline variant.
func buildUploader(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (syncengine.Uploader, error) {
	switch cfg.UploadMode {
	case config.UploadModeS3:
		logger.Info("upload pipeline: s3", "bucket", cfg.S3Bucket, "region", cfg.S3Region)
		return s3adapter.NewUploader(ctx, s3adapter.Config{
			Bucket:        cfg.S3Bucket,
			Endpoint:      cfg.S3Endpoint,
			Region:        cfg.S3Region,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			PublicBaseURL: cfg.S3PublicBaseURL,
		}, logger, metrics)
	case config.UploadModeLocal:
		logger.Info("upload pipeline: local", "dir", cfg.LocalAssetDir)
		return localasset.NewWriter(cfg.LocalAssetDir, logger, metrics)
	default:
		logger.Info("upload pipeline: cloud", "url", cfg.UploadURL)
		return imagehost.NewClient(cfg.UploadURL, cfg.UploadPreset, cfg.UploadTimeout, logger, metrics), nil
	}
}

// buildGeocoder assembles the geocoding stack: Mapbox client, in-process
// LRU, and optionally a shared Redis cache layered in between. Returns nil
// when geocoding is disabled; free-text resolution then fails soft and
// address annotation is skipped.
func buildGeocoder(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) domain.Geocoder {
	if !cfg.GeocoderEnabled {
		logger.Info("geocoding disabled")
		return nil
	}

	var geocoder domain.Geocoder = mapbox.NewClient(cfg.GeocoderToken, cfg.GeocoderTimeout, logger, metrics)

	if cfg.GeocodeRedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.GeocodeRedisAddr})
		geocoder = mapbox.NewSharedCachedGeocoder(geocoder, mapbox.NewRedisKV(rdb), cfg.GeocodeCacheTTL, logger, metrics)
		logger.Info("shared geocode cache enabled", "addr", cfg.GeocodeRedisAddr, "ttl", cfg.GeocodeCacheTTL)
	}

	geocoder = mapbox.NewCachedGeocoder(geocoder, cfg.GeocoderCacheSize, metrics)
	logger.Info("geocoding enabled", "cache_size", cfg.GeocoderCacheSize, "timeout", cfg.GeocoderTimeout)
	return geocoder
}
