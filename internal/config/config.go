package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Upload pipeline variants. The active variant is a configuration choice,
// never a runtime race: two historical submission paths (cloud-first and
// local-fallback) coexist and are selected here.
const (
	UploadModeCloud = "cloud"
	UploadModeS3    = "s3"
	UploadModeLocal = "local"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	MongoURI        string
	MongoDB         string
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Local report cache (single-owner scoped, legacy submission path).
	LocalCachePath string
	CacheOwnerID   string

	// Upload pipeline selection.
	UploadMode    string
	UploadTimeout time.Duration

	// Cloud (asset host) variant.
	UploadURL    string
	UploadPreset string

	// S3 variant.
	S3Bucket        string
	S3Endpoint      string
	S3Region        string
	S3AccessKey     string
	S3SecretKey     string
	S3PublicBaseURL string

	// Local-fallback variant.
	LocalAssetDir string

	// Geocoding collaborator (feature-flagged via GEOCODER_TOKEN).
	GeocoderToken     string
	GeocoderEnabled   bool
	GeocoderTimeout   time.Duration
	GeocoderCacheSize int
	GeocodeRedisAddr  string
	GeocodeCacheTTL   time.Duration

	// Location-fix feed.
	KafkaBrokers    []string
	KafkaFixTopic   string
	KafkaGroupID    string
	RefreshInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is loaded first when
// present.
func Load() (*Config, error) {
	// Best-effort: a missing .env is the normal case in production.
	_ = godotenv.Load()

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	uploadTimeout, err := parseDuration("UPLOAD_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	geocoderTimeout, err := parseDuration("GEOCODER_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	geocodeCacheTTL, err := parseDuration("GEOCODE_CACHE_TTL", "24h")
	if err != nil {
		return nil, err
	}
	refreshInterval, err := parseDuration("REFRESH_INTERVAL", "30s")
	if err != nil {
		return nil, err
	}

	geocoderToken := os.Getenv("GEOCODER_TOKEN")
	geocoderEnabled := geocoderToken != ""
	if v := os.Getenv("GEOCODER_ENABLED"); v != "" {
		geocoderEnabled = v == "true"
	}

	cfg := &Config{
		MongoURI:        envOrDefault("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:         envOrDefault("MONGO_DB", "roadmedic"),
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		LocalCachePath: envOrDefault("LOCAL_CACHE_PATH", "reportsync.db"),
		CacheOwnerID:   os.Getenv("CACHE_OWNER_ID"),

		UploadMode:    strings.ToLower(envOrDefault("UPLOAD_MODE", UploadModeCloud)),
		UploadTimeout: uploadTimeout,
		UploadURL:     os.Getenv("UPLOAD_URL"),
		UploadPreset:  envOrDefault("UPLOAD_PRESET", "pothole_upload"),

		S3Bucket:        os.Getenv("S3_BUCKET"),
		S3Endpoint:      os.Getenv("S3_ENDPOINT"),
		S3Region:        os.Getenv("S3_REGION"),
		S3AccessKey:     os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:     os.Getenv("S3_SECRET_KEY"),
		S3PublicBaseURL: os.Getenv("S3_PUBLIC_BASE_URL"),

		LocalAssetDir: envOrDefault("LOCAL_ASSET_DIR", "assets"),

		GeocoderToken:     geocoderToken,
		GeocoderEnabled:   geocoderEnabled,
		GeocoderTimeout:   geocoderTimeout,
		GeocoderCacheSize: parseGeocoderCacheSize(),
		GeocodeRedisAddr:  os.Getenv("GEOCODE_REDIS_ADDR"),
		GeocodeCacheTTL:   geocodeCacheTTL,

		KafkaBrokers:    parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaFixTopic:   envOrDefault("KAFKA_FIX_TOPIC", "location-fixes"),
		KafkaGroupID:    envOrDefault("KAFKA_GROUP_ID", "reportsync"),
		RefreshInterval: refreshInterval,
	}

	if cfg.MongoURI == "" {
		return nil, errors.New("MONGO_URI is required")
	}
	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.GeocoderEnabled && cfg.GeocoderToken == "" {
		return nil, errors.New("GEOCODER_ENABLED is true but GEOCODER_TOKEN is not set")
	}

	switch cfg.UploadMode {
	case UploadModeCloud:
		if cfg.UploadURL == "" {
			return nil, errors.New("UPLOAD_MODE=cloud requires UPLOAD_URL")
		}
	case UploadModeS3:
		if cfg.S3Bucket == "" || cfg.S3Region == "" {
			return nil, errors.New("UPLOAD_MODE=s3 requires S3_BUCKET and S3_REGION")
		}
	case UploadModeLocal:
		if cfg.LocalAssetDir == "" {
			return nil, errors.New("UPLOAD_MODE=local requires LOCAL_ASSET_DIR")
		}
	default:
		return nil, fmt.Errorf("invalid UPLOAD_MODE %q (want cloud, s3, or local)", cfg.UploadMode)
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	raw := envOrDefault(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return d, nil
}

func parseBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func parseGeocoderCacheSize() int {
	if s := os.Getenv("GEOCODER_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
