/*
Copyright (C) 2026 Nooku Contributors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Catalog backend selection.
type CatalogBackend string

const (
	CatalogFilesystem CatalogBackend = "fs"
	CatalogS3         CatalogBackend = "s3"
	CatalogManifest   CatalogBackend = "manifest"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	MetricsBind string

	// Station location used for every weather lookup.
	Latitude  float64
	Longitude float64

	// OpenWeatherMap access
	WeatherAPIKey   string
	WeatherBaseURL  string
	WeatherCooldown time.Duration

	// Catalog source
	CatalogBackend CatalogBackend
	SongsDir       string
	S3Bucket       string
	S3Prefix       string
	S3Region       string
	S3Endpoint     string // For S3-compatible services (MinIO, Spaces, etc.)
	S3UsePathStyle bool   // Required for MinIO
	ManifestPath   string

	// Transcode / playback
	GStreamerBin   string
	DecodeCacheDir string
	DefaultVolume  float64

	// Swap announcements (shoutrrr URLs, comma separated)
	NotifyURLs []string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("NOOKU_ENV", "development"),
		HTTPBind:    getEnv("NOOKU_HTTP_BIND", "0.0.0.0"),
		HTTPPort:    getEnvInt("NOOKU_HTTP_PORT", 8080),
		MetricsBind: getEnv("NOOKU_METRICS_BIND", "127.0.0.1:9000"),

		Latitude:  getEnvFloat("NOOKU_LATITUDE", 34.221924),
		Longitude: getEnvFloat("NOOKU_LONGITUDE", -79.814693),

		WeatherAPIKey:   getEnv("NOOKU_WEATHER_API_KEY", ""),
		WeatherBaseURL:  getEnv("NOOKU_WEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5"),
		WeatherCooldown: time.Duration(getEnvInt("NOOKU_WEATHER_COOLDOWN_MINUTES", 10)) * time.Minute,

		CatalogBackend: CatalogBackend(getEnv("NOOKU_CATALOG_BACKEND", string(CatalogFilesystem))),
		SongsDir:       getEnv("NOOKU_SONGS_DIR", "./songs"),
		S3Bucket:       getEnv("NOOKU_S3_BUCKET", ""),
		S3Prefix:       getEnv("NOOKU_S3_PREFIX", "songs/"),
		S3Region:       getEnvAny([]string{"NOOKU_S3_REGION", "AWS_REGION"}, "us-east-1"),
		S3Endpoint:     getEnvAny([]string{"NOOKU_S3_ENDPOINT", "S3_ENDPOINT"}, ""),
		S3UsePathStyle: getEnvBool("NOOKU_S3_USE_PATH_STYLE", false),
		ManifestPath:   getEnv("NOOKU_MANIFEST_PATH", ""),

		GStreamerBin:   getEnv("NOOKU_GSTREAMER_BIN", "gst-launch-1.0"),
		DecodeCacheDir: getEnv("NOOKU_DECODE_CACHE_DIR", os.TempDir()),
		DefaultVolume:  getEnvFloat("NOOKU_DEFAULT_VOLUME", 1.0),

		NotifyURLs: splitList(getEnv("NOOKU_NOTIFY_URLS", "")),

		TracingEnabled:    getEnvBool("NOOKU_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("NOOKU_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("NOOKU_TRACING_SAMPLE_RATE", 1.0),
	}

	switch cfg.CatalogBackend {
	case CatalogFilesystem, CatalogS3, CatalogManifest:
	default:
		return nil, fmt.Errorf("unsupported catalog backend %q", cfg.CatalogBackend)
	}

	if cfg.CatalogBackend == CatalogS3 && cfg.S3Bucket == "" {
		return nil, fmt.Errorf("NOOKU_S3_BUCKET must be provided for the s3 catalog backend")
	}

	if cfg.CatalogBackend == CatalogManifest && cfg.ManifestPath == "" {
		return nil, fmt.Errorf("NOOKU_MANIFEST_PATH must be provided for the manifest catalog backend")
	}

	if cfg.WeatherAPIKey == "" {
		return nil, fmt.Errorf("NOOKU_WEATHER_API_KEY must be provided")
	}

	if cfg.Latitude < -90 || cfg.Latitude > 90 {
		return nil, fmt.Errorf("NOOKU_LATITUDE %v out of range", cfg.Latitude)
	}
	if cfg.Longitude < -180 || cfg.Longitude > 180 {
		return nil, fmt.Errorf("NOOKU_LONGITUDE %v out of range", cfg.Longitude)
	}

	if cfg.WeatherCooldown <= 0 {
		return nil, fmt.Errorf("NOOKU_WEATHER_COOLDOWN_MINUTES must be positive")
	}

	return cfg, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "true" || v == "1" || v == "yes" {
			return true
		}
		if v == "false" || v == "0" || v == "no" {
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}
