// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション設定を表す。
type Config struct {
	Port           string
	DatabaseDriver string
	DatabaseURL    string
	SiteURL        string
	AuthorName     string
	LogLevel       string
	MigrationsDir  string

	// 1リクエストあたりの本文上限（バイト）
	MaxBodyBytes int64

	UploadDir         string
	MediaFetchEnabled bool
	MediaMaxBytes     int64
	MediaFetchTimeout time.Duration

	KMSKeyName         string
	GoogleCloudProject string

	OtelEnabled      bool
	OtelEndpoint     string
	OtelInsecure     bool
	OtelServiceName  string
	OtelSamplingRate float64
}

// Load は環境変数から設定を読み込む。
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		DatabaseDriver: strings.ToLower(getEnv("DATABASE_DRIVER", "mysql")),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		SiteURL:        strings.TrimRight(getEnv("SITE_URL", "http://localhost:8080"), "/"),
		AuthorName:     getEnv("AUTHOR_NAME", "Clawd"),
		LogLevel:       strings.ToUpper(getEnv("LOG_LEVEL", "INFO")),
		MigrationsDir:  getEnv("MIGRATIONS_DIR", "./migrations"),

		MaxBodyBytes: getEnvInt64("MAX_BODY_BYTES", 10<<20),

		UploadDir:         getEnv("UPLOAD_DIR", "./uploads"),
		MediaFetchEnabled: getEnvBool("MEDIA_FETCH_ENABLED", false),
		MediaMaxBytes:     getEnvInt64("MEDIA_MAX_BYTES", 10<<20),
		MediaFetchTimeout: getEnvDuration("MEDIA_FETCH_TIMEOUT", 15*time.Second),

		KMSKeyName:         os.Getenv("KMS_KEY_NAME"),
		GoogleCloudProject: os.Getenv("GOOGLE_CLOUD_PROJECT"),

		OtelEnabled:      getEnvBool("OTEL_ENABLED", false),
		OtelEndpoint:     getEnv("OTEL_ENDPOINT", "localhost:4317"),
		OtelInsecure:     getEnvBool("OTEL_INSECURE", false),
		OtelServiceName:  getEnv("OTEL_SERVICE_NAME", "clawd-connector"),
		OtelSamplingRate: getEnvFloat("OTEL_SAMPLING_RATE", 1.0),
	}
}

// APIBaseURL は外部クライアントに案内するAPIのベースURLを返す。
func (c *Config) APIBaseURL() string {
	return c.SiteURL + "/clawd/v1/"
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil && f >= 0 && f <= 1 {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			return d
		}
	}
	return defaultVal
}
