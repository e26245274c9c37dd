package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"competitor-knowledge/internal/shared/telemetry"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	Env             string
	DatabaseURL     string

	QueueBackend         string
	SQSQueueURL          string
	SQSVisibilitySeconds int
	RedisAddr            string
	RedisQueueKey        string
	WorkerConcurrency    int
	ShutdownTimeout      time.Duration

	AIProvider     string
	AIModel        string
	AIAPIKey       string
	AIBaseURL      string
	AIReferer      string
	EnabledModules []string

	SearchProvider  string
	SearchAPIKey    string
	SearchLimit     int
	SearchCacheSize int

	NotifyEmail        string
	NotifyFrom         string
	Notifier           string
	PriceDropThreshold float64
	StoreCurrency      string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	S3KMSKeyID      string

	ReanalysisCooldown time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience; missing files are fine.
	for _, path := range []string{".env", "cmd/.env"} {
		_ = godotenv.Load(path)
	}

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		telemetry.Warn("config.database_url.missing", map[string]any{"env": env})
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		Env:             env,
		DatabaseURL:     dbURL,

		QueueBackend:         normalizeQueueBackend(getEnv("QUEUE_BACKEND", "memory")),
		SQSQueueURL:          getEnv("SQS_QUEUE_URL", ""),
		SQSVisibilitySeconds: getEnvInt("SQS_VISIBILITY_TIMEOUT_SECONDS", 600),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisQueueKey:        getEnv("REDIS_QUEUE_KEY", "ck:analysis:steps"),
		WorkerConcurrency:    getEnvInt("WORKER_CONCURRENCY", 4),
		ShutdownTimeout:      getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		AIProvider:     strings.ToLower(getEnv("AI_PROVIDER", "placeholder")),
		AIModel:        getEnv("AI_MODEL", ""),
		AIAPIKey:       getEnv("AI_API_KEY", ""),
		AIBaseURL:      getEnv("AI_BASE_URL", ""),
		AIReferer:      getEnv("AI_REFERER", ""),
		EnabledModules: splitAndTrim(getEnv("ENABLED_MODULES", "")),

		SearchProvider:  strings.ToLower(getEnv("SEARCH_PROVIDER", "placeholder")),
		SearchAPIKey:    getEnv("SEARCH_API_KEY", ""),
		SearchLimit:     getEnvInt("SEARCH_LIMIT", 10),
		SearchCacheSize: getEnvInt("SEARCH_CACHE_SIZE", 256),

		NotifyEmail:        getEnv("NOTIFY_EMAIL", ""),
		NotifyFrom:         getEnv("NOTIFY_FROM", ""),
		Notifier:           strings.ToLower(getEnv("NOTIFIER", "log")),
		PriceDropThreshold: getEnvFloat("PRICE_DROP_THRESHOLD", 10),
		StoreCurrency:      getEnv("STORE_CURRENCY", "USD"),

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		S3KMSKeyID:      getEnv("S3_KMS_KEY_ID", ""),

		ReanalysisCooldown: getEnvDuration("REANALYSIS_COOLDOWN", 24*time.Hour),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		telemetry.Warn("config.invalid_int", map[string]any{"key": key, "error": err.Error()})
		return def
	}
	return val
}

func getEnvFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		telemetry.Warn("config.invalid_float", map[string]any{"key": key, "error": err.Error()})
		return def
	}
	return val
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		telemetry.Warn("config.invalid_duration", map[string]any{"key": key, "error": err.Error()})
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeQueueBackend(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sqs":
		return "sqs"
	case "redis":
		return "redis"
	default:
		return "memory"
	}
}
