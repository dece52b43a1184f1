package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration for the service, loaded from
// environment variables with sensible defaults for local development.
type Config struct {
	Port        string
	Environment string

	Search   SearchConfig
	Breaker  BreakerConfig
	Retry    RetryConfig
	Async    AsyncConfig
	Upload   UploadConfig
	Session  SessionConfig
	Database DatabaseConfig

	// DataRoot is the base directory for persisted image files.
	DataRoot string
	// PublicBaseURL is prepended to relative image paths in search results.
	PublicBaseURL string
	BcryptCost    int
}

// SearchConfig selects and configures the remote search backend.
type SearchConfig struct {
	// ActiveBackend picks the live client implementation: "clip" or "faiss".
	// The other backend is not instantiated; switching requires a restart.
	ActiveBackend string
	PrimaryURL    string
	BackupURL     string
	RequestTimeout time.Duration
}

// BreakerConfig holds circuit breaker tuning shared by all per-method breakers.
type BreakerConfig struct {
	WindowSize            int
	MinimumCalls          int
	FailureRateThreshold  float64 // percent, 0-100
	SlowCallRateThreshold float64 // percent, 0-100
	SlowCallDuration      time.Duration
	OpenDuration          time.Duration
	HalfOpenProbes        int
}

// RetryConfig drives the durable retry queue scheduler.
type RetryConfig struct {
	MaxAttempts    int
	EmbedInterval  time.Duration
	DeleteInterval time.Duration
	BatchSize      int
	Retention      time.Duration
	// ShutdownGrace bounds in-flight remote calls during shutdown.
	ShutdownGrace time.Duration
}

// AsyncConfig bounds the embedding dispatcher.
type AsyncConfig struct {
	Workers       int
	QueueCapacity int
	BatchSize     int
	BatchPause    time.Duration
}

// UploadConfig constrains the upload pipeline.
type UploadConfig struct {
	AllowedExtensions []string
	MaxBodyBytes      int64
}

// SessionConfig controls opaque-token session lifetimes.
type SessionConfig struct {
	TTL time.Duration
	// SweepInterval is how often expired sessions are purged.
	SweepInterval time.Duration
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// Load reads the full configuration from the environment.
func Load() *Config {
	return &Config{
		Port:        GetEnv("PORT", "8080"),
		Environment: GetEnv("ENVIRONMENT", "development"),
		Search: SearchConfig{
			ActiveBackend:  GetEnv("SEARCH_ACTIVE_BACKEND", "clip"),
			PrimaryURL:     GetEnv("PRIMARY_SEARCH_URL", "http://clip-search:8090"),
			BackupURL:      GetEnv("BACKUP_SEARCH_URL", "http://faiss-search:8091"),
			RequestTimeout: GetEnvAsSeconds("SEARCH_REQUEST_TIMEOUT_S", 30),
		},
		Breaker: BreakerConfig{
			WindowSize:            GetEnvAsInt("BREAKER_WINDOW", 100),
			MinimumCalls:          GetEnvAsInt("BREAKER_MIN_CALLS", 10),
			FailureRateThreshold:  GetEnvAsFloat("BREAKER_FAILURE_RATE", 50),
			SlowCallRateThreshold: GetEnvAsFloat("BREAKER_SLOW_RATE", 50),
			SlowCallDuration:      GetEnvAsSeconds("BREAKER_SLOW_DURATION_S", 10),
			OpenDuration:          GetEnvAsSeconds("BREAKER_OPEN_DURATION_S", 60),
			HalfOpenProbes:        GetEnvAsInt("BREAKER_HALF_OPEN_PROBES", 5),
		},
		Retry: RetryConfig{
			MaxAttempts:    GetEnvAsInt("RETRY_MAX_ATTEMPTS", 5),
			EmbedInterval:  GetEnvAsSeconds("RETRY_EMBED_INTERVAL_S", 60),
			DeleteInterval: GetEnvAsSeconds("RETRY_DELETE_INTERVAL_S", 300),
			BatchSize:      GetEnvAsInt("RETRY_BATCH_SIZE", 50),
			Retention:      time.Duration(GetEnvAsInt("RETRY_RETENTION_DAYS", 7)) * 24 * time.Hour,
			ShutdownGrace:  GetEnvAsSeconds("RETRY_SHUTDOWN_GRACE_S", 10),
		},
		Async: AsyncConfig{
			Workers:       GetEnvAsInt("ASYNC_WORKERS", 2),
			QueueCapacity: GetEnvAsInt("ASYNC_QUEUE_CAPACITY", 100),
			BatchSize:     GetEnvAsInt("ASYNC_BATCH_SIZE", 32),
			BatchPause:    GetEnvAsSeconds("ASYNC_BATCH_PAUSE_S", 1),
		},
		Upload: UploadConfig{
			AllowedExtensions: GetEnvAsList("UPLOAD_ALLOWED_EXTENSIONS", ".png,.jpg,.jpeg"),
			MaxBodyBytes:      int64(GetEnvAsInt("UPLOAD_MAX_MB", 50)) << 20,
		},
		Session: SessionConfig{
			TTL:           time.Duration(GetEnvAsInt("SESSION_TTL_H", 24)) * time.Hour,
			SweepInterval: time.Hour,
		},
		Database: DatabaseConfig{
			Host:     GetEnv("DB_HOST", "postgres"),
			Port:     GetEnv("DB_PORT", "5432"),
			User:     GetEnv("DB_USER", "framefind"),
			Password: GetEnv("DB_PASSWORD", ""),
			Name:     GetEnv("DB_NAME", "framefind"),
			SSLMode:  GetEnv("DB_SSLMODE", "disable"),
		},
		DataRoot:      GetEnv("DATA_ROOT", "./data"),
		PublicBaseURL: strings.TrimRight(GetEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		BcryptCost:    GetEnvAsInt("BCRYPT_COST", 12),
	}
}

// GetEnv returns the value of an environment variable or a default value.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvAsInt returns an integer environment variable or a default value.
func GetEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetEnvAsFloat returns a float environment variable or a default value.
func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetEnvAsSeconds returns a duration configured in whole seconds.
func GetEnvAsSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(GetEnvAsInt(key, defaultSeconds)) * time.Second
}

// GetEnvAsList returns a comma-separated environment variable as a slice,
// trimming whitespace and lowercasing each entry.
func GetEnvAsList(key, defaultValue string) []string {
	raw := GetEnv(key, defaultValue)
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.ToLower(strings.TrimSpace(part)); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
