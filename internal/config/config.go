package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Webhook   WebhookConfig
	Storage   StorageConfig
	Geocoding GeocodingConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines citizen authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// WebhookConfig covers both directions of the automation integration. Secret
// authenticates inbound calls and is attached to outbound ones; OutboundURL
// being empty disables outbound delivery without affecting anything else.
type WebhookConfig struct {
	OutboundURL    string
	Secret         string
	SourceName     string
	TimeoutSeconds int
	DedupTTLMin    int
}

// StorageConfig holds object storage (MinIO) connection values.
type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	PublicURL string
	UseSSL    bool
}

// GeocodingConfig configures reverse geocoding of case coordinates. A missing
// token degrades addresses to raw coordinates.
type GeocodingConfig struct {
	MapboxToken    string
	TimeoutSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "fixmypidge-case-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			// An explicitly empty REDIS_ADDR disables redis.
			Addr:     lookupEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Webhook: WebhookConfig{
			OutboundURL:    os.Getenv("AUTOMATION_WEBHOOK_URL"),
			Secret:         os.Getenv("WEBHOOK_SECRET"),
			SourceName:     getEnv("WEBHOOK_SOURCE_NAME", "fixmypidge"),
			TimeoutSeconds: getEnvAsInt("WEBHOOK_TIMEOUT_SECONDS", 10),
			DedupTTLMin:    getEnvAsInt("WEBHOOK_DEDUP_TTL_MINUTES", 10),
		},
		Storage: StorageConfig{
			Endpoint:  os.Getenv("STORAGE_ENDPOINT"),
			AccessKey: os.Getenv("STORAGE_ACCESS_KEY"),
			SecretKey: os.Getenv("STORAGE_SECRET_KEY"),
			Bucket:    getEnv("STORAGE_BUCKET", "case-photos"),
			PublicURL: os.Getenv("STORAGE_PUBLIC_URL"),
			UseSSL:    getEnvAsBool("STORAGE_USE_SSL", false),
		},
		Geocoding: GeocodingConfig{
			MapboxToken:    os.Getenv("MAPBOX_API_TOKEN"),
			TimeoutSeconds: getEnvAsInt("GEOCODING_TIMEOUT_SECONDS", 5),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the outbound delivery timeout.
func (w WebhookConfig) Timeout() time.Duration {
	if w.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(w.TimeoutSeconds) * time.Second
}

// DedupTTL returns the idempotency suppression window.
func (w WebhookConfig) DedupTTL() time.Duration {
	if w.DedupTTLMin <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(w.DedupTTLMin) * time.Minute
}

// Timeout returns the geocoding request timeout.
func (g GeocodingConfig) Timeout() time.Duration {
	if g.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(g.TimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// lookupEnv falls back only when the variable is unset, so a set-but-empty
// value stays empty.
func lookupEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
