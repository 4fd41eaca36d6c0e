package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/zatekoja/carematch/pkg/geo"
)

// Config holds all application configuration
type Config struct {
	Environment string
	LogLevel    string
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Typesense   TypesenseConfig
	Matching    MatchingConfig
	Breaker     BreakerConfig
	Cache       CacheConfig
	OTEL        OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host        string
	Port        int
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	URL     string
	APIKey  string
	Enabled bool
}

// MatchingConfig holds the matching engine tunables
type MatchingConfig struct {
	// SearchRadiusMiles is used both to filter candidates and to normalise the distance factor.
	SearchRadiusMiles float64
	CandidateLimit    int
	RequestTimeout    time.Duration
	// AutoMatchInterval enables the in-process auto-match loop when non-zero.
	AutoMatchInterval time.Duration
	// CommitsPerSecond paces auto-match commits; zero disables pacing.
	CommitsPerSecond float64
	// AutoMatchBudget bounds one auto-match run started over HTTP.
	AutoMatchBudget time.Duration
}

// BreakerConfig holds circuit breaker settings for store calls
type BreakerConfig struct {
	MaxConsecutiveFailures uint32
	OpenTimeout            time.Duration
	HalfOpenMaxRequests    uint32
}

// CacheConfig holds read-through cache settings
type CacheConfig struct {
	ProviderQueryTTL time.Duration
	// WarmInterval re-warms the provider cache periodically; zero warms once at startup.
	WarmInterval time.Duration
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "carematch"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),

			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),

			PoolSize:    getEnvAsInt("REDIS_POOL_SIZE", 20),
			DialTimeout: getEnvAsDuration("REDIS_DIAL_TIMEOUT", 3*time.Second),
		},
		Typesense: TypesenseConfig{
			URL:     getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey:  getEnv("TYPESENSE_API_KEY", "xyz"),
			Enabled: getEnvAsBool("TYPESENSE_ENABLED", false),
		},
		Matching: MatchingConfig{
			SearchRadiusMiles: getEnvAsFloat("MATCH_SEARCH_RADIUS_MILES", 20),
			CandidateLimit:    getEnvAsInt("MATCH_CANDIDATE_LIMIT", 10),
			RequestTimeout:    getEnvAsDuration("MATCH_REQUEST_TIMEOUT", 10*time.Second),
			AutoMatchInterval: getEnvAsDuration("AUTO_MATCH_INTERVAL", 0),
			CommitsPerSecond:  getEnvAsFloat("AUTO_MATCH_COMMITS_PER_SECOND", 0),
			AutoMatchBudget:   getEnvAsDuration("AUTO_MATCH_HTTP_BUDGET", 2*time.Minute),
		},
		Breaker: BreakerConfig{
			MaxConsecutiveFailures: uint32(getEnvAsInt("STORE_BREAKER_MAX_FAILURES", 5)),
			OpenTimeout:            getEnvAsDuration("STORE_BREAKER_OPEN_TIMEOUT", 30*time.Second),
			HalfOpenMaxRequests:    uint32(getEnvAsInt("STORE_BREAKER_HALF_OPEN_REQUESTS", 1)),
		},
		Cache: CacheConfig{
			ProviderQueryTTL: getEnvAsDuration("CACHE_PROVIDER_QUERY_TTL", 60*time.Second),
			WarmInterval:     getEnvAsDuration("CACHE_WARM_INTERVAL", 5*time.Minute),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "carematch"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the matching engine cannot run with
func (c *Config) Validate() error {
	if !geo.ValidRadius(c.Matching.SearchRadiusMiles) {
		return fmt.Errorf("MATCH_SEARCH_RADIUS_MILES must be a positive finite number, got %v", c.Matching.SearchRadiusMiles)
	}
	if c.Matching.CandidateLimit <= 0 {
		return fmt.Errorf("MATCH_CANDIDATE_LIMIT must be positive, got %d", c.Matching.CandidateLimit)
	}
	if c.Matching.CommitsPerSecond < 0 {
		return fmt.Errorf("AUTO_MATCH_COMMITS_PER_SECOND must not be negative, got %v", c.Matching.CommitsPerSecond)
	}
	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
