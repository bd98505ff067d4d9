package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mohamedkhairy/strikeview/internal/models"
)

// Config holds all configuration for the application
type Config struct {
	// Common
	Environment string
	LogLevel    string

	// Redis
	Redis RedisConfig

	// Upstream payload source
	Source SourceConfig

	// Dashboard session
	Dashboard DashboardConfig

	// HTTP API
	API APIConfig

	// Websocket update stream
	WSGateway WSGatewayConfig

	// SymbolOverridesFile is an optional YAML file of lot size and interval overrides
	SymbolOverridesFile string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled      bool
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

// SourceConfig selects and configures where raw chains come from
type SourceConfig struct {
	Provider      string // "mock", "proxy" or "file"
	BaseURL       string
	Dir           string
	Timeout       time.Duration
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

// DashboardConfig holds the initial selection and session limits
type DashboardConfig struct {
	Symbol          string
	Expiry          string
	WindowSize      int
	HighOIOnly      bool
	UseLotSize      bool
	RefreshInterval time.Duration
	MaxAlerts       int
	AlertChannel    string
	AlertStream     string
	CacheTTL        time.Duration
}

// APIConfig holds REST API configuration
type APIConfig struct {
	Port         int
	RateLimitRPS int
	EnableZstd   bool
	CORSOrigins  []string
}

// WSGatewayConfig holds websocket stream configuration
type WSGatewayConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	MaxConnections int
}

// Load loads configuration from environment variables
// It automatically loads .env file if it exists in the current directory
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Redis: RedisConfig{
			Enabled:      getEnvAsBool("REDIS_ENABLED", false),
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvAsInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 2),
		},
		Source: SourceConfig{
			Provider:      strings.ToLower(getEnv("SOURCE_PROVIDER", "mock")),
			BaseURL:       getEnv("SOURCE_BASE_URL", ""),
			Dir:           getEnv("SOURCE_DIR", "./testdata"),
			Timeout:       getEnvAsDuration("SOURCE_TIMEOUT", 15*time.Second),
			MaxRetries:    getEnvAsInt("SOURCE_MAX_RETRIES", 3),
			RetryDelay:    getEnvAsDuration("SOURCE_RETRY_DELAY", 500*time.Millisecond),
			MaxRetryDelay: getEnvAsDuration("SOURCE_MAX_RETRY_DELAY", 8*time.Second),
		},
		Dashboard: DashboardConfig{
			Symbol:          strings.ToUpper(getEnv("DASHBOARD_SYMBOL", "NIFTY")),
			Expiry:          getEnv("DASHBOARD_EXPIRY", ""),
			WindowSize:      getEnvAsInt("DASHBOARD_WINDOW_SIZE", 10),
			HighOIOnly:      getEnvAsBool("DASHBOARD_HIGH_OI_ONLY", false),
			UseLotSize:      getEnvAsBool("DASHBOARD_USE_LOT_SIZE", false),
			RefreshInterval: getEnvAsDuration("DASHBOARD_REFRESH_INTERVAL", 30*time.Second),
			MaxAlerts:       getEnvAsInt("DASHBOARD_MAX_ALERTS", 50),
			AlertChannel:    getEnv("DASHBOARD_ALERT_CHANNEL", "strikeview:alerts"),
			AlertStream:     getEnv("DASHBOARD_ALERT_STREAM", "strikeview:alerts"),
			CacheTTL:        getEnvAsDuration("DASHBOARD_CACHE_TTL", 15*time.Minute),
		},
		API: APIConfig{
			Port:         getEnvAsInt("API_PORT", 8080),
			RateLimitRPS: getEnvAsInt("API_RATE_LIMIT_RPS", 20),
			EnableZstd:   getEnvAsBool("API_ENABLE_ZSTD", true),
			CORSOrigins:  getEnvAsStringSlice("API_CORS_ORIGINS", []string{"*"}),
		},
		WSGateway: WSGatewayConfig{
			ReadTimeout:    getEnvAsDuration("WS_GATEWAY_READ_TIMEOUT", 60*time.Second),
			WriteTimeout:   getEnvAsDuration("WS_GATEWAY_WRITE_TIMEOUT", 10*time.Second),
			PingInterval:   getEnvAsDuration("WS_GATEWAY_PING_INTERVAL", 30*time.Second),
			MaxConnections: getEnvAsInt("WS_GATEWAY_MAX_CONNECTIONS", 1000),
		},
		SymbolOverridesFile: getEnv("SYMBOL_OVERRIDES_FILE", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Source.Provider {
	case "mock":
	case "proxy":
		if c.Source.BaseURL == "" {
			return models.NewConfigError("SOURCE_BASE_URL", c.Source.BaseURL, "required when SOURCE_PROVIDER=proxy")
		}
	case "file":
		if c.Source.Dir == "" {
			return models.NewConfigError("SOURCE_DIR", c.Source.Dir, "required when SOURCE_PROVIDER=file")
		}
	default:
		return models.NewConfigError("SOURCE_PROVIDER", c.Source.Provider, "must be mock, proxy or file")
	}
	if c.Source.MaxRetries < 0 {
		return models.NewConfigError("SOURCE_MAX_RETRIES", c.Source.MaxRetries, "must not be negative")
	}

	if c.Dashboard.Symbol == "" {
		return models.NewConfigError("DASHBOARD_SYMBOL", c.Dashboard.Symbol, "required")
	}
	window := models.WindowConfig{WindowSize: c.Dashboard.WindowSize}
	if err := window.ValidateForDisplay(); err != nil {
		return err
	}
	if c.Dashboard.RefreshInterval <= 0 {
		return models.NewConfigError("DASHBOARD_REFRESH_INTERVAL", c.Dashboard.RefreshInterval, "must be positive")
	}
	if c.Dashboard.MaxAlerts <= 0 {
		return models.NewConfigError("DASHBOARD_MAX_ALERTS", c.Dashboard.MaxAlerts, "must be positive")
	}

	if c.API.Port <= 0 || c.API.Port > 65535 {
		return models.NewConfigError("API_PORT", c.API.Port, "must be a valid port")
	}
	if c.WSGateway.PingInterval >= c.WSGateway.ReadTimeout {
		return models.NewConfigError("WS_GATEWAY_PING_INTERVAL", c.WSGateway.PingInterval, "must be shorter than WS_GATEWAY_READ_TIMEOUT")
	}
	if c.Redis.Enabled && c.Redis.Host == "" {
		return models.NewConfigError("REDIS_HOST", c.Redis.Host, "required when REDIS_ENABLED=true")
	}
	return nil
}

// IsProduction reports whether ENVIRONMENT is production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
