package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig      `json:"server"`
	Auth        AuthConfig        `json:"auth"`
	Redis       RedisConfig       `json:"redis"`
	SolanaRPC   RPCConfig         `json:"solana_rpc"`
	EthereumRPC RPCConfig         `json:"ethereum_rpc"`
	Pricing     PricingConfig     `json:"pricing"`
	Batch       BatchConfig       `json:"batch"`
	ResultCache ResultCacheConfig `json:"result_cache"`
	RateLimit   RateLimitConfig   `json:"rate_limit"`
	Logging     LoggingConfig     `json:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `json:"port"`
	Host         string        `json:"host"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// AuthConfig holds API key authentication configuration. Keys are declared
// as a comma-separated list of key=user:tier entries.
type AuthConfig struct {
	APIKeys map[string]APIKeyInfo `json:"-"`
}

// APIKeyInfo identifies the caller behind an API key
type APIKeyInfo struct {
	UserID string `json:"user_id"`
	Tier   string `json:"tier"`
}

// RedisConfig holds Redis connection configuration for the quota ledger
// and result cache
type RedisConfig struct {
	Addr     string `json:"addr"`
	Username string `json:"username"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

// RPCConfig holds upstream chain RPC configuration
type RPCConfig struct {
	Endpoint string        `json:"endpoint"`
	Timeout  time.Duration `json:"timeout"`
	// RequestsPerSecond and Burst smooth the outbound request rate
	// against the provider, independent of per-item retries.
	RequestsPerSecond float64 `json:"requests_per_second"`
	Burst             int     `json:"burst"`
}

// PricingConfig holds price oracle configuration
type PricingConfig struct {
	BaseURL         string        `json:"base_url"`
	Timeout         time.Duration `json:"timeout"`
	CacheTTL        time.Duration `json:"cache_ttl"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
}

// BatchConfig holds concurrent batch processor configuration
type BatchConfig struct {
	Workers         int           `json:"workers"`
	BatchSize       int           `json:"batch_size"`
	InterBatchDelay time.Duration `json:"inter_batch_delay"`
	MaxAttempts     int           `json:"max_attempts"`
	BaseDelay       time.Duration `json:"base_delay"`
	MaxDelay        time.Duration `json:"max_delay"`
	MaxJitter       time.Duration `json:"max_jitter"`
}

// ResultCacheConfig holds result cache TTLs per tier. Paid tiers get a
// shorter TTL: their data changes more and they expect freshness.
type ResultCacheConfig struct {
	FreeTTL time.Duration `json:"free_ttl"`
	ProTTL  time.Duration `json:"pro_ttl"`
}

// TTLFor returns the result cache TTL for a tier name
func (rc ResultCacheConfig) TTLFor(tier string) time.Duration {
	if strings.EqualFold(tier, "pro") {
		return rc.ProTTL
	}
	return rc.FreeTTL
}

// RateLimitConfig holds HTTP rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `json:"requests_per_minute"`
	WindowSize        time.Duration `json:"window_size"`
	CleanupInterval   time.Duration `json:"cleanup_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level       string   `json:"level"`
	Environment string   `json:"environment"`
	OutputPaths []string `json:"output_paths"`
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:  getDurationEnv("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			APIKeys: parseAPIKeys(getEnv("API_KEYS", "")),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Username: getEnv("REDIS_USERNAME", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		SolanaRPC: RPCConfig{
			Endpoint:          getEnv("SOLANA_RPC_ENDPOINT", "https://api.mainnet-beta.solana.com"),
			Timeout:           getDurationEnv("SOLANA_RPC_TIMEOUT", 15*time.Second),
			RequestsPerSecond: getFloatEnv("SOLANA_RPC_RPS", 10),
			Burst:             getIntEnv("SOLANA_RPC_BURST", 5),
		},
		EthereumRPC: RPCConfig{
			Endpoint:          getEnv("ETHEREUM_RPC_ENDPOINT", "https://eth-mainnet.g.alchemy.com/v2/demo"),
			Timeout:           getDurationEnv("ETHEREUM_RPC_TIMEOUT", 15*time.Second),
			RequestsPerSecond: getFloatEnv("ETHEREUM_RPC_RPS", 10),
			Burst:             getIntEnv("ETHEREUM_RPC_BURST", 5),
		},
		Pricing: PricingConfig{
			BaseURL:         getEnv("PRICE_API_BASE_URL", "https://api.coingecko.com/api/v3"),
			Timeout:         getDurationEnv("PRICE_API_TIMEOUT", 6*time.Second),
			CacheTTL:        getDurationEnv("PRICE_CACHE_TTL", 5*time.Minute),
			CleanupInterval: getDurationEnv("PRICE_CACHE_CLEANUP_INTERVAL", 10*time.Minute),
		},
		Batch: BatchConfig{
			Workers:         getIntEnv("BATCH_WORKERS", 4),
			BatchSize:       getIntEnv("BATCH_SIZE", 10),
			InterBatchDelay: getDurationEnv("BATCH_INTER_BATCH_DELAY", 300*time.Millisecond),
			MaxAttempts:     getIntEnv("BATCH_MAX_ATTEMPTS", 3),
			BaseDelay:       getDurationEnv("BATCH_BASE_DELAY", 500*time.Millisecond),
			MaxDelay:        getDurationEnv("BATCH_MAX_DELAY", 8*time.Second),
			MaxJitter:       getDurationEnv("BATCH_MAX_JITTER", 100*time.Millisecond),
		},
		ResultCache: ResultCacheConfig{
			FreeTTL: getDurationEnv("RESULT_CACHE_FREE_TTL", 30*time.Minute),
			ProTTL:  getDurationEnv("RESULT_CACHE_PRO_TTL", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getIntEnv("RATE_LIMIT_REQUESTS_PER_MINUTE", 30),
			WindowSize:        getDurationEnv("RATE_LIMIT_WINDOW_SIZE", time.Minute),
			CleanupInterval:   getDurationEnv("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		},
		Logging: LoggingConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Environment: getEnv("LOG_ENVIRONMENT", "development"),
			OutputPaths: getStringSliceEnv("LOG_OUTPUT_PATHS", []string{"stdout"}),
		},
	}
}

// parseAPIKeys parses "key1=alice:pro,key2=bob:free" into a lookup map.
// Malformed entries are skipped.
func parseAPIKeys(raw string) map[string]APIKeyInfo {
	keys := make(map[string]APIKeyInfo)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key, identity, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		user, tier, ok := strings.Cut(identity, ":")
		if !ok || key == "" || user == "" {
			continue
		}
		keys[key] = APIKeyInfo{UserID: user, Tier: strings.ToLower(tier)}
	}
	return keys
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
