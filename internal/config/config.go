package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Config for the auth client. Values come from the environment; a .env file in the working directory
// is loaded first when present (variables already set in the environment win).
type Config struct {
	Environment string `env:"ENVIRONMENT,default=dev"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`

	// auth API
	APIBaseURL            string        `env:"API_BASE_URL,default=http://localhost:8080"`
	RequestTimeout        time.Duration `env:"REQUEST_TIMEOUT,default=30s"`
	RateLimitRPS          float64       `env:"RATE_LIMIT_RPS,default=0"` // 0 = no client side limit
	RateLimitBurst        int           `env:"RATE_LIMIT_BURST,default=1"`
	MaxConcurrentRequests int64         `env:"MAX_CONCURRENT_REQUESTS,default=4"`

	// credential vault
	VaultDriver                 string `env:"VAULT_DRIVER,default=sqlite"`
	VaultName                   string `env:"VAULT_NAME,default=auth_credentials"`
	VaultSQLitePath             string `env:"VAULT_SQLITE_PATH,default=authcore.db"`
	VaultRedisAddr              string `env:"VAULT_REDIS_ADDR"`
	VaultRedisPassword          string `env:"VAULT_REDIS_PASSWORD"`
	VaultRedisDB                int    `env:"VAULT_REDIS_DB,default=0"`
	VaultRedisPrefix            string `env:"VAULT_REDIS_PREFIX,default=authcore:vault:"`
	VaultKey                    string `env:"VAULT_KEY"`                           // base64, 32 bytes
	VaultKeyFile                string `env:"VAULT_KEY_FILE,default=authcore.key"` // used when VAULT_KEY is not set
	VaultAllowPlaintextFallback bool   `env:"VAULT_ALLOW_PLAINTEXT_FALLBACK,default=false"`
}

var validEnvs = map[string]bool{
	"dev":     true,
	"test":    true,
	"prod":    true,
	"staging": true,
}

var validVaultDrivers = map[string]bool{
	"memory": true,
	"sqlite": true,
	"redis":  true,
}

// NewConfig loads the .env file (if any) and the environment and returns a validated Config
func NewConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config

	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal environment variables: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	if !validEnvs[cfg.Environment] {
		return fmt.Errorf("invalid environment '%s'. Valid environments: dev, test, staging, prod", cfg.Environment)
	}

	if cfg.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL cannot be empty")
	}
	u, err := url.ParseRequestURI(cfg.APIBaseURL)
	if err != nil {
		return fmt.Errorf("API_BASE_URL is not a valid URL: %s", cfg.APIBaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("API_BASE_URL does not include a valid scheme (http or https): %s", cfg.APIBaseURL)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("API_BASE_URL does not include a host: %s", cfg.APIBaseURL)
	}

	if cfg.RequestTimeout < 0 {
		return fmt.Errorf("request timeout must not be negative, got %v", cfg.RequestTimeout)
	}
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be 0 or greater")
	}
	if cfg.RateLimitRPS > 0 && cfg.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_BURST must be at least 1 when RATE_LIMIT_RPS is set")
	}
	if cfg.MaxConcurrentRequests < 1 {
		return fmt.Errorf("MAX_CONCURRENT_REQUESTS must be at least 1")
	}

	if !validVaultDrivers[cfg.VaultDriver] {
		return fmt.Errorf("invalid VAULT_DRIVER '%s'. Valid drivers: memory, sqlite, redis", cfg.VaultDriver)
	}
	if cfg.VaultName == "" {
		return fmt.Errorf("VAULT_NAME cannot be empty")
	}
	if cfg.VaultDriver == "sqlite" && cfg.VaultSQLitePath == "" {
		return fmt.Errorf("VAULT_SQLITE_PATH is required for the sqlite vault driver")
	}
	if cfg.VaultDriver == "redis" && cfg.VaultRedisAddr == "" {
		return fmt.Errorf("VAULT_REDIS_ADDR is required for the redis vault driver")
	}
	if cfg.VaultKey != "" {
		key, err := base64.StdEncoding.DecodeString(cfg.VaultKey)
		if err != nil {
			return fmt.Errorf("VAULT_KEY is not valid base64")
		}
		if len(key) != 32 {
			return fmt.Errorf("VAULT_KEY must decode to 32 bytes, got %d", len(key))
		}
	} else if cfg.VaultKeyFile == "" {
		return fmt.Errorf("either VAULT_KEY or VAULT_KEY_FILE must be set")
	}

	if cfg.Environment == "prod" {
		if u.Scheme != "https" {
			return fmt.Errorf("API_BASE_URL must use https in production: %s", cfg.APIBaseURL)
		}
		if cfg.VaultAllowPlaintextFallback {
			return fmt.Errorf("VAULT_ALLOW_PLAINTEXT_FALLBACK must not be enabled in production")
		}
		if cfg.VaultDriver == "memory" {
			return fmt.Errorf("the memory vault driver does not persist credentials and is not allowed in production")
		}
	}

	return nil
}
