package config

import (
	"fmt"
	"log"
	"os"
	"time"
)

// Env представляет окружение приложения
type Env string

const (
	EnvLocal  Env = "local"
	EnvDocker Env = "docker"
)

// Config содержит конфигурацию Cart Service
type Config struct {
	AppEnv          Env
	ShutdownTimeout time.Duration

	HTTPAddr       string
	GRPCHealthAddr string

	// Redis
	RedisAddr     string
	RedisPassword string

	// Срок жизни корзины; TTL redis ключа
	CartTTL time.Duration

	// Внешние сервисы
	ProfileBaseURL    string
	RestaurantBaseURL string
	OrderBaseURL      string
	ClientTimeout     time.Duration

	// Auth
	JWTSecret     string
	InternalToken string
}

// Load загружает конфигурацию из переменных окружения
func Load() (Config, error) {
	cfg := Config{}

	appEnvStr := getString("APP_ENV", string(EnvLocal))
	appEnv := Env(appEnvStr)
	if appEnv != EnvLocal && appEnv != EnvDocker {
		return Config{}, fmt.Errorf("invalid APP_ENV: %s (must be 'local' or 'docker')", appEnvStr)
	}
	cfg.AppEnv = appEnv

	shutdownTimeout, err := time.ParseDuration(getString("SHUTDOWN_TIMEOUT", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}
	cfg.ShutdownTimeout = shutdownTimeout

	cfg.HTTPAddr = getString("CART_HTTP_ADDR", ":8081")
	cfg.GRPCHealthAddr = getString("CART_GRPC_HEALTH_ADDR", ":50061")

	if cfg.AppEnv == EnvLocal {
		cfg.RedisAddr = getString("REDIS_ADDR", "127.0.0.1:16379")
	} else {
		cfg.RedisAddr = getString("REDIS_ADDR", "redis:6379")
	}
	cfg.RedisPassword = getString("REDIS_PASSWORD", "")

	cartTTL, err := time.ParseDuration(getString("CART_TTL", "24h"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid CART_TTL: %w", err)
	}
	cfg.CartTTL = cartTTL

	if cfg.AppEnv == EnvLocal {
		cfg.ProfileBaseURL = getString("PROFILE_BASE_URL", "http://127.0.0.1:8085")
		cfg.RestaurantBaseURL = getString("RESTAURANT_BASE_URL", "http://127.0.0.1:8086")
		cfg.OrderBaseURL = getString("ORDER_BASE_URL", "http://127.0.0.1:8082")
	} else {
		cfg.ProfileBaseURL = getString("PROFILE_BASE_URL", "http://profile:8085")
		cfg.RestaurantBaseURL = getString("RESTAURANT_BASE_URL", "http://restaurant:8086")
		cfg.OrderBaseURL = getString("ORDER_BASE_URL", "http://order:8082")
	}

	clientTimeout, err := time.ParseDuration(getString("CART_CLIENT_TIMEOUT", "3s"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid CART_CLIENT_TIMEOUT: %w", err)
	}
	cfg.ClientTimeout = clientTimeout

	cfg.JWTSecret = getString("JWT_SECRET", "dev-secret-change-me")
	cfg.InternalToken = getString("INTERNAL_TOKEN", "dev-internal-token")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate проверяет корректность конфигурации
func (c Config) Validate() error {
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("CART_HTTP_ADDR is required")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}
	if c.CartTTL <= 0 {
		return fmt.Errorf("CART_TTL must be positive")
	}
	if c.ProfileBaseURL == "" {
		return fmt.Errorf("PROFILE_BASE_URL is required")
	}
	if c.RestaurantBaseURL == "" {
		return fmt.Errorf("RESTAURANT_BASE_URL is required")
	}
	if c.OrderBaseURL == "" {
		return fmt.Errorf("ORDER_BASE_URL is required")
	}
	if c.ClientTimeout <= 0 {
		return fmt.Errorf("CART_CLIENT_TIMEOUT must be positive")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.InternalToken == "" {
		return fmt.Errorf("INTERNAL_TOKEN is required")
	}
	return nil
}

// Log выводит конфигурацию в лог
func (c Config) Log() {
	log.Printf("Config loaded:")
	log.Printf("  APP_ENV: %s", c.AppEnv)
	log.Printf("  SHUTDOWN_TIMEOUT: %s", c.ShutdownTimeout)
	log.Printf("  CART_HTTP_ADDR: %s", c.HTTPAddr)
	log.Printf("  CART_GRPC_HEALTH_ADDR: %s", c.GRPCHealthAddr)
	log.Printf("  REDIS_ADDR: %s", c.RedisAddr)
	log.Printf("  CART_TTL: %s", c.CartTTL)
	log.Printf("  PROFILE_BASE_URL: %s", c.ProfileBaseURL)
	log.Printf("  RESTAURANT_BASE_URL: %s", c.RestaurantBaseURL)
	log.Printf("  ORDER_BASE_URL: %s", c.OrderBaseURL)
}

// getString читает переменную окружения или возвращает дефолт
func getString(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
