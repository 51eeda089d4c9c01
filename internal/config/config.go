package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const devJWTSecret = "dev-secret-change-me"

type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	Environment string
	LogLevel    slog.Level

	MySQL MySQLConfig
	Redis RedisConfig
	Auth  AuthConfig
	Order OrderConfig

	CORSAllowedOrigins []string
	AutoMigrate        bool
	Owner              OwnerConfig
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig is disabled when Addr is empty.
type RedisConfig struct {
	Addr     string
	PoolSize int
}

type AuthConfig struct {
	JWTSecret          string
	JWTTTL             time.Duration
	LoginRatePerMinute int
}

type OrderConfig struct {
	DefaultTaxRate decimal.Decimal
	NumberPrefix   string
	IdempotencyTTL time.Duration
}

type OwnerConfig struct {
	Email    string
	Password string
	Name     string
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	var errs []error
	cfg := &Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		GRPCAddr:    getEnv("GRPC_ADDR", ":50051"),
		Environment: getEnv("APP_ENV", "development"),
		MySQL: MySQLConfig{
			DSN:             getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/factory"),
			MaxOpenConns:    getInt("MYSQL_MAX_OPEN_CONNS", 50, &errs),
			MaxIdleConns:    getInt("MYSQL_MAX_IDLE_CONNS", 25, &errs),
			ConnMaxLifetime: getDuration("MYSQL_CONN_MAX_LIFETIME", 5*time.Minute, &errs),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			PoolSize: getInt("REDIS_POOL_SIZE", 100, &errs),
		},
		Auth: AuthConfig{
			JWTSecret:          getEnv("JWT_SECRET", ""),
			JWTTTL:             getDuration("JWT_TTL", 24*time.Hour, &errs),
			LoginRatePerMinute: getInt("LOGIN_RATE_PER_MINUTE", 20, &errs),
		},
		Order: OrderConfig{
			DefaultTaxRate: getDecimal("DEFAULT_TAX_RATE", "0.08", &errs),
			NumberPrefix:   getEnv("ORDER_NUMBER_PREFIX", "ORD"),
			IdempotencyTTL: getDuration("IDEMPOTENCY_TTL", 24*time.Hour, &errs),
		},
		CORSAllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		AutoMigrate:        getBool("AUTO_MIGRATE", false, &errs),
		Owner: OwnerConfig{
			Email:    getEnv("OWNER_EMAIL", ""),
			Password: getEnv("OWNER_PASSWORD", ""),
			Name:     getEnv("OWNER_NAME", "Owner"),
		},
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	if cfg.Auth.JWTSecret == "" {
		if !cfg.IsDevelopment() {
			errs = append(errs, errors.New("JWT_SECRET is required outside development"))
		}
		cfg.Auth.JWTSecret = devJWTSecret
	}
	if cfg.Order.DefaultTaxRate.IsNegative() || cfg.Order.DefaultTaxRate.GreaterThan(decimal.NewFromInt(1)) {
		errs = append(errs, fmt.Errorf("DEFAULT_TAX_RATE must be between 0 and 1, got %s", cfg.Order.DefaultTaxRate))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int, errs *[]error) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}

func getBool(key string, defaultValue bool, errs *[]error) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}

func getDecimal(key, defaultValue string, errs *[]error) decimal.Decimal {
	v, err := decimal.NewFromString(getEnv(key, defaultValue))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return decimal.RequireFromString(defaultValue)
	}
	return v
}

func getList(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
