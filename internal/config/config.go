package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config holds service configuration. Values come from the environment; an
// optional .env file is loaded first.
type Config struct {
	Port        string
	NATSURL     string
	DatabaseURL string
	RedisURL    string

	JWTSecret string
	JWTTTL    time.Duration

	OperatorID uuid.UUID

	FeeBps       int64
	MaxScanSteps int64

	Debug bool
}

// Load reads configuration from the environment, applying defaults.
func Load() (*Config, error) {
	// Missing .env is fine; env vars alone are a full configuration.
	_ = godotenv.Load()

	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		NATSURL:      getEnv("NATS_URL", ""),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		RedisURL:     getEnv("REDIS_URL", ""),
		JWTSecret:    getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTTTL:       24 * time.Hour,
		FeeBps:       getEnvInt64("FEE_BPS", 500),
		MaxScanSteps: getEnvInt64("MAX_SCAN_STEPS", 0),
		Debug:        getEnv("DEBUG", "") == "true",
	}

	operator := os.Getenv("OPERATOR_ID")
	if operator == "" {
		return nil, fmt.Errorf("OPERATOR_ID is required")
	}
	id, err := uuid.Parse(operator)
	if err != nil {
		return nil, fmt.Errorf("invalid OPERATOR_ID: %w", err)
	}
	cfg.OperatorID = id

	if ttl := os.Getenv("JWT_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return nil, fmt.Errorf("invalid JWT_TTL: %w", err)
		}
		cfg.JWTTTL = d
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}
