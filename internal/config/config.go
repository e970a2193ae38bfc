// Package config provides environment-based configuration management.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// DSN builds the MySQL connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// RedisConfig holds Redis connection parameters. An empty Addr selects the
// in-memory session store and presence cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig holds event broker parameters. No brokers means the relay is
// not started.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Port          int
	SessionTTL    time.Duration
	SweepInterval time.Duration
	CORSOrigins   []string
}

// Config aggregates all configuration sections.
type Config struct {
	DB    DBConfig
	Redis RedisConfig
	Kafka KafkaConfig
	App   AppConfig
}

// LoadConfig reads configuration from the environment, with a .env file as
// fallback for local development.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	cfg := &Config{}

	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnvAsInt("DB_PORT", 3306)
	cfg.DB.User = getEnv("DB_USER", "root")
	cfg.DB.Password = getEnv("DB_PASS", "")
	cfg.DB.Database = getEnv("DB_NAME", "support_chat")
	if cfg.DB.Password == "" {
		return nil, fmt.Errorf("DB_PASS environment variable is required")
	}

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "")
	cfg.Redis.Password = getEnv("REDIS_PASS", "")
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", 0)

	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.Kafka.Brokers = splitAndTrim(brokers)
	}
	cfg.Kafka.Topic = getEnv("KAFKA_TOPIC", "")

	cfg.App.Port = getEnvAsInt("APP_PORT", 8080)
	cfg.App.SessionTTL = time.Duration(getEnvAsInt("SESSION_TTL_HOURS", 24)) * time.Hour
	cfg.App.SweepInterval = time.Duration(getEnvAsInt("SWEEP_INTERVAL_MINUTES", 10)) * time.Minute
	if origins := getEnv("CORS_ORIGINS", ""); origins != "" {
		cfg.App.CORSOrigins = splitAndTrim(origins)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("invalid integer environment variable, using fallback",
			"key", key, "value", raw, "fallback", fallback)
		return fallback
	}
	return value
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
