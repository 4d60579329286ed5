package main

import (
	"fmt"
	"os"
	"strconv"
)

// Drivers de store suportados
const (
	StoreDriverPostgres = "postgres"
	StoreDriverBadger   = "badger"
)

// Config holds all configuration for the inventory service
type Config struct {
	ServiceName string
	Port        string

	StoreDriver string

	// Postgres
	DatabaseHost     string
	DatabasePort     string
	DatabaseUser     string
	DatabasePassword string
	DatabaseName     string

	// Badger (empty path = in-memory)
	BadgerPath string

	OTLPEndpoint string

	// Mensagens pendentes por cliente push antes de descartar
	WSSendBuffer int
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig() *Config {
	return &Config{
		ServiceName: getEnv("SERVICE_NAME", "inventory-service"),
		Port:        getEnv("PORT", "8080"),

		StoreDriver: getEnv("STORE_DRIVER", StoreDriverPostgres),

		DatabaseHost:     getEnv("DATABASE_HOST", "localhost"),
		DatabasePort:     getEnv("DATABASE_PORT", "5432"),
		DatabaseUser:     getEnv("DATABASE_USER", "root"),
		DatabasePassword: getEnv("DATABASE_PASSWORD", "pass"),
		DatabaseName:     getEnv("DATABASE_NAME", "inventory_db"),

		BadgerPath: getEnv("BADGER_PATH", ""),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),

		WSSendBuffer: getEnvInt("WS_SEND_BUFFER", 16),
	}
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverBadger:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverBadger, c.StoreDriver)
	}
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.WSSendBuffer < 1 {
		return fmt.Errorf("WS_SEND_BUFFER must be >= 1")
	}
	return nil
}

// PoolDSN returns the pgx connection string
func (c *Config) PoolDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable&pool_max_conns=25&pool_min_conns=5",
		c.DatabaseUser,
		c.DatabasePassword,
		c.DatabaseHost,
		c.DatabasePort,
		c.DatabaseName,
	)
}

// ListenerDSN returns the lib/pq connection string used by the change feed
func (c *Config) ListenerDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DatabaseHost,
		c.DatabasePort,
		c.DatabaseUser,
		c.DatabasePassword,
		c.DatabaseName,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return value
}
