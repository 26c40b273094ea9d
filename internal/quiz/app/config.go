package app

import (
	"os"
	"strconv"
	"time"

	"github.com/aussiebroadwan/mathquiz/pkg/ratelimit"
)

type Config struct {
	Port                int           // TCP port for the line protocol (default: 33333)
	MaxClients          int           // Concurrent clients across TCP and WebSocket (default: 100)
	HTTPPort            int           // Ops HTTP port, 0 disables it (default: 8080)
	DatabaseFile        string        // Path to the SQLite database file (default: ./math_server.db)
	PepperFile          string        // Path to the password pepper, created if missing (default: ./pepper)
	AdminUsername       string        // Default administrator seeded on first start (default: admin)
	AdminPassword       string        // Its password (default: admin123)
	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)

	AuthLimit      ratelimit.Config // register/auth attempts per remote address
	HandshakeLimit ratelimit.Config // WebSocket upgrades per remote address
}

func LoadConfig() Config {
	cfg := Config{
		Port:                getEnvIntOrDefault("QUIZ_PORT", 33333),
		MaxClients:          getEnvIntOrDefault("QUIZ_MAX_CLIENTS", 100),
		HTTPPort:            getEnvIntOrDefault("QUIZ_HTTP_PORT", 8080),
		DatabaseFile:        getEnvOrDefault("QUIZ_DATABASE_FILE", "math_server.db"),
		PepperFile:          getEnvOrDefault("QUIZ_PEPPER_FILE", "pepper"),
		AdminUsername:       getEnvOrDefault("QUIZ_ADMIN_USERNAME", "admin"),
		AdminPassword:       getEnvOrDefault("QUIZ_ADMIN_PASSWORD", "admin123"),
		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),

		AuthLimit:      ratelimit.ParseFromEnv("AUTH", ratelimit.AuthLimit),
		HandshakeLimit: ratelimit.ParseFromEnv("WS", ratelimit.HandshakeLimit),
	}

	if cfg.MaxClients < 1 {
		cfg.MaxClients = 1
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// "10s", "1m"
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds.
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
