package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string
	Host string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PostgresDSN string // empty disables the settlement ledger

	TurnTimeout     time.Duration
	DisconnectGrace time.Duration
	AllowedOrigin   string

	WsConnectRateLimit  int
	WsConnectRateWindow time.Duration

	LogLevel string
	LogJSON  bool
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port: getEnv("PORT", "3000"),
		Host: getEnv("HOST", "0.0.0.0"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		PostgresDSN: os.Getenv("POSTGRES_DSN"),

		TurnTimeout:     time.Duration(getEnvInt("TURN_TIMEOUT_SECONDS", 30)) * time.Second,
		DisconnectGrace: time.Duration(getEnvInt("DISCONNECT_GRACE_SECONDS", 30)) * time.Second,
		AllowedOrigin:   os.Getenv("ALLOWED_ORIGIN"),

		WsConnectRateLimit:  getEnvInt("WS_CONNECT_RATE_LIMIT", 20),
		WsConnectRateWindow: time.Duration(getEnvInt("WS_CONNECT_RATE_WINDOW_SECONDS", 60)) * time.Second,

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogJSON:  getEnvBool("LOG_JSON", false),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
