// Package config loads the environment-variable configuration that
// drives the pipeline and trading cycle. An optional .env file is
// loaded first (via godotenv) and plain os.Getenv parsing fills a
// typed struct with defaults.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-driven knob the process reads at startup.
type Config struct {
	ExchangeAPIKey    string
	ExchangeAPISecret string
	TradingEnabled    bool // false when either credential is missing

	RecvWindowMs int

	Leverage int // default 5, min 1

	RefreshInterval time.Duration // default 10m

	KSlBuffer float64 // default 1, clamped [0.5, 2]

	TelegramBotToken string
	TelegramChatID   int64

	HTTPListenAddr string // optional read-only query surface, default ":3000"

	LogLevel string
}

// Load reads the process environment (after an optional .env load)
// into a Config with its defaults applied.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		ExchangeAPIKey:    os.Getenv("EXCHANGE_API_KEY"),
		ExchangeAPISecret: os.Getenv("EXCHANGE_API_SECRET"),
		RecvWindowMs:      intFromEnv("RECV_WINDOW", 5000),
		Leverage:          intFromEnv("LEVERAGE", 5),
		RefreshInterval:   durationFromMinutes("REFRESH_INTERVAL_MINUTES", 10),
		KSlBuffer:         clamp(floatFromEnv("KSL_BUFFER", 1), 0.5, 2),
		TelegramBotToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		HTTPListenAddr:    getenvDefault("HTTP_LISTEN_ADDR", ":3000"),
		LogLevel:          getenvDefault("LOG_LEVEL", "info"),
	}

	cfg.TradingEnabled = cfg.ExchangeAPIKey != "" && cfg.ExchangeAPISecret != ""

	if cfg.Leverage < 1 {
		cfg.Leverage = 1
	}

	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.TelegramChatID = id
		}
	}

	return cfg
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func durationFromMinutes(key string, defMinutes int) time.Duration {
	return time.Duration(intFromEnv(key, defMinutes)) * time.Minute
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
