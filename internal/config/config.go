package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	RAUsername string
	RAAPIKey   string
	RABaseURL  string
	DBPath     string
	ServerPort string
	LogLevel   string
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		RAUsername: getEnv("RA_USERNAME", ""),
		RAAPIKey:   getEnv("RA_API_KEY", ""),
		RABaseURL:  getEnv("RA_BASE_URL", "https://retroachievements.org/API"),
		DBPath:     getEnv("DB_PATH", "retrotracker.db"),
		ServerPort: getEnv("SERVER_PORT", "8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
	}

	if cfg.RAUsername == "" || cfg.RAAPIKey == "" {
		return nil, fmt.Errorf("RA_USERNAME and RA_API_KEY are required")
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Str("ra_username", cfg.RAUsername).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var Module = fx.Provide(Load)
