package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// ScorerConfig points at the external language-model scoring service.
type ScorerConfig struct {
	URL   string
	Token string
	Model string
}

type Config struct {
	Database  string
	BatchSize int
	LogLevel  string
	Scorer    ScorerConfig
}

// Load reads configuration from the environment (and a .env file when
// present). Command-line flags override these values in the CLIs.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Database:  getEnv("PERPLEX_DATABASE", "perplexity_cache.db"),
		BatchSize: getEnvInt("PERPLEX_BATCH_SIZE", 100),
		LogLevel:  getEnv("PERPLEX_LOG_LEVEL", "info"),
		Scorer: ScorerConfig{
			URL:   getEnv("PERPLEX_SCORER_URL", "http://localhost:8901/v1/score"),
			Token: getEnv("PERPLEX_SCORER_TOKEN", ""),
			Model: getEnv("PERPLEX_SCORER_MODEL", "smollm3-3b"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
