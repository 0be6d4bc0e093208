package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/lotas/scicheck/internal/storage"
)

// Config holds the resolved runtime settings.
type Config struct {
	APIURL      string        `validate:"required,url"`
	WSURL       string        `validate:"required,url"`
	DBPath      string        `validate:"required"`
	LogDir      string        `validate:"required"`
	ExportDir   string        `validate:"required"`
	HistoryMax  int           `validate:"gt=0"`
	HTTPTimeout time.Duration `validate:"gt=0"`
	Rate        float64       `validate:"gte=0"`
}

var validate = validator.New()

// Load reads .env (if present) and the SCICHECK_* environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbPath := getEnv("SCICHECK_DB", "")
	if dbPath == "" {
		p, err := storage.DefaultDBPath()
		if err != nil {
			return nil, err
		}
		dbPath = p
	}

	apiURL := strings.TrimRight(getEnv("SCICHECK_API_URL", "http://localhost:8000"), "/")
	cfg := &Config{
		APIURL:      apiURL,
		WSURL:       strings.TrimRight(getEnv("SCICHECK_WS_URL", WebSocketURL(apiURL)), "/"),
		DBPath:      dbPath,
		LogDir:      getEnv("SCICHECK_LOG_DIR", filepath.Dir(dbPath)),
		ExportDir:   getEnv("SCICHECK_EXPORT_DIR", "."),
		HistoryMax:  getEnvAsInt("SCICHECK_HISTORY_MAX", 100),
		HTTPTimeout: getEnvAsDuration("SCICHECK_HTTP_TIMEOUT", 15*time.Second),
		Rate:        getEnvAsFloat("SCICHECK_RATE", 5),
	}
	return cfg, cfg.Validate()
}

// Validate checks the settings after flags were applied.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// WebSocketURL derives the streaming endpoint base from the API URL.
func WebSocketURL(apiURL string) string {
	switch {
	case strings.HasPrefix(apiURL, "https://"):
		return "wss://" + strings.TrimPrefix(apiURL, "https://")
	case strings.HasPrefix(apiURL, "http://"):
		return "ws://" + strings.TrimPrefix(apiURL, "http://")
	}
	return apiURL
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}
