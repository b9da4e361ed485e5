package config

import (
	"os"
	"strconv"
	"strings"

	"gocal/domain/calendar"
	"gocal/internal/errors"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Database    DatabaseConfig
	Server      ServerConfig
	Calendarize CalendarizeConfig
	LogLevel    string
}

// DatabaseConfig holds database connection settings. An empty URL disables
// persistence unless InMemory is set.
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	// InMemory keeps series and runs in process memory when no URL is given
	InMemory bool
}

// Enabled reports whether a database is configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// LoadEnvFile loads variables from a .env file without overriding ones
// already set. A missing file is not an error.
func LoadEnvFile(path string) (bool, error) {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}
	if err := godotenv.Load(path); err != nil {
		return false, errors.Wrap(errors.ConfigInvalid(err.Error()), "failed to read "+path)
	}
	return true, nil
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	UIPort  string
	GinMode string
}

// CalendarizeConfig holds calendarization limits and defaults
type CalendarizeConfig struct {
	MaxConcurrency   int
	DefaultFrequency calendar.Frequency
	MaxGridDays      int
	DefaultWeights   []float64
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	freq, err := calendar.ParseFrequency(getEnvOrDefault("CALENDARIZE_DEFAULT_FREQUENCY", "monthly"))
	if err != nil {
		return nil, errors.Wrap(errors.ConfigInvalid(err.Error()), "failed to load calendarization configuration")
	}

	weights, err := parseWeights(os.Getenv("CALENDARIZE_DEFAULT_WEIGHTS"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to load calendarization configuration")
	}

	config := &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: getEnvIntOrDefault("DB_MAX_OPEN_CONNS", 10),
			InMemory:     getEnvBool("DATABASE_IN_MEMORY"),
		},
		Server: ServerConfig{
			Port:    getEnvOrDefault("PORT", "8080"),
			UIPort:  getEnvOrDefault("UI_PORT", "8081"),
			GinMode: getEnvOrDefault("GIN_MODE", "release"),
		},
		Calendarize: CalendarizeConfig{
			MaxConcurrency:   getEnvIntOrDefault("CALENDARIZE_MAX_CONCURRENCY", 4),
			DefaultFrequency: freq,
			MaxGridDays:      getEnvIntOrDefault("CALENDARIZE_MAX_GRID_DAYS", 36600),
			DefaultWeights:   weights,
		},
		LogLevel: getEnvOrDefault("LOG_LEVEL", "INFO"),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return errors.ConfigInvalid("server port is required")
	}
	if config.Calendarize.MaxConcurrency < 1 {
		return errors.ConfigInvalid("CALENDARIZE_MAX_CONCURRENCY must be at least 1")
	}
	if config.Calendarize.MaxGridDays < 1 {
		return errors.ConfigInvalid("CALENDARIZE_MAX_GRID_DAYS must be positive")
	}
	if config.Database.MaxOpenConns < 1 {
		return errors.ConfigInvalid("DB_MAX_OPEN_CONNS must be at least 1")
	}
	return nil
}

// parseWeights reads a comma separated Monday-first day-of-week pattern
func parseWeights(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	weights := make([]float64, 0, len(parts))
	for _, p := range parts {
		w, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, errors.ConfigInvalid("CALENDARIZE_DEFAULT_WEIGHTS must be numbers: " + p)
		}
		weights = append(weights, w)
	}
	if err := calendar.ValidatePattern(weights); err != nil {
		return nil, errors.Wrap(errors.ConfigInvalid(err.Error()), "invalid CALENDARIZE_DEFAULT_WEIGHTS")
	}
	return weights, nil
}

// ParseWeights reads a weight pattern given on the command line
func ParseWeights(s string) ([]float64, error) {
	return parseWeights(s)
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string) bool {
	b, _ := strconv.ParseBool(os.Getenv(key))
	return b
}
