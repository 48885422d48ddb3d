package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// GovernorAddress is the account the keeper issues governed operations from.
	GovernorAddress string

	// BootstrapFile is the YAML file describing tokens, strategies, venues and reward configs.
	BootstrapFile string

	// WebPort is the port of the read API.
	WebPort string

	// KeeperInterval is the time between keeper cycles.
	KeeperInterval time.Duration

	// PublicHarvestPerMinute bounds public harvest calls. Zero disables the limit.
	PublicHarvestPerMinute float64

	// LogFile optionally receives a copy of every log record.
	LogFile string

	// Database settings. Persistence is disabled when DBName is empty.
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
)

const (
	DEFAULT_WEB_PORT                  = "8080"
	DEFAULT_KEEPER_INTERVAL_SECONDS   = 3600
	DEFAULT_DB_HOST                   = "localhost"
	DEFAULT_DB_PORT                   = 5432
	DEFAULT_DB_SSLMODE                = "disable"
	DEFAULT_PUBLIC_HARVEST_PER_MINUTE = 6
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// GOVERNOR_ADDRESS and BOOTSTRAP_FILE are required, everything else has a default.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	GovernorAddress, err = getEnv("GOVERNOR_ADDRESS")
	if err != nil {
		return err
	}

	BootstrapFile, err = getEnv("BOOTSTRAP_FILE")
	if err != nil {
		return err
	}
	BootstrapFile, err = expandHome(BootstrapFile)
	if err != nil {
		return err
	}

	WebPort = getEnvOrDefault("WEB_PORT", DEFAULT_WEB_PORT)

	intervalSeconds, err := getEnvAsUint64OrDefault("KEEPER_INTERVAL_SECONDS", DEFAULT_KEEPER_INTERVAL_SECONDS)
	if err != nil {
		return err
	}
	if intervalSeconds == 0 {
		return errors.New("environment variable KEEPER_INTERVAL_SECONDS must be positive")
	}
	KeeperInterval = time.Duration(intervalSeconds) * time.Second

	PublicHarvestPerMinute, err = getEnvAsFloat64OrDefault("PUBLIC_HARVEST_PER_MINUTE", DEFAULT_PUBLIC_HARVEST_PER_MINUTE)
	if err != nil {
		return err
	}
	if PublicHarvestPerMinute < 0 {
		return errors.New("environment variable PUBLIC_HARVEST_PER_MINUTE cannot be negative")
	}

	LogFile = getEnvOrDefault("LOG_FILE", "")

	DBHost = getEnvOrDefault("DB_HOST", DEFAULT_DB_HOST)
	port, err := getEnvAsUint64OrDefault("DB_PORT", DEFAULT_DB_PORT)
	if err != nil {
		return err
	}
	DBPort = int(port)
	DBUser = getEnvOrDefault("DB_USER", "")
	DBPassword = getEnvOrDefault("DB_PASSWORD", "")
	DBName = getEnvOrDefault("DB_NAME", "")
	DBSSLMode = getEnvOrDefault("DB_SSLMODE", DEFAULT_DB_SSLMODE)
	if DBName != "" && DBUser == "" {
		return errors.New("environment variable DB_USER is required when DB_NAME is set")
	}

	// Load endpoint configuration
	if err := loadEndpointConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("GovernorAddress", GovernorAddress).
		Str("BootstrapFile", BootstrapFile).
		Dur("KeeperInterval", KeeperInterval).
		Bool("Persistence", DBName != "").
		Msg("Configuration loaded successfully.")

	return nil
}

// PersistenceEnabled reports whether a database was configured.
func PersistenceEnabled() bool {
	return DBName != ""
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, path[2:]), nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOrDefault retrieves a string environment variable, falling back when it is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

// getEnvAsUint64OrDefault retrieves an environment variable as a uint64. Returns error if invalid.
func getEnvAsUint64OrDefault(key string, fallback uint64) (uint64, error) {
	valueStr := getEnvOrDefault(key, "")
	if valueStr == "" {
		return fallback, nil
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsFloat64OrDefault retrieves an environment variable as a float64. Returns error if invalid.
func getEnvAsFloat64OrDefault(key string, fallback float64) (float64, error) {
	valueStr := getEnvOrDefault(key, "")
	if valueStr == "" {
		return fallback, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid float64, got: " + valueStr)
	}
	return value, nil
}
