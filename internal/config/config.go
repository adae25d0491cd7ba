package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig  `yaml:"server"`
	Storage     StorageConfig `yaml:"storage"`
	Notify      NotifyConfig  `yaml:"notify"`
	Logging     LoggingConfig `yaml:"logging"`
	Environment string        `yaml:"environment"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type StorageConfig struct {
	DataDir          string `yaml:"data_dir"`
	EventsFile       string `yaml:"events_file"`
	ParticipantsFile string `yaml:"participants_file"`
}

// EventsPath returns the events collection file path.
func (c StorageConfig) EventsPath() string {
	return filepath.Join(c.DataDir, c.EventsFile)
}

// ParticipantsPath returns the participants collection file path.
func (c StorageConfig) ParticipantsPath() string {
	return filepath.Join(c.DataDir, c.ParticipantsFile)
}

type NotifyConfig struct {
	Enabled          bool          `yaml:"enabled"`
	MaxInFlight      int           `yaml:"max_in_flight"`
	RatePerSecond    float64       `yaml:"rate_per_second"`
	Burst            int           `yaml:"burst"`
	SimulatedLatency time.Duration `yaml:"simulated_latency"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			DataDir:          "data",
			EventsFile:       "events.json",
			ParticipantsFile: "participants.json",
		},
		Notify: NotifyConfig{
			Enabled:          true,
			MaxInFlight:      64,
			RatePerSecond:    50,
			Burst:            10,
			SimulatedLatency: 100 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Environment: "development",
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty), then environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("SERVER_PORT", cfg.Server.Port)
	cfg.Storage.DataDir = getEnv("DATA_DIR", cfg.Storage.DataDir)
	cfg.Storage.EventsFile = getEnv("EVENTS_FILE", cfg.Storage.EventsFile)
	cfg.Storage.ParticipantsFile = getEnv("PARTICIPANTS_FILE", cfg.Storage.ParticipantsFile)
	cfg.Notify.Enabled = getEnvBool("NOTIFY_ENABLED", cfg.Notify.Enabled)
	cfg.Notify.MaxInFlight = getEnvInt("NOTIFY_MAX_IN_FLIGHT", cfg.Notify.MaxInFlight)
	cfg.Notify.RatePerSecond = getEnvFloat("NOTIFY_RATE_PER_SECOND", cfg.Notify.RatePerSecond)
	cfg.Notify.Burst = getEnvInt("NOTIFY_BURST", cfg.Notify.Burst)
	cfg.Notify.SimulatedLatency = getEnvDuration("NOTIFY_SIMULATED_LATENCY", cfg.Notify.SimulatedLatency)
	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port))
	}
	if strings.TrimSpace(c.Storage.EventsFile) == "" {
		errs = append(errs, errors.New("EVENTS_FILE is required"))
	}
	if strings.TrimSpace(c.Storage.ParticipantsFile) == "" {
		errs = append(errs, errors.New("PARTICIPANTS_FILE is required"))
	}
	if c.Storage.EventsPath() == c.Storage.ParticipantsPath() {
		errs = append(errs, errors.New("EVENTS_FILE and PARTICIPANTS_FILE must differ"))
	}
	if c.Notify.MaxInFlight < 1 {
		errs = append(errs, fmt.Errorf("NOTIFY_MAX_IN_FLIGHT must be positive, got %d", c.Notify.MaxInFlight))
	}
	if c.Notify.RatePerSecond < 0 {
		errs = append(errs, fmt.Errorf("NOTIFY_RATE_PER_SECOND must not be negative, got %v", c.Notify.RatePerSecond))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
