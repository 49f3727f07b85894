// File: internal/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverPebble   = "pebble"
)

type Config struct {
	ServerPort string
	// ServerID scopes every id this process mints.
	ServerID      uint32
	StoreDriver   string
	DatabasePath  string
	DatabaseURL   string
	PebblePath    string
	RelaySecret   string
	IDStrategy    string
	MaxIDAttempts int
	LogLevel      string
	Environment   string

	RateLimitWrites int
	RateLimitWindow time.Duration
}

// fileConfig is the optional YAML overlay named by CONFIG_FILE. Environment
// variables win over it.
type fileConfig struct {
	ServerPort      string `yaml:"server_port"`
	ServerID        string `yaml:"server_id"`
	StoreDriver     string `yaml:"store_driver"`
	DatabasePath    string `yaml:"database_path"`
	DatabaseURL     string `yaml:"database_url"`
	PebblePath      string `yaml:"pebble_path"`
	RelaySecret     string `yaml:"relay_secret"`
	IDStrategy      string `yaml:"id_strategy"`
	MaxIDAttempts   string `yaml:"max_id_attempts"`
	LogLevel        string `yaml:"log_level"`
	RateLimitWrites string `yaml:"rate_limit_writes"`
	RateLimitWindow string `yaml:"rate_limit_window"`
}

func (f fileConfig) values() map[string]string {
	return map[string]string{
		"SERVER_PORT":       f.ServerPort,
		"SERVER_ID":         f.ServerID,
		"STORE_DRIVER":      f.StoreDriver,
		"DATABASE_PATH":     f.DatabasePath,
		"DATABASE_URL":      f.DatabaseURL,
		"PEBBLE_PATH":       f.PebblePath,
		"RELAY_SECRET":      f.RelaySecret,
		"ID_STRATEGY":       f.IDStrategy,
		"MAX_ID_ATTEMPTS":   f.MaxIDAttempts,
		"LOG_LEVEL":         f.LogLevel,
		"RATE_LIMIT_WRITES": f.RateLimitWrites,
		"RATE_LIMIT_WINDOW": f.RateLimitWindow,
	}
}

// Load reads configuration from environment variables, a .env file and the
// optional YAML file named by CONFIG_FILE.
func Load() (*Config, error) {
	env := os.Getenv("ENV")
	if strings.ToLower(env) != "production" {
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found; continuing with environment variables")
		}
	}

	src := source{file: map[string]string{}}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		values, err := readFile(path)
		if err != nil {
			return nil, err
		}
		src.file = values
	}

	serverID, err := strconv.ParseUint(src.get("SERVER_ID", "1"), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_ID: %w", err)
	}

	cfg := &Config{
		ServerPort:      src.get("SERVER_PORT", "8080"),
		ServerID:        uint32(serverID),
		StoreDriver:     strings.ToLower(src.get("STORE_DRIVER", DriverSQLite)),
		DatabasePath:    src.get("DATABASE_PATH", "relaychat.db"),
		DatabaseURL:     src.get("DATABASE_URL", ""),
		PebblePath:      src.get("PEBBLE_PATH", "data/pebble"),
		RelaySecret:     src.get("RELAY_SECRET", ""),
		IDStrategy:      strings.ToLower(src.get("ID_STRATEGY", "counter")),
		MaxIDAttempts:   src.getInt("MAX_ID_ATTEMPTS", 8),
		LogLevel:        src.get("LOG_LEVEL", "info"),
		Environment:     env,
		RateLimitWrites: src.getInt("RATE_LIMIT_WRITES", 120),
		RateLimitWindow: src.getDuration("RATE_LIMIT_WINDOW", time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks driver settings and, in production, required secrets.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverSQLite:
		if c.DatabasePath == "" {
			return fmt.Errorf("DATABASE_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	case DriverPebble:
		if c.PebblePath == "" {
			return fmt.Errorf("PEBBLE_PATH is required for the pebble driver")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.ServerID == 0 {
		return fmt.Errorf("SERVER_ID must be positive")
	}
	if c.MaxIDAttempts < 1 {
		return fmt.Errorf("MAX_ID_ATTEMPTS must be at least 1")
	}

	if strings.ToLower(c.Environment) == "production" {
		missing := []string{}
		if c.RelaySecret == "" {
			missing = append(missing, "RELAY_SECRET")
		}
		if len(missing) > 0 {
			return fmt.Errorf("missing required production environment variables: %v", missing)
		}
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.ToLower(c.Environment) == "production"
}

func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return f.values(), nil
}

// source resolves a key from the environment, then the YAML overlay, then a default.
type source struct {
	file map[string]string
}

func (s source) get(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	if value := s.file[key]; value != "" {
		return value
	}
	return defaultValue
}

func (s source) getInt(key string, defaultValue int) int {
	strValue := s.get(key, "")
	if strValue == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(strValue)
	if err != nil {
		log.Printf("Warning: could not parse %s as integer. Using default value.", key)
		return defaultValue
	}
	return intValue
}

func (s source) getDuration(key string, defaultValue time.Duration) time.Duration {
	strValue := s.get(key, "")
	if strValue == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(strValue)
	if err != nil {
		log.Printf("Warning: could not parse %s as duration. Using default value.", key)
		return defaultValue
	}
	return d
}
