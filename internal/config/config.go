package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Server holds all configuration for the polycalcd HTTP server.
// YAML file first, then POLYCALC_* environment variables on top.
type Server struct {
	// Network
	BindAddress string `yaml:"bind_address" env:"POLYCALC_BIND_ADDRESS"`
	Port        int    `yaml:"port" env:"POLYCALC_PORT"`

	// Logging
	LogLevel string `yaml:"log_level" env:"POLYCALC_LOG_LEVEL"`

	// Catalog
	DefaultVersion string   `yaml:"default_version" env:"POLYCALC_DEFAULT_VERSION"`
	Tribes         []string `yaml:"tribes" env:"POLYCALC_TRIBES"` // tag filter for unit lists, empty = all

	// HTTP timeouts
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"POLYCALC_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"POLYCALC_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"POLYCALC_SHUTDOWN_TIMEOUT"`

	// Websocket brawl sessions
	MaxSessions int `yaml:"max_sessions" env:"POLYCALC_MAX_SESSIONS"`

	// Database (optional scenario store)
	Database DatabaseConfig `yaml:"database"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled" env:"POLYCALC_DB_ENABLED"`
	Host     string `yaml:"host" env:"POLYCALC_DB_HOST"`
	Port     int    `yaml:"port" env:"POLYCALC_DB_PORT"`
	User     string `yaml:"user" env:"POLYCALC_DB_USER"`
	Password string `yaml:"password" env:"POLYCALC_DB_PASSWORD"`
	DBName   string `yaml:"dbname" env:"POLYCALC_DB_NAME"`
	SSLMode  string `yaml:"sslmode" env:"POLYCALC_DB_SSLMODE"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// DefaultServer returns Server config with sensible defaults.
func DefaultServer() Server {
	return Server{
		BindAddress:     "0.0.0.0",
		Port:            8080,
		LogLevel:        "info",
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		MaxSessions:     256,
		Database: DatabaseConfig{
			Enabled:  false,
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "polycalc",
			Password: "polycalc",
			DBName:   "polycalc",
			SSLMode:  "disable",
		},
	}
}

// Addr returns the listen address.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.BindAddress, s.Port)
}

// LoadServer loads server config from a YAML file and applies env overrides.
// If the file doesn't exist, defaults are used.
func LoadServer(path string) (Server, error) {
	cfg := DefaultServer()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing environment: %w", err)
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return cfg, fmt.Errorf("invalid port %d", cfg.Port)
	}
	return cfg, nil
}

// ParseLogLevel converts string log level to slog.Level.
// Defaults to Info if invalid or empty.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
