package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration.
// Values come from defaults, then the JSON file, then the environment,
// then the command line.
type Config struct {
	Feed      FeedConfig      `json:"feed"`
	Broadcast BroadcastConfig `json:"broadcast"`
	Tracking  TrackingConfig  `json:"tracking"`
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Logging   LoggingConfig   `json:"logging"`
}

// FeedConfig describes the SBS-1 source.
type FeedConfig struct {
	// Host is the dump1090 host name or address (required)
	Host string `json:"host"`

	// Port is the SBS-1 output port (default: 30003)
	Port int `json:"port"`

	// RetryDelayMS is the pause between reconnect attempts (default: 1000)
	RetryDelayMS int `json:"retry_delay_ms"`

	// DialTimeoutSeconds bounds one connection attempt (default: 10)
	DialTimeoutSeconds int `json:"dial_timeout_seconds"`
}

// BroadcastConfig describes the XGPS output.
type BroadcastConfig struct {
	// Address is the destination (default: "255.255.255.255")
	Address string `json:"address"`

	// Port is the destination port (default: 49002)
	Port int `json:"port"`

	// DeviceID is written after the XGPS prefix (default: "adsb_xgps")
	DeviceID string `json:"device_id"`

	// IntervalMS is the broadcast period (default: 1000)
	IntervalMS int `json:"interval_ms"`

	// StaleAfterSeconds stops broadcasting when the last report is older (default: 5)
	StaleAfterSeconds int `json:"stale_after_seconds"`
}

// TrackingConfig holds the startup tracked callsign.
type TrackingConfig struct {
	// Callsign is matched case-insensitively (required)
	Callsign string `json:"callsign"`
}

// ServerConfig contains HTTP dashboard configuration.
type ServerConfig struct {
	// Port is the HTTP server port (default: 8081)
	Port string `json:"port"`

	// Host is the server bind address (default: "0.0.0.0")
	Host string `json:"host"`

	// AllowedOrigins lists CORS origins for the JSON endpoints
	AllowedOrigins []string `json:"allowed_origins"`
}

// DatabaseConfig contains the optional broadcast history database.
type DatabaseConfig struct {
	// Enabled turns on broadcast history (default: false)
	Enabled bool `json:"enabled"`

	// Host is the database server hostname
	Host string `json:"host"`

	// Port is the database server port
	Port int `json:"port"`

	// Database is the database name
	Database string `json:"database"`

	// Username for database authentication
	Username string `json:"username"`

	// Password for database authentication (should be loaded from environment)
	Password string `json:"password"`

	// SSLMode for PostgreSQL connections (disable, require, verify-ca, verify-full)
	SSLMode string `json:"ssl_mode"`

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int `json:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int `json:"max_idle_conns"`

	// RetentionHours is how long broadcast history is kept (default: 24)
	RetentionHours int `json:"retention_hours"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// File, if set, receives a rotated copy of the log
	File string `json:"file"`

	// MaxSizeMB rotates the file at this size (default: 10)
	MaxSizeMB int `json:"max_size_mb"`

	// MaxBackups is the number of rotated files kept (default: 3)
	MaxBackups int `json:"max_backups"`

	// MaxAgeDays removes rotated files older than this (default: 7)
	MaxAgeDays int `json:"max_age_days"`

	// Debug adds file:line to log lines and dumps the registry every second
	Debug bool `json:"debug"`
}

// Address returns host:port of the feed.
func (f FeedConfig) Address() string {
	return net.JoinHostPort(f.Host, strconv.Itoa(f.Port))
}

// RetryDelay returns the reconnect delay.
func (f FeedConfig) RetryDelay() time.Duration {
	return time.Duration(f.RetryDelayMS) * time.Millisecond
}

// DialTimeout returns the per-attempt connect timeout.
func (f FeedConfig) DialTimeout() time.Duration {
	return time.Duration(f.DialTimeoutSeconds) * time.Second
}

// Interval returns the broadcast period.
func (b BroadcastConfig) Interval() time.Duration {
	return time.Duration(b.IntervalMS) * time.Millisecond
}

// StaleAfter returns the staleness threshold.
func (b BroadcastConfig) StaleAfter() time.Duration {
	return time.Duration(b.StaleAfterSeconds) * time.Second
}

// Addr returns the listen address of the dashboard.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

// Retention returns how long broadcast history is kept.
func (d DatabaseConfig) Retention() time.Duration {
	return time.Duration(d.RetentionHours) * time.Hour
}

// Load reads configuration from a JSON file over the defaults.
// If the file doesn't exist, returns default configuration.
// Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg.applyEnvironmentOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvironmentOverrides()

	return cfg, nil
}

// LoadDotEnv loads KEY=value pairs from a .env file into the process
// environment. Variables already set are left alone. A missing file is
// not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Save writes the configuration to a JSON file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the settings needed to start.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Feed.Host) == "" {
		return errors.New("feed host is required")
	}
	if strings.TrimSpace(c.Tracking.Callsign) == "" {
		return errors.New("tracking callsign is required")
	}
	if err := checkPort("feed port", c.Feed.Port); err != nil {
		return err
	}
	if err := checkPort("broadcast port", c.Broadcast.Port); err != nil {
		return err
	}
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil {
		return fmt.Errorf("invalid server port %q: %w", c.Server.Port, err)
	}
	if err := checkPort("server port", port); err != nil {
		return err
	}
	if c.Broadcast.Address == "" {
		return errors.New("broadcast address is required")
	}
	if c.Broadcast.IntervalMS <= 0 {
		return fmt.Errorf("broadcast interval must be positive, got %dms", c.Broadcast.IntervalMS)
	}
	return nil
}

func checkPort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s %d out of range 1-65535", name, port)
	}
	return nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Feed: FeedConfig{
			Port:               30003,
			RetryDelayMS:       1000,
			DialTimeoutSeconds: 10,
		},
		Broadcast: BroadcastConfig{
			Address:           "255.255.255.255",
			Port:              49002,
			DeviceID:          "adsb_xgps",
			IntervalMS:        1000,
			StaleAfterSeconds: 5,
		},
		Server: ServerConfig{
			Port:           "8081",
			Host:           "0.0.0.0",
			AllowedOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Enabled:        false,
			Host:           "localhost",
			Port:           5432,
			Database:       "adsbxgps",
			Username:       "adsbxgps",
			SSLMode:        "disable",
			MaxOpenConns:   5,
			MaxIdleConns:   2,
			RetentionHours: 24,
		},
		Logging: LoggingConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
// This allows sensitive data like passwords to be kept out of config files.
func (c *Config) applyEnvironmentOverrides() {
	if host := os.Getenv("ADSB_XGPS_FEED_HOST"); host != "" {
		c.Feed.Host = host
	}
	if callsign := os.Getenv("ADSB_XGPS_CALLSIGN"); callsign != "" {
		c.Tracking.Callsign = callsign
	}
	if addr := os.Getenv("ADSB_XGPS_BROADCAST"); addr != "" {
		c.Broadcast.Address = addr
	}
	if port := os.Getenv("ADSB_XGPS_PORT"); port != "" {
		c.Server.Port = port
	}
	if dbPassword := os.Getenv("ADSB_XGPS_DB_PASSWORD"); dbPassword != "" {
		c.Database.Password = dbPassword
	}
	if logFile := os.Getenv("ADSB_XGPS_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}
}
