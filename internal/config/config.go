// Package config holds runtime configuration and the persisted settings
// document for the Shepherd agent.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	// Global configuration instance
	globalConfig *Config
	configMutex  sync.RWMutex
)

// Get returns the global configuration instance
// If the configuration has not been initialized, it will return an error
func Get() (*Config, error) {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if globalConfig == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}

	return globalConfig, nil
}

// Set sets the global configuration instance
func Set(cfg *Config) {
	configMutex.Lock()
	defer configMutex.Unlock()

	globalConfig = cfg
}

// Config represents the complete application configuration
type Config struct {
	GitHub   GitHubConfig
	Watch    WatchConfig
	Git      GitConfig
	Network  NetworkConfig
	Database DatabaseConfig
	Logging  LoggingConfig

	configDir string // Internal: Directory where config was loaded from
}

// GitHubConfig represents GitHub-specific configuration
type GitHubConfig struct {
	APIURL            string        // GitHub API base URL
	RequestTimeout    time.Duration // Request timeout for GitHub API calls
	CreateTimeout     time.Duration // Longer timeout for repository creation
	RequestsPerMinute int           // Client-side throttle on API requests
}

// WatchConfig controls folder discovery, change detection and scheduling
type WatchConfig struct {
	ScanInterval   time.Duration // Full re-scan of watch roots for new projects
	CheckInterval  time.Duration // Modification-time check of known projects
	DebounceWindow time.Duration // Quiet period before a changed project is enqueued
	SyncInterval   time.Duration // Queue drain tick
	WatchMode      bool          // Use native filesystem events in addition to polling
}

// GitConfig controls local repository bootstrap
type GitConfig struct {
	DefaultBranch string // Branch name used for every managed repository
}

// NetworkConfig controls the reachability probe
type NetworkConfig struct {
	ProbeURL      string        // URL probed to decide reachability
	ProbeInterval time.Duration // How often to probe
	ProbeTimeout  time.Duration // Per-probe timeout
}

// DatabaseConfig represents the sync-history database configuration
type DatabaseConfig struct {
	Path            string        // Path to the SQLite database file
	JournalMode     string        // Journal mode (WAL recommended)
	SynchronousMode string        // Synchronous mode
	BusyTimeout     int           // Busy timeout in milliseconds
	ForeignKeys     bool          // Whether to enforce foreign key constraints
	ConnMaxLife     time.Duration // Maximum connection lifetime
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string // debug, info, warn, error
	Format     string // text or json
	Output     string // stdout, stderr, or file path
	AddSource  bool   // Include source code position in logs
	TimeFormat string // Time format for logs (empty uses RFC3339)
	MaxSizeMB  int    // Rotation threshold for file output
	MaxBackups int    // Rotated files to keep
}

// New returns a new empty Config
func New() *Config {
	return &Config{
		GitHub:   GitHubConfig{},
		Watch:    WatchConfig{},
		Git:      GitConfig{},
		Network:  NetworkConfig{},
		Database: DatabaseConfig{},
		Logging:  LoggingConfig{},
	}
}

// ConfigDir returns the directory the configuration was loaded from
func (c *Config) ConfigDir() string {
	return c.configDir
}

// SettingsPath returns the path of the persisted settings document
func (c *Config) SettingsPath() string {
	return c.configDir + string(os.PathSeparator) + "settings.json"
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.validateWatch(); err != nil {
		return fmt.Errorf("watch config: %w", err)
	}

	if err := c.validateNetwork(); err != nil {
		return fmt.Errorf("network config: %w", err)
	}

	if err := c.validateLogging(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func (c *Config) validateWatch() error {
	if c.Watch.ScanInterval <= 0 {
		return fmt.Errorf("scan_interval must be positive")
	}
	if c.Watch.CheckInterval <= 0 {
		return fmt.Errorf("check_interval must be positive")
	}
	if c.Watch.DebounceWindow <= 0 {
		return fmt.Errorf("debounce_window must be positive")
	}
	if c.Watch.SyncInterval <= 0 {
		return fmt.Errorf("sync_interval must be positive")
	}
	return nil
}

func (c *Config) validateNetwork() error {
	if c.Network.ProbeURL == "" {
		return fmt.Errorf("probe_url cannot be empty")
	}
	if c.Network.ProbeTimeout <= 0 {
		return fmt.Errorf("probe_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	format := strings.ToLower(c.Logging.Format)
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}
	return nil
}

// ParseLogLevel parses a log level string to a slog.Level
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
	case "none":
		// Set to a very high level that won't be triggered
		return slog.Level(9999)
	default:
		return slog.LevelInfo
	}
}

// getEnvString returns a string from the environment variable
func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns an int from the environment variable
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool returns a bool from the environment variable
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration returns a time.Duration from the environment variable
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
