package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// LoadFromEnv loads configuration from environment variables.
// Parameters:
// - configDir: Directory containing config files (or empty for default, ~/.shepherd)
func LoadFromEnv(configDir string) (*Config, error) {
	cfg := New()

	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".shepherd")
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}
	cfg.configDir = configDir

	// Check if ENV_FILE_PATH is set to load from a custom .env file
	envFilePath := getEnvString("ENV_FILE_PATH", "")
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			return nil, fmt.Errorf("loading env file from %s: %w", envFilePath, err)
		}
	} else {
		// Try to load from config directory first, then current directory
		if err := godotenv.Load(filepath.Join(configDir, ".env")); err != nil {
			_ = godotenv.Load() // Ignore errors if file doesn't exist
		}
	}

	cfg.GitHub = GitHubConfig{
		APIURL:            getEnvString("SHEPHERD_GITHUB_API_URL", "https://api.github.com"),
		RequestTimeout:    getEnvDuration("SHEPHERD_GITHUB_TIMEOUT", 30*time.Second),
		CreateTimeout:     getEnvDuration("SHEPHERD_GITHUB_CREATE_TIMEOUT", 60*time.Second),
		RequestsPerMinute: getEnvInt("SHEPHERD_GITHUB_REQUESTS_PER_MINUTE", 30),
	}

	cfg.Watch = WatchConfig{
		ScanInterval:   getEnvDuration("SHEPHERD_SCAN_INTERVAL", 30*time.Second),
		CheckInterval:  getEnvDuration("SHEPHERD_CHECK_INTERVAL", 5*time.Second),
		DebounceWindow: getEnvDuration("SHEPHERD_DEBOUNCE_WINDOW", 3*time.Second),
		SyncInterval:   getEnvDuration("SHEPHERD_SYNC_INTERVAL", 10*time.Second),
		WatchMode:      getEnvBool("SHEPHERD_WATCH_MODE", false),
	}

	cfg.Git = GitConfig{
		DefaultBranch: getEnvString("SHEPHERD_DEFAULT_BRANCH", "main"),
	}

	cfg.Network = NetworkConfig{
		ProbeURL:      getEnvString("SHEPHERD_PROBE_URL", "https://api.github.com"),
		ProbeInterval: getEnvDuration("SHEPHERD_PROBE_INTERVAL", 10*time.Second),
		ProbeTimeout:  getEnvDuration("SHEPHERD_PROBE_TIMEOUT", 5*time.Second),
	}

	cfg.Database = DatabaseConfig{
		Path:            getEnvString("SHEPHERD_DB_PATH", filepath.Join(configDir, "shepherd.db")),
		JournalMode:     getEnvString("SHEPHERD_DB_JOURNAL_MODE", "WAL"),
		SynchronousMode: getEnvString("SHEPHERD_DB_SYNCHRONOUS", "NORMAL"),
		BusyTimeout:     getEnvInt("SHEPHERD_DB_BUSY_TIMEOUT", 5000),
		ForeignKeys:     getEnvBool("SHEPHERD_DB_FOREIGN_KEYS", true),
		ConnMaxLife:     getEnvDuration("SHEPHERD_DB_CONN_MAX_LIFE", time.Hour),
	}

	cfg.Logging = LoggingConfig{
		Level:      getEnvString("SHEPHERD_LOG_LEVEL", "info"),
		Format:     getEnvString("SHEPHERD_LOG_FORMAT", "text"),
		Output:     getEnvString("SHEPHERD_LOG_OUTPUT", filepath.Join(configDir, "shepherd.log")),
		AddSource:  getEnvBool("SHEPHERD_LOG_ADD_SOURCE", false),
		TimeFormat: getEnvString("SHEPHERD_LOG_TIME_FORMAT", time.RFC3339),
		MaxSizeMB:  getEnvInt("SHEPHERD_LOG_MAX_SIZE_MB", 10),
		MaxBackups: getEnvInt("SHEPHERD_LOG_MAX_BACKUPS", 3),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}
