package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"

	"github.com/tildaslashalef/shepherd/internal/loggy"
)

// SchemaVersion is the current settings document version
const SchemaVersion = 1

// keyringService is the service name used for token storage in the OS keyring
const keyringService = "shepherd"

// DefaultIgnorePatterns is applied whenever a settings document carries no
// ignore patterns of its own.
var DefaultIgnorePatterns = []string{
	"node_modules/",
	".git/",
	"dist/",
	"build/",
	"target/",
	"vendor/",
	"__pycache__/",
	".venv/",
	".idea/",
	".vscode/",
	".DS_Store",
	"*.log",
	"*.tmp",
}

// Settings is the persisted JSON settings document
type Settings struct {
	SchemaVersion  int      `json:"schema_version"`
	Account        string   `json:"account"`
	Token          string   `json:"token,omitempty"`
	WatchRoots     []string `json:"watch_roots"`
	IgnorePatterns []string `json:"ignore_patterns"`
	TrayEnabled    bool     `json:"tray_enabled"`
}

// DefaultSettings returns a settings document with defaults applied
func DefaultSettings() *Settings {
	return &Settings{
		SchemaVersion:  SchemaVersion,
		IgnorePatterns: append([]string(nil), DefaultIgnorePatterns...),
		TrayEnabled:    true,
	}
}

// SettingsStore loads and saves the settings document. The access token is
// kept in the OS keyring when one is available; the JSON field is only a
// fallback for headless machines without a keyring daemon.
type SettingsStore struct {
	path   string
	logger *loggy.Logger
}

// NewSettingsStore creates a settings store for the given document path
func NewSettingsStore(path string, logger *loggy.Logger) *SettingsStore {
	return &SettingsStore{
		path:   path,
		logger: logger,
	}
}

// Path returns the settings document path
func (s *SettingsStore) Path() string {
	return s.path
}

// Load reads the settings document. A missing file yields defaults, not an
// error, so a fresh install works without an init step.
func (s *SettingsStore) Load() (*Settings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Debug("Settings file not found, using defaults", "path", s.path)
			return DefaultSettings(), nil
		}
		return nil, fmt.Errorf("reading settings: %w", err)
	}

	settings := &Settings{}
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parsing settings: %w", err)
	}

	if settings.SchemaVersion == 0 {
		settings.SchemaVersion = SchemaVersion
	}
	if len(settings.IgnorePatterns) == 0 {
		settings.IgnorePatterns = append([]string(nil), DefaultIgnorePatterns...)
	}

	// Prefer the keyring token over whatever is in the file
	if settings.Account != "" {
		token, err := keyring.Get(keyringService, settings.Account)
		switch {
		case err == nil:
			settings.Token = token
		case errors.Is(err, keyring.ErrNotFound):
			// Keep the file token, if any
		default:
			s.logger.Warn("Keyring unavailable, falling back to settings file token", "error", err)
		}
	}

	return settings, nil
}

// Save writes the settings document atomically. The token is moved into the
// keyring when possible and then dropped from the JSON on disk.
func (s *SettingsStore) Save(settings *Settings) error {
	if settings.SchemaVersion == 0 {
		settings.SchemaVersion = SchemaVersion
	}

	onDisk := *settings
	if settings.Account != "" && settings.Token != "" {
		if err := keyring.Set(keyringService, settings.Account, settings.Token); err != nil {
			s.logger.Warn("Failed to store token in keyring, keeping it in settings file", "error", err)
		} else {
			onDisk.Token = ""
		}
	}

	data, err := json.MarshalIndent(&onDisk, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing settings: %w", err)
	}

	return nil
}
