// config.go: This file contains the configuration for the faultline services. It defines the settings struct and functions to load and save the settings.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed config.yaml
var configFiles embed.FS

// RotationType defines the type of log rotation
type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

// LogConfig defines the configuration for service file logs
type LogConfig struct {
	Enabled     bool         // true to enable service file logs
	Path        string       // directory for log files
	Rotation    RotationType // log rotation type
	MaxSize     int64        // max size in bytes for RotationSize
	RotationDay string       // day of the week for RotationWeekly ("Sunday", "Monday", etc.)
}

// MainSettings contains the main settings for the faultline node
type MainSettings struct {
	Name string    // node name, used in logs and telemetry
	Log  LogConfig // log rotation settings shared by all service file loggers
}

// SentrySettings contains the error telemetry settings
type SentrySettings struct {
	Enabled     bool   // true to enable Sentry error reporting
	DSN         string // Sentry project DSN
	Environment string // deployment environment tag, e.g. "production"
	Debug       bool   // true to enable Sentry SDK debug output
}

// ConnectionSettings describes a search backend connection
type ConnectionSettings struct {
	Host     string // backend base URL, e.g. http://localhost:9200
	Username string // optional basic auth username
	Password string // optional basic auth password
}

// SearchSettings contains settings for the current-generation search backend
type SearchSettings struct {
	ConnectionSettings `yaml:",inline" mapstructure:",squash"`
	Scope              string  // index name prefix, e.g. "faultline"
	Timeout            int     // per-request timeout in seconds
	RequestsPerSec     float64 // client-side request pacing, 0 to disable
}

// MigrationSettings contains settings for the index generation migration job
type MigrationSettings struct {
	Source        ConnectionSettings // previous-generation backend; required to run a migration
	RetentionDays int                // number of retained daily event partitions to migrate
	CutoffDate    string             // yyyy-mm-dd, earliest event date migrated; older data is left behind
	Collections   []string           // non-partitioned logical collections to migrate
}

// TelemetrySettings contains settings for the Prometheus metrics endpoint
type TelemetrySettings struct {
	Enabled bool   // true to expose metrics over HTTP
	Listen  string // listen address, e.g. "0.0.0.0:8090"
}

// Settings is the root configuration struct
type Settings struct {
	Debug bool // true to enable debug logging

	Main      MainSettings
	Sentry    SentrySettings
	Search    SearchSettings
	Migration MigrationSettings
	Telemetry TelemetrySettings
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into the settings struct.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	// Initialize viper and read config
	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	// Unmarshal the config into settings
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	// Validate settings
	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Set default values for each configuration parameter
	// function defined in defaults.go
	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig creates a default config file and writes it to the default config path
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")
	defaultConfig := getDefaultConfig()

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}
	return string(data)
}

// GetDefaultConfigPaths returns the list of directories searched for config.yaml,
// in priority order: the user config directory, then the current directory.
func GetDefaultConfigPaths() ([]string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("error resolving user config directory: %w", err)
	}
	return []string{
		filepath.Join(configDir, "faultline"),
		".",
	}, nil
}

// FindConfigFile returns the path of the config file currently in use by viper.
func FindConfigFile() (string, error) {
	used := viper.ConfigFileUsed()
	if used == "" {
		return "", fmt.Errorf("no config file in use")
	}
	return used, nil
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, initializing it if necessary
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			_, err := Load()
			if err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// SaveSettings saves the current settings to the configuration file.
func SaveSettings() error {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()

	settingsCopy := *settingsInstance

	configPath, err := FindConfigFile()
	if err != nil {
		return fmt.Errorf("error finding config file: %w", err)
	}

	if err := SaveYAMLConfig(configPath, &settingsCopy); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}

	log.Printf("Settings saved successfully to %s", configPath)
	return nil
}

// SaveYAMLConfig updates the YAML configuration file with new settings.
// It overwrites the existing file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	// Write via a temporary file for an atomic replace
	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary config file: %w", err)
	}
	tempName := tempFile.Name()

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		os.Remove(tempName)
		return fmt.Errorf("error writing temporary config file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("error closing temporary config file: %w", err)
	}

	if err := os.Rename(tempName, configPath); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("error replacing config file: %w", err)
	}

	return nil
}

// CutoffTime parses the configured migration cutoff date. A missing cutoff
// defaults to the start of the retention window.
func (m *MigrationSettings) CutoffTime(now time.Time) (time.Time, error) {
	if m.CutoffDate == "" {
		return now.AddDate(0, 0, -m.RetentionDays).Truncate(24 * time.Hour), nil
	}
	t, err := time.Parse("2006-01-02", m.CutoffDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid migration cutoff date %q: %w", m.CutoffDate, err)
	}
	return t, nil
}

// HasMigrationSource reports whether the previous-generation connection is configured.
func (m *MigrationSettings) HasMigrationSource() bool {
	return m.Source.Host != ""
}
