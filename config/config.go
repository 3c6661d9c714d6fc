// Package config loads the gateway configuration from the environment (with
// .env support) and from optional YAML override files.
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

// Default channel identifiers of the external lookup service.
const (
	DefaultPrimaryChannel = "@LEDERDATA_OFC_BOT"
	DefaultBackupChannel  = "@lederdata_publico_bot"
)

// Config represents the gateway configuration - all settings from .env
type Config struct {
	Port      string `json:"port"`
	PublicURL string `json:"public_url"`

	// Transport credentials
	APIID         int    `json:"api_id"`
	APIHash       string `json:"-"`
	SessionString string `json:"-"`
	BotToken      string `json:"-"`

	// Channel identifiers (primary and backup lookup bots)
	PrimaryChannel string `json:"primary_channel"`
	BackupChannel  string `json:"backup_channel"`

	// Directories
	DownloadDir string `json:"download_dir"`
	CacheDir    string `json:"cache_dir"`
	LogDir      string `json:"log_dir"`

	// Collection timing
	TimeoutPrimary      time.Duration `json:"timeout_primary"`       // total budget on the primary channel
	TimeoutBackup       time.Duration `json:"timeout_backup"`        // budget on backup after a throttle escalation
	TimeoutBackupNormal time.Duration `json:"timeout_backup_normal"` // budget on backup when primary is blocked
	QuietPeriod         time.Duration `json:"quiet_period"`          // inactivity window that ends collection early
	PollInterval        time.Duration `json:"poll_interval"`         // wait-loop tick

	// Circuit breaker
	BlockWindow time.Duration `json:"block_window"` // how long a failed channel is avoided

	// Caching
	CacheEnabled bool `json:"cache_enabled"`

	// Extra record-boundary labels (loaded from pivots_override.yaml)
	ExtraPivotKeys []string `json:"extra_pivot_keys"`
}

// GetDefaultConfig returns a default configuration for testing
func GetDefaultConfig() *Config {
	return &Config{
		Port:                "8080",
		PrimaryChannel:      DefaultPrimaryChannel,
		BackupChannel:       DefaultBackupChannel,
		DownloadDir:         "downloads",
		CacheDir:            "cache",
		LogDir:              "logs",
		TimeoutPrimary:      35 * time.Second,
		TimeoutBackup:       18 * time.Second,
		TimeoutBackupNormal: 50 * time.Second,
		QuietPeriod:         4500 * time.Millisecond,
		PollInterval:        500 * time.Millisecond,
		BlockWindow:         3 * time.Hour,
		CacheEnabled:        true,
	}
}

// LoadConfigWithEnv loads configuration from .env / the process environment.
// Missing transport credentials are not a load error: queries fail with a
// configuration error instead, so the gateway can still serve /health and
// /status.
func LoadConfigWithEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env file: %w", err)
	}

	cfg := GetDefaultConfig()

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}
	cfg.PublicURL = strings.TrimRight(os.Getenv("PUBLIC_URL"), "/")

	if apiID := os.Getenv("API_ID"); apiID != "" {
		id, err := strconv.Atoi(apiID)
		if err != nil {
			return nil, fmt.Errorf("invalid API_ID %q: %w", apiID, err)
		}
		cfg.APIID = id
	}
	cfg.APIHash = os.Getenv("API_HASH")
	cfg.SessionString = os.Getenv("SESSION_STRING")
	cfg.BotToken = os.Getenv("BOT_TOKEN")

	if primary := os.Getenv("PRIMARY_CHANNEL"); primary != "" {
		cfg.PrimaryChannel = primary
	}
	if backup := os.Getenv("BACKUP_CHANNEL"); backup != "" {
		cfg.BackupChannel = backup
	}
	log.Printf("🔧 Configured channels: primary=%s backup=%s", cfg.PrimaryChannel, cfg.BackupChannel)

	if dir := os.Getenv("DOWNLOAD_DIR"); dir != "" {
		cfg.DownloadDir = dir
	}
	if dir := os.Getenv("CACHE_DIR"); dir != "" {
		cfg.CacheDir = dir
	}
	if dir := os.Getenv("LOG_DIR"); dir != "" {
		cfg.LogDir = dir
	}

	var err error
	if cfg.TimeoutPrimary, err = envDuration("TIMEOUT_PRIMARY", cfg.TimeoutPrimary); err != nil {
		return nil, err
	}
	if cfg.TimeoutBackup, err = envDuration("TIMEOUT_BACKUP", cfg.TimeoutBackup); err != nil {
		return nil, err
	}
	if cfg.TimeoutBackupNormal, err = envDuration("TIMEOUT_BACKUP_NORMAL", cfg.TimeoutBackupNormal); err != nil {
		return nil, err
	}
	if cfg.QuietPeriod, err = envDuration("QUIET_PERIOD", cfg.QuietPeriod); err != nil {
		return nil, err
	}
	if cfg.PollInterval, err = envDuration("POLL_INTERVAL", cfg.PollInterval); err != nil {
		return nil, err
	}
	if cfg.BlockWindow, err = envDuration("BLOCK_WINDOW", cfg.BlockWindow); err != nil {
		return nil, err
	}

	if cacheEnabled := os.Getenv("CACHE_ENABLED"); cacheEnabled != "" {
		cfg.CacheEnabled = cacheEnabled != "false" && cacheEnabled != "0"
	}

	if !cfg.IsConfigured() {
		log.Printf("⚠️  No transport credentials configured, queries will fail until BOT_TOKEN or API_ID/API_HASH/SESSION_STRING are set")
	}

	// Load extra pivot keys from YAML file
	extraPivots, err := LoadPivotOverrides()
	if err != nil {
		log.Printf("⚠️  Warning: Failed to load pivot overrides from pivots_override.yaml: %v", err)
		// Continue with the built-in pivot set instead of failing
	} else {
		cfg.ExtraPivotKeys = extraPivots
	}

	return cfg, nil
}

// IsConfigured reports whether transport credentials are present. The
// collector refuses to run a query without them.
func (c *Config) IsConfigured() bool {
	if c.BotToken != "" {
		return true
	}
	return c.APIID != 0 && c.APIHash != "" && c.SessionString != ""
}

// envDuration reads a duration environment variable, keeping the fallback
// when the variable is unset.
func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

// pivotOverridesYAML represents the structure of pivots_override.yaml
type pivotOverridesYAML struct {
	ExtraPivotKeys []string `yaml:"extraPivotKeys"`
}

// LoadPivotOverrides loads extra record-boundary labels from
// pivots_override.yaml. Returns an empty list if the file doesn't exist
// (no error).
func LoadPivotOverrides() ([]string, error) {
	return loadPivotOverrides("pivots_override.yaml")
}

func loadPivotOverrides(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open %s: %v", path, err)
	}
	defer file.Close()

	var yamlData pivotOverridesYAML
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&yamlData); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %v", path, err)
	}

	if len(yamlData.ExtraPivotKeys) > 0 {
		log.Printf("📝 Loaded %d extra pivot keys from %s", len(yamlData.ExtraPivotKeys), path)
	}

	return yamlData.ExtraPivotKeys, nil
}
