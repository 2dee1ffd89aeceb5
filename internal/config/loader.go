package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	simerrors "github.com/chazuruo/simtray/internal/errors"
)

// DefaultConfigPath returns <UserConfigDir>/simtray/config.toml, or an empty
// string when the user config directory cannot be determined.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "simtray", "config.toml")
}

// DetectConfigPath returns the default config path if a file exists there,
// or an empty string (caller should use defaults).
func DetectConfigPath() string {
	configPath := DefaultConfigPath()
	if configPath == "" {
		return ""
	}
	if _, err := os.Stat(configPath); err == nil {
		return configPath
	}
	return ""
}

// Load loads a config from the specified path.
// If the file doesn't exist, returns an error wrapping errors.ErrNotFound.
// After loading, applies environment variable overrides and validates.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &simerrors.ConfigError{Path: path, Err: simerrors.ErrNotFound}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &simerrors.ConfigError{Path: path, Err: fmt.Errorf("failed to read: %w", err)}
	}

	// Start with defaults
	cfg := DefaultConfig()

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, &simerrors.ConfigError{Path: path, Err: fmt.Errorf("failed to parse: %w", err)}
	}

	applyEnvOverrides(cfg)
	expandPaths(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, &simerrors.ConfigError{Path: path, Err: fmt.Errorf("validation failed: %w", err)}
	}

	return cfg, nil
}

// LoadWithDefaults loads path when non-empty, otherwise the file at the
// default location. If no config file is found, returns a validated config
// with all default values plus environment overrides.
func LoadWithDefaults(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}

	configPath := DetectConfigPath()
	if configPath != "" {
		return Load(configPath)
	}

	cfg := DefaultConfig()
	applyEnvOverrides(cfg)
	expandPaths(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, &simerrors.ConfigError{Err: fmt.Errorf("validation failed: %w", err)}
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Environment variables follow the pattern: SIMTRAY_<SECTION>_<FIELD>
//
// Examples:
// - SIMTRAY_RELEASE_OWNER overrides [release].owner
// - SIMTRAY_SCHEDULE_CHECK_INTERVAL overrides [schedule].check_interval
// - SIMTRAY_LOG_LEVEL overrides [log].level
//
// Boolean fields: use "true"/"false" strings
// Duration fields: Go duration strings ("90s", "2h")
func applyEnvOverrides(c *Config) {
	applyString := func(key string, target *string) {
		if val, ok := os.LookupEnv(key); ok && val != "" {
			*target = val
		}
	}

	applyBool := func(key string, target *bool) {
		if val, ok := os.LookupEnv(key); ok && val != "" {
			switch strings.ToLower(val) {
			case "true", "1", "yes", "on":
				*target = true
			case "false", "0", "no", "off":
				*target = false
			}
		}
	}

	applyInt := func(key string, target *int) {
		if val, ok := os.LookupEnv(key); ok && val != "" {
			var i int
			if _, err := fmt.Sscanf(val, "%d", &i); err == nil {
				*target = i
			}
		}
	}

	applyDuration := func(key string, target *Duration) {
		if val, ok := os.LookupEnv(key); ok && val != "" {
			if d, err := time.ParseDuration(val); err == nil {
				*target = Duration(d)
			}
		}
	}

	// Release section
	applyString("SIMTRAY_RELEASE_API_URL", &c.Release.APIURL)
	applyString("SIMTRAY_RELEASE_OWNER", &c.Release.Owner)
	applyString("SIMTRAY_RELEASE_REPO", &c.Release.Repo)
	applyString("SIMTRAY_RELEASE_ASSET_PATTERN", &c.Release.AssetPattern)
	applyString("SIMTRAY_RELEASE_USER_AGENT", &c.Release.UserAgent)
	applyDuration("SIMTRAY_RELEASE_TIMEOUT", &c.Release.Timeout)
	applyInt("SIMTRAY_RELEASE_DOWNLOAD_RETRIES", &c.Release.DownloadRetries)

	// Install section
	applyString("SIMTRAY_INSTALL_DATA_DIR", &c.Install.DataDir)
	applyString("SIMTRAY_INSTALL_INSTALL_DIR", &c.Install.InstallDir)

	// Process section
	applyString("SIMTRAY_PROCESS_NAME", &c.Process.Name)
	applyString("SIMTRAY_PROCESS_EXECUTABLE", &c.Process.Executable)
	applyString("SIMTRAY_PROCESS_URL", &c.Process.URL)
	applyDuration("SIMTRAY_PROCESS_KILL_TIMEOUT", &c.Process.KillTimeout)
	applyBool("SIMTRAY_PROCESS_KILL_ON_EXIT", &c.Process.KillOnExit)

	// Schedule section
	applyDuration("SIMTRAY_SCHEDULE_CHECK_INTERVAL", &c.Schedule.CheckInterval)
	applyDuration("SIMTRAY_SCHEDULE_POWER_POLL_INTERVAL", &c.Schedule.PowerPollInterval)

	// Log section
	applyString("SIMTRAY_LOG_LEVEL", &c.Log.Level)
	applyString("SIMTRAY_LOG_FILE", &c.Log.File)
	applyInt("SIMTRAY_LOG_MAX_SIZE_MB", &c.Log.MaxSizeMB)
	applyInt("SIMTRAY_LOG_MAX_BACKUPS", &c.Log.MaxBackups)
	applyInt("SIMTRAY_LOG_MAX_AGE_DAYS", &c.Log.MaxAgeDays)
	applyBool("SIMTRAY_LOG_COMPRESS", &c.Log.Compress)

	// Network section
	applyBool("SIMTRAY_NETWORK_REQUIRE_CONNECTIVITY", &c.Network.RequireConnectivity)
	applyString("SIMTRAY_NETWORK_PROBE_URL", &c.Network.ProbeURL)

	// TUI section
	applyBool("SIMTRAY_TUI_ENABLED", &c.TUI.Enabled)
}

// expandPaths expands ~ to the home directory in filesystem paths.
func expandPaths(c *Config) {
	c.Install.DataDir = expandHome(c.Install.DataDir)
	c.Install.InstallDir = expandHome(c.Install.InstallDir)
	if c.Log.File != "console" {
		c.Log.File = expandHome(c.Log.File)
	}
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") && path != "~" {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, strings.TrimPrefix(strings.TrimPrefix(path, "~"), "/"))
}
