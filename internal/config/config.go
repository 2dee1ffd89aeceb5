// Package config provides configuration management for simtray.
//
// The configuration is stored in TOML format and supports validation
// and default values for all fields.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"time"

	simerrors "github.com/chazuruo/simtray/internal/errors"
)

// Config is the top-level configuration struct for simtray.
type Config struct {
	Release  ReleaseConfig  `toml:"release"`
	Install  InstallConfig  `toml:"install"`
	Process  ProcessConfig  `toml:"process"`
	Schedule ScheduleConfig `toml:"schedule"`
	Log      LogConfig      `toml:"log"`
	Network  NetworkConfig  `toml:"network"`
	TUI      TUIConfig      `toml:"tui"`
}

// ReleaseConfig describes where releases are published.
type ReleaseConfig struct {
	// APIURL is the base URL of the GitHub REST API.
	APIURL string `toml:"api_url"`

	// Owner and Repo identify the repository whose latest release is tracked.
	Owner string `toml:"owner"`
	Repo  string `toml:"repo"`

	// AssetPattern is the substring an asset name must contain to be installed.
	AssetPattern string `toml:"asset_pattern"`

	// UserAgent is sent with every request; GitHub rejects requests without one.
	UserAgent string `toml:"user_agent"`

	// Timeout bounds a single release query.
	Timeout Duration `toml:"timeout"`

	// DownloadRetries is how many times a failed download is retried.
	DownloadRetries int `toml:"download_retries"`
}

// InstallConfig contains on-disk locations.
type InstallConfig struct {
	// DataDir holds the state markers and logs.
	DataDir string `toml:"data_dir"`

	// InstallDir is where the release archive is extracted.
	// Empty means <data_dir>/binary.
	InstallDir string `toml:"install_dir"`
}

// ProcessConfig describes the supervised executable.
type ProcessConfig struct {
	// Name is matched case-insensitively against running process names.
	Name string `toml:"name"`

	// Executable is the file name inside the install directory.
	Executable string `toml:"executable"`

	// URL is the local web UI served by the running process.
	URL string `toml:"url"`

	// KillTimeout bounds how long Kill waits for the process to exit.
	KillTimeout Duration `toml:"kill_timeout"`

	// KillOnExit stops the supervised process when `simtray run` exits.
	KillOnExit bool `toml:"kill_on_exit"`
}

// ScheduleConfig controls periodic checks.
type ScheduleConfig struct {
	// CheckInterval is the period between automatic update checks.
	CheckInterval Duration `toml:"check_interval"`

	// PowerPollInterval is the tick of the wall-clock resume detector used
	// where no native power notifications exist.
	PowerPollInterval Duration `toml:"power_poll_interval"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is a logrus level name.
	Level string `toml:"level"`

	// File is the log file path, or "console" for stderr.
	File string `toml:"file"`

	MaxSizeMB  int  `toml:"max_size_mb"`
	MaxBackups int  `toml:"max_backups"`
	MaxAgeDays int  `toml:"max_age_days"`
	Compress   bool `toml:"compress"`
}

// NetworkConfig controls the startup connectivity check.
type NetworkConfig struct {
	// RequireConnectivity makes `simtray run` refuse to start when ProbeURL
	// cannot be reached.
	RequireConnectivity bool `toml:"require_connectivity"`

	// ProbeURL is requested with HEAD. Empty means release.api_url.
	ProbeURL string `toml:"probe_url"`
}

// TUIConfig contains terminal UI settings.
type TUIConfig struct {
	// Enabled controls whether prompts use interactive forms (when false,
	// falls back to plain line prompts).
	Enabled bool `toml:"enabled"`
}

// DefaultLogFile is the simtray log file inside dataDir.
func DefaultLogFile(dataDir string) string {
	return filepath.Join(dataDir, "logs", "simtray.log")
}

// DefaultConfig returns a Config with all default values set.
func DefaultConfig() *Config {
	dataDir := defaultDataDir()

	return &Config{
		Release: ReleaseConfig{
			APIURL:          "https://api.github.com",
			Owner:           "wowsims",
			Repo:            "mop",
			AssetPattern:    "wowsimmop-windows.exe.zip",
			UserAgent:       "simtray",
			Timeout:         Duration(30 * time.Second),
			DownloadRetries: 2,
		},
		Install: InstallConfig{
			DataDir:    dataDir,
			InstallDir: "",
		},
		Process: ProcessConfig{
			Name:        "wowsimmop-windows",
			Executable:  defaultExecutable(),
			URL:         "http://localhost:3333/mop/",
			KillTimeout: Duration(10 * time.Second),
			KillOnExit:  true,
		},
		Schedule: ScheduleConfig{
			CheckInterval:     Duration(time.Hour),
			PowerPollInterval: Duration(30 * time.Second),
		},
		Log: LogConfig{
			Level:      "info",
			File:       DefaultLogFile(dataDir),
			MaxSizeMB:  5,
			MaxBackups: 10,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Network: NetworkConfig{
			RequireConnectivity: true,
			ProbeURL:            "",
		},
		TUI: TUIConfig{
			Enabled: true,
		},
	}
}

// BinaryDir returns the directory the release archive is extracted into.
func (c *Config) BinaryDir() string {
	if c.Install.InstallDir != "" {
		return c.Install.InstallDir
	}
	return filepath.Join(c.Install.DataDir, "binary")
}

// ProcessLogPath returns the file receiving the supervised process output.
func (c *Config) ProcessLogPath() string {
	return filepath.Join(c.Install.DataDir, "logs", "process.log")
}

// EffectiveProbeURL returns the URL used by the startup connectivity check.
func (c *Config) EffectiveProbeURL() string {
	if c.Network.ProbeURL != "" {
		return c.Network.ProbeURL
	}
	return c.Release.APIURL
}

// Validate checks the configuration for valid values.
// Returns a nil error if the config is valid, or an error wrapping
// errors.ErrInvalid describing the problem.
func (c *Config) Validate() error {
	// Release section
	if err := validateURL("release.api_url", c.Release.APIURL); err != nil {
		return err
	}
	if c.Release.Owner == "" {
		return invalid("release.owner cannot be empty")
	}
	if c.Release.Repo == "" {
		return invalid("release.repo cannot be empty")
	}
	if c.Release.AssetPattern == "" {
		return invalid("release.asset_pattern cannot be empty")
	}
	if c.Release.UserAgent == "" {
		return invalid("release.user_agent cannot be empty")
	}
	if c.Release.Timeout <= 0 {
		return invalid("release.timeout must be > 0; got %s", c.Release.Timeout)
	}
	if c.Release.DownloadRetries < 0 {
		return invalid("release.download_retries must be >= 0; got %d", c.Release.DownloadRetries)
	}

	// Install section
	if c.Install.DataDir == "" {
		return invalid("install.data_dir cannot be empty")
	}

	// Process section
	if c.Process.Name == "" {
		return invalid("process.name cannot be empty")
	}
	if c.Process.Executable == "" {
		return invalid("process.executable cannot be empty")
	}
	if filepath.Base(c.Process.Executable) != c.Process.Executable {
		return invalid("process.executable must be a bare file name: %q", c.Process.Executable)
	}
	if err := validateURL("process.url", c.Process.URL); err != nil {
		return err
	}
	if c.Process.KillTimeout <= 0 {
		return invalid("process.kill_timeout must be > 0; got %s", c.Process.KillTimeout)
	}

	// Schedule section
	if c.Schedule.CheckInterval < Duration(time.Minute) {
		return invalid("schedule.check_interval must be >= 1m; got %s", c.Schedule.CheckInterval)
	}
	if c.Schedule.PowerPollInterval <= 0 {
		return invalid("schedule.power_poll_interval must be > 0; got %s", c.Schedule.PowerPollInterval)
	}

	// Log section
	validLevels := map[string]bool{
		"panic": true,
		"fatal": true,
		"error": true,
		"warn":  true,
		"info":  true,
		"debug": true,
		"trace": true,
	}
	if !validLevels[c.Log.Level] {
		return invalid("log.level must be one of: panic, fatal, error, warn, info, debug, trace; got %q", c.Log.Level)
	}
	if c.Log.File == "" {
		return invalid("log.file cannot be empty")
	}
	if c.Log.MaxSizeMB < 1 {
		return invalid("log.max_size_mb must be >= 1; got %d", c.Log.MaxSizeMB)
	}
	if c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return invalid("log.max_backups and log.max_age_days must be >= 0")
	}

	// Network section
	if c.Network.ProbeURL != "" {
		if err := validateURL("network.probe_url", c.Network.ProbeURL); err != nil {
			return err
		}
	}

	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", simerrors.ErrInvalid, fmt.Sprintf(format, args...))
}

func validateURL(field, raw string) error {
	if raw == "" {
		return invalid("%s cannot be empty", field)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return invalid("%s must be an absolute http(s) URL; got %q", field, raw)
	}
	return nil
}

// defaultDataDir returns the per-user data directory for simtray.
func defaultDataDir() string {
	if runtime.GOOS == "windows" {
		if dir, err := os.UserConfigDir(); err == nil {
			return filepath.Join(dir, "simtray")
		}
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "simtray")
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "simtray")
	}
	return filepath.Join(homeDir, ".local", "share", "simtray")
}

func defaultExecutable() string {
	if runtime.GOOS == "windows" {
		return "wowsimmop-windows.exe"
	}
	return "wowsimmop-windows"
}
