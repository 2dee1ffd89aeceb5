// Package cli provides global state and utilities for CLI commands.
package cli

import (
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/chazuruo/simtray/internal/config"
	"github.com/chazuruo/simtray/internal/logging"
)

var (
	// NoTUI indicates that TUI/interactive mode should be disabled.
	// This is set by the global --no-tui flag.
	NoTUI bool

	// ConfigPath overrides the config file location (--config).
	ConfigPath string

	// LogLevel overrides [log].level (--log-level).
	LogLevel string

	// noTUIMutex protects NoTUI for concurrent access.
	noTUIMutex sync.RWMutex
)

// AddGlobalFlags adds global flags to a command.
func AddGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVar(&NoTUI, "no-tui", false,
		"disable TUI/interactive mode; use plain text output")
	cmd.PersistentFlags().StringVar(&ConfigPath, "config", "",
		"config file path (default "+config.DefaultConfigPath()+")")
	cmd.PersistentFlags().StringVar(&LogLevel, "log-level", "",
		"log level: trace, debug, info, warn, error")
}

// IsNoTUI returns true if TUI mode is disabled.
func IsNoTUI() bool {
	noTUIMutex.RLock()
	defer noTUIMutex.RUnlock()
	return NoTUI
}

// loadConfig loads the config selected by the global flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithDefaults(ConfigPath)
	if err != nil {
		return nil, err
	}
	if LogLevel != "" {
		cfg.Log.Level = LogLevel
	}
	return cfg, nil
}

// setup loads the config and initializes logging.
func setup() (*config.Config, io.Closer, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	closer, err := logging.Init(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, closer, nil
}

// configPathInUse returns the file the config was read from.
func configPathInUse() string {
	if ConfigPath != "" {
		return ConfigPath
	}
	if p := config.DetectConfigPath(); p != "" {
		return p
	}
	return "(defaults)"
}

// useTUI reports whether prompts can use interactive forms.
func useTUI(cfg *config.Config) bool {
	return !IsNoTUI() && cfg.TUI.Enabled && isTerminal()
}

func isTerminal() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}
