// Package cli provides tests for CLI commands.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chazuruo/simtray/internal/config"
	"github.com/chazuruo/simtray/internal/coordinator"
	"github.com/chazuruo/simtray/internal/upgrade"
)

func withNoTUI(t *testing.T) {
	t.Helper()
	prev := NoTUI
	NoTUI = true
	t.Cleanup(func() { NoTUI = prev })
}

// TestInitNonInteractive_WritesConfig verifies that init writes a config
// that loads back with the flag values applied.
func TestInitNonInteractive_WritesConfig(t *testing.T) {
	withNoTUI(t)
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")
	dataDir := filepath.Join(tmpDir, "data")

	opts := &InitOptions{
		ConfigPath:    configPath,
		DataDir:       dataDir,
		CheckInterval: 2 * time.Hour,
	}

	if err := runInit(opts); err != nil {
		t.Fatalf("runInit() error = %v", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}

	if cfg.Install.DataDir != dataDir {
		t.Errorf("config.Install.DataDir = %s, want %s", cfg.Install.DataDir, dataDir)
	}
	if cfg.Schedule.CheckInterval.D() != 2*time.Hour {
		t.Errorf("config.Schedule.CheckInterval = %s, want 2h", cfg.Schedule.CheckInterval)
	}
	if want := filepath.Join(dataDir, "logs", "simtray.log"); cfg.Log.File != want {
		t.Errorf("config.Log.File = %s, want %s", cfg.Log.File, want)
	}
}

// TestInitNonInteractive_ExistingConfig verifies that init refuses to
// overwrite a config unless forced.
func TestInitNonInteractive_ExistingConfig(t *testing.T) {
	withNoTUI(t)
	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("# mine\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if err := runInit(&InitOptions{ConfigPath: configPath}); err == nil {
		t.Fatal("runInit() error = nil, want error for existing config")
	}

	if err := runInit(&InitOptions{ConfigPath: configPath, Force: true}); err != nil {
		t.Fatalf("runInit(--force) error = %v", err)
	}
	if _, err := config.Load(configPath); err != nil {
		t.Errorf("config.Load() after --force error = %v", err)
	}
}

func TestInitNonInteractive_InvalidInterval(t *testing.T) {
	withNoTUI(t)
	configPath := filepath.Join(t.TempDir(), "config.toml")

	err := runInit(&InitOptions{ConfigPath: configPath, CheckInterval: time.Second})
	if err == nil {
		t.Fatal("runInit() error = nil, want validation error")
	}
	if _, statErr := os.Stat(configPath); !os.IsNotExist(statErr) {
		t.Errorf("config file written despite validation error")
	}
}

func TestRunStatus_JSON(t *testing.T) {
	withNoTUI(t)
	tmpDir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Install.DataDir = filepath.Join(tmpDir, "data")
	cfg.Log.File = "console"
	cfg.Log.Level = "error"
	configPath := filepath.Join(tmpDir, "config.toml")
	if err := config.Write(configPath, cfg); err != nil {
		t.Fatalf("config.Write() error = %v", err)
	}

	prev := ConfigPath
	ConfigPath = configPath
	t.Cleanup(func() { ConfigPath = prev })

	var out bytes.Buffer
	if err := runStatus(context.Background(), &StatusOptions{Format: "json"}, &out); err != nil {
		t.Fatalf("runStatus() error = %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("status output is not JSON: %v\n%s", err, out.String())
	}
	if got["config_path"] != configPath {
		t.Errorf("config_path = %v, want %s", got["config_path"], configPath)
	}
	if got["menu_label"] != "Check for Updates" {
		t.Errorf("menu_label = %v, want Check for Updates", got["menu_label"])
	}
	if got["installed"] != false {
		t.Errorf("installed = %v, want false", got["installed"])
	}
}

func TestRunStatus_UnknownFormat(t *testing.T) {
	if err := runStatus(context.Background(), &StatusOptions{Format: "xml"}, &bytes.Buffer{}); err == nil {
		t.Error("runStatus() error = nil, want error for unknown format")
	}
}

func TestOutcomeError(t *testing.T) {
	tests := []struct {
		outcome coordinator.Outcome
		code    int
	}{
		{coordinator.OutcomeInstalled, upgrade.ExitSuccess},
		{coordinator.OutcomeUpToDate, upgrade.ExitSuccess},
		{coordinator.OutcomePostponed, upgrade.ExitSuccess},
		{coordinator.OutcomeStaleCleared, upgrade.ExitSuccess},
		{coordinator.OutcomeQueryFailed, upgrade.ExitNetworkError},
		{coordinator.OutcomeInstallFailed, upgrade.ExitInstallError},
		{coordinator.OutcomeBusy, upgrade.ExitGenericError},
	}

	for _, tt := range tests {
		t.Run(tt.outcome.String(), func(t *testing.T) {
			if got := upgrade.ExitCode(outcomeError(tt.outcome)); got != tt.code {
				t.Errorf("ExitCode(outcomeError(%s)) = %d, want %d", tt.outcome, got, tt.code)
			}
		})
	}
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := NewRootCommand("1.0.0", "abc", "today", "test")
	for _, name := range []string{"run", "check", "status", "open", "stop", "init", "version"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}
