package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	simerrors "github.com/chazuruo/simtray/internal/errors"
)

// TestLoad_ValidConfig tests loading a valid config file.
func TestLoad_ValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	configContent := `
[release]
owner = "someone"
repo = "sim"
timeout = "10s"

[install]
data_dir = "/srv/simtray"

[schedule]
check_interval = "2h"

[log]
level = "debug"
file = "console"
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "someone", cfg.Release.Owner)
	assert.Equal(t, "sim", cfg.Release.Repo)
	assert.Equal(t, 10*time.Second, cfg.Release.Timeout.D())
	assert.Equal(t, "/srv/simtray", cfg.Install.DataDir)
	assert.Equal(t, 2*time.Hour, cfg.Schedule.CheckInterval.D())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.File)

	// Unset fields keep defaults
	assert.Equal(t, "wowsimmop-windows.exe.zip", cfg.Release.AssetPattern)
	assert.Equal(t, "http://localhost:3333/mop/", cfg.Process.URL)
}

// TestLoad_NotFound tests that a missing file is reported as ErrNotFound.
func TestLoad_NotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
	assert.True(t, simerrors.IsNotFound(err))

	ce, ok := simerrors.AsConfigError(err)
	require.True(t, ok)
	assert.Contains(t, ce.Path, "missing.toml")
}

// TestLoad_InvalidTOML tests that invalid TOML returns error.
func TestLoad_InvalidTOML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("[release\nowner = \"x\"\n"), 0644))

	_, err := Load(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

// TestLoad_InvalidDuration tests that a malformed duration is a parse error.
func TestLoad_InvalidDuration(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("[schedule]\ncheck_interval = \"hourly\"\n"), 0644))

	_, err := Load(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

// TestLoad_ValidationFailed tests that validation failures are returned.
func TestLoad_ValidationFailed(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("[log]\nlevel = \"shouty\"\n"), 0644))

	_, err := Load(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
	assert.True(t, simerrors.IsInvalid(err))
}

// TestEnvOverrides tests that SIMTRAY_* variables override file values.
func TestEnvOverrides(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("[release]\nowner = \"file-owner\"\n"), 0644))

	t.Setenv("SIMTRAY_RELEASE_OWNER", "env-owner")
	t.Setenv("SIMTRAY_PROCESS_KILL_ON_EXIT", "no")
	t.Setenv("SIMTRAY_SCHEDULE_CHECK_INTERVAL", "3h")
	t.Setenv("SIMTRAY_LOG_MAX_BACKUPS", "4")
	t.Setenv("SIMTRAY_RELEASE_DOWNLOAD_RETRIES", "not-a-number")

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "env-owner", cfg.Release.Owner)
	assert.False(t, cfg.Process.KillOnExit)
	assert.Equal(t, 3*time.Hour, cfg.Schedule.CheckInterval.D())
	assert.Equal(t, 4, cfg.Log.MaxBackups)
	assert.Equal(t, 2, cfg.Release.DownloadRetries, "unparseable values are ignored")
}

// TestLoadWithDefaults_ExplicitPath tests that an explicit path wins.
func TestLoadWithDefaults_ExplicitPath(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("[release]\nrepo = \"other\"\n"), 0644))

	cfg, err := LoadWithDefaults(configPath)
	require.NoError(t, err)
	assert.Equal(t, "other", cfg.Release.Repo)
}

// TestExpandHome tests ~ expansion.
func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "sim"), expandHome("~/sim"))
	assert.Equal(t, home, expandHome("~"))
	assert.Equal(t, "/abs/path", expandHome("/abs/path"))
	assert.Equal(t, "", expandHome(""))
}

// TestWrite_RoundTrip tests that a written config loads back identically.
func TestWrite_RoundTrip(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.toml")

	original := DefaultConfig()
	original.Install.DataDir = "/var/lib/simtray"
	original.Log.File = "console"
	original.Schedule.CheckInterval = Duration(45 * time.Minute)

	require.NoError(t, Write(configPath, original))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `check_interval = "45m0s"`)

	loaded, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}

func TestWrite_HeaderNamesDirectories(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	cfg := DefaultConfig()
	cfg.Install.DataDir = "/var/lib/simtray"

	require.NoError(t, Write(configPath, cfg))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# data dir:    /var/lib/simtray\n")
	assert.Contains(t, string(data), "# install dir: "+filepath.Join("/var/lib/simtray", "binary")+"\n")

	entries, err := os.ReadDir(filepath.Dir(configPath))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files are left behind")
}

func TestWrite_InvalidConfigKeepsExistingFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("# hand edited\n"), 0644))

	cfg := DefaultConfig()
	cfg.Schedule.CheckInterval = Duration(time.Second)

	err := Write(configPath, cfg)
	require.Error(t, err)
	assert.True(t, simerrors.IsInvalid(err))
	ce, ok := simerrors.AsConfigError(err)
	require.True(t, ok)
	assert.Equal(t, configPath, ce.Path)

	data, readErr := os.ReadFile(configPath)
	require.NoError(t, readErr)
	assert.Equal(t, "# hand edited\n", string(data))
}
