//go:build !windows

package supervisor

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer guards a bytes.Buffer written by the exec copy goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func installScript(t *testing.T, cfg Config, body string) {
	t.Helper()
	script := "#!/bin/sh\n" + body + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(cfg.InstallDir, cfg.Executable), []byte(script), 0755))
}

func TestLaunch_StartsAndKills(t *testing.T) {
	cfg := testConfig(t)
	installScript(t, cfg, "echo started\nexec sleep 30")

	out := &syncBuffer{}
	s := New(context.Background(), cfg, WithFinder(noProcess), WithOutput(out))

	require.NoError(t, s.Launch(false))
	pid, ok := s.PID()
	require.True(t, ok)

	// A second non-forced launch keeps the same instance.
	require.NoError(t, s.Launch(false))
	pid2, _ := s.PID()
	assert.Equal(t, pid, pid2)

	require.NoError(t, s.Kill())
	_, ok = s.PID()
	assert.False(t, ok)

	assert.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("started"))
	}, 2*time.Second, 20*time.Millisecond)
}

func TestLaunch_ForceRestartReplacesInstance(t *testing.T) {
	cfg := testConfig(t)
	installScript(t, cfg, "exec sleep 30")

	s := New(context.Background(), cfg, WithFinder(noProcess))
	t.Cleanup(func() { _ = s.Kill() })

	require.NoError(t, s.Launch(false))
	first, _ := s.PID()

	require.NoError(t, s.Launch(true))
	second, ok := s.PID()
	require.True(t, ok)
	assert.NotEqual(t, first, second)
}

func TestLaunch_DetectsSelfExit(t *testing.T) {
	cfg := testConfig(t)
	installScript(t, cfg, "exit 0")

	s := New(context.Background(), cfg, WithFinder(noProcess))
	require.NoError(t, s.Launch(false))

	assert.Eventually(t, func() bool {
		_, ok := s.PID()
		return !ok
	}, 2*time.Second, 20*time.Millisecond)
}

func TestLaunch_UnstartableExecutable(t *testing.T) {
	cfg := testConfig(t)
	// Present but not executable.
	require.NoError(t, os.WriteFile(filepath.Join(cfg.InstallDir, cfg.Executable), []byte("data"), 0644))

	s := New(context.Background(), cfg, WithFinder(noProcess))
	err := s.Launch(false)
	require.Error(t, err)
	_, ok := s.PID()
	assert.False(t, ok)
}
