// Package supervisor owns the single instance of the simulation engine
// process: it adopts an already running instance, launches and kills it,
// and hands URLs to the desktop.
package supervisor

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/skratchdot/open-golang/open"
	log "github.com/sirupsen/logrus"

	simerrors "github.com/chazuruo/simtray/internal/errors"
)

// Process is a handle to a supervised OS process.
type Process interface {
	PID() int
	// Running re-checks the OS; a false result is final.
	Running() bool
	// Kill terminates the process and waits for it to exit or ctx to end.
	Kill(ctx context.Context) error
}

// Finder locates a running process whose name contains substr.
// It returns nil, nil when none is found.
type Finder func(ctx context.Context, substr string) (Process, error)

// Config describes the supervised executable.
type Config struct {
	// Name is matched case-insensitively against running process names.
	Name string
	// InstallDir contains Executable.
	InstallDir string
	// Executable is the file name started by Launch.
	Executable string
	// KillTimeout bounds Kill.
	KillTimeout time.Duration
}

// Supervisor tracks at most one supervised process.
type Supervisor struct {
	mu     sync.Mutex
	cfg    Config
	handle Process

	finder Finder
	opener func(string) error
	output io.Writer
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithFinder replaces the OS process scan.
func WithFinder(f Finder) Option {
	return func(s *Supervisor) {
		if f != nil {
			s.finder = f
		}
	}
}

// WithOpener replaces the desktop URL handler.
func WithOpener(fn func(string) error) Option {
	return func(s *Supervisor) {
		if fn != nil {
			s.opener = fn
		}
	}
}

// WithOutput sets where the process stdout and stderr are written.
func WithOutput(w io.Writer) Option {
	return func(s *Supervisor) {
		if w != nil {
			s.output = w
		}
	}
}

// New creates a Supervisor and adopts a matching process that is already running.
func New(ctx context.Context, cfg Config, opts ...Option) *Supervisor {
	if cfg.KillTimeout <= 0 {
		cfg.KillTimeout = 10 * time.Second
	}

	s := &Supervisor{
		cfg:    cfg,
		finder: ScanProcesses,
		opener: open.Run,
		output: io.Discard,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.ResolveRunning(ctx)
	return s
}

// ResolveRunning adopts the first running process matching the configured
// name, unless a live handle is already held.
func (s *Supervisor) ResolveRunning(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resolveLocked(ctx)
}

// resolveLocked also picks up an engine started by another simtray process
// since the last scan.
func (s *Supervisor) resolveLocked(ctx context.Context) {
	s.revalidateLocked()
	if s.handle != nil {
		return
	}

	p, err := s.finder(ctx, s.cfg.Name)
	if err != nil {
		log.Warnf("failed to scan for running %s: %v", s.cfg.Name, err)
		return
	}
	if p == nil || !p.Running() {
		log.Debugf("no running %s found", s.cfg.Name)
		return
	}

	log.WithField("pid", p.PID()).Infof("adopted running %s", s.cfg.Name)
	s.handle = p
}

// PID returns the pid of the supervised process while it runs.
func (s *Supervisor) PID() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.revalidateLocked()
	if s.handle == nil {
		return 0, false
	}
	return s.handle.PID(), true
}

// ExecutablePath returns the path Launch starts.
func (s *Supervisor) ExecutablePath() string {
	return filepath.Join(s.cfg.InstallDir, s.cfg.Executable)
}

// Kill terminates the supervised process and waits for it to exit.
// It is a no-op when nothing runs. An error is returned only when the
// process is still alive after the kill timeout.
func (s *Supervisor) Kill() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.killLocked()
}

func (s *Supervisor) killLocked() error {
	s.resolveLocked(context.Background())
	if s.handle == nil {
		return nil
	}

	pid := s.handle.PID()
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.KillTimeout)
	defer cancel()

	err := s.handle.Kill(ctx)
	if err != nil && s.handle.Running() {
		log.WithField("pid", pid).Errorf("failed to kill %s: %v", s.cfg.Name, err)
		return &simerrors.ProcessError{Op: "kill", Err: fmt.Errorf("%w: %v", simerrors.ErrProcessControl, err), PID: pid}
	}
	if err != nil {
		log.WithField("pid", pid).Debugf("kill reported %v but process is gone", err)
	}

	log.WithField("pid", pid).Infof("stopped %s", s.cfg.Name)
	s.handle = nil
	return nil
}

// Launch starts the executable. When a process is already running it is
// left alone unless forceRestart is set, in which case it is replaced.
// A missing executable is not an error: there is nothing to launch yet.
func (s *Supervisor) Launch(forceRestart bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resolveLocked(context.Background())
	if s.handle != nil && !forceRestart {
		return nil
	}

	exePath := s.ExecutablePath()
	if _, err := os.Stat(exePath); err != nil {
		if os.IsNotExist(err) {
			log.Infof("%s is not installed, nothing to launch", exePath)
			return nil
		}
		return &simerrors.ProcessError{Op: "launch", Err: fmt.Errorf("%w: %v", simerrors.ErrProcessControl, err)}
	}

	if err := s.killLocked(); err != nil {
		return err
	}

	cmd := exec.Command(exePath)
	cmd.Dir = s.cfg.InstallDir
	// A nil Stdin reads from the null device.
	cmd.Stdin = nil
	cmd.Stdout = s.output
	cmd.Stderr = s.output
	setProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return &simerrors.ProcessError{Op: "launch", Err: fmt.Errorf("%w: %v", simerrors.ErrProcessControl, err)}
	}

	sp := newStartedProcess(cmd)
	log.WithField("pid", sp.PID()).Infof("launched %s", exePath)
	s.handle = sp
	return nil
}

// OpenExternal hands url to the desktop's default handler.
func (s *Supervisor) OpenExternal(url string) error {
	if err := s.opener(url); err != nil {
		return &simerrors.ProcessError{Op: "open", Err: fmt.Errorf("%w: opening %s: %v", simerrors.ErrProcessControl, url, err)}
	}
	return nil
}

// LaunchOrOpen starts the engine when nothing runs, otherwise opens url.
func (s *Supervisor) LaunchOrOpen(url string) error {
	if _, running := s.PID(); running {
		return s.OpenExternal(url)
	}
	return s.Launch(true)
}

// revalidateLocked drops a handle whose process has exited on its own.
func (s *Supervisor) revalidateLocked() {
	if s.handle != nil && !s.handle.Running() {
		log.WithField("pid", s.handle.PID()).Infof("%s exited", s.cfg.Name)
		s.handle = nil
	}
}
