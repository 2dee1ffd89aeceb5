package supervisor

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	log "github.com/sirupsen/logrus"
)

const pollInterval = 50 * time.Millisecond

// startedProcess is a child started by Launch.
type startedProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
}

func newStartedProcess(cmd *exec.Cmd) *startedProcess {
	sp := &startedProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		log.WithField("pid", cmd.Process.Pid).Debugf("process wait returned: %v", err)
		close(sp.done)
	}()
	return sp
}

func (p *startedProcess) PID() int { return p.cmd.Process.Pid }

func (p *startedProcess) Running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *startedProcess) Kill(ctx context.Context) error {
	if !p.Running() {
		return nil
	}
	if err := killProcessTree(p.cmd.Process); err != nil && p.Running() {
		return err
	}
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// adoptedProcess is an instance found by ScanProcesses. It is not our child,
// so exit is detected by polling.
type adoptedProcess struct {
	proc *process.Process
}

func (p *adoptedProcess) PID() int { return int(p.proc.Pid) }

func (p *adoptedProcess) Running() bool {
	running, err := p.proc.IsRunning()
	if err != nil || !running {
		return false
	}
	statuses, err := p.proc.Status()
	if err == nil {
		for _, st := range statuses {
			if st == process.Zombie {
				return false
			}
		}
	}
	return true
}

func (p *adoptedProcess) Kill(ctx context.Context) error {
	if err := p.proc.KillWithContext(ctx); err != nil && p.Running() {
		return err
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for p.Running() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// ScanProcesses returns the first process, other than this one, whose name
// or executable base name contains substr, ignoring case.
func ScanProcesses(ctx context.Context, substr string) (Process, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	self := int32(os.Getpid())
	needle := strings.ToLower(substr)
	for _, p := range procs {
		if p.Pid == self {
			continue
		}
		if matchesName(ctx, p, needle) {
			return &adoptedProcess{proc: p}, nil
		}
	}
	return nil, nil
}

func matchesName(ctx context.Context, p *process.Process, needle string) bool {
	if name, err := p.NameWithContext(ctx); err == nil && strings.Contains(strings.ToLower(name), needle) {
		return true
	}
	// Linux truncates comm to 15 bytes, so fall back to the executable path.
	if exe, err := p.ExeWithContext(ctx); err == nil && exe != "" {
		return strings.Contains(strings.ToLower(filepath.Base(exe)), needle)
	}
	return false
}
