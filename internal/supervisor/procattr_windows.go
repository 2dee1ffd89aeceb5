package supervisor

import (
	"os"
	"os/exec"
	"syscall"
)

const createNoWindow = 0x08000000

// setProcAttr starts the engine without a console window, in its own process group.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | createNoWindow,
	}
}

func killProcessTree(p *os.Process) error {
	return p.Kill()
}
