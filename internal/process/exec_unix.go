//go:build !windows

package process

import (
	"os/exec"
	"syscall"

	"github.com/Sakenfor/pixsim7-sub008/internal/config"
)

// applySysProcAttr puts the child in its own process group so stop signals
// reach its children too.
func applySysProcAttr(cmd *exec.Cmd, cfg config.ProcessManagerConfig) {
	if cfg.UnixUseProcessGroups {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}
}

// terminateProcess sends a graceful termination signal.
func terminateProcess(cmd *exec.Cmd, cfg config.ProcessManagerConfig) error {
	if cmd.Process == nil {
		return nil
	}
	if cfg.UnixUseProcessGroups {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	return cmd.Process.Signal(syscall.SIGTERM)
}

// killProcess forcefully kills the process (and its group, when enabled).
func killProcess(cmd *exec.Cmd, cfg config.ProcessManagerConfig) error {
	if cmd.Process == nil {
		return nil
	}
	if cfg.UnixUseProcessGroups {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	return cmd.Process.Kill()
}
