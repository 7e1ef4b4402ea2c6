//go:build windows

package process

import (
	"os/exec"
	"syscall"

	"github.com/Sakenfor/pixsim7-sub008/internal/config"
)

// createNoWindow suppresses the console window for spawned services.
const createNoWindow = 0x08000000

func applySysProcAttr(cmd *exec.Cmd, cfg config.ProcessManagerConfig) {
	if cfg.WindowsCreateNoWindow {
		cmd.SysProcAttr = &syscall.SysProcAttr{
			HideWindow:    true,
			CreationFlags: createNoWindow,
		}
	}
}

// terminateProcess has no graceful signal on Windows; it kills directly.
func terminateProcess(cmd *exec.Cmd, cfg config.ProcessManagerConfig) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

func killProcess(cmd *exec.Cmd, cfg config.ProcessManagerConfig) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
