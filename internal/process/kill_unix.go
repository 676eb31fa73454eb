//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// KillGroup kills a process and all its children by sending SIGKILL
// to the process group (negative PID).
func KillGroup(pid int) {
	// Best-effort cleanup; callers have their own fallback kill.
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}

// SetProcessGroup makes cmd the leader of a new process group so KillGroup
// reaches everything it spawns.
func SetProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}
