//go:build windows

package process

import (
	"os/exec"
	"strconv"
)

// KillGroup kills a process and all its children using taskkill.
// /F = force kill, /T = terminate child processes (tree kill).
func KillGroup(pid int) {
	// Best-effort cleanup; callers have their own fallback kill.
	_ = exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid)).Run()
}

// SetProcessGroup is a no-op: taskkill /T already walks the process tree.
func SetProcessGroup(*exec.Cmd) {}
