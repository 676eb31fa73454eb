//go:build !windows

package process

import (
	"os/exec"
	"testing"
)

func assertSetpgid(t *testing.T, cmd *exec.Cmd) {
	t.Helper()
	if !cmd.SysProcAttr.Setpgid {
		t.Error("Setpgid should be true")
	}
}
