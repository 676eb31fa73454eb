//go:build windows

package process

import (
	"os/exec"
	"testing"
)

func assertSetpgid(*testing.T, *exec.Cmd) {}
