//go:build !windows

package pdfconvert

import (
	"os/exec"
	"syscall"
)

// setProcessGroup puts the soffice child in its own process group so a
// timeout kill can take down any grandchildren it spawns along with it.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup sends SIGKILL to the negative pid, i.e. the whole
// process group started by setProcessGroup.
func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
