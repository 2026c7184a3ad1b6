//go:build unix

package supervisor

import (
	"errors"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// configureProcAttr puts the child in its own process group so that
// signalling the group also reaches the engine workers it forks.
func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func signalGroup(pid int, sig syscall.Signal) error {
	return unix.Kill(-pid, sig)
}

// groupAlive reports whether any process remains in group pgid. EPERM
// means members exist that we may not signal.
func groupAlive(pgid int) bool {
	err := unix.Kill(-pgid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

func killPID(pid int) error {
	return unix.Kill(pid, unix.SIGKILL)
}
