package supervisor

import (
	"context"
	"os/exec"
	"slices"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcessHandle is the common capability set of an OS process reference,
// whether the supervisor spawned it or found it during discovery.
type ProcessHandle interface {
	PID() int
	// Alive reports whether the process is running and not defunct.
	Alive() bool
	// Exists reports whether the PID is still present in the process table
	// in any state, including defunct.
	Exists() bool
	Terminate() error
	Kill() error
	// Wait blocks until the process exits or ctx is done.
	Wait(ctx context.Context) error
}

// groupHandle is implemented by handles that lead their own process group.
// Members of the group can outlive the leader.
type groupHandle interface {
	GroupAlive() bool
	KillGroup() error
}

// spawnedHandle owns an *exec.Cmd started by this supervisor. A single
// goroutine reaps the child; done is closed once it has exited. pgid stays
// valid after the leader is reaped as long as any member remains.
type spawnedHandle struct {
	cmd     *exec.Cmd
	pgid    int
	done    chan struct{}
	waitErr error
}

func newSpawnedHandle(cmd *exec.Cmd) *spawnedHandle {
	h := &spawnedHandle{cmd: cmd, pgid: cmd.Process.Pid, done: make(chan struct{})}
	go func() {
		h.waitErr = cmd.Wait()
		close(h.done)
	}()
	return h
}

func (h *spawnedHandle) PID() int { return h.cmd.Process.Pid }

func (h *spawnedHandle) exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *spawnedHandle) Alive() bool  { return !h.exited() }
func (h *spawnedHandle) Exists() bool { return !h.exited() }

func (h *spawnedHandle) Terminate() error { return h.signal(syscall.SIGTERM) }
func (h *spawnedHandle) Kill() error      { return h.signal(syscall.SIGKILL) }

// GroupAlive reports whether any member of the child's process group,
// the leader included, is still present.
func (h *spawnedHandle) GroupAlive() bool { return groupAlive(h.pgid) }

// KillGroup sends SIGKILL to the whole process group.
func (h *spawnedHandle) KillGroup() error { return ignoreGone(signalGroup(h.pgid, syscall.SIGKILL)) }

// signal targets the child's process group so engine workers go down with
// it, even after the leader itself has exited.
func (h *spawnedHandle) signal(sig syscall.Signal) error {
	err := signalGroup(h.pgid, sig)
	if err == nil || isNoSuchProcess(err) || h.exited() {
		return nil
	}
	// Fall back to the leader alone if the group is not addressable.
	if err := h.cmd.Process.Signal(sig); err != nil && !isNoSuchProcess(err) {
		return err
	}
	return nil
}

func (h *spawnedHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExitCode returns the exit code once the process has been reaped, or -1.
func (h *spawnedHandle) ExitCode() int {
	if !h.exited() || h.cmd.ProcessState == nil {
		return -1
	}
	return h.cmd.ProcessState.ExitCode()
}

// scannedHandle wraps a process found in the process table. It offers the
// same capabilities as a spawned handle but cannot reap the process; a
// defunct process counts as exited.
type scannedHandle struct {
	proc *process.Process
}

const scannedPollInterval = 100 * time.Millisecond

func newScannedHandle(ctx context.Context, pid int) (*scannedHandle, error) {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return nil, err
	}
	// Pin the create time so a recycled PID is not mistaken for this process.
	if _, err := p.CreateTimeWithContext(ctx); err != nil {
		return nil, err
	}
	return &scannedHandle{proc: p}, nil
}

func (h *scannedHandle) PID() int { return int(h.proc.Pid) }

func (h *scannedHandle) Exists() bool {
	running, err := h.proc.IsRunning()
	if err != nil {
		// Unreadable is not gone.
		exists, perr := process.PidExists(h.proc.Pid)
		return perr != nil || exists
	}
	return running
}

func (h *scannedHandle) Alive() bool {
	if !h.Exists() {
		return false
	}
	statuses, err := h.proc.Status()
	if err != nil {
		return true
	}
	return !slices.Contains(statuses, process.Zombie)
}

func (h *scannedHandle) Terminate() error { return ignoreGone(h.proc.Terminate()) }
func (h *scannedHandle) Kill() error      { return ignoreGone(h.proc.Kill()) }

func (h *scannedHandle) Wait(ctx context.Context) error {
	t := time.NewTicker(scannedPollInterval)
	defer t.Stop()
	for {
		if !h.Alive() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func ignoreGone(err error) error {
	if err != nil && isNoSuchProcess(err) {
		return nil
	}
	return err
}
