package supervisor

import (
	"context"
	"errors"
	"os"
	"sort"
	"strings"
	"syscall"

	psnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
)

// ProcessInfo is one row of the OS process table.
type ProcessInfo struct {
	PID     int
	PPID    int
	Name    string
	Cmdline []string
}

// joined returns the argv joined by spaces, or the process name when no
// arguments are visible.
func (p ProcessInfo) joined() string {
	if len(p.Cmdline) == 0 {
		return p.Name
	}
	return strings.Join(p.Cmdline, " ")
}

// ProcessTable is the supervisor's view of the host's processes.
type ProcessTable interface {
	// Processes lists every process that could be read. Processes that vanish
	// or cannot be inspected mid-scan are omitted.
	Processes(ctx context.Context) ([]ProcessInfo, error)
	Lookup(ctx context.Context, pid int) (ProcessInfo, error)
	// Handle returns a control handle for a process this supervisor did not spawn.
	Handle(ctx context.Context, pid int) (ProcessHandle, error)
	// ListenerPIDs returns the PIDs with a TCP socket listening on port.
	ListenerPIDs(ctx context.Context, port int) ([]int, error)
	// Kill sends SIGKILL to a single PID.
	Kill(pid int) error
}

type osProcessTable struct{}

// NewOSProcessTable returns a ProcessTable backed by gopsutil.
func NewOSProcessTable() ProcessTable { return osProcessTable{} }

func (osProcessTable) Processes(ctx context.Context) ([]ProcessInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ProcessInfo, 0, len(procs))
	for _, p := range procs {
		info, err := readProcess(ctx, p)
		if err != nil {
			continue
		}
		out = append(out, info)
	}
	return out, nil
}

func (osProcessTable) Lookup(ctx context.Context, pid int) (ProcessInfo, error) {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return ProcessInfo{}, err
	}
	return readProcess(ctx, p)
}

// readProcess fails only when the process name cannot be read, which in
// practice means it is gone. Unreadable argv or parent are left empty.
func readProcess(ctx context.Context, p *process.Process) (ProcessInfo, error) {
	name, err := p.NameWithContext(ctx)
	if err != nil {
		return ProcessInfo{}, err
	}
	info := ProcessInfo{PID: int(p.Pid), Name: name}
	if argv, err := p.CmdlineSliceWithContext(ctx); err == nil {
		info.Cmdline = argv
	}
	if ppid, err := p.PpidWithContext(ctx); err == nil {
		info.PPID = int(ppid)
	}
	return info, nil
}

func (osProcessTable) Handle(ctx context.Context, pid int) (ProcessHandle, error) {
	return newScannedHandle(ctx, pid)
}

func (osProcessTable) ListenerPIDs(ctx context.Context, port int) ([]int, error) {
	conns, err := psnet.ConnectionsWithContext(ctx, "tcp")
	if err != nil {
		return nil, err
	}
	seen := make(map[int]bool)
	for _, c := range conns {
		if c.Status != "LISTEN" || c.Laddr.Port != uint32(port) || c.Pid <= 0 {
			continue
		}
		seen[int(c.Pid)] = true
	}
	pids := make([]int, 0, len(seen))
	for pid := range seen {
		pids = append(pids, pid)
	}
	sort.Ints(pids)
	return pids, nil
}

func (osProcessTable) Kill(pid int) error { return killPID(pid) }

// isNoSuchProcess reports whether err means the target already exited.
func isNoSuchProcess(err error) bool {
	return errors.Is(err, os.ErrProcessDone) ||
		errors.Is(err, syscall.ESRCH) ||
		errors.Is(err, process.ErrorProcessNotRunning)
}
