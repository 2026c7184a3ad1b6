package supervisor

import (
	"context"
	"errors"
	"sync"
	"syscall"
	"testing"
	"time"
)

// fakeHandle is an in-memory ProcessHandle. By default it exits on SIGTERM.
type fakeHandle struct {
	mu         sync.Mutex
	pid        int
	exists     bool
	defunct    bool
	ignoreTerm bool
	termErr    error
	killErr    error
	terms      int
	kills      int
	done       chan struct{}
}

func newFakeHandle(pid int) *fakeHandle {
	return &fakeHandle{pid: pid, exists: true, done: make(chan struct{})}
}

func (h *fakeHandle) PID() int { return h.pid }

func (h *fakeHandle) Alive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exists && !h.defunct
}

func (h *fakeHandle) Exists() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exists
}

// exit marks the process gone. Safe to call more than once.
func (h *fakeHandle) exit() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.exitLocked()
}

func (h *fakeHandle) exitLocked() {
	if !h.exists {
		return
	}
	h.exists = false
	close(h.done)
}

func (h *fakeHandle) Terminate() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.terms++
	if h.termErr != nil {
		return h.termErr
	}
	if !h.ignoreTerm {
		h.exitLocked()
	}
	return nil
}

func (h *fakeHandle) Kill() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.kills++
	if h.killErr != nil {
		return h.killErr
	}
	h.exitLocked()
	return nil
}

func (h *fakeHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *fakeHandle) counts() (terms, kills int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.terms, h.kills
}

// fakeTable is an in-memory ProcessTable.
type fakeTable struct {
	mu        sync.Mutex
	procs     []ProcessInfo
	handles   map[int]*fakeHandle
	listeners map[int][]int
	killErrs  map[int]error
	killed    []int
	scanErr   error
}

func newFakeTable(procs ...ProcessInfo) *fakeTable {
	t := &fakeTable{
		procs:     procs,
		handles:   make(map[int]*fakeHandle),
		listeners: make(map[int][]int),
		killErrs:  make(map[int]error),
	}
	for _, p := range procs {
		t.handles[p.PID] = newFakeHandle(p.PID)
	}
	return t
}

func (t *fakeTable) Processes(context.Context) ([]ProcessInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.scanErr != nil {
		return nil, t.scanErr
	}
	return append([]ProcessInfo(nil), t.procs...), nil
}

func (t *fakeTable) Lookup(_ context.Context, pid int) (ProcessInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.procs {
		if p.PID == pid {
			return p, nil
		}
	}
	return ProcessInfo{}, syscall.ESRCH
}

func (t *fakeTable) Handle(_ context.Context, pid int) (ProcessHandle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.handles[pid]
	if !ok {
		return nil, syscall.ESRCH
	}
	return h, nil
}

func (t *fakeTable) ListenerPIDs(_ context.Context, port int) ([]int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]int(nil), t.listeners[port]...), nil
}

func (t *fakeTable) Kill(pid int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.killErrs[pid]; err != nil {
		return err
	}
	t.killed = append(t.killed, pid)
	if h, ok := t.handles[pid]; ok {
		h.exit()
	}
	return nil
}

func (t *fakeTable) killedPIDs() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]int(nil), t.killed...)
}

// fakeLauncher hands out fakeHandles with increasing PIDs.
type fakeLauncher struct {
	mu       sync.Mutex
	nextPID  int
	err      error
	launched [][]string
	handles  []*fakeHandle
	delay    time.Duration
}

func newFakeLauncher() *fakeLauncher { return &fakeLauncher{nextPID: 1000} }

func (l *fakeLauncher) Launch(argv []string) (ProcessHandle, error) {
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.nextPID++
	h := newFakeHandle(l.nextPID)
	l.launched = append(l.launched, append([]string(nil), argv...))
	l.handles = append(l.handles, h)
	return h, nil
}

func (l *fakeLauncher) last() (*fakeHandle, []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.handles) == 0 {
		return nil, nil
	}
	return l.handles[len(l.handles)-1], l.launched[len(l.launched)-1]
}

func (l *fakeLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.launched)
}

// fakeProber reports ports in the busy set as in use.
type fakeProber struct {
	mu   sync.Mutex
	busy map[int]bool
}

func newFakeProber(busy ...int) *fakeProber {
	p := &fakeProber{busy: make(map[int]bool)}
	for _, b := range busy {
		p.busy[b] = true
	}
	return p
}

func (p *fakeProber) InUse(port int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busy[port]
}

func (p *fakeProber) set(port int, inUse bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.busy[port] = inUse
}

type fixture struct {
	sup      *Supervisor
	table    *fakeTable
	launcher *fakeLauncher
	prober   *fakeProber
	events   *MemoryPublisher
}

// newFixture builds a supervisor over fakes. Discovery runs only when the
// table has processes.
func newFixture(t *testing.T, table *fakeTable, mutate ...func(*Config)) *fixture {
	t.Helper()
	if table == nil {
		table = newFakeTable()
	}
	f := &fixture{
		table:    table,
		launcher: newFakeLauncher(),
		prober:   newFakeProber(),
		events:   NewMemoryPublisher(),
	}
	cfg := Config{
		TemplateDir:   t.TempDir(),
		StopTimeout:   50 * time.Millisecond,
		SkipDiscovery: len(table.procs) == 0,
		Publisher:     f.events,
		Table:         f.table,
		Launcher:      f.launcher,
		Prober:        f.prober,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	f.sup = New(context.Background(), cfg)
	f.sup.shellKill = func(context.Context, int) error { return errors.New("shell kill disabled in tests") }
	return f
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}
