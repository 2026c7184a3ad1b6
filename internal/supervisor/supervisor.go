package supervisor

import (
	"context"
	"os"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Supervisor owns the registry of managed vLLM instances. All registry
// access goes through its methods; callers only ever see copies.
type Supervisor struct {
	mu        sync.RWMutex
	instances map[string]*Instance
	// pending holds names whose start is probing for a port.
	pending map[string]bool

	cfg       Config
	log       zerolog.Logger
	table     ProcessTable
	launcher  Launcher
	prober    PortProber
	publisher EventPublisher
	// shellKill is the last resort for a PID the direct signal could not reach.
	shellKill func(ctx context.Context, pid int) error
	selfPID   int
	selfExe   string
	// ready is set once discovery has seeded the registry and cleared when
	// shutdown begins.
	ready atomic.Bool

	templateOnce sync.Once
	templatePath string
	templateErr  error
}

// New constructs a Supervisor from cfg, applying defaults, and seeds the
// registry with a scan of already running instances.
func New(ctx context.Context, cfg Config) *Supervisor {
	cfg = cfg.withDefaults()
	s := &Supervisor{
		instances: make(map[string]*Instance),
		pending:   make(map[string]bool),
		cfg:       cfg,
		log:       cfg.Logger.With().Str("component", "supervisor").Logger(),
		table:     cfg.Table,
		launcher:  cfg.Launcher,
		prober:    cfg.Prober,
		publisher: cfg.Publisher,
		shellKill: execShellKill,
		selfPID:   os.Getpid(),
	}
	if exe, err := os.Executable(); err == nil {
		s.selfExe = exe
	}
	if !cfg.SkipDiscovery {
		s.log.Info().Msg("scanning for existing vLLM processes")
		s.instances = s.discover(ctx)
	}
	s.updateGauges()
	s.ready.Store(true)
	return s
}

// Ready reports whether discovery has completed and shutdown has not begun.
func (s *Supervisor) Ready() bool { return s != nil && s.ready.Load() }

// Config returns the effective configuration after defaults.
func (s *Supervisor) Config() Config { return s.cfg }

// Instances returns copies of all registry entries, sorted by name.
func (s *Supervisor) Instances() []Instance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Instance, 0, len(s.instances))
	for _, inst := range s.instances {
		c := *inst
		c.Command = append([]string(nil), inst.Command...)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Shutdown stops every registered instance. Best effort.
func (s *Supervisor) Shutdown(ctx context.Context) StopResult {
	s.ready.Store(false)
	res, _ := s.Stop(ctx, "")
	return res
}

// activeCountLocked counts non-zombie entries. Caller holds s.mu.
func (s *Supervisor) activeCountLocked() int {
	n := 0
	for _, inst := range s.instances {
		if inst.Status != StatusZombie {
			n++
		}
	}
	return n
}

// portReservedLocked reports whether any entry holds port. Caller holds s.mu.
func (s *Supervisor) portReservedLocked(port int) bool {
	for _, inst := range s.instances {
		if inst.HasPort && inst.Port == port {
			return true
		}
	}
	return false
}

// removeIfCurrent deletes inst only if it is still the registered entry for
// its name, so a newer instance started under the same name survives.
func (s *Supervisor) removeIfCurrent(inst *Instance) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.instances[inst.Name]; ok && cur == inst {
		delete(s.instances, inst.Name)
		s.updateGaugesLocked()
		return true
	}
	return false
}

func (s *Supervisor) updateGauges() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.updateGaugesLocked()
}

func (s *Supervisor) updateGaugesLocked() {
	counts := map[Status]int{StatusStarting: 0, StatusRunning: 0, StatusZombie: 0}
	for _, inst := range s.instances {
		counts[inst.Status]++
	}
	for st, n := range counts {
		instancesGauge.WithLabelValues(string(st)).Set(float64(n))
	}
}
