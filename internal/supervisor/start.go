package supervisor

import (
	"context"
	"errors"
	"strings"
	"time"

	"vllmd/pkg/types"
)

// Start launches a vLLM instance serving model and registers it as starting.
// The name is reserved under the registry lock before ports are probed, so
// concurrent starts of one name cannot double-spawn. Probing runs without
// the lock; the chosen port is re-checked, and the spawn and insert happen,
// under it.
func (s *Supervisor) Start(ctx context.Context, model string) (StartResult, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return StartResult{}, errors.New("model name is required")
	}
	if err := ctx.Err(); err != nil {
		return StartResult{}, err
	}
	if err := s.reserveName(model); err != nil {
		return StartResult{}, err
	}

	base := s.cfg.BasePort
	for {
		port, err := s.probeFreePort(base)
		if err != nil {
			s.mu.Lock()
			delete(s.pending, model)
			s.mu.Unlock()
			startsTotal.WithLabelValues("port_exhausted").Inc()
			return StartResult{}, err
		}
		s.mu.Lock()
		if s.portReservedLocked(port) {
			// Claimed by a concurrent start while we were probing.
			s.mu.Unlock()
			base = port + 1
			continue
		}
		res, err := s.spawnLocked(model, port)
		delete(s.pending, model)
		s.mu.Unlock()
		return res, err
	}
}

// reserveName runs the duplicate and capacity checks and marks model as
// pending. Pending starts count as live and toward capacity.
func (s *Supervisor) reserveName(model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending[model] {
		startsTotal.WithLabelValues("already_running").Inc()
		return ErrAlreadyRunning(model, types.NoPort().String())
	}
	if inst, ok := s.instances[model]; ok {
		if inst.stopping || inst.Handle.Alive() {
			startsTotal.WithLabelValues("already_running").Inc()
			return ErrAlreadyRunning(model, inst.port().String())
		}
		s.log.Info().Str("model", model).Int("pid", inst.PID).Msg("cleaning up dead process")
		delete(s.instances, model)
	}

	if n := s.activeCountLocked() + len(s.pending); n >= s.cfg.MaxInstances {
		startsTotal.WithLabelValues("capacity").Inc()
		return ErrCapacityExceeded(s.cfg.MaxInstances)
	}
	s.pending[model] = true
	return nil
}

// probeFreePort scans from base to the end of the configured range against
// a snapshot of the reserved ports.
func (s *Supervisor) probeFreePort(base int) (int, error) {
	last := min(s.cfg.BasePort+s.cfg.MaxPortScan-1, maxTCPPort)
	if base > last {
		return 0, ErrPortExhausted(s.cfg.BasePort, last)
	}
	s.mu.RLock()
	reserved := make(map[int]bool, len(s.instances))
	for _, inst := range s.instances {
		if inst.HasPort {
			reserved[inst.Port] = true
		}
	}
	s.mu.RUnlock()

	port, err := NextFreePort(s.prober, base, last-base+1, func(p int) bool { return reserved[p] })
	if err != nil {
		return 0, ErrPortExhausted(s.cfg.BasePort, last)
	}
	return port, nil
}

// spawnLocked builds the argv, launches and registers the instance. Caller
// holds s.mu.
func (s *Supervisor) spawnLocked(model string, port int) (StartResult, error) {
	argv, err := s.buildCommand(model, port)
	if err != nil {
		startsTotal.WithLabelValues("spawn_failure").Inc()
		return StartResult{}, ErrSpawnFailure(model, err)
	}

	s.log.Info().Str("model", model).Int("port", port).Strs("argv", argv).Msg("starting vLLM")
	h, err := s.launcher.Launch(argv)
	if err != nil {
		startsTotal.WithLabelValues("spawn_failure").Inc()
		s.log.Error().Err(err).Str("model", model).Msg("spawn failed")
		s.emit("spawn_failed", model, map[string]any{"error": err.Error()})
		return StartResult{}, ErrSpawnFailure(model, err)
	}

	inst := &Instance{
		Name:      model,
		Handle:    h,
		PID:       h.PID(),
		Port:      port,
		HasPort:   true,
		Status:    StatusStarting,
		StartedAt: time.Now(),
		Command:   argv,
	}
	s.instances[model] = inst
	s.updateGaugesLocked()
	startsTotal.WithLabelValues("success").Inc()
	s.emit("spawn_start", model, map[string]any{"pid": inst.PID, "port": port})
	return StartResult{Name: model, Port: port, PID: inst.PID}, nil
}
