package supervisor

import (
	"context"
	"sort"

	"vllmd/pkg/types"
)

type reconcileAction int

const (
	keep reconcileAction = iota
	remove
	promote
)

type observation struct {
	inst   *Instance
	action reconcileAction
}

// Status reconciles the registry against live process and port state and
// returns a snapshot. Liveness checks and port probes run without holding
// the registry lock; results are applied only to entries that were not
// replaced or claimed by a concurrent Stop in the meantime.
func (s *Supervisor) Status(ctx context.Context) types.ControlStatus {
	s.mu.RLock()
	type probeTarget struct {
		inst    *Instance
		status  Status
		port    int
		hasPort bool
	}
	targets := make([]probeTarget, 0, len(s.instances))
	for _, inst := range s.instances {
		if inst.stopping {
			continue
		}
		targets = append(targets, probeTarget{inst: inst, status: inst.Status, port: inst.Port, hasPort: inst.HasPort})
	}
	s.mu.RUnlock()

	obs := make([]observation, 0, len(targets))
	for _, t := range targets {
		if ctx.Err() != nil {
			break
		}
		switch {
		case t.status == StatusZombie:
			// Zombies are exempt from liveness; only their disappearance counts.
			if !t.inst.Handle.Exists() {
				obs = append(obs, observation{inst: t.inst, action: remove})
			}
		case !t.inst.Handle.Alive():
			obs = append(obs, observation{inst: t.inst, action: remove})
		case t.status == StatusStarting && t.hasPort && s.prober.InUse(t.port):
			obs = append(obs, observation{inst: t.inst, action: promote})
		}
	}

	s.mu.Lock()
	for _, o := range obs {
		cur, ok := s.instances[o.inst.Name]
		if !ok || cur != o.inst || cur.stopping {
			continue
		}
		switch o.action {
		case remove:
			delete(s.instances, cur.Name)
			reconcileRemovals.Inc()
			s.log.Info().Str("model", cur.Name).Int("pid", cur.PID).Str("status", string(cur.Status)).Msg("process gone; removing")
			s.emit("reconcile_remove", cur.Name, map[string]any{"pid": cur.PID})
		case promote:
			if cur.Status == StatusStarting {
				cur.Status = StatusRunning
				s.log.Info().Str("model", cur.Name).Int("port", cur.Port).Msg("instance ready")
				s.emit("instance_ready", cur.Name, map[string]any{"pid": cur.PID, "port": cur.Port})
			}
		}
	}
	models := make([]types.ModelStatus, 0, len(s.instances))
	for _, inst := range s.instances {
		models = append(models, inst.view())
	}
	s.updateGaugesLocked()
	s.mu.Unlock()

	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	return types.ControlStatus{Running: len(models) > 0, Models: models}
}
