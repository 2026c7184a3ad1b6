package supervisor

import (
	"context"
	"errors"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"
)

var errStopInProgress = errors.New("stop already in progress")

// Stop terminates the named instance, or every instance when name is empty.
// Entries are removed from the registry even when termination fails; the
// per-target outcomes are reported in the result. Cancelling ctx does not
// cut the grace period short; each phase is bounded by StopTimeout.
func (s *Supervisor) Stop(ctx context.Context, name string) (StopResult, error) {
	name = strings.TrimSpace(name)
	ctx = context.WithoutCancel(ctx)

	s.mu.Lock()
	var targets []*Instance
	var res StopResult
	if name != "" {
		inst, ok := s.instances[name]
		if !ok {
			s.mu.Unlock()
			stopsTotal.WithLabelValues("not_found").Inc()
			return StopResult{}, ErrNotFound(name)
		}
		if inst.stopping {
			s.mu.Unlock()
			res.Outcomes = append(res.Outcomes, StopOutcome{Name: name, Zombie: inst.Status == StatusZombie, Err: errStopInProgress})
			return res, nil
		}
		targets = append(targets, inst)
	} else {
		for _, inst := range s.instances {
			if !inst.stopping {
				targets = append(targets, inst)
			}
		}
		sort.Slice(targets, func(i, j int) bool { return targets[i].Name < targets[j].Name })
	}
	for _, inst := range targets {
		inst.stopping = true
	}
	s.mu.Unlock()

	// The blocking terminate/wait runs without the lock so status polling
	// keeps flowing.
	for _, inst := range targets {
		out := StopOutcome{Name: inst.Name, Zombie: inst.Status == StatusZombie}
		if out.Zombie {
			out.Err = s.stopZombie(ctx, inst)
		} else {
			out.Err = s.stopProcess(ctx, inst)
		}
		s.removeIfCurrent(inst)
		if out.Err != nil {
			stopsTotal.WithLabelValues("error").Inc()
			s.log.Warn().Err(out.Err).Str("model", inst.Name).Int("pid", inst.PID).Msg("stop finished with errors; entry removed")
			s.emit("stop_error", inst.Name, map[string]any{"pid": inst.PID, "error": out.Err.Error()})
		} else {
			stopsTotal.WithLabelValues("success").Inc()
			s.log.Info().Str("model", inst.Name).Int("pid", inst.PID).Msg("stopped")
			s.emit("stop_done", inst.Name, map[string]any{"pid": inst.PID})
		}
		res.Outcomes = append(res.Outcomes, out)
	}
	return res, nil
}

// stopZombie hard-kills an orphaned engine worker. Zombies have no graceful
// shutdown protocol.
func (s *Supervisor) stopZombie(ctx context.Context, inst *Instance) error {
	pid, ok := parseZombiePID(inst.Name)
	if !ok {
		pid = inst.PID
	}
	err := s.table.Kill(pid)
	if err == nil || isNoSuchProcess(err) {
		s.emit("zombie_killed", inst.Name, map[string]any{"pid": pid})
		return nil
	}
	s.log.Warn().Err(err).Int("pid", pid).Msg("direct kill failed; falling back to shell")
	if shErr := s.shellKill(ctx, pid); shErr != nil {
		return ErrSignalFailure(pid, "SIGKILL", errors.Join(err, shErr))
	}
	s.emit("zombie_killed", inst.Name, map[string]any{"pid": pid, "via": "shell"})
	return nil
}

// stopProcess runs the two-phase shutdown: SIGTERM, wait up to StopTimeout,
// then SIGKILL and wait for exit. Group members that outlive the leader get
// the rest of the grace period before the group is killed. Afterwards stray
// listeners on the port that belong to this instance are reaped.
func (s *Supervisor) stopProcess(ctx context.Context, inst *Instance) error {
	h := inst.Handle
	var errs []error

	deadline := time.Now().Add(s.cfg.StopTimeout)
	if err := h.Terminate(); err != nil {
		errs = append(errs, ErrSignalFailure(inst.PID, "SIGTERM", err))
	}
	waitCtx, cancel := context.WithDeadline(ctx, deadline)
	err := h.Wait(waitCtx)
	cancel()
	if err != nil {
		s.log.Warn().Str("model", inst.Name).Int("pid", inst.PID).Dur("timeout", s.cfg.StopTimeout).Msg("did not exit after SIGTERM; killing")
		if err := h.Kill(); err != nil {
			errs = append(errs, ErrSignalFailure(inst.PID, "SIGKILL", err))
		}
		killCtx, cancel := context.WithTimeout(ctx, s.cfg.StopTimeout)
		if err := h.Wait(killCtx); err != nil {
			errs = append(errs, err)
		}
		cancel()
	}

	if g, ok := h.(groupHandle); ok && !waitGroup(g, deadline) {
		s.log.Warn().Str("model", inst.Name).Int("pgid", inst.PID).Msg("process group outlived its leader; killing group")
		if err := g.KillGroup(); err != nil {
			errs = append(errs, ErrSignalFailure(inst.PID, "SIGKILL", err))
		} else {
			s.emit("group_killed", inst.Name, map[string]any{"pgid": inst.PID})
		}
	}

	if inst.HasPort {
		if err := s.reapPort(ctx, inst); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

const groupPollInterval = 50 * time.Millisecond

// waitGroup polls until the group is empty or deadline passes.
func waitGroup(g groupHandle, deadline time.Time) bool {
	for g.GroupAlive() {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(groupPollInterval)
	}
	return true
}

// reapPort kills processes still listening on the instance's port, but only
// those that are recognisably this instance's children or relaunches of it.
// Anything else that raced into the freed port is left alone.
func (s *Supervisor) reapPort(ctx context.Context, inst *Instance) error {
	pids, err := s.table.ListenerPIDs(ctx, inst.Port)
	if err != nil {
		s.log.Debug().Err(err).Int("port", inst.Port).Msg("listener lookup failed")
		return nil
	}
	var errs []error
	for _, pid := range pids {
		if pid == s.selfPID {
			continue
		}
		info, err := s.table.Lookup(ctx, pid)
		if err != nil {
			continue
		}
		if !s.ownsListener(ctx, inst, info) {
			s.log.Warn().Int("port", inst.Port).Int("pid", pid).Str("process", info.Name).Msg("port held by unrelated process; not killing")
			continue
		}
		if err := s.table.Kill(pid); err != nil && !isNoSuchProcess(err) {
			errs = append(errs, ErrSignalFailure(pid, "SIGKILL", err))
			continue
		}
		s.log.Info().Int("port", inst.Port).Int("pid", pid).Msg("killed leftover listener")
		s.emit("port_reaped", inst.Name, map[string]any{"pid": pid, "port": inst.Port})
	}
	return errors.Join(errs...)
}

// maxAncestry bounds the parent walk in ownsListener.
const maxAncestry = 16

func (s *Supervisor) ownsListener(ctx context.Context, inst *Instance, p ProcessInfo) bool {
	if p.PID == inst.PID {
		return true
	}
	cur := p
	for i := 0; i < maxAncestry && cur.PPID > 1; i++ {
		if cur.PPID == inst.PID {
			return true
		}
		parent, err := s.table.Lookup(ctx, cur.PPID)
		if err != nil {
			break
		}
		cur = parent
	}
	return s.matchesLaunch(inst, p)
}

// matchesLaunch reports whether p's command line is a vLLM serve of the
// same model or on the same port.
func (s *Supervisor) matchesLaunch(inst *Instance, p ProcessInfo) bool {
	args, ok := newClassifier(s.cfg.VLLMPath, s.cfg.EngineMarker).serveArgs(p.Cmdline)
	if !ok {
		return false
	}
	if len(args) > 0 && args[0] == inst.Name {
		return true
	}
	port := strconv.Itoa(inst.Port)
	for i, arg := range args {
		if arg == "--port" && i+1 < len(args) && args[i+1] == port {
			return true
		}
	}
	return false
}

func execShellKill(ctx context.Context, pid int) error {
	return exec.CommandContext(ctx, "kill", "-9", strconv.Itoa(pid)).Run()
}
