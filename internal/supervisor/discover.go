package supervisor

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

const unknownModel = "Unknown"

// Discovery is the outcome of classifying one scanned process.
type Discovery struct {
	Rule    string
	Name    string
	Model   string
	Port    int
	HasPort bool
	Status  Status
}

// classifier applies the ordered discovery rules. The first rule that
// matches wins.
type classifier struct {
	launcher string
	marker   string
	rules    []discoveryRule
}

type discoveryRule struct {
	name  string
	match func(c *classifier, p ProcessInfo) (Discovery, bool)
}

func newClassifier(vllmPath, marker string) *classifier {
	return &classifier{
		launcher: filepath.Base(vllmPath),
		marker:   marker,
		rules: []discoveryRule{
			{name: "serving", match: matchServing},
			{name: "zombie", match: matchZombieWorker},
		},
	}
}

// Classify returns the first matching rule's result.
func (c *classifier) Classify(p ProcessInfo) (Discovery, bool) {
	for _, r := range c.rules {
		if d, ok := r.match(c, p); ok {
			d.Rule = r.name
			return d, true
		}
	}
	return Discovery{}, false
}

// launcherIndex returns the index of the argv token that invokes the
// launcher, either the executable itself or the module named after `-m`,
// or -1. Tokens are compared whole so names that merely contain the
// launcher (vllmd, vllm-observer) do not count.
func (c *classifier) launcherIndex(argv []string) int {
	for i, tok := range argv {
		if filepath.Base(tok) == c.launcher {
			return i
		}
		if tok == "-m" && i+1 < len(argv) {
			if mod := argv[i+1]; mod == c.launcher || strings.HasPrefix(mod, c.launcher+".") {
				return i + 1
			}
		}
	}
	return -1
}

// serveArgs returns the arguments following `<launcher> serve`.
func (c *classifier) serveArgs(argv []string) ([]string, bool) {
	i := c.launcherIndex(argv)
	if i < 0 || i+1 >= len(argv) || argv[i+1] != "serve" {
		return nil, false
	}
	return argv[i+2:], true
}

// matchServing recognises `<launcher> serve <model> [--port <p>]`, with the
// launcher given as a path or as `python -m vllm`.
func matchServing(c *classifier, p ProcessInfo) (Discovery, bool) {
	args, ok := c.serveArgs(p.Cmdline)
	if !ok {
		return Discovery{}, false
	}
	model := unknownModel
	if len(args) > 0 {
		model = args[0]
	}
	port := discoveredDefaultPort
	for i, arg := range args {
		if arg == "--port" && i+1 < len(args) {
			if n, err := strconv.Atoi(args[i+1]); err == nil {
				port = n
			}
		}
	}
	name := model
	if model == unknownModel {
		name = unknownName(p.PID)
	}
	return Discovery{Name: name, Model: model, Port: port, HasPort: true, Status: StatusRunning}, true
}

// matchZombieWorker recognises an engine worker re-parented to init after
// its serving parent died.
func matchZombieWorker(c *classifier, p ProcessInfo) (Discovery, bool) {
	if !strings.Contains(p.joined(), c.marker) && !strings.Contains(p.Name, c.marker) {
		return Discovery{}, false
	}
	if p.PPID != 1 {
		return Discovery{}, false
	}
	return Discovery{Name: zombieName(p.PID), Status: StatusZombie}, true
}

func unknownName(pid int) string { return fmt.Sprintf("Unknown (PID:%d)", pid) }
func zombieName(pid int) string  { return fmt.Sprintf("zombie (pid:%d)", pid) }

var zombieNameRe = regexp.MustCompile(`^zombie \(pid:(\d+)\)$`)

// parseZombiePID extracts the PID from a synthesized zombie name.
func parseZombiePID(name string) (int, bool) {
	m := zombieNameRe.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	pid, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return pid, true
}

// discover scans the process table once and returns the instances found.
func (s *Supervisor) discover(ctx context.Context) map[string]*Instance {
	found := make(map[string]*Instance)
	procs, err := s.table.Processes(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("process scan failed")
		return found
	}
	cls := newClassifier(s.cfg.VLLMPath, s.cfg.EngineMarker)
	lineage := s.selfLineage(ctx)
	for _, p := range procs {
		if lineage[p.PID] || s.isSelfExe(p) {
			continue
		}
		d, ok := cls.Classify(p)
		if !ok {
			continue
		}
		h, err := s.table.Handle(ctx, p.PID)
		if err != nil {
			s.log.Debug().Err(err).Int("pid", p.PID).Msg("process vanished during scan")
			continue
		}
		name := d.Name
		if _, dup := found[name]; dup {
			name = fmt.Sprintf("%s (PID:%d)", d.Name, p.PID)
		}
		found[name] = &Instance{
			Name:                 name,
			Handle:               h,
			PID:                  p.PID,
			Port:                 d.Port,
			HasPort:              d.HasPort,
			Status:               d.Status,
			DiscoveredExternally: true,
			StartedAt:            time.Now(),
			Command:              slices.Clone(p.Cmdline),
		}
		if d.Status == StatusZombie {
			s.log.Warn().Int("pid", p.PID).Str("name", name).Msg("found zombie vLLM worker")
			s.emit("discover_zombie", name, map[string]any{"pid": p.PID})
		} else {
			s.log.Info().Str("model", name).Int("pid", p.PID).Int("port", d.Port).Msg("found running vLLM")
			s.emit("discover_found", name, map[string]any{"pid": p.PID, "port": d.Port})
		}
	}
	return found
}

// selfLineage returns this process and its ancestors. A parent such as
// `sudo vllmd serve` must never be adopted and later killed.
func (s *Supervisor) selfLineage(ctx context.Context) map[int]bool {
	out := map[int]bool{s.selfPID: true}
	pid := s.selfPID
	for i := 0; i < maxAncestry; i++ {
		info, err := s.table.Lookup(ctx, pid)
		if err != nil || info.PPID <= 1 {
			break
		}
		pid = info.PPID
		out[pid] = true
	}
	return out
}

// isSelfExe reports whether p runs this supervisor's binary, for example a
// second vllmd started with --vllm-path.
func (s *Supervisor) isSelfExe(p ProcessInfo) bool {
	return s.selfExe != "" && slices.Contains(p.Cmdline, s.selfExe)
}
