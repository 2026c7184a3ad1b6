package supervisor

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"vllmd/pkg/types"
)

// Status represents the lifecycle state of a registered instance. Terminal
// states are never stored: a stopped or dead instance is removed.
type Status string

const (
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusZombie   Status = "zombie"
)

// Instance is one registry entry.
type Instance struct {
	Name   string
	Handle ProcessHandle
	PID    int
	// Port is meaningful only when HasPort is set; zombie workers have none.
	Port                 int
	HasPort              bool
	Status               Status
	DiscoveredExternally bool
	StartedAt            time.Time
	// Command is the launch argv for spawned instances and the scanned argv
	// for discovered ones.
	Command []string

	stopping bool
}

func (i *Instance) port() types.InstancePort {
	if !i.HasPort {
		return types.NoPort()
	}
	return types.PortOf(i.Port)
}

func (i *Instance) view() types.ModelStatus {
	return types.ModelStatus{Name: i.Name, Port: i.port(), Status: string(i.Status)}
}

// StartResult describes a successful Start.
type StartResult struct {
	Name string
	Port int
	PID  int
}

// Message renders the result the way the dashboard expects it.
func (r StartResult) Message() string {
	return fmt.Sprintf("Starting %s on port %d", r.Name, r.Port)
}

// StopOutcome is the result of stopping a single registry entry. The entry is
// removed from the registry whether or not Err is nil.
type StopOutcome struct {
	Name   string
	Zombie bool
	Err    error
}

func (o StopOutcome) String() string {
	switch {
	case o.Zombie && o.Err == nil:
		return "Killed zombie " + o.Name
	case o.Zombie:
		return fmt.Sprintf("Error killing zombie %s: %v", o.Name, o.Err)
	case o.Err == nil:
		return "Stopped " + o.Name
	default:
		return fmt.Sprintf("Error stopping %s: %v", o.Name, o.Err)
	}
}

// StopResult collects per-target outcomes of a Stop call.
type StopResult struct {
	Outcomes []StopOutcome
}

// Message joins the per-target outcomes into one line.
func (r StopResult) Message() string {
	if len(r.Outcomes) == 0 {
		return "No models running"
	}
	parts := make([]string, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		parts = append(parts, o.String())
	}
	return strings.Join(parts, ", ")
}

// Err joins the errors of failed targets, or returns nil when all succeeded.
func (r StopResult) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.Name, o.Err))
		}
	}
	return errors.Join(errs...)
}
