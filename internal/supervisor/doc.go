// Package supervisor owns the registry of locally hosted vLLM serving
// processes and keeps it consistent with what the operating system reports.
// It is structured into small files by concern:
//
//   - supervisor.go: Supervisor type, constructor, registry helpers.
//   - config.go: Config and package defaults; New applies defaults.
//   - types.go: Instance, Status and the result types of Start/Stop.
//   - errors.go: error taxonomy and predicates (IsAlreadyRunning, IsNotFound, ...).
//   - ports.go: port allocation by TCP connect probing.
//   - proctable.go: process table access backed by gopsutil.
//   - handle.go: spawned and scanned process handles.
//   - discover.go: startup scan and the ordered classification rules.
//   - launch.go: vLLM command line construction and spawning.
//   - start.go / stop.go: lifecycle operations.
//   - status.go: reconciliation of the registry against the OS.
//   - publisher.go: periodic snapshot fan-out for live feeds.
//   - events.go, metrics.go: lifecycle events and Prometheus collectors.
//
// Everything outside this package talks to the registry through Supervisor
// methods and only ever receives copies of its state.
package supervisor
