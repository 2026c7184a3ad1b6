package supervisor

import (
	"errors"
	"fmt"
)

// alreadyRunningError signals a start request for a name that is still live.
type alreadyRunningError struct {
	name string
	port string
}

func (e alreadyRunningError) Error() string {
	return fmt.Sprintf("Model %s is already running on port %s", e.name, e.port)
}

// ErrAlreadyRunning constructs an alreadyRunningError.
func ErrAlreadyRunning(name, port string) error { return alreadyRunningError{name: name, port: port} }

// IsAlreadyRunning reports whether err indicates a duplicate start.
func IsAlreadyRunning(err error) bool {
	var e alreadyRunningError
	return errors.As(err, &e)
}

// capacityExceededError signals that the active-instance ceiling is reached.
type capacityExceededError struct{ limit int }

func (e capacityExceededError) Error() string {
	return fmt.Sprintf("Max model limit reached (%d). Stop a model first.", e.limit)
}

func ErrCapacityExceeded(limit int) error { return capacityExceededError{limit: limit} }

// IsCapacityExceeded reports whether err indicates the instance ceiling was hit.
func IsCapacityExceeded(err error) bool {
	var e capacityExceededError
	return errors.As(err, &e)
}

type portExhaustedError struct{ from, to int }

func (e portExhaustedError) Error() string {
	return fmt.Sprintf("no free port in range %d-%d", e.from, e.to)
}

// ErrPortExhausted returns an error for a port scan that hit its ceiling.
func ErrPortExhausted(from, to int) error { return portExhaustedError{from: from, to: to} }

func IsPortExhausted(err error) bool {
	var e portExhaustedError
	return errors.As(err, &e)
}

// notFoundError is returned when a stop target is not registered.
type notFoundError struct{ name string }

func (e notFoundError) Error() string { return fmt.Sprintf("Model %s not found", e.name) }

func ErrNotFound(name string) error { return notFoundError{name: name} }

// IsNotFound reports whether err indicates an unknown instance name.
func IsNotFound(err error) bool {
	var e notFoundError
	return errors.As(err, &e)
}

// spawnFailureError wraps the reason the launcher could not be executed.
type spawnFailureError struct {
	name string
	err  error
}

func (e spawnFailureError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.name, e.err)
}

func (e spawnFailureError) Unwrap() error { return e.err }

func ErrSpawnFailure(name string, err error) error { return spawnFailureError{name: name, err: err} }

func IsSpawnFailure(err error) bool {
	var e spawnFailureError
	return errors.As(err, &e)
}

// signalFailureError records a signal that could not be delivered. It is
// never fatal: the registry entry is cleared regardless.
type signalFailureError struct {
	pid    int
	signal string
	err    error
}

func (e signalFailureError) Error() string {
	return fmt.Sprintf("%s pid %d: %v", e.signal, e.pid, e.err)
}

func (e signalFailureError) Unwrap() error { return e.err }

func ErrSignalFailure(pid int, signal string, err error) error {
	return signalFailureError{pid: pid, signal: signal, err: err}
}

// IsSignalFailure reports whether err contains a failed signal delivery.
func IsSignalFailure(err error) bool {
	var e signalFailureError
	return errors.As(err, &e)
}
