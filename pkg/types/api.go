package types

import "time"

// Operation result values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// StartRequest is the body of POST /api/vllm/start.
type StartRequest struct {
	// Model identifier to serve. Defaults to facebook/opt-125m when omitted.
	// example: facebook/opt-125m
	Model string `json:"model,omitempty" example:"facebook/opt-125m"`
}

// StopRequest is the body of POST /api/vllm/stop. An empty model stops every instance.
type StopRequest struct {
	// Instance name to stop. Omit to stop everything.
	// example: facebook/opt-125m
	Model string `json:"model,omitempty" example:"facebook/opt-125m"`
}

// OpResult is returned by start and stop.
type OpResult struct {
	// success or error.
	// example: success
	Status string `json:"status" example:"success"`
	// Human readable outcome.
	// example: Starting facebook/opt-125m on port 8001
	Message string `json:"message" example:"Starting facebook/opt-125m on port 8001"`
	// Assigned port on a successful start.
	// example: 8001
	Port *int `json:"port,omitempty" example:"8001"`
}

// ControlStatus is returned by GET /api/vllm/control/status.
type ControlStatus struct {
	// True when at least one instance is registered.
	// example: true
	Running bool `json:"running" example:"true"`
	// Registered instances.
	Models []ModelStatus `json:"models"`
}

// FeedFrame is one live-feed snapshot pushed to observers.
type FeedFrame struct {
	Timestamp time.Time     `json:"timestamp"`
	Running   bool          `json:"running"`
	Models    []ModelStatus `json:"models"`
	// Extra carries data merged in by other producers (telemetry, downloads).
	Extra map[string]any `json:"extra,omitempty"`
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	// example: healthy
	Status    string `json:"status" example:"healthy"`
	Timestamp string `json:"timestamp" example:"2024-01-01T00:00:00Z"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
