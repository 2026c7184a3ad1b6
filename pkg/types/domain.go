package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// NotApplicablePort is the wire value used for instances without a listening
// socket (zombie engine workers).
const NotApplicablePort = "N/A"

// InstancePort is the TCP port an instance answers on. It marshals as a JSON
// number when known and as "N/A" otherwise.
type InstancePort struct {
	Value int
	Known bool
}

// PortOf returns a known port.
func PortOf(p int) InstancePort { return InstancePort{Value: p, Known: true} }

// NoPort returns the not-applicable port.
func NoPort() InstancePort { return InstancePort{} }

func (p InstancePort) String() string {
	if !p.Known {
		return NotApplicablePort
	}
	return strconv.Itoa(p.Value)
}

func (p InstancePort) MarshalJSON() ([]byte, error) {
	if !p.Known {
		return json.Marshal(NotApplicablePort)
	}
	return []byte(strconv.Itoa(p.Value)), nil
}

func (p *InstancePort) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == NotApplicablePort || s == "" {
			*p = NoPort()
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid port %q", s)
		}
		*p = PortOf(n)
		return nil
	}
	if string(b) == "null" {
		*p = NoPort()
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*p = PortOf(n)
	return nil
}

// ModelStatus is the public view of one managed instance.
type ModelStatus struct {
	// Display name (model identifier or synthesized name).
	// example: facebook/opt-125m
	Name string `json:"name" example:"facebook/opt-125m"`
	// Port the instance answers on, or "N/A".
	// example: 8001
	Port InstancePort `json:"port" swaggertype:"primitive,string" example:"8001"`
	// Lifecycle status: starting, running or zombie.
	// example: running
	Status string `json:"status" example:"running"`
}
