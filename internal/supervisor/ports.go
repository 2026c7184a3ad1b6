package supervisor

import (
	"net"
	"strconv"
	"time"
)

const maxTCPPort = 65535

// PortProber reports whether something accepts TCP connections on a port.
type PortProber interface {
	InUse(port int) bool
}

type tcpProber struct {
	host    string
	timeout time.Duration
}

// NewTCPProber returns a prober that dials host:port with the given timeout.
func NewTCPProber(host string, timeout time.Duration) PortProber {
	if host == "" {
		host = "127.0.0.1"
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return tcpProber{host: host, timeout: timeout}
}

// InUse treats a successful connect as "in use" and any failure as free.
func (p tcpProber) InUse(port int) bool {
	start := time.Now()
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(p.host, strconv.Itoa(port)), p.timeout)
	portProbeSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// NextFreePort returns the first port at or above base that is neither
// reserved nor answering connects. At most maxScan ports are tried.
func NextFreePort(prober PortProber, base, maxScan int, reserved func(int) bool) (int, error) {
	if maxScan <= 0 {
		maxScan = DefaultMaxPortScan
	}
	last := base + maxScan - 1
	if last > maxTCPPort {
		last = maxTCPPort
	}
	for p := base; p <= last; p++ {
		if reserved != nil && reserved(p) {
			continue
		}
		if prober.InUse(p) {
			continue
		}
		return p, nil
	}
	return 0, ErrPortExhausted(base, last)
}
