package supervisor

import "github.com/prometheus/client_golang/prometheus"

var (
	instancesGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "vllmd",
			Subsystem: "supervisor",
			Name:      "instances",
			Help:      "Registered vLLM instances by status",
		},
		[]string{"status"},
	)

	startsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vllmd",
			Subsystem: "supervisor",
			Name:      "starts_total",
			Help:      "Start requests by result",
		},
		[]string{"result"},
	)

	stopsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vllmd",
			Subsystem: "supervisor",
			Name:      "stops_total",
			Help:      "Stopped registry entries by result",
		},
		[]string{"result"},
	)

	reconcileRemovals = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vllmd",
			Subsystem: "supervisor",
			Name:      "reconcile_removals_total",
			Help:      "Entries dropped by status reconciliation because their process died",
		},
	)

	portProbeSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "vllmd",
			Subsystem: "supervisor",
			Name:      "port_probe_seconds",
			Help:      "Duration of TCP port probes",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .25, .5},
		},
	)
)

func init() {
	prometheus.MustRegister(instancesGauge, startsTotal, stopsTotal, reconcileRemovals, portProbeSeconds)
}
