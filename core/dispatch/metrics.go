package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	unitsTotal   *prometheus.CounterVec
	solveLatency *prometheus.HistogramVec
	unitQuota    *prometheus.GaugeVec
	branchNodes  prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.HistogramVec, *prometheus.GaugeVec, prometheus.Counter) {
	units := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_units_total",
			Help: "Number of dispatch units processed by outcome",
		},
		[]string{"strategy", "outcome"},
	)
	lat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_solve_seconds",
			Help:    "Wall time spent solving one dispatch unit",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
		[]string{"strategy"},
	)
	quota := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dispatch_unit_quota",
			Help: "Share of fully charged sessions in the last solved unit",
		},
		[]string{"strategy"},
	)
	nodes := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_branch_nodes_total",
			Help: "Branch and bound nodes explored",
		},
	)
	return units, lat, quota, nodes
}

func init() {
	unitsTotal, solveLatency, unitQuota, branchNodes = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(unitsTotal, solveLatency, unitQuota, branchNodes)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	unitsTotal, solveLatency, unitQuota, branchNodes = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
