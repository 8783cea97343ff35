package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/truckhub/core/events"
	coremetrics "github.com/kilianp07/truckhub/core/metrics"
)

// PromSink records run results in Prometheus metrics.
type PromSink struct {
	units     *prometheus.CounterVec
	quota     *prometheus.GaugeVec
	energy    *prometheus.CounterVec
	solve     *prometheus.HistogramVec
	stations  *prometheus.GaugeVec
	sizeQuota *prometheus.GaugeVec
}

// NewPromSink registers run metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by an earlier sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "truckhub_units_total",
			Help: "Finished dispatch units by outcome",
		}, []string{"scenario", "strategy", "outcome"}),
		quota: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "truckhub_unit_service_quota",
			Help: "Share of served sessions reaching their target SoC in the last unit",
		}, []string{"scenario", "strategy"}),
		energy: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "truckhub_energy_kwh_total",
			Help: "Energy delivered by solved units",
		}, []string{"scenario", "strategy"}),
		solve: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "truckhub_unit_duration_seconds",
			Help:    "Wall time per unit including model build",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"strategy"}),
		stations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "truckhub_sizing_stations",
			Help: "Station count found by the sizing search",
		}, []string{"scenario", "class"}),
		sizeQuota: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "truckhub_sizing_quota",
			Help: "Service quota reached by the sizing search",
		}, []string{"scenario", "class"}),
	}
	var err error
	if s.units, err = register(reg, s.units); err != nil {
		return nil, err
	}
	if s.quota, err = register(reg, s.quota); err != nil {
		return nil, err
	}
	if s.energy, err = register(reg, s.energy); err != nil {
		return nil, err
	}
	if s.solve, err = register(reg, s.solve); err != nil {
		return nil, err
	}
	if s.stations, err = register(reg, s.stations); err != nil {
		return nil, err
	}
	if s.sizeQuota, err = register(reg, s.sizeQuota); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordUnit counts the unit and updates quota and energy for solved units.
func (s *PromSink) RecordUnit(rec coremetrics.UnitRecord) error {
	k := rec.Key
	s.units.WithLabelValues(k.Scenario, k.Strategy, rec.Outcome).Inc()
	s.solve.WithLabelValues(k.Strategy).Observe(rec.SolveTime.Seconds())
	if rec.Outcome == events.OutcomeOptimal {
		s.quota.WithLabelValues(k.Scenario, k.Strategy).Set(rec.Quota)
		s.energy.WithLabelValues(k.Scenario, k.Strategy).Add(rec.EnergyKWh)
	}
	return nil
}

// RecordSizing sets the sizing gauges of the class.
func (s *PromSink) RecordSizing(rec coremetrics.SizingRecord) error {
	c := rec.Class.String()
	s.stations.WithLabelValues(rec.Scenario, c).Set(float64(rec.Stations))
	s.sizeQuota.WithLabelValues(rec.Scenario, c).Set(rec.Quota)
	return nil
}
