// Package metrics defines the sinks that record run observability data.
// Sinks like the Prometheus and Influx sinks in infra/metrics record unit
// outcomes and sizing results and can be combined with NewMultiSink. The
// factory helpers return a MultiSink automatically when multiple sinks are
// configured.
package metrics
