// Package infra holds the adapters around the hub simulation: MQTT
// publishing, metrics sinks, Sentry reporting, log setup and the CSV codecs.
// They depend only on interfaces and types defined in core.
package infra
