// Package otel publishes goAuthClient counters as OpenTelemetry observable
// instruments.
//
// [New] registers one Int64ObservableCounter per client counter and one
// Int64ObservableGauge per latency bucket. A single callback reads the client's
// MetricsSnapshot on each collection. The caller owns the MeterProvider.
package otel
