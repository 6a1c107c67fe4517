// Package prometheus exposes goAuthClient counters through
// github.com/prometheus/client_golang.
//
// [NewCollector] adapts a client (or any metrics source) to prometheus.Collector.
// [Handler] serves a private registry holding only that collector. Counter names are
// goauth_client_*_total; the single histogram is
// goauth_client_authority_latency_seconds.
//
// Nothing is registered in the global Prometheus registry.
package prometheus
