// Package analytics provides the fire-and-forget observation boundary of the
// pipeline. Every stage transition, delivery, fallback and upstream call is
// reported as an Event; sinks record latency, outcome and cost without ever
// influencing routing decisions or blocking the caller.
//
// Two production sinks are provided: a Prometheus sink exposing counters,
// gauges and histograms, and an OpenTelemetry tracer emitting one span per
// router delivery and stage execution. The MemorySink exists for tests.
package analytics
