// Package metrics defines the sink interface used to record planning runs.
// Sinks like PromSink, InfluxSink and SQLiteStore live in infra/metrics and
// register themselves in the factory; NewMetricsSink returns a MultiSink
// automatically when multiple sinks are configured.
package metrics
