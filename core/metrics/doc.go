// Package metrics defines the observability port of the engine. Sinks such
// as the Prometheus PromSink record booking transitions, recommendation
// outcomes and aggregation skips, and can be combined with NewMultiSink.
package metrics
