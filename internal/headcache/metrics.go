package headcache

import "time"

// Outcome classifies a query result for the metrics surface (spec §6),
// including failure — a query that errors is still a data point.
type Outcome string

const (
	OutcomeReplicated    Outcome = "replicated"
	OutcomeNotReplicated Outcome = "not_replicated"
	OutcomeInvalid       Outcome = "invalid"
	OutcomeFailure       Outcome = "failure"
)

// MetricsHook is the metrics surface emitted by the core (spec §6),
// shaped after the teacher's own pebblestore.MetricsHook
// (ObserveWrite/ObserveRead/ObserveBatchCommit) rather than a bespoke
// interface: one Observe* method per emitted metric name, kept narrow
// and dependency-free so the core package itself never imports a
// metrics backend directly.
type MetricsHook interface {
	// ObserveGet records one query's latency and outcome classification.
	ObserveGet(topic Topic, latency time.Duration, outcome Outcome)
	// ObserveListeners records the current listener-list size for topic.
	ObserveListeners(topic Topic, size int)
	// ObserveRound records one ingest-loop round: new entries folded,
	// listeners still pending after the round, and delivery latency
	// (now - firstRecord.timestamp).
	ObserveRound(topic Topic, entries int, listeners int, deliveryLatency time.Duration)
}

// NoopMetrics discards all observations. It is the default when no
// MetricsHook is supplied, mirroring the teacher's NoopMetrics for
// pebblestore.
type NoopMetrics struct{}

func (NoopMetrics) ObserveGet(Topic, time.Duration, Outcome)       {}
func (NoopMetrics) ObserveListeners(Topic, int)                    {}
func (NoopMetrics) ObserveRound(Topic, int, int, time.Duration)    {}
