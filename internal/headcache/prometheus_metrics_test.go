package headcache

import (
	"testing"
	"time"
)

func TestPrometheusMetricsImplementsMetricsHook(t *testing.T) {
	m := NewPrometheusMetrics()
	var hook MetricsHook = m
	hook.ObserveGet("orders", 5*time.Millisecond, OutcomeReplicated)
	hook.ObserveListeners("orders", 3)
	hook.ObserveRound("orders", 2, 1, 10*time.Millisecond)
}
