package headcache

import (
	"context"
	"time"

	logpkg "github.com/rzbill/headcache/pkg/log"
)

// WithMetrics wraps next so every Get call is timed and classified into
// an Outcome, reported through metrics.ObserveGet (spec §4.4, §6). It
// composes with WithDebugLogging in either order.
func WithMetrics(next Querier, metrics MetricsHook) Querier {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &metricsQuerier{next: next, metrics: metrics}
}

type metricsQuerier struct {
	next    Querier
	metrics MetricsHook
}

func (m *metricsQuerier) Get(ctx context.Context, key Key, partition Partition, offset Offset) (Result, error) {
	start := time.Now()
	result, err := m.next.Get(ctx, key, partition, offset)
	outcome := classify(result, err)
	m.metrics.ObserveGet(key.Topic, time.Since(start), outcome)
	return result, err
}

func classify(result Result, err error) Outcome {
	if err != nil {
		return OutcomeFailure
	}
	if result.IsInvalid() {
		return OutcomeInvalid
	}
	if result.Info().IsEmpty() {
		return OutcomeNotReplicated
	}
	return OutcomeReplicated
}

// WithDebugLogging wraps next so every Get call and its outcome are
// logged at debug level, tagged with the resolved key (spec §4.4). The
// logged latency covers next and everything beneath it; a decorator
// wrapped around this one is not included.
func WithDebugLogging(next Querier, logger logpkg.Logger) Querier {
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	return &debugLogQuerier{next: next, logger: logger.WithComponent("headcache")}
}

type debugLogQuerier struct {
	next   Querier
	logger logpkg.Logger
}

func (d *debugLogQuerier) Get(ctx context.Context, key Key, partition Partition, offset Offset) (Result, error) {
	start := time.Now()
	result, err := d.next.Get(ctx, key, partition, offset)
	fields := []logpkg.Field{
		logpkg.Str("topic", string(key.Topic)),
		logpkg.Str("id", string(key.ID)),
		logpkg.Int("partition", int(partition)),
		logpkg.Int64("offset", int64(offset)),
		logpkg.Duration("latency", time.Since(start)),
	}
	if err != nil {
		d.logger.Debug("get failed", append(fields, logpkg.Err(err))...)
		return result, err
	}
	d.logger.Debug("get "+result.String(), fields...)
	return result, nil
}
