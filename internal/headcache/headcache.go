package headcache

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	logpkg "github.com/rzbill/headcache/pkg/log"
)

// Querier is the read surface a caller actually needs: resolve a query
// for one aggregate in one partition at-or-after offset. HeadCache and
// both decorators in decorator.go implement it, so they compose freely.
type Querier interface {
	Get(ctx context.Context, key Key, partition Partition, offset Offset) (Result, error)
}

// Options configures a HeadCache registry (spec §4.4).
type Options struct {
	// Consumer is shared across every topic's TopicCache.
	Consumer Consumer
	// Pointers resolves the eventual (durable) offset pointer per topic.
	Pointers PointerSource
	// Config is the default TopicCache configuration; per-topic overrides
	// are not exposed since the spec names none.
	Config Config
	Logger logpkg.Logger
	// Metrics receives per-topic observations. Defaults to NoopMetrics.
	Metrics MetricsHook
}

// HeadCache is the top-level registry: one lazily constructed TopicCache
// per topic, looked up by Get and torn down together by Close (spec
// §4.4, C4). It is the package's only exported entry point meant for
// direct embedding into a server.
type HeadCache struct {
	opts Options
	sf   singleflight.Group

	mu     sync.RWMutex
	caches map[Topic]*TopicCache

	closed atomic.Bool
}

// New builds a HeadCache. Construction never touches the consumer or
// pointer source — that happens lazily, per topic, on first Get.
func New(opts Options) *HeadCache {
	if opts.Logger == nil {
		opts.Logger = logpkg.NewLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = NoopMetrics{}
	}
	return &HeadCache{
		opts:   opts,
		caches: make(map[Topic]*TopicCache),
	}
}

// Get resolves a query, lazily starting the topic's TopicCache if this
// is the first query seen for it. Concurrent first-queries for the same
// topic share one construction via singleflight, so a burst of
// concurrent callers against a cold topic starts exactly one TopicCache.
func (hc *HeadCache) Get(ctx context.Context, key Key, partition Partition, offset Offset) (Result, error) {
	if hc.closed.Load() {
		return Result{}, ErrClosed
	}

	tc, err := hc.topicCache(ctx, key.Topic)
	if err != nil {
		return Result{}, err
	}
	return tc.Get(ctx, key.ID, partition, offset)
}

func (hc *HeadCache) topicCache(ctx context.Context, topic Topic) (*TopicCache, error) {
	hc.mu.RLock()
	tc, ok := hc.caches[topic]
	hc.mu.RUnlock()
	if ok {
		return tc, nil
	}

	v, err, _ := hc.sf.Do(string(topic), func() (interface{}, error) {
		hc.mu.RLock()
		existing, ok := hc.caches[topic]
		hc.mu.RUnlock()
		if ok {
			return existing, nil
		}

		created, err := NewTopicCache(ctx, topic, hc.opts.Consumer, hc.opts.Pointers, hc.opts.Config, hc.opts.Logger, hc.opts.Metrics)
		if err != nil {
			return nil, err
		}

		if hc.closed.Load() {
			_ = created.Close()
			return nil, ErrClosed
		}

		hc.mu.Lock()
		hc.caches[topic] = created
		hc.mu.Unlock()
		return created, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*TopicCache), nil
}

// Warm eagerly constructs a TopicCache for each topic instead of waiting
// for its first Get, so operators can pre-warm known topics at startup
// rather than taking the first query's partition-discovery latency. A
// topic that fails to warm (e.g. not yet created on the broker) is
// logged and skipped; it still starts lazily on its first Get.
func (hc *HeadCache) Warm(ctx context.Context, topics []Topic) {
	for _, topic := range topics {
		if _, err := hc.topicCache(ctx, topic); err != nil {
			hc.opts.Logger.Warnf("warm topic %s: %v", topic, err)
		}
	}
}

// Close tears down every constructed TopicCache concurrently and blocks
// until all have stopped. Get calls made after Close begins return
// ErrClosed; Get calls already in flight still run to completion against
// their TopicCache (Close does not cancel their context).
func (hc *HeadCache) Close() error {
	if !hc.closed.CompareAndSwap(false, true) {
		return nil
	}

	hc.mu.Lock()
	caches := make([]*TopicCache, 0, len(hc.caches))
	for _, tc := range hc.caches {
		caches = append(caches, tc)
	}
	hc.caches = map[Topic]*TopicCache{}
	hc.mu.Unlock()

	var g errgroup.Group
	for _, tc := range caches {
		tc := tc
		g.Go(tc.Close)
	}
	return g.Wait()
}
