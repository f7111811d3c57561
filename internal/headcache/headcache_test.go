package headcache

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestHeadCacheGetLazilyStartsTopicCache(t *testing.T) {
	consumer := newFakeConsumer(0)
	hc := New(Options{
		Consumer: consumer,
		Pointers: newFakePointerSource(nil),
		Config:   testConfig(),
		Logger:   silentLogger(),
	})
	defer hc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	result, err := hc.Get(ctx, Key{Topic: "orders", ID: "agg-1"}, 0, 0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if result.IsInvalid() || !result.Info().IsEmpty() {
		t.Fatalf("expected Valid(Empty), got %v", result)
	}
}

func TestHeadCacheConcurrentFirstQueriesShareOneTopicCache(t *testing.T) {
	consumer := newFakeConsumer(0)
	hc := New(Options{
		Consumer: consumer,
		Pointers: newFakePointerSource(nil),
		Config:   testConfig(),
		Logger:   silentLogger(),
	})
	defer hc.Close()

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if _, err := hc.Get(ctx, Key{Topic: "orders", ID: "agg-1"}, 0, 0); err != nil {
				t.Errorf("get: %v", err)
			}
		}()
	}
	wg.Wait()

	hc.mu.RLock()
	count := len(hc.caches)
	hc.mu.RUnlock()
	if count != 1 {
		t.Fatalf("expected exactly one TopicCache for one topic, got %d", count)
	}
}

func TestHeadCacheGetAfterCloseReturnsErrClosed(t *testing.T) {
	consumer := newFakeConsumer(0)
	hc := New(Options{
		Consumer: consumer,
		Pointers: newFakePointerSource(nil),
		Config:   testConfig(),
		Logger:   silentLogger(),
	})
	if err := hc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := hc.Get(ctx, Key{Topic: "orders", ID: "agg-1"}, 0, 0)
	if err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestHeadCacheCloseIsIdempotent(t *testing.T) {
	hc := New(Options{
		Consumer: newFakeConsumer(0),
		Pointers: newFakePointerSource(nil),
		Config:   testConfig(),
		Logger:   silentLogger(),
	})
	if err := hc.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := hc.Close(); err != nil {
		t.Fatalf("second close should be a no-op, got %v", err)
	}
}

func TestHeadCacheClosesMultipleTopicCachesConcurrently(t *testing.T) {
	consumer := newFakeConsumer(0)
	hc := New(Options{
		Consumer: consumer,
		Pointers: newFakePointerSource(nil),
		Config:   testConfig(),
		Logger:   silentLogger(),
	})

	for _, topic := range []Topic{"orders", "payments", "shipments"} {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_, err := hc.Get(ctx, Key{Topic: topic, ID: "agg-1"}, 0, 0)
		cancel()
		if err != nil {
			t.Fatalf("get %s: %v", topic, err)
		}
	}

	if err := hc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
