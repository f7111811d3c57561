// Package headcache implements the HeadCache: a concurrent, bounded
// in-memory index over the tail of a partitioned, append-only journal.
//
// # Overview
//
// A HeadCache owns one TopicCache per topic, created lazily on first
// query. Each TopicCache folds a live consumer stream (the Consumer
// interface, §4.1) with an asynchronous durable-pointer source (the
// PointerSource interface, §4.2) into a bounded per-partition entry map,
// and answers get(id, partition, offset) queries either from a snapshot
// or by registering a listener that wakes on the next satisfying update.
//
// The cache never returns a false Valid answer: on any doubt (missing
// partition, trimmed range, a topic whose ingest loop failed) it answers
// Invalid so the caller falls back to the durable store. Once the
// registry is closed, Get returns ErrClosed instead.
//
// # Quick start
//
//	hc := headcache.New(headcache.Options{
//	    Consumer:       myConsumer,
//	    Pointers:       myPointerSource,
//	    Config:         headcache.DefaultConfig(),
//	    Logger:         logger,
//	    Metrics:        headcache.NoopMetrics{},
//	})
//	defer hc.Close()
//
//	res, err := hc.Get(ctx, headcache.Key{Topic: "orders", ID: "agg-1"}, 0, 42)
package headcache
