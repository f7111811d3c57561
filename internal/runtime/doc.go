// Package runtime wires storage, configuration, the Kafka consumer, and
// the HeadCache registry into a single process instance. It exposes
// Open/Close, a health check, and the decorated Querier the HTTP server
// calls.
//
// Example:
//
//	cfg, _ := config.Load("")
//	rt, _ := runtime.Open(runtime.Options{Config: cfg})
//	defer rt.Close()
//	_ = rt.CheckHealth(context.Background())
//	res, _ := rt.Querier().Get(context.Background(), headcache.Key{Topic: "orders", ID: "agg-1"}, 0, 42)
package runtime
