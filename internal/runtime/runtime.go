// Package runtime wires storage, configuration, and the HeadCache
// registry into one object a server command can open and close.
package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/rzbill/headcache/internal/config"
	"github.com/rzbill/headcache/internal/headcache"
	pebblestore "github.com/rzbill/headcache/internal/storage/pebble"
	"github.com/rzbill/headcache/pkg/log"
)

// Options configures Open.
type Options struct {
	Config config.Config
	Logger log.Logger
}

// Runtime owns the pointer store, the Kafka consumer, and the HeadCache
// registry built on top of them, for a single process instance.
type Runtime struct {
	db         *pebblestore.DB
	consumer   *headcache.SaramaConsumer
	cache      *headcache.HeadCache
	metrics    *headcache.PrometheusMetrics
	config     config.Config
	logger     log.Logger
	instanceID uuid.UUID
}

// Open initializes storage, connects the Kafka consumer, and constructs
// the HeadCache registry. Topics listed in Config.Kafka.Topics are warmed
// eagerly; any other topic's cache starts lazily on its first query.
func Open(opts Options) (*Runtime, error) {
	if opts.Logger == nil {
		opts.Logger = log.NewLogger()
	}
	instanceID := uuid.New()
	logger := opts.Logger.WithComponent("runtime").WithField("instanceId", instanceID.String())

	db, err := pebblestore.Open(pebblestore.Options{DataDir: opts.Config.Storage.DataDir})
	if err != nil {
		return nil, fmt.Errorf("runtime: open storage: %w", err)
	}

	onConsumerError := func(topic headcache.Topic, partition headcache.Partition, err error) {
		logger.Warnf("consumer error on %s/%d: %v", topic, partition, err)
	}
	consumer, err := headcache.NewSaramaConsumer(opts.Config.Kafka.Brokers, opts.Config.Kafka.ClientID, onConsumerError)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("runtime: connect kafka: %w", err)
	}

	metrics := headcache.NewPrometheusMetrics()
	pointers := headcache.NewPebblePointerSource(db)
	cache := headcache.New(headcache.Options{
		Consumer: consumer,
		Pointers: pointers,
		Config: headcache.Config{
			PollTimeout:                   opts.Config.Cache.PollTimeout,
			CleanInterval:                 opts.Config.Cache.CleanInterval,
			MaxSize:                       opts.Config.Cache.MaxSize,
			PartitionDiscoveryBaseBackoff: opts.Config.Cache.PartitionDiscoveryBaseBackoff,
			PartitionDiscoveryMaxBackoff:  opts.Config.Cache.PartitionDiscoveryMaxBackoff,
			PartitionDiscoveryAttempts:    opts.Config.Cache.PartitionDiscoveryAttempts,
		},
		Logger:  logger,
		Metrics: metrics,
	})

	if len(opts.Config.Kafka.Topics) > 0 {
		topics := make([]headcache.Topic, len(opts.Config.Kafka.Topics))
		for i, t := range opts.Config.Kafka.Topics {
			topics[i] = headcache.Topic(t)
		}
		cache.Warm(context.Background(), topics)
	}

	logger.Info("runtime opened", log.Str("instanceId", instanceID.String()))
	return &Runtime{db: db, consumer: consumer, cache: cache, metrics: metrics, config: opts.Config, logger: logger, instanceID: instanceID}, nil
}

// InstanceID returns this process's random instance id, stamped into
// startup logs and the /healthz response so operators can tell which
// process answered a given request.
func (r *Runtime) InstanceID() string { return r.instanceID.String() }

// Querier returns the decorated query surface the HTTP server should
// call: metrics recording around debug logging around the registry
// itself (spec §4.4).
func (r *Runtime) Querier() headcache.Querier {
	return headcache.WithMetrics(headcache.WithDebugLogging(r.cache, r.logger), r.metrics)
}

// Close tears down the HeadCache registry and the pointer store, in that
// order. Each TopicCache closes the shared Kafka consumer as it stops;
// when no TopicCache was started, the consumer is not closed.
func (r *Runtime) Close() error {
	var errs []error
	if r.cache != nil {
		if err := r.cache.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CheckHealth performs a cheap readiness probe against the pointer
// store.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("runtime: storage not open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}

// Cache exposes the HeadCache registry for the query server.
func (r *Runtime) Cache() *headcache.HeadCache { return r.cache }

// PointerStore exposes the durable pointer store, e.g. for tooling that
// seeds/advances pointers out of band.
func (r *Runtime) PointerStore() *headcache.PebblePointerSource {
	return headcache.NewPebblePointerSource(r.db)
}

// Config returns the runtime configuration.
func (r *Runtime) Config() config.Config { return r.config }
