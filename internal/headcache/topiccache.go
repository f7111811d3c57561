package headcache

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rzbill/headcache/pkg/id"
	logpkg "github.com/rzbill/headcache/pkg/log"
)

// TopicCache maintains and serves State for exactly one topic (spec
// §4.3). It owns two long-lived background activities (ingest, cleanup)
// and one shared, mutation-serialized State cell guarded by mu — a
// mutex plus a plain owned value, matching the teacher's own approach to
// shared mutable state (e.g. eventlog.Log.mu around lastSeq) and the
// simpler of the two options named in spec §9.
type TopicCache struct {
	topic    Topic
	consumer Consumer
	pointers PointerSource
	cfg      Config
	logger   logpkg.Logger
	metrics  MetricsHook
	ids      *id.Generator

	mu     sync.Mutex
	state  *State
	failed error

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// pendingQuery is a one-shot listener: a query that was Behind when it
// ran the decision table, waiting for a future state update to resolve
// it. complete is idempotent, so a listener that is completed more than
// once only ever delivers its first result (spec §5 Cancellation).
// Deregistration only removes a listener from the list; it never
// completes it.
type pendingQuery struct {
	corrID    id.ID
	aggID     AggregateID
	partition Partition
	offset    Offset
	ch        chan Result
	done      uint32
}

func newPendingQuery(corrID id.ID, aggID AggregateID, partition Partition, offset Offset) *pendingQuery {
	return &pendingQuery{corrID: corrID, aggID: aggID, partition: partition, offset: offset, ch: make(chan Result, 1)}
}

func (q *pendingQuery) complete(r Result) bool {
	if !atomic.CompareAndSwapUint32(&q.done, 0, 1) {
		return false
	}
	q.ch <- r
	return true
}

// NewTopicCache constructs and starts a TopicCache for topic. It blocks
// through initialization (spec §4.3.1: fetch pointers, resolve
// partitions with bounded retry, assign+seek) before returning; callers
// typically run this inside a singleflight group keyed by topic (see
// HeadCache), since construction is not cheap.
func NewTopicCache(ctx context.Context, topic Topic, consumer Consumer, pointers PointerSource, cfg Config, logger logpkg.Logger, metrics MetricsHook) (*TopicCache, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	logger = logger.WithComponent("headcache.topiccache").WithField("topic", string(topic))
	if metrics == nil {
		metrics = NoopMetrics{}
	}

	state := newState()

	pointerMap, err := pointers.Pointers(topic)
	if err != nil {
		logger.Warnf("initial pointer fetch failed: %v", err)
		pointerMap = map[Partition]Offset{}
	}
	for p, off := range pointerMap {
		state.entries[p] = newPartitionEntry(p, off)
	}

	partitions, err := resolvePartitionsWithRetry(ctx, consumer, topic, cfg)
	if err != nil {
		return nil, &ErrPartitionDiscoveryFailed{Topic: topic, Cause: err}
	}

	seekOffsets := make(map[Partition]Offset, len(partitions))
	for _, p := range partitions {
		if _, ok := state.entries[p]; !ok {
			state.entries[p] = newPartitionEntry(p, 0)
		}
		if pointer, ok := pointerMap[p]; ok {
			seekOffsets[p] = pointer + 1
		} else {
			seekOffsets[p] = 0
		}
	}

	if err := consumer.Assign(topic, partitions); err != nil {
		return nil, fmt.Errorf("headcache: assign partitions: %w", err)
	}
	if err := consumer.Seek(topic, seekOffsets); err != nil {
		return nil, fmt.Errorf("headcache: seek partitions: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	tc := &TopicCache{
		topic:    topic,
		consumer: consumer,
		pointers: pointers,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		ids:      id.NewGenerator(),
		state:    state,
		cancel:   cancel,
	}

	tc.wg.Add(2)
	go tc.ingestLoop(loopCtx)
	go tc.cleanupLoop(loopCtx)

	logger.Info("topic cache started", logpkg.Field{Key: "partitions", Value: len(partitions)})
	return tc, nil
}

// resolvePartitionsWithRetry resolves partitions(topic) with bounded
// full-jitter backoff (spec §4.3.1: base 3ms, cap 300ms, >= 3 attempts).
func resolvePartitionsWithRetry(ctx context.Context, consumer Consumer, topic Topic, cfg Config) ([]Partition, error) {
	var lastErr error
	for attempt := 0; attempt < cfg.PartitionDiscoveryAttempts; attempt++ {
		partitions, err := consumer.Partitions(topic)
		if err == nil && len(partitions) > 0 {
			return partitions, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = ErrNoPartitions
		}
		if attempt == cfg.PartitionDiscoveryAttempts-1 {
			break
		}
		wait := fullJitterBackoff(cfg.PartitionDiscoveryBaseBackoff, cfg.PartitionDiscoveryMaxBackoff, attempt)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, lastErr
}

func fullJitterBackoff(base, maxBackoff time.Duration, attempt int) time.Duration {
	upper := base << attempt
	if upper <= 0 || upper > maxBackoff {
		upper = maxBackoff
	}
	if upper <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(upper)))
}

// Get resolves a query for id within partition against offset. It
// answers from the current snapshot when possible; otherwise it
// registers a listener and blocks until ctx is done or the listener is
// woken by a future state update (spec §4.3.5, §4.3.6).
func (tc *TopicCache) Get(ctx context.Context, aggID AggregateID, partition Partition, offset Offset) (Result, error) {
	tc.mu.Lock()
	if tc.failed != nil {
		tc.mu.Unlock()
		return Invalid(), nil
	}
	snap := tc.state.snapshot()
	tc.mu.Unlock()

	if result, behind := snap.get(aggID, partition, offset); !behind {
		return result, nil
	}

	// Re-check inside the mutation primitive: another update may have
	// arrived between the snapshot read above and now.
	tc.mu.Lock()
	if tc.failed != nil {
		tc.mu.Unlock()
		return Invalid(), nil
	}
	if result, behind := tc.state.get(aggID, partition, offset); !behind {
		tc.mu.Unlock()
		return result, nil
	}
	q := newPendingQuery(tc.ids.Next(), aggID, partition, offset)
	tc.state.listeners = append(tc.state.listeners, q)
	tc.metrics.ObserveListeners(tc.topic, len(tc.state.listeners))
	tc.mu.Unlock()

	// (a) query-timeout listener leak, resolved: deregister on every exit
	// path, not only on the happy path (SPEC_FULL.md §E).
	defer tc.deregister(q)

	select {
	case r := <-q.ch:
		return r, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (tc *TopicCache) deregister(q *pendingQuery) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	for i, l := range tc.state.listeners {
		if l == q {
			tc.state.listeners[i] = tc.state.listeners[len(tc.state.listeners)-1]
			tc.state.listeners = tc.state.listeners[:len(tc.state.listeners)-1]
			break
		}
	}
	tc.metrics.ObserveListeners(tc.topic, len(tc.state.listeners))
}

// wakeListeners re-runs the decision table for every pending listener
// against the current state, removes the satisfiable ones (an in-place,
// order-preserving filter of the listener slice), and completes each of
// them on its own goroutine.
// Must be called with tc.mu held; it returns the number of listeners
// that remain pending.
func (tc *TopicCache) wakeListeners() int {
	remaining := tc.state.listeners[:0]
	var woken []*pendingQuery
	var results []Result
	for _, q := range tc.state.listeners {
		result, behind := tc.state.get(q.aggID, q.partition, q.offset)
		if behind {
			remaining = append(remaining, q)
			continue
		}
		woken = append(woken, q)
		results = append(results, result)
	}
	tc.state.listeners = remaining
	for i, q := range woken {
		go q.complete(results[i])
	}
	return len(tc.state.listeners)
}

// ingestLoop polls the Consumer, folds records into the shared State,
// and wakes satisfiable listeners, until ctx is cancelled (spec §4.3.2).
// Cancellation is cooperative, observed at the next poll boundary.
func (tc *TopicCache) ingestLoop(ctx context.Context) {
	defer tc.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		if !tc.ingestOnce(ctx) {
			return
		}
	}
}

// ingestOnce runs a single poll-merge-wake round. A panic here marks the
// TopicCache poisoned rather than crashing the process (spec §7 kind 2,
// §7 "Background-loop panics must not crash the process"). It returns
// false when the loop should stop.
func (tc *TopicCache) ingestOnce(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			tc.poison(fmt.Errorf("panic: %v", r))
			ok = false
		}
	}()

	polled, err := tc.consumer.Poll(ctx, tc.topic, tc.cfg.PollTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		tc.poison(err)
		return false
	}
	if len(polled) == 0 {
		return true
	}

	firstTimestamp := earliestTimestamp(polled)
	candidate, newEntries := buildCandidate(polled)

	tc.mu.Lock()
	tc.state.entries = combineAndTrim(tc.state.entries, candidate, tc.cfg.MaxSize)
	remaining := tc.wakeListeners()
	tc.mu.Unlock()

	tc.metrics.ObserveRound(tc.topic, newEntries, remaining, time.Since(firstTimestamp))
	tc.logger.Debug("ingest round", logpkg.Field{Key: "entries", Value: newEntries}, logpkg.Field{Key: "listeners", Value: remaining})
	return true
}

// poison marks the TopicCache failed: subsequent queries return Invalid
// (fail-open) and every currently pending listener is woken with
// Invalid, since no further state updates will ever arrive to satisfy
// them (spec §7 kind 2).
func (tc *TopicCache) poison(cause error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.failed != nil {
		return
	}
	tc.failed = &errIngestFailed{Topic: tc.topic, Cause: cause}
	tc.logger.Error("ingest loop failed, cache poisoned", logpkg.Field{Key: "error", Value: cause.Error()})
	for _, q := range tc.state.listeners {
		go q.complete(Invalid())
	}
	tc.state.listeners = nil
}

// cleanupLoop periodically reconciles against the eventual pointer
// source and evicts entries at or below the durable pointer (spec
// §4.3.3). Unlike the ingest loop, an uncaught error here is logged and
// the loop continues — cleanup is advisory (spec §7 kind 3).
func (tc *TopicCache) cleanupLoop(ctx context.Context) {
	defer tc.wg.Done()
	ticker := time.NewTicker(tc.cfg.CleanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tc.cleanupOnce()
		}
	}
}

func (tc *TopicCache) cleanupOnce() {
	defer func() {
		if r := recover(); r != nil {
			tc.logger.Error("cleanup loop panic, continuing", logpkg.Field{Key: "error", Value: fmt.Sprintf("%v", r)})
		}
	}()
	pointers, err := tc.pointers.Pointers(tc.topic)
	if err != nil {
		tc.logger.Warnf("cleanup: pointer fetch failed: %v", err)
		return
	}
	tc.mu.Lock()
	entries, removed := removeUntil(tc.state.entries, pointers)
	tc.state.entries = entries
	tc.mu.Unlock()
	if removed > 0 {
		tc.logger.Debug("cleanup removed entries", logpkg.Field{Key: "removed", Value: removed})
	}
}

// Close cancels both background loops, waits for them to exit, and
// wakes every still-pending listener with Invalid — no query is left
// blocked forever by a TopicCache tear-down (spec §9: "dropping the
// TopicCache cancels both [tasks]").
func (tc *TopicCache) Close() error {
	tc.cancel()
	tc.wg.Wait()
	tc.mu.Lock()
	for _, q := range tc.state.listeners {
		go q.complete(Invalid())
	}
	tc.state.listeners = nil
	tc.mu.Unlock()
	return tc.consumer.Close()
}

func earliestTimestamp(polled map[Partition][]Record) time.Time {
	var earliest time.Time
	for _, records := range polled {
		for _, r := range records {
			if earliest.IsZero() || r.Timestamp.Before(earliest) {
				earliest = r.Timestamp
			}
		}
	}
	if earliest.IsZero() {
		return time.Now()
	}
	return earliest
}

// buildCandidate folds one poll batch into a candidate partition-keyed
// entry map (spec §4.3.2 step 4). It returns the candidate and the
// number of new (non-empty) entries folded, for the round metric.
func buildCandidate(polled map[Partition][]Record) (map[Partition]PartitionEntry, int) {
	candidate := make(map[Partition]PartitionEntry, len(polled))
	newEntries := 0
	for partition, records := range polled {
		byID := make(map[AggregateID][]decodedRecord)
		var partitionOffset Offset
		for _, r := range records {
			act, ok := DecodeAction(r.Header)
			if !ok {
				continue
			}
			if r.Offset > partitionOffset {
				partitionOffset = r.Offset
			}
			byID[r.ID] = append(byID[r.ID], decodedRecord{record: r, action: act})
		}
		if len(byID) == 0 && partitionOffset == 0 {
			continue
		}
		entries := map[AggregateID]Entry{}
		for aggID, recs := range byID {
			info := Empty()
			var entryOffset Offset
			for _, dr := range recs {
				info = foldAction(info, dr.action)
				if dr.action.Kind != ActionMark && dr.record.Offset > entryOffset {
					entryOffset = dr.record.Offset
				}
			}
			if mergeEntryInto(entries, Entry{ID: aggID, Offset: entryOffset, Info: info}) {
				newEntries++
			}
		}
		candidate[partition] = PartitionEntry{Partition: partition, Offset: partitionOffset, Entries: entries}
	}
	return candidate, newEntries
}

type decodedRecord struct {
	record Record
	action JournalAction
}
