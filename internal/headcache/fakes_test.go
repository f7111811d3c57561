package headcache

import (
	"context"
	"sync"
	"time"
)

// fakeConsumer is a hand-rolled, in-memory stand-in for Consumer. Tests
// feed it records via deliver and control partition discovery via
// partitionErrs/partitions, rather than reaching for a mocking
// framework.
type fakeConsumer struct {
	mu sync.Mutex

	partitions    []Partition
	partitionErrs []error // consumed one per Partitions() call; once used up, partitions is returned
	partitionCall int

	assigned Topic
	seeks    map[Partition]Offset

	pending map[Partition][]Record
	pollErr error
	closed  bool
}

func newFakeConsumer(partitions ...Partition) *fakeConsumer {
	return &fakeConsumer{partitions: partitions, pending: map[Partition][]Record{}}
}

func (c *fakeConsumer) Assign(topic Topic, partitions []Partition) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assigned = topic
	c.partitions = partitions
	return nil
}

func (c *fakeConsumer) Seek(topic Topic, offsets map[Partition]Offset) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seeks = offsets
	return nil
}

func (c *fakeConsumer) Poll(ctx context.Context, topic Topic, timeout time.Duration) (map[Partition][]Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pollErr != nil {
		return nil, c.pollErr
	}
	if len(c.pending) == 0 {
		select {
		case <-ctx.Done():
		case <-time.After(timeout):
		}
		return nil, nil
	}
	out := c.pending
	c.pending = map[Partition][]Record{}
	return out, nil
}

func (c *fakeConsumer) Partitions(topic Topic) ([]Partition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.partitionCall
	if idx < len(c.partitionErrs) && c.partitionErrs[idx] != nil {
		c.partitionCall++
		return nil, c.partitionErrs[idx]
	}
	c.partitionCall++
	return c.partitions, nil
}

func (c *fakeConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConsumer) deliver(partition Partition, records ...Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[partition] = append(c.pending[partition], records...)
}

func (c *fakeConsumer) setPollErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pollErr = err
}

// fakePointerSource is a hand-rolled stand-in for PointerSource.
type fakePointerSource struct {
	mu       sync.Mutex
	pointers map[Partition]Offset
	err      error
}

func newFakePointerSource(pointers map[Partition]Offset) *fakePointerSource {
	return &fakePointerSource{pointers: pointers}
}

func (p *fakePointerSource) Pointers(topic Topic) (map[Partition]Offset, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	out := make(map[Partition]Offset, len(p.pointers))
	for k, v := range p.pointers {
		out[k] = v
	}
	return out, nil
}

func (p *fakePointerSource) setPointer(partition Partition, offset Offset) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pointers == nil {
		p.pointers = map[Partition]Offset{}
	}
	p.pointers[partition] = offset
}

// fakeMetrics records every observation for assertion, rather than
// discarding them like NoopMetrics.
type fakeMetrics struct {
	mu       sync.Mutex
	gets     []Outcome
	rounds   int
	listener int
}

func (m *fakeMetrics) ObserveGet(topic Topic, latency time.Duration, outcome Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets = append(m.gets, outcome)
}

func (m *fakeMetrics) ObserveListeners(topic Topic, size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listener = size
}

func (m *fakeMetrics) ObserveRound(topic Topic, entries int, listeners int, deliveryLatency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rounds++
}

func (m *fakeMetrics) getOutcomes() []Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Outcome, len(m.gets))
	copy(out, m.gets)
	return out
}

// fakeQuerier is a hand-rolled stand-in for Querier, used to test the
// decorators in isolation from a real TopicCache.
type fakeQuerier struct {
	result Result
	err    error
}

func (f *fakeQuerier) Get(ctx context.Context, key Key, partition Partition, offset Offset) (Result, error) {
	return f.result, f.err
}

func testConfig() Config {
	return Config{
		PollTimeout:                   5 * time.Millisecond,
		CleanInterval:                 10 * time.Millisecond,
		MaxSize:                       1000,
		PartitionDiscoveryBaseBackoff: time.Millisecond,
		PartitionDiscoveryMaxBackoff:  5 * time.Millisecond,
		PartitionDiscoveryAttempts:    3,
	}
}
