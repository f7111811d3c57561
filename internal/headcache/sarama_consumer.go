package headcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Shopify/sarama"
)

// SaramaConsumer is the production Consumer (§4.1) backed by
// github.com/Shopify/sarama. It assigns partitions manually via
// sarama's non-group PartitionConsumer API, which has no commit call at
// all — a direct match for the spec's "no consumer group, manual commit
// disabled" bootstrap policy (SPEC_FULL.md §C).
//
// It owns exactly one underlying client/consumer pair and releases it on
// Close (spec §4.1, §5 "Shared resources").
type SaramaConsumer struct {
	client   sarama.Client
	consumer sarama.Consumer

	mu    sync.Mutex
	feeds map[Topic]map[Partition]*partitionFeed
	fanin map[Topic]chan *sarama.ConsumerMessage

	onError func(topic Topic, partition Partition, err error)
}

type partitionFeed struct {
	pc     sarama.PartitionConsumer
	cancel context.CancelFunc
}

// SaramaConfig returns a sarama.Config matching the bootstrap policy
// this module overrides regardless of what is passed through from
// configuration (spec §6): earliest offsets, no consumer group, no
// auto-commit.
func SaramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Return.Errors = true
	return cfg
}

// NewSaramaConsumer dials brokers and returns a Consumer. onError, if
// non-nil, is called for every partition-level consumer error; it must
// not block.
func NewSaramaConsumer(brokers []string, clientID string, onError func(Topic, Partition, error)) (*SaramaConsumer, error) {
	cfg := SaramaConfig()
	cfg.ClientID = clientID
	client, err := sarama.NewClient(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("headcache: dial brokers: %w", err)
	}
	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("headcache: new consumer: %w", err)
	}
	if onError == nil {
		onError = func(Topic, Partition, error) {}
	}
	return &SaramaConsumer{
		client:   client,
		consumer: consumer,
		feeds:    map[Topic]map[Partition]*partitionFeed{},
		fanin:    map[Topic]chan *sarama.ConsumerMessage{},
		onError:  onError,
	}, nil
}

func (c *SaramaConsumer) Partitions(topic Topic) ([]Partition, error) {
	ps, err := c.client.Partitions(string(topic))
	if err != nil {
		return nil, fmt.Errorf("headcache: list partitions: %w", err)
	}
	if len(ps) == 0 {
		return nil, ErrNoPartitions
	}
	out := make([]Partition, len(ps))
	for i, p := range ps {
		out[i] = Partition(p)
	}
	return out, nil
}

// Assign binds the consumer to exactly the given partitions, starting
// each at the oldest available offset. Call Seek afterwards to
// reposition.
func (c *SaramaConsumer) Assign(topic Topic, partitions []Partition) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTopicLocked(topic)
	ch := make(chan *sarama.ConsumerMessage, 1024)
	c.fanin[topic] = ch
	feeds := make(map[Partition]*partitionFeed, len(partitions))
	for _, p := range partitions {
		feed, err := c.startFeedLocked(topic, p, sarama.OffsetOldest, ch)
		if err != nil {
			return err
		}
		feeds[p] = feed
	}
	c.feeds[topic] = feeds
	return nil
}

// Seek repositions the given partitions' starting offset. sarama's
// PartitionConsumer has no live-seek operation, so this recreates the
// affected feeds at the requested offset — a faithful rendering of
// "seek" as a position reset rather than a stream operation.
func (c *SaramaConsumer) Seek(topic Topic, offsets map[Partition]Offset) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	feeds := c.feeds[topic]
	ch := c.fanin[topic]
	if feeds == nil || ch == nil {
		return fmt.Errorf("headcache: seek on unassigned topic %q", topic)
	}
	for p, off := range offsets {
		if old, ok := feeds[p]; ok {
			old.cancel()
			_ = old.pc.Close()
		}
		feed, err := c.startFeedLocked(topic, p, int64(off), ch)
		if err != nil {
			return err
		}
		feeds[p] = feed
	}
	return nil
}

func (c *SaramaConsumer) startFeedLocked(topic Topic, p Partition, offset int64, ch chan *sarama.ConsumerMessage) (*partitionFeed, error) {
	pc, err := c.consumer.ConsumePartition(string(topic), int32(p), offset)
	if err != nil {
		return nil, fmt.Errorf("headcache: consume partition %d: %w", p, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-pc.Messages():
				if !ok {
					return
				}
				select {
				case ch <- m:
				case <-ctx.Done():
					return
				}
			case e, ok := <-pc.Errors():
				if !ok {
					continue
				}
				c.onError(topic, p, e.Err)
			}
		}
	}()
	return &partitionFeed{pc: pc, cancel: cancel}, nil
}

func (c *SaramaConsumer) stopTopicLocked(topic Topic) {
	for _, feed := range c.feeds[topic] {
		feed.cancel()
		_ = feed.pc.Close()
	}
	delete(c.feeds, topic)
	delete(c.fanin, topic)
}

// Poll waits up to timeout for the first available record, then drains
// whatever else is immediately ready before returning — it never blocks
// past timeout and never blocks indefinitely.
func (c *SaramaConsumer) Poll(ctx context.Context, topic Topic, timeout time.Duration) (map[Partition][]Record, error) {
	c.mu.Lock()
	ch := c.fanin[topic]
	c.mu.Unlock()
	out := map[Partition][]Record{}
	if ch == nil {
		return out, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return out, ctx.Err()
	case <-timer.C:
		return out, nil
	case m := <-ch:
		appendMessage(out, m)
	}
	for {
		select {
		case m := <-ch:
			appendMessage(out, m)
		default:
			return out, nil
		}
	}
}

func appendMessage(out map[Partition][]Record, m *sarama.ConsumerMessage) {
	p := Partition(m.Partition)
	out[p] = append(out[p], Record{
		ID:        AggregateID(m.Key),
		Timestamp: m.Timestamp,
		Offset:    Offset(m.Offset),
		Header:    m.Value,
	})
}

// Close releases the underlying client/consumer connection.
func (c *SaramaConsumer) Close() error {
	c.mu.Lock()
	for topic := range c.feeds {
		c.stopTopicLocked(topic)
	}
	c.mu.Unlock()
	_ = c.consumer.Close()
	return c.client.Close()
}
