package headcache

import (
	"context"
	"errors"
	"time"
)

// Record is one polled entry from the partitioned log: an aggregate id,
// wall-clock timestamp, log offset, and a header that decodes to a
// JournalAction. The Consumer passes headers through undecoded; the
// TopicCache drops records whose header fails to decode before folding,
// so they never affect cache state.
type Record struct {
	ID        AggregateID
	Timestamp time.Time
	Offset    Offset
	Header    []byte
}

// ErrNoPartitions is returned by Partitions when a topic currently has
// no known partitions.
var ErrNoPartitions = errors.New("headcache: no partitions")

// Consumer is the contract C3 (TopicCache) requires from the underlying
// partitioned log (spec §4.1). Implementations own at most one
// underlying connection and release it on Close.
type Consumer interface {
	// Assign binds the consumer to exactly the given partitions of topic,
	// replacing any previous assignment for that topic.
	Assign(topic Topic, partitions []Partition) error

	// Seek sets the starting position per partition to the provided
	// offset. Partitions not present in offsets are left at their
	// current position.
	Seek(topic Topic, offsets map[Partition]Offset) error

	// Poll waits up to timeout for new records across all assigned
	// partitions of topic. It may return an empty map and never blocks
	// longer than timeout.
	Poll(ctx context.Context, topic Topic, timeout time.Duration) (map[Partition][]Record, error)

	// Partitions lists the partitions currently known for topic. It
	// fails with ErrNoPartitions when none are found.
	Partitions(topic Topic) ([]Partition, error)

	// Close releases the underlying connection.
	Close() error
}
