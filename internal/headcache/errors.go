package headcache

import "errors"

// ErrClosed is returned by HeadCache.Get once the registry has been
// closed (spec §7, kind 4 — "Closed").
var ErrClosed = errors.New("headcache: closed")

// ErrPartitionDiscoveryFailed is returned from TopicCache construction
// when C1 yields no partitions after bounded retry (spec §7, kind 1).
// It propagates to the caller of Get for that topic.
type ErrPartitionDiscoveryFailed struct {
	Topic Topic
	Cause error
}

func (e *ErrPartitionDiscoveryFailed) Error() string {
	if e.Cause != nil {
		return "headcache: partition discovery failed for topic " + string(e.Topic) + ": " + e.Cause.Error()
	}
	return "headcache: partition discovery failed for topic " + string(e.Topic)
}

func (e *ErrPartitionDiscoveryFailed) Unwrap() error { return e.Cause }

// errIngestFailed marks a TopicCache as poisoned after an uncaught error
// in the ingest loop (spec §7, kind 2). Queries issued after this point
// fail open, returning Invalid, until the HeadCache is torn down.
type errIngestFailed struct {
	Topic Topic
	Cause error
}

func (e *errIngestFailed) Error() string {
	return "headcache: ingest failed for topic " + string(e.Topic) + ": " + e.Cause.Error()
}

func (e *errIngestFailed) Unwrap() error { return e.Cause }
