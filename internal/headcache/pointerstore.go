package headcache

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"
	pebblestore "github.com/rzbill/headcache/internal/storage/pebble"
)

// PebblePointerSource is the reference PointerSource (§4.2), reading the
// durable-pointer summary written by the (out-of-scope, per spec §1
// Non-goals) replicator process. The key layout mirrors the teacher's
// own eventlog cursor scheme (internal/eventlog/keys.go:KeyCursor) —
// big-endian partition suffix under a lexicographically sortable prefix
// — narrowed to a single pointer value per (topic, partition) instead of
// a per-group cursor, since the eventual store tracks one watermark for
// the whole topic, not one per consumer group.
type PebblePointerSource struct {
	db *pebblestore.DB
}

// NewPebblePointerSource wraps db as a PointerSource.
func NewPebblePointerSource(db *pebblestore.DB) *PebblePointerSource {
	return &PebblePointerSource{db: db}
}

var pointerPrefix = []byte("ptr/")

// pointerKey builds the key for a single (topic, partition) pointer:
// ptr/{topic}/{partition_be4}
func pointerKey(topic Topic, partition Partition) []byte {
	k := make([]byte, 0, len(pointerPrefix)+len(topic)+5)
	k = append(k, pointerPrefix...)
	k = append(k, topic...)
	k = append(k, '/')
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(partition))
	return append(k, b[:]...)
}

// pointerKeyPrefix returns the scan prefix for all partitions of topic:
// ptr/{topic}/
func pointerKeyPrefix(topic Topic) []byte {
	k := make([]byte, 0, len(pointerPrefix)+len(topic)+1)
	k = append(k, pointerPrefix...)
	k = append(k, topic...)
	return append(k, '/')
}

// Pointers scans all pointer entries for topic and returns the
// per-partition durable offset. A partition with no entry is simply
// absent from the result — "nothing durable yet" (spec §4.2).
func (s *PebblePointerSource) Pointers(topic Topic) (map[Partition]Offset, error) {
	prefix := pointerKeyPrefix(topic)
	upper := append(append([]byte{}, prefix...), 0xff)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("headcache: scan pointers: %w", err)
	}
	defer iter.Close()

	out := map[Partition]Offset{}
	for ok := iter.First(); ok; ok = iter.Next() {
		key := iter.Key()
		if len(key) < len(prefix)+4 {
			continue
		}
		partition := binary.BigEndian.Uint32(key[len(key)-4:])
		val := iter.Value()
		if len(val) < 8 {
			continue
		}
		out[Partition(partition)] = Offset(binary.BigEndian.Uint64(val[:8]))
	}
	return out, nil
}

// SetPointer durably records that topic/partition has been replicated
// up to and including offset. Used by the (out-of-scope) replicator in
// tests and local tooling to seed/advance the pointer store.
func (s *PebblePointerSource) SetPointer(topic Topic, partition Partition, offset Offset) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(offset))
	return s.db.Set(pointerKey(topic, partition), b[:])
}

