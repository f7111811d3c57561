package headcache

// Result is the answer to a query: either Invalid (the cache cannot
// answer — ask the durable store) or Valid with the known JournalInfo.
type Result struct {
	invalid bool
	info    JournalInfo
}

// Invalid constructs the Invalid result.
func Invalid() Result { return Result{invalid: true} }

// ValidResult constructs a Valid result carrying info.
func ValidResult(info JournalInfo) Result { return Result{info: info} }

// IsInvalid reports whether this is the Invalid variant.
func (r Result) IsInvalid() bool { return r.invalid }

// Info returns the carried JournalInfo. Only meaningful when !IsInvalid().
func (r Result) Info() JournalInfo { return r.info }

func (r Result) String() string {
	if r.invalid {
		return "Invalid"
	}
	return "Valid(" + r.info.String() + ")"
}

// State is the per-topic snapshot: the partition-keyed entry maps plus
// the list of pending listeners. Snapshots read outside the mutation
// primitive are immutable values (spec §4.3.6) — callers must never
// mutate a State obtained as a snapshot; all transitions go through
// TopicCache's serialising primitive.
type State struct {
	entries   map[Partition]PartitionEntry
	listeners []*pendingQuery
}

func newState() *State {
	return &State{entries: map[Partition]PartitionEntry{}}
}

// snapshot returns a shallow copy safe to read without holding the
// TopicCache mutex: the entries map and the PartitionEntry.Entries maps
// beneath it are never mutated in place once published (merge always
// builds a fresh PartitionEntry), so copying the top-level map is enough
// to freeze the view callers see.
func (s *State) snapshot() *State {
	entries := make(map[Partition]PartitionEntry, len(s.entries))
	for p, pe := range s.entries {
		entries[p] = pe
	}
	return &State{entries: entries}
}

// decide implements the query decision table of spec §4.3.5 against a
// single partition's entry, if any is present in the snapshot.
func decide(pe PartitionEntry, present bool, id AggregateID, offset Offset) (result Result, behind bool) {
	if !present {
		return Invalid(), false
	}
	if pe.Offset < offset {
		return Result{}, true
	}
	if e, ok := pe.Entries[id]; ok {
		return ValidResult(e.Info), false
	}
	if pe.Trimmed == nil {
		return ValidResult(Empty()), false
	}
	return Invalid(), false
}

// get resolves a query against this snapshot, per the decision table.
func (s *State) get(id AggregateID, partition Partition, offset Offset) (result Result, behind bool) {
	pe, present := s.entries[partition]
	return decide(pe, present, id, offset)
}

// combineAndTrim merges new into old partition-wise (§3 combiners) and,
// if the combined entry count across all partitions exceeds maxSize,
// trims the largest partitions down to empty (§4.3.4). It returns the
// new entries map; callers install it as the next State.entries.
func combineAndTrim(old, incoming map[Partition]PartitionEntry, maxSize int) map[Partition]PartitionEntry {
	merged := make(map[Partition]PartitionEntry, len(old)+len(incoming))
	for p, pe := range old {
		merged[p] = pe
	}
	for p, pe := range incoming {
		if existing, ok := merged[p]; ok {
			merged[p] = combinePartitionEntry(existing, pe)
		} else {
			merged[p] = pe
		}
	}

	total := 0
	for _, pe := range merged {
		total += len(pe.Entries)
	}
	if total <= maxSize || len(merged) == 0 {
		return merged
	}

	perPartitionCap := maxSize / len(merged)
	if perPartitionCap < 1 {
		perPartitionCap = 1
	}
	for p, pe := range merged {
		if len(pe.Entries) <= perPartitionCap {
			continue
		}
		var maxOff Offset
		for _, e := range pe.Entries {
			if e.Offset > maxOff {
				maxOff = e.Offset
			}
		}
		trimmed := maxOff
		merged[p] = PartitionEntry{
			Partition: pe.Partition,
			Offset:    pe.Offset,
			Entries:   map[AggregateID]Entry{},
			Trimmed:   &trimmed,
		}
	}
	return merged
}

// removeUntil drops entries whose offset is <= the durable pointer for
// their partition, and clears a partition's Trimmed watermark once the
// pointer has passed it (spec §4.3.3). Partitions absent from pointers
// are left untouched — §9(c) treats a partition vanishing from the
// eventual store as "unknown", never as a reason to evict. Applying
// removeUntil twice with the same pointers is idempotent (P6): the
// second pass finds nothing left to drop.
func removeUntil(entries map[Partition]PartitionEntry, pointers map[Partition]Offset) (map[Partition]PartitionEntry, int) {
	removed := 0
	out := make(map[Partition]PartitionEntry, len(entries))
	for p, pe := range entries {
		pointer, ok := pointers[p]
		if !ok {
			out[p] = pe
			continue
		}
		next := PartitionEntry{Partition: pe.Partition, Offset: pe.Offset, Entries: make(map[AggregateID]Entry, len(pe.Entries))}
		for id, e := range pe.Entries {
			if e.Offset <= pointer {
				removed++
				continue
			}
			next.Entries[id] = e
		}
		if pe.Trimmed != nil && *pe.Trimmed <= pointer {
			next.Trimmed = nil
		} else {
			next.Trimmed = pe.Trimmed
		}
		out[p] = next
	}
	return out, removed
}
