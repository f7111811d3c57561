package headcache

import "fmt"

// Topic identifies a partitioned journal.
type Topic string

// Partition is a non-negative partition index within a topic.
type Partition uint32

// Offset is a monotone, dense position within a partition's log.
type Offset uint64

// AggregateID identifies one aggregate's stream of journal actions.
type AggregateID string

// SeqNr is a per-aggregate sequence number carried inside journal
// actions. It is unrelated to Offset.
type SeqNr uint64

// SeqRange is an inclusive [From, To] range of per-aggregate sequence
// numbers, as produced by a single Append action.
type SeqRange struct {
	From SeqNr
	To   SeqNr
}

// ActionKind tags the variant carried by a JournalAction.
type ActionKind uint8

const (
	ActionAppend ActionKind = iota
	ActionDelete
	ActionMark
)

// JournalAction is the tagged variant decoded from a record's header:
// Append{range}, Delete{upTo}, or Mark{id}. Only Kind and the fields
// relevant to it are meaningful; Mark carries no sequence information
// and never advances an Entry's offset.
type JournalAction struct {
	Kind  ActionKind
	Range SeqRange // valid when Kind == ActionAppend
	UpTo  SeqNr    // valid when Kind == ActionDelete
	Mark  string   // valid when Kind == ActionMark
}

// Key identifies an aggregate within a topic for HeadCache.Get.
type Key struct {
	Topic Topic
	ID    AggregateID
}

func (k Key) String() string { return fmt.Sprintf("%s/%s", k.Topic, k.ID) }

// JournalInfo summarises what is currently known about an aggregate's
// head. The zero value is not Empty (IsEmpty reports false for it); use
// Empty() to build the Empty variant. A NonEmpty value always has SeqNr set
// to the largest Append upper-bound observed; DeleteTo, when present, is
// always <= SeqNr.
type JournalInfo struct {
	empty    bool
	seqNr    SeqNr
	deleteTo SeqNr
	hasDel   bool
}

// Empty returns the Empty variant of JournalInfo.
func Empty() JournalInfo { return JournalInfo{empty: true} }

// NonEmpty returns the NonEmpty variant with the given seqNr and,
// optionally, a delete watermark.
func NonEmpty(seqNr SeqNr, deleteTo SeqNr, hasDeleteTo bool) JournalInfo {
	return JournalInfo{empty: false, seqNr: seqNr, deleteTo: deleteTo, hasDel: hasDeleteTo}
}

// IsEmpty reports whether this is the Empty variant.
func (j JournalInfo) IsEmpty() bool { return j.empty }

// SeqNr returns the largest append upper-bound seen. Only meaningful
// when !IsEmpty().
func (j JournalInfo) SeqNr() SeqNr { return j.seqNr }

// DeleteTo returns the delete watermark, if any. Only meaningful when
// !IsEmpty().
func (j JournalInfo) DeleteTo() (SeqNr, bool) { return j.deleteTo, j.hasDel }

func (j JournalInfo) String() string {
	if j.empty {
		return "Empty"
	}
	if j.hasDel {
		return fmt.Sprintf("NonEmpty{seqNr=%d, deleteTo=%d}", j.seqNr, j.deleteTo)
	}
	return fmt.Sprintf("NonEmpty{seqNr=%d, deleteTo=None}", j.seqNr)
}

// combineInfo merges two JournalInfo values by field-wise maximum. Empty
// combines as identity.
func combineInfo(a, b JournalInfo) JournalInfo {
	if a.empty {
		return b
	}
	if b.empty {
		return a
	}
	out := JournalInfo{empty: false, seqNr: maxSeq(a.seqNr, b.seqNr)}
	switch {
	case a.hasDel && b.hasDel:
		out.hasDel = true
		out.deleteTo = maxSeq(a.deleteTo, b.deleteTo)
	case a.hasDel:
		out.hasDel = true
		out.deleteTo = a.deleteTo
	case b.hasDel:
		out.hasDel = true
		out.deleteTo = b.deleteTo
	}
	return out
}

func maxSeq(a, b SeqNr) SeqNr {
	if a > b {
		return a
	}
	return b
}

func maxOffset(a, b Offset) Offset {
	if a > b {
		return a
	}
	return b
}

// foldAction folds a single JournalAction into a running JournalInfo,
// starting from Empty. Mark never changes the info.
func foldAction(info JournalInfo, act JournalAction) JournalInfo {
	switch act.Kind {
	case ActionAppend:
		return combineInfo(info, NonEmpty(act.Range.To, 0, false))
	case ActionDelete:
		if info.empty {
			// A Delete with nothing appended yet has nothing to cover;
			// it carries no seqNr of its own, so it cannot turn Empty
			// into NonEmpty on its own.
			return info
		}
		return combineInfo(info, NonEmpty(info.seqNr, act.UpTo, true))
	default: // ActionMark
		return info
	}
}

// collapsed reports whether info represents full coverage by Delete,
// i.e. it is semantically Empty even though it was folded from a
// non-trivial history (deleteTo == seqNr).
func (j JournalInfo) collapsed() bool {
	return !j.empty && j.hasDel && j.deleteTo >= j.seqNr
}

// Entry is the per-aggregate state tracked within one partition. Offset
// is the largest log offset among the Append/Delete actions folded into
// Info; Marks never advance it. Info is always the NonEmpty variant —
// Entry values whose folded info collapses to Empty are never stored.
type Entry struct {
	ID     AggregateID
	Offset Offset
	Info   JournalInfo
}

// combineEntry merges two Entry values for the same id by max-offset and
// info-combine. Both operations are associative and commutative (P7),
// so combineEntry is safe to fold over batches in any order.
func combineEntry(a, b Entry) Entry {
	return Entry{
		ID:     a.ID,
		Offset: maxOffset(a.Offset, b.Offset),
		Info:   combineInfo(a.Info, b.Info),
	}
}

// PartitionEntry is the per-partition state: the max log offset seen for
// the partition (any action), the per-aggregate entry map, and the
// trimmed watermark (set while size-based trimming has evicted this
// partition's entries).
type PartitionEntry struct {
	Partition Partition
	Offset    Offset
	Entries   map[AggregateID]Entry
	Trimmed   *Offset
}

func newPartitionEntry(p Partition, offset Offset) PartitionEntry {
	return PartitionEntry{Partition: p, Offset: offset, Entries: map[AggregateID]Entry{}}
}

// mergeEntryInto installs e into dst, combining with any existing entry
// for the same id, unless the combined info is Empty or has collapsed to
// Empty via full Delete coverage — in either case the entry is dropped
// from dst instead of stored (invariant: a stored Entry.Info is always
// the true NonEmpty variant). It reports whether an entry ended up
// stored.
func mergeEntryInto(dst map[AggregateID]Entry, e Entry) bool {
	if existing, ok := dst[e.ID]; ok {
		e = combineEntry(existing, e)
	}
	if e.Info.IsEmpty() || e.Info.collapsed() {
		delete(dst, e.ID)
		return false
	}
	dst[e.ID] = e
	return true
}

// combinePartitionEntry merges two PartitionEntry values for the same
// partition: offsets combine by max, entries combine per-id via
// mergeEntryInto, trimmed watermarks combine by max (a set watermark
// always wins over unset).
func combinePartitionEntry(a, b PartitionEntry) PartitionEntry {
	out := PartitionEntry{
		Partition: a.Partition,
		Offset:    maxOffset(a.Offset, b.Offset),
		Entries:   make(map[AggregateID]Entry, len(a.Entries)+len(b.Entries)),
	}
	for id, e := range a.Entries {
		if !e.Info.IsEmpty() && !e.Info.collapsed() {
			out.Entries[id] = e
		}
	}
	for _, e := range b.Entries {
		mergeEntryInto(out.Entries, e)
	}
	switch {
	case a.Trimmed != nil && b.Trimmed != nil:
		t := maxOffset(*a.Trimmed, *b.Trimmed)
		out.Trimmed = &t
	case a.Trimmed != nil:
		t := *a.Trimmed
		out.Trimmed = &t
	case b.Trimmed != nil:
		t := *b.Trimmed
		out.Trimmed = &t
	}
	return out
}
