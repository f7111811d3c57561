package headcache

import "encoding/json"

// wireAction is the JSON envelope carried in a record's header, mirroring
// the JSON-envelope convention the teacher uses for workqueue.Lease/PEL
// records (internal/workqueue/lease.go) rather than inventing a new wire
// format here — payload/header encoding is explicitly out of scope for
// the cache itself (spec §1 Non-goals), so this envelope only needs to
// be good enough for this module's own producers and tests.
type wireAction struct {
	Type string `json:"type"`
	From SeqNr  `json:"from,omitempty"`
	To   SeqNr  `json:"to,omitempty"`
	UpTo SeqNr  `json:"upTo,omitempty"`
	Mark string `json:"mark,omitempty"`
}

// EncodeAction renders a JournalAction into a record header.
func EncodeAction(act JournalAction) []byte {
	var w wireAction
	switch act.Kind {
	case ActionAppend:
		w = wireAction{Type: "append", From: act.Range.From, To: act.Range.To}
	case ActionDelete:
		w = wireAction{Type: "delete", UpTo: act.UpTo}
	case ActionMark:
		w = wireAction{Type: "mark", Mark: act.Mark}
	}
	b, _ := json.Marshal(w)
	return b
}

// DecodeAction decodes a record header into a JournalAction. It reports
// false for a header that is not a journal action; the TopicCache drops
// such records silently before folding a poll batch.
func DecodeAction(header []byte) (JournalAction, bool) {
	var w wireAction
	if err := json.Unmarshal(header, &w); err != nil {
		return JournalAction{}, false
	}
	switch w.Type {
	case "append":
		if w.To < w.From {
			return JournalAction{}, false
		}
		return JournalAction{Kind: ActionAppend, Range: SeqRange{From: w.From, To: w.To}}, true
	case "delete":
		return JournalAction{Kind: ActionDelete, UpTo: w.UpTo}, true
	case "mark":
		return JournalAction{Kind: ActionMark, Mark: w.Mark}, true
	default:
		return JournalAction{}, false
	}
}
