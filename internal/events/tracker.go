package events

import "strings"

// Tracker remembers which events a conversation has already shown. One
// Tracker belongs to exactly one conversation; reset it whenever the
// conversation changes. Only Normalizer mutates it.
type Tracker struct {
	seen      map[string]struct{}
	shown     []Record
	lastQuery string
}

func NewTracker() *Tracker {
	return &Tracker{seen: make(map[string]struct{})}
}

// Reset forgets every identity and the driving query.
func (t *Tracker) Reset() {
	t.clear()
	t.lastQuery = ""
}

// LastQuery is the user query that produced the most recent visible events.
func (t *Tracker) LastQuery() string {
	return t.lastQuery
}

// Seen reports whether an identity has been shown.
func (t *Tracker) Seen(identity string) bool {
	_, ok := t.seen[identity]
	return ok
}

// Len is the number of tracked identities.
func (t *Tracker) Len() int {
	return len(t.seen)
}

// Shown returns the events emitted since the last reset, in emission order.
func (t *Tracker) Shown() []Record {
	out := make([]Record, len(t.shown))
	copy(out, t.shown)
	return out
}

// Replay applies a previously committed turn, as Normalize did when the turn
// was live. It rebuilds a tracker from stored history.
func (t *Tracker) Replay(query string, shown []Record) {
	if len(shown) == 0 {
		return
	}
	q := strings.TrimSpace(query)
	if q != t.lastQuery || t.lastQuery == "" {
		t.clear()
	}
	for _, r := range shown {
		t.add(r, Identities(r))
	}
	t.lastQuery = q
}

func (t *Tracker) clear() {
	t.seen = make(map[string]struct{})
	t.shown = nil
}

func (t *Tracker) hasUnseen(ids []string) bool {
	for _, id := range ids {
		if _, ok := t.seen[id]; !ok {
			return true
		}
	}
	return false
}

func (t *Tracker) add(r Record, ids []string) {
	for _, id := range ids {
		t.seen[id] = struct{}{}
	}
	t.shown = append(t.shown, r)
}
