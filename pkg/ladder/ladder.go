// Package ladder implements the recovery ladder: a sorted table of
// (threshold, action) entries with one-shot firing semantics per
// failure episode.
package ladder

import "sort"

// ActionID identifies a member of the action set. The core ladder does
// not know what an ActionID does — that is pkg/actions's concern — it
// only orders and dedupes entries by it.
type ActionID int

const (
	Network ActionID = iota
	Soft
	Hard
)

// String renders the action id for logs.
func (a ActionID) String() string {
	switch a {
	case Network:
		return "NETWORK"
	case Soft:
		return "SOFT"
	case Hard:
		return "HARD"
	default:
		return "UNKNOWN"
	}
}

// Entry is one immutable row of the recovery ladder: a threshold in
// seconds and the action bound to it. Equality of entries is by
// (Threshold, Action).
type Entry struct {
	Threshold float64
	Action    ActionID
}

// Ladder is the sorted sequence of Entry plus the mutable fired set for
// the current failure episode.
type Ladder struct {
	entries []Entry
	fired   map[int]bool // index into entries -> fired this episode
}

// Params are the seed values used to build a Ladder, taken verbatim
// from config.
type Params struct {
	SoftResetStart       float64
	HardResetStart       float64
	NetworkResetStart    float64
	NetworkResetInterval float64
}

// Build constructs the ladder:
//  1. seed with (SoftResetStart, Soft) and (HardResetStart, Hard)
//  2. let last = min(SoftResetStart, HardResetStart); append
//     (t, Network) for t in the arithmetic progression starting at
//     NetworkResetStart, stepping by NetworkResetInterval, while t < last
//  3. stable-sort ascending by threshold, so equal thresholds keep
//     insertion order, which is how simultaneous thresholds are
//     deterministically tie-broken
func Build(p Params) *Ladder {
	entries := []Entry{
		{Threshold: p.SoftResetStart, Action: Soft},
		{Threshold: p.HardResetStart, Action: Hard},
	}

	last := p.SoftResetStart
	if p.HardResetStart < last {
		last = p.HardResetStart
	}

	if p.NetworkResetInterval > 0 {
		for t := p.NetworkResetStart; t < last; t += p.NetworkResetInterval {
			entries = append(entries, Entry{Threshold: t, Action: Network})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Threshold < entries[j].Threshold
	})

	return &Ladder{
		entries: entries,
		fired:   make(map[int]bool),
	}
}

// Entries returns the ladder's entries in firing order. The returned
// slice must not be modified.
func (l *Ladder) Entries() []Entry {
	return l.entries
}

// NextDue returns the first entry (in ladder order) whose threshold is
// <= elapsed and that has not yet fired this episode, along with true.
// It returns the zero Entry and false if no such entry exists.
//
// Only one action fires per tick: callers must not loop this call
// within a single update.
func (l *Ladder) NextDue(elapsed float64) (Entry, bool) {
	for i, e := range l.entries {
		if e.Threshold > elapsed {
			break
		}
		if l.fired[i] {
			continue
		}
		return e, true
	}
	return Entry{}, false
}

// MarkFired records that entry has fired this episode. When duplicate
// (threshold, action) rows exist, the first not-yet-fired one is marked,
// matching the order NextDue hands them out.
func (l *Ladder) MarkFired(entry Entry) {
	for i, e := range l.entries {
		if e == entry && !l.fired[i] {
			l.fired[i] = true
			return
		}
	}
}

// ClearFired empties the fired set. Called only on a transition into
// the Healthy state.
func (l *Ladder) ClearFired() {
	l.fired = make(map[int]bool)
}

// FiredCount returns the number of entries that have fired this episode,
// used by tests to check that it never decreases within an episode.
func (l *Ladder) FiredCount() int {
	return len(l.fired)
}
