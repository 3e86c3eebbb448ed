package monitor

import (
	"sort"

	"ticketwatch/internal/entry"
)

// IDSet is a set of entry fingerprints.
type IDSet map[string]struct{}

func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the ids in lexical order (stable snapshot output).
func (s IDSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

type DiffResult struct {
	// Novel keeps the order of the current listing.
	Novel []entry.Entry
	// Current becomes the next snapshot.
	Current IDSet
	// Bootstrap is set when there was nothing recorded yet; Novel is empty then.
	Bootstrap bool
}

// Diff computes current minus previous. An empty previous set means nothing
// has been recorded yet, so the current set becomes the baseline and nothing
// is novel.
func Diff(previous IDSet, current []entry.Entry) DiffResult {
	res := DiffResult{Current: make(IDSet, len(current))}
	for _, e := range current {
		res.Current[e.ID] = struct{}{}
	}
	if len(previous) == 0 {
		res.Bootstrap = true
		return res
	}
	seen := make(map[string]struct{}, len(current))
	for _, e := range current {
		if previous.Has(e.ID) {
			continue
		}
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		res.Novel = append(res.Novel, e)
	}
	return res
}
