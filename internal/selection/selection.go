// Package selection defines the canonical form of a satellite selection:
// a sorted, deduplicated list of positive NORAD catalog ids. An empty
// selection means "use the resolved default for the bundle".
package selection

import (
	"encoding/json"
	"sort"
)

// Normalize returns ids deduplicated and sorted ascending. A nil or empty
// input yields an empty (non-nil) slice so callers can compare and
// serialize without nil checks.
func Normalize(ids []int) []int {
	if len(ids) == 0 {
		return []int{}
	}
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// Payload renders the normalized selection as its canonical JSON text,
// "[]" when empty. This is the exact form persisted in the requests table
// and compared during signature lookups.
func Payload(ids []int) string {
	data, err := json.Marshal(Normalize(ids))
	if err != nil {
		// A []int cannot fail to marshal.
		panic(err)
	}
	return string(data)
}

// Canonicalize reduces selected against the bundle's available ids: ids no
// longer available are dropped, and a selection equal to the full available
// set collapses to empty (the implicit "all" form). When either side is
// empty the normalized selection is returned unchanged.
func Canonicalize(selected, available []int) []int {
	sel := Normalize(selected)
	avail := Normalize(available)
	if len(sel) == 0 || len(avail) == 0 {
		return sel
	}
	availSet := make(map[int]struct{}, len(avail))
	for _, id := range avail {
		availSet[id] = struct{}{}
	}
	kept := make([]int, 0, len(sel))
	for _, id := range sel {
		if _, ok := availSet[id]; ok {
			kept = append(kept, id)
		}
	}
	if len(kept) == len(avail) {
		return []int{}
	}
	return kept
}

// Default returns the selection used when a request supplies none: the
// first max ids of the normalized available set. Order-stable, not a
// quality ranking.
func Default(available []int, max int) []int {
	avail := Normalize(available)
	if len(avail) == 0 {
		return []int{}
	}
	if max < len(avail) {
		return avail[:max]
	}
	return avail
}

// Equal reports whether two selections are identical after normalization.
func Equal(a, b []int) bool {
	na, nb := Normalize(a), Normalize(b)
	if len(na) != len(nb) {
		return false
	}
	for i := range na {
		if na[i] != nb[i] {
			return false
		}
	}
	return true
}
