package retrieval

import "sort"

// rankedList is one fusion input: chunk ids in ranked (best-first) order.
type rankedList []string

// fusionEntry accumulates a candidate's RRF contribution across lists
// plus the boosted score used to break ties, mirroring the teacher's
// FusedResult but generalized from two fixed lists (BM25, vector) to
// an arbitrary set of ranked lists (semantic ANN, lexical FTS).
type fusionEntry struct {
	ChunkID  string
	RRFScore float64
	Boosted  float64
	InLists  int
}

// fuseRankedLists computes rrf_score = Σ 1/(k+rank) across lists for
// every chunk id appearing in at least one, per spec §4.7 step 5.
// boosted supplies the tie-break score for a chunk id (from the
// semantic-candidate pass); chunks with no boosted score tie-break at 0.
func fuseRankedLists(lists []rankedList, k int, boosted map[string]float64) []fusionEntry {
	if k <= 0 {
		k = DefaultRRFConstant
	}

	entries := make(map[string]*fusionEntry)
	get := func(id string) *fusionEntry {
		e, ok := entries[id]
		if !ok {
			e = &fusionEntry{ChunkID: id, Boosted: boosted[id]}
			entries[id] = e
		}
		return e
	}

	for _, list := range lists {
		for rank, id := range list {
			e := get(id)
			e.RRFScore += 1.0 / float64(k+rank+1)
			e.InLists++
		}
	}

	out := make([]fusionEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, *e)
	}

	sort.Slice(out, func(i, j int) bool {
		return compareFused(out[i], out[j])
	})
	return out
}

// compareFused implements spec §4.7 step 5/8's tie-break chain: higher
// RRF score first, then higher boosted score, then lexicographically
// smaller chunk id for determinism.
func compareFused(a, b fusionEntry) bool {
	if a.RRFScore != b.RRFScore {
		return a.RRFScore > b.RRFScore
	}
	if a.Boosted != b.Boosted {
		return a.Boosted > b.Boosted
	}
	return a.ChunkID < b.ChunkID
}
