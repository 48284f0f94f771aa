package retrieval

import "sort"

// scoredChunkHeap keeps the top-k semanticCandidates by boosted score
// while streaming chunks brute-force, mirroring boundedResultHeap but
// over the pre-fusion candidate shape.
type scoredChunkHeap struct {
	items []semanticCandidate
	limit int
}

func newScoredChunkHeap(limit int) *scoredChunkHeap {
	if limit <= 0 {
		limit = 1
	}
	return &scoredChunkHeap{limit: limit}
}

// offer keeps items sorted ascending by Boosted score so the worst
// entry is always at index 0; with limit typically in the low
// thousands a linear worst-scan is simpler than a heap and plenty fast.
func (h *scoredChunkHeap) offer(c semanticCandidate) {
	if len(h.items) < h.limit {
		h.items = append(h.items, c)
		if len(h.items) == h.limit {
			h.sortAsc()
		}
		return
	}
	if len(h.items) == 0 {
		return
	}
	if c.Boosted <= h.items[0].Boosted {
		return
	}
	h.items[0] = c
	h.sortAsc()
}

func (h *scoredChunkHeap) sortAsc() {
	sort.Slice(h.items, func(i, j int) bool { return h.items[i].Boosted < h.items[j].Boosted })
}

// sorted returns candidates descending by boosted score.
func (h *scoredChunkHeap) sorted() []semanticCandidate {
	out := make([]semanticCandidate, len(h.items))
	copy(out, h.items)
	sort.Slice(out, func(i, j int) bool { return out[i].Boosted > out[j].Boosted })
	return out
}
