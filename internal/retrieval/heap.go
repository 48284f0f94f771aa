package retrieval

import (
	"container/heap"
	"sort"
)

// boundedResultHeap keeps only the top N results by FinalScore,
// breaking ties by lexicographically smaller chunk id, per spec §4.7
// step 8. It's a min-heap on (score, id) so the worst-of-the-kept-set
// sits at the root and is evicted first.
type boundedResultHeap struct {
	items []Result
	limit int
}

func newBoundedResultHeap(limit int) *boundedResultHeap {
	return &boundedResultHeap{limit: limit}
}

func (h *boundedResultHeap) Len() int { return len(h.items) }
func (h *boundedResultHeap) Less(i, j int) bool {
	if h.items[i].FinalScore != h.items[j].FinalScore {
		return h.items[i].FinalScore < h.items[j].FinalScore
	}
	return h.items[i].Chunk.ID > h.items[j].Chunk.ID
}
func (h *boundedResultHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *boundedResultHeap) Push(x any)    { h.items = append(h.items, x.(Result)) }
func (h *boundedResultHeap) Pop() any {
	n := len(h.items)
	item := h.items[n-1]
	h.items = h.items[:n-1]
	return item
}

// Offer considers r for inclusion, evicting the current worst entry
// if the heap is already at limit and r beats it. NaN scores are
// skipped per spec §4.7 step 8.
func (h *boundedResultHeap) Offer(r Result) {
	if isNaNF(r.FinalScore) {
		return
	}
	if h.Len() < h.limit {
		heap.Push(h, r)
		return
	}
	if h.Len() == 0 {
		return
	}
	worst := h.items[0]
	if r.FinalScore > worst.FinalScore || (r.FinalScore == worst.FinalScore && r.Chunk.ID < worst.Chunk.ID) {
		h.items[0] = r
		heap.Fix(h, 0)
	}
}

// Sorted drains the heap into descending-score order (ties by
// ascending chunk id), the final result ordering spec §4.7 requires.
func (h *boundedResultHeap) Sorted() []Result {
	out := make([]Result, len(h.items))
	copy(out, h.items)
	sort.Slice(out, func(i, j int) bool {
		if out[i].FinalScore != out[j].FinalScore {
			return out[i].FinalScore > out[j].FinalScore
		}
		return out[i].Chunk.ID < out[j].Chunk.ID
	})
	return out
}

func isNaNF(f float64) bool { return f != f }
