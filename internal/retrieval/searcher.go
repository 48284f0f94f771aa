package retrieval

import (
	"context"
	"sort"

	"github.com/gobwas/glob"

	"github.com/jamie8johnson/cqs-sub000/internal/cqserrors"
	"github.com/jamie8johnson/cqs-sub000/internal/model"
	"github.com/jamie8johnson/cqs-sub000/internal/storage"
	"github.com/jamie8johnson/cqs-sub000/internal/vectorindex"
)

// Searcher runs hybrid search over a Store, optionally backed by a
// loaded vector index for ANN candidate generation. With no vector
// index it falls back to a brute-force scored stream, per spec §4.7
// step 1's "otherwise stream all chunks under a bounded-heap scorer".
type Searcher struct {
	Store      *storage.Store
	VectorIdx  *vectorindex.Index // nil => brute force
	Dims       int                // D, excluding the sentiment component
	NameWeight float64
	NoteBoost  float64
}

func NewSearcher(store *storage.Store, vecIdx *vectorindex.Index, dims int) *Searcher {
	return &Searcher{
		Store:      store,
		VectorIdx:  vecIdx,
		Dims:       dims,
		NameWeight: DefaultNameWeight,
		NoteBoost:  DefaultNoteBoostFactor,
	}
}

// SearchFiltered runs the full fused-hybrid algorithm from spec §4.7
// and returns up to q.Limit ranked results.
func (s *Searcher) SearchFiltered(ctx context.Context, q Query) ([]Result, error) {
	if q.Limit <= 0 {
		q.Limit = 10
	}

	alpha := candidateAlphaUnfiltered
	if q.Filter.isSet() {
		alpha = candidateAlphaFiltered
	}
	candidateK := q.Limit * alpha

	semanticCands, err := s.semanticCandidates(ctx, q, candidateK)
	if err != nil {
		return nil, cqserrors.Wrap(cqserrors.ErrCodeInternal, "retrieval.search_filtered", err)
	}

	lexicalList, chunkByID, err := s.lexicalCandidates(ctx, q.Text, candidateK, semanticCands)
	if err != nil {
		return nil, cqserrors.Wrap(cqserrors.ErrCodeInternal, "retrieval.search_filtered", err)
	}

	boosted := make(map[string]float64, len(semanticCands))
	semByID := make(map[string]float64, len(semanticCands))
	nameByID := make(map[string]float64, len(semanticCands))
	var semanticList rankedList
	for _, c := range semanticCands {
		chunkByID[c.Chunk.ID] = c.Chunk
		boosted[c.Chunk.ID] = c.Boosted
		semByID[c.Chunk.ID] = c.Semantic
		nameByID[c.Chunk.ID] = c.NameScore
		semanticList = append(semanticList, c.Chunk.ID)
	}
	sort.SliceStable(semanticList, func(i, j int) bool { return boosted[semanticList[i]] > boosted[semanticList[j]] })

	fused := fuseRankedLists([]rankedList{semanticList, lexicalList}, DefaultRRFConstant, boosted)

	var notes []storage.NoteSummary
	if s.Store != nil {
		notes, err = loadNotes(ctx, s.Store)
		if err != nil {
			return nil, cqserrors.Wrap(cqserrors.ErrCodeInternal, "retrieval.search_filtered", err)
		}
	}

	g, err := compileGlob(q.Filter)
	if err != nil {
		return nil, err
	}

	heap := newBoundedResultHeap(q.Limit * 4) // oversized; final windowed-dedup shrinks to Limit
	for _, f := range fused {
		c, ok := chunkByID[f.ChunkID]
		if !ok {
			continue
		}
		if !matchesFilter(c, q.Filter, g) {
			continue
		}

		final := applyNoteBoost(f.Boosted, c, notes, s.NoteBoost)
		if q.Threshold > 0 && final < q.Threshold {
			continue
		}

		heap.Offer(Result{
			Chunk:       c,
			Semantic:    semByID[f.ChunkID],
			NameScore:   nameByID[f.ChunkID],
			Boosted:     f.Boosted,
			RRFScore:    f.RRFScore,
			NoteBoosted: final,
			FinalScore:  final,
		})
	}

	results := dedupWindows(heap.Sorted())
	if len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

// dedupWindows collapses sibling window chunks by parent_id, keeping
// only the highest-scoring window per parent, per spec §4.7 step 9.
func dedupWindows(results []Result) []Result {
	bestByParent := make(map[string]int) // parent_id -> index in out
	var out []Result
	for _, r := range results {
		if r.Chunk.ParentID == "" {
			out = append(out, r)
			continue
		}
		if idx, ok := bestByParent[r.Chunk.ParentID]; ok {
			if r.FinalScore > out[idx].FinalScore {
				out[idx] = r
			}
			continue
		}
		bestByParent[r.Chunk.ParentID] = len(out)
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FinalScore != out[j].FinalScore {
			return out[i].FinalScore > out[j].FinalScore
		}
		return out[i].Chunk.ID < out[j].Chunk.ID
	})
	return out
}

func compileGlob(f *Filter) (func(pattern, path string) bool, error) {
	if f == nil || f.PathGlob == "" {
		return nil, nil
	}
	g, err := glob.Compile(f.PathGlob, '/')
	if err != nil {
		return nil, cqserrors.New(cqserrors.ErrCodeInternal, "retrieval.compile_glob", "invalid path glob", err)
	}
	return func(_, path string) bool { return g.Match(path) }, nil
}

type semanticCandidate struct {
	Chunk     *model.Chunk
	Semantic  float64
	NameScore float64
	Boosted   float64
}

// semanticCandidates runs ANN (when a vector index is loaded) or a
// brute-force scored stream otherwise, per spec §4.7 step 1.
func (s *Searcher) semanticCandidates(ctx context.Context, q Query, k int) ([]semanticCandidate, error) {
	if s.VectorIdx != nil && s.VectorIdx.Count() > 0 {
		return s.annCandidates(ctx, q, k)
	}
	return s.bruteForceCandidates(ctx, q, k)
}

func (s *Searcher) annCandidates(ctx context.Context, q Query, k int) ([]semanticCandidate, error) {
	hits, err := s.VectorIdx.Search(ctx, q.Embedding, k)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ChunkID
	}
	chunks, err := s.Store.FetchByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*model.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	out := make([]semanticCandidate, 0, len(hits))
	for _, h := range hits {
		c, ok := byID[h.ChunkID]
		if !ok || len(c.Embedding) == 0 {
			continue
		}
		out = append(out, s.scoreCandidate(q, c))
	}
	return out, nil
}

// bruteForceCandidates streams every chunk and keeps the top k by
// semantic score, the degraded path used when no vector index is
// loaded (spec §7's "best-effort degradation... allowed with a warning").
func (s *Searcher) bruteForceCandidates(ctx context.Context, q Query, k int) ([]semanticCandidate, error) {
	it, err := s.Store.StreamAll(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	h := newScoredChunkHeap(k)
	for {
		c, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if len(c.Embedding) == 0 {
			continue
		}
		cand := s.scoreCandidate(q, c)
		h.offer(cand)
	}
	return h.sorted(), nil
}

func (s *Searcher) scoreCandidate(q Query, c *model.Chunk) semanticCandidate {
	sem := cosine(q.Embedding, c.Embedding, s.Dims)
	name := nameScore(q.Text, c.Name, false)
	return semanticCandidate{
		Chunk:     c,
		Semantic:  sem,
		NameScore: name,
		Boosted:   boostedScore(sem, name, s.NameWeight),
	}
}

// lexicalCandidates runs FTS and returns a ranked chunk-id list, plus
// a chunk-by-id map seeded with any candidates the semantic pass
// hasn't already fetched (so FTS-only hits still score name/notes).
func (s *Searcher) lexicalCandidates(ctx context.Context, text string, k int, semantic []semanticCandidate) (rankedList, map[string]*model.Chunk, error) {
	byID := make(map[string]*model.Chunk, len(semantic))
	for _, c := range semantic {
		byID[c.Chunk.ID] = c.Chunk
	}

	if text == "" {
		return nil, byID, nil
	}

	hits, err := s.Store.SearchFTS(ctx, text, k)
	if err != nil {
		return nil, byID, err
	}

	var missing []string
	list := make(rankedList, 0, len(hits))
	for _, h := range hits {
		list = append(list, h.ChunkID)
		if _, ok := byID[h.ChunkID]; !ok {
			missing = append(missing, h.ChunkID)
		}
	}

	if len(missing) > 0 {
		chunks, err := s.Store.FetchByIDs(ctx, missing)
		if err != nil {
			return nil, byID, err
		}
		for _, c := range chunks {
			byID[c.ID] = c
		}
	}
	return list, byID, nil
}
