package retrieval

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/dominikbraun/graph"

	"github.com/jamie8johnson/cqs-sub000/internal/model"
	"github.com/jamie8johnson/cqs-sub000/internal/parsing"
	"github.com/jamie8johnson/cqs-sub000/internal/storage"
)

// GraphQueries answers structural questions over the call/type graph,
// per SPEC_FULL.md §4.9: callers, callees, impact, gather, drift, and
// dead code detection.
type GraphQueries struct {
	Store *storage.Store
}

func NewGraphQueries(store *storage.Store) *GraphQueries {
	return &GraphQueries{Store: store}
}

// CallSite is one caller result: the calling chunk plus the line the
// call occurs on.
type CallSite struct {
	Chunk    *model.Chunk
	CallLine int
}

// Callers resolves reverse adjacency over name: who calls name, per
// spec §4.9. file, when non-empty, disambiguates overloaded names.
func (g *GraphQueries) Callers(ctx context.Context, name, file string) ([]CallSite, error) {
	cg, err := g.Store.GetCallGraph(ctx)
	if err != nil {
		return nil, err
	}
	callerIDs := cg.Reverse[name]
	if len(callerIDs) == 0 {
		return nil, nil
	}

	chunks, err := g.Store.FetchByIDs(ctx, dedupStrings(callerIDs))
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*model.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	var out []CallSite
	for _, callerID := range callerIDs {
		c, ok := byID[callerID]
		if !ok || (file != "" && c.Origin != file) {
			continue
		}
		line := 0
		for _, e := range cg.Forward[callerID] {
			if e.CalleeName == name {
				line = e.CallLine
				break
			}
		}
		out = append(out, CallSite{Chunk: c, CallLine: line})
	}
	return out, nil
}

// Callees resolves forward adjacency: what name calls, per spec §4.9.
func (g *GraphQueries) Callees(ctx context.Context, name, file string) ([]*model.Chunk, error) {
	var chunkID string
	candidates, err := g.Store.SearchByName(ctx, name, 8)
	if err != nil {
		return nil, err
	}
	for _, c := range candidates {
		if c.Name != name {
			continue
		}
		if file == "" || c.Origin == file {
			chunkID = c.ID
			break
		}
	}
	if chunkID == "" {
		return nil, nil
	}
	return g.Store.GetCalleesFull(ctx, chunkID)
}

// ImpactResult is one chunk reached by impact BFS, annotated with its
// traversal depth and whether it's a detected test.
type ImpactResult struct {
	Chunk  *model.Chunk
	Depth  int
	IsTest bool
}

// Impact runs BFS over the union call+type graph (when includeTypes)
// up to depth (clamped <= 10), returning distinct affected chunks with
// depth and test-reachability annotations, per spec §4.9.
func (g *GraphQueries) Impact(ctx context.Context, name string, depth int, includeTypes bool) ([]ImpactResult, error) {
	if depth > 10 {
		depth = 10
	}
	if depth < 1 {
		depth = 1
	}

	callGraph, err := g.Store.GetCallGraph(ctx)
	if err != nil {
		return nil, err
	}
	var typeGraph *model.TypeGraph
	if includeTypes {
		typeGraph, err = g.Store.GetTypeGraph(ctx)
		if err != nil {
			return nil, err
		}
	}

	adj := graph.New(graph.StringHash, graph.Directed())
	ensureVertex := func(id string) { _ = adj.AddVertex(id) }
	ensureEdge := func(from, to string) {
		ensureVertex(from)
		ensureVertex(to)
		_ = adj.AddEdge(from, to)
	}

	for callee, callers := range callGraph.Reverse {
		for _, caller := range callers {
			ensureEdge(callee, caller) // edge direction: callee -> caller, so BFS from target walks outward to its callers
		}
	}
	if typeGraph != nil {
		for typeName, users := range typeGraph.Reverse {
			for _, userID := range users {
				ensureEdge(typeName, userID)
			}
		}
	}

	type frontierEntry struct {
		id    string
		depth int
	}
	visited := map[string]int{name: 0}
	queue := []frontierEntry{{id: name, depth: 0}}
	var reachIDs []string

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= depth {
			continue
		}
		neighbors, err := adj.AdjacencyMap()
		if err != nil {
			break
		}
		keys := []string{cur.id}
		if cur.depth > 0 {
			// A reached caller is a chunk id; its own callers are keyed by its name.
			if cs, err := g.Store.FetchByIDs(ctx, []string{cur.id}); err == nil && len(cs) == 1 {
				keys = append(keys, cs[0].Name)
			}
		}
		for _, key := range keys {
			for next := range neighbors[key] {
				if _, seen := visited[next]; seen {
					continue
				}
				visited[next] = cur.depth + 1
				reachIDs = append(reachIDs, next)
				queue = append(queue, frontierEntry{id: next, depth: cur.depth + 1})
			}
		}
	}

	// reachIDs mixes chunk ids (from call edges) and type names (from
	// type edges); resolve both through FetchByIDs/SearchByName.
	chunkIDs, typeNames := splitReach(reachIDs, callGraph)
	chunks, err := g.Store.FetchByIDs(ctx, chunkIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*model.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}
	for _, t := range typeNames {
		users, err := g.Store.GetTypeUsers(ctx, t)
		if err != nil {
			return nil, err
		}
		for _, c := range users {
			byID[c.ID] = c
		}
	}

	var out []ImpactResult
	for id, depthReached := range visited {
		c, ok := byID[id]
		if !ok {
			continue
		}
		out = append(out, ImpactResult{Chunk: c, Depth: depthReached, IsTest: isTestChunk(c)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Depth != out[j].Depth {
			return out[i].Depth < out[j].Depth
		}
		return out[i].Chunk.ID < out[j].Chunk.ID
	})
	return out, nil
}

func splitReach(ids []string, cg *model.CallGraph) (chunkIDs []string, typeNames []string) {
	for _, id := range ids {
		if _, isChunk := cg.Forward[id]; isChunk {
			chunkIDs = append(chunkIDs, id)
			continue
		}
		if looksLikeChunkID(id) {
			chunkIDs = append(chunkIDs, id)
			continue
		}
		typeNames = append(typeNames, id)
	}
	return
}

func looksLikeChunkID(id string) bool {
	return strings.Contains(id, ":") || strings.Contains(id, "#")
}

// isTestChunk applies spec §4.9's test-detection rule using the same
// language registry the parser classifies chunks with (Open Question
// (b): test detection must have one source of truth, not a second
// regex/switch here that can drift from parsing/languages.go), so file
// path and symbol-name conventions never disagree between indexing and
// structural queries.
func isTestChunk(c *model.Chunk) bool {
	cfg, ok := parsing.DefaultRegistry().GetByName(c.Language)
	if !ok {
		return false
	}
	if cfg.TestFilePattern != "" && strings.Contains(c.Origin, cfg.TestFilePattern) {
		return true
	}
	return cfg.TestNamePrefix != "" && strings.HasPrefix(c.Name, cfg.TestNamePrefix)
}

// GatherResult is one chunk surfaced by Gather, with its decayed score.
type GatherResult struct {
	Chunk *model.Chunk
	Score float64
}

// Gather does best-parent-rule BFS from seed names: visiting a
// neighbor computes parent_score*0.8^depth, and a later, higher-scored
// path to an already-visited node overwrites its score, per spec §4.9.
func (g *GraphQueries) Gather(ctx context.Context, seeds []string, direction string, depth, limit int) ([]GatherResult, error) {
	cg, err := g.Store.GetCallGraph(ctx)
	if err != nil {
		return nil, err
	}

	scores := make(map[string]float64)
	type frontierEntry struct {
		id    string
		depth int
	}
	var queue []frontierEntry
	for _, s := range seeds {
		scores[s] = 1.0
		queue = append(queue, frontierEntry{id: s, depth: 0})
	}

	neighborsOf := func(id string) []string {
		if direction == "callers" {
			// Reached callers are chunk ids; their own callers are keyed by name.
			key := id
			if cs, err := g.Store.FetchByIDs(ctx, []string{id}); err == nil && len(cs) == 1 {
				key = cs[0].Name
			}
			return cg.Reverse[key]
		}
		var out []string
		for _, e := range cg.Forward[id] {
			out = append(out, e.CalleeName)
		}
		// Seeds and reached callees are names; their calls are keyed by chunk id.
		if matches, err := g.Store.SearchByName(ctx, id, 16); err == nil {
			for _, c := range matches {
				if c.Name == id {
					for _, e := range cg.Forward[c.ID] {
						out = append(out, e.CalleeName)
					}
				}
			}
		}
		return out
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= depth {
			continue
		}
		parentScore := scores[cur.id]
		for _, next := range neighborsOf(cur.id) {
			candidate := parentScore * math.Pow(0.8, float64(cur.depth+1))
			if existing, ok := scores[next]; !ok || candidate > existing {
				scores[next] = candidate
				queue = append(queue, frontierEntry{id: next, depth: cur.depth + 1})
			}
		}
	}

	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	resolvedChunks, names := splitReach(ids, cg)
	chunks, err := g.Store.FetchByIDs(ctx, resolvedChunks)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*model.Chunk, len(chunks)+len(names))
	for _, c := range chunks {
		byID[c.ID] = c
	}
	for _, n := range names {
		matches, err := g.Store.SearchByName(ctx, n, 4)
		if err != nil {
			return nil, err
		}
		for _, c := range matches {
			if c.Name == n {
				byID[n] = c
				break
			}
		}
	}

	var out []GatherResult
	for id, score := range scores {
		c, ok := byID[id]
		if !ok {
			continue
		}
		out = append(out, GatherResult{Chunk: c, Score: score})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Chunk.Origin != out[j].Chunk.Origin {
			return out[i].Chunk.Origin < out[j].Chunk.Origin
		}
		return out[i].Chunk.LineStart < out[j].Chunk.LineStart
	})
	return out, nil
}

// DriftResult compares one function's embedding between two stores.
type DriftResult struct {
	Name        string
	Origin      string
	Drift       float64 // 1 - cosine similarity
	MissingSide string  // "current", "reference", "embedding" (a side lacks a vector), or "" when both present
}

// Drift compares same-name/same-chunk-type peers between this store
// and a reference store, per spec §4.9. Peers missing from one side
// are reported distinctly, never as maximum drift.
func (g *GraphQueries) Drift(ctx context.Context, reference *storage.Store, threshold, minDrift float64) ([]DriftResult, error) {
	curIt, err := g.Store.StreamAll(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer curIt.Close()

	refByKey := make(map[string]*model.Chunk)
	refIt, err := reference.StreamAll(ctx, nil)
	if err != nil {
		return nil, err
	}
	for {
		c, ok, err := refIt.Next()
		if err != nil {
			refIt.Close()
			return nil, err
		}
		if !ok {
			break
		}
		refByKey[driftKey(c)] = c
	}
	refIt.Close()

	seen := make(map[string]bool)
	var out []DriftResult
	for {
		c, ok, err := curIt.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		key := driftKey(c)
		seen[key] = true
		ref, found := refByKey[key]
		if !found {
			out = append(out, DriftResult{Name: c.Name, Origin: c.Origin, MissingSide: "reference"})
			continue
		}
		if len(c.Embedding) == 0 || len(ref.Embedding) == 0 {
			out = append(out, DriftResult{Name: c.Name, Origin: c.Origin, MissingSide: "embedding"})
			continue
		}
		sim := cosine(c.Embedding, ref.Embedding, len(c.Embedding))
		drift := 1 - sim
		if sim < threshold && drift >= minDrift {
			out = append(out, DriftResult{Name: c.Name, Origin: c.Origin, Drift: drift})
		}
	}

	for key, ref := range refByKey {
		if !seen[key] {
			out = append(out, DriftResult{Name: ref.Name, Origin: ref.Origin, MissingSide: "current"})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].MissingSide != out[j].MissingSide {
			return out[i].MissingSide == "" // drifted entries sort first
		}
		return out[i].Drift > out[j].Drift
	})
	return out, nil
}

func driftKey(c *model.Chunk) string { return c.ChunkType.String() + "::" + c.Name }

// isEntryPoint reports whether c is a conventional language entry point
// (per the same language registry parsing uses), excluded from
// dead-code reporting per spec §4.9.
func isEntryPoint(c *model.Chunk) bool {
	cfg, ok := parsing.DefaultRegistry().GetByName(c.Language)
	if !ok {
		return false
	}
	for _, name := range cfg.EntryPoints {
		if c.Name == name {
			return true
		}
	}
	return false
}

// DeadCode returns chunks whose name never appears as a callee,
// excluding entry points, test chunks, and trait/interface impl
// members, per spec §4.9.
func (g *GraphQueries) DeadCode(ctx context.Context) ([]*model.Chunk, error) {
	cg, err := g.Store.GetCallGraph(ctx)
	if err != nil {
		return nil, err
	}

	it, err := g.Store.StreamAll(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []*model.Chunk
	for {
		c, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if !c.ChunkType.IsCallable() {
			continue
		}
		if isEntryPoint(c) {
			continue
		}
		if isTestChunk(c) {
			continue
		}
		if len(cg.Reverse[c.Name]) > 0 {
			continue
		}
		if c.ParentID != "" {
			parentChunks, err := g.Store.FetchByIDs(ctx, []string{c.ParentID})
			if err == nil && len(parentChunks) == 1 {
				pt := parentChunks[0].ChunkType
				if pt == model.ChunkTypeTrait || pt == model.ChunkTypeInterface {
					continue
				}
			}
		}
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Origin != out[j].Origin {
			return out[i].Origin < out[j].Origin
		}
		return out[i].LineStart < out[j].LineStart
	})
	return out, nil
}

func dedupStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
