package retrieval

import (
	"context"
	"strings"

	"github.com/jamie8johnson/cqs-sub000/internal/model"
	"github.com/jamie8johnson/cqs-sub000/internal/storage"
)

// noteStore is the slice of *Store used by note boosting, kept narrow
// so callers can stub it in tests without a real database.
type noteStore interface {
	ListNotesSummaries(ctx context.Context) ([]storage.NoteSummary, error)
}

// loadNotes fetches every note once per query; cheap since notes carry
// no embeddings, per spec §4.8.
func loadNotes(ctx context.Context, s noteStore) ([]storage.NoteSummary, error) {
	return s.ListNotesSummaries(ctx)
}

// matchingSentiment returns the sentiment of the matching note with
// maximum |sentiment| (sign preserved) for chunk c, and whether any
// note matched at all, per spec §4.8's tie-break rule.
func matchingSentiment(c *model.Chunk, notes []storage.NoteSummary) (float64, bool) {
	segments := pathSegments(c.Origin)

	var best float64
	found := false
	for _, n := range notes {
		for _, mention := range n.Mentions {
			if notementMatches(mention, c.Name, segments, c.Origin) {
				if !found || absF(n.Sentiment) > absF(best) {
					best = n.Sentiment
					found = true
				}
				break
			}
		}
	}
	return best, found
}

// notementMatches implements spec §4.8's match rule in priority order:
// exact name match, exact path-segment match, then — last resort —
// full-segment substring match against the origin (e.g. "foo" matches
// ".../foo.rs"). Substring-anywhere matching is explicitly forbidden.
func notementMatches(mention, chunkName string, pathSegs []string, origin string) bool {
	if mention == chunkName {
		return true
	}
	for _, seg := range pathSegs {
		if mention == seg {
			return true
		}
	}
	return matchesFullSegment(mention, origin)
}

// matchesFullSegment reports whether mention equals a full filename
// segment of origin disregarding extension, e.g. "foo" vs "src/foo.rs".
func matchesFullSegment(mention, origin string) bool {
	for _, seg := range pathSegments(origin) {
		base := seg
		if idx := strings.LastIndex(base, "."); idx > 0 {
			base = base[:idx]
		}
		if base == mention {
			return true
		}
	}
	return false
}

func pathSegments(origin string) []string {
	parts := strings.Split(origin, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// applyNoteBoost multiplies score by (1 + sentiment*factor) when a
// note matches, per spec §4.7 step 7 / §4.8.
func applyNoteBoost(score float64, c *model.Chunk, notes []storage.NoteSummary, factor float64) float64 {
	sentiment, matched := matchingSentiment(c, notes)
	if !matched {
		return score
	}
	return score * (1 + sentiment*factor)
}
