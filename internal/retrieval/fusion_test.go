package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuseRankedLists_ChunkInBothListsOutranksSingleList(t *testing.T) {
	// Given: "a" ranks first in both lists, "b" ranks first in only one
	semantic := rankedList{"a", "b"}
	lexical := rankedList{"a", "c"}

	// When: I fuse them
	fused := fuseRankedLists([]rankedList{semantic, lexical}, 60, nil)

	// Then: "a" (present in both lists) ranks first
	require.NotEmpty(t, fused)
	assert.Equal(t, "a", fused[0].ChunkID)
	assert.Equal(t, 2, fused[0].InLists)
}

func TestFuseRankedLists_IsDeterministicAcrossRuns(t *testing.T) {
	// Given: the same two ranked lists
	semantic := rankedList{"x", "y", "z"}
	lexical := rankedList{"z", "x", "y"}

	// When: I fuse them twice
	first := fuseRankedLists([]rankedList{semantic, lexical}, 60, nil)
	second := fuseRankedLists([]rankedList{semantic, lexical}, 60, nil)

	// Then: the output order is identical both times
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ChunkID, second[i].ChunkID)
		assert.Equal(t, first[i].RRFScore, second[i].RRFScore)
	}
}

func TestFuseRankedLists_TiesBreakByBoostedThenID(t *testing.T) {
	// Given: two chunks that never co-occur, so their RRF scores tie
	semantic := rankedList{"b"}
	lexical := rankedList{"a"}
	boosted := map[string]float64{"a": 0.9, "b": 0.1}

	// When: I fuse with a boosted tie-break map favoring "a"
	fused := fuseRankedLists([]rankedList{semantic, lexical}, 60, boosted)

	// Then: "a" wins the tie on its higher boosted score
	require.Len(t, fused, 2)
	assert.Equal(t, "a", fused[0].ChunkID)
}

func TestFuseRankedLists_FinalTieBreakIsLexicographicID(t *testing.T) {
	// Given: two chunks with identical RRF and boosted scores
	semantic := rankedList{"zzz"}
	lexical := rankedList{"aaa"}

	// When: I fuse with no boosted scores supplied
	fused := fuseRankedLists([]rankedList{semantic, lexical}, 60, nil)

	// Then: the lexicographically smaller id sorts first
	require.Len(t, fused, 2)
	assert.Equal(t, "aaa", fused[0].ChunkID)
}

func TestFuseRankedLists_DefaultsKWhenNonPositive(t *testing.T) {
	// Given: an invalid k
	list := rankedList{"a"}

	// When: I fuse with k=0
	fused := fuseRankedLists([]rankedList{list}, 0, nil)

	// Then: it falls back to DefaultRRFConstant rather than dividing oddly
	require.Len(t, fused, 1)
	assert.InDelta(t, 1.0/float64(DefaultRRFConstant+1), fused[0].RRFScore, 1e-9)
}
