package notesfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamie8johnson/cqs-sub000/internal/model"
)

func TestLoad_MissingFileReturnsEmptyNotError(t *testing.T) {
	// Given: a path with no notes file
	path := filepath.Join(t.TempDir(), "notes.toml")

	// When: I load it
	notes, err := Load(path)

	// Then: it's treated as an empty note set, not an error
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestSaveThenLoad_RoundTripsNotes(t *testing.T) {
	// Given: a set of notes
	path := filepath.Join(t.TempDir(), "notes.toml")
	notes := []model.Note{
		{ID: "n2", Text: "second", Sentiment: model.SentimentPositive, Mentions: []string{"foo.go"}, CreatedAt: time.Now().Truncate(time.Second)},
		{ID: "n1", Text: "first", Sentiment: model.SentimentVeryNegative, Mentions: []string{"bar.go"}, CreatedAt: time.Now().Truncate(time.Second)},
	}

	// When: I save then reload
	require.NoError(t, Save(path, notes))
	loaded, err := Load(path)

	// Then: both notes round-trip, sorted by id
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "n1", loaded[0].ID)
	assert.Equal(t, "n2", loaded[1].ID)
	assert.Equal(t, model.SentimentVeryNegative, loaded[0].Sentiment)
	assert.Equal(t, []string{"foo.go"}, loaded[1].Mentions)
}

func TestSave_RejectsInvalidSentiment(t *testing.T) {
	// Given: a note with a sentiment value outside the discrete set
	path := filepath.Join(t.TempDir(), "notes.toml")
	notes := []model.Note{{ID: "bad", Text: "x", Sentiment: model.Sentiment(0.37)}}

	// When: I try to save it
	err := Save(path, notes)

	// Then: it's rejected before anything is written
	assert.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestLoad_RejectsInvalidSentimentInFile(t *testing.T) {
	// Given: a hand-edited notes file with an out-of-range sentiment
	path := filepath.Join(t.TempDir(), "notes.toml")
	raw := "[[note]]\nid = \"x\"\ntext = \"hi\"\nsentiment = 0.37\n"
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	// When: I load it
	_, err := Load(path)

	// Then: it's rejected rather than silently accepted
	assert.Error(t, err)
}

func TestToSummaries_ProjectsFieldsOneToOne(t *testing.T) {
	// Given: one note
	notes := []model.Note{{ID: "n1", Text: "hi", Sentiment: model.SentimentNeutral, Mentions: []string{"a.go"}}}

	// When: I project to summaries
	summaries := ToSummaries(notes)

	// Then: the fields line up
	require.Len(t, summaries, 1)
	assert.Equal(t, "n1", summaries[0].ID)
	assert.Equal(t, "hi", summaries[0].Text)
	assert.Equal(t, 0.0, summaries[0].Sentiment)
	assert.Equal(t, []string{"a.go"}, summaries[0].Mentions)
}
