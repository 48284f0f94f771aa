// Package notesfile reads and writes the human-authored TOML notes
// file (e.g. docs/notes.toml), the source of truth for model.Note
// annotations per SPEC_FULL.md §6. The Store only ever holds a synced,
// read-only snapshot (internal/storage's ReplaceNotes/ListNotesSummaries).
package notesfile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"
	"github.com/pelletier/go-toml/v2"

	"github.com/jamie8johnson/cqs-sub000/internal/cqserrors"
	"github.com/jamie8johnson/cqs-sub000/internal/model"
)

// validSentiments are the only discrete values a note's sentiment may
// take, per spec §6.
var validSentiments = map[model.Sentiment]bool{
	model.SentimentVeryNegative: true,
	model.SentimentNegative:     true,
	model.SentimentNeutral:      true,
	model.SentimentPositive:     true,
	model.SentimentVeryPositive: true,
}

// record is the on-disk TOML shape for one note.
type record struct {
	ID        string    `toml:"id"`
	Text      string    `toml:"text"`
	Sentiment float64   `toml:"sentiment"`
	Mentions  []string  `toml:"mentions"`
	CreatedAt time.Time `toml:"created_at"`
}

// document is the full notes file: a list of notes, the shape go-toml
// produces for a `[[note]]` array-of-tables.
type document struct {
	Note []record `toml:"note"`
}

// Load reads and parses the notes file at path. A missing file is not
// an error — it's treated as an empty note set, since notes are
// optional.
func Load(path string) ([]model.Note, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, cqserrors.IOError("notesfile.load", path, err)
	}

	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, cqserrors.ParseFailure("notesfile.load", path, err)
	}

	notes := make([]model.Note, 0, len(doc.Note))
	for _, r := range doc.Note {
		sentiment := model.Sentiment(r.Sentiment)
		if !validSentiments[sentiment] {
			return nil, cqserrors.New(cqserrors.ErrCodeParseNoRoot, "notesfile.load",
				fmt.Sprintf("note %q has invalid sentiment %v (must be one of -1, -0.5, 0, 0.5, 1)", r.ID, r.Sentiment), nil).
				WithPath(path)
		}
		notes = append(notes, model.Note{
			ID:        r.ID,
			Text:      r.Text,
			Sentiment: sentiment,
			Mentions:  r.Mentions,
			CreatedAt: r.CreatedAt,
		})
	}
	return notes, nil
}

// Save writes notes back to path under an exclusive file lock, using
// temp-file-plus-atomic-rename (with natefinch/atomic's EXDEV
// copy+remove fallback) so a crash mid-write never corrupts the file,
// per spec §6.
func Save(path string, notes []model.Note) error {
	for _, n := range notes {
		if !validSentiments[n.Sentiment] {
			return cqserrors.New(cqserrors.ErrCodeInternal, "notesfile.save",
				fmt.Sprintf("note %q has invalid sentiment %v", n.ID, n.Sentiment), nil)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cqserrors.IOError("notesfile.save", path, err)
	}

	lockPath := path + ".lock"
	fl := flock.New(lockPath)
	if err := fl.Lock(); err != nil {
		return cqserrors.IOError("notesfile.save", lockPath, err)
	}
	defer fl.Unlock()

	sorted := make([]model.Note, len(notes))
	copy(sorted, notes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	doc := document{Note: make([]record, len(sorted))}
	for i, n := range sorted {
		doc.Note[i] = record{
			ID:        n.ID,
			Text:      n.Text,
			Sentiment: float64(n.Sentiment),
			Mentions:  n.Mentions,
			CreatedAt: n.CreatedAt,
		}
	}

	data, err := toml.Marshal(doc)
	if err != nil {
		return cqserrors.Wrap(cqserrors.ErrCodeInternal, "notesfile.save", err)
	}

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return cqserrors.IOError("notesfile.save", path, err)
	}
	return nil
}

// ToSummaries projects notes into the narrow shape the store indexes,
// mirroring storage.NoteSummary without importing internal/storage
// (notesfile is a leaf package; callers convert at the boundary).
func ToSummaries(notes []model.Note) []Summary {
	out := make([]Summary, len(notes))
	for i, n := range notes {
		out[i] = Summary{
			ID:        n.ID,
			Text:      n.Text,
			Sentiment: float64(n.Sentiment),
			Mentions:  n.Mentions,
		}
	}
	return out
}

// Summary is the projection ToSummaries produces; its fields line up
// 1:1 with storage.NoteSummary so callers can convert with a plain
// struct literal.
type Summary struct {
	ID        string
	Text      string
	Sentiment float64
	Mentions  []string
}
