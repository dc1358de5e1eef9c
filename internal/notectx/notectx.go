// Package notectx derives the resolution context for a note: the folder,
// tags, frontmatter properties, and reference date that mapping rules are
// matched against.
package notectx

import (
	"fmt"

	"github.com/skoglund/cardnav/internal/apperr"
	"github.com/skoglund/cardnav/internal/index"
	"github.com/skoglund/cardnav/internal/models"
	"github.com/skoglund/cardnav/internal/parser"
	"github.com/skoglund/cardnav/internal/preset"
	"github.com/skoglund/cardnav/internal/storage"
)

// Extractor builds preset.Context values from notes on disk.
//
// The note file itself is the source of truth for tags and properties; the
// index is only consulted for the first-indexed time when the note carries
// no created date of its own.
type Extractor struct {
	store storage.Provider
	idx   index.NoteIndex
}

// NewExtractor returns an Extractor backed by the given storage and index.
// idx may be nil, in which case notes without a created date get a zero
// reference date and date rules never match them.
func NewExtractor(store storage.Provider, idx index.NoteIndex) *Extractor {
	return &Extractor{store: store, idx: idx}
}

// Extract reads and parses the note at path and returns its resolution
// context. A missing note yields ErrNotFound.
func (e *Extractor) Extract(path string) (preset.Context, error) {
	data, err := e.store.Read(path)
	if err != nil {
		return preset.Context{}, fmt.Errorf("%w: note %s", apperr.ErrNotFound, path)
	}

	res, err := parser.Parse(data)
	if err != nil {
		return preset.Context{}, fmt.Errorf("notectx: parse %s: %w", path, err)
	}

	ctx := preset.Context{
		Folder: models.FolderOf(path),
		Tags:   res.Tags,
		Props:  res.Props,
		Ref:    res.Created,
	}

	if ctx.Ref.IsZero() && e.idx != nil {
		if row, idxErr := e.idx.GetNote(path); idxErr == nil {
			ctx.Ref = row.CreatedAt
		}
	}

	return ctx, nil
}
