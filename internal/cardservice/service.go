// Package cardservice coordinates the note index, context extraction, and
// the preset engine behind the card-facing operations.
package cardservice

import (
	"context"
	"time"

	"github.com/skoglund/cardnav/internal/index"
	"github.com/skoglund/cardnav/internal/notectx"
	"github.com/skoglund/cardnav/internal/preset"
)

// Card is a list item rendered in the card view.
type Card struct {
	Path      string            `json:"path"`
	Folder    string            `json:"folder"`
	Title     string            `json:"title"`
	Tags      []string          `json:"tags"`
	Props     map[string]string `json:"props,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// OpenResult is returned when a note is opened: the card itself plus the
// preset the engine selected and applied for it.
type OpenResult struct {
	Card     Card              `json:"card"`
	PresetID string            `json:"preset_id"`
	Live     preset.LiveConfig `json:"live"`
}

// Service exposes card listing, search, and the open-note flow that drives
// preset resolution.
type Service struct {
	idx       index.NoteIndex
	extractor *notectx.Extractor
	engine    *preset.Engine
}

// NewService creates a card service.
func NewService(idx index.NoteIndex, extractor *notectx.Extractor, engine *preset.Engine) *Service {
	return &Service{idx: idx, extractor: extractor, engine: engine}
}

// OpenNote resolves the preset for the note at path, applies it, and returns
// the card together with the resulting live configuration.
func (s *Service) OpenNote(_ context.Context, path string) (*OpenResult, error) {
	nctx, err := s.extractor.Extract(path)
	if err != nil {
		return nil, err
	}

	presetID, err := s.engine.ResolveAndApply(nctx)
	if err != nil {
		return nil, err
	}

	card := Card{
		Path:   path,
		Folder: nctx.Folder,
		Tags:   nonNilSlice(nctx.Tags),
		Props:  nctx.Props,
	}
	if row, idxErr := s.idx.GetNote(path); idxErr == nil {
		card.Title = row.Title
		card.CreatedAt = row.CreatedAt
		card.UpdatedAt = row.UpdatedAt
	}

	return &OpenResult{
		Card:     card,
		PresetID: presetID,
		Live:     s.engine.Applier().Live(),
	}, nil
}

// Resolve returns the winning preset for the note at path without applying it.
func (s *Service) Resolve(_ context.Context, path string) (string, error) {
	nctx, err := s.extractor.Extract(path)
	if err != nil {
		return "", err
	}
	return s.engine.Resolve(nctx)
}

// Explain returns the full resolution decision for the note at path,
// including every matching mapping and why the winner won.
func (s *Service) Explain(_ context.Context, path string) (preset.Decision, error) {
	nctx, err := s.extractor.Extract(path)
	if err != nil {
		return preset.Decision{}, err
	}
	return s.engine.Explain(nctx)
}

// ListCards returns paginated cards under folder with optional tag filter.
func (s *Service) ListCards(_ context.Context, folder string, recursive bool, tag, sort string, limit, offset int) ([]Card, int, error) {
	rows, total, err := s.idx.ListCards(folder, recursive, tag, sort, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	cards := make([]Card, len(rows))
	for i, r := range rows {
		cards[i] = Card{
			Path:      r.Path,
			Folder:    r.Folder,
			Title:     r.Title,
			Tags:      nonNilSlice(r.Tags),
			Props:     r.Props,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		}
	}
	return cards, total, nil
}

// Search delegates text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.idx.Search(query, limit)
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
