package api

import (
	"github.com/skoglund/cardnav/internal/cardservice"
	"github.com/skoglund/cardnav/internal/preset"
)

// CreatePresetRequest is the request body for creating a preset.
type CreatePresetRequest struct {
	Name        string              `json:"name" example:"Projects" validate:"required"`
	Description string              `json:"description,omitempty" example:"Wide layout for project notes"`
	Config      preset.ConfigBundle `json:"configBundle" validate:"required"`
}

// UpdatePresetRequest is the request body for replacing a preset.
type UpdatePresetRequest struct {
	Name        string              `json:"name" validate:"required"`
	Description string              `json:"description,omitempty"`
	Config      preset.ConfigBundle `json:"configBundle" validate:"required"`
	Mappings    []preset.Mapping    `json:"mappings"`
}

// PresetListResponse wraps the full preset collection.
type PresetListResponse struct {
	Presets         []preset.Preset `json:"presets" validate:"required"`
	DefaultPresetID string          `json:"defaultPresetId,omitempty"`
}

// PriorityListResponse carries the global mapping priority order.
type PriorityListResponse struct {
	PriorityList []string `json:"priorityList" validate:"required"`
}

// DefaultPresetResponse carries the fallback preset id.
type DefaultPresetResponse struct {
	DefaultPresetID string `json:"defaultPresetId" validate:"required"`
}

// ResolveResponse is the outcome of a resolution without application.
type ResolveResponse struct {
	PresetID string `json:"presetId" validate:"required"`
}

// MatchDTO is one candidate mapping in an explain response.
type MatchDTO struct {
	Mapping     preset.Mapping `json:"mapping"`
	Specificity int            `json:"specificity"`
}

// ExplainResponse is the full resolution decision for a note.
type ExplainResponse struct {
	PresetID string     `json:"presetId"`
	Reason   string     `json:"reason"`
	Winner   *MatchDTO  `json:"winner,omitempty"`
	Matches  []MatchDTO `json:"matches"`
}

func explainResponse(dec preset.Decision) ExplainResponse {
	out := ExplainResponse{
		PresetID: dec.PresetID,
		Reason:   dec.Reason,
		Matches:  make([]MatchDTO, len(dec.Matches)),
	}
	for i, m := range dec.Matches {
		out.Matches[i] = MatchDTO{Mapping: m.Mapping, Specificity: m.Specificity}
	}
	if dec.Winner != nil {
		out.Winner = &MatchDTO{Mapping: dec.Winner.Mapping, Specificity: dec.Winner.Specificity}
	}
	return out
}

// OpenNoteRequest is the request body for opening a note.
type OpenNoteRequest struct {
	Path string `json:"path" example:"Projects/app.md" validate:"required"`
}

// CardListResponse wraps paginated card listings.
type CardListResponse struct {
	Cards []cardservice.Card `json:"cards" validate:"required"`
	Total int                `json:"total" example:"42" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult struct {
	Path    string `json:"path" example:"Projects/app.md" validate:"required"`
	Title   string `json:"title" example:"App" validate:"required"`
	Snippet string `json:"snippet" example:"...matched text..." validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}
