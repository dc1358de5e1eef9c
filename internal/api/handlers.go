package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/skoglund/cardnav/internal/apperr"
	"github.com/skoglund/cardnav/internal/cardservice"
	"github.com/skoglund/cardnav/internal/preset"
	"github.com/skoglund/cardnav/internal/sse"
)

// Handler holds API route handlers.
type Handler struct {
	presets *preset.Store
	engine  *preset.Engine
	cards   *cardservice.Service
	events  *sse.Broker
}

// NewHandler creates a new Handler. events may be nil, in which case preset
// lifecycle events are not broadcast.
func NewHandler(engine *preset.Engine, cards *cardservice.Service, events *sse.Broker) *Handler {
	return &Handler{presets: engine.Store(), engine: engine, cards: cards, events: events}
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrConflict), errors.Is(err, apperr.ErrStaleReference):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrNoDefaultPreset):
		writeJSON(w, http.StatusInternalServerError, errorBody("no preset resolves and no default preset is set"))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func (h *Handler) presetEvent(kind, id string) {
	if h.events != nil {
		h.events.PublishPresetEvent(kind, id)
	}
}

// notePath extracts the note path from the "path" query parameter.
// Supports encoded slashes from OpenAPI clients (e.g. topics%2Fnote.md).
func notePath(q url.Values) string {
	raw := strings.TrimPrefix(q.Get("path"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListPresets handles GET /api/presets.
//
//	@Summary		List all presets with their mappings
//	@Tags			presets
//	@Produce		json
//	@Success		200	{object}	PresetListResponse
//	@Security		BearerAuth
//	@Router			/presets [get]
func (h *Handler) ListPresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PresetListResponse{
		Presets:         h.presets.GetAllPresets(),
		DefaultPresetID: h.presets.DefaultPresetID(),
	})
}

// CreatePreset handles POST /api/presets.
//
//	@Summary		Create a preset
//	@Tags			presets
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreatePresetRequest	true	"Preset to create"
//	@Success		201		{object}	preset.Preset
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/presets [post]
func (h *Handler) CreatePreset(w http.ResponseWriter, r *http.Request) {
	var req CreatePresetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	p, err := h.presets.CreatePreset(preset.Preset{
		Name:        req.Name,
		Description: req.Description,
		Config:      req.Config,
	})
	if err != nil {
		writeError(w, "create preset", err)
		return
	}
	h.presetEvent("created", p.ID)
	writeJSON(w, http.StatusCreated, p)
}

// GetPreset handles GET /api/presets/{id}.
//
//	@Summary		Get a single preset
//	@Tags			presets
//	@Produce		json
//	@Param			id	path		string	true	"Preset id"
//	@Success		200	{object}	preset.Preset
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/presets/{id} [get]
func (h *Handler) GetPreset(w http.ResponseWriter, r *http.Request) {
	p, err := h.presets.GetPreset(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get preset", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdatePreset handles PUT /api/presets/{id}.
//
//	@Summary		Replace a preset's name, config, and mappings
//	@Tags			presets
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Preset id"
//	@Param			body	body		UpdatePresetRequest	true	"Replacement"
//	@Success		200		{object}	preset.Preset
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/presets/{id} [put]
func (h *Handler) UpdatePreset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdatePresetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.presets.UpdatePreset(preset.Preset{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Config:      req.Config,
		Mappings:    req.Mappings,
	}); err != nil {
		writeError(w, "update preset", err)
		return
	}
	p, err := h.presets.GetPreset(id)
	if err != nil {
		writeError(w, "update preset", err)
		return
	}
	h.presetEvent("updated", id)
	writeJSON(w, http.StatusOK, p)
}

// DeletePreset handles DELETE /api/presets/{id}.
//
//	@Summary		Delete a preset
//	@Tags			presets
//	@Param			id	path	string	true	"Preset id"
//	@Success		204	"Preset deleted"
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/presets/{id} [delete]
func (h *Handler) DeletePreset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.presets.DeletePreset(id); err != nil {
		writeError(w, "delete preset", err)
		return
	}
	h.presetEvent("deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

// AddMapping handles POST /api/presets/{id}/mappings.
//
//	@Summary		Add a mapping rule to a preset
//	@Tags			mappings
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Preset id"
//	@Param			body	body		preset.Mapping	true	"Mapping rule"
//	@Success		201		{object}	preset.Mapping
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/presets/{id}/mappings [post]
func (h *Handler) AddMapping(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var m preset.Mapping
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	created, err := h.presets.AddMapping(id, m)
	if err != nil {
		writeError(w, "add mapping", err)
		return
	}
	h.presetEvent("updated", id)
	writeJSON(w, http.StatusCreated, created)
}

// RemoveMapping handles DELETE /api/mappings/{id}.
//
//	@Summary		Remove a mapping rule
//	@Tags			mappings
//	@Param			id	path	string	true	"Mapping id"
//	@Success		204	"Mapping removed"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/mappings/{id} [delete]
func (h *Handler) RemoveMapping(w http.ResponseWriter, r *http.Request) {
	if err := h.presets.RemoveMapping(chi.URLParam(r, "id")); err != nil {
		writeError(w, "remove mapping", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApplyPreset handles POST /api/presets/{id}/apply.
//
//	@Summary		Apply a preset's configuration as the live configuration
//	@Tags			presets
//	@Produce		json
//	@Param			id	path		string	true	"Preset id"
//	@Success		200	{object}	preset.LiveConfig
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/presets/{id}/apply [post]
func (h *Handler) ApplyPreset(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Apply(chi.URLParam(r, "id")); err != nil {
		writeError(w, "apply preset", err)
		return
	}
	writeJSON(w, http.StatusOK, h.engine.Applier().Live())
}

// GetPriorityList handles GET /api/priority.
//
//	@Summary		Get the global mapping priority order
//	@Tags			priority
//	@Produce		json
//	@Success		200	{object}	PriorityListResponse
//	@Security		BearerAuth
//	@Router			/priority [get]
func (h *Handler) GetPriorityList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PriorityListResponse{PriorityList: h.presets.GetPriorityList()})
}

// PutPriorityList handles PUT /api/priority.
//
//	@Summary		Replace the global mapping priority order
//	@Tags			priority
//	@Accept			json
//	@Produce		json
//	@Param			body	body		PriorityListResponse	true	"Ordered mapping ids"
//	@Success		200		{object}	PriorityListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/priority [put]
func (h *Handler) PutPriorityList(w http.ResponseWriter, r *http.Request) {
	var req PriorityListResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.presets.UpdatePriorityList(req.PriorityList); err != nil {
		writeError(w, "update priority list", err)
		return
	}
	if h.events != nil {
		h.events.Publish(sse.Event{Type: "priority.updated", Data: map[string]any{}})
	}
	writeJSON(w, http.StatusOK, PriorityListResponse{PriorityList: h.presets.GetPriorityList()})
}

// GetDefaultPreset handles GET /api/default-preset.
//
//	@Summary		Get the fallback preset id
//	@Tags			presets
//	@Produce		json
//	@Success		200	{object}	DefaultPresetResponse
//	@Security		BearerAuth
//	@Router			/default-preset [get]
func (h *Handler) GetDefaultPreset(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, DefaultPresetResponse{DefaultPresetID: h.presets.DefaultPresetID()})
}

// PutDefaultPreset handles PUT /api/default-preset.
//
//	@Summary		Set the fallback preset
//	@Tags			presets
//	@Accept			json
//	@Produce		json
//	@Param			body	body		DefaultPresetResponse	true	"Preset id"
//	@Success		200		{object}	DefaultPresetResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/default-preset [put]
func (h *Handler) PutDefaultPreset(w http.ResponseWriter, r *http.Request) {
	var req DefaultPresetResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.presets.SetDefaultPresetID(req.DefaultPresetID); err != nil {
		writeError(w, "set default preset", err)
		return
	}
	if h.events != nil {
		h.events.Publish(sse.Event{Type: "default.updated", Data: map[string]string{"id": req.DefaultPresetID}})
	}
	writeJSON(w, http.StatusOK, DefaultPresetResponse{DefaultPresetID: h.presets.DefaultPresetID()})
}

// Resolve handles GET /api/resolve.
//
//	@Summary		Resolve the preset for a note without applying it
//	@Tags			resolution
//	@Produce		json
//	@Param			path	query		string	true	"Note path"
//	@Success		200		{object}	ResolveResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/resolve [get]
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	path := notePath(r.URL.Query())
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return
	}
	id, err := h.cards.Resolve(r.Context(), path)
	if err != nil {
		writeError(w, "resolve", err)
		return
	}
	writeJSON(w, http.StatusOK, ResolveResponse{PresetID: id})
}

// Explain handles GET /api/resolve/explain.
//
//	@Summary		Explain a resolution: every match and why the winner won
//	@Tags			resolution
//	@Produce		json
//	@Param			path	query		string	true	"Note path"
//	@Success		200		{object}	ExplainResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/resolve/explain [get]
func (h *Handler) Explain(w http.ResponseWriter, r *http.Request) {
	path := notePath(r.URL.Query())
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return
	}
	dec, err := h.cards.Explain(r.Context(), path)
	if err != nil {
		writeError(w, "explain", err)
		return
	}
	writeJSON(w, http.StatusOK, explainResponse(dec))
}

// OpenNote handles POST /api/open.
//
//	@Summary		Open a note: resolve its preset, apply it, return the card
//	@Tags			cards
//	@Accept			json
//	@Produce		json
//	@Param			body	body		OpenNoteRequest	true	"Note to open"
//	@Success		200		{object}	cardservice.OpenResult
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/open [post]
func (h *Handler) OpenNote(w http.ResponseWriter, r *http.Request) {
	var req OpenNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	res, err := h.cards.OpenNote(r.Context(), req.Path)
	if err != nil {
		writeError(w, "open note", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Live handles GET /api/live.
//
//	@Summary		Get the current live configuration
//	@Tags			cards
//	@Produce		json
//	@Success		200	{object}	preset.LiveConfig
//	@Security		BearerAuth
//	@Router			/live [get]
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Applier().Live())
}

// ListCards handles GET /api/cards.
//
//	@Summary		List cards with folder, tag, and pagination filters
//	@Tags			cards
//	@Produce		json
//	@Param			folder		query		string	false	"Folder path"
//	@Param			recursive	query		bool	false	"Include subfolders"
//	@Param			tag			query		string	false	"Filter by tag"
//	@Param			sort		query		string	false	"Sort field"	Enums(updated_at, created_at, title, path)
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Success		200			{object}	CardListResponse
//	@Security		BearerAuth
//	@Router			/cards [get]
func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	recursive, _ := strconv.ParseBool(q.Get("recursive"))

	cards, total, err := h.cards.ListCards(r.Context(), q.Get("folder"), recursive, q.Get("tag"), q.Get("sort"), limit, offset)
	if err != nil {
		writeError(w, "list cards", err)
		return
	}
	writeJSON(w, http.StatusOK, CardListResponse{Cards: cards, Total: total})
}

// Search handles GET /api/search.
//
//	@Summary		Text search across indexed notes
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.cards.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	out := make([]SearchResult, 0, len(results))
	for _, hit := range results {
		out = append(out, SearchResult{Path: hit.Path, Title: hit.Title, Snippet: hit.Snippet})
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: out})
}

// Export handles GET /api/export.
//
//	@Summary		Export all presets, mappings, and the priority list
//	@Tags			transfer
//	@Produce		json
//	@Success		200	{string}	string	"Portable preset document"
//	@Security		BearerAuth
//	@Router			/export [get]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	raw, err := h.presets.Export()
	if err != nil {
		writeError(w, "export presets", err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="presets.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// Import handles POST /api/import.
//
//	@Summary		Replace the preset collection from an exported document
//	@Tags			transfer
//	@Accept			json
//	@Success		204	"Presets imported"
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/import [post]
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	if err := h.presets.Import(raw); err != nil {
		writeError(w, "import presets", err)
		return
	}
	if h.events != nil {
		h.events.Publish(sse.Event{Type: "presets.imported", Data: map[string]any{}})
	}
	w.WriteHeader(http.StatusNoContent)
}
