package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/skoglund/cardnav/internal/cardservice"
	"github.com/skoglund/cardnav/internal/preset"
	"github.com/skoglund/cardnav/internal/sse"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// events, if non-nil, is used both for preset lifecycle broadcasts and to
// serve the SSE endpoint at GET /events inside the auth group.
func NewRouter(engine *preset.Engine, cards *cardservice.Service, authEnabled bool, token string, events *sse.Broker) chi.Router {
	h := NewHandler(engine, cards, events)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Presets CRUD.
	r.Get("/presets", h.ListPresets)
	r.Post("/presets", h.CreatePreset)
	r.Get("/presets/{id}", h.GetPreset)
	r.Put("/presets/{id}", h.UpdatePreset)
	r.Delete("/presets/{id}", h.DeletePreset)

	// Mappings.
	r.Post("/presets/{id}/mappings", h.AddMapping)
	r.Delete("/mappings/{id}", h.RemoveMapping)

	// Priority order and fallback.
	r.Get("/priority", h.GetPriorityList)
	r.Put("/priority", h.PutPriorityList)
	r.Get("/default-preset", h.GetDefaultPreset)
	r.Put("/default-preset", h.PutDefaultPreset)

	// Resolution and application.
	r.Get("/resolve", h.Resolve)
	r.Get("/resolve/explain", h.Explain)
	r.Post("/presets/{id}/apply", h.ApplyPreset)
	r.Post("/open", h.OpenNote)
	r.Get("/live", h.Live)

	// Cards and search.
	r.Get("/cards", h.ListCards)
	r.Get("/search", h.Search)

	// Portable preset documents.
	r.Get("/export", h.Export)
	r.Post("/import", h.Import)

	// SSE endpoint (protected by same auth middleware).
	if events != nil {
		r.Get("/events", events.ServeHTTP)
	}

	return r
}
