package preset

import (
	"errors"
	"log/slog"

	"github.com/skoglund/cardnav/internal/apperr"
)

// Engine is the resolution facade: cache lookup, index query, resolver
// decision, applier side effect. All collaborators are constructor-injected.
type Engine struct {
	store    *Store
	index    *MappingIndex
	resolver *Resolver
	cache    *Cache
	applier  *Applier
	logger   *slog.Logger
}

// NewEngine wires the engine from its parts.
func NewEngine(store *Store, index *MappingIndex, resolver *Resolver, cache *Cache, applier *Applier, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    store,
		index:    index,
		resolver: resolver,
		cache:    cache,
		applier:  applier,
		logger:   logger,
	}
}

// NewDefaultEngine builds an engine with freshly wired collaborators over
// store. onRefresh may be nil.
func NewDefaultEngine(store *Store, onRefresh RefreshFunc, logger *slog.Logger) *Engine {
	idx := NewMappingIndex(store)
	return NewEngine(
		store,
		idx,
		NewResolver(store),
		NewCache(store),
		NewApplier(store, LiveConfig{}, onRefresh),
		logger,
	)
}

// Store exposes the underlying preset store for CRUD surfaces.
func (e *Engine) Store() *Store { return e.store }

// Applier exposes the live-configuration applier.
func (e *Engine) Applier() *Applier { return e.applier }

// Resolve turns a context into the single winning preset id, consulting the
// cache first. The generation observed at lookup time rides along to Put, so
// an outcome computed while a mutation committed is discarded instead of
// cached stale.
func (e *Engine) Resolve(ctx Context) (string, error) {
	key := Fingerprint(ctx, e.index.PropertyNames())
	id, gen, ok := e.cache.Get(key)
	if ok {
		return id, nil
	}

	matches := e.index.Query(ctx)
	id, err := e.resolver.Resolve(matches)
	if err != nil {
		return "", err
	}
	e.cache.Put(key, id, gen)
	e.logger.Debug("preset: resolved",
		slog.String("folder", ctx.Folder),
		slog.Int("matches", len(matches)),
		slog.String("preset_id", id))
	return id, nil
}

// Explain resolves without the cache and reports the full decision.
func (e *Engine) Explain(ctx Context) (Decision, error) {
	return e.resolver.Explain(e.index.Query(ctx))
}

// Apply makes the preset the active configuration.
func (e *Engine) Apply(presetID string) error {
	return e.applier.Apply(presetID)
}

// ResolveAndApply resolves ctx and applies the winner. If the winner was
// deleted between resolution and apply, it re-resolves once against the
// fresh rule set; it never substitutes a preset silently.
func (e *Engine) ResolveAndApply(ctx Context) (string, error) {
	id, err := e.Resolve(ctx)
	if err != nil {
		return "", err
	}
	if err := e.Apply(id); err == nil {
		return id, nil
	} else if !errors.Is(err, apperr.ErrStaleReference) {
		return "", err
	}

	// The cached outcome is out of sync with the store; drop it so the
	// re-resolution runs against the fresh rule set.
	e.cache.Clear()
	e.logger.Warn("preset: stale resolution, re-resolving", slog.String("preset_id", id))
	id, err = e.Resolve(ctx)
	if err != nil {
		return "", err
	}
	if err := e.Apply(id); err != nil {
		return "", err
	}
	return id, nil
}
