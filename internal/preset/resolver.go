package preset

import (
	"fmt"

	"github.com/skoglund/cardnav/internal/apperr"
)

// Resolver picks exactly one winning preset from a match set, or the default
// preset when nothing matched. Dependencies are injected; the resolver holds
// no mutable state of its own.
type Resolver struct {
	store *Store
}

// NewResolver creates a resolver over store.
func NewResolver(store *Store) *Resolver {
	return &Resolver{store: store}
}

// Decision records how a resolution was made, for diagnostics and the
// explain surface.
type Decision struct {
	PresetID string
	Winner   *Match
	Matches  []Match
	Reason   string
}

// Resolve returns the winning preset id for the given matches.
func (r *Resolver) Resolve(matches []Match) (string, error) {
	d, err := r.Explain(matches)
	if err != nil {
		return "", err
	}
	return d.PresetID, nil
}

// Explain applies the precedence rules and reports the full decision:
//
//  1. Matches whose mapping id appears in the global priority list are
//     considered first; the lowest list index wins outright. Explicit
//     ordering always beats specificity.
//  2. Otherwise the highest specificity wins (deeper folder path beats
//     shallower; any folder match beats any tag/date/property match).
//  3. Specificity ties go to the mapping that comes first in stable store
//     order (presets in creation order, mappings within a preset in
//     creation order).
//  4. An empty match set falls back to the default preset.
func (r *Resolver) Explain(matches []Match) (Decision, error) {
	if len(matches) == 0 {
		defID := r.store.DefaultPresetID()
		if defID == "" {
			return Decision{}, apperr.ErrNoDefaultPreset
		}
		if _, err := r.store.GetPreset(defID); err != nil {
			return Decision{}, fmt.Errorf("%w: default preset %s is gone", apperr.ErrNoDefaultPreset, defID)
		}
		return Decision{
			PresetID: defID,
			Matches:  matches,
			Reason:   "no mapping matched; fell back to the default preset",
		}, nil
	}

	rank := make(map[string]int)
	for i, id := range r.store.GetPriorityList() {
		rank[id] = i
	}

	var best *Match
	bestRank := -1
	for i := range matches {
		pos, ok := rank[matches[i].Mapping.ID]
		if !ok {
			continue
		}
		if best == nil || pos < bestRank {
			best = &matches[i]
			bestRank = pos
		}
	}
	if best != nil {
		return Decision{
			PresetID: best.Mapping.PresetID,
			Winner:   best,
			Matches:  matches,
			Reason:   fmt.Sprintf("mapping %s holds priority rank %d", best.Mapping.ID, bestRank),
		}, nil
	}

	for i := range matches {
		m := &matches[i]
		if best == nil ||
			m.Specificity > best.Specificity ||
			(m.Specificity == best.Specificity && m.ord < best.ord) {
			best = m
		}
	}
	return Decision{
		PresetID: best.Mapping.PresetID,
		Winner:   best,
		Matches:  matches,
		Reason:   fmt.Sprintf("mapping %s won on specificity %d", best.Mapping.ID, best.Specificity),
	}, nil
}
