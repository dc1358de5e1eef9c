package preset

import (
	"encoding/json"
	"fmt"

	"github.com/skoglund/cardnav/internal/apperr"
)

// Export serializes the full store state (presets, priority list, default
// preset id) in the persisted wire shape. Importing the result into a fresh
// store reproduces identical preset ids, mapping ids, and priority ordering.
func (s *Store) Export() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.MarshalIndent(s.data, "", "  ")
}

// Import replaces the entire store state with the exported payload. Priority
// list entries without a live mapping are dropped, as everywhere else. A
// payload whose default preset id does not name one of its presets is
// rejected: the store never invents a default on behalf of imported data
// that claims to have one.
func (s *Store) Import(raw []byte) error {
	var incoming storeData
	if err := json.Unmarshal(raw, &incoming); err != nil {
		return fmt.Errorf("%w: %s", apperr.ErrValidation, err)
	}

	// Mapping ids must be globally unique across the whole payload; the
	// priority list keys on them.
	seenMappings := make(map[string]struct{})
	for i := range incoming.Presets {
		p := &incoming.Presets[i]
		if p.ID == "" {
			return fmt.Errorf("%w: preset %q has no id", apperr.ErrValidation, p.Name)
		}
		for j := range p.Mappings {
			id := p.Mappings[j].ID
			if id == "" {
				return fmt.Errorf("%w: preset %q mapping %d has no id", apperr.ErrValidation, p.Name, j)
			}
			if _, dup := seenMappings[id]; dup {
				return fmt.Errorf("%w: mapping id %s appears more than once in import", apperr.ErrValidation, id)
			}
			seenMappings[id] = struct{}{}
			p.Mappings[j].PresetID = p.ID
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("%w: preset %q: %s", apperr.ErrValidation, p.Name, err)
		}
	}

	if incoming.DefaultPresetID != "" && findPreset(&incoming, incoming.DefaultPresetID) < 0 {
		return fmt.Errorf("%w: default preset id %s not present in import", apperr.ErrValidation, incoming.DefaultPresetID)
	}

	err := s.mutate(func(d *storeData) error {
		*d = incoming.clone()
		return nil
	})
	if err != nil {
		return err
	}

	// An import without a default degrades like a first run: seed one.
	s.mu.Lock()
	if s.defaultDangling() {
		s.seedDefault()
		if saveErr := s.save(s.data); saveErr != nil {
			s.logger.Warn("preset: could not persist seeded default after import")
		}
		for _, hook := range s.hooks {
			hook()
		}
	}
	s.mu.Unlock()
	return nil
}
