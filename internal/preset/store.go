package preset

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/skoglund/cardnav/internal/apperr"
)

// storeData is the full persisted state of the preset store.
type storeData struct {
	Presets         []Preset `json:"presets"`
	PriorityList    []string `json:"priorityList"`
	DefaultPresetID string   `json:"defaultPresetId"`
}

// Store is the authoritative owner of presets, mappings, and the global
// priority list, backed by a single JSON file.
//
// Mutations are serialized under one write lock and follow a
// mutate-copy/persist/commit discipline: a failed save leaves the in-memory
// state untouched. Registered invalidation hooks run before a mutating call
// returns, still under the write lock, so no resolution can observe a
// half-updated rule set.
type Store struct {
	mu     sync.RWMutex
	path   string
	logger *slog.Logger
	data   storeData
	hooks  []func()
}

// Open loads the store from path. A missing, corrupt, or unreadable file
// degrades to an empty store (logged, not fatal). A default preset is
// synthesized whenever the loaded data lacks a live one.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{path: path, logger: logger}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// First run.
	case err != nil:
		logger.Warn("preset: store unreadable, starting empty",
			slog.String("path", path), slog.String("error", err.Error()))
	default:
		if jsonErr := json.Unmarshal(raw, &s.data); jsonErr != nil {
			logger.Warn("preset: store corrupt, starting empty",
				slog.String("path", path), slog.String("error", jsonErr.Error()))
			s.data = storeData{}
		}
	}

	s.adoptLoaded()

	if s.defaultDangling() {
		s.seedDefault()
		if saveErr := s.save(s.data); saveErr != nil {
			logger.Warn("preset: could not persist seeded default",
				slog.String("error", saveErr.Error()))
		}
	}
	return s, nil
}

// adoptLoaded repairs derivable state after a load: owning preset ids on
// mappings, priority list sanitization, and priority rank annotations.
func (s *Store) adoptLoaded() {
	for i := range s.data.Presets {
		p := &s.data.Presets[i]
		for j := range p.Mappings {
			p.Mappings[j].PresetID = p.ID
		}
	}
	s.data.PriorityList = sanitizePriority(s.data.PriorityList, &s.data)
	annotateRanks(&s.data)
}

func (s *Store) defaultDangling() bool {
	if s.data.DefaultPresetID == "" {
		return true
	}
	return findPreset(&s.data, s.data.DefaultPresetID) < 0
}

func (s *Store) seedDefault() {
	empty := json.RawMessage(`{}`)
	def := Preset{
		ID:          uuid.NewString(),
		Name:        "Default",
		Description: "Fallback preset used when no mapping matches.",
		Config:      ConfigBundle{CardSet: empty, Layout: empty, CardRender: empty},
	}
	s.data.Presets = append(s.data.Presets, def)
	s.data.DefaultPresetID = def.ID
	s.logger.Info("preset: seeded default preset", slog.String("id", def.ID))
}

// OnInvalidate registers fn to run after every successful mutation, before
// the mutating call returns. Registration is not safe concurrently with
// mutations; wire hooks once at startup.
func (s *Store) OnInvalidate(fn func()) {
	s.hooks = append(s.hooks, fn)
}

// mutate applies fn to a deep copy of the store state, persists the result,
// and only then commits it and fires invalidation hooks.
func (s *Store) mutate(fn func(d *storeData) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.data.clone()
	if err := fn(&next); err != nil {
		return err
	}
	next.PriorityList = sanitizePriority(next.PriorityList, &next)
	annotateRanks(&next)

	if err := s.save(next); err != nil {
		return fmt.Errorf("preset: save: %w", err)
	}
	s.data = next
	for _, hook := range s.hooks {
		hook()
	}
	return nil
}

// save atomically writes data to the backing file: temp file, fsync, rename.
func (s *Store) save(data storeData) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".cardnav-presets-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(raw); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return err
	}
	success = true
	return nil
}

// CreatePreset validates config, allocates ids, persists, and returns the
// stored preset.
func (s *Store) CreatePreset(p Preset) (Preset, error) {
	p.ID = uuid.NewString()
	for i := range p.Mappings {
		p.Mappings[i].ID = uuid.NewString()
		p.Mappings[i].PresetID = p.ID
	}
	if err := p.Validate(); err != nil {
		return Preset{}, fmt.Errorf("%w: %s", apperr.ErrValidation, err)
	}
	err := s.mutate(func(d *storeData) error {
		d.Presets = append(d.Presets, p.clone())
		return nil
	})
	if err != nil {
		return Preset{}, err
	}
	return p, nil
}

// UpdatePreset replaces the stored preset with the same id. Mappings without
// an id are treated as new and assigned one; priority list entries of
// mappings dropped by the replace are pruned.
func (s *Store) UpdatePreset(p Preset) error {
	for i := range p.Mappings {
		if p.Mappings[i].ID == "" {
			p.Mappings[i].ID = uuid.NewString()
		}
		p.Mappings[i].PresetID = p.ID
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %s", apperr.ErrValidation, err)
	}
	return s.mutate(func(d *storeData) error {
		idx := findPreset(d, p.ID)
		if idx < 0 {
			return fmt.Errorf("%w: preset %s", apperr.ErrNotFound, p.ID)
		}
		if err := assertMappingIDsUnique(d, p.ID, p.Mappings); err != nil {
			return err
		}
		d.Presets[idx] = p.clone()
		return nil
	})
}

// DeletePreset removes a preset and all its mappings. Deleting the default
// preset is a precondition failure the caller must resolve by reassigning
// the default first; the store never picks a new default silently.
func (s *Store) DeletePreset(id string) error {
	return s.mutate(func(d *storeData) error {
		idx := findPreset(d, id)
		if idx < 0 {
			return fmt.Errorf("%w: preset %s", apperr.ErrNotFound, id)
		}
		if d.DefaultPresetID == id {
			return fmt.Errorf("%w: preset %s is the default preset, reassign the default first", apperr.ErrConflict, id)
		}
		d.Presets = append(d.Presets[:idx], d.Presets[idx+1:]...)
		return nil
	})
}

// AddMapping appends a mapping to the preset and returns it with its
// allocated id.
func (s *Store) AddMapping(presetID string, m Mapping) (Mapping, error) {
	m.ID = uuid.NewString()
	m.PresetID = presetID
	if err := m.Validate(); err != nil {
		return Mapping{}, fmt.Errorf("%w: %s", apperr.ErrValidation, err)
	}
	err := s.mutate(func(d *storeData) error {
		idx := findPreset(d, presetID)
		if idx < 0 {
			return fmt.Errorf("%w: preset %s", apperr.ErrNotFound, presetID)
		}
		d.Presets[idx].Mappings = append(d.Presets[idx].Mappings, m.clone())
		return nil
	})
	if err != nil {
		return Mapping{}, err
	}
	return m, nil
}

// RemoveMapping deletes a mapping by id and prunes it from the priority list.
func (s *Store) RemoveMapping(mappingID string) error {
	return s.mutate(func(d *storeData) error {
		for pi := range d.Presets {
			ms := d.Presets[pi].Mappings
			for mi := range ms {
				if ms[mi].ID == mappingID {
					d.Presets[pi].Mappings = append(ms[:mi], ms[mi+1:]...)
					return nil
				}
			}
		}
		return fmt.Errorf("%w: mapping %s", apperr.ErrNotFound, mappingID)
	})
}

// UpdatePriorityList replaces the global ordering. Ids without a live mapping
// are silently dropped; this is a sanitizing operation, not an error.
func (s *Store) UpdatePriorityList(orderedMappingIDs []string) error {
	return s.mutate(func(d *storeData) error {
		d.PriorityList = append([]string(nil), orderedMappingIDs...)
		return nil
	})
}

// GetPriorityList returns a copy of the global ordering, most-preferred first.
func (s *Store) GetPriorityList() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.data.PriorityList...)
}

// GetAllPresets returns deep copies of every preset, in creation order.
func (s *Store) GetAllPresets() []Preset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Preset, len(s.data.Presets))
	for i := range s.data.Presets {
		out[i] = s.data.Presets[i].clone()
	}
	return out
}

// GetPreset returns a deep copy of the preset with the given id.
func (s *Store) GetPreset(id string) (Preset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := findPreset(&s.data, id)
	if idx < 0 {
		return Preset{}, fmt.Errorf("%w: preset %s", apperr.ErrNotFound, id)
	}
	return s.data.Presets[idx].clone(), nil
}

// Mappings returns copies of every mapping across all presets, in stable
// store order: presets in creation order, mappings within a preset in
// creation order. The resolver's tie-break relies on this ordering.
func (s *Store) Mappings() []Mapping {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Mapping
	for i := range s.data.Presets {
		for _, m := range s.data.Presets[i].Mappings {
			out = append(out, m.clone())
		}
	}
	return out
}

// DefaultPresetID returns the designated fallback preset id.
func (s *Store) DefaultPresetID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.DefaultPresetID
}

// SetDefaultPresetID reassigns the fallback preset.
func (s *Store) SetDefaultPresetID(id string) error {
	return s.mutate(func(d *storeData) error {
		if findPreset(d, id) < 0 {
			return fmt.Errorf("%w: preset %s", apperr.ErrNotFound, id)
		}
		d.DefaultPresetID = id
		return nil
	})
}

func (d *storeData) clone() storeData {
	out := storeData{
		DefaultPresetID: d.DefaultPresetID,
		PriorityList:    append([]string(nil), d.PriorityList...),
		Presets:         make([]Preset, len(d.Presets)),
	}
	for i := range d.Presets {
		out.Presets[i] = d.Presets[i].clone()
	}
	return out
}

// assertMappingIDsUnique rejects a caller-supplied mapping payload that
// breaks global mapping-id uniqueness: a duplicate within the payload itself,
// or an id already owned by a mapping of a different preset. The priority
// list and the resolver's rank map key on mapping ids, so a shared id would
// silently collapse two rules into one rank.
func assertMappingIDsUnique(d *storeData, ownerID string, ms []Mapping) error {
	seen := make(map[string]struct{}, len(ms))
	for _, m := range ms {
		if _, dup := seen[m.ID]; dup {
			return fmt.Errorf("%w: duplicate mapping id %s", apperr.ErrValidation, m.ID)
		}
		seen[m.ID] = struct{}{}
	}
	for i := range d.Presets {
		if d.Presets[i].ID == ownerID {
			continue
		}
		for _, m := range d.Presets[i].Mappings {
			if _, clash := seen[m.ID]; clash {
				return fmt.Errorf("%w: mapping id %s already belongs to preset %s", apperr.ErrConflict, m.ID, d.Presets[i].ID)
			}
		}
	}
	return nil
}

func findPreset(d *storeData, id string) int {
	for i := range d.Presets {
		if d.Presets[i].ID == id {
			return i
		}
	}
	return -1
}

// sanitizePriority drops ids without a live mapping and duplicate entries.
func sanitizePriority(ids []string, d *storeData) []string {
	live := make(map[string]struct{})
	for i := range d.Presets {
		for _, m := range d.Presets[i].Mappings {
			live[m.ID] = struct{}{}
		}
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := live[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// annotateRanks keeps Mapping.Priority in sync with the priority list: the
// rank is the list index for listed mappings and nil for everything else.
func annotateRanks(d *storeData) {
	rank := make(map[string]int, len(d.PriorityList))
	for i, id := range d.PriorityList {
		rank[id] = i
	}
	for pi := range d.Presets {
		for mi := range d.Presets[pi].Mappings {
			m := &d.Presets[pi].Mappings[mi]
			if r, ok := rank[m.ID]; ok {
				rc := r
				m.Priority = &rc
			} else {
				m.Priority = nil
			}
		}
	}
}
