package preset

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Specificity scores. Any folder match outranks any tag/date/property match;
// among folder matches, a deeper mapping path scores higher. Tag, date, and
// property matches share one flat score and have no intrinsic ordering.
const (
	flatSpecificity       = 1
	folderSpecificityBase = 16
)

// Match is one mapping that matched a context, annotated with its
// specificity and its ordinal in stable store order (the tie-break).
type Match struct {
	Mapping     Mapping
	Specificity int
	ord         int
}

// MappingIndex answers "which mappings match this context" from a derived
// read structure over the store's current mapping set. It is rebuilt lazily
// on the first query after an invalidation and never updated incrementally.
type MappingIndex struct {
	mu      sync.Mutex
	store   *Store
	dirty   bool
	entries []Mapping
}

// NewMappingIndex creates an index over store and registers itself for
// invalidation on every store mutation.
func NewMappingIndex(store *Store) *MappingIndex {
	idx := &MappingIndex{store: store, dirty: true}
	store.OnInvalidate(idx.Invalidate)
	return idx
}

// Invalidate marks the index stale. The next query rebuilds it.
func (idx *MappingIndex) Invalidate() {
	idx.mu.Lock()
	idx.dirty = true
	idx.mu.Unlock()
}

func (idx *MappingIndex) rebuildLocked() {
	idx.entries = idx.store.Mappings()
	idx.dirty = false
}

// Query returns every mapping matching ctx, annotated with specificity.
// An empty rule set yields an empty match set, never an error.
func (idx *MappingIndex) Query(ctx Context) []Match {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.dirty {
		idx.rebuildLocked()
	}

	var out []Match
	for ord, m := range idx.entries {
		spec, ok := matchOne(m, ctx)
		if !ok {
			continue
		}
		out = append(out, Match{Mapping: m, Specificity: spec, ord: ord})
	}
	return out
}

// PropertyNames returns the sorted set of property names referenced by any
// property mapping. The resolution cache keys on exactly this subset of a
// context's properties.
func (idx *MappingIndex) PropertyNames() []string {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.dirty {
		idx.rebuildLocked()
	}

	seen := make(map[string]struct{})
	for _, m := range idx.entries {
		if m.Kind == KindProperty && m.Property != nil {
			seen[m.Property.Name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func matchOne(m Mapping, ctx Context) (int, bool) {
	switch m.Kind {
	case KindFolder:
		if m.Folder == nil {
			return 0, false
		}
		depth, ok := matchFolder(*m.Folder, ctx.Folder)
		if !ok {
			return 0, false
		}
		return folderSpecificityBase + depth, true
	case KindTag:
		if m.Tag == nil {
			return 0, false
		}
		for _, t := range ctx.Tags {
			if t == m.Tag.Value {
				return flatSpecificity, true
			}
		}
		return 0, false
	case KindDate:
		if m.Date == nil || ctx.Ref.IsZero() {
			return 0, false
		}
		// Both ends inclusive, compared at calendar-day granularity. The
		// resolution cache buckets the reference date to the day, so matching
		// must not distinguish finer than that.
		ref := dayOf(ctx.Ref)
		if ref.Before(dayOf(m.Date.Start)) || ref.After(dayOf(m.Date.End)) {
			return 0, false
		}
		return flatSpecificity, true
	case KindProperty:
		if m.Property == nil {
			return 0, false
		}
		v, ok := ctx.Props[m.Property.Name]
		if !ok || v != m.Property.Value {
			return 0, false
		}
		return flatSpecificity, true
	default:
		return 0, false
	}
}

// matchFolder reports whether folder equals the rule path or, when
// IncludeSubfolders is set, is a descendant of it. Ancestry is segment-wise:
// "/Proj" is not an ancestor of "/Project2". The returned depth is the
// segment count of the rule path.
func matchFolder(rule FolderRule, folder string) (int, bool) {
	rseg := splitFolder(rule.Path)
	fseg := splitFolder(folder)
	if len(fseg) < len(rseg) {
		return 0, false
	}
	for i := range rseg {
		if fseg[i] != rseg[i] {
			return 0, false
		}
	}
	if len(fseg) > len(rseg) && !rule.IncludeSubfolders {
		return 0, false
	}
	return len(rseg), true
}

// dayOf collapses a timestamp to its calendar day.
func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func splitFolder(p string) []string {
	var out []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}
