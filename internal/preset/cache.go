package preset

import (
	"sort"
	"strings"
	"sync"

	"github.com/skoglund/cardnav/internal/checksum"
)

// Cache memoizes resolution outcomes per context fingerprint. It is cleared
// wholesale on every store mutation; mutations are rare relative to lookups,
// so correctness wins over selective pruning.
//
// A generation counter guards the miss path: fillers observe the generation
// at Get time and hand it back to Put, and a Clear in between makes the Put
// a no-op. An outcome computed against a superseded rule set must not
// outlive the mutation that invalidated it.
type Cache struct {
	mu      sync.Mutex
	gen     uint64
	entries map[string]string
}

// NewCache creates an empty resolution cache registered for invalidation on
// every store mutation.
func NewCache(store *Store) *Cache {
	c := &Cache{entries: make(map[string]string)}
	store.OnInvalidate(c.Clear)
	return c
}

// Get returns the cached preset id for key, plus the generation a filler
// must pass to Put when populating a miss.
func (c *Cache) Get(key string) (string, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.entries[key]
	return id, c.gen, ok
}

// Put stores the resolved preset id under key. The entry is dropped when the
// cache was cleared after gen was observed.
func (c *Cache) Put(key, presetID string, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.entries[key] = presetID
}

// Clear drops every cached entry and advances the generation.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.gen++
	c.entries = make(map[string]string)
	c.mu.Unlock()
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Fingerprint builds the cache key for a context: folder, sorted tags, the
// reference date bucketed to day granularity, and the context's values for
// exactly the property names referenced by property mappings. That property
// subset is stable between mutations, and mutations clear the cache anyway.
func Fingerprint(ctx Context, propNames []string) string {
	var b strings.Builder
	b.WriteString("folder=")
	b.WriteString(ctx.Folder)

	tags := append([]string(nil), ctx.Tags...)
	sort.Strings(tags)
	b.WriteString("\ntags=")
	b.WriteString(strings.Join(tags, ","))

	b.WriteString("\ndate=")
	if !ctx.Ref.IsZero() {
		b.WriteString(ctx.Ref.Format("2006-01-02"))
	}

	for _, name := range propNames {
		if v, ok := ctx.Props[name]; ok {
			b.WriteString("\nprop:")
			b.WriteString(name)
			b.WriteString("=")
			b.WriteString(v)
		}
	}
	return checksum.Sum([]byte(b.String()))
}
