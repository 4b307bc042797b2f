package classifier

import (
	"strings"
	"sync"
	"time"

	"github.com/AlexandroAurellino/live-shop-bot/types"
)

// DefaultCacheTTL bounds how long a verdict is replayed for repeated
// comments before the classifier is consulted again.
const DefaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	verdict   types.Verdict
	createdAt time.Time
}

// Cache memoizes classifier verdicts per normalized comment text with a TTL.
// Eviction is lazy: an expired entry is treated as a miss on read and
// overwritten on the next write. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewCache creates a verdict cache. A non-positive ttl falls back to
// DefaultCacheTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns the cached verdict for a comment, if a fresh entry exists.
func (c *Cache) Get(comment string) (types.Verdict, bool) {
	key := normalizeKey(comment)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return types.Verdict{}, false
	}
	if c.now().Sub(e.createdAt) >= c.ttl {
		delete(c.entries, key)
		return types.Verdict{}, false
	}
	return e.verdict, true
}

// Put stores a verdict if it is cache-worthy. Error verdicts are never
// stored so a transient failure is retried on the very next identical
// comment, and uninteresting {other, none} verdicts are not worth the
// memory.
func (c *Cache) Put(comment string, v types.Verdict) {
	if v.Intent == types.IntentError {
		return
	}
	if v.Intent == types.IntentOther && v.ProductName == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[normalizeKey(comment)] = cacheEntry{
		verdict:   v,
		createdAt: c.now(),
	}
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// Len returns the number of stored entries, including any not yet lazily
// evicted.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func normalizeKey(comment string) string {
	return strings.ToLower(strings.TrimSpace(comment))
}
