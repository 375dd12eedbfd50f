package attachment

import "sync"

// Cache remembers, for one export run, which attachments were classified
// and fetched. Entries are keyed by stored filename, so every occurrence of
// the same raw link is fetched at most once even when pull requests export
// concurrently.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	once        sync.Once
	contentType string
	// fetchErr is set when the bytes could not be downloaded; the
	// attachment is then skipped like an unsupported one.
	fetchErr error
	// saveErr is an archive write failure and aborts the run.
	saveErr error
}

// NewCache returns an empty run-scoped cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*cacheEntry)}
}

func (c *Cache) entry(filename string) *cacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[filename]
	if !ok {
		e = &cacheEntry{}
		c.entries[filename] = e
	}
	return e
}
