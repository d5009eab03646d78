package qualitygate

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// CacheEntry is one cached reply embedding.
type CacheEntry struct {
	Embedding []float32
	Timestamp time.Time
}

// SemanticCache holds per-thread reply embeddings for the semantic
// repetition check. Keyed and trimmed independently of the blueprint
// history; threads are LRU-bounded so the cache cannot grow without limit.
type SemanticCache struct {
	mu      sync.Mutex
	threads *lru.Cache
}

func NewSemanticCache(maxThreads int) (*SemanticCache, error) {
	cache, err := lru.New(maxThreads)
	if err != nil {
		return nil, err
	}
	return &SemanticCache{threads: cache}, nil
}

// Entries returns a copy of the thread's cached entries, oldest first.
func (c *SemanticCache) Entries(threadID string) []CacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.threads.Get(threadID)
	if !ok {
		return nil
	}
	entries := v.([]CacheEntry)
	out := make([]CacheEntry, len(entries))
	copy(out, entries)
	return out
}

// Append records an embedding and trims the thread to maxDepth entries,
// oldest evicted first.
func (c *SemanticCache) Append(threadID string, embedding []float32, maxDepth int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var entries []CacheEntry
	if v, ok := c.threads.Get(threadID); ok {
		entries = v.([]CacheEntry)
	}
	entries = append(entries, CacheEntry{Embedding: embedding, Timestamp: time.Now()})
	if maxDepth > 0 && len(entries) > maxDepth {
		entries = append([]CacheEntry(nil), entries[len(entries)-maxDepth:]...)
	}
	c.threads.Add(threadID, entries)
}
