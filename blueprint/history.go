package blueprint

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// HistoryStore holds per-thread rotation history. Threads are bounded by an
// LRU over thread ids so long-running processes with many conversations do
// not grow without limit; a thread's history is created lazily on first use
// and never persisted across restarts.
type HistoryStore struct {
	mu      sync.Mutex
	threads *lru.Cache
}

func NewHistoryStore(maxThreads int) (*HistoryStore, error) {
	cache, err := lru.New(maxThreads)
	if err != nil {
		return nil, err
	}
	return &HistoryStore{threads: cache}, nil
}

// Window returns a copy of the thread's most recent entries, at most depth,
// oldest first. A missing thread yields nil.
func (s *HistoryStore) Window(threadID string, depth int) []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.threads.Get(threadID)
	if !ok {
		return nil
	}
	entries := v.([]HistoryEntry)
	if len(entries) > depth {
		entries = entries[len(entries)-depth:]
	}
	out := make([]HistoryEntry, len(entries))
	copy(out, entries)
	return out
}

// Last returns the most recent committed entry for the thread.
func (s *HistoryStore) Last(threadID string) (HistoryEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.threads.Get(threadID)
	if !ok {
		return HistoryEntry{}, false
	}
	entries := v.([]HistoryEntry)
	if len(entries) == 0 {
		return HistoryEntry{}, false
	}
	return entries[len(entries)-1], true
}

// Append records an entry and evicts the oldest beyond maxDepth.
func (s *HistoryStore) Append(threadID string, e HistoryEntry, maxDepth int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []HistoryEntry
	if v, ok := s.threads.Get(threadID); ok {
		entries = v.([]HistoryEntry)
	}
	entries = append(entries, e)
	if maxDepth > 0 && len(entries) > maxDepth {
		entries = append([]HistoryEntry(nil), entries[len(entries)-maxDepth:]...)
	}
	s.threads.Add(threadID, entries)
}

// Len reports how many threads are currently tracked.
func (s *HistoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threads.Len()
}
